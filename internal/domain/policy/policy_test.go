package policy

import (
	"reflect"
	"testing"

	"github.com/bigkaa/resportal/internal/domain/model"
)

var (
	anon          = model.Anonymous()
	pending       = model.Viewer{LoggedIn: true, UserID: "u1", Role: model.RoleMember}
	member        = model.Viewer{LoggedIn: true, UserID: "u2", Role: model.RoleMember, Approved: true}
	pendingAdmin  = model.Viewer{LoggedIn: true, UserID: "u3", Role: model.RoleAdmin}
	admin         = model.Viewer{LoggedIn: true, UserID: "u4", Role: model.RoleAdmin, Approved: true}
	allViewers    = []model.Viewer{anon, pending, member, pendingAdmin, admin}
	allModes      = []Mode{ModeView, ModeDownload}
	strictDefault = New(true)
)

func TestDecide_Public(t *testing.T) {
	for _, v := range allViewers {
		if !strictDefault.CanAccess(model.VisibilityPublic, false, v, ModeView) {
			t.Errorf("public/view запрещён для %+v, ожидается разрешение", v)
		}
		got := strictDefault.CanAccess(model.VisibilityPublic, false, v, ModeDownload)
		if got != v.LoggedIn {
			t.Errorf("public/download для %+v = %v, хотели %v", v, got, v.LoggedIn)
		}
	}
}

func TestDecide_PublicDownloadFlagOff(t *testing.T) {
	p := New(false)
	if !p.CanAccess(model.VisibilityPublic, false, anon, ModeDownload) {
		t.Error("при выключенном флаге аноним должен скачивать публичные ресурсы")
	}
	// Флаг не влияет на закрытые уровни
	if p.CanAccess(model.VisibilityMember, false, anon, ModeDownload) {
		t.Error("флаг не должен открывать уровень member")
	}
}

func TestDecide_Member(t *testing.T) {
	for _, v := range allViewers {
		want := v.LoggedIn && v.Approved
		for _, m := range allModes {
			if got := strictDefault.CanAccess(model.VisibilityMember, false, v, m); got != want {
				t.Errorf("member/%s для %+v = %v, хотели %v", m, v, got, want)
			}
		}
	}
}

func TestDecide_Admin(t *testing.T) {
	for _, v := range allViewers {
		want := v.LoggedIn && v.Approved && v.Role == model.RoleAdmin
		for _, m := range allModes {
			if got := strictDefault.CanAccess(model.VisibilityAdmin, false, v, m); got != want {
				t.Errorf("admin/%s для %+v = %v, хотели %v", m, v, got, want)
			}
		}
	}
}

func TestDecide_DeletedAndUnknown(t *testing.T) {
	for _, p := range []Policy{New(true), New(false)} {
		for _, v := range allViewers {
			for _, m := range allModes {
				for _, vis := range model.Visibilities {
					d := p.Decide(vis, true, v, m)
					if d.Allowed || d.Reason != ReasonNotFound {
						t.Errorf("удалённый %s/%s для %+v: %+v, ожидается отказ not_found", vis, m, v, d)
					}
				}
				d := p.Decide(model.Visibility("secret"), false, v, m)
				if d.Allowed || d.Reason != ReasonUnknownVisibility {
					t.Errorf("неизвестный уровень для %+v: %+v", v, d)
				}
			}
		}
	}
}

func TestDecide_Reasons(t *testing.T) {
	tests := []struct {
		name    string
		vis     model.Visibility
		viewer  model.Viewer
		mode    Mode
		reason  Reason
		message string
	}{
		{"аноним скачивает public", model.VisibilityPublic, anon, ModeDownload, ReasonLoginRequired, "login required for download"},
		{"аноним смотрит member", model.VisibilityMember, anon, ModeView, ReasonLoginRequired, "login required"},
		{"неодобренный смотрит member", model.VisibilityMember, pending, ModeView, ReasonApprovalRequired, "forbidden"},
		{"неодобренный админ смотрит admin", model.VisibilityAdmin, pendingAdmin, ModeView, ReasonApprovalRequired, "forbidden"},
		{"участник смотрит admin", model.VisibilityAdmin, member, ModeView, ReasonAdminRequired, "forbidden"},
		{"админ скачивает admin", model.VisibilityAdmin, admin, ModeDownload, ReasonNone, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := strictDefault.Decide(tt.vis, false, tt.viewer, tt.mode)
			if d.Reason != tt.reason {
				t.Errorf("Reason = %q, хотели %q", d.Reason, tt.reason)
			}
			if msg := d.Message(tt.mode, tt.vis); msg != tt.message {
				t.Errorf("Message = %q, хотели %q", msg, tt.message)
			}
		})
	}
}

func TestAllowedVisibilities(t *testing.T) {
	tests := []struct {
		name   string
		viewer model.Viewer
		want   []model.Visibility
	}{
		{"аноним", anon, []model.Visibility{model.VisibilityPublic}},
		{"неодобренный", pending, []model.Visibility{model.VisibilityPublic}},
		{"участник", member, []model.Visibility{model.VisibilityPublic, model.VisibilityMember}},
		{"неодобренный админ", pendingAdmin, []model.Visibility{model.VisibilityPublic}},
		{"админ", admin, model.Visibilities},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := strictDefault.AllowedVisibilities(tt.viewer)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("AllowedVisibilities = %v, хотели %v", got, tt.want)
			}
		})
	}
}

func TestParseMode(t *testing.T) {
	if m, ok := ParseMode("view"); !ok || m != ModeView {
		t.Errorf("ParseMode(view) = %q, %v", m, ok)
	}
	if m, ok := ParseMode("download"); !ok || m != ModeDownload {
		t.Errorf("ParseMode(download) = %q, %v", m, ok)
	}
	if _, ok := ParseMode("stream"); ok {
		t.Error("ParseMode(stream) должен вернуть false")
	}
}
