// Пакет policy — единая политика видимости ресурсов.
// Решает для пары (ресурс, зритель) и режима доступа, разрешён ли доступ.
// Правила проверяются в фиксированном порядке и образуют строгую решётку
// привилегий: public < member < admin.
// Используется листингом, выдачей ссылок и админскими операциями.
package policy

import "github.com/bigkaa/resportal/internal/domain/model"

// Mode — режим доступа к ресурсу.
type Mode string

const (
	// ModeView — просмотр (листинг, inline-открытие)
	ModeView Mode = "view"
	// ModeDownload — скачивание (attachment)
	ModeDownload Mode = "download"
)

// ParseMode разбирает режим из тела запроса.
func ParseMode(s string) (Mode, bool) {
	switch Mode(s) {
	case ModeView, ModeDownload:
		return Mode(s), true
	}
	return "", false
}

// Reason — причина отказа.
type Reason string

const (
	ReasonNone              Reason = ""
	ReasonLoginRequired     Reason = "login_required"
	ReasonApprovalRequired  Reason = "approval_required"
	ReasonAdminRequired     Reason = "admin_required"
	ReasonNotFound          Reason = "not_found"
	ReasonUnknownVisibility Reason = "unknown_visibility"
)

// Decision — результат проверки политики.
type Decision struct {
	Allowed bool
	Reason  Reason
}

func allow() Decision        { return Decision{Allowed: true} }
func deny(r Reason) Decision { return Decision{Reason: r} }

// Policy — политика видимости.
type Policy struct {
	// PublicDownloadRequiresLogin — скачивание публичных ресурсов
	// только для вошедших пользователей.
	PublicDownloadRequiresLogin bool
}

// New создаёт политику.
func New(publicDownloadRequiresLogin bool) Policy {
	return Policy{PublicDownloadRequiresLogin: publicDownloadRequiresLogin}
}

// Decide вычисляет решение для ресурса уровня vis.
// Порядок правил менять нельзя.
func (p Policy) Decide(vis model.Visibility, deleted bool, v model.Viewer, mode Mode) Decision {
	if deleted {
		return deny(ReasonNotFound)
	}

	switch vis {
	case model.VisibilityPublic:
		if mode == ModeDownload && p.PublicDownloadRequiresLogin && !v.LoggedIn {
			return deny(ReasonLoginRequired)
		}
		return allow()

	case model.VisibilityMember:
		if !v.LoggedIn {
			return deny(ReasonLoginRequired)
		}
		if !v.Approved {
			return deny(ReasonApprovalRequired)
		}
		return allow()

	case model.VisibilityAdmin:
		if !v.LoggedIn {
			return deny(ReasonLoginRequired)
		}
		if !v.Approved {
			return deny(ReasonApprovalRequired)
		}
		if v.Role != model.RoleAdmin {
			return deny(ReasonAdminRequired)
		}
		return allow()
	}

	return deny(ReasonUnknownVisibility)
}

// CanAccess — булева форма Decide.
func (p Policy) CanAccess(vis model.Visibility, deleted bool, v model.Viewer, mode Mode) bool {
	return p.Decide(vis, deleted, v, mode).Allowed
}

// AllowedVisibilities возвращает уровни, доступные зрителю для просмотра.
// Вычисляется через Decide, чтобы листинг не расходился с выдачей ссылок.
func (p Policy) AllowedVisibilities(v model.Viewer) []model.Visibility {
	out := make([]model.Visibility, 0, len(model.Visibilities))
	for _, vis := range model.Visibilities {
		if p.CanAccess(vis, false, v, ModeView) {
			out = append(out, vis)
		}
	}
	return out
}

// Message возвращает текст ошибки для клиента.
// Отказы 403 не раскрывают, какого именно условия не хватило.
func (d Decision) Message(mode Mode, vis model.Visibility) string {
	switch d.Reason {
	case ReasonNone:
		return ""
	case ReasonLoginRequired:
		if mode == ModeDownload && vis == model.VisibilityPublic {
			return "login required for download"
		}
		return "login required"
	case ReasonNotFound:
		return "not found"
	default:
		return "forbidden"
	}
}
