// resources.go — публичные маршруты: листинг, выдача ссылок, разделы, /me.
package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	apierrors "github.com/bigkaa/resportal/internal/api/errors"
	"github.com/bigkaa/resportal/internal/auth"
	"github.com/bigkaa/resportal/internal/domain/model"
	"github.com/bigkaa/resportal/internal/domain/policy"
	"github.com/bigkaa/resportal/internal/service"
)

// authJSON — сведения о зрителе в ответе листинга.
type authJSON struct {
	IsLoggedIn bool       `json:"isLoggedIn"`
	Approved   bool       `json:"approved"`
	Role       model.Role `json:"role"`
}

type listResponse struct {
	OK       bool               `json:"ok"`
	Auth     authJSON           `json:"auth"`
	Items    []service.ListItem `json:"items"`
	Total    *int               `json:"total,omitempty"`
	Page     *int               `json:"page,omitempty"`
	PageSize *int               `json:"pageSize,omitempty"`
}

// ListResources — GET /resources-list?cat=&page=.
// Раздел принимается также в параметре boardSlug.
func (h *APIHandler) ListResources(w http.ResponseWriter, r *http.Request) {
	viewer := auth.ViewerFromContext(r.Context())
	query := r.URL.Query()

	q := service.ListQuery{BoardSlug: strings.TrimSpace(query.Get("cat"))}
	if q.BoardSlug == "" {
		q.BoardSlug = strings.TrimSpace(query.Get("boardSlug"))
	}
	if raw := query.Get("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 {
			apierrors.ValidationError(w, "invalid page")
			return
		}
		q.Page = page
	}

	res, err := h.deps.Directory.List(r.Context(), q, viewer)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	resp := listResponse{
		OK:    true,
		Auth:  authJSON{IsLoggedIn: viewer.LoggedIn, Approved: viewer.Approved, Role: viewer.Role},
		Items: res.Items,
	}
	if res.Paged {
		resp.Total, resp.Page, resp.PageSize = &res.Total, &res.Page, &res.PageSize
	}
	writeJSON(w, http.StatusOK, resp)
}

type urlRequest struct {
	ResourceID resourceID `json:"resourceId"`
	Mode       string     `json:"mode"`
}

type urlResponse struct {
	OK        bool       `json:"ok"`
	URL       string     `json:"url"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// ResourceURL — POST /resources-url {resourceId, mode}.
// Пустой mode — просмотр.
func (h *APIHandler) ResourceURL(w http.ResponseWriter, r *http.Request) {
	var req urlRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ResourceID <= 0 {
		apierrors.ValidationError(w, "missing resourceId")
		return
	}
	mode := policy.ModeView
	if req.Mode != "" {
		m, ok := policy.ParseMode(req.Mode)
		if !ok {
			apierrors.ValidationError(w, "invalid mode")
			return
		}
		mode = m
	}

	d, err := h.deps.Broker.Resolve(r.Context(), int64(req.ResourceID), mode, auth.ViewerFromContext(r.Context()))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, urlResponse{OK: true, URL: d.URL, ExpiresAt: d.ExpiresAt})
}

// DownloadResource — GET /resources-download?id=.
// Перенаправляет (302) на ссылку скачивания.
func (h *APIHandler) DownloadResource(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r.URL.Query().Get("id"))
	if !ok {
		apierrors.ValidationError(w, "missing id")
		return
	}

	d, err := h.deps.Broker.Resolve(r.Context(), id, policy.ModeDownload, auth.ViewerFromContext(r.Context()))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	http.Redirect(w, r, d.URL, http.StatusFound)
}

type boardJSON struct {
	Slug  string `json:"slug"`
	Title string `json:"title"`
}

// ListBoards — GET /boards-list.
func (h *APIHandler) ListBoards(w http.ResponseWriter, r *http.Request) {
	boards, err := h.deps.Boards.List(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	out := make([]boardJSON, 0, len(boards))
	for _, b := range boards {
		out = append(out, boardJSON{Slug: b.Slug, Title: b.Title})
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "boards": out})
}

type meUser struct {
	ID    string  `json:"id"`
	Email *string `json:"email"`
}

type meResponse struct {
	OK         bool       `json:"ok"`
	IsLoggedIn bool       `json:"isLoggedIn"`
	Approved   bool       `json:"approved"`
	Role       model.Role `json:"role"`
	User       *meUser    `json:"user"`
	Error      string     `json:"error,omitempty"`
}

// Me — GET /me. Всегда 200: невалидный токен даёт анонимного зрителя.
func (h *APIHandler) Me(w http.ResponseWriter, r *http.Request) {
	res := auth.ResolutionFromContext(r.Context())
	v := res.Viewer

	resp := meResponse{OK: true, IsLoggedIn: v.LoggedIn, Approved: v.Approved, Role: v.Role}
	if v.LoggedIn {
		u := &meUser{ID: v.UserID}
		if v.Email != "" {
			u.Email = &v.Email
		}
		resp.User = u
	}
	switch {
	case res.Status == auth.CredentialInvalid:
		resp.Error = "invalid token"
	case res.ProfileErr != nil:
		resp.Error = "profile lookup failed"
	}
	writeJSON(w, http.StatusOK, resp)
}
