// admin.go — админские маршруты: загрузка, замена, переименование, удаление
// ресурсов и управление профилями пользователей.
// Маршруты защищены middleware.RequireAdmin; сервисы повторно проверяют права.
package handlers

import (
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"strconv"
	"time"

	apierrors "github.com/bigkaa/resportal/internal/api/errors"
	"github.com/bigkaa/resportal/internal/auth"
	"github.com/bigkaa/resportal/internal/service"
)

// multipartOverhead — запас на поля формы сверх размера файла.
const multipartOverhead = 1 << 20

// multipartMemory — часть формы, удерживаемая в памяти; остальное во временных файлах.
const multipartMemory = 32 << 20

// parseUpload разбирает multipart-форму и извлекает файл из поля "file".
// При ошибке ответ уже записан; cleanup нужно вызвать в любом случае.
func (h *APIHandler) parseUpload(w http.ResponseWriter, r *http.Request) (file *service.FileUpload, cleanup func(), ok bool) {
	cleanup = func() {}
	h.extendUploadDeadline(w, r)
	r.Body = http.MaxBytesReader(w, r.Body, h.deps.MaxUploadSize+multipartOverhead)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			apierrors.PayloadTooLarge(w, "file too large (max "+strconv.FormatInt(h.deps.MaxUploadSize, 10)+" bytes)")
			return nil, cleanup, false
		}
		if errors.Is(err, os.ErrDeadlineExceeded) {
			apierrors.RequestTimeout(w, "upload timed out")
			return nil, cleanup, false
		}
		apierrors.ValidationError(w, "invalid multipart form")
		return nil, cleanup, false
	}
	cleanup = func() { _ = r.MultipartForm.RemoveAll() }

	f, header, err := r.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, cleanup, true
		}
		apierrors.ValidationError(w, "invalid file")
		return nil, cleanup, false
	}
	prev := cleanup
	cleanup = func() {
		_ = f.Close()
		prev()
	}
	return toFileUpload(f, header), cleanup, true
}

// extendUploadDeadline заменяет таймауты сервера сроком загрузки.
// Тело читается не дольше UploadTimeout; на ответ отводится ещё один
// UploadTimeout — за это время файл передаётся в объектное хранилище.
func (h *APIHandler) extendUploadDeadline(w http.ResponseWriter, r *http.Request) {
	if h.deps.UploadTimeout <= 0 {
		return
	}
	now := time.Now()
	rc := http.NewResponseController(w)
	if err := rc.SetReadDeadline(now.Add(h.deps.UploadTimeout)); err != nil {
		if !errors.Is(err, http.ErrNotSupported) {
			h.logger.Warn("Не удалось продлить срок чтения загрузки",
				slog.String("path", r.URL.Path),
				slog.String("error", err.Error()),
			)
		}
		return
	}
	_ = rc.SetWriteDeadline(now.Add(2 * h.deps.UploadTimeout))
}

func toFileUpload(f multipart.File, header *multipart.FileHeader) *service.FileUpload {
	return &service.FileUpload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        f,
	}
}

type uploadResponse struct {
	OK        bool         `json:"ok"`
	Resource  resourceJSON `json:"resource"`
	PublicURL *string      `json:"publicUrl"`
}

// Upload — POST /admin-upload (multipart: title, boardSlug, visibility,
// displayname, publishedAt, file).
func (h *APIHandler) Upload(w http.ResponseWriter, r *http.Request) {
	file, cleanup, ok := h.parseUpload(w, r)
	defer cleanup()
	if !ok {
		return
	}

	res, err := h.deps.Ingestion.Ingest(r.Context(), service.IngestParams{
		Title:       r.FormValue("title"),
		BoardSlug:   r.FormValue("boardSlug"),
		Visibility:  r.FormValue("visibility"),
		Displayname: r.FormValue("displayname"),
		PublishedAt: r.FormValue("publishedAt"),
		File:        file,
	}, auth.ViewerFromContext(r.Context()))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	resp := uploadResponse{OK: true, Resource: toResourceJSON(res.Resource)}
	if res.PublicURL != "" {
		resp.PublicURL = &res.PublicURL
	}
	writeJSON(w, http.StatusOK, resp)
}

type replaceResponse struct {
	OK       bool         `json:"ok"`
	Resource resourceJSON `json:"resource"`
	OldKey   string       `json:"oldKey"`
	NewKey   string       `json:"newKey"`
}

// ReplaceResource — POST /admin-resources-replace (multipart: resourceId, file).
func (h *APIHandler) ReplaceResource(w http.ResponseWriter, r *http.Request) {
	file, cleanup, ok := h.parseUpload(w, r)
	defer cleanup()
	if !ok {
		return
	}

	id, ok := parseID(r.FormValue("resourceId"))
	if !ok {
		apierrors.ValidationError(w, "invalid resourceId")
		return
	}

	res, err := h.deps.Ingestion.Replace(r.Context(), service.ReplaceParams{ResourceID: id, File: file},
		auth.ViewerFromContext(r.Context()))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, replaceResponse{
		OK:       true,
		Resource: toResourceJSON(res.Resource),
		OldKey:   res.OldKey,
		NewKey:   res.NewKey,
	})
}

type updateRequest struct {
	ResourceID  resourceID `json:"resourceId"`
	Displayname string     `json:"displayname"`
}

// UpdateResource — POST /admin-resources-update {resourceId, displayname}.
func (h *APIHandler) UpdateResource(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ResourceID <= 0 {
		apierrors.ValidationError(w, "invalid resourceId")
		return
	}

	res, err := h.deps.Ingestion.UpdateDisplayName(r.Context(), int64(req.ResourceID), req.Displayname,
		auth.ViewerFromContext(r.Context()))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "resource": toResourceJSON(res)})
}

type deleteRequest struct {
	ResourceID resourceID `json:"resourceId"`
}

type deleteResponse struct {
	OK             bool `json:"ok"`
	AlreadyDeleted bool `json:"alreadyDeleted,omitempty"`
}

// DeleteResource — POST /admin-resources-delete {resourceId}.
func (h *APIHandler) DeleteResource(w http.ResponseWriter, r *http.Request) {
	var req deleteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ResourceID <= 0 {
		apierrors.ValidationError(w, "resourceId required")
		return
	}

	res, err := h.deps.Ingestion.Delete(r.Context(), int64(req.ResourceID), auth.ViewerFromContext(r.Context()))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, deleteResponse{OK: true, AlreadyDeleted: res.AlreadyDeleted})
}

type usersResponse struct {
	OK      bool          `json:"ok"`
	Users   []profileJSON `json:"users"`
	Page    int           `json:"page"`
	PerPage int           `json:"perPage"`
	Total   int           `json:"total"`
}

// ListUsers — GET /admin-users-list?q=&page=&perPage= (q — подстрока email).
func (h *APIHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	page, perPage := 1, 0
	if raw := query.Get("page"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			apierrors.ValidationError(w, "invalid page")
			return
		}
		page = v
	}
	if raw := query.Get("perPage"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v == 0 {
			apierrors.ValidationError(w, "invalid perPage")
			return
		}
		perPage = v
	}

	res, err := h.deps.AdminUsers.ListUsers(r.Context(), service.UserQuery{
		Query:   query.Get("q"),
		Page:    page,
		PerPage: perPage,
	}, auth.ViewerFromContext(r.Context()))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	users := make([]profileJSON, 0, len(res.Users))
	for _, p := range res.Users {
		users = append(users, toProfileJSON(p))
	}
	writeJSON(w, http.StatusOK, usersResponse{
		OK: true, Users: users, Page: res.Page, PerPage: res.PerPage, Total: res.Total,
	})
}

type userUpdateRequest struct {
	UserID   string  `json:"userId"`
	Role     *string `json:"role"`
	Approved *bool   `json:"approved"`
}

// UpdateUser — POST /admin-users-update {userId, role?, approved?}.
// Нелогическое значение approved отклоняется декодером JSON.
func (h *APIHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var req userUpdateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	profile, err := h.deps.AdminUsers.UpdateUser(r.Context(), service.UserUpdate{
		UserID:   req.UserID,
		Role:     req.Role,
		Approved: req.Approved,
	}, auth.ViewerFromContext(r.Context()))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "profile": toProfileJSON(profile)})
}
