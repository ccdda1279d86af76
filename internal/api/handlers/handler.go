// Пакет handlers — HTTP-обработчики resportal.
// handler.go — основной обработчик API: зависимости, общие ответы,
// отображение ошибок сервисного слоя в HTTP-статусы.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	openapi_types "github.com/oapi-codegen/runtime/types"

	apierrors "github.com/bigkaa/resportal/internal/api/errors"
	"github.com/bigkaa/resportal/internal/domain/model"
	"github.com/bigkaa/resportal/internal/domain/policy"
	"github.com/bigkaa/resportal/internal/service"
)

// Directory — листинг ресурсов.
type Directory interface {
	List(ctx context.Context, q service.ListQuery, viewer model.Viewer) (*service.ListResult, error)
}

// Broker — выдача ссылок.
type Broker interface {
	Resolve(ctx context.Context, id int64, mode policy.Mode, viewer model.Viewer) (*service.Delivery, error)
}

// Boards — справочник разделов.
type Boards interface {
	List(ctx context.Context) ([]*model.Board, error)
}

// Ingestion — админские операции над ресурсами.
type Ingestion interface {
	Ingest(ctx context.Context, p service.IngestParams, viewer model.Viewer) (*service.IngestResult, error)
	Replace(ctx context.Context, p service.ReplaceParams, viewer model.Viewer) (*service.ReplaceResult, error)
	UpdateDisplayName(ctx context.Context, id int64, displayname string, viewer model.Viewer) (*model.Resource, error)
	Delete(ctx context.Context, id int64, viewer model.Viewer) (*service.DeleteResult, error)
}

// AdminUsers — управление профилями.
type AdminUsers interface {
	ListUsers(ctx context.Context, q service.UserQuery, viewer model.Viewer) (*service.UserPage, error)
	UpdateUser(ctx context.Context, upd service.UserUpdate, viewer model.Viewer) (*model.Profile, error)
}

// Deps — зависимости обработчика.
type Deps struct {
	Directory  Directory
	Broker     Broker
	Boards     Boards
	Ingestion  Ingestion
	AdminUsers AdminUsers
	// MaxUploadSize — потолок размера файла; тело multipart ограничивается с запасом на поля формы
	MaxUploadSize int64
	// UploadTimeout — срок чтения multipart-тела и записи ответа (0 — таймауты сервера)
	UploadTimeout time.Duration
}

// APIHandler — обработчик API resportal.
type APIHandler struct {
	deps   Deps
	logger *slog.Logger
}

// NewAPIHandler создаёт основной обработчик API.
func NewAPIHandler(deps Deps, logger *slog.Logger) *APIHandler {
	return &APIHandler{
		deps:   deps,
		logger: logger.With(slog.String("component", "api_handler")),
	}
}

// --- Вспомогательные функции ---

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeServiceError отображает ошибку сервисного слоя в HTTP-ответ.
// Ошибки вне таксономии — 500 с текстом исходной ошибки.
func (h *APIHandler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	msg := service.ClientMessage(err)
	switch {
	case errors.Is(err, service.ErrNotFound):
		apierrors.NotFound(w, msg)
	case errors.Is(err, service.ErrValidation):
		apierrors.ValidationError(w, msg)
	case errors.Is(err, service.ErrTooLarge):
		apierrors.PayloadTooLarge(w, msg)
	case errors.Is(err, service.ErrLoginRequired):
		apierrors.Unauthorized(w, msg)
	case errors.Is(err, service.ErrForbidden):
		apierrors.Forbidden(w, msg)
	case errors.Is(err, service.ErrConflict):
		apierrors.Conflict(w, msg)
	default:
		h.logger.Error("Ошибка обработки запроса",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, msg)
	}
}

// decodeJSON разбирает тело запроса. Пустое или некорректное тело — false
// и ответ 400 уже записан.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		apierrors.ValidationError(w, "invalid JSON body")
		return false
	}
	return true
}

// parseID разбирает положительный целочисленный идентификатор.
func parseID(raw string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// resourceID — идентификатор ресурса в теле JSON: число или строка с числом.
// Всё, что не является положительным целым, даёт 0; обработчик отвечает ошибкой валидации.
type resourceID int64

func (id *resourceID) UnmarshalJSON(data []byte) error {
	raw := string(data)
	if strings.HasPrefix(raw, `"`) {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
	}
	n, _ := parseID(raw)
	*id = resourceID(n)
	return nil
}

// --- Представления ответов ---

// resourceJSON — строка resources в ответах админских операций.
type resourceJSON struct {
	ID               int64               `json:"id"`
	BoardID          int64               `json:"board_id"`
	Title            string              `json:"title"`
	Displayname      *string             `json:"displayname"`
	Kind             model.Kind          `json:"kind"`
	Visibility       model.Visibility    `json:"visibility"`
	R2Key            *string             `json:"r2_key"`
	OriginalFilename *string             `json:"original_filename"`
	Mime             *string             `json:"mime"`
	SizeBytes        *int64              `json:"size_bytes"`
	PublishedAt      *openapi_types.Date `json:"published_at"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
	DeletedAt        *time.Time          `json:"deleted_at"`
	DeletedBy        *string             `json:"deleted_by"`
}

func toResourceJSON(r *model.Resource) resourceJSON {
	out := resourceJSON{
		ID:               r.ID,
		BoardID:          r.BoardID,
		Title:            r.Title,
		Displayname:      r.Displayname,
		Kind:             r.Kind,
		Visibility:       r.Visibility,
		R2Key:            r.R2Key,
		OriginalFilename: r.OriginalFilename,
		Mime:             r.Mime,
		SizeBytes:        r.SizeBytes,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
		DeletedAt:        r.DeletedAt,
		DeletedBy:        r.DeletedBy,
	}
	if r.PublishedAt != nil {
		out.PublishedAt = &openapi_types.Date{Time: *r.PublishedAt}
	}
	return out
}

// profileJSON — профиль пользователя.
type profileJSON struct {
	ID           string     `json:"id"`
	Email        *string    `json:"email"`
	Role         model.Role `json:"role"`
	Approved     bool       `json:"approved"`
	LastSignInAt *time.Time `json:"last_sign_in_at"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func toProfileJSON(p *model.Profile) profileJSON {
	out := profileJSON{
		ID:           p.ID,
		Role:         p.Role,
		Approved:     p.Approved,
		LastSignInAt: p.LastSignInAt,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
	if p.Email != "" {
		out.Email = &p.Email
	}
	return out
}
