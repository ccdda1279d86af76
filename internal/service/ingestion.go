// ingestion.go — загрузка, замена файла, переименование и удаление ресурсов.
//
// Запись объекта в хранилище и вставка метаданных не транзакционны:
// при ошибке вставки объект остаётся в бакете, его ключ логируется (WARN).
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	openapi_types "github.com/oapi-codegen/runtime/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/resportal/internal/domain/filekind"
	"github.com/bigkaa/resportal/internal/domain/model"
	"github.com/bigkaa/resportal/internal/objectstore"
	"github.com/bigkaa/resportal/internal/repository"
)

// Prometheus-метрики загрузок.
var (
	uploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rp_uploads_total",
		Help: "Количество загруженных объектов по операции и уровню хранения.",
	}, []string{"operation", "tier"})

	uploadBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rp_upload_bytes_total",
		Help: "Суммарный объём загруженных объектов в байтах.",
	})

	orphanObjectsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rp_orphan_objects_total",
		Help: "Количество объектов, оставшихся без метаданных после ошибки записи в БД.",
	})
)

// ObjectWriter — запись объектов в хранилище.
type ObjectWriter interface {
	Put(ctx context.Context, tier objectstore.Tier, key string, body io.ReadSeeker, size int64, contentType string) error
	PublicURL(key string) string
}

// FileUpload — загружаемый файл.
type FileUpload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.ReadSeeker
}

// IngestParams — поля формы загрузки.
type IngestParams struct {
	Title       string
	BoardSlug   string
	Visibility  string
	Displayname string
	// PublishedAt — дата YYYY-MM-DD; некорректное или пустое значение — сегодня (UTC)
	PublishedAt string
	File        *FileUpload
}

// IngestResult — результат загрузки.
type IngestResult struct {
	Resource *model.Resource
	// PublicURL — прямая ссылка (только для public)
	PublicURL string
}

// ReplaceParams — параметры замены файла.
type ReplaceParams struct {
	ResourceID int64
	File       *FileUpload
}

// ReplaceResult — результат замены файла.
type ReplaceResult struct {
	Resource *model.Resource
	OldKey   string
	NewKey   string
}

// DeleteResult — результат удаления.
type DeleteResult struct {
	AlreadyDeleted bool
}

// IngestionService — админские операции над ресурсами.
type IngestionService struct {
	resources     repository.ResourceRepository
	boards        *BoardService
	store         ObjectWriter
	maxUploadSize int64
	now           func() time.Time
	logger        *slog.Logger
}

// NewIngestionService создаёт сервис загрузки.
// maxUploadSize — потолок размера файла в байтах.
func NewIngestionService(
	resources repository.ResourceRepository,
	boards *BoardService,
	store ObjectWriter,
	maxUploadSize int64,
	logger *slog.Logger,
) *IngestionService {
	return &IngestionService{
		resources:     resources,
		boards:        boards,
		store:         store,
		maxUploadSize: maxUploadSize,
		now:           time.Now,
		logger:        logger.With(slog.String("component", "ingestion_service")),
	}
}

// requireAdmin — все операции сервиса только для одобренного администратора.
func requireAdmin(viewer model.Viewer) error {
	if !viewer.IsApprovedAdmin() {
		return forbidden("forbidden")
	}
	return nil
}

// checkFile проверяет наличие файла, размер и поддерживаемый тип.
func (s *IngestionService) checkFile(f *FileUpload) (model.Kind, error) {
	if f == nil || f.Body == nil || f.Filename == "" {
		return "", validation("file is required")
	}
	if f.Size > s.maxUploadSize {
		return "", newError(ErrTooLarge, fmt.Sprintf("file too large (max %d bytes)", s.maxUploadSize))
	}
	kind, ok := filekind.Infer(f.Filename)
	if !ok {
		return "", validation("unsupported file type")
	}
	return kind, nil
}

// objectKey формирует уникальный ключ объекта внутри префикса.
func (s *IngestionService) objectKey(prefix, filename string) string {
	token := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s/%d-%s-%s", prefix, s.now().UnixMilli(), token, filekind.SafeKeyName(filename))
}

// publishedDate разбирает дату публикации или возвращает сегодняшнюю (UTC).
func (s *IngestionService) publishedDate(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if len(raw) == len(openapi_types.DateFormat) {
		if t, err := time.Parse(openapi_types.DateFormat, raw); err == nil {
			return t
		}
	}
	now := s.now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// Ingest загружает файл и создаёт ресурс.
// Порядок проверок: права, заголовок, видимость, раздел, файл, размер, тип.
func (s *IngestionService) Ingest(ctx context.Context, p IngestParams, viewer model.Viewer) (*IngestResult, error) {
	if err := requireAdmin(viewer); err != nil {
		return nil, err
	}

	title := strings.TrimSpace(p.Title)
	if title == "" {
		return nil, validation("title is required")
	}

	vis := model.VisibilityPublic
	if p.Visibility != "" {
		vis = model.Visibility(p.Visibility)
		if !vis.Valid() {
			return nil, validation("invalid visibility")
		}
	}

	board, err := s.boards.GetBySlug(ctx, p.BoardSlug)
	if err != nil {
		return nil, err
	}
	if board == nil {
		return nil, validation("invalid boardSlug")
	}

	kind, err := s.checkFile(p.File)
	if err != nil {
		return nil, err
	}

	tier := objectstore.TierFor(vis)
	key := s.objectKey(board.Slug, p.File.Filename)
	if err := s.store.Put(ctx, tier, key, p.File.Body, p.File.Size, p.File.ContentType); err != nil {
		return nil, fmt.Errorf("загрузка объекта: %w", err)
	}
	uploadsTotal.WithLabelValues("create", string(tier)).Inc()
	uploadBytesTotal.Add(float64(p.File.Size))

	published := s.publishedDate(p.PublishedAt)
	size := p.File.Size
	res := &model.Resource{
		BoardID:          board.ID,
		Title:            title,
		Displayname:      optional(p.Displayname),
		Kind:             kind,
		Visibility:       vis,
		R2Key:            &key,
		OriginalFilename: &p.File.Filename,
		Mime:             optional(p.File.ContentType),
		SizeBytes:        &size,
		PublishedAt:      &published,
	}
	if err := s.resources.Create(ctx, res); err != nil {
		orphanObjectsTotal.Inc()
		s.logger.Warn("Объект записан, но метаданные не сохранены",
			slog.String("tier", string(tier)),
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("сохранение метаданных: %w", err)
	}

	s.logger.Info("Ресурс загружен",
		slog.Int64("resource_id", res.ID),
		slog.String("board", board.Slug),
		slog.String("visibility", string(vis)),
		slog.String("kind", string(kind)),
		slog.String("user_id", viewer.UserID),
	)

	result := &IngestResult{Resource: res}
	if tier == objectstore.TierPublic {
		result.PublicURL = s.store.PublicURL(key)
	}
	return result, nil
}

// Replace заменяет файл ресурса, сохраняя вид, видимость и раздел.
// Новый объект пишется в текущий уровень хранения ресурса.
// Старый объект не удаляется.
func (s *IngestionService) Replace(ctx context.Context, p ReplaceParams, viewer model.Viewer) (*ReplaceResult, error) {
	if err := requireAdmin(viewer); err != nil {
		return nil, err
	}
	if p.ResourceID <= 0 {
		return nil, validation("invalid resourceId")
	}

	newKind, err := s.checkFile(p.File)
	if err != nil {
		return nil, err
	}

	current, err := s.resources.GetByID(ctx, p.ResourceID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound("resource not found")
		}
		return nil, fmt.Errorf("получение ресурса %d: %w", p.ResourceID, err)
	}
	if current.IsDeleted() {
		return nil, validation("resource is deleted")
	}
	if current.Kind != newKind {
		return nil, validation(fmt.Sprintf("kind mismatch (current=%s, new=%s)", current.Kind, newKind))
	}

	board, err := s.boards.GetByID(ctx, current.BoardID)
	if err != nil {
		return nil, err
	}
	if board == nil {
		return nil, fmt.Errorf("раздел %d ресурса %d не найден", current.BoardID, current.ID)
	}

	tier := objectstore.TierFor(current.Visibility)
	prefix := fmt.Sprintf("%s/%d", board.Slug, current.ID)
	newKey := s.objectKey(prefix, p.File.Filename)
	if err := s.store.Put(ctx, tier, newKey, p.File.Body, p.File.Size, p.File.ContentType); err != nil {
		return nil, fmt.Errorf("загрузка объекта: %w", err)
	}
	uploadsTotal.WithLabelValues("replace", string(tier)).Inc()
	uploadBytesTotal.Add(float64(p.File.Size))

	updated, err := s.resources.ReplaceFile(ctx, current.ID, repository.FileUpdate{
		R2Key:            newKey,
		Mime:             p.File.ContentType,
		SizeBytes:        p.File.Size,
		OriginalFilename: p.File.Filename,
	})
	if err != nil {
		orphanObjectsTotal.Inc()
		s.logger.Warn("Объект записан, но ресурс не обновлён",
			slog.Int64("resource_id", current.ID),
			slog.String("tier", string(tier)),
			slog.String("key", newKey),
			slog.String("error", err.Error()),
		)
		if errors.Is(err, repository.ErrNotFound) {
			// Удалён параллельно
			return nil, validation("resource is deleted")
		}
		return nil, fmt.Errorf("обновление ресурса %d: %w", current.ID, err)
	}

	var oldKey string
	if current.R2Key != nil {
		oldKey = *current.R2Key
	}

	s.logger.Info("Файл ресурса заменён",
		slog.Int64("resource_id", current.ID),
		slog.String("old_key", oldKey),
		slog.String("new_key", newKey),
		slog.String("user_id", viewer.UserID),
	)
	return &ReplaceResult{Resource: updated, OldKey: oldKey, NewKey: newKey}, nil
}

// UpdateDisplayName меняет отображаемое имя. Пустая строка сбрасывает его.
func (s *IngestionService) UpdateDisplayName(ctx context.Context, id int64, displayname string, viewer model.Viewer) (*model.Resource, error) {
	if err := requireAdmin(viewer); err != nil {
		return nil, err
	}
	if id <= 0 {
		return nil, validation("invalid resourceId")
	}

	res, err := s.resources.UpdateDisplayName(ctx, id, optional(displayname))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound("resource not found")
		}
		return nil, fmt.Errorf("обновление ресурса %d: %w", id, err)
	}
	return res, nil
}

// Delete мягко удаляет ресурс. Повторное удаление не изменяет запись
// и возвращает AlreadyDeleted.
func (s *IngestionService) Delete(ctx context.Context, id int64, viewer model.Viewer) (*DeleteResult, error) {
	if err := requireAdmin(viewer); err != nil {
		return nil, err
	}
	if id <= 0 {
		return nil, validation("invalid resourceId")
	}

	current, err := s.resources.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound("resource not found")
		}
		return nil, fmt.Errorf("получение ресурса %d: %w", id, err)
	}
	if current.IsDeleted() {
		return &DeleteResult{AlreadyDeleted: true}, nil
	}

	changed, err := s.resources.SoftDelete(ctx, id, viewer.UserID)
	if err != nil {
		return nil, fmt.Errorf("удаление ресурса %d: %w", id, err)
	}
	if !changed {
		return &DeleteResult{AlreadyDeleted: true}, nil
	}

	s.logger.Info("Ресурс удалён",
		slog.Int64("resource_id", id),
		slog.String("user_id", viewer.UserID),
	)
	return &DeleteResult{}, nil
}
