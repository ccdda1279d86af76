// directory.go — листинг ресурсов с учётом политики видимости.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/bigkaa/resportal/internal/domain/model"
	"github.com/bigkaa/resportal/internal/domain/policy"
	"github.com/bigkaa/resportal/internal/repository"
)

// ListItem — элемент листинга. Ключи хранилища не раскрываются.
type ListItem struct {
	ID               int64              `json:"id"`
	Title            string             `json:"title"`
	Kind             model.Kind         `json:"kind"`
	Displayname      *string            `json:"displayname"`
	Date             openapi_types.Date `json:"date"`
	Visibility       model.Visibility   `json:"visibility"`
	CanView          bool               `json:"canView"`
	CanDownload      bool               `json:"canDownload"`
	BoardSlug        string             `json:"boardSlug"`
	BoardTitle       string             `json:"boardTitle"`
	OriginalFilename *string            `json:"originalFilename"`
}

// ListQuery — параметры листинга.
type ListQuery struct {
	// BoardSlug — slug раздела (пусто — все разделы)
	BoardSlug string
	// Page — номер страницы с 1 (0 — без пагинации, до ListLimit записей)
	Page int
}

// ListResult — результат листинга.
// Total, Page и PageSize заполняются только при пагинации.
type ListResult struct {
	Items    []ListItem
	Paged    bool
	Total    int
	Page     int
	PageSize int
}

// DirectoryService — листинг ресурсов.
type DirectoryService struct {
	resources repository.ResourceRepository
	boards    *BoardService
	policy    policy.Policy
	listLimit int
	pageSize  int
	logger    *slog.Logger
}

// NewDirectoryService создаёт сервис листинга.
// listLimit — максимум записей без пагинации, pageSize — размер страницы.
func NewDirectoryService(
	resources repository.ResourceRepository,
	boards *BoardService,
	pol policy.Policy,
	listLimit, pageSize int,
	logger *slog.Logger,
) *DirectoryService {
	return &DirectoryService{
		resources: resources,
		boards:    boards,
		policy:    pol,
		listLimit: listLimit,
		pageSize:  pageSize,
		logger:    logger.With(slog.String("component", "directory_service")),
	}
}

// List возвращает активные ресурсы, видимые зрителю.
// Неизвестный slug раздела даёт пустой результат, а не ошибку.
func (s *DirectoryService) List(ctx context.Context, q ListQuery, viewer model.Viewer) (*ListResult, error) {
	result := &ListResult{Items: []ListItem{}}
	if q.Page > 0 {
		result.Paged = true
		result.Page = q.Page
		result.PageSize = s.pageSize
	}

	params := repository.ListParams{
		Visibilities: s.policy.AllowedVisibilities(viewer),
		Limit:        s.listLimit,
	}
	if result.Paged {
		params.Limit = s.pageSize
		params.Offset = (q.Page - 1) * s.pageSize
	}

	if q.BoardSlug != "" {
		board, err := s.boards.GetBySlug(ctx, q.BoardSlug)
		if err != nil {
			return nil, err
		}
		if board == nil {
			s.logger.Debug("Листинг неизвестного раздела", slog.String("board", q.BoardSlug))
			return result, nil
		}
		params.BoardID = &board.ID
	}

	entries, err := s.resources.List(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("листинг ресурсов: %w", err)
	}

	for _, e := range entries {
		result.Items = append(result.Items, s.toItem(e, viewer))
	}

	if result.Paged {
		total, err := s.resources.Count(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("подсчёт ресурсов: %w", err)
		}
		result.Total = total
	}

	return result, nil
}

// toItem строит элемент листинга с производными правами.
// Попадание в листинг уже означает право просмотра.
func (s *DirectoryService) toItem(e *model.ResourceEntry, viewer model.Viewer) ListItem {
	canDownload := s.policy.CanAccess(e.Visibility, e.IsDeleted(), viewer, policy.ModeDownload) &&
		e.HasObject()

	return ListItem{
		ID:               e.ID,
		Title:            e.Title,
		Kind:             e.Kind,
		Displayname:      e.Displayname,
		Date:             itemDate(&e.Resource),
		Visibility:       e.Visibility,
		CanView:          true,
		CanDownload:      canDownload,
		BoardSlug:        e.BoardSlug,
		BoardTitle:       e.BoardTitle,
		OriginalFilename: e.OriginalFilename,
	}
}

// itemDate — дата публикации, при её отсутствии дата создания (UTC).
func itemDate(r *model.Resource) openapi_types.Date {
	t := r.CreatedAt
	if r.PublishedAt != nil {
		t = *r.PublishedAt
	}
	t = t.UTC()
	return openapi_types.Date{Time: time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)}
}
