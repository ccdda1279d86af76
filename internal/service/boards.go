// Пакет service — бизнес-логика resportal.
// BoardService — справочник разделов с LRU-кэшем и TTL.
// Разделы — статичные справочные данные, поэтому кэшируются;
// идентичности и решения политики не кэшируются никогда.
package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/resportal/internal/domain/model"
	"github.com/bigkaa/resportal/internal/repository"
)

// Prometheus-метрики кэша разделов.
var (
	boardCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rp_board_cache_hits_total",
		Help: "Общее количество попаданий в кэш разделов.",
	})
	boardCacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rp_board_cache_misses_total",
		Help: "Общее количество промахов кэша разделов.",
	})
)

// boardCacheSize — максимальное число записей кэша разделов.
const boardCacheSize = 256

// BoardService — доступ к разделам через кэш.
// Ключи кэша: "slug:<slug>" и "id:<id>". Отсутствующие разделы не кэшируются.
type BoardService struct {
	repo  repository.BoardRepository
	cache *expirable.LRU[string, *model.Board]
}

// NewBoardService создаёт сервис разделов с кэшем на ttl.
func NewBoardService(repo repository.BoardRepository, ttl time.Duration) *BoardService {
	return &BoardService{
		repo:  repo,
		cache: expirable.NewLRU[string, *model.Board](boardCacheSize, nil, ttl),
	}
}

func slugKey(slug string) string { return "slug:" + slug }
func idKey(id int64) string      { return "id:" + strconv.FormatInt(id, 10) }

func (s *BoardService) lookup(key string) (*model.Board, bool) {
	b, ok := s.cache.Get(key)
	if ok {
		boardCacheHitsTotal.Inc()
		return b, true
	}
	boardCacheMissesTotal.Inc()
	return nil, false
}

func (s *BoardService) remember(b *model.Board) {
	s.cache.Add(slugKey(b.Slug), b)
	s.cache.Add(idKey(b.ID), b)
}

// GetBySlug возвращает раздел по slug.
// Неизвестный slug — (nil, nil): вызывающий решает, ошибка это или пустой результат.
func (s *BoardService) GetBySlug(ctx context.Context, slug string) (*model.Board, error) {
	if b, ok := s.lookup(slugKey(slug)); ok {
		return b, nil
	}

	b, err := s.repo.GetBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("получение раздела %q: %w", slug, err)
	}
	s.remember(b)
	return b, nil
}

// GetByID возвращает раздел по id. Неизвестный id — (nil, nil).
func (s *BoardService) GetByID(ctx context.Context, id int64) (*model.Board, error) {
	if b, ok := s.lookup(idKey(id)); ok {
		return b, nil
	}

	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("получение раздела %d: %w", id, err)
	}
	s.remember(b)
	return b, nil
}

// List возвращает все разделы, отсортированные по заголовку.
// Результат прогревает кэш.
func (s *BoardService) List(ctx context.Context) ([]*model.Board, error) {
	boards, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("получение списка разделов: %w", err)
	}
	for _, b := range boards {
		s.remember(b)
	}
	return boards, nil
}
