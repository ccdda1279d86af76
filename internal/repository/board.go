package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/resportal/internal/domain/model"
)

const boardColumns = `id, slug, title, visibility_default`

// BoardRepository — доступ к разделам (read-only справочник).
type BoardRepository interface {
	GetBySlug(ctx context.Context, slug string) (*model.Board, error)
	GetByID(ctx context.Context, id int64) (*model.Board, error)
	// List возвращает все разделы, отсортированные по заголовку.
	List(ctx context.Context) ([]*model.Board, error)
}

type boardRepo struct {
	db DBTX
}

// NewBoardRepository создаёт репозиторий разделов.
func NewBoardRepository(db DBTX) BoardRepository {
	return &boardRepo{db: db}
}

func scanBoard(row pgx.Row) (*model.Board, error) {
	b := &model.Board{}
	var vis string
	if err := row.Scan(&b.ID, &b.Slug, &b.Title, &vis); err != nil {
		return nil, err
	}
	b.VisibilityDefault = model.Visibility(vis)
	return b, nil
}

// GetBySlug возвращает раздел по slug или ErrNotFound.
func (r *boardRepo) GetBySlug(ctx context.Context, slug string) (*model.Board, error) {
	query := fmt.Sprintf(`SELECT %s FROM boards WHERE slug = $1`, boardColumns)
	b, err := scanBoard(r.db.QueryRow(ctx, query, slug))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения раздела: %w", err)
	}
	return b, nil
}

// GetByID возвращает раздел по id или ErrNotFound.
func (r *boardRepo) GetByID(ctx context.Context, id int64) (*model.Board, error) {
	query := fmt.Sprintf(`SELECT %s FROM boards WHERE id = $1`, boardColumns)
	b, err := scanBoard(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения раздела: %w", err)
	}
	return b, nil
}

func (r *boardRepo) List(ctx context.Context) ([]*model.Board, error) {
	query := fmt.Sprintf(`SELECT %s FROM boards ORDER BY title ASC, id ASC`, boardColumns)
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка разделов: %w", err)
	}
	defer rows.Close()

	var result []*model.Board
	for rows.Next() {
		b, err := scanBoard(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования раздела: %w", err)
		}
		result = append(result, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка итерации результатов: %w", err)
	}
	return result, nil
}
