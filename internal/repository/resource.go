package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/resportal/internal/domain/model"
)

// resourceColumns — столбцы таблицы resources для SELECT-запросов.
const resourceColumns = `r.id, r.board_id, r.title, r.displayname, r.kind, r.visibility,
	r.r2_key, r.original_filename, r.mime, r.size_bytes, r.published_at,
	r.created_at, r.updated_at, r.deleted_at, r.deleted_by`

// listingOrder — порядок листинга: дата публикации (NULL в конце),
// затем время создания. id разрешает полные совпадения.
const listingOrder = `ORDER BY r.published_at DESC NULLS LAST, r.created_at DESC, r.id DESC`

// ListParams — параметры листинга ресурсов.
// Удалённые записи исключаются всегда.
type ListParams struct {
	// BoardID — фильтр по разделу (nil — все разделы)
	BoardID *int64
	// Visibilities — допустимые уровни видимости. Пустой набор — пустой результат.
	Visibilities []model.Visibility
	Limit        int
	Offset       int
}

// FileUpdate — новые атрибуты объекта при замене файла.
type FileUpdate struct {
	R2Key            string
	Mime             string
	SizeBytes        int64
	OriginalFilename string
}

// ResourceRepository — доступ к ресурсам.
type ResourceRepository interface {
	// GetByID возвращает ресурс по id, включая удалённые.
	GetByID(ctx context.Context, id int64) (*model.Resource, error)
	// List возвращает активные ресурсы с данными раздела.
	List(ctx context.Context, params ListParams) ([]*model.ResourceEntry, error)
	// Count возвращает число активных ресурсов по тем же фильтрам.
	Count(ctx context.Context, params ListParams) (int, error)
	// Create вставляет ресурс. Заполняет ID, CreatedAt, UpdatedAt.
	Create(ctx context.Context, res *model.Resource) error
	// UpdateDisplayName меняет отображаемое имя активного ресурса (nil — сброс).
	UpdateDisplayName(ctx context.Context, id int64, displayname *string) (*model.Resource, error)
	// ReplaceFile меняет атрибуты объекта активного ресурса.
	// Вид, видимость и раздел не изменяются.
	ReplaceFile(ctx context.Context, id int64, upd FileUpdate) (*model.Resource, error)
	// SoftDelete помечает ресурс удалённым.
	// Возвращает false, если ресурс уже был удалён (условное обновление).
	SoftDelete(ctx context.Context, id int64, deletedBy string) (bool, error)
}

type resourceRepo struct {
	db DBTX
}

// NewResourceRepository создаёт репозиторий ресурсов.
func NewResourceRepository(db DBTX) ResourceRepository {
	return &resourceRepo{db: db}
}

// scanResource сканирует строку в порядке resourceColumns.
// extra — дополнительные столбцы после основных.
func scanResource(row pgx.Row, extra ...any) (*model.Resource, error) {
	res := &model.Resource{}
	var kind, vis string
	dest := []any{
		&res.ID, &res.BoardID, &res.Title, &res.Displayname, &kind, &vis,
		&res.R2Key, &res.OriginalFilename, &res.Mime, &res.SizeBytes, &res.PublishedAt,
		&res.CreatedAt, &res.UpdatedAt, &res.DeletedAt, &res.DeletedBy,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	res.Kind = model.Kind(kind)
	res.Visibility = model.Visibility(vis)
	return res, nil
}

// GetByID возвращает ресурс по id или ErrNotFound.
func (r *resourceRepo) GetByID(ctx context.Context, id int64) (*model.Resource, error) {
	query := fmt.Sprintf(`SELECT %s FROM resources r WHERE r.id = $1`, resourceColumns)

	res, err := scanResource(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения ресурса: %w", err)
	}
	return res, nil
}

// List выполняет листинг с фильтрами и пагинацией.
func (r *resourceRepo) List(ctx context.Context, params ListParams) ([]*model.ResourceEntry, error) {
	if len(params.Visibilities) == 0 {
		return nil, nil
	}

	where, args := buildResourceWhere(params, 1)
	argNum := len(args) + 1

	query := fmt.Sprintf(
		`SELECT %s, b.slug, b.title
		FROM resources r JOIN boards b ON b.id = r.board_id
		%s %s LIMIT $%d OFFSET $%d`,
		resourceColumns, where, listingOrder, argNum, argNum+1,
	)
	args = append(args, params.Limit, params.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка листинга ресурсов: %w", err)
	}
	defer rows.Close()

	var result []*model.ResourceEntry
	for rows.Next() {
		e := &model.ResourceEntry{}
		res, err := scanResource(rows, &e.BoardSlug, &e.BoardTitle)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования ресурса: %w", err)
		}
		e.Resource = *res
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка итерации результатов: %w", err)
	}
	return result, nil
}

// Count возвращает общее количество ресурсов по фильтрам листинга.
func (r *resourceRepo) Count(ctx context.Context, params ListParams) (int, error) {
	if len(params.Visibilities) == 0 {
		return 0, nil
	}

	where, args := buildResourceWhere(params, 1)
	query := fmt.Sprintf(`SELECT COUNT(*) FROM resources r %s`, where)

	var total int
	if err := r.db.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта ресурсов: %w", err)
	}
	return total, nil
}

// Create вставляет новый ресурс.
func (r *resourceRepo) Create(ctx context.Context, res *model.Resource) error {
	query := `
		INSERT INTO resources (
			board_id, title, displayname, kind, visibility,
			r2_key, original_filename, mime, size_bytes, published_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		res.BoardID, res.Title, res.Displayname, string(res.Kind), string(res.Visibility),
		res.R2Key, res.OriginalFilename, res.Mime, res.SizeBytes, res.PublishedAt,
	).Scan(&res.ID, &res.CreatedAt, &res.UpdatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("раздел %d: %w", res.BoardID, ErrNotFound)
		}
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("ошибка создания ресурса: %w", err)
	}
	return nil
}

// UpdateDisplayName обновляет displayname активного ресурса.
func (r *resourceRepo) UpdateDisplayName(ctx context.Context, id int64, displayname *string) (*model.Resource, error) {
	query := fmt.Sprintf(`
		UPDATE resources r
		SET displayname = $2, updated_at = now()
		WHERE r.id = $1 AND r.deleted_at IS NULL
		RETURNING %s`, resourceColumns)

	res, err := scanResource(r.db.QueryRow(ctx, query, id, displayname))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка обновления ресурса: %w", err)
	}
	return res, nil
}

// ReplaceFile обновляет ключ объекта и его атрибуты.
func (r *resourceRepo) ReplaceFile(ctx context.Context, id int64, upd FileUpdate) (*model.Resource, error) {
	query := fmt.Sprintf(`
		UPDATE resources r
		SET r2_key = $2, mime = $3, size_bytes = $4, original_filename = $5, updated_at = now()
		WHERE r.id = $1 AND r.deleted_at IS NULL
		RETURNING %s`, resourceColumns)

	res, err := scanResource(r.db.QueryRow(ctx, query,
		id, upd.R2Key, upd.Mime, upd.SizeBytes, upd.OriginalFilename,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка замены файла ресурса: %w", err)
	}
	return res, nil
}

// SoftDelete выставляет deleted_at/deleted_by только для активной записи,
// поэтому повторное или параллельное удаление не изменяет строку.
func (r *resourceRepo) SoftDelete(ctx context.Context, id int64, deletedBy string) (bool, error) {
	query := `
		UPDATE resources
		SET deleted_at = $2, deleted_by = $3
		WHERE id = $1 AND deleted_at IS NULL`

	tag, err := r.db.Exec(ctx, query, id, time.Now().UTC(), deletedBy)
	if err != nil {
		return false, fmt.Errorf("ошибка удаления ресурса: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// buildResourceWhere строит WHERE-условие листинга.
// Условие deleted_at IS NULL присутствует всегда.
// startArg — номер первого $-параметра.
func buildResourceWhere(params ListParams, startArg int) (whereClause string, args []any) {
	conditions := []string{"r.deleted_at IS NULL"}
	argNum := startArg

	vis := make([]string, 0, len(params.Visibilities))
	for _, v := range params.Visibilities {
		vis = append(vis, string(v))
	}
	conditions = append(conditions, fmt.Sprintf("r.visibility = ANY($%d)", argNum))
	args = append(args, vis)
	argNum++

	if params.BoardID != nil {
		conditions = append(conditions, fmt.Sprintf("r.board_id = $%d", argNum))
		args = append(args, *params.BoardID)
	}

	return "WHERE " + strings.Join(conditions, " AND "), args
}
