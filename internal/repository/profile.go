package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/resportal/internal/domain/model"
)

const profileColumns = `id, role, approved, COALESCE(email, ''), last_sign_in_at, created_at, updated_at`

// ProfileUpdate — частичное обновление профиля. nil — поле не меняется.
type ProfileUpdate struct {
	ID       string
	Role     *model.Role
	Approved *bool
}

// ProfileRepository — доступ к профилям пользователей.
type ProfileRepository interface {
	GetByID(ctx context.Context, id string) (*model.Profile, error)
	// List возвращает страницу профилей и общее количество.
	// query — подстрока email без учёта регистра (пусто — все профили).
	List(ctx context.Context, query string, limit, offset int) ([]*model.Profile, int, error)
	// Upsert создаёт профиль со значениями по умолчанию или обновляет заданные поля.
	Upsert(ctx context.Context, upd ProfileUpdate) (*model.Profile, error)
	// RecordSignIn отмечает запрос с валидным токеном: создаёт профиль
	// по умолчанию при первом входе, обновляет email и last_sign_in_at.
	RecordSignIn(ctx context.Context, id, email string) error
}

type profileRepo struct {
	db DBTX
}

// NewProfileRepository создаёт репозиторий профилей.
func NewProfileRepository(db DBTX) ProfileRepository {
	return &profileRepo{db: db}
}

func scanProfile(row pgx.Row) (*model.Profile, error) {
	p := &model.Profile{}
	var role string
	if err := row.Scan(&p.ID, &role, &p.Approved, &p.Email, &p.LastSignInAt, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.Role = model.ParseRole(role)
	return p, nil
}

// GetByID возвращает профиль или ErrNotFound.
func (r *profileRepo) GetByID(ctx context.Context, id string) (*model.Profile, error) {
	query := fmt.Sprintf(`SELECT %s FROM profiles WHERE id = $1`, profileColumns)
	p, err := scanProfile(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения профиля: %w", err)
	}
	return p, nil
}

// likeEscaper экранирует спецсимволы шаблона ILIKE.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (r *profileRepo) List(ctx context.Context, query string, limit, offset int) ([]*model.Profile, int, error) {
	where := ""
	args := []any{limit, offset}
	if query != "" {
		where = `WHERE email ILIKE $3`
		args = append(args, "%"+likeEscaper.Replace(query)+"%")
	}

	rows, err := r.db.Query(ctx, fmt.Sprintf(
		`SELECT %s FROM profiles %s ORDER BY created_at DESC, id ASC LIMIT $1 OFFSET $2`,
		profileColumns, where,
	), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка получения списка профилей: %w", err)
	}
	defer rows.Close()

	var result []*model.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("ошибка сканирования профиля: %w", err)
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("ошибка итерации результатов: %w", err)
	}

	countQuery := `SELECT COUNT(*) FROM profiles`
	var countArgs []any
	if query != "" {
		countQuery += ` WHERE email ILIKE $1`
		countArgs = append(countArgs, args[2])
	}
	var total int
	if err := r.db.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("ошибка подсчёта профилей: %w", err)
	}
	return result, total, nil
}

// Upsert вставляет или частично обновляет профиль.
func (r *profileRepo) Upsert(ctx context.Context, upd ProfileUpdate) (*model.Profile, error) {
	var role *string
	if upd.Role != nil {
		s := string(*upd.Role)
		role = &s
	}

	query := fmt.Sprintf(`
		INSERT INTO profiles (id, role, approved)
		VALUES ($1, COALESCE($2::text, 'member'), COALESCE($3::boolean, false))
		ON CONFLICT (id) DO UPDATE SET
			role = COALESCE($2::text, profiles.role),
			approved = COALESCE($3::boolean, profiles.approved),
			updated_at = now()
		RETURNING %s`, profileColumns)

	p, err := scanProfile(r.db.QueryRow(ctx, query, upd.ID, role, upd.Approved))
	if err != nil {
		return nil, fmt.Errorf("ошибка сохранения профиля: %w", err)
	}
	return p, nil
}

func (r *profileRepo) RecordSignIn(ctx context.Context, id, email string) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO profiles (id, email, last_sign_in_at)
		VALUES ($1, NULLIF($2, ''), now())
		ON CONFLICT (id) DO UPDATE SET
			email = COALESCE(NULLIF($2, ''), profiles.email),
			last_sign_in_at = now()`, id, email)
	if err != nil {
		return fmt.Errorf("ошибка записи входа %s: %w", id, err)
	}
	return nil
}
