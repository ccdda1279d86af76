// admin_users.go — сервис управления профилями пользователей (роль, одобрение).
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/bigkaa/resportal/internal/domain/model"
	"github.com/bigkaa/resportal/internal/repository"
)

// Границы пагинации списка пользователей.
const (
	DefaultUsersPerPage = 50
	MaxUsersPerPage     = 200
)

// maxUserQueryLen — предел длины строки поиска по email (в символах).
const maxUserQueryLen = 254

// UserQuery — параметры списка профилей.
type UserQuery struct {
	// Query — подстрока email без учёта регистра; пробелы по краям отбрасываются
	Query   string
	Page    int
	PerPage int
}

// UserUpdate — запрос на изменение профиля.
// nil-поля не изменяются.
type UserUpdate struct {
	UserID   string
	Role     *string
	Approved *bool
}

// UserPage — страница профилей.
type UserPage struct {
	Users   []*model.Profile
	Page    int
	PerPage int
	Total   int
}

// AdminUserService — управление профилями.
type AdminUserService struct {
	profiles repository.ProfileRepository
	logger   *slog.Logger
}

// NewAdminUserService создаёт сервис управления пользователями.
func NewAdminUserService(profiles repository.ProfileRepository, logger *slog.Logger) *AdminUserService {
	return &AdminUserService{
		profiles: profiles,
		logger:   logger.With(slog.String("component", "admin_users_service")),
	}
}

// ListUsers возвращает страницу профилей.
// page < 1 трактуется как 1; perPage вне 1..200 — ошибка валидации, 0 — значение по умолчанию.
func (s *AdminUserService) ListUsers(ctx context.Context, q UserQuery, viewer model.Viewer) (*UserPage, error) {
	if err := requireAdmin(viewer); err != nil {
		return nil, err
	}
	page, perPage := q.Page, q.PerPage
	query := strings.TrimSpace(q.Query)
	if utf8.RuneCountInString(query) > maxUserQueryLen {
		return nil, validation(fmt.Sprintf("q must be at most %d characters", maxUserQueryLen))
	}
	if page < 1 {
		page = 1
	}
	if perPage == 0 {
		perPage = DefaultUsersPerPage
	}
	if perPage < 1 || perPage > MaxUsersPerPage {
		return nil, validation(fmt.Sprintf("perPage must be between 1 and %d", MaxUsersPerPage))
	}

	users, total, err := s.profiles.List(ctx, query, perPage, (page-1)*perPage)
	if err != nil {
		return nil, fmt.Errorf("получение списка профилей: %w", err)
	}
	if users == nil {
		users = []*model.Profile{}
	}
	return &UserPage{Users: users, Page: page, PerPage: perPage, Total: total}, nil
}

// UpdateUser частично обновляет профиль. Отсутствующий профиль создаётся.
func (s *AdminUserService) UpdateUser(ctx context.Context, upd UserUpdate, viewer model.Viewer) (*model.Profile, error) {
	if err := requireAdmin(viewer); err != nil {
		return nil, err
	}
	if upd.UserID == "" {
		return nil, validation("userId is required")
	}
	if upd.Role == nil && upd.Approved == nil {
		return nil, validation("nothing to update")
	}

	pu := repository.ProfileUpdate{ID: upd.UserID, Approved: upd.Approved}
	if upd.Role != nil {
		if !model.IsValidRole(*upd.Role) {
			return nil, validation("invalid role")
		}
		role := model.Role(*upd.Role)
		pu.Role = &role
	}

	profile, err := s.profiles.Upsert(ctx, pu)
	if err != nil {
		return nil, fmt.Errorf("обновление профиля %s: %w", upd.UserID, err)
	}

	s.logger.Info("Профиль пользователя обновлён",
		slog.String("user_id", upd.UserID),
		slog.String("role", string(profile.Role)),
		slog.Bool("approved", profile.Approved),
		slog.String("updated_by", viewer.UserID),
	)
	return profile, nil
}
