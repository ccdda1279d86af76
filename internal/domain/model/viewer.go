package model

import "time"

// Role — роль пользователя в профиле.
type Role string

const (
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
)

// ParseRole преобразует строку профиля в роль.
// Неизвестное значение трактуется как member.
func ParseRole(s string) Role {
	if Role(s) == RoleAdmin {
		return RoleAdmin
	}
	return RoleMember
}

// IsValidRole проверяет, является ли строка допустимой ролью.
func IsValidRole(s string) bool {
	return Role(s) == RoleMember || Role(s) == RoleAdmin
}

// Profile — запись таблицы profiles (id = id пользователя провайдера аутентификации).
type Profile struct {
	ID       string
	Role     Role
	Approved bool
	// Email — из последнего предъявленного токена; пусто, если провайдер его не выдаёт
	Email string
	// LastSignInAt — последний запрос с валидным токеном (с точностью до интервала записи)
	LastSignInAt *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Viewer — идентичность зрителя, вычисляемая на каждый запрос.
// Не сохраняется.
type Viewer struct {
	LoggedIn bool
	UserID   string
	Email    string
	Role     Role
	Approved bool
}

// Anonymous возвращает идентичность анонимного зрителя.
func Anonymous() Viewer {
	return Viewer{Role: RoleMember}
}

// IsApprovedAdmin — вошедший, одобренный администратор.
func (v Viewer) IsApprovedAdmin() bool {
	return v.LoggedIn && v.Approved && v.Role == RoleAdmin
}
