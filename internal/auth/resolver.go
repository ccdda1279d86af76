package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bigkaa/resportal/internal/domain/model"
	"github.com/bigkaa/resportal/internal/repository"
)

// CredentialStatus — состояние предъявленных учётных данных.
type CredentialStatus int

const (
	// CredentialMissing — токен не предъявлен.
	CredentialMissing CredentialStatus = iota
	// CredentialInvalid — токен не прошёл проверку.
	CredentialInvalid
	// CredentialValid — токен валиден.
	CredentialValid
)

func (s CredentialStatus) String() string {
	switch s {
	case CredentialMissing:
		return "missing"
	case CredentialInvalid:
		return "invalid"
	case CredentialValid:
		return "valid"
	}
	return "unknown"
}

// TokenVerifier — проверка bearer-токена.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*Claims, error)
}

// ProfileStore — чтение профилей пользователей.
type ProfileStore interface {
	GetByID(ctx context.Context, id string) (*model.Profile, error)
}

// Resolution — результат разрешения идентичности.
type Resolution struct {
	Viewer model.Viewer
	Status CredentialStatus
	// ProfileErr — ошибка хранилища профилей (токен валиден, профиль не прочитан).
	// Viewer в этом случае — вошедший неодобренный member.
	ProfileErr error
}

// Resolver вычисляет Viewer по заголовку Authorization.
// Отсутствующий или невалидный токен даёт анонимного зрителя, не ошибку.
// Решения не кэшируются: профиль читается на каждый запрос.
type Resolver struct {
	verifier TokenVerifier
	profiles ProfileStore
	logger   *slog.Logger
}

// NewResolver создаёт Resolver.
func NewResolver(verifier TokenVerifier, profiles ProfileStore, logger *slog.Logger) *Resolver {
	return &Resolver{
		verifier: verifier,
		profiles: profiles,
		logger:   logger.With(slog.String("component", "identity")),
	}
}

// Resolve разрешает идентичность по значению заголовка Authorization.
func (r *Resolver) Resolve(ctx context.Context, authHeader string) Resolution {
	token := BearerToken(authHeader)
	if token == "" {
		return Resolution{Viewer: model.Anonymous(), Status: CredentialMissing}
	}

	claims, err := r.verifier.Verify(ctx, token)
	if err != nil {
		return Resolution{Viewer: model.Anonymous(), Status: CredentialInvalid}
	}

	viewer := model.Viewer{
		LoggedIn: true,
		UserID:   claims.Subject,
		Email:    claims.Email,
		Role:     model.RoleMember,
	}

	profile, err := r.profiles.GetByID(ctx, claims.Subject)
	switch {
	case err == nil:
		viewer.Role = profile.Role
		viewer.Approved = profile.Approved
	case errors.Is(err, repository.ErrNotFound):
		// Вошёл, но профиля нет — недоверенный member
	default:
		r.logger.Warn("Не удалось прочитать профиль",
			slog.String("user_id", claims.Subject),
			slog.String("error", err.Error()),
		)
		return Resolution{
			Viewer:     viewer,
			Status:     CredentialValid,
			ProfileErr: fmt.Errorf("чтение профиля %s: %w", claims.Subject, err),
		}
	}

	return Resolution{Viewer: viewer, Status: CredentialValid}
}

// --- Context helpers ---

type contextKey string

const contextKeyResolution contextKey = "identity_resolution"

// WithResolution помещает результат разрешения в контекст.
func WithResolution(ctx context.Context, res Resolution) context.Context {
	return context.WithValue(ctx, contextKeyResolution, res)
}

// ResolutionFromContext извлекает результат разрешения.
// Без middleware возвращает анонимного зрителя.
func ResolutionFromContext(ctx context.Context) Resolution {
	res, ok := ctx.Value(contextKeyResolution).(Resolution)
	if !ok {
		return Resolution{Viewer: model.Anonymous(), Status: CredentialMissing}
	}
	return res
}

// ViewerFromContext извлекает Viewer из контекста запроса.
func ViewerFromContext(ctx context.Context) model.Viewer {
	return ResolutionFromContext(ctx).Viewer
}
