// auth.go — middleware идентификации зрителя и доступа к админским маршрутам.
// Identity разрешает идентичность для каждого запроса и никогда не отклоняет его:
// отсутствующий или невалидный токен — анонимный зритель.
// RequireAdmin отклоняет запросы без одобренного администратора.
package middleware

import (
	"context"
	"net/http"

	apierrors "github.com/bigkaa/resportal/internal/api/errors"
	"github.com/bigkaa/resportal/internal/auth"
	"github.com/bigkaa/resportal/internal/domain/model"
)

// IdentityResolver — разрешение идентичности по заголовку Authorization.
type IdentityResolver interface {
	Resolve(ctx context.Context, authHeader string) auth.Resolution
}

// Identity возвращает middleware, помещающий auth.Resolution в контекст запроса.
func Identity(resolver IdentityResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res := resolver.Resolve(r.Context(), r.Header.Get("Authorization"))
			recordResolution(r.Context(), res)
			next.ServeHTTP(w, r.WithContext(auth.WithResolution(r.Context(), res)))
		})
	}
}

// SignInRecorder — учёт входов пользователей.
type SignInRecorder interface {
	Record(ctx context.Context, viewer model.Viewer)
}

// TrackSignIn возвращает middleware, отмечающий вход для запросов с валидным
// токеном и прочитанным профилем. Ответ не меняет.
// Должен использоваться ПОСЛЕ Identity.
func TrackSignIn(recorder SignInRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res := auth.ResolutionFromContext(r.Context())
			if res.Status == auth.CredentialValid && res.ProfileErr == nil {
				recorder.Record(r.Context(), res.Viewer)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin возвращает middleware для админских маршрутов.
// Должен использоваться ПОСЛЕ Identity.
//
//	нет токена          → 401 "missing auth token"
//	невалидный токен    → 401 "invalid token"
//	ошибка чтения профиля → 500
//	не одобренный admin → 403 "forbidden"
func RequireAdmin() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res := auth.ResolutionFromContext(r.Context())

			switch res.Status {
			case auth.CredentialMissing:
				apierrors.Unauthorized(w, "missing auth token")
				return
			case auth.CredentialInvalid:
				apierrors.Unauthorized(w, "invalid token")
				return
			}

			if res.ProfileErr != nil {
				apierrors.InternalError(w, "profile lookup failed")
				return
			}

			if !res.Viewer.IsApprovedAdmin() {
				apierrors.Forbidden(w, "forbidden")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
