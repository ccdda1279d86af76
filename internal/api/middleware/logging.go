// logging.go — журнал HTTP-запросов resportal через slog.
// Кроме статуса и длительности пишет, кем был зритель: состояние токена,
// user_id, роль и одобрение. Identity дописывает их в requestTrace,
// созданный RequestLogger, поэтому логгер может стоять снаружи Identity.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/bigkaa/resportal/internal/auth"
)

// statusRecorder запоминает статус и объём ответа.
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func newStatusRecorder(w http.ResponseWriter) *statusRecorder {
	return &statusRecorder{ResponseWriter: w, status: http.StatusOK}
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	n, err := sr.ResponseWriter.Write(b)
	sr.bytes += int64(n)
	return n, err
}

// Unwrap нужен http.ResponseController (продление сроков загрузки).
func (sr *statusRecorder) Unwrap() http.ResponseWriter {
	return sr.ResponseWriter
}

// requestTrace — изменяемые сведения о запросе для журнала.
type requestTrace struct {
	resolved   bool
	resolution auth.Resolution
}

type traceKey struct{}

// recordResolution сохраняет результат разрешения идентичности в журнал запроса.
// Без RequestLogger в цепочке ничего не делает.
func recordResolution(ctx context.Context, res auth.Resolution) {
	if tr, ok := ctx.Value(traceKey{}).(*requestTrace); ok {
		tr.resolved = true
		tr.resolution = res
	}
}

// identityAttrs — атрибуты зрителя; пусто для маршрутов без Identity (health, metrics).
func (tr *requestTrace) identityAttrs() []slog.Attr {
	if !tr.resolved {
		return nil
	}
	res := tr.resolution
	attrs := []slog.Attr{slog.String("credential", res.Status.String())}
	if res.Viewer.LoggedIn {
		attrs = append(attrs,
			slog.String("user_id", res.Viewer.UserID),
			slog.String("role", string(res.Viewer.Role)),
			slog.Bool("approved", res.Viewer.Approved),
		)
	}
	if res.ProfileErr != nil {
		attrs = append(attrs, slog.String("profile_error", res.ProfileErr.Error()))
	}
	return attrs
}

// RequestLogger возвращает middleware журнала запросов.
// Уровень: ERROR для 5xx, WARN для 4xx, иначе INFO.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := newStatusRecorder(w)
			trace := &requestTrace{}

			next.ServeHTTP(rec, r.WithContext(context.WithValue(r.Context(), traceKey{}, trace)))

			level := slog.LevelInfo
			switch {
			case rec.status >= 500:
				level = slog.LevelError
			case rec.status >= 400:
				level = slog.LevelWarn
			}

			attrs := []slog.Attr{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rec.status),
				slog.Duration("duration", time.Since(start)),
				slog.Int64("bytes", rec.bytes),
				slog.String("remote_addr", r.RemoteAddr),
			}
			if id := chimw.GetReqID(r.Context()); id != "" {
				attrs = append(attrs, slog.String("request_id", id))
			}
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					attrs = append(attrs, slog.String("route", pattern))
				}
			}
			attrs = append(attrs, trace.identityAttrs()...)

			logger.LogAttrs(r.Context(), level, "HTTP запрос", attrs...)
		})
	}
}
