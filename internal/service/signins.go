// signins.go — учёт входов пользователей: email из токена и время
// последнего запроса с валидным токеном в таблице profiles.
// Разрешение идентичности остаётся только чтением; запись делает этот сервис.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/resportal/internal/domain/model"
)

// signInCacheSize — число пользователей, для которых помнится последняя запись.
const signInCacheSize = 4096

var signInWritesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "rp_sign_in_writes_total",
		Help: "Записи входа в profiles по результату (ok, error)",
	},
	[]string{"result"},
)

// SignInStore — запись входа в хранилище профилей.
type SignInStore interface {
	RecordSignIn(ctx context.Context, id, email string) error
}

// SignInService записывает вход не чаще раза в interval на пользователя.
// Смена email записывается сразу.
type SignInService struct {
	store  SignInStore
	seen   *expirable.LRU[string, string]
	logger *slog.Logger
}

// NewSignInService создаёт сервис учёта входов.
func NewSignInService(store SignInStore, interval time.Duration, logger *slog.Logger) *SignInService {
	return &SignInService{
		store:  store,
		seen:   expirable.NewLRU[string, string](signInCacheSize, nil, interval),
		logger: logger.With(slog.String("component", "sign_in_service")),
	}
}

// Record отмечает вход вошедшего зрителя. Ошибка записи только логируется
// и повторяется на следующем запросе.
func (s *SignInService) Record(ctx context.Context, viewer model.Viewer) {
	if !viewer.LoggedIn || viewer.UserID == "" {
		return
	}
	if email, ok := s.seen.Get(viewer.UserID); ok && email == viewer.Email {
		return
	}
	if err := s.store.RecordSignIn(ctx, viewer.UserID, viewer.Email); err != nil {
		signInWritesTotal.WithLabelValues("error").Inc()
		s.logger.Warn("Не удалось записать вход пользователя",
			slog.String("user_id", viewer.UserID),
			slog.String("error", err.Error()),
		)
		return
	}
	signInWritesTotal.WithLabelValues("ok").Inc()
	s.seen.Add(viewer.UserID, viewer.Email)
}
