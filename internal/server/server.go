// Пакет server — HTTP-сервер resportal с graceful shutdown.
// Без TLS — TLS termination на балансировщике.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	apierrors "github.com/bigkaa/resportal/internal/api/errors"
	"github.com/bigkaa/resportal/internal/api/handlers"
	"github.com/bigkaa/resportal/internal/api/middleware"
	"github.com/bigkaa/resportal/internal/config"
)

// Server — HTTP-сервер resportal.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// New создаёт HTTP-сервер с настроенными маршрутами и middleware.
// resolver — разрешение идентичности зрителя для каждого запроса;
// signIns — учёт входов (nil — не ведётся).
func New(
	cfg *config.Config,
	logger *slog.Logger,
	api *handlers.APIHandler,
	health *handlers.HealthHandler,
	resolver middleware.IdentityResolver,
	signIns middleware.SignInRecorder,
) *Server {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      NewRouter(logger, api, health, resolver, signIns),
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
		cfg:        cfg,
	}
}

// NewRouter собирает chi-маршрутизатор.
func NewRouter(
	logger *slog.Logger,
	api *handlers.APIHandler,
	health *handlers.HealthHandler,
	resolver middleware.IdentityResolver,
	signIns middleware.SignInRecorder,
) http.Handler {
	router := chi.NewRouter()

	// Глобальные middleware (применяются ко ВСЕМ маршрутам)
	router.Use(chimw.RequestID)
	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.RequestLogger(logger))

	router.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		apierrors.NotFound(w, "not found")
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		apierrors.WriteError(w, http.StatusMethodNotAllowed, apierrors.CodeMethodNotAllowed, "method not allowed")
	})

	// Health и metrics проверяются Kubernetes напрямую, без разрешения идентичности.
	router.Get("/health/live", health.HealthLive)
	router.Get("/health/ready", health.HealthReady)
	router.Get("/metrics", health.GetMetrics)

	router.Group(func(r chi.Router) {
		r.Use(middleware.Identity(resolver))
		if signIns != nil {
			r.Use(middleware.TrackSignIn(signIns))
		}

		r.Get("/resources-list", api.ListResources)
		r.Post("/resources-url", api.ResourceURL)
		r.Get("/resources-download", api.DownloadResource)
		r.Get("/boards-list", api.ListBoards)
		r.Get("/me", api.Me)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAdmin())

			r.Post("/admin-upload", api.Upload)
			r.Post("/admin-resources-delete", api.DeleteResource)
			r.Post("/admin-resources-replace", api.ReplaceResource)
			r.Post("/admin-resources-update", api.UpdateResource)
			r.Get("/admin-users-list", api.ListUsers)
			r.Post("/admin-users-update", api.UpdateUser)
		})
	})

	return router
}

// Run запускает сервер и ожидает сигнала завершения (SIGINT, SIGTERM).
// При получении сигнала выполняется graceful shutdown.
func (s *Server) Run() error {
	// Канал для ошибок сервера
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP-сервер запущен",
			slog.String("addr", s.httpServer.Addr),
		)

		err := s.httpServer.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	// Ожидание сигнала завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		s.logger.Info("Получен сигнал завершения", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
