// dephealth.go — интеграция с topologymetrics SDK для мониторинга зависимостей.
//
// resportal мониторит:
//   - PostgreSQL — SQL checker через существующий pgxpool (connection pool mode, critical)
//   - JWKS провайдера аутентификации — HTTP checker (critical), если задан RP_JWT_JWKS_URL
//
// Объектное хранилище проверяется только readiness-пробой (HeadBucket):
// корневой endpoint R2 не отвечает 2xx без подписи.
//
// Метрики доступны на /metrics вместе с остальными Prometheus-метриками:
//   - app_dependency_health — состояние зависимости (1 = ok, 0 = fail)
//   - app_dependency_latency_seconds — задержка проверки
package service

import (
	"context"
	"database/sql"
	"log/slog"
	"net/url"
	"time"

	"github.com/BigKAA/topologymetrics/sdk-go/dephealth"
	_ "github.com/BigKAA/topologymetrics/sdk-go/dephealth/checks/httpcheck" // регистрация HTTP checker factory
	"github.com/BigKAA/topologymetrics/sdk-go/dephealth/checks/pgcheck"
	"github.com/prometheus/client_golang/prometheus"
)

// DephealthParams — параметры мониторинга зависимостей.
type DephealthParams struct {
	// ServiceID — имя вершины графа текущего приложения
	ServiceID string
	// Group — имя группы в метриках (RP_DEPHEALTH_GROUP)
	Group string
	// DB — *sql.DB, полученный из pgxpool через stdlib.OpenDBFromPool()
	DB *sql.DB
	// PgConnURL — URL PostgreSQL для лейблов (без пароля)
	PgConnURL string
	// JWKSURL — JWKS endpoint провайдера (пусто — не мониторится)
	JWKSURL       string
	CheckInterval time.Duration
	// IsEntry — лейбл isentry=yes для всех зависимостей (DEPHEALTH_ISENTRY)
	IsEntry bool
}

// DephealthService — сервис мониторинга зависимостей через topologymetrics.
type DephealthService struct {
	dh     *dephealth.DepHealth
	deps   []string
	logger *slog.Logger
}

// NewDephealthService создаёт сервис мониторинга зависимостей.
// Метрики регистрируются в глобальном Prometheus registry.
func NewDephealthService(p DephealthParams, logger *slog.Logger) (*DephealthService, error) {
	return newDephealthService(p, logger)
}

// NewDephealthServiceWithRegisterer создаёт сервис с указанным Prometheus registerer.
// Используется в тестах для изоляции метрик.
func NewDephealthServiceWithRegisterer(p DephealthParams, logger *slog.Logger, registerer prometheus.Registerer) (*DephealthService, error) {
	return newDephealthService(p, logger, dephealth.WithRegisterer(registerer))
}

func newDephealthService(p DephealthParams, logger *slog.Logger, extraOpts ...dephealth.Option) (*DephealthService, error) {
	common := func() []dephealth.DependencyOption {
		opts := []dephealth.DependencyOption{
			dephealth.CheckInterval(p.CheckInterval),
			dephealth.Critical(true),
		}
		if p.IsEntry {
			opts = append(opts, dephealth.WithLabel("isentry", "yes"))
		}
		return opts
	}

	pgOpts := append([]dephealth.DependencyOption{dephealth.FromURL(p.PgConnURL)}, common()...)
	opts := []dephealth.Option{
		dephealth.WithLogger(logger),
		// PostgreSQL — connection pool mode через существующий pgxpool
		dephealth.AddDependency("postgresql", dephealth.TypePostgres,
			pgcheck.New(pgcheck.WithDB(p.DB)), pgOpts...),
	}
	deps := []string{"postgresql"}

	if p.JWKSURL != "" {
		jwksOpts := append([]dephealth.DependencyOption{
			dephealth.FromURL(p.JWKSURL),
			dephealth.WithHTTPHealthPath(jwksHealthPath(p.JWKSURL)),
		}, common()...)
		opts = append(opts, dephealth.HTTP("auth-jwks", jwksOpts...))
		deps = append(deps, "auth-jwks")
	}
	opts = append(opts, extraOpts...)

	dh, err := dephealth.New(p.ServiceID, p.Group, opts...)
	if err != nil {
		return nil, err
	}

	return &DephealthService{
		dh:     dh,
		deps:   deps,
		logger: logger.With(slog.String("component", "dephealth")),
	}, nil
}

// jwksHealthPath — path самого JWKS URL: его доступность и есть
// работоспособность провайдера для проверки токенов.
func jwksHealthPath(jwksURL string) string {
	if parsed, err := url.Parse(jwksURL); err == nil && parsed.Path != "" {
		return parsed.Path
	}
	return "/health"
}

// Start запускает периодическую проверку зависимостей.
func (ds *DephealthService) Start(ctx context.Context) error {
	ds.logger.Info("Мониторинг зависимостей запущен", slog.Any("dependencies", ds.deps))
	return ds.dh.Start(ctx)
}

// Stop останавливает мониторинг зависимостей.
func (ds *DephealthService) Stop() {
	ds.dh.Stop()
	ds.logger.Info("Мониторинг зависимостей остановлен")
}

// Health возвращает текущее состояние зависимостей.
// Ключ — имя зависимости, значение — true если ok.
func (ds *DephealthService) Health() map[string]bool {
	return ds.dh.Health()
}
