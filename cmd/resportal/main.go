// Точка входа resportal — бэкенд портала ресурсов.
// Загружает конфигурацию, применяет миграции, подключается к PostgreSQL
// и объектному хранилищу, инициализирует проверку токенов, сервисный слой
// и API handlers, запускает мониторинг зависимостей (topologymetrics)
// и HTTP-сервер с graceful shutdown.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/stdlib"

	"github.com/bigkaa/resportal/internal/api/handlers"
	"github.com/bigkaa/resportal/internal/auth"
	"github.com/bigkaa/resportal/internal/config"
	"github.com/bigkaa/resportal/internal/database"
	"github.com/bigkaa/resportal/internal/domain/policy"
	"github.com/bigkaa/resportal/internal/objectstore"
	"github.com/bigkaa/resportal/internal/repository"
	"github.com/bigkaa/resportal/internal/server"
	"github.com/bigkaa/resportal/internal/service"
)

func main() {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("resportal запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
	)

	if os.Getenv("RP_DEPHEALTH_GROUP") == "" {
		logger.Warn("RP_DEPHEALTH_GROUP не задана, используется значение по умолчанию",
			slog.String("default", cfg.DephealthGroup),
		)
	}

	// 3. Применение миграций БД
	if cfg.DBAutoMigrate {
		logger.Info("Применение миграций БД...")
		if err := database.Migrate(cfg, logger); err != nil {
			logger.Error("Ошибка миграций БД", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	// 4. Подключение к PostgreSQL (pgxpool)
	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	// 4.1 Адаптер pgxpool → *sql.DB для topologymetrics (connection pool mode)
	pgDB := stdlib.OpenDBFromPool(pool)
	defer pgDB.Close()

	// 5. Объектное хранилище
	store, err := objectstore.New(ctx, objectstore.OptionsFromConfig(cfg), logger)
	if err != nil {
		logger.Error("Ошибка создания клиента объектного хранилища", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 6. Проверка токенов: JWKS провайдера или общий секрет HS256
	var verifier *auth.Verifier
	var authChecker handlers.ReadinessChecker
	if cfg.JWTJWKSURL != "" {
		verifier, err = auth.NewJWKSVerifier(
			cfg.JWTJWKSURL,
			cfg.JWTCACertPath,
			cfg.JWTIssuer,
			cfg.JWKSClientTimeout,
			cfg.JWKSRefreshInterval,
			cfg.JWTLeeway,
			logger,
		)
		if err != nil {
			logger.Error("Ошибка создания JWKS verifier", slog.String("error", err.Error()))
			os.Exit(1)
		}
		jwksChecker, err := auth.NewJWKSReadinessChecker(cfg.JWTJWKSURL, cfg.JWTCACertPath, cfg.JWKSClientTimeout)
		if err != nil {
			logger.Error("Ошибка создания JWKS readiness checker", slog.String("error", err.Error()))
			os.Exit(1)
		}
		authChecker = jwksChecker
		logger.Info("Проверка токенов через JWKS",
			slog.String("jwks_url", cfg.JWTJWKSURL),
			slog.String("issuer", cfg.JWTIssuer),
		)
	} else {
		verifier = auth.NewHS256Verifier(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTLeeway, logger)
		logger.Info("Проверка токенов общим секретом HS256")
	}

	// 7. Repositories
	boardRepo := repository.NewBoardRepository(pool)
	resourceRepo := repository.NewResourceRepository(pool)
	profileRepo := repository.NewProfileRepository(pool)

	// 8. Services
	pol := policy.New(cfg.PublicDownloadRequiresLogin)
	resolver := auth.NewResolver(verifier, profileRepo, logger)
	boardsSvc := service.NewBoardService(boardRepo, cfg.BoardCacheTTL)
	directorySvc := service.NewDirectoryService(resourceRepo, boardsSvc, pol, cfg.ListLimit, cfg.PageSize, logger)
	brokerSvc := service.NewBrokerService(resourceRepo, store, pol, logger)
	ingestionSvc := service.NewIngestionService(resourceRepo, boardsSvc, store, cfg.MaxUploadSize, logger)
	adminUsersSvc := service.NewAdminUserService(profileRepo, logger)
	signInSvc := service.NewSignInService(profileRepo, cfg.SignInRecordInterval, logger)

	// 9. topologymetrics — мониторинг зависимостей (PostgreSQL + JWKS)
	var deps handlers.DependencyHealth
	dephealthSvc, dephealthErr := service.NewDephealthService(service.DephealthParams{
		ServiceID:     "resportal",
		Group:         cfg.DephealthGroup,
		DB:            pgDB,
		PgConnURL:     cfg.DatabaseURL(),
		JWKSURL:       cfg.JWTJWKSURL,
		CheckInterval: cfg.DephealthCheckInterval,
		IsEntry:       cfg.DephealthIsEntry,
	}, logger)
	if dephealthErr != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", dephealthErr.Error()),
		)
		dephealthSvc = nil
	} else if startErr := dephealthSvc.Start(ctx); startErr != nil {
		logger.Warn("Ошибка запуска topologymetrics",
			slog.String("error", startErr.Error()),
		)
		dephealthSvc = nil
	} else {
		deps = dephealthSvc
		logger.Info("topologymetrics запущен",
			slog.String("group", cfg.DephealthGroup),
			slog.String("check_interval", cfg.DephealthCheckInterval.String()),
		)
	}

	// 10. Handlers
	healthHandler := handlers.NewHealthHandler(database.NewReadinessChecker(pool), store, authChecker, deps)
	apiHandler := handlers.NewAPIHandler(handlers.Deps{
		Directory:     directorySvc,
		Broker:        brokerSvc,
		Boards:        boardsSvc,
		Ingestion:     ingestionSvc,
		AdminUsers:    adminUsersSvc,
		MaxUploadSize: cfg.MaxUploadSize,
		UploadTimeout: cfg.HTTPUploadTimeout,
	}, logger)

	// 11. Создание и запуск HTTP-сервера
	srv := server.New(cfg, logger, apiHandler, healthHandler, resolver, signInSvc)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}
	logger.Info("resportal остановлен")
}
