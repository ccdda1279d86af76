// Точка входа resportal-import — массовый импорт файлов в портал.
// Обходит каталог <root>/<boardSlug>/<file>, загружает каждый файл в уровень
// хранения по видимости и создаёт записи resources. Дата публикации берётся
// из имени файла, иначе из даты изменения файла.
// Конфигурация — те же переменные RP_*, дополнительно читается .env.
package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/bigkaa/resportal/internal/config"
	"github.com/bigkaa/resportal/internal/database"
	"github.com/bigkaa/resportal/internal/domain/model"
	"github.com/bigkaa/resportal/internal/importer"
	"github.com/bigkaa/resportal/internal/objectstore"
	"github.com/bigkaa/resportal/internal/repository"
	"github.com/bigkaa/resportal/internal/service"
)

func main() {
	root := flag.String("root", "", "каталог импорта <root>/<boardSlug>/<file>")
	board := flag.String("board", "", "импортировать только указанный раздел")
	visibility := flag.String("visibility", "", "видимость: public, member, admin (по умолчанию — видимость раздела)")
	operator := flag.String("operator", "resportal-import", "идентификатор, записываемый в журнал загрузок")
	envFile := flag.String("env", ".env", "файл переменных окружения")
	dryRun := flag.Bool("dry-run", false, "только показать, что будет импортировано")
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("Файл окружения не загружен", slog.String("path", *envFile), slog.String("error", err.Error()))
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger := config.SetupLogger(cfg)

	if *root == "" {
		logger.Error("Не задан каталог импорта (-root)")
		os.Exit(2)
	}
	vis := model.Visibility(*visibility)
	if vis != "" && !vis.Valid() {
		logger.Error("Недопустимая видимость", slog.String("visibility", *visibility))
		os.Exit(2)
	}

	items, skipped, err := importer.Scan(*root, *board)
	if err != nil {
		logger.Error("Ошибка сканирования каталога", slog.String("error", err.Error()))
		os.Exit(1)
	}
	for _, s := range skipped {
		logger.Warn("Файл пропущен", slog.String("path", s.Path), slog.String("reason", s.Reason))
	}
	logger.Info("Каталог просканирован",
		slog.String("root", *root),
		slog.Int("files", len(items)),
		slog.Int("skipped", len(skipped)),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	boards := service.NewBoardService(repository.NewBoardRepository(pool), cfg.BoardCacheTTL)
	items = knownBoards(ctx, boards, items, logger)

	var ingester importer.Ingester
	if !*dryRun {
		store, err := objectstore.New(ctx, objectstore.OptionsFromConfig(cfg), logger)
		if err != nil {
			logger.Error("Ошибка создания клиента объектного хранилища", slog.String("error", err.Error()))
			os.Exit(1)
		}
		ingester = service.NewIngestionService(
			repository.NewResourceRepository(pool), boards, store, cfg.MaxUploadSize, logger,
		)
	}

	rep, err := importer.New(ingester, *operator, logger).Run(ctx, items, importer.Options{
		Visibility: vis,
		DryRun:     *dryRun,
	})
	logger.Info("Импорт завершён",
		slog.Int("imported", rep.Imported),
		slog.Int("failed", rep.Failed),
		slog.Int("skipped", len(skipped)),
		slog.Bool("dry_run", *dryRun),
	)
	if err != nil {
		logger.Error("Импорт прерван", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if rep.Failed > 0 {
		os.Exit(1)
	}
}

// knownBoards отбрасывает файлы разделов, отсутствующих в справочнике boards,
// и проставляет видимость раздела по умолчанию.
func knownBoards(ctx context.Context, boards *service.BoardService, items []importer.Item, logger *slog.Logger) []importer.Item {
	out := items[:0]
	missing := make(map[string]bool)
	for _, it := range items {
		if missing[it.BoardSlug] {
			continue
		}
		b, err := boards.GetBySlug(ctx, it.BoardSlug)
		if err != nil {
			logger.Error("Ошибка чтения раздела", slog.String("board", it.BoardSlug), slog.String("error", err.Error()))
			os.Exit(1)
		}
		if b == nil {
			missing[it.BoardSlug] = true
			logger.Warn("Раздел не найден, файлы пропущены", slog.String("board", it.BoardSlug))
			continue
		}
		it.Visibility = b.VisibilityDefault
		out = append(out, it)
	}
	return out
}
