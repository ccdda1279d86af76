package database

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/bigkaa/resportal/internal/config"
)

// setupTestDB запускает PostgreSQL в Docker-контейнере через testcontainers.
func setupTestDB(t *testing.T) *config.Config {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("Пропуск интеграционного теста: TEST_INTEGRATION не установлена")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		postgres.WithDatabase("resportal_test"),
		postgres.WithUsername("resportal"),
		postgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("Не удалось запустить PostgreSQL контейнер: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Ошибка остановки контейнера: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Не удалось получить host контейнера: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Не удалось получить port контейнера: %v", err)
	}

	t.Setenv("RP_DB_HOST", host)
	t.Setenv("RP_DB_PORT", port.Port())
	t.Setenv("RP_DB_NAME", "resportal_test")
	t.Setenv("RP_DB_USER", "resportal")
	t.Setenv("RP_DB_PASSWORD", "test-password")
	t.Setenv("RP_DB_SSL_MODE", "disable")
	t.Setenv("RP_JWT_SECRET", "test")
	t.Setenv("RP_S3_ENDPOINT", "http://localhost:9000")
	t.Setenv("RP_S3_ACCESS_KEY_ID", "test")
	t.Setenv("RP_S3_SECRET_ACCESS_KEY", "test")
	t.Setenv("RP_S3_PUBLIC_BUCKET", "public")
	t.Setenv("RP_S3_PRIVATE_BUCKET", "private")
	t.Setenv("RP_S3_PUBLIC_BASE_URL", "http://localhost:9000/public")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	return cfg
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// TestConnect проверяет подключение к PostgreSQL через pgxpool.
func TestConnect(t *testing.T) {
	cfg := setupTestDB(t)
	ctx := context.Background()

	pool, err := Connect(ctx, cfg, testLogger())
	if err != nil {
		t.Fatalf("Connect() вернул ошибку: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		t.Fatalf("pool.Ping() вернул ошибку: %v", err)
	}
}

// TestMigrate проверяет применение миграций и ограничения схемы.
func TestMigrate(t *testing.T) {
	cfg := setupTestDB(t)
	logger := testLogger()

	if err := Migrate(cfg, logger); err != nil {
		t.Fatalf("Migrate() вернул ошибку: %v", err)
	}
	// Повторное применение — без ошибки (ErrNoChange)
	if err := Migrate(cfg, logger); err != nil {
		t.Fatalf("Повторный Migrate() вернул ошибку: %v", err)
	}

	ctx := context.Background()
	pool, err := Connect(ctx, cfg, logger)
	if err != nil {
		t.Fatalf("Connect() вернул ошибку: %v", err)
	}
	defer pool.Close()

	for _, table := range []string{"boards", "resources", "profiles"} {
		var exists bool
		err := pool.QueryRow(ctx,
			`SELECT EXISTS (
				SELECT FROM information_schema.tables
				WHERE table_schema = 'public' AND table_name = $1
			)`, table).Scan(&exists)
		if err != nil {
			t.Fatalf("Ошибка проверки таблицы %s: %v", table, err)
		}
		if !exists {
			t.Errorf("Таблица %s не создана", table)
		}
	}

	var boardID int64
	if err := pool.QueryRow(ctx,
		`INSERT INTO boards (slug, title) VALUES ('atm', 'ATM') RETURNING id`,
	).Scan(&boardID); err != nil {
		t.Fatalf("Ошибка вставки раздела: %v", err)
	}

	// Активный файл без ключа нарушает resources_key_required
	_, err = pool.Exec(ctx,
		`INSERT INTO resources (board_id, title, kind, visibility) VALUES ($1, 'x', 'pdf', 'public')`,
		boardID)
	if err == nil {
		t.Error("ожидалась ошибка CHECK для pdf без r2_key")
	}

	// Ссылка без ключа допустима
	_, err = pool.Exec(ctx,
		`INSERT INTO resources (board_id, title, kind, visibility) VALUES ($1, 'x', 'link', 'public')`,
		boardID)
	if err != nil {
		t.Errorf("ссылка без r2_key должна вставляться: %v", err)
	}

	_, err = pool.Exec(ctx,
		`INSERT INTO resources (board_id, title, kind, visibility, r2_key) VALUES ($1, 'x', 'pdf', 'secret', 'k')`,
		boardID)
	if err == nil {
		t.Error("ожидалась ошибка CHECK для неизвестной видимости")
	}
}

// TestReadinessChecker проверяет ReadinessChecker.
func TestReadinessChecker(t *testing.T) {
	cfg := setupTestDB(t)
	ctx := context.Background()

	pool, err := Connect(ctx, cfg, testLogger())
	if err != nil {
		t.Fatalf("Connect() вернул ошибку: %v", err)
	}
	defer pool.Close()

	status, msg := NewReadinessChecker(pool).CheckReady()
	if status != "ok" {
		t.Errorf("CheckReady() status = %q, message = %q; ожидали %q", status, msg, "ok")
	}
}
