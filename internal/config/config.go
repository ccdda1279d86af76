// Пакет config — загрузка и валидация конфигурации resportal
// из переменных окружения (префикс RP_).
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации resportal.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string

	// --- HTTP Server Timeouts ---

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	// Срок чтения тела и записи ответа для маршрутов загрузки файлов.
	// Заменяет HTTPReadTimeout/HTTPWriteTimeout на этих маршрутах.
	HTTPUploadTimeout time.Duration

	// --- PostgreSQL ---

	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string
	DBSSLMode  string
	// Максимальное число соединений в пуле
	DBMaxConns int
	// Применять миграции при старте
	DBAutoMigrate bool

	// --- JWT ---

	// URL JWKS провайдера аутентификации (RS256/ES256)
	JWTJWKSURL string
	// Общий секрет HS256 (альтернатива JWKS)
	JWTSecret string
	// Ожидаемый issuer (пусто — не проверяется)
	JWTIssuer string
	// Допуск рассинхронизации часов при проверке exp/nbf
	JWTLeeway time.Duration
	// Путь к CA-сертификату для JWKS endpoint (опционально)
	JWTCACertPath string
	// Интервал фонового обновления JWKS
	JWKSRefreshInterval time.Duration
	// Таймаут HTTP-клиента JWKS
	JWKSClientTimeout time.Duration

	// --- S3-совместимое объектное хранилище ---

	S3Endpoint        string
	S3Region          string
	S3AccessKeyID     string
	S3SecretAccessKey string
	// Бакет публичного уровня (прямые ссылки)
	S3PublicBucket string
	// Бакет приватного уровня (только подписанные ссылки)
	S3PrivateBucket string
	// Базовый URL публичного бакета
	S3PublicBaseURL string
	S3UsePathStyle  bool

	// --- Политика доступа и выдачи ---

	// Максимальный размер загружаемого файла в байтах
	MaxUploadSize int64
	// Время жизни подписанной ссылки
	SignedURLTTL time.Duration
	// Скачивание публичных ресурсов только для вошедших пользователей
	PublicDownloadRequiresLogin bool
	// Предел выдачи списка без пагинации
	ListLimit int
	// Размер страницы списка
	PageSize int
	// TTL кэша разделов (boards)
	BoardCacheTTL time.Duration
	// Минимальный интервал между записями входа одного пользователя
	SignInRecordInterval time.Duration

	// --- Мониторинг зависимостей ---

	DephealthGroup         string
	DephealthCheckInterval time.Duration
	DephealthIsEntry       bool

	// --- Graceful shutdown ---

	ShutdownTimeout time.Duration
}

// Load загружает конфигурацию из переменных окружения.
// Возвращает ошибку, если обязательные переменные не заданы
// или значения некорректны.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	// RP_PORT — порт HTTP-сервера (по умолчанию 8080)
	cfg.Port, err = getEnvInt("RP_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("RP_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("RP_PORT: значение %d вне допустимого диапазона 1-65535", cfg.Port)
	}

	// RP_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("RP_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("RP_LOG_LEVEL: %w", err)
	}

	// RP_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("RP_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("RP_LOG_FORMAT: недопустимый формат %q, допустимые: json, text", cfg.LogFormat)
	}

	// --- HTTP Server Timeouts ---

	cfg.HTTPReadTimeout, err = getEnvDuration("RP_HTTP_READ_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("RP_HTTP_READ_TIMEOUT: %w", err)
	}
	cfg.HTTPWriteTimeout, err = getEnvDuration("RP_HTTP_WRITE_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("RP_HTTP_WRITE_TIMEOUT: %w", err)
	}
	cfg.HTTPIdleTimeout, err = getEnvDuration("RP_HTTP_IDLE_TIMEOUT", 120*time.Second)
	if err != nil {
		return nil, fmt.Errorf("RP_HTTP_IDLE_TIMEOUT: %w", err)
	}

	// --- PostgreSQL ---

	if cfg.DBHost, err = getEnvRequired("RP_DB_HOST"); err != nil {
		return nil, err
	}
	cfg.DBPort, err = getEnvInt("RP_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("RP_DB_PORT: %w", err)
	}
	if cfg.DBName, err = getEnvRequired("RP_DB_NAME"); err != nil {
		return nil, err
	}
	if cfg.DBUser, err = getEnvRequired("RP_DB_USER"); err != nil {
		return nil, err
	}
	if cfg.DBPassword, err = getEnvRequired("RP_DB_PASSWORD"); err != nil {
		return nil, err
	}

	// RP_DB_SSL_MODE — режим SSL (по умолчанию disable)
	cfg.DBSSLMode = getEnvDefault("RP_DB_SSL_MODE", "disable")
	validSSLModes := map[string]bool{
		"disable": true, "require": true, "verify-ca": true, "verify-full": true,
	}
	if !validSSLModes[cfg.DBSSLMode] {
		return nil, fmt.Errorf("RP_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full", cfg.DBSSLMode)
	}

	cfg.DBMaxConns, err = getEnvInt("RP_DB_MAX_CONNS", 10)
	if err != nil {
		return nil, fmt.Errorf("RP_DB_MAX_CONNS: %w", err)
	}
	if cfg.DBMaxConns < 1 {
		return nil, fmt.Errorf("RP_DB_MAX_CONNS: значение должно быть > 0")
	}

	cfg.DBAutoMigrate, err = getEnvBool("RP_DB_AUTO_MIGRATE", true)
	if err != nil {
		return nil, fmt.Errorf("RP_DB_AUTO_MIGRATE: %w", err)
	}

	// --- JWT ---

	cfg.JWTJWKSURL = getEnvDefault("RP_JWT_JWKS_URL", "")
	cfg.JWTSecret = getEnvDefault("RP_JWT_SECRET", "")
	if cfg.JWTJWKSURL == "" && cfg.JWTSecret == "" {
		return nil, fmt.Errorf("RP_JWT_JWKS_URL: необходимо задать RP_JWT_JWKS_URL или RP_JWT_SECRET")
	}
	if cfg.JWTJWKSURL != "" {
		if err := validateURL(cfg.JWTJWKSURL); err != nil {
			return nil, fmt.Errorf("RP_JWT_JWKS_URL: %w", err)
		}
	}
	cfg.JWTIssuer = getEnvDefault("RP_JWT_ISSUER", "")
	cfg.JWTLeeway, err = getEnvDuration("RP_JWT_LEEWAY", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("RP_JWT_LEEWAY: %w", err)
	}
	cfg.JWTCACertPath = getEnvDefault("RP_JWT_CA_CERT_PATH", "")
	cfg.JWKSRefreshInterval, err = getEnvDuration("RP_JWKS_REFRESH_INTERVAL", 15*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("RP_JWKS_REFRESH_INTERVAL: %w", err)
	}
	cfg.JWKSClientTimeout, err = getEnvDuration("RP_JWKS_CLIENT_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("RP_JWKS_CLIENT_TIMEOUT: %w", err)
	}

	// --- S3 ---

	if cfg.S3Endpoint, err = getEnvRequired("RP_S3_ENDPOINT"); err != nil {
		return nil, err
	}
	if err := validateURL(cfg.S3Endpoint); err != nil {
		return nil, fmt.Errorf("RP_S3_ENDPOINT: %w", err)
	}
	// R2 принимает регион "auto"
	cfg.S3Region = getEnvDefault("RP_S3_REGION", "auto")
	if cfg.S3AccessKeyID, err = getEnvRequired("RP_S3_ACCESS_KEY_ID"); err != nil {
		return nil, err
	}
	if cfg.S3SecretAccessKey, err = getEnvRequired("RP_S3_SECRET_ACCESS_KEY"); err != nil {
		return nil, err
	}
	if cfg.S3PublicBucket, err = getEnvRequired("RP_S3_PUBLIC_BUCKET"); err != nil {
		return nil, err
	}
	if cfg.S3PrivateBucket, err = getEnvRequired("RP_S3_PRIVATE_BUCKET"); err != nil {
		return nil, err
	}
	if cfg.S3PublicBucket == cfg.S3PrivateBucket {
		return nil, fmt.Errorf("RP_S3_PRIVATE_BUCKET: приватный и публичный бакеты должны различаться")
	}
	if cfg.S3PublicBaseURL, err = getEnvRequired("RP_S3_PUBLIC_BASE_URL"); err != nil {
		return nil, err
	}
	if err := validateURL(cfg.S3PublicBaseURL); err != nil {
		return nil, fmt.Errorf("RP_S3_PUBLIC_BASE_URL: %w", err)
	}
	cfg.S3PublicBaseURL = strings.TrimRight(cfg.S3PublicBaseURL, "/")
	cfg.S3UsePathStyle, err = getEnvBool("RP_S3_USE_PATH_STYLE", true)
	if err != nil {
		return nil, fmt.Errorf("RP_S3_USE_PATH_STYLE: %w", err)
	}

	// --- Политика ---

	// RP_MAX_UPLOAD_SIZE — байты (по умолчанию 200 MiB)
	cfg.MaxUploadSize, err = getEnvInt64("RP_MAX_UPLOAD_SIZE", 200*1024*1024)
	if err != nil {
		return nil, fmt.Errorf("RP_MAX_UPLOAD_SIZE: %w", err)
	}
	if cfg.MaxUploadSize < 1 {
		return nil, fmt.Errorf("RP_MAX_UPLOAD_SIZE: значение должно быть > 0")
	}

	// RP_HTTP_UPLOAD_TIMEOUT — 15 минут: 200 MiB при ~2 Мбит/с
	cfg.HTTPUploadTimeout, err = getEnvDuration("RP_HTTP_UPLOAD_TIMEOUT", 15*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("RP_HTTP_UPLOAD_TIMEOUT: %w", err)
	}
	if cfg.HTTPUploadTimeout < cfg.HTTPReadTimeout {
		return nil, fmt.Errorf("RP_HTTP_UPLOAD_TIMEOUT: значение %v меньше RP_HTTP_READ_TIMEOUT (%v)", cfg.HTTPUploadTimeout, cfg.HTTPReadTimeout)
	}

	// RP_SIGN_IN_RECORD_INTERVAL — как часто обновлять last_sign_in_at профиля
	cfg.SignInRecordInterval, err = getEnvDuration("RP_SIGN_IN_RECORD_INTERVAL", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("RP_SIGN_IN_RECORD_INTERVAL: %w", err)
	}
	if cfg.SignInRecordInterval < time.Second {
		return nil, fmt.Errorf("RP_SIGN_IN_RECORD_INTERVAL: значение должно быть не меньше 1s")
	}

	cfg.SignedURLTTL, err = getEnvDuration("RP_SIGNED_URL_TTL", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("RP_SIGNED_URL_TTL: %w", err)
	}
	if cfg.SignedURLTTL < time.Second || cfg.SignedURLTTL > 7*24*time.Hour {
		return nil, fmt.Errorf("RP_SIGNED_URL_TTL: значение %v вне допустимого диапазона 1s-168h", cfg.SignedURLTTL)
	}

	cfg.PublicDownloadRequiresLogin, err = getEnvBool("RP_PUBLIC_DOWNLOAD_REQUIRES_LOGIN", true)
	if err != nil {
		return nil, fmt.Errorf("RP_PUBLIC_DOWNLOAD_REQUIRES_LOGIN: %w", err)
	}

	cfg.ListLimit, err = getEnvInt("RP_LIST_LIMIT", 200)
	if err != nil {
		return nil, fmt.Errorf("RP_LIST_LIMIT: %w", err)
	}
	if cfg.ListLimit < 1 || cfg.ListLimit > 1000 {
		return nil, fmt.Errorf("RP_LIST_LIMIT: значение %d вне допустимого диапазона 1-1000", cfg.ListLimit)
	}

	cfg.PageSize, err = getEnvInt("RP_PAGE_SIZE", 10)
	if err != nil {
		return nil, fmt.Errorf("RP_PAGE_SIZE: %w", err)
	}
	if cfg.PageSize < 1 || cfg.PageSize > cfg.ListLimit {
		return nil, fmt.Errorf("RP_PAGE_SIZE: значение %d вне допустимого диапазона 1-%d", cfg.PageSize, cfg.ListLimit)
	}

	cfg.BoardCacheTTL, err = getEnvDuration("RP_BOARD_CACHE_TTL", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("RP_BOARD_CACHE_TTL: %w", err)
	}

	// --- Мониторинг зависимостей ---

	cfg.DephealthGroup = getEnvDefault("RP_DEPHEALTH_GROUP", "resportal")
	cfg.DephealthCheckInterval, err = getEnvDuration("RP_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("RP_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}
	cfg.DephealthIsEntry, err = getEnvBool("DEPHEALTH_ISENTRY", false)
	if err != nil {
		return nil, fmt.Errorf("DEPHEALTH_ISENTRY: %w", err)
	}

	// --- Graceful shutdown ---

	cfg.ShutdownTimeout, err = getEnvDuration("RP_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("RP_SHUTDOWN_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// DatabaseDSN возвращает строку подключения к PostgreSQL.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s pool_max_conns=%d",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode, c.DBMaxConns,
	)
}

// DatabaseURL возвращает URL PostgreSQL без пароля (для лейблов dephealth).
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%d/%s", c.DBHost, c.DBPort, c.DBName)
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

func getEnvInt64(key string, defaultVal int64) (int64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", val)
	}
	return d, nil
}

// getEnvBool возвращает булево значение переменной окружения или значение по умолчанию.
func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("некорректное булево значение: %q (допустимые: true, false, 1, 0)", val)
	}
	return b, nil
}

// validateURL проверяет, что строка — абсолютный http(s) URL.
func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("некорректный URL %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("некорректный URL %q: ожидается схема http или https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("некорректный URL %q: не указан хост", raw)
	}
	return nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}
