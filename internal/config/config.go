// Пакет config — загрузка и валидация конфигурации Document Portal
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации Document Portal.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера (диапазон 8040-8049)
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string

	// --- HTTP Server Timeouts ---

	// Таймаут чтения HTTP-сервера (по умолчанию 30s)
	HTTPReadTimeout time.Duration
	// Таймаут записи HTTP-сервера (по умолчанию 60s)
	HTTPWriteTimeout time.Duration
	// Таймаут простоя HTTP-сервера (по умолчанию 120s)
	HTTPIdleTimeout time.Duration

	// --- Graceful shutdown ---

	// Таймаут graceful shutdown (по умолчанию 5s)
	ShutdownTimeout time.Duration

	// --- PostgreSQL ---

	// Хост PostgreSQL (обязательный)
	DBHost string
	// Порт PostgreSQL (по умолчанию 5432)
	DBPort int
	// Имя базы данных (обязательный)
	DBName string
	// Пользователь БД (обязательный)
	DBUser string
	// Пароль пользователя БД (обязательный)
	DBPassword string
	// Режим SSL (по умолчанию disable)
	DBSSLMode string

	// --- Токены ---

	// Секрет для подписи JWT (HS256, обязательный)
	JWTSecret string
	// Время жизни токена (по умолчанию 1h)
	TokenTTL time.Duration

	// --- Rate limiting ---

	// Порог неудачных попыток до блокировки (по умолчанию 10)
	FailThreshold int
	// Длительность блокировки клиента (по умолчанию 60s)
	BlockDuration time.Duration
	// Окно подсчёта неудачных попыток (по умолчанию 10m)
	FailWindow time.Duration
	// Максимум отслеживаемых клиентов в памяти (по умолчанию 10000)
	MaxTrackedClients int

	// --- Хранилище файлов ---

	// Директория хранения загруженных документов (обязательный)
	DataDir string
	// Максимальный размер загружаемого файла в байтах (по умолчанию 10 MiB)
	MaxUploadSize int64

	// --- Аудит ---

	// Путь к файлу журнала аудита (по умолчанию <DataDir>/audit.log)
	AuditLogPath string

	// --- Разработка ---

	// Создавать тестовых пользователей при старте (по умолчанию false)
	SeedUsers bool
}

// Load загружает конфигурацию из переменных окружения.
// Возвращает ошибку, если обязательные переменные не заданы
// или значения некорректны.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	// DP_PORT — порт HTTP-сервера (по умолчанию 8040)
	cfg.Port, err = getEnvInt("DP_PORT", 8040)
	if err != nil {
		return nil, fmt.Errorf("DP_PORT: %w", err)
	}

	// DP_LOG_LEVEL — уровень логирования (по умолчанию info)
	logLevel := getEnvDefault("DP_LOG_LEVEL", "info")
	cfg.LogLevel, err = parseLogLevel(logLevel)
	if err != nil {
		return nil, fmt.Errorf("DP_LOG_LEVEL: %w", err)
	}

	// DP_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("DP_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("DP_LOG_FORMAT: недопустимый формат %q, допустимые: json, text", cfg.LogFormat)
	}

	// --- HTTP Server Timeouts ---

	cfg.HTTPReadTimeout, err = getEnvDuration("DP_HTTP_READ_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("DP_HTTP_READ_TIMEOUT: %w", err)
	}

	cfg.HTTPWriteTimeout, err = getEnvDuration("DP_HTTP_WRITE_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("DP_HTTP_WRITE_TIMEOUT: %w", err)
	}

	cfg.HTTPIdleTimeout, err = getEnvDuration("DP_HTTP_IDLE_TIMEOUT", 120*time.Second)
	if err != nil {
		return nil, fmt.Errorf("DP_HTTP_IDLE_TIMEOUT: %w", err)
	}

	// DP_SHUTDOWN_TIMEOUT — таймаут graceful shutdown (по умолчанию 5s)
	cfg.ShutdownTimeout, err = getEnvDuration("DP_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("DP_SHUTDOWN_TIMEOUT: %w", err)
	}

	// --- PostgreSQL ---

	// DP_DB_HOST — обязательный
	cfg.DBHost, err = getEnvRequired("DP_DB_HOST")
	if err != nil {
		return nil, err
	}

	// DP_DB_PORT — порт PostgreSQL (по умолчанию 5432)
	cfg.DBPort, err = getEnvInt("DP_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("DP_DB_PORT: %w", err)
	}

	// DP_DB_NAME — обязательный
	cfg.DBName, err = getEnvRequired("DP_DB_NAME")
	if err != nil {
		return nil, err
	}

	// DP_DB_USER — обязательный
	cfg.DBUser, err = getEnvRequired("DP_DB_USER")
	if err != nil {
		return nil, err
	}

	// DP_DB_PASSWORD — обязательный
	cfg.DBPassword, err = getEnvRequired("DP_DB_PASSWORD")
	if err != nil {
		return nil, err
	}

	// DP_DB_SSL_MODE — режим SSL (по умолчанию disable)
	cfg.DBSSLMode = getEnvDefault("DP_DB_SSL_MODE", "disable")
	validSSLModes := map[string]bool{
		"disable": true, "require": true, "verify-ca": true, "verify-full": true,
	}
	if !validSSLModes[cfg.DBSSLMode] {
		return nil, fmt.Errorf("DP_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full", cfg.DBSSLMode)
	}

	// --- Токены ---

	// DP_JWT_SECRET — обязательный, подпись всех выданных токенов
	cfg.JWTSecret, err = getEnvRequired("DP_JWT_SECRET")
	if err != nil {
		return nil, err
	}
	if len(cfg.JWTSecret) < 32 {
		return nil, fmt.Errorf("DP_JWT_SECRET: длина секрета %d < 32 символов", len(cfg.JWTSecret))
	}

	// DP_TOKEN_TTL — время жизни токена (по умолчанию 1h)
	cfg.TokenTTL, err = getEnvDuration("DP_TOKEN_TTL", time.Hour)
	if err != nil {
		return nil, fmt.Errorf("DP_TOKEN_TTL: %w", err)
	}
	if cfg.TokenTTL <= 0 {
		return nil, fmt.Errorf("DP_TOKEN_TTL: значение должно быть > 0")
	}

	// --- Rate limiting ---

	// DP_FAIL_THRESHOLD — порог блокировки (по умолчанию 10)
	cfg.FailThreshold, err = getEnvInt("DP_FAIL_THRESHOLD", 10)
	if err != nil {
		return nil, fmt.Errorf("DP_FAIL_THRESHOLD: %w", err)
	}
	if cfg.FailThreshold < 1 {
		return nil, fmt.Errorf("DP_FAIL_THRESHOLD: значение должно быть >= 1")
	}

	// DP_BLOCK_DURATION — длительность блокировки (по умолчанию 60s)
	cfg.BlockDuration, err = getEnvDuration("DP_BLOCK_DURATION", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("DP_BLOCK_DURATION: %w", err)
	}

	// DP_FAIL_WINDOW — окно подсчёта неудач (по умолчанию 10m)
	cfg.FailWindow, err = getEnvDuration("DP_FAIL_WINDOW", 10*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("DP_FAIL_WINDOW: %w", err)
	}

	// DP_MAX_TRACKED_CLIENTS — ёмкость таблицы счётчиков (по умолчанию 10000)
	cfg.MaxTrackedClients, err = getEnvInt("DP_MAX_TRACKED_CLIENTS", 10000)
	if err != nil {
		return nil, fmt.Errorf("DP_MAX_TRACKED_CLIENTS: %w", err)
	}

	// --- Хранилище файлов ---

	// DP_DATA_DIR — обязательный
	cfg.DataDir, err = getEnvRequired("DP_DATA_DIR")
	if err != nil {
		return nil, err
	}

	// DP_MAX_UPLOAD_SIZE — максимальный размер файла (по умолчанию 10 MiB)
	maxUpload, err := getEnvInt("DP_MAX_UPLOAD_SIZE", 10<<20)
	if err != nil {
		return nil, fmt.Errorf("DP_MAX_UPLOAD_SIZE: %w", err)
	}
	if maxUpload <= 0 {
		return nil, fmt.Errorf("DP_MAX_UPLOAD_SIZE: значение должно быть > 0")
	}
	cfg.MaxUploadSize = int64(maxUpload)

	// --- Аудит ---

	// DP_AUDIT_LOG — путь к журналу аудита (по умолчанию <DataDir>/audit.log)
	cfg.AuditLogPath = getEnvDefault("DP_AUDIT_LOG", cfg.DataDir+"/audit.log")

	// --- Разработка ---

	// DP_SEED_USERS — создание тестовых пользователей (по умолчанию false)
	cfg.SeedUsers, err = getEnvBool("DP_SEED_USERS", false)
	if err != nil {
		return nil, fmt.Errorf("DP_SEED_USERS: %w", err)
	}

	return cfg, nil
}

// DatabaseDSN возвращает строку подключения к PostgreSQL.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
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

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch level {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
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
