// Пакет config — загрузка и валидация конфигурации Formly
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

// Config содержит все параметры конфигурации Formly.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string
	// Публичный базовый URL (для абсолютных ссылок в письмах и success-страницах)
	BaseURL string

	// --- PostgreSQL ---

	// Хост PostgreSQL
	DBHost string
	// Порт PostgreSQL
	DBPort int
	// Имя базы данных
	DBName string
	// Имя пользователя PostgreSQL
	DBUser string
	// Пароль пользователя PostgreSQL
	DBPassword string
	// Режим SSL: disable, require, verify-ca, verify-full
	DBSSLMode string
	// Максимальный размер пула подключений
	DBPoolMax int

	// --- Сессии и API-токены ---

	// Секрет для шифрования session cookie (AES-256-GCM)
	SessionSecret string
	// Secure flag для cookie (true — только HTTPS)
	SecureCookie bool
	// Секрет подписи Bearer-токенов admin API (HS256)
	APITokenSecret string
	// Время жизни Bearer-токена admin API
	APITokenTTL time.Duration

	// --- SMTP ---

	// Хост SMTP-релея (пустой — уведомления отключены)
	SMTPHost string
	// Порт SMTP-релея
	SMTPPort int
	// Логин отправителя
	SMTPUser string
	// Пароль отправителя
	SMTPPassword string
	// Адрес отправителя (по умолчанию SMTPUser)
	SMTPFrom string

	// --- Загрузка файлов ---

	// Корневой каталог загруженных файлов (подкаталог на арендатора)
	UploadDir string
	// Максимальный размер multipart-запроса в байтах
	UploadMaxBytes int64

	// --- Graceful shutdown ---

	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	// FY_PORT — порт HTTP-сервера (по умолчанию 8080)
	cfg.Port, err = getEnvInt("FY_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("FY_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("FY_PORT: значение %d вне допустимого диапазона 1-65535", cfg.Port)
	}

	// FY_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("FY_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("FY_LOG_LEVEL: %w", err)
	}

	// FY_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("FY_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("FY_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// FY_BASE_URL — публичный базовый URL (по умолчанию http://localhost:<port>)
	cfg.BaseURL = getEnvDefault("FY_BASE_URL", fmt.Sprintf("http://localhost:%d", cfg.Port))

	// --- PostgreSQL ---

	// FY_DB_HOST — обязательный
	cfg.DBHost, err = getEnvRequired("FY_DB_HOST")
	if err != nil {
		return nil, err
	}

	// FY_DB_PORT — порт PostgreSQL (по умолчанию 5432)
	cfg.DBPort, err = getEnvInt("FY_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("FY_DB_PORT: %w", err)
	}

	// FY_DB_NAME — обязательный
	cfg.DBName, err = getEnvRequired("FY_DB_NAME")
	if err != nil {
		return nil, err
	}

	// FY_DB_USER — обязательный
	cfg.DBUser, err = getEnvRequired("FY_DB_USER")
	if err != nil {
		return nil, err
	}

	// FY_DB_PASSWORD — обязательный
	cfg.DBPassword, err = getEnvRequired("FY_DB_PASSWORD")
	if err != nil {
		return nil, err
	}

	// FY_DB_SSL_MODE — режим SSL (по умолчанию disable)
	cfg.DBSSLMode = getEnvDefault("FY_DB_SSL_MODE", "disable")
	validSSLModes := map[string]bool{
		"disable": true, "require": true, "verify-ca": true, "verify-full": true,
	}
	if !validSSLModes[cfg.DBSSLMode] {
		return nil, fmt.Errorf("FY_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full", cfg.DBSSLMode)
	}

	// FY_DB_POOL_MAX — максимум подключений в пуле (по умолчанию 10)
	cfg.DBPoolMax, err = getEnvInt("FY_DB_POOL_MAX", 10)
	if err != nil {
		return nil, fmt.Errorf("FY_DB_POOL_MAX: %w", err)
	}
	if cfg.DBPoolMax < 1 || cfg.DBPoolMax > 100 {
		return nil, fmt.Errorf("FY_DB_POOL_MAX: значение %d вне допустимого диапазона 1-100", cfg.DBPoolMax)
	}

	// --- Сессии и API-токены ---

	// FY_SESSION_SECRET — секрет шифрования сессий (опционально,
	// пустой — сессии не переживают рестарт)
	cfg.SessionSecret = getEnvDefault("FY_SESSION_SECRET", "")

	// FY_SECURE_COOKIE — Secure flag для cookie (по умолчанию false)
	cfg.SecureCookie = getEnvDefault("FY_SECURE_COOKIE", "false") == "true"

	// FY_API_TOKEN_SECRET — секрет подписи Bearer-токенов
	// (по умолчанию равен FY_SESSION_SECRET)
	cfg.APITokenSecret = getEnvDefault("FY_API_TOKEN_SECRET", cfg.SessionSecret)

	// FY_API_TOKEN_TTL — время жизни Bearer-токена (по умолчанию 1h)
	cfg.APITokenTTL, err = getEnvDuration("FY_API_TOKEN_TTL", time.Hour)
	if err != nil {
		return nil, fmt.Errorf("FY_API_TOKEN_TTL: %w", err)
	}

	// --- SMTP ---

	// FY_SMTP_HOST — хост SMTP-релея (опционально)
	cfg.SMTPHost = getEnvDefault("FY_SMTP_HOST", "")

	// FY_SMTP_PORT — порт SMTP (по умолчанию 587)
	cfg.SMTPPort, err = getEnvInt("FY_SMTP_PORT", 587)
	if err != nil {
		return nil, fmt.Errorf("FY_SMTP_PORT: %w", err)
	}

	// FY_SMTP_USER / FY_SMTP_PASSWORD — учётные данные отправителя
	cfg.SMTPUser = getEnvDefault("FY_SMTP_USER", "")
	cfg.SMTPPassword = getEnvDefault("FY_SMTP_PASSWORD", "")

	// FY_SMTP_FROM — адрес отправителя (по умолчанию FY_SMTP_USER)
	cfg.SMTPFrom = getEnvDefault("FY_SMTP_FROM", cfg.SMTPUser)

	// --- Загрузка файлов ---

	// FY_UPLOAD_DIR — корневой каталог загрузок (по умолчанию ./uploads)
	cfg.UploadDir = getEnvDefault("FY_UPLOAD_DIR", "uploads")

	// FY_UPLOAD_MAX_BYTES — лимит multipart-запроса (по умолчанию 50 MiB)
	maxBytes, err := getEnvInt("FY_UPLOAD_MAX_BYTES", 50*1024*1024)
	if err != nil {
		return nil, fmt.Errorf("FY_UPLOAD_MAX_BYTES: %w", err)
	}
	if maxBytes < 1 {
		return nil, fmt.Errorf("FY_UPLOAD_MAX_BYTES: значение %d должно быть положительным", maxBytes)
	}
	cfg.UploadMaxBytes = int64(maxBytes)

	// --- Graceful shutdown ---

	// FY_SHUTDOWN_TIMEOUT — таймаут graceful shutdown (по умолчанию 5s)
	cfg.ShutdownTimeout, err = getEnvDuration("FY_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("FY_SHUTDOWN_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// DatabaseDSN возвращает строку подключения к PostgreSQL.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s pool_max_conns=%d",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode, c.DBPoolMax,
	)
}

// SMTPConfigured сообщает, задан ли SMTP-релей полностью.
func (c *Config) SMTPConfigured() bool {
	return c.SMTPHost != "" && c.SMTPUser != "" && c.SMTPPassword != ""
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

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q", val)
	}
	return d, nil
}

// parseLogLevel преобразует строку в slog.Level.
func parseLogLevel(s string) (slog.Level, error) {
	switch s {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", s)
	}
}
