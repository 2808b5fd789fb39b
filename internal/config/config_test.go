package config

import (
	"log/slog"
	"testing"
	"time"
)

// setEnvs устанавливает переменные окружения на время теста.
func setEnvs(t *testing.T, envs map[string]string) {
	t.Helper()
	for k, v := range envs {
		t.Setenv(k, v)
	}
}

// minimalEnvs возвращает минимальный набор обязательных переменных.
func minimalEnvs() map[string]string {
	return map[string]string{
		"FY_DB_HOST":     "localhost",
		"FY_DB_NAME":     "formly",
		"FY_DB_USER":     "formly",
		"FY_DB_PASSWORD": "secret",
	}
}

func TestLoad_MinimalConfig(t *testing.T) {
	setEnvs(t, minimalEnvs())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}

	// Проверяем значения по умолчанию
	if cfg.Port != 8080 {
		t.Errorf("Port = %d, ожидается 8080", cfg.Port)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, ожидается Info", cfg.LogLevel)
	}
	if cfg.LogFormat != "json" {
		t.Errorf("LogFormat = %q, ожидается json", cfg.LogFormat)
	}
	if cfg.DBPort != 5432 {
		t.Errorf("DBPort = %d, ожидается 5432", cfg.DBPort)
	}
	if cfg.DBSSLMode != "disable" {
		t.Errorf("DBSSLMode = %q, ожидается disable", cfg.DBSSLMode)
	}
	if cfg.DBPoolMax != 10 {
		t.Errorf("DBPoolMax = %d, ожидается 10", cfg.DBPoolMax)
	}
	if cfg.UploadDir != "uploads" {
		t.Errorf("UploadDir = %q, ожидается uploads", cfg.UploadDir)
	}
	if cfg.UploadMaxBytes != 50*1024*1024 {
		t.Errorf("UploadMaxBytes = %d, ожидается %d", cfg.UploadMaxBytes, 50*1024*1024)
	}
	if cfg.SMTPPort != 587 {
		t.Errorf("SMTPPort = %d, ожидается 587", cfg.SMTPPort)
	}
	if cfg.APITokenTTL != time.Hour {
		t.Errorf("APITokenTTL = %v, ожидается 1h", cfg.APITokenTTL)
	}
	if cfg.ShutdownTimeout != 5*time.Second {
		t.Errorf("ShutdownTimeout = %v, ожидается 5s", cfg.ShutdownTimeout)
	}
	if cfg.SMTPConfigured() {
		t.Error("SMTPConfigured() = true без SMTP-переменных")
	}
}

func TestLoad_MissingDBHost(t *testing.T) {
	envs := minimalEnvs()
	delete(envs, "FY_DB_HOST")
	// t.Setenv обязателен даже для пустого значения — изолирует окружение теста
	envs["FY_DB_HOST"] = ""
	setEnvs(t, envs)

	if _, err := Load(); err == nil {
		t.Fatal("Load() без FY_DB_HOST должен вернуть ошибку")
	}
}

func TestLoad_InvalidPort(t *testing.T) {
	envs := minimalEnvs()
	envs["FY_PORT"] = "99999"
	setEnvs(t, envs)

	if _, err := Load(); err == nil {
		t.Fatal("Load() с FY_PORT=99999 должен вернуть ошибку")
	}
}

func TestLoad_InvalidLogLevel(t *testing.T) {
	envs := minimalEnvs()
	envs["FY_LOG_LEVEL"] = "verbose"
	setEnvs(t, envs)

	if _, err := Load(); err == nil {
		t.Fatal("Load() с FY_LOG_LEVEL=verbose должен вернуть ошибку")
	}
}

func TestLoad_InvalidSSLMode(t *testing.T) {
	envs := minimalEnvs()
	envs["FY_DB_SSL_MODE"] = "maybe"
	setEnvs(t, envs)

	if _, err := Load(); err == nil {
		t.Fatal("Load() с FY_DB_SSL_MODE=maybe должен вернуть ошибку")
	}
}

func TestLoad_SMTPConfigured(t *testing.T) {
	envs := minimalEnvs()
	envs["FY_SMTP_HOST"] = "smtp.example.com"
	envs["FY_SMTP_USER"] = "notify@example.com"
	envs["FY_SMTP_PASSWORD"] = "app-password"
	setEnvs(t, envs)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}
	if !cfg.SMTPConfigured() {
		t.Error("SMTPConfigured() = false при полном наборе SMTP-переменных")
	}
	if cfg.SMTPFrom != "notify@example.com" {
		t.Errorf("SMTPFrom = %q, ожидается значение FY_SMTP_USER", cfg.SMTPFrom)
	}
}

func TestDatabaseDSN(t *testing.T) {
	setEnvs(t, minimalEnvs())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}

	dsn := cfg.DatabaseDSN()
	want := "host=localhost port=5432 dbname=formly user=formly password=secret sslmode=disable pool_max_conns=10"
	if dsn != want {
		t.Errorf("DatabaseDSN() = %q, ожидается %q", dsn, want)
	}
}
