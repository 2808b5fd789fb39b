// Точка входа Formly — платформы публикации форм.
// Загружает конфигурацию, подключается к PostgreSQL, применяет миграции,
// создаёт файловое хранилище и сервисный слой, запускает HTTP-сервер
// (публичные формы, консоль владельца, JSON API) с graceful shutdown.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	apihandlers "github.com/formly-platform/formly/internal/api/handlers"
	apimiddleware "github.com/formly-platform/formly/internal/api/middleware"
	"github.com/formly-platform/formly/internal/config"
	"github.com/formly-platform/formly/internal/database"
	"github.com/formly-platform/formly/internal/notify"
	"github.com/formly-platform/formly/internal/repository"
	"github.com/formly-platform/formly/internal/server"
	"github.com/formly-platform/formly/internal/service"
	"github.com/formly-platform/formly/internal/storage/filestore"
	"github.com/formly-platform/formly/internal/ui/auth"
	uihandlers "github.com/formly-platform/formly/internal/ui/handlers"
	uimiddleware "github.com/formly-platform/formly/internal/ui/middleware"
)

func main() {
	// 1. Загрузка конфигурации (.env для локальной разработки,
	// в кластере переменные приходят из окружения)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("Formly запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
	)

	if cfg.SessionSecret == "" {
		logger.Warn("FY_SESSION_SECRET не задан, сессии не переживут рестарт")
	}

	// 3. Применение миграций БД
	logger.Info("Применение миграций БД...")
	if err := database.Migrate(cfg, logger); err != nil {
		logger.Error("Ошибка миграций БД", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Подключение к PostgreSQL (pgxpool)
	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	// 5. Файловое хранилище загрузок
	files, err := filestore.New(cfg.UploadDir)
	if err != nil {
		logger.Error("Ошибка инициализации файлового хранилища",
			slog.String("dir", cfg.UploadDir), slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("Файловое хранилище готово", slog.String("dir", cfg.UploadDir))

	// 6. SMTP-уведомления (отключены без FY_SMTP_HOST)
	mailer := notify.NewSMTPMailer(cfg, logger)
	if cfg.SMTPConfigured() {
		logger.Info("SMTP-уведомления включены", slog.String("host", cfg.SMTPHost))
	} else {
		logger.Info("SMTP-уведомления отключены (FY_SMTP_HOST не задан)")
	}

	// 7. Repositories
	userRepo := repository.NewUserRepository(pool)
	formRepo := repository.NewFormRepository(pool)
	subRepo := repository.NewSubmissionRepository(pool)
	draftRepo := repository.NewDraftRepository(pool)
	txRunner := repository.NewTxRunner(pool)

	// 8. Services
	accountsSvc := service.NewAccountService(userRepo, logger)
	formsSvc := service.NewFormService(formRepo, files, logger)
	subsSvc := service.NewSubmissionService(subRepo, draftRepo, txRunner, files, mailer, logger)
	draftsSvc := service.NewDraftService(draftRepo, files, logger)

	// 9. Сессии консоли и API-токены
	sessionMgr, err := auth.NewSessionManager(cfg.SessionSecret, cfg.SecureCookie)
	if err != nil {
		logger.Error("Ошибка создания Session Manager", slog.String("error", err.Error()))
		os.Exit(1)
	}
	tokenIssuer := apimiddleware.NewTokenIssuer(cfg.APITokenSecret, cfg.APITokenTTL)

	// 10. Middleware
	uiAuth := uimiddleware.NewUIAuth(sessionMgr, logger)
	apiAuth := apimiddleware.NewAPIAuth(sessionMgr, tokenIssuer, logger)

	// 11. Handlers
	pgChecker := database.NewReadinessChecker(pool)
	h := server.Handlers{
		Auth:    uihandlers.NewAuthHandler(accountsSvc, sessionMgr, logger),
		Console: uihandlers.NewConsoleHandler(formsSvc, subsSvc, cfg.BaseURL, logger),
		Public:  uihandlers.NewPublicHandler(formsSvc, subsSvc, draftsSvc, files, sessionMgr, cfg.UploadMaxBytes, logger),
		Admin:   apihandlers.NewAdminAPIHandler(formsSvc, subsSvc, tokenIssuer, cfg.UploadMaxBytes, cfg.BaseURL, logger),
		Health:  apihandlers.NewHealthHandler(pgChecker),
	}

	// 12. Создание и запуск HTTP-сервера
	srv := server.New(cfg, logger, h, uiAuth, apiAuth)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("Formly остановлен")
}
