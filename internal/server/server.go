// Пакет server — HTTP-сервер Formly с graceful shutdown.
// Без TLS — HTTP внутри кластера, TLS termination на балансировщике.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	apihandlers "github.com/formly-platform/formly/internal/api/handlers"
	apimiddleware "github.com/formly-platform/formly/internal/api/middleware"
	"github.com/formly-platform/formly/internal/config"
	uihandlers "github.com/formly-platform/formly/internal/ui/handlers"
	uimiddleware "github.com/formly-platform/formly/internal/ui/middleware"
)

// Handlers — обработчики всех поверхностей сервера.
type Handlers struct {
	Auth    *uihandlers.AuthHandler
	Console *uihandlers.ConsoleHandler
	Public  *uihandlers.PublicHandler
	Admin   *apihandlers.AdminAPIHandler
	Health  *apihandlers.HealthHandler
}

// Server — HTTP-сервер Formly.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// New создаёт HTTP-сервер с настроенными маршрутами и middleware.
// uiAuth защищает страницы консоли (redirect на /login),
// apiAuth — JSON API арендатора (401 без сессии или Bearer-токена).
func New(
	cfg *config.Config,
	logger *slog.Logger,
	h Handlers,
	uiAuth *uimiddleware.UIAuth,
	apiAuth *apimiddleware.APIAuth,
) *Server {
	router := chi.NewRouter()

	// Глобальные middleware (применяются ко ВСЕМ маршрутам)
	router.Use(apimiddleware.MetricsMiddleware())
	router.Use(apimiddleware.RequestLogger(logger))

	// Служебные endpoints — без аутентификации
	router.Get("/health/live", h.Health.HealthLive)
	router.Get("/health/ready", h.Health.HealthReady)
	router.Get("/_health", h.Health.HealthFlat)
	router.Get("/metrics", h.Health.GetMetrics)

	// Вход и регистрация
	router.Get("/login", h.Auth.ShowLogin)
	router.Post("/login", h.Auth.Login)
	router.Get("/register", h.Auth.ShowRegister)
	router.Post("/register", h.Auth.Register)
	router.Get("/logout", h.Auth.Logout)

	// Публичные страницы арендаторов
	router.Get("/", h.Public.Landing)
	router.Get("/f/{slug}", h.Public.ShowForm)
	router.Post("/f/{slug}", h.Public.SubmitForm)
	router.Post("/site/{slug}/draft/save", h.Public.SaveDraft)
	router.Get("/site/{slug}/draft/get", h.Public.GetDraft)
	router.Get("/site/{slug}/status_query", h.Public.StatusQuery)
	router.Get("/site/{slug}/uploads/{filename}", h.Public.ServeUpload)

	// Консоль владельца — за session cookie
	router.Group(func(r chi.Router) {
		r.Use(uiAuth.Middleware())

		r.Get("/index", h.Console.Index)
		r.Get("/password", h.Auth.ShowChangePassword)
		r.Post("/password", h.Auth.ChangePassword)
		r.Post("/users/{userID}/role", h.Auth.ChangeRole)
		r.Get("/create_form", h.Console.ShowCreateForm)
		r.Post("/create_form", h.Console.CreateForm)
		r.Get("/create_form/new", h.Console.ShowCreateFormNew)
		r.Get("/create_form/site/{slug}", h.Console.ShowEditForm)
		r.Get("/site/{slug}/create_success", h.Console.CreateSuccess)
		r.Get("/site/{slug}/admin", h.Console.SiteAdmin)
		r.Get("/site/{slug}/preview", h.Public.Preview)
		r.Post("/form/{formID}/delete", h.Console.DeleteForm)
		// Удаление заявки доступно и по GET — так ходят ссылки старой консоли
		r.Post("/form/{formID}/delete/{subID}", h.Console.DeleteSubmission)
		r.Get("/form/{formID}/delete/{subID}", h.Console.DeleteSubmission)
	})

	// JSON API арендатора — session cookie или Bearer-токен
	router.Route("/site/{slug}/admin/api", func(r chi.Router) {
		r.Use(apiAuth.Middleware())

		r.Get("/responses", h.Admin.ListResponses)
		// Алиасы старых клиентов консоли
		r.Get("/list", h.Admin.ListResponses)
		r.Get("/submissions", h.Admin.ListResponses)

		r.Post("/review", h.Admin.Review)
		r.Post("/delete", h.Admin.DeleteSubmission)
		r.Post("/send_mail", h.Admin.SendMail)

		r.Get("/export_excel/{subID}", h.Admin.ExportExcel)
		r.Get("/export_word/{subID}", h.Admin.ExportWord)
		r.Get("/export_all_excel", h.Admin.ExportAllExcel)

		r.Get("/charts", h.Admin.Charts)
		r.Get("/gallery", h.Admin.Gallery)

		r.Post("/upload_asset", h.Admin.UploadAsset)
		r.Post("/delete_asset", h.Admin.DeleteAsset)
		r.Post("/save_theme_bg", h.Admin.SaveThemeBg)

		r.Post("/token", h.Admin.IssueToken)
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
		cfg:        cfg,
	}
}

// Run запускает сервер и ожидает сигнала завершения (SIGINT, SIGTERM).
// При получении сигнала выполняется graceful shutdown.
func (s *Server) Run() error {
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
