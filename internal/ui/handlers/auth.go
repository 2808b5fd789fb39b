// Пакет handlers — HTTP-обработчики web-интерфейса Formly:
// вход, консоль владельца и публичные страницы форм.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/formly-platform/formly/internal/service"
	"github.com/formly-platform/formly/internal/ui/auth"
	"github.com/formly-platform/formly/internal/ui/templates"
	uimiddleware "github.com/formly-platform/formly/internal/ui/middleware"
)

// AuthHandler — вход, регистрация и выход из консоли.
type AuthHandler struct {
	accounts *service.AccountService
	sessions *auth.SessionManager
	logger   *slog.Logger
}

// NewAuthHandler создаёт обработчик аутентификации.
func NewAuthHandler(accounts *service.AccountService, sessions *auth.SessionManager, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		accounts: accounts,
		sessions: sessions,
		logger:   logger.With(slog.String("component", "ui_auth_handler")),
	}
}

// renderPage пишет HTML-страницу; ошибки рендеринга логируются.
func renderPage(w http.ResponseWriter, logger *slog.Logger, page string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.Render(w, page, data); err != nil {
		logger.Error("Ошибка рендеринга страницы", slog.String("page", page), slog.String("error", err.Error()))
		http.Error(w, "Ошибка рендеринга страницы", http.StatusInternalServerError)
	}
}

// ShowLogin отображает форму входа.
// GET /login
func (h *AuthHandler) ShowLogin(w http.ResponseWriter, r *http.Request) {
	if s, _ := h.sessions.GetSessionFromRequest(r); s != nil && !s.IsExpired() {
		http.Redirect(w, r, "/index", http.StatusFound)
		return
	}
	renderPage(w, h.logger, "login", &templates.LoginData{Brand: templates.BrandOr("")})
}

// Login проверяет учётные данные и выставляет сессию.
// POST /login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	username := strings.TrimSpace(r.FormValue("username"))
	password := r.FormValue("password")

	user, err := h.accounts.Authenticate(r.Context(), username, password)
	if err != nil {
		if errors.Is(err, service.ErrUnauthorized) {
			renderPage(w, h.logger, "login", &templates.LoginData{
				Brand: templates.BrandOr(""),
				Error: "Неверное имя пользователя или пароль",
			})
			return
		}
		h.logger.Error("Ошибка аутентификации", slog.String("username", username), slog.String("error", err.Error()))
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	if err := h.sessions.SetSessionCookie(w, auth.NewSession(user.ID, user.Username, user.Role)); err != nil {
		h.logger.Error("Не удалось создать сессию", slog.String("error", err.Error()))
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	h.logger.Info("Пользователь вошёл в консоль", slog.String("username", user.Username))
	http.Redirect(w, r, "/index", http.StatusFound)
}

// ShowRegister отображает форму регистрации.
// GET /register
func (h *AuthHandler) ShowRegister(w http.ResponseWriter, r *http.Request) {
	renderPage(w, h.logger, "register", &templates.LoginData{Brand: templates.BrandOr("")})
}

// Register создаёт аккаунт и сразу открывает сессию.
// POST /register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	username := strings.TrimSpace(r.FormValue("username"))
	password := r.FormValue("password")

	user, err := h.accounts.Register(r.Context(), username, password)
	if err != nil {
		msg := "Внутренняя ошибка сервера"
		switch {
		case errors.Is(err, service.ErrValidation):
			msg = err.Error()
		case errors.Is(err, service.ErrConflict):
			msg = "Имя пользователя уже занято"
		default:
			h.logger.Error("Ошибка регистрации", slog.String("username", username), slog.String("error", err.Error()))
		}
		renderPage(w, h.logger, "register", &templates.LoginData{Brand: templates.BrandOr(""), Error: msg})
		return
	}

	if err := h.sessions.SetSessionCookie(w, auth.NewSession(user.ID, user.Username, user.Role)); err != nil {
		h.logger.Error("Не удалось создать сессию", slog.String("error", err.Error()))
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	h.logger.Info("Зарегистрирован пользователь", slog.String("username", user.Username), slog.Int("user_id", user.ID))
	http.Redirect(w, r, "/index", http.StatusFound)
}

// Logout сбрасывает сессию.
// GET /logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.sessions.ClearSessionCookie(w)
	http.Redirect(w, r, "/login", http.StatusFound)
}

// ShowChangePassword отображает форму смены пароля.
// GET /password
func (h *AuthHandler) ShowChangePassword(w http.ResponseWriter, r *http.Request) {
	sess := uimiddleware.SessionFromContext(r.Context())
	if sess == nil {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}
	renderPage(w, h.logger, "password", &templates.PasswordData{
		Brand:    templates.BrandOr(""),
		Username: sess.Username,
	})
}

// ChangePassword меняет пароль текущего пользователя.
// POST /password
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	sess := uimiddleware.SessionFromContext(r.Context())
	if sess == nil {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	data := &templates.PasswordData{
		Brand:    templates.BrandOr(""),
		Username: sess.Username,
	}
	err := h.accounts.ChangePassword(r.Context(), sess.UserID,
		r.FormValue("old_password"), r.FormValue("new_password"))
	switch {
	case err == nil:
		data.Notice = "Пароль изменён"
	case errors.Is(err, service.ErrUnauthorized):
		data.Error = "Текущий пароль указан неверно"
	case errors.Is(err, service.ErrValidation):
		data.Error = err.Error()
	default:
		h.logger.Error("Ошибка смены пароля",
			slog.Int("user_id", sess.UserID), slog.String("error", err.Error()))
		data.Error = "Внутренняя ошибка сервера"
	}
	renderPage(w, h.logger, "password", data)
}

// ChangeRole повышает роль пользователя (только super_admin).
// POST /users/{userID}/role
func (h *AuthHandler) ChangeRole(w http.ResponseWriter, r *http.Request) {
	sess := uimiddleware.SessionFromContext(r.Context())
	if sess == nil {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	targetID, err := strconv.Atoi(chi.URLParam(r, "userID"))
	if err != nil {
		http.NotFound(w, r)
		return
	}

	if err := h.accounts.ChangeRole(r.Context(), sess.Role, targetID, r.FormValue("role")); err != nil {
		switch {
		case errors.Is(err, service.ErrForbidden):
			http.Error(w, "Доступ запрещён", http.StatusForbidden)
		case errors.Is(err, service.ErrNotFound):
			http.NotFound(w, r)
		case errors.Is(err, service.ErrValidation):
			http.Error(w, err.Error(), http.StatusBadRequest)
		default:
			h.logger.Error("Ошибка смены роли",
				slog.Int("target_id", targetID), slog.String("error", err.Error()))
			http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		}
		return
	}

	http.Redirect(w, r, "/index", http.StatusFound)
}
