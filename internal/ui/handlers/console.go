package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/formly-platform/formly/internal/domain/model"
	"github.com/formly-platform/formly/internal/domain/rbac"
	"github.com/formly-platform/formly/internal/domain/schema"
	"github.com/formly-platform/formly/internal/service"
	"github.com/formly-platform/formly/internal/ui/templates"
	uimiddleware "github.com/formly-platform/formly/internal/ui/middleware"
)

// starterSchemas — заготовки схем для редактора (/create_form/new?tpl=...).
var starterSchemas = map[string]string{
	"blank": `{
  "fields": [
    {"key": "name", "type": "text", "label": "Имя", "required": true}
  ]
}`,
	"contact": `{
  "fields": [
    {"key": "name", "type": "text", "label": "姓名", "required": true},
    {"key": "email", "type": "email", "label": "邮箱", "required": true},
    {"key": "phone", "type": "tel", "label": "电话"},
    {"key": "message", "type": "textarea", "label": "留言", "required": true}
  ],
  "theme": {"brand": "#2563eb"}
}`,
	"signup": `{
  "fields": [
    {"key": "name", "type": "text", "label": "姓名", "required": true},
    {"key": "phone", "type": "tel", "label": "电话", "required": true},
    {"key": "session", "type": "select", "label": "场次", "required": true,
     "options": ["上午", "下午", "晚上"]},
    {"key": "attachments", "type": "file", "label": "附件"}
  ],
  "upload": {"allowed_file_types": "jpg,jpeg,png,pdf", "max_files": 3}
}`,
}

// ConsoleHandler — страницы консоли владельца форм.
type ConsoleHandler struct {
	forms   *service.FormService
	subs    *service.SubmissionService
	baseURL string
	logger  *slog.Logger
}

// NewConsoleHandler создаёт обработчик консоли.
// baseURL используется в абсолютных ссылках success-страницы.
func NewConsoleHandler(forms *service.FormService, subs *service.SubmissionService, baseURL string, logger *slog.Logger) *ConsoleHandler {
	return &ConsoleHandler{
		forms:   forms,
		subs:    subs,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger.With(slog.String("component", "ui_console_handler")),
	}
}

// Index — список форм пользователя (для super_admin — всех).
// GET /index
func (h *ConsoleHandler) Index(w http.ResponseWriter, r *http.Request) {
	sess := uimiddleware.SessionFromContext(r.Context())
	if sess == nil {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	forms, err := h.forms.ListForConsole(r.Context(), sess.UserID, sess.Role)
	if err != nil {
		h.logger.Error("Не удалось получить список форм", slog.String("error", err.Error()))
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	renderPage(w, h.logger, "index", &templates.IndexData{
		Brand:    templates.BrandOr(""),
		Username: sess.Username,
		Forms:    forms,
	})
}

// ShowCreateForm — редактор, предзаполненный последней формой
// пользователя (продолжение работы после перезахода).
// GET /create_form
func (h *ConsoleHandler) ShowCreateForm(w http.ResponseWriter, r *http.Request) {
	sess := uimiddleware.SessionFromContext(r.Context())
	if sess == nil {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	data := &templates.CreateFormData{
		Brand:      templates.BrandOr(""),
		Username:   sess.Username,
		SchemaJSON: starterSchemas["blank"],
	}
	if f, err := h.forms.LatestByOwner(r.Context(), sess.UserID); err == nil {
		h.prefill(data, f)
	}
	renderPage(w, h.logger, "create_form", data)
}

// ShowCreateFormNew — чистый редактор с заготовкой по ?tpl=.
// GET /create_form/new
func (h *ConsoleHandler) ShowCreateFormNew(w http.ResponseWriter, r *http.Request) {
	sess := uimiddleware.SessionFromContext(r.Context())
	if sess == nil {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	starter, ok := starterSchemas[r.URL.Query().Get("tpl")]
	if !ok {
		starter = starterSchemas["blank"]
	}
	renderPage(w, h.logger, "create_form", &templates.CreateFormData{
		Brand:      templates.BrandOr(""),
		Username:   sess.Username,
		SchemaJSON: starter,
	})
}

// ShowEditForm — редактор существующей формы.
// GET /create_form/site/{slug}
func (h *ConsoleHandler) ShowEditForm(w http.ResponseWriter, r *http.Request) {
	sess := uimiddleware.SessionFromContext(r.Context())
	if sess == nil {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	f, err := h.forms.GetBySiteName(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	if !rbac.CanManageForm(sess.Role, sess.UserID, f.CreatedBy) {
		http.Error(w, "Доступ запрещён", http.StatusForbidden)
		return
	}

	data := &templates.CreateFormData{
		Brand:    templates.BrandOr(""),
		Username: sess.Username,
		EditSlug: f.SiteName,
	}
	h.prefill(data, f)
	renderPage(w, h.logger, "create_form", data)
}

// prefill заполняет редактор данными существующей формы.
func (h *ConsoleHandler) prefill(data *templates.CreateFormData, f *model.FormDef) {
	data.Name = f.Name
	data.SiteName = f.SiteName
	data.Description = f.Description
	if raw, err := json.MarshalIndent(f.SchemaJSON, "", "  "); err == nil {
		data.SchemaJSON = string(raw)
	}
}

// CreateForm публикует форму (создание или перезапись по slug).
// POST /create_form
func (h *ConsoleHandler) CreateForm(w http.ResponseWriter, r *http.Request) {
	sess := uimiddleware.SessionFromContext(r.Context())
	if sess == nil {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	req := service.CreateFormRequest{
		Name:        strings.TrimSpace(r.FormValue("name")),
		SiteName:    strings.TrimSpace(r.FormValue("site_name")),
		SchemaJSON:  r.FormValue("schema_json"),
		Description: strings.TrimSpace(r.FormValue("description")),
	}

	f, err := h.forms.Create(r.Context(), req, sess.UserID)
	if err != nil {
		msg := "Внутренняя ошибка сервера"
		if errors.Is(err, service.ErrValidation) {
			msg = err.Error()
		} else {
			h.logger.Error("Не удалось опубликовать форму",
				slog.String("site_name", req.SiteName), slog.String("error", err.Error()))
		}
		renderPage(w, h.logger, "create_form", &templates.CreateFormData{
			Brand:       templates.BrandOr(""),
			Username:    sess.Username,
			Name:        req.Name,
			SiteName:    req.SiteName,
			Description: req.Description,
			SchemaJSON:  req.SchemaJSON,
			Error:       msg,
		})
		return
	}

	http.Redirect(w, r, "/site/"+f.SiteName+"/create_success", http.StatusFound)
}

// CreateSuccess — страница после публикации формы.
// GET /site/{slug}/create_success
func (h *ConsoleHandler) CreateSuccess(w http.ResponseWriter, r *http.Request) {
	sess := uimiddleware.SessionFromContext(r.Context())
	if sess == nil {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	f, err := h.forms.GetBySiteName(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	renderPage(w, h.logger, "create_success", &templates.CreateSuccessData{
		Brand:     templates.BrandOr(""),
		Username:  sess.Username,
		Form:      f,
		PublicURL: h.baseURL + "/f/" + f.SiteName,
	})
}

// SiteAdmin — консоль заявок арендатора.
// GET /site/{slug}/admin?q=
func (h *ConsoleHandler) SiteAdmin(w http.ResponseWriter, r *http.Request) {
	sess := uimiddleware.SessionFromContext(r.Context())
	if sess == nil {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	f, err := h.forms.GetBySiteName(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	if !rbac.CanManageForm(sess.Role, sess.UserID, f.CreatedBy) {
		http.Error(w, "Доступ запрещён", http.StatusForbidden)
		return
	}

	q := strings.TrimSpace(r.URL.Query().Get("q"))
	items, err := h.subs.List(r.Context(), f.ID, q)
	if err != nil {
		h.logger.Error("Не удалось получить заявки",
			slog.String("site_name", f.SiteName), slog.String("error", err.Error()))
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	// Сломанная схема не должна ломать консоль: показываем без колонок.
	sch, err := schema.Parse(f.SchemaJSON)
	if err != nil {
		sch = &schema.Schema{}
	}

	renderPage(w, h.logger, "site_admin", &templates.SiteAdminData{
		Brand:    templates.BrandOr(sch.Theme.BrandLight),
		Username: sess.Username,
		Form:     f,
		Items:    items,
		Columns:  sch.Columns(),
		Query:    q,
		Total:    len(items),
	})
}

// DeleteForm удаляет форму со всеми заявками и файлами.
// POST /form/{formID}/delete
func (h *ConsoleHandler) DeleteForm(w http.ResponseWriter, r *http.Request) {
	sess := uimiddleware.SessionFromContext(r.Context())
	if sess == nil {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	formID, err := strconv.Atoi(chi.URLParam(r, "formID"))
	if err != nil {
		http.NotFound(w, r)
		return
	}

	if err := h.forms.Delete(r.Context(), formID, sess.UserID, sess.Role); err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			http.NotFound(w, r)
		case errors.Is(err, service.ErrForbidden):
			http.Error(w, "Доступ запрещён", http.StatusForbidden)
		default:
			h.logger.Error("Не удалось удалить форму", slog.Int("form_id", formID), slog.String("error", err.Error()))
			http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		}
		return
	}

	h.logger.Info("Форма удалена", slog.Int("form_id", formID), slog.Int("user_id", sess.UserID))
	http.Redirect(w, r, "/index", http.StatusFound)
}

// DeleteSubmission удаляет заявку из консоли.
// POST /form/{formID}/delete/{subID}
func (h *ConsoleHandler) DeleteSubmission(w http.ResponseWriter, r *http.Request) {
	sess := uimiddleware.SessionFromContext(r.Context())
	if sess == nil {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	formID, err := strconv.Atoi(chi.URLParam(r, "formID"))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	subID, err := strconv.Atoi(chi.URLParam(r, "subID"))
	if err != nil {
		http.NotFound(w, r)
		return
	}

	f, err := h.forms.GetByID(r.Context(), formID)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	if !rbac.CanManageForm(sess.Role, sess.UserID, f.CreatedBy) {
		http.Error(w, "Доступ запрещён", http.StatusForbidden)
		return
	}

	if err := h.subs.Delete(r.Context(), formID, subID); err != nil && !errors.Is(err, service.ErrNotFound) {
		h.logger.Error("Не удалось удалить заявку",
			slog.Int("form_id", formID), slog.Int("submission_id", subID), slog.String("error", err.Error()))
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, "/site/"+f.SiteName+"/admin", http.StatusFound)
}
