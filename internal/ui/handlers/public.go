package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/formly-platform/formly/internal/domain/model"
	"github.com/formly-platform/formly/internal/domain/schema"
	"github.com/formly-platform/formly/internal/service"
	"github.com/formly-platform/formly/internal/storage/filestore"
	"github.com/formly-platform/formly/internal/ui/auth"
	"github.com/formly-platform/formly/internal/ui/templates"
)

// multipartMemory — порог буферизации multipart-формы в памяти
// (не предел размера запроса — его задаёт FY_UPLOAD_MAX_BYTES).
const multipartMemory = 10 << 20

// PublicHandler — публичные страницы арендаторов: форма, черновики,
// самопроверка статуса и раздача загруженных файлов.
type PublicHandler struct {
	forms    *service.FormService
	subs     *service.SubmissionService
	drafts   *service.DraftService
	files    *filestore.FileStore
	sessions *auth.SessionManager
	maxBytes int64
	logger   *slog.Logger
}

// NewPublicHandler создаёт обработчик публичных страниц.
// maxBytes ограничивает тело запросов приёма заявок и черновиков.
func NewPublicHandler(
	forms *service.FormService,
	subs *service.SubmissionService,
	drafts *service.DraftService,
	files *filestore.FileStore,
	sessions *auth.SessionManager,
	maxBytes int64,
	logger *slog.Logger,
) *PublicHandler {
	return &PublicHandler{
		forms:    forms,
		subs:     subs,
		drafts:   drafts,
		files:    files,
		sessions: sessions,
		maxBytes: maxBytes,
		logger:   logger.With(slog.String("component", "ui_public_handler")),
	}
}

// sessionOrNil читает сессию консоли из cookie, если она есть.
// Публичные маршруты доступны и без сессии.
func (h *PublicHandler) sessionOrNil(r *http.Request) *auth.SessionData {
	s, err := h.sessions.GetSessionFromRequest(r)
	if err != nil || s == nil || s.IsExpired() {
		return nil
	}
	return s
}

// Landing перенаправляет корень: сессия — в консоль, иначе на вход.
// GET /
func (h *PublicHandler) Landing(w http.ResponseWriter, r *http.Request) {
	if h.sessionOrNil(r) != nil {
		http.Redirect(w, r, "/index", http.StatusFound)
		return
	}
	http.Redirect(w, r, "/login", http.StatusFound)
}

// formBySlug ищет форму арендатора, отдавая 404 в HTML-стиле.
func (h *PublicHandler) formBySlug(w http.ResponseWriter, r *http.Request) *model.FormDef {
	f, err := h.forms.GetBySiteName(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		if !errors.Is(err, service.ErrNotFound) {
			h.logger.Error("Не удалось получить форму", slog.String("error", err.Error()))
		}
		http.NotFound(w, r)
		return nil
	}
	return f
}

// formData строит данные шаблона публичной формы.
func formData(f *model.FormDef, sch *schema.Schema, preview bool) *templates.PublicFormData {
	return &templates.PublicFormData{
		Brand:       templates.BrandOr(sch.Theme.BrandLight),
		Form:        f,
		Fields:      sch.Fields,
		Description: template.HTML(sch.Description), //nolint:gosec // HTML описания пишет владелец формы
		HasFiles:    sch.HasFileField(),
		Action:      "/f/" + f.SiteName,
		Preview:     preview,
	}
}

// schemaOrEmpty разбирает схему арендатора; сломанная схема
// отображается как пустая форма, а не как ошибка.
func (h *PublicHandler) schemaOrEmpty(f *model.FormDef) *schema.Schema {
	sch, err := schema.Parse(f.SchemaJSON)
	if err != nil {
		h.logger.Warn("Сломанная схема формы, отображаем пустую",
			slog.String("site_name", f.SiteName), slog.String("error", err.Error()))
		return &schema.Schema{}
	}
	return sch
}

// ShowForm отображает публичную форму по схеме арендатора.
// GET /f/{slug}
func (h *PublicHandler) ShowForm(w http.ResponseWriter, r *http.Request) {
	f := h.formBySlug(w, r)
	if f == nil {
		return
	}
	renderPage(w, h.logger, "public_form", formData(f, h.schemaOrEmpty(f), false))
}

// Preview — та же страница без кнопки отправки (для редактора).
// GET /site/{slug}/preview
func (h *PublicHandler) Preview(w http.ResponseWriter, r *http.Request) {
	f := h.formBySlug(w, r)
	if f == nil {
		return
	}
	renderPage(w, h.logger, "public_form", formData(f, h.schemaOrEmpty(f), true))
}

// parseSubmission извлекает значения и вложения из запроса.
// Тело запроса ограничено maxBytes через http.MaxBytesReader;
// закрытие открытых вложений — на вызывающем.
func parseSubmission(w http.ResponseWriter, r *http.Request, maxBytes int64) (map[string]any, map[string][]service.Upload, []func(), error) {
	var closers []func()

	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	ct := r.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "multipart/form-data") {
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			return nil, nil, nil, err
		}
	} else if err := r.ParseForm(); err != nil {
		return nil, nil, nil, err
	}

	values := make(map[string]any, len(r.Form))
	for key, vals := range r.Form {
		if key == "draft_token" {
			continue
		}
		if len(vals) == 1 {
			values[key] = vals[0]
		} else {
			values[key] = vals
		}
	}

	files := map[string][]service.Upload{}
	if r.MultipartForm != nil {
		for key, headers := range r.MultipartForm.File {
			for _, fh := range headers {
				src, err := fh.Open()
				if err != nil {
					continue
				}
				closers = append(closers, func() { _ = src.Close() })
				files[key] = append(files[key], service.Upload{Filename: fh.Filename, Reader: src})
			}
		}
	}
	return values, files, closers, nil
}

// writeParseError различает превышение предела размера и прочий мусор.
func writeParseError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		http.Error(w, fmt.Sprintf("Размер запроса превышает предел %d байт", tooLarge.Limit),
			http.StatusRequestEntityTooLarge)
		return
	}
	http.Error(w, "Некорректный запрос", http.StatusBadRequest)
}

// SubmitForm принимает заявку.
// POST /f/{slug}
func (h *PublicHandler) SubmitForm(w http.ResponseWriter, r *http.Request) {
	f := h.formBySlug(w, r)
	if f == nil {
		return
	}
	sch := h.schemaOrEmpty(f)

	values, files, closers, err := parseSubmission(w, r, h.maxBytes)
	if err != nil {
		writeParseError(w, err)
		return
	}
	defer func() {
		for _, c := range closers {
			c()
		}
	}()

	in := service.SubmitInput{
		Values:     values,
		Files:      files,
		DraftToken: r.FormValue("draft_token"),
	}
	if sess := h.sessionOrNil(r); sess != nil {
		uid := sess.UserID
		in.UserID = &uid
	}

	res, err := h.subs.Submit(r.Context(), f, in)
	if err != nil {
		if errors.Is(err, service.ErrValidation) {
			data := formData(f, sch, false)
			data.Error = strings.TrimPrefix(err.Error(), service.ErrValidation.Error()+": ")
			w.WriteHeader(http.StatusBadRequest)
			renderPage(w, h.logger, "public_form", data)
			return
		}
		h.logger.Error("Не удалось принять заявку",
			slog.String("site_name", f.SiteName), slog.String("error", err.Error()))
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	data := formData(f, sch, false)
	data.Submitted = true
	data.SubmissionID = res.Submission.ID
	data.Rejected = res.RejectedFiles
	renderPage(w, h.logger, "public_form", data)
}

// draftResponse — JSON-ответы эндпоинтов черновиков.
type draftResponse struct {
	Token     string              `json:"token"`
	Data      map[string]any      `json:"data,omitempty"`
	Files     map[string][]string `json:"files,omitempty"`
	UpdatedAt time.Time           `json:"updated_at"`
}

// SaveDraft сохраняет черновик заявки (вызывается страницей формы).
// POST /site/{slug}/draft/save
func (h *PublicHandler) SaveDraft(w http.ResponseWriter, r *http.Request) {
	f := h.formBySlug(w, r)
	if f == nil {
		return
	}

	values, files, closers, err := parseSubmission(w, r, h.maxBytes)
	if err != nil {
		writeParseError(w, err)
		return
	}
	defer func() {
		for _, c := range closers {
			c()
		}
	}()

	d, err := h.drafts.Save(r.Context(), f, r.FormValue("draft_token"), values, files)
	if err != nil {
		if errors.Is(err, service.ErrValidation) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.logger.Error("Не удалось сохранить черновик",
			slog.String("site_name", f.SiteName), slog.String("error", err.Error()))
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(draftResponse{Token: d.Token, Files: d.Files, UpdatedAt: d.UpdatedAt})
}

// GetDraft возвращает сохранённый черновик для восстановления на клиенте.
// GET /site/{slug}/draft/get?token=
func (h *PublicHandler) GetDraft(w http.ResponseWriter, r *http.Request) {
	f := h.formBySlug(w, r)
	if f == nil {
		return
	}

	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if token == "" {
		http.Error(w, "Не указан токен черновика", http.StatusBadRequest)
		return
	}

	d, err := h.drafts.Get(r.Context(), f.ID, token)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		h.logger.Error("Не удалось получить черновик",
			slog.String("site_name", f.SiteName), slog.String("error", err.Error()))
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(draftResponse{Token: d.Token, Data: d.Data, Files: d.Files, UpdatedAt: d.UpdatedAt})
}

// StatusQuery — публичная самопроверка статуса заявки по точному
// значению любого поля.
// GET /site/{slug}/status_query?name=
func (h *PublicHandler) StatusQuery(w http.ResponseWriter, r *http.Request) {
	f := h.formBySlug(w, r)
	if f == nil {
		return
	}

	data := &templates.StatusQueryData{
		Brand: templates.BrandOr(h.schemaOrEmpty(f).Theme.BrandLight),
		Query: strings.TrimSpace(r.URL.Query().Get("name")),
	}
	if data.Query != "" {
		data.Searched = true
		entries, err := h.subs.StatusQuery(r.Context(), f.ID, data.Query)
		if err != nil {
			h.logger.Error("Ошибка самопроверки статуса",
				slog.String("site_name", f.SiteName), slog.String("error", err.Error()))
			http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
			return
		}
		for _, e := range entries {
			data.Entries = append(data.Entries, templates.StatusEntry{
				ID:            e.ID,
				Status:        e.Status,
				ReviewComment: e.ReviewComment,
			})
		}
	}
	renderPage(w, h.logger, "status_query", data)
}

// ServeUpload раздаёт загруженный файл арендатора.
// GET /site/{slug}/uploads/{filename}
func (h *PublicHandler) ServeUpload(w http.ResponseWriter, r *http.Request) {
	f := h.formBySlug(w, r)
	if f == nil {
		return
	}

	file, err := h.files.Open(f.SchemaName, chi.URLParam(r, "filename"))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer func() { _ = file.Close() }()

	st, err := file.Stat()
	if err != nil {
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}
	http.ServeContent(w, r, st.Name(), st.ModTime(), file)
}
