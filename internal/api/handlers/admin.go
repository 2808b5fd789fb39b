// admin.go — JSON API консоли арендатора (/site/{slug}/admin/api/*).
// Все операции требуют идентичности (cookie-сессия или Bearer-токен)
// и права управления формой (владелец или super_admin).
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/formly-platform/formly/internal/api/errors"
	"github.com/formly-platform/formly/internal/api/middleware"
	"github.com/formly-platform/formly/internal/domain/model"
	"github.com/formly-platform/formly/internal/domain/rbac"
	"github.com/formly-platform/formly/internal/domain/schema"
	"github.com/formly-platform/formly/internal/export"
	"github.com/formly-platform/formly/internal/service"
)

// multipartMemory — порог буферизации multipart-формы в памяти
// (не предел размера запроса — его задаёт FY_UPLOAD_MAX_BYTES).
const multipartMemory = 10 << 20

// AdminAPIHandler — обработчик JSON API консоли арендатора.
type AdminAPIHandler struct {
	forms    *service.FormService
	subs     *service.SubmissionService
	tokens   *middleware.TokenIssuer
	maxBytes int64
	baseURL  string
	logger   *slog.Logger
}

// NewAdminAPIHandler создаёт обработчик admin API.
// maxBytes ограничивает тело upload_asset, baseURL используется
// в ссылках писем-уведомлений.
func NewAdminAPIHandler(
	forms *service.FormService,
	subs *service.SubmissionService,
	tokens *middleware.TokenIssuer,
	maxBytes int64,
	baseURL string,
	logger *slog.Logger,
) *AdminAPIHandler {
	return &AdminAPIHandler{
		forms:    forms,
		subs:     subs,
		tokens:   tokens,
		maxBytes: maxBytes,
		baseURL:  strings.TrimRight(baseURL, "/"),
		logger:   logger.With(slog.String("component", "admin_api_handler")),
	}
}

// resolveForm находит форму по slug'у и проверяет право управления.
// При ошибке пишет ответ и возвращает nil.
func (h *AdminAPIHandler) resolveForm(w http.ResponseWriter, r *http.Request) *model.FormDef {
	identity := middleware.IdentityFromContext(r.Context())
	if identity == nil {
		apierrors.Unauthorized(w, "требуется аутентификация")
		return nil
	}

	slug := chi.URLParam(r, "slug")
	form, err := h.forms.GetBySiteName(r.Context(), slug)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			apierrors.NotFound(w, fmt.Sprintf("форма '%s' не найдена", slug))
		} else {
			h.logger.Error("Ошибка поиска формы",
				slog.String("slug", slug),
				slog.String("error", err.Error()))
			apierrors.InternalError(w, "внутренняя ошибка")
		}
		return nil
	}

	if !rbac.CanManageForm(identity.Role, identity.UserID, form.CreatedBy) {
		apierrors.Forbidden(w, "форма принадлежит другому пользователю")
		return nil
	}
	return form
}

// writeJSON сериализует ответ.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeServiceError переводит ошибку сервисного слоя в JSON-ответ.
func (h *AdminAPIHandler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrValidation), errors.Is(err, service.ErrInvalidStatus),
		errors.Is(err, service.ErrNoRecipient):
		apierrors.ValidationError(w, err.Error())
	case errors.Is(err, service.ErrNotFound):
		apierrors.NotFound(w, err.Error())
	case errors.Is(err, service.ErrForbidden):
		apierrors.Forbidden(w, err.Error())
	case errors.Is(err, service.ErrConflict):
		apierrors.Conflict(w, err.Error())
	case errors.Is(err, service.ErrSMTPUnavailable):
		apierrors.SMTPUnavailable(w, err.Error())
	default:
		h.logger.Error("Внутренняя ошибка API", slog.String("error", err.Error()))
		apierrors.InternalError(w, "внутренняя ошибка")
	}
}

// --- Заявки ---

// responsesResponse — ответ списков заявок.
type responsesResponse struct {
	Items    []*model.Submission `json:"items"`
	Columns  []schema.Column     `json:"columns"`
	TitleMap map[string]string   `json:"title_map"`
	Total    int                 `json:"total"`
}

// ListResponses — GET responses|list|submissions: заявки формы
// с колонками консоли; ?q= — подстрочный поиск по данным.
func (h *AdminAPIHandler) ListResponses(w http.ResponseWriter, r *http.Request) {
	form := h.resolveForm(w, r)
	if form == nil {
		return
	}

	items, err := h.subs.List(r.Context(), form.ID, r.URL.Query().Get("q"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	sch, err := schema.Parse(form.SchemaJSON)
	if err != nil {
		// Сломанная схема не должна прятать заявки
		sch = &schema.Schema{}
	}
	if items == nil {
		items = []*model.Submission{}
	}

	writeJSON(w, http.StatusOK, responsesResponse{
		Items:    items,
		Columns:  sch.Columns(),
		TitleMap: sch.TitleMap(),
		Total:    len(items),
	})
}

// reviewRequest — тело POST review.
type reviewRequest struct {
	ID            int    `json:"id"`
	Status        string `json:"status"`
	ReviewComment string `json:"review_comment"`
}

// Review — POST review: смена статуса модерации с комментарием.
func (h *AdminAPIHandler) Review(w http.ResponseWriter, r *http.Request) {
	form := h.resolveForm(w, r)
	if form == nil {
		return
	}

	var req reviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "некорректное тело запроса")
		return
	}

	if err := h.subs.Review(r.Context(), form.ID, req.ID, req.Status, req.ReviewComment); err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// deleteRequest — тело POST delete.
type deleteRequest struct {
	ID int `json:"id"`
}

// DeleteSubmission — POST delete: удаление заявки.
func (h *AdminAPIHandler) DeleteSubmission(w http.ResponseWriter, r *http.Request) {
	form := h.resolveForm(w, r)
	if form == nil {
		return
	}

	var req deleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "некорректное тело запроса")
		return
	}

	if err := h.subs.Delete(r.Context(), form.ID, req.ID); err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// sendMailRequest — тело POST send_mail.
type sendMailRequest struct {
	ID      int    `json:"id"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// defaultMailBody — текст уведомления по умолчанию с абсолютной
// ссылкой на страницу самопроверки статуса.
func defaultMailBody(baseURL, siteName string, subID int) string {
	return fmt.Sprintf(
		"Статус вашей заявки №%d обновлён.\nПроверить: %s/site/%s/status_query",
		subID, baseURL, siteName)
}

// SendMail — POST send_mail: письмо заявителю по данным заявки.
func (h *AdminAPIHandler) SendMail(w http.ResponseWriter, r *http.Request) {
	form := h.resolveForm(w, r)
	if form == nil {
		return
	}

	var req sendMailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "некорректное тело запроса")
		return
	}
	if req.Subject == "" {
		req.Subject = fmt.Sprintf("Уведомление по заявке №%d", req.ID)
	}
	if req.Body == "" {
		req.Body = defaultMailBody(h.baseURL, form.SiteName, req.ID)
	}

	if err := h.subs.SendMail(r.Context(), form.ID, req.ID, req.Subject, req.Body); err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// --- Экспорт ---

// submissionForExport достаёт заявку по path-параметру subID.
func (h *AdminAPIHandler) submissionForExport(w http.ResponseWriter, r *http.Request, form *model.FormDef) *model.Submission {
	subID, err := strconv.Atoi(chi.URLParam(r, "subID"))
	if err != nil {
		apierrors.ValidationError(w, "некорректный id заявки")
		return nil
	}
	sub, err := h.subs.Get(r.Context(), form.ID, subID)
	if err != nil {
		h.writeServiceError(w, err)
		return nil
	}
	return sub
}

// ExportExcel — GET export_excel/{subID}: одна заявка в xlsx.
func (h *AdminAPIHandler) ExportExcel(w http.ResponseWriter, r *http.Request) {
	form := h.resolveForm(w, r)
	if form == nil {
		return
	}
	sub := h.submissionForExport(w, r, form)
	if sub == nil {
		return
	}

	sch, err := schema.Parse(form.SchemaJSON)
	if err != nil {
		sch = &schema.Schema{}
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="%s_%d.xlsx"`, form.SiteName, sub.ID))
	if err := export.WriteSubmissionExcel(w, sub, sch); err != nil {
		h.logger.Error("Ошибка экспорта xlsx", slog.String("error", err.Error()))
	}
}

// ExportWord — GET export_word/{subID}: одна заявка в Word-документе.
func (h *AdminAPIHandler) ExportWord(w http.ResponseWriter, r *http.Request) {
	form := h.resolveForm(w, r)
	if form == nil {
		return
	}
	sub := h.submissionForExport(w, r, form)
	if sub == nil {
		return
	}

	sch, err := schema.Parse(form.SchemaJSON)
	if err != nil {
		sch = &schema.Schema{}
	}

	w.Header().Set("Content-Type", "application/msword")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="%s_%d.doc"`, form.SiteName, sub.ID))
	if err := export.WriteSubmissionWord(w, sub, sch, form.Name); err != nil {
		h.logger.Error("Ошибка экспорта word", slog.String("error", err.Error()))
	}
}

// ExportAllExcel — GET export_all_excel: все заявки одной таблицей.
func (h *AdminAPIHandler) ExportAllExcel(w http.ResponseWriter, r *http.Request) {
	form := h.resolveForm(w, r)
	if form == nil {
		return
	}

	subs, err := h.subs.ListForExport(r.Context(), form.ID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	sch, err := schema.Parse(form.SchemaJSON)
	if err != nil {
		sch = &schema.Schema{}
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="%s_all.xlsx"`, form.SiteName))
	if err := export.WriteAllExcel(w, subs, sch); err != nil {
		h.logger.Error("Ошибка экспорта xlsx", slog.String("error", err.Error()))
	}
}

// --- Аналитика ---

// Charts — GET charts: данные графиков консоли.
func (h *AdminAPIHandler) Charts(w http.ResponseWriter, r *http.Request) {
	form := h.resolveForm(w, r)
	if form == nil {
		return
	}

	data, err := h.subs.Charts(r.Context(), form)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, data)
}

// Gallery — GET gallery: URL изображений из вложений заявок.
func (h *AdminAPIHandler) Gallery(w http.ResponseWriter, r *http.Request) {
	form := h.resolveForm(w, r)
	if form == nil {
		return
	}

	urls, err := h.subs.Gallery(r.Context(), form)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if urls == nil {
		urls = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"images": urls})
}

// --- Оформление ---

// UploadAsset — POST upload_asset: файл оформления арендатора.
func (h *AdminAPIHandler) UploadAsset(w http.ResponseWriter, r *http.Request) {
	form := h.resolveForm(w, r)
	if form == nil {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			apierrors.PayloadTooLarge(w,
				fmt.Sprintf("размер запроса превышает предел %d байт", tooLarge.Limit))
			return
		}
		apierrors.ValidationError(w, "некорректная multipart-форма")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		apierrors.ValidationError(w, "отсутствует файл 'file'")
		return
	}
	defer file.Close()

	url, err := h.forms.UploadAsset(r.Context(), form, service.Upload{
		Filename: header.Filename,
		Reader:   file,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"url": url})
}

// deleteAssetRequest — тело POST delete_asset.
type deleteAssetRequest struct {
	Filename string `json:"filename"`
}

// DeleteAsset — POST delete_asset: удаление файла оформления.
func (h *AdminAPIHandler) DeleteAsset(w http.ResponseWriter, r *http.Request) {
	form := h.resolveForm(w, r)
	if form == nil {
		return
	}

	var req deleteAssetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "некорректное тело запроса")
		return
	}

	if err := h.forms.DeleteAsset(r.Context(), form, req.Filename); err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// SaveThemeBg — POST save_theme_bg: частичные правки темы.
func (h *AdminAPIHandler) SaveThemeBg(w http.ResponseWriter, r *http.Request) {
	form := h.resolveForm(w, r)
	if form == nil {
		return
	}

	var patch map[string]any
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil || len(patch) == 0 {
		apierrors.ValidationError(w, "ожидается JSON-объект с ключами темы")
		return
	}

	updated, err := h.forms.SaveTheme(r.Context(), form.SiteName, patch)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "theme": updated.SchemaJSON["theme"]})
}

// --- Программный доступ ---

// IssueToken — POST token: короткоживущий Bearer-токен для интеграций.
// Доступ уже проверен resolveForm (владелец или super_admin).
func (h *AdminAPIHandler) IssueToken(w http.ResponseWriter, r *http.Request) {
	form := h.resolveForm(w, r)
	if form == nil {
		return
	}

	identity := middleware.IdentityFromContext(r.Context())
	if identity.ViaToken {
		// Токен не может порождать новые токены
		apierrors.Forbidden(w, "выпуск токена доступен только из сессии консоли")
		return
	}

	token, err := h.tokens.Issue(identity.UserID, identity.Username, identity.Role)
	if err != nil {
		h.logger.Error("Ошибка выпуска токена", slog.String("error", err.Error()))
		apierrors.InternalError(w, "внутренняя ошибка")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"token":      token,
		"expires_in": int(h.tokens.TTL().Seconds()),
		"site_name":  form.SiteName,
	})
}
