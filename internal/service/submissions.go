// submissions.go — сервис приёма и модерации заявок.
// Приём: валидация по схеме арендатора, применение политики загрузки,
// сохранение вложений, запись заявки в статусе pending и очистка
// черновика в одной транзакции.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/formly-platform/formly/internal/domain/model"
	"github.com/formly-platform/formly/internal/domain/schema"
	"github.com/formly-platform/formly/internal/notify"
	"github.com/formly-platform/formly/internal/repository"
	"github.com/formly-platform/formly/internal/storage/filestore"
)

// imageExts — расширения, попадающие в галерею изображений.
var imageExts = map[string]bool{
	"jpg": true, "jpeg": true, "png": true, "gif": true, "webp": true,
}

// Upload — одно загружаемое вложение.
type Upload struct {
	// Filename — оригинальное имя файла от клиента
	Filename string
	// Reader — содержимое файла
	Reader io.Reader
}

// SubmitInput — вход конвейера приёма заявки.
type SubmitInput struct {
	// Values — значения полей формы (строка или список строк)
	Values map[string]any
	// Files — вложения по ключу поля
	Files map[string][]Upload
	// DraftToken — токен черновика для очистки после приёма
	DraftToken string
	// UserID — id пользователя консоли, если заявка подана из-под сессии
	UserID *int
}

// SubmitResult — результат приёма заявки.
type SubmitResult struct {
	// Submission — созданная заявка
	Submission *model.Submission
	// RejectedFiles — имена вложений, отброшенных политикой загрузки
	RejectedFiles []string
}

// StatusEntry — строка ответа самопроверки статуса.
type StatusEntry struct {
	ID            int       `json:"id"`
	Status        string    `json:"status"`
	ReviewComment string    `json:"review_comment"`
	CreatedAt     time.Time `json:"created_at"`
}

// DailyCount — количество заявок за день.
type DailyCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// ChoiceChart — распределение ответов первого вариативного поля.
type ChoiceChart struct {
	FieldKey string         `json:"field_key"`
	Label    string         `json:"label"`
	Counts   map[string]int `json:"counts"`
}

// ChartData — данные графиков консоли.
type ChartData struct {
	// Daily — заявки по дням за последние 14 дней, включая нулевые
	Daily []DailyCount `json:"daily"`
	// Statuses — заявки по статусам модерации
	Statuses map[string]int `json:"statuses"`
	// Choice — распределение первого radio/select/checkbox поля (nil — нет такого поля)
	Choice *ChoiceChart `json:"choice,omitempty"`
}

// chartDays — глубина дневного графика.
const chartDays = 14

// SubmissionService — приём, модерация и аналитика заявок.
type SubmissionService struct {
	subs   repository.SubmissionRepository
	drafts repository.DraftRepository
	tx     *repository.TxRunner
	files  *filestore.FileStore
	mailer notify.Mailer
	logger *slog.Logger
}

// NewSubmissionService создаёт сервис заявок.
func NewSubmissionService(
	subs repository.SubmissionRepository,
	drafts repository.DraftRepository,
	tx *repository.TxRunner,
	files *filestore.FileStore,
	mailer notify.Mailer,
	logger *slog.Logger,
) *SubmissionService {
	return &SubmissionService{
		subs:   subs,
		drafts: drafts,
		tx:     tx,
		files:  files,
		mailer: mailer,
		logger: logger.With(slog.String("component", "submission_service")),
	}
}

// Submit проводит заявку через конвейер приёма.
// В данные попадают только ключи, объявленные в схеме; вложения,
// отброшенные политикой, перечисляются в результате (или отклоняют
// заявку целиком при strict-политике).
func (s *SubmissionService) Submit(ctx context.Context, form *model.FormDef, in SubmitInput) (*SubmitResult, error) {
	sch, err := schema.Parse(form.SchemaJSON)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	data, err := s.collectValues(sch, in.Values)
	if err != nil {
		return nil, err
	}

	rejected, err := s.storeFiles(sch, form, in.Files, data)
	if err != nil {
		return nil, err
	}

	sub := &model.Submission{
		FormID: form.ID,
		UserID: in.UserID,
		Data:   data,
		Status: model.StatusPending,
	}

	// Запись заявки и очистка черновика — одна транзакция
	err = s.tx.RunInTx(ctx, func(tx pgx.Tx) error {
		if err := repository.NewSubmissionRepository(tx).Create(ctx, sub); err != nil {
			return err
		}
		if in.DraftToken != "" {
			if err := repository.NewDraftRepository(tx).Delete(ctx, form.ID, in.DraftToken); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("сохранение заявки: %w", err)
	}

	s.logger.Info("Заявка принята",
		slog.Int("form_id", form.ID),
		slog.Int("submission_id", sub.ID),
		slog.Int("rejected_files", len(rejected)))

	return &SubmitResult{Submission: sub, RejectedFiles: rejected}, nil
}

// collectValues валидирует значения по схеме и собирает данные заявки.
func (s *SubmissionService) collectValues(sch *schema.Schema, values map[string]any) (map[string]any, error) {
	data := make(map[string]any, len(sch.Fields))
	var problems []string

	for _, f := range sch.Fields {
		if f.Kind == schema.KindFile {
			continue // вложения обрабатываются отдельно
		}

		v := values[f.Key]
		switch f.Kind {
		case schema.KindCheckbox:
			list := stringList(v)
			if f.Required && len(list) == 0 {
				problems = append(problems, fmt.Sprintf("поле '%s' обязательно", f.Key))
				continue
			}
			for _, item := range list {
				if !contains(f.Options, item) {
					problems = append(problems, fmt.Sprintf("поле '%s': недопустимый вариант '%s'", f.Key, item))
				}
			}
			if len(list) > 0 {
				data[f.Key] = list
			}

		case schema.KindRadio, schema.KindSelect:
			str := strings.TrimSpace(scalarString(v))
			if str == "" {
				if f.Required {
					problems = append(problems, fmt.Sprintf("поле '%s' обязательно", f.Key))
				}
				continue
			}
			if !contains(f.Options, str) {
				problems = append(problems, fmt.Sprintf("поле '%s': недопустимый вариант '%s'", f.Key, str))
				continue
			}
			data[f.Key] = str

		case schema.KindNumber:
			str := strings.TrimSpace(scalarString(v))
			if str == "" {
				if f.Required {
					problems = append(problems, fmt.Sprintf("поле '%s' обязательно", f.Key))
				}
				continue
			}
			if _, err := strconv.ParseFloat(str, 64); err != nil {
				problems = append(problems, fmt.Sprintf("поле '%s': ожидается число", f.Key))
				continue
			}
			data[f.Key] = str

		case schema.KindEmail:
			str := strings.TrimSpace(scalarString(v))
			if str == "" {
				if f.Required {
					problems = append(problems, fmt.Sprintf("поле '%s' обязательно", f.Key))
				}
				continue
			}
			if !strings.Contains(str, "@") {
				problems = append(problems, fmt.Sprintf("поле '%s': некорректный email", f.Key))
				continue
			}
			data[f.Key] = str

		default: // text, tel, date, time, textarea
			str := strings.TrimSpace(scalarString(v))
			if str == "" {
				if f.Required {
					problems = append(problems, fmt.Sprintf("поле '%s' обязательно", f.Key))
				}
				continue
			}
			data[f.Key] = str
		}
	}

	if len(problems) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrValidation, strings.Join(problems, "; "))
	}
	return data, nil
}

// storeFiles применяет политику загрузки, сохраняет допущенные вложения
// и записывает списки URL в данные заявки. Возвращает имена отброшенных.
func (s *SubmissionService) storeFiles(
	sch *schema.Schema,
	form *model.FormDef,
	files map[string][]Upload,
	data map[string]any,
) ([]string, error) {
	policy := sch.Upload
	var rejected []string

	for _, f := range sch.Fields {
		if f.Kind != schema.KindFile {
			continue
		}

		uploads := files[f.Key]
		var urls []string
		for _, up := range uploads {
			if up.Filename == "" {
				continue
			}
			if len(urls) >= policy.MaxFiles {
				rejected = append(rejected, up.Filename)
				continue
			}
			if !policy.Allows(up.Filename) {
				rejected = append(rejected, up.Filename)
				continue
			}

			result, err := s.files.Save(form.SchemaName, up.Reader, up.Filename)
			if err != nil {
				return nil, fmt.Errorf("сохранение вложения '%s': %w", up.Filename, err)
			}
			urls = append(urls, fmt.Sprintf("/site/%s/uploads/%s", form.SiteName, result.StoredName))
		}

		if f.Required && len(urls) == 0 {
			return nil, fmt.Errorf("%w: поле '%s' обязательно", ErrValidation, f.Key)
		}
		if len(urls) > 0 {
			// Ссылки на файлы затирают любое постороннее значение ключа
			data[f.Key] = urls
		}
	}

	if policy.Strict && len(rejected) > 0 {
		return nil, fmt.Errorf("%w: вложения отклонены политикой: %s",
			ErrValidation, strings.Join(rejected, ", "))
	}
	return rejected, nil
}

// List возвращает заявки формы для консоли.
func (s *SubmissionService) List(ctx context.Context, formID int, q string) ([]*model.Submission, error) {
	return s.subs.List(ctx, formID, q, repository.ListLimitDefault)
}

// ListForExport возвращает заявки формы с расширенным лимитом выборки.
func (s *SubmissionService) ListForExport(ctx context.Context, formID int) ([]*model.Submission, error) {
	return s.subs.List(ctx, formID, "", repository.ListLimitExport)
}

// Get возвращает заявку в пределах формы.
func (s *SubmissionService) Get(ctx context.Context, formID, id int) (*model.Submission, error) {
	sub, err := s.subs.GetByID(ctx, formID, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return sub, nil
}

// Review переводит заявку в указанный статус с комментарием модератора.
// Допустимы любые переходы между pending, approved и rejected.
func (s *SubmissionService) Review(ctx context.Context, formID, id int, status, comment string) error {
	if !model.ValidStatus(status) {
		return ErrInvalidStatus
	}
	if err := s.subs.UpdateReview(ctx, formID, id, status, comment); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("обновление статуса: %w", err)
	}

	s.logger.Info("Заявка отмодерирована",
		slog.Int("form_id", formID),
		slog.Int("submission_id", id),
		slog.String("status", status))
	return nil
}

// Delete удаляет заявку в пределах формы.
func (s *SubmissionService) Delete(ctx context.Context, formID, id int) error {
	if err := s.subs.Delete(ctx, formID, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("удаление заявки: %w", err)
	}
	return nil
}

// StatusQuery — анонимная самопроверка статуса: заявитель вводит
// значение любого своего поля (телефон, email, имя), сервис возвращает
// статусы совпавших заявок без содержимого данных.
func (s *SubmissionService) StatusQuery(ctx context.Context, formID int, query string) ([]StatusEntry, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: пустой запрос", ErrValidation)
	}

	subs, err := s.subs.List(ctx, formID, query, repository.ListLimitExport)
	if err != nil {
		return nil, err
	}

	var entries []StatusEntry
	for _, sub := range subs {
		if !matchesExact(sub.Data, query) {
			continue
		}
		entries = append(entries, StatusEntry{
			ID:            sub.ID,
			Status:        sub.Status,
			ReviewComment: sub.ReviewComment,
			CreatedAt:     sub.CreatedAt,
		})
	}
	return entries, nil
}

// Charts собирает данные графиков консоли.
func (s *SubmissionService) Charts(ctx context.Context, form *model.FormDef) (*ChartData, error) {
	byDay, err := s.subs.CountByDay(ctx, form.ID, chartDays)
	if err != nil {
		return nil, err
	}
	byStatus, err := s.subs.CountByStatus(ctx, form.ID)
	if err != nil {
		return nil, err
	}

	// Дневной график: все 14 дней, включая нулевые
	daily := make([]DailyCount, 0, chartDays)
	now := time.Now().UTC()
	for i := chartDays - 1; i >= 0; i-- {
		day := now.AddDate(0, 0, -i).Format("2006-01-02")
		daily = append(daily, DailyCount{Date: day, Count: byDay[day]})
	}

	data := &ChartData{Daily: daily, Statuses: byStatus}

	// Распределение первого вариативного поля
	sch, err := schema.Parse(form.SchemaJSON)
	if err != nil {
		return data, nil //nolint:nilerr // сломанная схема не должна ронять графики
	}
	choice := sch.FirstChoiceField()
	if choice == nil {
		return data, nil
	}

	subs, err := s.subs.List(ctx, form.ID, "", repository.ListLimitExport)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	for _, sub := range subs {
		switch v := sub.Data[choice.Key].(type) {
		case string:
			if v != "" {
				counts[v]++
			}
		case []any:
			for _, item := range v {
				if str, ok := item.(string); ok && str != "" {
					counts[str]++
				}
			}
		}
	}

	label := choice.Label
	if label == "" {
		label = choice.Key
	}
	data.Choice = &ChoiceChart{FieldKey: choice.Key, Label: label, Counts: counts}
	return data, nil
}

// Gallery собирает URL изображений из вложений всех заявок формы.
func (s *SubmissionService) Gallery(ctx context.Context, form *model.FormDef) ([]string, error) {
	sch, err := schema.Parse(form.SchemaJSON)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if !sch.HasFileField() {
		return nil, nil
	}

	subs, err := s.subs.List(ctx, form.ID, "", repository.ListLimitExport)
	if err != nil {
		return nil, err
	}

	var urls []string
	for _, sub := range subs {
		for _, f := range sch.Fields {
			if f.Kind != schema.KindFile {
				continue
			}
			for _, u := range anyStringList(sub.Data[f.Key]) {
				if isImageURL(u) {
					urls = append(urls, u)
				}
			}
		}
	}
	return urls, nil
}

// SendMail отправляет письмо заявителю по данным его заявки.
func (s *SubmissionService) SendMail(ctx context.Context, formID, id int, subject, body string) error {
	sub, err := s.Get(ctx, formID, id)
	if err != nil {
		return err
	}

	if err := s.mailer.Send(ctx, sub.Data, subject, body); err != nil {
		switch {
		case errors.Is(err, notify.ErrNoRecipient):
			return ErrNoRecipient
		case errors.Is(err, notify.ErrNotConfigured):
			return ErrSMTPUnavailable
		default:
			return fmt.Errorf("%w: %v", ErrSMTPUnavailable, err)
		}
	}
	return nil
}

// --- вспомогательные функции ---

// scalarString приводит значение формы к строке.
func scalarString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case []string:
		if len(x) > 0 {
			return x[0]
		}
	case []any:
		if len(x) > 0 {
			if str, ok := x[0].(string); ok {
				return str
			}
		}
	}
	return ""
}

// stringList приводит значение формы к списку непустых строк.
func stringList(v any) []string {
	var out []string
	appendStr := func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	switch x := v.(type) {
	case string:
		appendStr(x)
	case []string:
		for _, s := range x {
			appendStr(s)
		}
	case []any:
		for _, item := range x {
			if s, ok := item.(string); ok {
				appendStr(s)
			}
		}
	}
	return out
}

// anyStringList приводит значение данных заявки к списку строк.
func anyStringList(v any) []string {
	switch x := v.(type) {
	case []string:
		return x
	case []any:
		var out []string
		for _, item := range x {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		if x != "" {
			return []string{x}
		}
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

// matchesExact проверяет точное совпадение запроса с любым скалярным
// значением данных заявки.
func matchesExact(data map[string]any, query string) bool {
	for _, v := range data {
		switch x := v.(type) {
		case string:
			if strings.TrimSpace(x) == query {
				return true
			}
		case []any:
			for _, item := range x {
				if s, ok := item.(string); ok && strings.TrimSpace(s) == query {
					return true
				}
			}
		}
	}
	return false
}

// isImageURL проверяет расширение файла по URL.
func isImageURL(u string) bool {
	idx := strings.LastIndex(u, ".")
	if idx < 0 {
		return false
	}
	return imageExts[strings.ToLower(u[idx+1:])]
}
