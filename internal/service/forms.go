// forms.go — сервис реестра форм (арендаторов).
// Создание и перепубликация формы по slug'у, выдача схемы, частичные
// правки темы и атомарное удаление арендатора вместе с его данными.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/formly-platform/formly/internal/domain/model"
	"github.com/formly-platform/formly/internal/domain/rbac"
	"github.com/formly-platform/formly/internal/domain/schema"
	"github.com/formly-platform/formly/internal/repository"
	"github.com/formly-platform/formly/internal/storage/filestore"
)

// CreateFormRequest — запрос на создание или перепубликацию формы.
type CreateFormRequest struct {
	// Name — отображаемое название формы
	Name string `validate:"required,min=1,max=200"`
	// SiteName — slug арендатора (идентификатор в URL)
	SiteName string `validate:"required,min=1,max=63"`
	// SchemaJSON — сырая JSON-схема формы
	SchemaJSON string `validate:"required"`
	// Description — необязательное описание для консоли
	Description string `validate:"max=2000"`
}

// FormService — сервис реестра форм.
type FormService struct {
	forms    repository.FormRepository
	files    *filestore.FileStore
	validate *validator.Validate
	logger   *slog.Logger
}

// NewFormService создаёт сервис реестра форм.
func NewFormService(
	forms repository.FormRepository,
	files *filestore.FileStore,
	logger *slog.Logger,
) *FormService {
	return &FormService{
		forms:    forms,
		files:    files,
		validate: validator.New(),
		logger:   logger.With(slog.String("component", "form_service")),
	}
}

// Create создаёт или перепубликует форму (upsert по slug'у).
// Схема разбирается строго: неизвестный тип поля, дубликат ключа или
// вариативное поле без options отклоняют запрос целиком.
func (s *FormService) Create(ctx context.Context, req CreateFormRequest, ownerID int) (*model.FormDef, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	if !schema.ValidSiteName(req.SiteName) {
		return nil, fmt.Errorf("%w: недопустимый slug '%s' (буквы, цифры, подчёркивание, не с цифры)",
			ErrValidation, req.SiteName)
	}

	var raw map[string]any
	if err := json.Unmarshal([]byte(req.SchemaJSON), &raw); err != nil {
		return nil, fmt.Errorf("%w: схема не является JSON-объектом: %v", ErrValidation, err)
	}
	if _, err := schema.Parse(raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	f := &model.FormDef{
		Name:        req.Name,
		SiteName:    req.SiteName,
		SchemaJSON:  raw,
		CreatedBy:   &ownerID,
		SchemaName:  schema.DeriveNamespace(req.SiteName),
		Description: req.Description,
	}
	if err := s.forms.Upsert(ctx, f); err != nil {
		return nil, fmt.Errorf("публикация формы: %w", err)
	}

	s.logger.Info("Форма опубликована",
		slog.Int("form_id", f.ID),
		slog.String("site_name", f.SiteName),
		slog.Int("owner_id", ownerID))
	return f, nil
}

// GetBySiteName возвращает форму по slug'у.
func (s *FormService) GetBySiteName(ctx context.Context, siteName string) (*model.FormDef, error) {
	f, err := s.forms.GetBySiteName(ctx, siteName)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return f, nil
}

// GetByID возвращает форму по id.
func (s *FormService) GetByID(ctx context.Context, id int) (*model.FormDef, error) {
	f, err := s.forms.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return f, nil
}

// ListForConsole возвращает формы для консоли: super_admin видит все,
// остальные — только свои.
func (s *FormService) ListForConsole(ctx context.Context, userID int, role string) ([]*model.FormDef, error) {
	if role == rbac.RoleSuperAdmin {
		return s.forms.ListAll(ctx)
	}
	return s.forms.ListByOwner(ctx, userID)
}

// LatestByOwner возвращает последнюю созданную форму владельца
// (страница «форма создана» после публикации).
func (s *FormService) LatestByOwner(ctx context.Context, ownerID int) (*model.FormDef, error) {
	f, err := s.forms.LatestByOwner(ctx, ownerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return f, nil
}

// SaveTheme вносит частичные правки темы в schema_json формы.
// Ключи patch сливаются в секцию theme, остальная схема не меняется.
func (s *FormService) SaveTheme(ctx context.Context, siteName string, patch map[string]any) (*model.FormDef, error) {
	f, err := s.GetBySiteName(ctx, siteName)
	if err != nil {
		return nil, err
	}

	raw := f.SchemaJSON
	if raw == nil {
		raw = map[string]any{}
	}
	theme, _ := raw["theme"].(map[string]any)
	if theme == nil {
		theme = map[string]any{}
	}
	for k, v := range patch {
		theme[k] = v
	}
	raw["theme"] = theme

	// Устаревшие ключи оформления старых схем вычищаются при каждой правке
	for _, legacy := range []string{"bg", "background", "notification"} {
		delete(raw, legacy)
	}

	// Правка не должна ломать схему
	if _, err := schema.Parse(raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	if err := s.forms.UpdateSchema(ctx, siteName, raw); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("сохранение темы: %w", err)
	}

	f.SchemaJSON = raw
	return f, nil
}

// UploadAsset сохраняет файл оформления арендатора (фон, логотип)
// и возвращает его публичный URL. Расширение проверяется по политике
// загрузки схемы.
func (s *FormService) UploadAsset(ctx context.Context, form *model.FormDef, up Upload) (string, error) {
	if up.Filename == "" {
		return "", fmt.Errorf("%w: пустое имя файла", ErrValidation)
	}

	sch, err := schema.Parse(form.SchemaJSON)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if !sch.Upload.Allows(up.Filename) {
		return "", fmt.Errorf("%w: расширение файла '%s' не разрешено", ErrValidation, up.Filename)
	}

	result, err := s.files.Save(form.SchemaName, up.Reader, up.Filename)
	if err != nil {
		return "", fmt.Errorf("сохранение файла оформления: %w", err)
	}

	s.logger.Info("Файл оформления загружен",
		slog.String("site_name", form.SiteName),
		slog.String("stored_name", result.StoredName))
	return fmt.Sprintf("/site/%s/uploads/%s", form.SiteName, result.StoredName), nil
}

// DeleteAsset удаляет файл оформления арендатора.
// Имена с разделителями пути или '..' отклоняются.
func (s *FormService) DeleteAsset(ctx context.Context, form *model.FormDef, filename string) error {
	if filename == "" ||
		strings.ContainsAny(filename, "/\\") ||
		strings.Contains(filename, "..") {
		return fmt.Errorf("%w: недопустимое имя файла", ErrValidation)
	}

	if !s.files.Exists(form.SchemaName, filename) {
		return ErrNotFound
	}
	if err := s.files.Delete(form.SchemaName, filename); err != nil {
		return fmt.Errorf("удаление файла оформления: %w", err)
	}
	return nil
}

// Delete удаляет форму вместе с заявками и черновиками (каскад БД)
// и директорией загрузок арендатора. Право на удаление: владелец
// или super_admin.
func (s *FormService) Delete(ctx context.Context, formID, userID int, role string) error {
	f, err := s.GetByID(ctx, formID)
	if err != nil {
		return err
	}

	if !rbac.CanManageForm(role, userID, f.CreatedBy) {
		return fmt.Errorf("%w: форма принадлежит другому пользователю", ErrForbidden)
	}

	if err := s.forms.Delete(ctx, formID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("удаление формы: %w", err)
	}

	// Файлы арендатора: best-effort, запись в лог при ошибке
	if err := s.files.RemoveNamespace(f.SchemaName); err != nil {
		s.logger.Warn("Не удалось удалить директорию загрузок",
			slog.String("namespace", f.SchemaName),
			slog.String("error", err.Error()))
	}

	s.logger.Info("Форма удалена",
		slog.Int("form_id", formID),
		slog.String("site_name", f.SiteName),
		slog.Int("deleted_by", userID))
	return nil
}
