// drafts.go — сервис черновиков публичной формы.
// Черновик привязан к паре (форма, токен); токен выдаётся сервером
// при первом сохранении и хранится клиентом в localStorage.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/formly-platform/formly/internal/domain/model"
	"github.com/formly-platform/formly/internal/domain/schema"
	"github.com/formly-platform/formly/internal/repository"
	"github.com/formly-platform/formly/internal/storage/filestore"
)

// DraftService — сохранение и восстановление черновиков.
type DraftService struct {
	drafts repository.DraftRepository
	files  *filestore.FileStore
	logger *slog.Logger
}

// NewDraftService создаёт сервис черновиков.
func NewDraftService(drafts repository.DraftRepository, files *filestore.FileStore, logger *slog.Logger) *DraftService {
	return &DraftService{
		drafts: drafts,
		files:  files,
		logger: logger.With(slog.String("component", "draft_service")),
	}
}

// Save сохраняет черновик. Пустой токен — первое сохранение, сервер
// генерирует новый; повторная подача того же токена обновляет запись.
// Новые вложения проходят политику загрузки и сливаются со ссылками
// предыдущих сохранений в пределах maxFiles; нарушители молча
// отбрасываются — черновик не место для жёстких отказов.
func (s *DraftService) Save(
	ctx context.Context,
	form *model.FormDef,
	token string,
	data map[string]any,
	newFiles map[string][]Upload,
) (*model.Draft, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		token = strings.ReplaceAll(uuid.New().String(), "-", "")
	} else if len(token) > 128 {
		return nil, fmt.Errorf("%w: слишком длинный токен черновика", ErrValidation)
	}

	if data == nil {
		data = map[string]any{}
	}

	sch, err := schema.Parse(form.SchemaJSON)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	// Ссылки предыдущих сохранений
	fileURLs := map[string][]string{}
	if prev, err := s.drafts.Get(ctx, form.ID, token); err == nil {
		fileURLs = prev.Files
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	if fileURLs == nil {
		fileURLs = map[string][]string{}
	}

	policy := sch.Upload
	for key, uploads := range newFiles {
		urls := fileURLs[key]
		for _, up := range uploads {
			if up.Filename == "" || len(urls) >= policy.MaxFiles || !policy.Allows(up.Filename) {
				continue
			}
			result, err := s.files.Save(form.SchemaName, up.Reader, up.Filename)
			if err != nil {
				return nil, fmt.Errorf("сохранение вложения '%s': %w", up.Filename, err)
			}
			urls = append(urls, fmt.Sprintf("/site/%s/uploads/%s", form.SiteName, result.StoredName))
		}
		if len(urls) > 0 {
			fileURLs[key] = urls
		}
	}

	d := &model.Draft{
		FormID: form.ID,
		Token:  token,
		Data:   data,
		Files:  fileURLs,
	}
	if err := s.drafts.Upsert(ctx, d); err != nil {
		return nil, fmt.Errorf("сохранение черновика: %w", err)
	}

	s.logger.Debug("Черновик сохранён",
		slog.Int("form_id", form.ID),
		slog.String("token", token))
	return d, nil
}

// Get возвращает черновик по токену.
func (s *DraftService) Get(ctx context.Context, formID int, token string) (*model.Draft, error) {
	d, err := s.drafts.Get(ctx, formID, strings.TrimSpace(token))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return d, nil
}
