package handlers

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/formly-platform/formly/internal/domain/model"
	"github.com/formly-platform/formly/internal/repository"
	"github.com/formly-platform/formly/internal/service"
	"github.com/formly-platform/formly/internal/storage/filestore"
	"github.com/formly-platform/formly/internal/ui/auth"
)

// stubFormRepo отдаёт единственную форму по любому slug'у.
// До обращения к базе дело в этих тестах не доходит.
type stubFormRepo struct {
	form *model.FormDef
}

func (s *stubFormRepo) Upsert(context.Context, *model.FormDef) error { return nil }
func (s *stubFormRepo) GetByID(context.Context, int) (*model.FormDef, error) {
	return s.form, nil
}
func (s *stubFormRepo) GetBySiteName(context.Context, string) (*model.FormDef, error) {
	return s.form, nil
}
func (s *stubFormRepo) ListByOwner(context.Context, int) ([]*model.FormDef, error) {
	return nil, nil
}
func (s *stubFormRepo) ListAll(context.Context) ([]*model.FormDef, error) { return nil, nil }
func (s *stubFormRepo) LatestByOwner(context.Context, int) (*model.FormDef, error) {
	return nil, repository.ErrNotFound
}
func (s *stubFormRepo) UpdateSchema(context.Context, string, map[string]any) error { return nil }
func (s *stubFormRepo) Delete(context.Context, int) error                          { return nil }

// newPublicTestServer собирает публичный обработчик с пределом
// тела запроса в maxBytes и возвращает его маршрутизатор.
func newPublicTestServer(t *testing.T, maxBytes int64) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	files, err := filestore.New(t.TempDir())
	if err != nil {
		t.Fatalf("filestore.New: %v", err)
	}
	sessions, err := auth.NewSessionManager("test-ui-session-secret", false)
	if err != nil {
		t.Fatalf("NewSessionManager: %v", err)
	}

	repo := &stubFormRepo{form: &model.FormDef{
		ID:       1,
		Name:     "Анкета",
		SiteName: "anketa",
		SchemaJSON: map[string]any{
			"fields": []any{
				map[string]any{"key": "name", "label": "Имя", "type": "text"},
			},
		},
		SchemaName: "form_anketa",
	}}

	forms := service.NewFormService(repo, files, logger)
	subs := service.NewSubmissionService(nil, nil, nil, files, nil, logger)
	drafts := service.NewDraftService(nil, files, logger)

	h := NewPublicHandler(forms, subs, drafts, files, sessions, maxBytes, logger)

	router := chi.NewRouter()
	router.Post("/f/{slug}", h.SubmitForm)
	router.Post("/site/{slug}/draft/save", h.SaveDraft)
	return router
}

// multipartBody собирает multipart-тело с одним полем и вложением
// заданного размера.
func multipartBody(t *testing.T, fileSize int) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("name", "Пётр"); err != nil {
		t.Fatalf("WriteField: %v", err)
	}
	fw, err := mw.CreateFormFile("attachment", "doc.pdf")
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	if _, err := fw.Write(bytes.Repeat([]byte("x"), fileSize)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func TestSubmitFormBodyLimit(t *testing.T) {
	router := newPublicTestServer(t, 1<<10)

	body, ct := multipartBody(t, 4<<10)
	req := httptest.NewRequest(http.MethodPost, "/f/anketa", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("код = %d, ожидалось 413", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "превышает предел") {
		t.Errorf("в ответе нет сообщения о пределе: %q", rec.Body.String())
	}
}

func TestSubmitFormUrlencodedBodyLimit(t *testing.T) {
	router := newPublicTestServer(t, 16)

	form := "name=" + strings.Repeat("a", 256)
	req := httptest.NewRequest(http.MethodPost, "/f/anketa", strings.NewReader(form))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("код = %d, ожидалось 413", rec.Code)
	}
}

func TestSaveDraftBodyLimit(t *testing.T) {
	router := newPublicTestServer(t, 1<<10)

	body, ct := multipartBody(t, 4<<10)
	req := httptest.NewRequest(http.MethodPost, "/site/anketa/draft/save", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("код = %d, ожидалось 413", rec.Code)
	}
}

func TestSubmitFormMalformedMultipart(t *testing.T) {
	router := newPublicTestServer(t, 1<<20)

	// multipart без boundary — мусор, но не превышение предела
	req := httptest.NewRequest(http.MethodPost, "/f/anketa", strings.NewReader("мусор"))
	req.Header.Set("Content-Type", "multipart/form-data")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("код = %d, ожидалось 400", rec.Code)
	}
}
