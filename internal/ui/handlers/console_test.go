package handlers

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/formly-platform/formly/internal/domain/model"
	"github.com/formly-platform/formly/internal/domain/rbac"
	"github.com/formly-platform/formly/internal/service"
	"github.com/formly-platform/formly/internal/storage/filestore"
	"github.com/formly-platform/formly/internal/ui/auth"
	uimiddleware "github.com/formly-platform/formly/internal/ui/middleware"
)

func TestCreateSuccessPublicURL(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	files, err := filestore.New(t.TempDir())
	if err != nil {
		t.Fatalf("filestore.New: %v", err)
	}
	repo := &stubFormRepo{form: &model.FormDef{
		ID:         1,
		Name:       "Анкета",
		SiteName:   "anketa",
		SchemaJSON: map[string]any{"fields": []any{}},
		SchemaName: "form_anketa",
	}}
	forms := service.NewFormService(repo, files, logger)
	subs := service.NewSubmissionService(nil, nil, nil, files, nil, logger)

	h := NewConsoleHandler(forms, subs, "https://forms.example.com/", logger)

	router := chi.NewRouter()
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := auth.NewSession(1, "alice", rbac.RoleAdmin)
			ctx := context.WithValue(r.Context(), uimiddleware.ContextKeyUISession, sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	router.Get("/site/{slug}/create_success", h.CreateSuccess)

	req := httptest.NewRequest(http.MethodGet, "/site/anketa/create_success", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("код = %d, ожидалось 200", rec.Code)
	}
	// Ссылка должна быть абсолютной, без двойного слэша после базы
	if !strings.Contains(rec.Body.String(), "https://forms.example.com/f/anketa") {
		t.Errorf("на странице нет абсолютной публичной ссылки: %s", rec.Body.String())
	}
}
