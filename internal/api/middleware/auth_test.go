package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/formly-platform/formly/internal/ui/auth"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestAPIAuth(t *testing.T) (*APIAuth, *auth.SessionManager, *TokenIssuer) {
	t.Helper()
	sm, err := auth.NewSessionManager("test-session-key", false)
	if err != nil {
		t.Fatalf("NewSessionManager: %v", err)
	}
	ti := NewTokenIssuer("test-token-secret", time.Hour)
	return NewAPIAuth(sm, ti, testLogger()), sm, ti
}

// okHandler отвечает 200 и фиксирует идентичность из контекста.
func okHandler(got **Identity) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*got = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func TestAPIAuth_NoCredentials(t *testing.T) {
	aa, _, _ := newTestAPIAuth(t)

	var got *Identity
	handler := aa.Middleware()(okHandler(&got))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/site/x/admin/api/responses", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("статус = %d, хотели 401", rec.Code)
	}
	if got != nil {
		t.Error("идентичность попала в контекст без аутентификации")
	}
}

func TestAPIAuth_BearerToken(t *testing.T) {
	aa, _, ti := newTestAPIAuth(t)

	token, err := ti.Issue(5, "alice", "admin")
	if err != nil {
		t.Fatalf("Issue() ошибка: %v", err)
	}

	var got *Identity
	handler := aa.Middleware()(okHandler(&got))

	req := httptest.NewRequest(http.MethodGet, "/site/x/admin/api/responses", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("статус = %d, хотели 200", rec.Code)
	}
	if got == nil || got.UserID != 5 || got.Username != "alice" || got.Role != "admin" {
		t.Errorf("идентичность = %+v", got)
	}
	if !got.ViaToken {
		t.Error("ViaToken = false для Bearer-запроса")
	}
}

func TestAPIAuth_BearerWrongSecret(t *testing.T) {
	aa, _, _ := newTestAPIAuth(t)
	other := NewTokenIssuer("another-secret", time.Hour)

	token, _ := other.Issue(5, "alice", "admin")

	var got *Identity
	handler := aa.Middleware()(okHandler(&got))

	req := httptest.NewRequest(http.MethodGet, "/site/x/admin/api/responses", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("статус = %d, хотели 401", rec.Code)
	}
}

func TestAPIAuth_ExpiredToken(t *testing.T) {
	aa, _, _ := newTestAPIAuth(t)
	shortLived := NewTokenIssuer("test-token-secret", -time.Minute)

	token, _ := shortLived.Issue(5, "alice", "admin")

	var got *Identity
	handler := aa.Middleware()(okHandler(&got))

	req := httptest.NewRequest(http.MethodGet, "/site/x/admin/api/responses", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("статус = %d, хотели 401", rec.Code)
	}
}

func TestAPIAuth_SessionCookie(t *testing.T) {
	aa, sm, _ := newTestAPIAuth(t)

	// Получаем cookie как его установил бы login-handler
	setRec := httptest.NewRecorder()
	if err := sm.SetSessionCookie(setRec, auth.NewSession(9, "bob", "user")); err != nil {
		t.Fatalf("SetSessionCookie: %v", err)
	}
	cookie := setRec.Result().Cookies()[0]

	var got *Identity
	handler := aa.Middleware()(okHandler(&got))

	req := httptest.NewRequest(http.MethodGet, "/site/x/admin/api/responses", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("статус = %d, хотели 200", rec.Code)
	}
	if got == nil || got.UserID != 9 || got.ViaToken {
		t.Errorf("идентичность = %+v", got)
	}
}

func TestTokenIssueVerifyRoundTrip(t *testing.T) {
	ti := NewTokenIssuer("secret", time.Hour)

	token, err := ti.Issue(3, "carol", "super_admin")
	if err != nil {
		t.Fatalf("Issue() ошибка: %v", err)
	}

	identity, err := ti.Verify(token)
	if err != nil {
		t.Fatalf("Verify() ошибка: %v", err)
	}
	if identity.UserID != 3 || identity.Username != "carol" || identity.Role != "super_admin" {
		t.Errorf("идентичность = %+v", identity)
	}
}
