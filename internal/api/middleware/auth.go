// auth.go — аутентификация JSON API консоли.
// Идентичность извлекается либо из cookie-сессии консоли, либо из
// Bearer HS256-токена, выданного endpoint'ом /admin/api/token для
// программного доступа (интеграции, скрипты выгрузки).
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apierrors "github.com/formly-platform/formly/internal/api/errors"
	"github.com/formly-platform/formly/internal/ui/auth"
)

// contextKey — тип для ключей контекста (избегаем коллизий).
type contextKey string

const (
	// ContextKeyIdentity — идентичность запроса в контексте.
	ContextKeyIdentity contextKey = "api_identity"
)

// Identity — аутентифицированный субъект запроса к API.
type Identity struct {
	// UserID — id пользователя в БД.
	UserID int
	// Username — имя пользователя.
	Username string
	// Role — роль (user, admin, super_admin).
	Role string
	// ViaToken — true, если запрос пришёл с Bearer-токеном, а не сессией.
	ViaToken bool
}

// tokenClaims — claims Bearer-токена API.
type tokenClaims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// TokenIssuer выпускает и проверяет HS256-токены программного доступа.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenIssuer создаёт эмитент токенов API.
func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), ttl: ttl}
}

// Issue выпускает токен для пользователя консоли.
func (ti *TokenIssuer) Issue(userID int, username, role string) (string, error) {
	now := time.Now()
	claims := tokenClaims{
		Username: username,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprintf("%d", userID),
			Issuer:    "formly",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ti.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(ti.secret)
	if err != nil {
		return "", fmt.Errorf("подпись токена: %w", err)
	}
	return signed, nil
}

// TTL возвращает срок жизни выпускаемых токенов.
func (ti *TokenIssuer) TTL() time.Duration {
	return ti.ttl
}

// Verify проверяет подпись и срок действия токена.
func (ti *TokenIssuer) Verify(tokenString string) (*Identity, error) {
	claims := &tokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("неожиданный метод подписи: %v", t.Header["alg"])
			}
			return ti.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer("formly"),
	)
	if err != nil {
		return nil, fmt.Errorf("проверка токена: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("недействительный токен")
	}

	var userID int
	if _, err := fmt.Sscanf(claims.Subject, "%d", &userID); err != nil {
		return nil, fmt.Errorf("некорректный subject токена: %w", err)
	}

	return &Identity{
		UserID:   userID,
		Username: claims.Username,
		Role:     claims.Role,
		ViaToken: true,
	}, nil
}

// APIAuth — middleware аутентификации JSON API.
type APIAuth struct {
	sessions *auth.SessionManager
	tokens   *TokenIssuer
	logger   *slog.Logger
}

// NewAPIAuth создаёт middleware API-аутентификации.
func NewAPIAuth(sessions *auth.SessionManager, tokens *TokenIssuer, logger *slog.Logger) *APIAuth {
	return &APIAuth{
		sessions: sessions,
		tokens:   tokens,
		logger:   logger.With(slog.String("component", "api_auth_middleware")),
	}
}

// Middleware проверяет Bearer-токен или cookie-сессию.
// Отсутствие обоих — 401 в стандартном JSON-формате ошибки.
func (aa *APIAuth) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := aa.resolveIdentity(r)
			if identity == nil {
				apierrors.Unauthorized(w, "требуется аутентификация")
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyIdentity, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// resolveIdentity извлекает идентичность из Bearer-заголовка или cookie.
func (aa *APIAuth) resolveIdentity(r *http.Request) *Identity {
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		tokenString := strings.TrimPrefix(header, "Bearer ")
		identity, err := aa.tokens.Verify(tokenString)
		if err != nil {
			aa.logger.Debug("Отклонён Bearer-токен",
				slog.String("error", err.Error()),
				slog.String("remote_addr", r.RemoteAddr))
			return nil
		}
		return identity
	}

	session, err := aa.sessions.GetSessionFromRequest(r)
	if err != nil || session == nil || session.IsExpired() {
		return nil
	}
	return &Identity{
		UserID:   session.UserID,
		Username: session.Username,
		Role:     session.Role,
	}
}

// IdentityFromContext извлекает Identity из контекста запроса.
// Возвращает nil если запрос не прошёл через APIAuth middleware.
func IdentityFromContext(ctx context.Context) *Identity {
	identity, ok := ctx.Value(ContextKeyIdentity).(*Identity)
	if !ok {
		return nil
	}
	return identity
}
