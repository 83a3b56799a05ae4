package auth

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/xela07ax/riskwatch/internal/domain"
)

// TokenValidator: проверка подписи и срока токена
type TokenValidator interface {
	VerifyToken(tokenStr string) (*domain.CustomClaims, error)
}

// SessionChecker отклоняет токены отозванных сессий (force_logout, lock_account).
type SessionChecker interface {
	CheckSession(ctx context.Context, claims *domain.CustomClaims) error
}

type ctxKey struct{}

// ClaimsFrom достает claims, положенные NewMiddleware.
func ClaimsFrom(ctx context.Context) (*domain.CustomClaims, bool) {
	c, ok := ctx.Value(ctxKey{}).(*domain.CustomClaims)
	return c, ok
}

// WithClaims кладет claims в контекст. Нужен тестам обработчиков.
func WithClaims(ctx context.Context, c *domain.CustomClaims) context.Context {
	return context.WithValue(ctx, ctxKey{}, c)
}

// NewMiddleware пропускает только запросы с валидным bearer-токеном живой сессии.
// Любой отказ дает 401 с {"detail": ...}, по нему клиент консоли уводит оператора на вход.
func NewMiddleware(v TokenValidator, sessions SessionChecker, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeDetail(w, http.StatusUnauthorized, "Not authenticated")
				return
			}

			claims, err := v.VerifyToken(authHeader)
			if err != nil {
				logger.Warn("auth failure", zap.Error(err))
				writeDetail(w, http.StatusUnauthorized, "Invalid token")
				return
			}
			if sessions != nil {
				if err := sessions.CheckSession(r.Context(), claims); err != nil {
					logger.Info("session rejected", zap.String("user_id", claims.UserID), zap.Error(err))
					writeDetail(w, http.StatusUnauthorized, err.Error())
					return
				}
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// RequireRole: 403 для всех, кроме указанной роли. Ставится после NewMiddleware.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFrom(r.Context())
			if !ok || claims.Role != role {
				writeDetail(w, http.StatusForbidden, "Admin access required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"detail": detail})
}
