package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"restaurant-system/internal/httpx"
	"restaurant-system/internal/logger"
	"restaurant-system/internal/models"
)

type ctxKey int

const userKey ctxKey = iota

// UserFromContext returns the user resolved by Middleware
func UserFromContext(ctx context.Context) *models.User {
	u, _ := ctx.Value(userKey).(*models.User)
	return u
}

func WithUser(ctx context.Context, u *models.User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

// Middleware rejects requests without a valid "Authorization: Bearer <token>" header
func Middleware(svc *Service, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			user, err := svc.Authenticate(r.Context(), token)
			if errors.Is(err, ErrUnauthorized) {
				httpx.WriteError(w, r, http.StatusUnauthorized, "Authentication required")
				return
			}
			if err != nil {
				log.Error("auth_failed", "Failed to resolve token", httpx.RequestID(r.Context()), err, nil)
				httpx.WriteError(w, r, http.StatusInternalServerError, "Internal server error")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// RequireRoles lets through only users holding one of roles
func RequireRoles(roles ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := UserFromContext(r.Context())
			if user == nil {
				httpx.WriteError(w, r, http.StatusUnauthorized, "Authentication required")
				return
			}
			for _, role := range roles {
				if user.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			httpx.WriteError(w, r, http.StatusForbidden, "Role "+string(user.Role)+" may not perform this action")
		})
	}
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
		return strings.TrimSpace(h[len(prefix):])
	}
	return ""
}
