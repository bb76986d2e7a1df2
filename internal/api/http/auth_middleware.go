package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"plotwaitlist-backend/internal/config"
	"plotwaitlist-backend/internal/logger"
	"plotwaitlist-backend/internal/security"
)

type contextKey string

const adminEmailKey contextKey = "admin-email"

// AuthMiddleware guards named routes according to config.RouteSecurityConfig.
type AuthMiddleware struct {
	tokenManager security.TokenManager
}

func NewAuthMiddleware(tm security.TokenManager) *AuthMiddleware {
	return &AuthMiddleware{tokenManager: tm}
}

func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := ""
		if route := mux.CurrentRoute(r); route != nil {
			name = route.GetName()
		}

		// Public route - skip auth
		if config.GetSecurityLevel(name) == config.SecurityPublic {
			next.ServeHTTP(w, r)
			return
		}

		token, ok := bearerToken(r)
		if !ok {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "authorization token is not provided"})
			return
		}

		claims, err := m.tokenManager.ValidateToken(token)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if !claims.IsAdmin() {
			writeJSON(w, http.StatusForbidden, errorResponse{Error: "administrator access required"})
			return
		}

		ctx := context.WithValue(r.Context(), adminEmailKey, claims.Email)
		logger.DebugContext(ctx, "Admin request authorized", "route", name, "admin", claims.Email)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	// Remove Bearer prefix if present
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	return token, token != ""
}

// AdminEmail returns the authenticated administrator for the request.
func AdminEmail(ctx context.Context) string {
	email, _ := ctx.Value(adminEmailKey).(string)
	return email
}
