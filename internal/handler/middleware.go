package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/nkacou/walletd/internal/service"
	u "github.com/nkacou/walletd/internal/utils"
)

type contextKey string

const principalKey contextKey = "principal"

// PrincipalFromContext returns the authenticated account id placed on the
// request context by RequireAuth.
func PrincipalFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(principalKey).(int64)
	return id, ok
}

// RequireAuth verifies the bearer token and injects the principal's account
// id into the request context. The identity claim is all that flows down;
// handlers and services re-fetch account state fresh from the store.
func RequireAuth(auth service.AuthService, logger *slog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, found := strings.CutPrefix(header, "Bearer ")
			if !found || token == "" {
				u.WriteError(w, http.StatusUnauthorized, "missing bearer token", "")
				return
			}

			userID, err := auth.ParseToken(token)
			if err != nil {
				logger.Warn("rejected invalid token", "error", err.Error())
				u.WriteError(w, http.StatusUnauthorized, "invalid token", "")
				return
			}

			ctx := context.WithValue(r.Context(), principalKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// LoggingMiddleware logs incoming HTTP requests.
func LoggingMiddleware(logger *slog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			logger.Info("incoming request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", wrapped.statusCode,
				"duration_ms", time.Since(start).Milliseconds(),
			)
		})
	}
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
