// Package identity resolves the authenticated caller for each request.
package identity

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/averev/signlink/internal/auth"
)

type contextKey int

const (
	userIDKey contextKey = iota
	emailKey
)

// UserIDFromContext extracts the authenticated user ID from the request
// context, or "" when the request was not authenticated.
func UserIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(userIDKey).(string); ok {
		return v
	}
	return ""
}

// EmailFromContext extracts the authenticated user's email from the request
// context.
func EmailFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(emailKey).(string); ok {
		return v
	}
	return ""
}

// WithUser returns a context carrying the given identity. Exposed for tests.
func WithUser(ctx context.Context, userID, email string) context.Context {
	ctx = context.WithValue(ctx, userIDKey, userID)
	return context.WithValue(ctx, emailKey, email)
}

func tokenFromRequest(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if after, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(after)
	}
	// Browsers cannot set headers on websocket upgrades; accept a query
	// parameter there.
	return r.URL.Query().Get("access_token")
}

// Middleware verifies the bearer token against the auth service and stores
// the caller's identity in the request context. Requests without a valid
// token are rejected with a structured 401.
func Middleware(verifier auth.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := tokenFromRequest(r)
			if token == "" {
				unauthorized(w, "missing bearer token")
				return
			}

			user, err := verifier.User(r.Context(), token)
			if err != nil {
				if errors.Is(err, auth.ErrUnauthorized) {
					unauthorized(w, "invalid or expired token")
					return
				}
				slog.Error("Token verification failed", "error", err)
				http.Error(w, `{"error":"authentication service unavailable"}`, http.StatusBadGateway)
				return
			}

			ctx := WithUser(r.Context(), user.ID, user.Email)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"` + message + `"}`))
}
