package mw

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"washdesk/internal/service"
)

type contextKey string

const TokenCtxKey contextKey = "token"

// TokenStore is where the signed-in user's bearer token lives.
type TokenStore interface {
	Token(ctx context.Context) (string, error)
}

// RequireSession rejects requests while nobody is signed in or the stored
// token has expired.
func RequireSession(sessions TokenStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := sessions.Token(r.Context())
			if err != nil {
				slog.Debug("request without session", "path", r.URL.Path, "error", err)
				unauthorized(w, service.UserMessage(err))
				return
			}

			ctx := context.WithValue(r.Context(), TokenCtxKey, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": msg}); err != nil {
		slog.Error("encode response failed", "error", err)
	}
}
