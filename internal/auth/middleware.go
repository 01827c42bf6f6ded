package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
)

// Authenticator resolves a raw API key into an Identity.
type Authenticator interface {
	Authenticate(ctx context.Context, rawKey string) (*Identity, error)
}

// Middleware extracts an API key from the Authorization or X-API-Key header,
// authenticates it, and injects the resolved Identity into the request
// context. Requests without a key pass through unauthenticated; handlers
// that require auth use RequireAuth.
func Middleware(authn *APIKeyAuthenticator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := extractAPIKey(r)
			if raw == "" {
				next.ServeHTTP(w, r)
				return
			}

			id, err := authn.Authenticate(r.Context(), raw)
			if err != nil {
				if !errors.Is(err, ErrKeyNotFound) && !errors.Is(err, ErrKeyExpired) {
					logger.Error("authenticating api key", "error", err)
				}
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), id)))
		})
	}
}

// RequireAuth rejects requests that carry no resolved Identity.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if FromContext(r.Context()) == nil {
			// The error body is written here directly: httpserver imports this
			// package, so it cannot be imported back.
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized", "message": "missing or invalid API key"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// extractAPIKey reads the raw key from "Authorization: Bearer <key>" or the
// "X-API-Key" header.
func extractAPIKey(r *http.Request) string {
	if v := r.Header.Get("X-API-Key"); v != "" {
		return v
	}
	if v := r.Header.Get("Authorization"); strings.HasPrefix(v, "Bearer ") {
		return strings.TrimPrefix(v, "Bearer ")
	}
	return ""
}
