package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRequireAuth(t *testing.T) {
	okHandler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("rejects unauthenticated", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		w := httptest.NewRecorder()

		RequireAuth(okHandler).ServeHTTP(w, r)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
		}
	})

	t.Run("passes authenticated", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		ctx := NewContext(r.Context(), &Identity{})
		r = r.WithContext(ctx)
		w := httptest.NewRecorder()

		RequireAuth(okHandler).ServeHTTP(w, r)

		if w.Code != http.StatusOK {
			t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
		}
	})
}

func TestExtractAPIKey(t *testing.T) {
	tests := []struct {
		name   string
		header func(r *http.Request)
		want   string
	}{
		{"x-api-key header", func(r *http.Request) { r.Header.Set("X-API-Key", "bn_raw") }, "bn_raw"},
		{"bearer token", func(r *http.Request) { r.Header.Set("Authorization", "Bearer bn_raw2") }, "bn_raw2"},
		{"no header", func(r *http.Request) {}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			tt.header(r)
			if got := extractAPIKey(r); got != tt.want {
				t.Errorf("extractAPIKey() = %q, want %q", got, tt.want)
			}
		})
	}
}
