package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ok = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
})

func TestAdminOnly(t *testing.T) {
	tests := []struct {
		name    string
		enforce bool
		headers map[string]string
		want    int
	}{
		{name: "open outside production", enforce: false, want: http.StatusOK},
		{name: "missing token", enforce: true, want: http.StatusUnauthorized},
		{name: "wrong token", enforce: true, headers: map[string]string{AdminTokenHeader: "guess"}, want: http.StatusForbidden},
		{name: "header token", enforce: true, headers: map[string]string{AdminTokenHeader: "s3cret"}, want: http.StatusOK},
		{name: "bearer token", enforce: true, headers: map[string]string{"Authorization": "Bearer s3cret"}, want: http.StatusOK},
		{name: "basic auth ignored", enforce: true, headers: map[string]string{"Authorization": "Basic s3cret"}, want: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/entities", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()

			AdminOnly("s3cret", tt.enforce)(ok).ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
			if tt.want != http.StatusOK {
				assert.Contains(t, rec.Body.String(), `"success":false`)
			}
		})
	}
}

func TestAdminOnly_DenialBody(t *testing.T) {
	rec := httptest.NewRecorder()
	AdminOnly("s3cret", true)(ok).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	var body struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.False(t, body.Success)
	assert.Equal(t, "Authentication required to access database synchronization tools", body.Message)
	assert.Equal(t, body.Message, body.Error)
}

func TestAdminOnly_EmptyTokenDeniesAll(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(AdminTokenHeader, "anything")
	rec := httptest.NewRecorder()

	AdminOnly("", true)(ok).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCORS(t *testing.T) {
	t.Run("wildcard", func(t *testing.T) {
		rec := httptest.NewRecorder()
		CORS([]string{"*"})(ok).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("listed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "https://admin.example.com")
		rec := httptest.NewRecorder()
		CORS([]string{"https://admin.example.com"})(ok).ServeHTTP(rec, req)
		assert.Equal(t, "https://admin.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("unlisted origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "https://evil.example.com")
		rec := httptest.NewRecorder()
		CORS([]string{"https://admin.example.com"})(ok).ServeHTTP(rec, req)
		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("preflight", func(t *testing.T) {
		rec := httptest.NewRecorder()
		CORS([]string{"*"})(ok).ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/sync", nil))
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), AdminTokenHeader)
	})
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	r := chi.NewRouter()
	r.Use(chimw.RequestID, RequestLogger(logger))
	r.Get("/health", ok)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, buf.String(), "path=/health")
	assert.Contains(t, buf.String(), "status=200")
	assert.Contains(t, buf.String(), "request_id=")
}
