package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func corsRequest(cfg CORSConfig, method, origin string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/api/cart/user-1", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	rec := httptest.NewRecorder()
	CORS(cfg)(okHandler()).ServeHTTP(rec, req)
	return rec
}

func TestCORS_AllowOrigin(t *testing.T) {
	prod := CORSConfig{AllowedOrigins: []string{"https://shop.example.com"}, Environment: "production"}
	credentialed := DefaultCORSConfig()
	credentialed.AllowCredentials = true

	tests := []struct {
		name     string
		cfg      CORSConfig
		origin   string
		want     string
		wantVary bool
	}{
		{"wildcard", DefaultCORSConfig(), "http://localhost:3000", "*", false},
		{"wildcard without origin", DefaultCORSConfig(), "", "*", false},
		{"listed origin", prod, "https://shop.example.com", "https://shop.example.com", true},
		{"unlisted origin", prod, "https://evil.example.com", "", false},
		{"no origin in production", prod, "", "", false},
		{"wildcard with credentials echoes origin", credentialed, "http://localhost:3000", "http://localhost:3000", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := corsRequest(tt.cfg, http.MethodGet, tt.origin)
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.want, rec.Header().Get("Access-Control-Allow-Origin"))
			if tt.wantVary {
				assert.Equal(t, "Origin", rec.Header().Get("Vary"))
			} else {
				assert.Empty(t, rec.Header().Get("Vary"))
			}
		})
	}
}

func TestCORS_Preflight(t *testing.T) {
	rec := corsRequest(CORSConfig{AllowedOrigins: []string{"*"}, MaxAge: 600}, http.MethodOptions, "http://localhost:3000")

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "600", rec.Header().Get("Access-Control-Max-Age"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), http.MethodDelete)
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "Content-Type")
}

func TestCORS_SimpleRequestSkipsPreflightHeaders(t *testing.T) {
	rec := corsRequest(DefaultCORSConfig(), http.MethodGet, "http://localhost:3000")

	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, CorrelationIDHeader, rec.Header().Get("Access-Control-Expose-Headers"))
}

func TestCORS_Credentials(t *testing.T) {
	cfg := CORSConfig{AllowedOrigins: []string{"https://shop.example.com"}, AllowCredentials: true}

	rec := corsRequest(cfg, http.MethodGet, "https://shop.example.com")
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	rec = corsRequest(cfg, http.MethodGet, "https://evil.example.com")
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Credentials"))
}
