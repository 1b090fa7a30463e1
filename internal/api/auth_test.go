package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"barberbook/internal/config"

	"github.com/stretchr/testify/assert"
)

func TestHTTPAuth(t *testing.T) {
	cfg := config.APIConfig{
		Enabled: true,
		Auth: config.APIAuthConfig{
			Enabled:      true,
			HeaderAPIKey: "x-api-key",
			HeaderExtra:  "x-api-extra",
			APIKeys: []config.APIClientKey{
				{Key: "reader", Extra: "r-extra", Permissions: []string{PermReadCatalog, PermReadAvailability}},
				{Key: "admin", Extra: "a-extra"},
			},
		},
	}

	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	handler := NewHTTPAuth(cfg).Wrap(ok)

	tests := []struct {
		name   string
		method string
		path   string
		key    string
		extra  string
		want   int
	}{
		{"Success", http.MethodGet, "/api/v1/barbers", "reader", "r-extra", http.StatusOK},
		{"MissingHeaders", http.MethodGet, "/api/v1/barbers", "", "", http.StatusUnauthorized},
		{"InvalidKey", http.MethodGet, "/api/v1/barbers", "nobody", "r-extra", http.StatusUnauthorized},
		{"InvalidExtra", http.MethodGet, "/api/v1/barbers", "reader", "wrong", http.StatusUnauthorized},
		{"ReadReservationsDenied", http.MethodGet, "/api/v1/reservations", "reader", "r-extra", http.StatusForbidden},
		{"WriteDenied", http.MethodPost, "/api/v1/reservations", "reader", "r-extra", http.StatusForbidden},
		{"EmptyPermissionsAllowAll", http.MethodPost, "/api/v1/reservations/1/cancel", "admin", "a-extra", http.StatusOK},
		{"HealthIsOpen", http.MethodGet, "/healthz", "", "", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, http.NoBody)
			if tt.key != "" {
				req.Header.Set("x-api-key", tt.key)
			}
			if tt.extra != "" {
				req.Header.Set("x-api-extra", tt.extra)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestRequiredPermission(t *testing.T) {
	tests := []struct {
		method string
		path   string
		want   string
	}{
		{http.MethodGet, "/api/v1/services", PermReadCatalog},
		{http.MethodGet, "/api/v1/availability", PermReadAvailability},
		{http.MethodGet, "/api/v1/reservations/export", PermReadReservations},
		{http.MethodPost, "/api/v1/reservations/7/complete", PermWriteReservations},
		{http.MethodGet, "/metrics", ""},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(tt.method, tt.path, http.NoBody)
		assert.Equal(t, tt.want, requiredPermission(req), tt.path)
	}
}

func TestHTTPRateLimit(t *testing.T) {
	cfg := config.APIConfig{
		Enabled:   true,
		RateLimit: config.APIRateLimitConfig{RPS: 0.001, Burst: 2},
	}
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	handler := NewHTTPAuth(cfg).Wrap(ok)

	call := func(key string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/barbers", http.NoBody)
		req.Header.Set("x-api-key", key)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, call("a"))
	assert.Equal(t, http.StatusOK, call("a"))
	assert.Equal(t, http.StatusTooManyRequests, call("a"))
	// buckets are per key
	assert.Equal(t, http.StatusOK, call("b"))
}
