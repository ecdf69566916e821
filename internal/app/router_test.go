package app

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/stockroom/internal/observability"
	"github.com/odyssey-erp/stockroom/jobs"
)

func TestRouterMountsHealthAndMetrics(t *testing.T) {
	cfg := &Config{AppEnv: "production", AppRequestTimeout: time.Second, RateLimitPerMinute: 100}
	router := NewRouter(RouterParams{
		Config:     cfg,
		JobHandler: jobs.NewHandler(nil, nil, nil),
		Metrics:    observability.NewMetrics(),
	})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	require.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	req = httptest.NewRequest(http.MethodGet, "/jobs/health", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "stockroom_http_requests_total")
}

func TestRouterSkipsNilHandlers(t *testing.T) {
	router := NewRouter(RouterParams{Config: &Config{}})
	for _, path := range []string{"/products", "/inventory", "/imports/history", "/metrics"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusNotFound, rec.Code, path)
	}
}

func TestRouterRedirectsToHTTPSInProduction(t *testing.T) {
	router := NewRouter(RouterParams{Config: &Config{AppEnv: "production"}})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "http://stock.example.com/healthz", nil))
	require.Equal(t, http.StatusMovedPermanently, rec.Code)
}
