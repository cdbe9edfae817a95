package app

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/salesboard/internal/observability"
	"github.com/odyssey-erp/salesboard/jobs"
)

func newTestRouter(ready func() error) http.Handler {
	return NewRouter(RouterParams{
		Config:     &Config{AppEnv: "test"},
		JobHandler: jobs.NewHandler(nil, nil),
		Metrics:    observability.NewMetrics(),
		Ready:      ready,
	})
}

func get(h http.Handler, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.RemoteAddr = "192.0.2.1:5555"
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestHealthz(t *testing.T) {
	rr := get(newTestRouter(nil), "/healthz")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rr.Header().Get("X-Frame-Options"))
}

func TestReadyzReportsSnapshotFailure(t *testing.T) {
	router := newTestRouter(func() error { return errors.New("snapshot not loaded") })
	rr := get(router, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), "snapshot not loaded")
}

func TestUnknownRouteIsProblem(t *testing.T) {
	rr := get(newTestRouter(nil), "/nope")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))
}

func TestMetricsAndJobsMounted(t *testing.T) {
	router := newTestRouter(nil)
	_ = get(router, "/healthz")

	rr := get(router, "/metrics")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "salesboard_http_requests_total")

	rr = get(router, "/jobs/health")
	assert.Equal(t, http.StatusOK, rr.Code)
}
