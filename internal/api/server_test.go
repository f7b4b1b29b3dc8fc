package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/jwtauth/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cmatc13/txpilot/internal/submitter"
	"github.com/cmatc13/txpilot/pkg/config"
	"github.com/cmatc13/txpilot/pkg/health"
	"github.com/cmatc13/txpilot/pkg/logging"
	"github.com/cmatc13/txpilot/pkg/metrics"
)

type fakeRunStore struct {
	runs map[string]*submitter.RunSummary
}

func (f *fakeRunStore) GetRun(ctx context.Context, runID string) (*submitter.RunSummary, error) {
	return f.runs[runID], nil
}

func (f *fakeRunStore) ListRuns(ctx context.Context, limit int64) ([]string, error) {
	ids := make([]string, 0, len(f.runs))
	for id := range f.runs {
		ids = append(ids, id)
	}
	return ids, nil
}

func testConfig() *config.Config {
	return &config.Config{
		API: config.APIConfig{
			Port:               "0",
			CORSAllowedOrigins: []string{"*"},
			RateLimit:          1000,
		},
		Metrics: config.MetricsConfig{Namespace: "txpilot"},
	}
}

func newTestServer(t *testing.T, cfg *config.Config, runs RunStore) *Server {
	t.Helper()
	logger := logging.New(logging.Config{Level: logging.ErrorLevel, Output: io.Discard, ServiceName: "test"})
	m := metrics.New(metrics.Config{Namespace: "test", ServiceName: "test"})
	registry := health.NewRegistry(logger)
	registry.Register("self", health.ServiceChecker("self", func(ctx context.Context) error { return nil }))
	return NewServer(cfg, logger, m, registry, runs)
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t, testConfig(), nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"UP"`)
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, testConfig(), nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSummaryNotFoundBeforeRun(t *testing.T) {
	srv := newTestServer(t, testConfig(), nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/summary", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSummaryAfterRun(t *testing.T) {
	srv := newTestServer(t, testConfig(), nil)
	srv.SetSummary(&submitter.RunSummary{RunID: "run-1", Total: 5, Succeeded: 5})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/summary", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var got submitter.RunSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, 5, got.Succeeded)
}

func TestSummaryRequiresTokenWhenSecretConfigured(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.JWTSecret = "test-secret"
	srv := newTestServer(t, cfg, nil)
	srv.SetSummary(&submitter.RunSummary{RunID: "run-1"})

	// No token
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/summary", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Valid token
	tokenAuth := jwtauth.New("HS256", []byte("test-secret"), nil)
	_, token, err := tokenAuth.Encode(map[string]interface{}{"sub": "ops"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/v1/summary", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRunEndpointsWithoutArchive(t *testing.T) {
	srv := newTestServer(t, testConfig(), nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/runs", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRunEndpointsWithArchive(t *testing.T) {
	store := &fakeRunStore{runs: map[string]*submitter.RunSummary{
		"run-1": {RunID: "run-1", Total: 2},
	}}
	srv := newTestServer(t, testConfig(), store)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/runs", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "run-1")

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/runs/run-1", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/runs/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
