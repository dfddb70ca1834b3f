package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/qaharvest/config"
	"github.com/use-agent/qaharvest/metrics"
	"github.com/use-agent/qaharvest/models"
)

type fakeRuns struct {
	mu      sync.Mutex
	started bool
	stats   models.RunStats
}

func (f *fakeRuns) Status() (string, string, models.RunStats, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.started {
		return "", "", models.RunStats{}, false
	}
	return "https://forum.example.com/t5/scm/qa-p/q", "scm", f.stats, true
}

func (f *fakeRuns) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stats.StopRequested = true
}

func testConfig(keys ...string) *config.Config {
	return &config.Config{
		Browser: config.BrowserConfig{Backend: "http"},
		Status:  config.StatusConfig{Mode: "test", APIKeys: keys},
	}
}

func do(t *testing.T, h http.Handler, method, path string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	runs := &fakeRuns{started: true}
	r := NewRouter(runs, testConfig(), time.Now())

	w := do(t, r, http.MethodGet, "/api/v1/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body models.HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, "http", body.Backend)

	runs.Stop()
	w = do(t, r, http.MethodGet, "/api/v1/health", nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "stopping", body.Status)
}

func TestGetRun(t *testing.T) {
	runs := &fakeRuns{}
	r := NewRouter(runs, testConfig(), time.Now())

	w := do(t, r, http.MethodGet, "/api/v1/run", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), models.ErrCodeNoRun)

	runs.started = true
	runs.stats = models.RunStats{CurrentPage: 2, Accepted: 3, NonAccepted: 1}
	w = do(t, r, http.MethodGet, "/api/v1/run", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body models.RunResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "scm", body.Section)
	assert.Equal(t, 2, body.Stats.CurrentPage)
	assert.Equal(t, 3, body.Stats.Accepted)
}

func TestStopRequiresKey(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		want    int
	}{
		{"missing", nil, http.StatusUnauthorized},
		{"wrong", map[string]string{"X-API-Key": "nope"}, http.StatusUnauthorized},
		{"header", map[string]string{"X-API-Key": "secret"}, http.StatusAccepted},
		{"bearer", map[string]string{"Authorization": "Bearer secret"}, http.StatusAccepted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runs := &fakeRuns{started: true}
			r := NewRouter(runs, testConfig("secret"), time.Now())

			w := do(t, r, http.MethodPost, "/api/v1/run/stop", tt.headers)

			assert.Equal(t, tt.want, w.Code)
			_, _, stats, _ := runs.Status()
			assert.Equal(t, tt.want == http.StatusAccepted, stats.StopRequested)
		})
	}
}

func TestStopRateLimited(t *testing.T) {
	cfg := testConfig()
	cfg.Status.RatePerSecond = 0.001
	cfg.Status.Burst = 1
	r := NewRouter(&fakeRuns{started: true}, cfg, time.Now())

	assert.Equal(t, http.StatusAccepted, do(t, r, http.MethodPost, "/api/v1/run/stop", nil).Code)
	w := do(t, r, http.MethodPost, "/api/v1/run/stop", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), models.ErrCodeRateLimited)
}

func TestMetricsEndpoint(t *testing.T) {
	metrics.RecordsCommitted.WithLabelValues("accepted").Inc()
	r := NewRouter(&fakeRuns{}, testConfig(), time.Now())

	w := do(t, r, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "qaharvest_records_committed_total"))
}
