package observability

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/shmadmin/billing-analytics/pkg/health"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestChecker(ready ...health.Store) *HealthChecker {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	tracker := health.NewTracker(logger, nil)
	for _, s := range ready {
		tracker.Observe(s, health.EventReady)
	}

	checker := NewHealthChecker(tracker, "1.2.3")
	checker.now = func() time.Time { return time.Date(2026, 3, 8, 12, 0, 0, 0, time.UTC) }
	return checker
}

func serve(t *testing.T, checker *HealthChecker, path string) *httptest.ResponseRecorder {
	t.Helper()
	router := mux.NewRouter()
	RegisterHealthRoutes(router, checker)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthChecker_Check(t *testing.T) {
	tests := []struct {
		name  string
		ready []health.Store
		want  string
	}{
		{"both ready", []health.Store{health.StoreDatabase, health.StoreCache}, StatusHealthy},
		{"cache down", []health.Store{health.StoreDatabase}, StatusDegraded},
		{"database down", []health.Store{health.StoreCache}, StatusUnhealthy},
		{"both down", nil, StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status := newTestChecker(tt.ready...).Check()

			assert.Equal(t, tt.want, status.Status)
			assert.Equal(t, "1.2.3", status.Version)
			assert.Len(t, status.Dependencies, 2)
		})
	}
}

func TestHealthChecker_AbandonedCacheIsReported(t *testing.T) {
	checker := newTestChecker(health.StoreDatabase, health.StoreCache)
	checker.tracker.Abandon(health.StoreCache)

	status := checker.Check()

	assert.Equal(t, StatusDegraded, status.Status)
	dep := status.Dependencies["redis"]
	assert.True(t, dep.Abandoned)
	assert.Equal(t, StatusUnhealthy, dep.Status)
}

func TestHealthChecker_Summary(t *testing.T) {
	rec := serve(t, newTestChecker(health.StoreDatabase), "/api/health")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"status":"ok","mysql":true,"redis":false,"timestamp":"2026-03-08T12:00:00Z"}`, rec.Body.String())
}

func TestHealthChecker_SummaryWhenAllDown(t *testing.T) {
	rec := serve(t, newTestChecker(), "/api/health")

	assert.Equal(t, http.StatusOK, rec.Code)
	var body Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.False(t, body.MySQL)
	assert.False(t, body.Redis)
}

func TestHealthChecker_Readiness(t *testing.T) {
	t.Run("ready when database is up", func(t *testing.T) {
		rec := serve(t, newTestChecker(health.StoreDatabase), "/health/ready")
		assert.Equal(t, http.StatusOK, rec.Code)

		var status HealthStatus
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
		assert.Equal(t, StatusDegraded, status.Status)
		assert.Equal(t, "READY", status.Dependencies["mysql"].State)
	})

	t.Run("unavailable when database is down", func(t *testing.T) {
		rec := serve(t, newTestChecker(health.StoreCache), "/health/ready")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestHealthChecker_Liveness(t *testing.T) {
	rec := serve(t, newTestChecker(), "/health/live")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"healthy"`)
}
