package observability

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/shmadmin/billing-analytics/pkg/health"
)

// HealthChecker serves health endpoints from the connectivity tracker.
// It never probes the stores itself; the health monitor keeps the tracker current.
type HealthChecker struct {
	tracker *health.Tracker
	version string
	now     func() time.Time
}

// NewHealthChecker creates a new health checker
func NewHealthChecker(tracker *health.Tracker, version string) *HealthChecker {
	return &HealthChecker{
		tracker: tracker,
		version: version,
		now:     time.Now,
	}
}

// HealthStatus represents the overall health status
type HealthStatus struct {
	Status       string                      `json:"status"`
	Timestamp    time.Time                   `json:"timestamp"`
	Version      string                      `json:"version,omitempty"`
	Dependencies map[string]DependencyStatus `json:"dependencies,omitempty"`
}

// DependencyStatus represents the health of a single dependency
type DependencyStatus struct {
	Status    string    `json:"status"`
	State     string    `json:"state"`
	Abandoned bool      `json:"abandoned,omitempty"`
	Since     time.Time `json:"since"`
}

// Summary is the compact health document served at /api/health
type Summary struct {
	Status    string `json:"status"`
	MySQL     bool   `json:"mysql"`
	Redis     bool   `json:"redis"`
	Timestamp string `json:"timestamp"`
}

const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// Liveness returns a simple liveness probe (always returns 200 if server is running)
func (h *HealthChecker) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    StatusHealthy,
		"timestamp": h.now().UTC(),
	})
}

// Readiness returns 503 only when the database is down; a missing cache degrades
func (h *HealthChecker) Readiness(w http.ResponseWriter, r *http.Request) {
	status := h.Check()

	code := http.StatusOK
	if status.Status == StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}

// Summary serves the store flags; it always answers 200
func (h *HealthChecker) Summary(w http.ResponseWriter, r *http.Request) {
	snap := h.tracker.Snapshot()
	writeJSON(w, http.StatusOK, Summary{
		Status:    "ok",
		MySQL:     snap.Ready(health.StoreDatabase),
		Redis:     snap.Ready(health.StoreCache),
		Timestamp: h.now().UTC().Format(time.RFC3339),
	})
}

// Check derives the overall status from a tracker snapshot
func (h *HealthChecker) Check() HealthStatus {
	snap := h.tracker.Snapshot()

	status := HealthStatus{
		Status:       StatusHealthy,
		Timestamp:    h.now().UTC(),
		Version:      h.version,
		Dependencies: make(map[string]DependencyStatus, len(snap.Stores)),
	}

	for store, st := range snap.Stores {
		dep := DependencyStatus{
			Status:    StatusHealthy,
			State:     st.State.String(),
			Abandoned: st.Abandoned,
			Since:     st.Since,
		}
		if !st.Ready {
			dep.Status = StatusUnhealthy
			switch {
			case store == health.StoreDatabase:
				status.Status = StatusUnhealthy
			case status.Status != StatusUnhealthy:
				// Reports are still computed without the cache
				status.Status = StatusDegraded
			}
		}
		status.Dependencies[string(store)] = dep
	}

	return status
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// RegisterHealthRoutes registers health check endpoints
func RegisterHealthRoutes(router *mux.Router, checker *HealthChecker) {
	router.HandleFunc("/api/health", checker.Summary).Methods(http.MethodGet)
	router.HandleFunc("/health/live", checker.Liveness).Methods(http.MethodGet)
	router.HandleFunc("/health/ready", checker.Readiness).Methods(http.MethodGet)
}
