package observability

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"
)

const pingTimeout = 2 * time.Second

// Pinger is satisfied by *pgxpool.Pool
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthStatus is the /health response body
type HealthStatus struct {
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
	Status    string            `json:"status"`
}

// HealthChecker reports database reachability and whether the process is draining
type HealthChecker struct {
	db       Pinger
	draining atomic.Bool
}

// NewHealthChecker creates a new HealthChecker. db may be nil.
func NewHealthChecker(db Pinger) *HealthChecker {
	return &HealthChecker{db: db}
}

// MarkDraining makes /ready fail so the load balancer stops routing callbacks
// here while in-flight requests finish.
func (h *HealthChecker) MarkDraining() {
	h.draining.Store(true)
}

// Check pings the database
func (h *HealthChecker) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Checks:    map[string]string{"database": "not configured"},
	}
	if h.db == nil {
		return status
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := h.db.Ping(pingCtx); err != nil {
		status.Checks["database"] = "unhealthy: " + err.Error()
		status.Status = "unhealthy"
		return status
	}
	status.Checks["database"] = "healthy"
	return status
}

// HealthHandler writes the HealthStatus as JSON, 503 when unhealthy
func (h *HealthChecker) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := h.Check(r.Context())

		w.Header().Set("Content-Type", "application/json")
		if status.Status != "healthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(status)
	}
}

// ReadyHandler answers 200 "ready" once the database is reachable and the
// process is not draining
func (h *HealthChecker) ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.draining.Load() {
			http.Error(w, "draining", http.StatusServiceUnavailable)
			return
		}
		if h.Check(r.Context()).Status != "healthy" {
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	}
}
