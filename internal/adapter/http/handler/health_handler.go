package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
)

// DBPinger reports database reachability. *pgxpool.Pool satisfies it.
type DBPinger interface {
	Ping(ctx context.Context) error
}

type dependency struct {
	name string
	ping func(ctx context.Context) error
}

// ReadinessResponse lists every dependency with "ok" or its failure.
type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// HealthHandler serves liveness and readiness probes. Readiness covers the
// ledger database and the redis instance backing locks and the tracker.
type HealthHandler struct {
	deps    []dependency
	timeout time.Duration
}

// NewHealthHandler creates a HealthHandler. A nil redis client is skipped.
func NewHealthHandler(db DBPinger, redisClient *redis.Client) *HealthHandler {
	h := &HealthHandler{timeout: 5 * time.Second}

	if db != nil {
		h.deps = append(h.deps, dependency{name: "postgres", ping: db.Ping})
	}
	if redisClient != nil {
		h.deps = append(h.deps, dependency{name: "redis", ping: func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}})
	}

	return h
}

// Liveness returns 200 while the process serves requests.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readiness pings every dependency and returns 503 when any of them fails.
// All dependencies are checked so the body names every broken one.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	resp := ReadinessResponse{Status: "ready", Checks: make(map[string]string, len(h.deps))}
	status := http.StatusOK

	for _, dep := range h.deps {
		if err := dep.ping(ctx); err != nil {
			resp.Checks[dep.name] = err.Error()
			resp.Status = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[dep.name] = "ok"
	}

	writeJSON(w, status, resp)
}
