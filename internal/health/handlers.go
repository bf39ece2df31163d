package health

import (
	"context"
	"net/http"
	"time"

	"github.com/tahmidhoque/vstop-backend/internal/common"
)

// Checker represents dependencies that can be probed for readiness.
type Checker interface {
	PingDB(ctx context.Context, timeout time.Duration) error
	PingRedis(ctx context.Context, timeout time.Duration) error
}

const (
	defaultDBTimeout    = 500 * time.Millisecond
	defaultRedisTimeout = 300 * time.Millisecond
)

// Handler exposes HTTP handlers for health endpoints.
type Handler struct {
	Checker      Checker
	DBTimeout    time.Duration
	RedisTimeout time.Duration
}

type readiness struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// Live reports process liveness.
func (h Handler) Live(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ready probes Postgres and Redis and reports a per-dependency breakdown.
// Any failing probe degrades the overall status to 503 so the orchestrator
// stops routing traffic here.
func (h Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.Checker == nil {
		common.JSONError(w, http.StatusServiceUnavailable, "NOT_READY", "dependencies unavailable", nil)
		return
	}
	ctx := r.Context()
	checks := map[string]string{"db": "ok", "redis": "ok"}
	if err := h.Checker.PingDB(ctx, timeoutOr(h.DBTimeout, defaultDBTimeout)); err != nil {
		checks["db"] = err.Error()
	}
	if err := h.Checker.PingRedis(ctx, timeoutOr(h.RedisTimeout, defaultRedisTimeout)); err != nil {
		checks["redis"] = err.Error()
	}
	body := readiness{Status: "ready", Checks: checks}
	code := http.StatusOK
	if checks["db"] != "ok" || checks["redis"] != "ok" {
		body.Status = "degraded"
		code = http.StatusServiceUnavailable
	}
	common.JSON(w, code, body)
}

func timeoutOr(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}
