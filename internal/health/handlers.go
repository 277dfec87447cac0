package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"
)

// Checker represents dependencies that can be checked for readiness.
type Checker interface {
	PingDB(ctx context.Context, timeout time.Duration) error
	PingRedis(ctx context.Context, timeout time.Duration) error
	// RefdataLoaded reports an error when no validated reference data
	// snapshot is available to the engine.
	RefdataLoaded() error
}

var draining atomic.Bool

// SetReady flips the process readiness flag. The API clears it when
// shutdown starts so load balancers stop routing new calculations.
func SetReady(ready bool) {
	draining.Store(!ready)
}

// Handler exposes HTTP handlers for health endpoints.
type Handler struct {
	Checker      Checker
	DBTimeout    time.Duration
	RedisTimeout time.Duration
}

// Live reports liveness status.
func (h Handler) Live(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ready reports readiness based on dependency checks.
func (h Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.Checker == nil {
		http.Error(w, "dependencies unavailable", http.StatusServiceUnavailable)
		return
	}
	if draining.Load() {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	ctx := r.Context()
	status := map[string]string{
		"db":      checkStatus(h.Checker.PingDB(ctx, h.dbTimeout())),
		"redis":   checkStatus(h.Checker.PingRedis(ctx, h.redisTimeout())),
		"refdata": checkStatus(h.Checker.RefdataLoaded()),
	}
	code := http.StatusOK
	for _, s := range status {
		if s != "ok" {
			code = http.StatusServiceUnavailable
			break
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(status)
}

func checkStatus(err error) string {
	if err != nil {
		return err.Error()
	}
	return "ok"
}

func (h Handler) dbTimeout() time.Duration {
	if h.DBTimeout <= 0 {
		return 500 * time.Millisecond
	}
	return h.DBTimeout
}

func (h Handler) redisTimeout() time.Duration {
	if h.RedisTimeout <= 0 {
		return 300 * time.Millisecond
	}
	return h.RedisTimeout
}
