package ratelimit

import (
	"net/http"
	"strconv"
	"time"

	"github.com/noah-isme/atoll-quote/internal/common"
)

// Config describes how to derive a rate limit key and thresholds.
type Config struct {
	Key    func(*http.Request) string
	Window time.Duration
	Max    int
}

// Handler enforces rate limits before delegating to the next handler. A
// limiter failure lets the request through.
type Handler struct {
	Limiter Limiter
	Config  Config
	OnError func(error)
	Now     func() time.Time
}

// ConsultantKey keys limits by authenticated consultant, falling back to the
// client IP for unauthenticated requests.
func ConsultantKey(r *http.Request) string {
	if id, ok := common.ConsultantID(r.Context()); ok {
		return "consultant:" + id
	}
	return "ip:" + common.ClientIP(r)
}

// PerMinute returns a Config allowing max requests per consultant per minute.
func PerMinute(max int) Config {
	return Config{Key: ConsultantKey, Window: time.Minute, Max: max}
}

// Middleware implements the http.Handler middleware interface.
func (h Handler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.Config.Key == nil || h.Limiter == nil || h.Config.Max <= 0 {
			next.ServeHTTP(w, r)
			return
		}
		key := h.Config.Key(r)
		allowed, remaining, resetAt, err := h.Limiter.Allow(r.Context(), key, h.Config.Window, h.Config.Max)
		if err != nil {
			if h.OnError != nil {
				h.OnError(err)
			}
			next.ServeHTTP(w, r)
			return
		}

		headers := w.Header()
		headers.Set("X-RateLimit-Limit", strconv.Itoa(h.Config.Max))
		headers.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		headers.Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))

		if !allowed {
			now := time.Now
			if h.Now != nil {
				now = h.Now
			}
			retryAfter := int(resetAt.Sub(now()).Seconds())
			if retryAfter < 0 {
				retryAfter = 0
			}
			headers.Set("Retry-After", strconv.Itoa(retryAfter))
			common.JSONError(w, http.StatusTooManyRequests, "RATE_LIMITED", "rate limit exceeded", nil)
			return
		}

		next.ServeHTTP(w, r)
	})
}
