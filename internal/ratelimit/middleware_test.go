package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	limitermemory "github.com/ulule/limiter/v3/drivers/store/memory"

	"github.com/noah-isme/atoll-quote/internal/common"
)

func TestHandlerMiddlewareEnforcesLimit(t *testing.T) {
	handler := Handler{
		Limiter: StoreLimiter{Store: limitermemory.NewStore()},
		Config: Config{
			Key:    func(*http.Request) string { return "static" },
			Window: time.Minute,
			Max:    1,
		},
	}

	counted := handler.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	rr1 := httptest.NewRecorder()
	counted.ServeHTTP(rr1, req.Clone(req.Context()))
	if rr1.Code != http.StatusOK {
		t.Fatalf("expected first request allowed, got %d", rr1.Code)
	}

	rr2 := httptest.NewRecorder()
	counted.ServeHTTP(rr2, req.Clone(req.Context()))
	if rr2.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 on second request, got %d", rr2.Code)
	}
	if rr2.Header().Get("X-RateLimit-Limit") != "1" {
		t.Fatalf("unexpected limit header: %q", rr2.Header().Get("X-RateLimit-Limit"))
	}
	if rr2.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header")
	}
}

func TestConsultantKeySeparatesConsultants(t *testing.T) {
	handler := Handler{Limiter: StoreLimiter{Store: limitermemory.NewStore()}, Config: PerMinute(1)}
	h := handler.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	send := func(consultant string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/quotes/calculate", nil)
		req = req.WithContext(common.WithConsultantID(req.Context(), consultant, common.AuthMethodBearer))
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr.Code
	}
	require.Equal(t, http.StatusOK, send("a"))
	require.Equal(t, http.StatusOK, send("b"))
	require.Equal(t, http.StatusTooManyRequests, send("a"))
}

func TestConsultantKeyFallsBackToIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	require.Equal(t, "ip:203.0.113.7", ConsultantKey(req))
}

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string, time.Duration, int) (bool, int, time.Time, error) {
	return false, 0, time.Time{}, errors.New("redis unavailable")
}

func TestHandlerMiddlewareOnError(t *testing.T) {
	handler := Handler{
		Limiter: failingLimiter{},
		Config: Config{
			Key:    func(*http.Request) string { return "err" },
			Window: time.Second,
			Max:    1,
		},
	}

	called := false
	handler.OnError = func(error) { called = true }

	counted := handler.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rr := httptest.NewRecorder()
	counted.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/test", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected handler to proceed on error, got %d", rr.Code)
	}
	if !called {
		t.Fatal("expected OnError callback to be invoked")
	}
}

func TestStoreLimiterWithoutStore(t *testing.T) {
	allowed, _, _, err := StoreLimiter{}.Allow(context.Background(), "k", time.Second, 1)
	require.Error(t, err)
	require.True(t, allowed)
}
