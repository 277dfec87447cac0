package health_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/noah-isme/atoll-quote/internal/health"
)

type stubChecker struct {
	dbErr      error
	redisErr   error
	refdataErr error
}

func (s stubChecker) PingDB(_ context.Context, _ time.Duration) error {
	return s.dbErr
}

func (s stubChecker) PingRedis(_ context.Context, _ time.Duration) error {
	return s.redisErr
}

func (s stubChecker) RefdataLoaded() error {
	return s.refdataErr
}

func TestLive(t *testing.T) {
	handler := health.Handler{}
	rr := httptest.NewRecorder()
	handler.Live(rr, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rr.Code)
	}
	if body := rr.Body.String(); body != "ok" {
		t.Fatalf("unexpected body %q", body)
	}
}

func TestReadySuccess(t *testing.T) {
	handler := health.Handler{Checker: stubChecker{}, DBTimeout: 50 * time.Millisecond, RedisTimeout: 50 * time.Millisecond}
	rr := httptest.NewRecorder()
	handler.Ready(rr, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("unexpected content type %q", ct)
	}
	var status map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if status["db"] != "ok" || status["redis"] != "ok" || status["refdata"] != "ok" {
		t.Fatalf("unexpected status %#v", status)
	}
}

func TestReadyFailure(t *testing.T) {
	cases := map[string]stubChecker{
		"db":      {dbErr: errors.New("db down")},
		"redis":   {redisErr: errors.New("redis down")},
		"refdata": {refdataErr: errors.New("reference data not loaded")},
	}
	for name, checker := range cases {
		t.Run(name, func(t *testing.T) {
			handler := health.Handler{Checker: checker, DBTimeout: 10 * time.Millisecond, RedisTimeout: 10 * time.Millisecond}
			rr := httptest.NewRecorder()
			handler.Ready(rr, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
			if rr.Code != http.StatusServiceUnavailable {
				t.Fatalf("expected 503 got %d", rr.Code)
			}
			var status map[string]string
			if err := json.Unmarshal(rr.Body.Bytes(), &status); err != nil {
				t.Fatalf("decode response: %v", err)
			}
			if status[name] == "ok" {
				t.Fatalf("expected %s failure in %#v", name, status)
			}
		})
	}
}

func TestReadyWithoutChecker(t *testing.T) {
	rr := httptest.NewRecorder()
	health.Handler{}.Ready(rr, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", rr.Code)
	}
}
