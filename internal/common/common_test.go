package common

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestIdempotencyRejectsReplay(t *testing.T) {
	_, client := newRedis(t)
	calls := 0
	h := Idem{R: client, TTL: time.Minute}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	}))

	send := func(consultant string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/quotes/q1/versions", nil)
		req.Header.Set(IdempotencyHeader, "abc")
		req = req.WithContext(WithConsultantID(req.Context(), consultant, AuthMethodBearer))
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr.Code
	}

	require.Equal(t, http.StatusCreated, send("c-1"))
	require.Equal(t, http.StatusConflict, send("c-1"))
	require.Equal(t, http.StatusCreated, send("c-2"), "keys are scoped per consultant")
	require.Equal(t, 2, calls)
}

func TestIdempotencyReleasesKeyOnServerError(t *testing.T) {
	_, client := newRedis(t)
	status := http.StatusInternalServerError
	h := Idem{R: client, TTL: time.Minute}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))

	send := func() int {
		req := httptest.NewRequest(http.MethodPost, "/x", nil)
		req.Header.Set(IdempotencyHeader, "retry-me")
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr.Code
	}
	require.Equal(t, http.StatusInternalServerError, send())
	status = http.StatusCreated
	require.Equal(t, http.StatusCreated, send())
	require.Equal(t, http.StatusConflict, send())
}

func TestIdempotencyReleasesKeyOnLockConflict(t *testing.T) {
	_, client := newRedis(t)
	locked := true
	calls := 0
	h := Idem{R: client, TTL: time.Minute}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if locked {
			JSONError(w, http.StatusConflict, "QUOTE_LOCKED", "quote is being modified", nil)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/quotes/q1/versions", nil)
		req.Header.Set(IdempotencyHeader, "contended")
		req = req.WithContext(WithConsultantID(req.Context(), "c-1", AuthMethodBearer))
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr
	}

	rr := send()
	require.Equal(t, http.StatusConflict, rr.Code)
	require.Contains(t, rr.Body.String(), "QUOTE_LOCKED")

	locked = false
	rr = send()
	if rr.Code != http.StatusCreated {
		t.Fatalf("retry after lock contention: got %d %s", rr.Code, rr.Body.String())
	}
	require.Equal(t, 2, calls)
	require.Contains(t, send().Body.String(), "IDEMPOTENT_REPLAY")
}

func TestIdempotencyWithoutHeaderPassesThrough(t *testing.T) {
	_, client := newRedis(t)
	calls := 0
	h := Idem{R: client}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { calls++ }))
	for i := 0; i < 2; i++ {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/x", nil))
	}
	require.Equal(t, 2, calls)
}

func TestWriteError(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteError(rr, NewAppError("CALCULATION_FAILED", "quote has blocking issues", http.StatusUnprocessableEntity, nil).WithDetails([]string{"NO_LEGS"}))
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	var body struct {
		Error ErrorBody `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, "CALCULATION_FAILED", body.Error.Code)
	require.NotNil(t, body.Error.Details)

	rr = httptest.NewRecorder()
	WriteError(rr, errors.New("pg: connection refused"))
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	require.NotContains(t, rr.Body.String(), "connection refused")
}

func TestConsultantContext(t *testing.T) {
	_, ok := ConsultantID(context.Background())
	require.False(t, ok)

	ctx := WithConsultantID(context.Background(), "c-9", AuthMethodAPIKey)
	id, ok := ConsultantID(ctx)
	require.True(t, ok)
	require.Equal(t, "c-9", id)
	require.Equal(t, AuthMethodAPIKey, AuthMethod(ctx))
}

func TestParsePagination(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?page=3&limit=500", nil)
	page, perPage := ParsePagination(req, 20, 100)
	require.Equal(t, 3, page)
	require.Equal(t, 100, perPage)
	require.Equal(t, 200, Offset(page, perPage))
}

func TestAuthSlotExposesDownstreamAuthentication(t *testing.T) {
	outer := WithAuthSlot(context.Background())
	_ = WithConsultantID(outer, "c-3", AuthMethodBearer)

	id, ok := ConsultantID(outer)
	require.True(t, ok)
	require.Equal(t, "c-3", id)
	require.Equal(t, AuthMethodBearer, AuthMethod(outer))
}

func TestClientIP(t *testing.T) {
	cases := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"first forwarded hop", map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1"}, "10.0.0.2:5000", "203.0.113.7"},
		{"garbage forwarded falls back to real ip", map[string]string{"X-Forwarded-For": "consultant-laptop", "X-Real-IP": "198.51.100.4"}, "10.0.0.2:5000", "198.51.100.4"},
		{"mapped v4", map[string]string{"X-Real-IP": "::ffff:192.0.2.9"}, "10.0.0.2:5000", "192.0.2.9"},
		{"peer address", nil, "192.0.2.1:443", "192.0.2.1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tc.remote
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}
			require.Equal(t, tc.want, ClientIP(req))
		})
	}
	require.Empty(t, ClientIP(nil))
}

func TestJSONPage(t *testing.T) {
	rr := httptest.NewRecorder()
	JSONPage(rr, []string{"v1", "v2"}, Pagination{Page: 1, PerPage: 2, TotalItems: 5})
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "5", rr.Header().Get("X-Total-Count"))
	require.JSONEq(t, `{"data":["v1","v2"],"pagination":{"page":1,"per_page":2,"total_items":5}}`, rr.Body.String())

	rr = httptest.NewRecorder()
	JSONData(rr, http.StatusAccepted, map[string]string{"quote_id": "q-1"})
	require.JSONEq(t, `{"data":{"quote_id":"q-1"}}`, rr.Body.String())
}
