package security

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func echo(t *testing.T, captured *string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := io.ReadAll(r.Body)
		if err != nil {
			t.Fatalf("unexpected read error: %v", err)
		}
		*captured = string(data)
		w.WriteHeader(http.StatusOK)
	})
}

func TestBodyLimitPassesSmallPayload(t *testing.T) {
	var captured string
	handler := BodyLimit{Max: 64}.Middleware(echo(t, &captured))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/quotes/calculate", strings.NewReader(`{"currency_code":"USD"}`))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, `{"currency_code":"USD"}`, captured)
}

func TestBodyLimitRejectsStreamedPayload(t *testing.T) {
	var captured string
	handler := BodyLimit{Max: 8}.Middleware(echo(t, &captured))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/quotes/calculate", strings.NewReader(`{"legs":[{},{},{}]}`))
	req.ContentLength = -1
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
	require.Empty(t, captured)

	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, "PAYLOAD_TOO_LARGE", body.Error.Code)
}

func TestBodyLimitRejectsDeclaredLength(t *testing.T) {
	called := false
	handler := BodyLimit{Max: 5}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("excessive"))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", rr.Code)
	}
	if called {
		t.Fatal("handler must not run for oversized bodies")
	}
}

func TestBodyLimitDefaultsWhenUnset(t *testing.T) {
	require.Equal(t, DefaultMaxBody, BodyLimit{}.limit())
}
