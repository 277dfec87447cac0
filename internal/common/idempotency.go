package common

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// IdempotencyHeader is the request header carrying the client key.
const IdempotencyHeader = "Idempotency-Key"

// Idem provides an Idempotency-Key middleware backed by Redis. Keys are
// scoped to the authenticated consultant and the request path.
type Idem struct {
	R   *redis.Client
	TTL time.Duration
}

func idemKey(scope, path, key string) string {
	return "quote:idem:" + Sha256Hex(scope+"|"+path+"|"+key)
}

// Middleware enforces idempotency semantics for write endpoints. A replayed
// key is rejected with 409; a key whose request failed with a server error
// or a lock conflict is released so the client may retry it.
func (i Idem) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
		if header == "" || i.R == nil {
			next.ServeHTTP(w, r)
			return
		}
		ttl := i.TTL
		if ttl <= 0 {
			ttl = 24 * time.Hour
		}
		ctx := r.Context()
		scope, _ := ConsultantID(ctx)
		key := idemKey(scope, r.URL.Path, header)
		ok, err := i.R.SetNX(ctx, key, "locked", ttl).Result()
		if err != nil {
			commonJSONError(w, err)
			return
		}
		if !ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusConflict)
			_, _ = io.WriteString(w, "{\"error\":{\"code\":\"IDEMPOTENT_REPLAY\",\"message\":\"duplicate request\"}}")
			return
		}
		rec := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		defer func() {
			if retryable(rec.status) {
				_ = i.R.Del(context.Background(), key).Err()
				return
			}
			_ = i.R.Expire(context.Background(), key, ttl).Err()
		}()
		next.ServeHTTP(rec, r)
	})
}

func retryable(status int) bool {
	return status == http.StatusConflict || status >= http.StatusInternalServerError
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (s *statusWriter) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func commonJSONError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	JSONError(w, http.StatusInternalServerError, "INTERNAL", "idempotency store error", map[string]any{"error": err.Error()})
}
