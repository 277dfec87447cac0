package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotAcquired is returned when the lock could not be taken before the
// wait limit or the context ended.
var ErrNotAcquired = errors.New("lock: not acquired")

var releaseScript = redis.NewScript(`if redis.call("get", KEYS[1]) == ARGV[1] then
  return redis.call("del", KEYS[1])
else
  return 0
end`)

// Locker provides a Redis-backed lock serialising work on one key across
// API and worker processes.
type Locker struct {
	R            *redis.Client
	RetryBackoff time.Duration
	// MaxWait bounds how long WithLock polls for a held lock. Zero waits
	// until the context ends.
	MaxWait time.Duration
}

// QuoteKey is the lock key guarding version creation for one quote.
func QuoteKey(quoteID string) string {
	return "quote:lock:" + quoteID
}

// WithLock executes fn while holding a lock for the provided key. The lock is
// released when fn returns, whatever its result, and only by the holder
// that took it.
func (l Locker) WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error {
	if l.R == nil {
		return errors.New("lock: redis client not configured")
	}
	if fn == nil {
		return errors.New("lock: callback not provided")
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	retry := l.RetryBackoff
	if retry <= 0 {
		retry = 50 * time.Millisecond
	}
	waitCtx := ctx
	if l.MaxWait > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, l.MaxWait)
		defer cancel()
	}

	token := uuid.NewString()
	for {
		ok, err := l.R.SetNX(waitCtx, key, token, ttl).Result()
		if err != nil {
			if waitCtx.Err() != nil {
				return fmt.Errorf("%w: %s: %v", ErrNotAcquired, key, waitCtx.Err())
			}
			return err
		}
		if ok {
			defer l.release(key, token)
			return fn(ctx)
		}
		timer := time.NewTimer(retry)
		select {
		case <-waitCtx.Done():
			timer.Stop()
			return fmt.Errorf("%w: %s: %v", ErrNotAcquired, key, waitCtx.Err())
		case <-timer.C:
		}
	}
}

func (l Locker) release(key, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = releaseScript.Run(ctx, l.R, []string{key}, token).Err()
}
