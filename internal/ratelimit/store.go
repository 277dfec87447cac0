package ratelimit

import (
	"context"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

// Limiter decides whether one more request fits the window for key.
type Limiter interface {
	Allow(ctx context.Context, key string, window time.Duration, max int) (allowed bool, remaining int, resetAt time.Time, err error)
}

// StoreLimiter adapts a ulule limiter.Store to Limiter. Windows are fixed
// periods counted by the store.
type StoreLimiter struct {
	Store limiter.Store
}

// Allow increments the counter for key and reports whether the limit was reached.
func (l StoreLimiter) Allow(ctx context.Context, key string, window time.Duration, max int) (bool, int, time.Time, error) {
	if l.Store == nil {
		return true, max, time.Time{}, errors.New("ratelimit: store not configured")
	}
	if max <= 0 {
		return true, 0, time.Time{}, nil
	}
	lctx, err := l.Store.Get(ctx, key, limiter.Rate{Period: window, Limit: int64(max)})
	if err != nil {
		return true, max, time.Time{}, err
	}
	return !lctx.Reached, int(lctx.Remaining), time.Unix(lctx.Reset, 0), nil
}

// NewRedisStore builds the shared Redis-backed counter store.
func NewRedisStore(client *redis.Client, prefix string) (limiter.Store, error) {
	if client == nil {
		return nil, errors.New("ratelimit: redis client is required")
	}
	if prefix == "" {
		prefix = "quote:ratelimit"
	}
	return limiterredis.NewStoreWithOptions(client, limiter.StoreOptions{Prefix: prefix})
}
