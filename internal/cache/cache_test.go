package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Total string `json:"total"`
}

func TestCacheRoundTripAndExpiry(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	c := New(client, time.Minute)
	ctx := context.Background()
	key := KeyPreview("sum", "digest")

	var got payload
	found, err := c.GetJSON(ctx, key, &got)
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, c.SetJSON(ctx, key, payload{Total: "6926.16"}))
	found, err = c.GetJSON(ctx, key, &got)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "6926.16", got.Total)

	mr.FastForward(2 * time.Minute)
	found, err = c.GetJSON(ctx, key, &got)
	require.NoError(t, err)
	require.False(t, found)
}

func TestDisabledCacheIsNoop(t *testing.T) {
	var c *Cache
	require.False(t, c.Enabled())
	require.NoError(t, c.SetJSON(context.Background(), "k", payload{}))

	c = New(nil, time.Minute)
	found, err := c.GetJSON(context.Background(), "k", &payload{})
	require.NoError(t, err)
	require.False(t, found)
}
