package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return New(client, "test", time.Minute), mr
}

func TestCacheRoundTrip(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	type payload struct {
		Name string `json:"name"`
		Qty  int    `json:"qty"`
	}

	var missed payload
	found, err := c.GetJSON(ctx, "offers", &missed)
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, c.SetJSON(ctx, "offers", payload{Name: "2 for £15", Qty: 2}))

	var got payload
	found, err = c.GetJSON(ctx, "offers", &got)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "2 for £15", got.Name)
	require.Equal(t, 2, got.Qty)
}

func TestCacheInvalidate(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.SetJSON(ctx, "offers", map[string]int{"qty": 2}))
	require.True(t, mr.Exists("test:offers"))

	require.NoError(t, c.Invalidate(ctx, "offers"))
	require.False(t, mr.Exists("test:offers"))
}

func TestNilCacheIsNoop(t *testing.T) {
	var c *Cache
	ctx := context.Background()

	found, err := c.GetJSON(ctx, "anything", &struct{}{})
	require.NoError(t, err)
	require.False(t, found)
	require.NoError(t, c.SetJSON(ctx, "anything", 1))
	require.NoError(t, c.Invalidate(ctx, "anything"))
}
