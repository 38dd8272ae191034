package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewFromClient(client)
}

func TestGetMissOnAbsentKey(t *testing.T) {
	c := newTestCache(t)
	_, outcome, err := c.Get(context.Background(), Key("acme", "billing", "prod", "v1"))
	require.NoError(t, err)
	require.Equal(t, Miss, outcome)
}

func TestSetThenGetIsHit(t *testing.T) {
	c := newTestCache(t)
	key := Key("acme", "billing", "prod", "v1")
	require.NoError(t, c.Set(context.Background(), key, "https://billing.internal/v1", time.Minute))

	val, outcome, err := c.Get(context.Background(), key)
	require.NoError(t, err)
	require.Equal(t, Hit, outcome)
	require.Equal(t, "https://billing.internal/v1", val)
}

func TestSetNegativeThenGetIsNegativeHit(t *testing.T) {
	c := newTestCache(t)
	key := Key("acme", "billing", "prod", "v99")
	require.NoError(t, c.SetNegative(context.Background(), key, 10*time.Second))

	_, outcome, err := c.Get(context.Background(), key)
	require.NoError(t, err)
	require.Equal(t, NegativeHit, outcome)
}

func TestDeleteIsIdempotent(t *testing.T) {
	c := newTestCache(t)
	key := Key("acme", "billing", "prod", "v1")
	require.NoError(t, c.Delete(context.Background(), key))
	require.NoError(t, c.Set(context.Background(), key, "x", time.Minute))
	require.NoError(t, c.Delete(context.Background(), key))
	require.NoError(t, c.Delete(context.Background(), key))

	_, outcome, err := c.Get(context.Background(), key)
	require.NoError(t, err)
	require.Equal(t, Miss, outcome)
}

func TestPing(t *testing.T) {
	c := newTestCache(t)
	require.NoError(t, c.Ping(context.Background()))
}
