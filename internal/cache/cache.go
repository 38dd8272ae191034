// Package cache wraps the Redis-backed positive/negative route cache used
// by the read path.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// NegativeValue is the sentinel stored for a confirmed-absent route.
const NegativeValue = "__NOT_FOUND__"

// Outcome tags the result of a Get.
type Outcome int

const (
	// Miss means the key was absent from the cache entirely.
	Miss Outcome = iota
	// Hit means a real (positive) value was found.
	Hit
	// NegativeHit means the negative sentinel was found.
	NegativeHit
)

// Config configures the Redis connection backing the cache.
type Config struct {
	Addr         string
	DB           int
	SocketTimeout time.Duration
	PoolMax      int
}

// Cache is a thin, error-transparent wrapper over a Redis client. Callers
// are expected to wrap calls with the cache circuit breaker; Cache itself
// does not retry or trip anything.
type Cache struct {
	client *redis.Client
}

// New dials a Redis client per cfg. Dialing is lazy in go-redis; this does
// not itself perform network I/O.
func New(cfg Config) *Cache {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		DB:           cfg.DB,
		DialTimeout:  cfg.SocketTimeout,
		ReadTimeout:  cfg.SocketTimeout,
		WriteTimeout: cfg.SocketTimeout,
		PoolSize:     cfg.PoolMax,
	})
	return &Cache{client: client}
}

// NewFromClient wraps an already-constructed client (used by tests against
// miniredis).
func NewFromClient(client *redis.Client) *Cache {
	return &Cache{client: client}
}

// Get fetches key and reports whether it was a real hit, a negative hit, or
// a miss. Any Redis error other than redis.Nil is returned as err.
func (c *Cache) Get(ctx context.Context, key string) (string, Outcome, error) {
	val, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", Miss, nil
	}
	if err != nil {
		return "", Miss, err
	}
	if val == NegativeValue {
		return "", NegativeHit, nil
	}
	return val, Hit, nil
}

// Set writes a positive cache entry with the given TTL.
func (c *Cache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}

// SetNegative writes the negative sentinel with the given TTL.
func (c *Cache) SetNegative(ctx context.Context, key string, ttl time.Duration) error {
	return c.client.Set(ctx, key, NegativeValue, ttl).Err()
}

// Delete evicts key, used by the cache-invalidation consumer. Deleting an
// absent key is not an error: invalidation is idempotent.
func (c *Cache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}

// Ping reports whether the connection is alive, consumed by the metrics
// sampler's connectivity gauge.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close releases the underlying connection pool.
func (c *Cache) Close() error {
	return c.client.Close()
}

// Key formats the cache key for a route, matching the original
// "route:{tenant}:{service}:{environment}:{version}" layout.
func Key(tenant, service, environment, version string) string {
	return "route:" + tenant + ":" + service + ":" + environment + ":" + version
}
