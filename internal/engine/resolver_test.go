package engine

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/iamtahmad1/traffic-manager/internal/cache"
	"github.com/iamtahmad1/traffic-manager/internal/domain"
	"github.com/iamtahmad1/traffic-manager/internal/platform/apierr"
	"github.com/iamtahmad1/traffic-manager/internal/platform/config"
	"github.com/iamtahmad1/traffic-manager/internal/platform/logging"
	"github.com/iamtahmad1/traffic-manager/internal/platform/metrics"
	"github.com/iamtahmad1/traffic-manager/internal/resilience"
	"github.com/iamtahmad1/traffic-manager/internal/store"
)

func newTestResolver(t *testing.T) (*Resolver, *cache.Cache, sqlmock.Sqlmock) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c := cache.NewFromClient(redisClient)

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	s := store.New(db)

	rm := resilience.NewManager(config.ResilienceConfig{
		DBFailureThreshold: 100, DBTimeout: time.Second, DBWindow: time.Minute, DBMinCalls: 100,
		CacheFailureThreshold: 100, CacheTimeout: time.Second, CacheWindow: time.Minute, CacheMinCalls: 100,
		ReadBulkheadMaxConcurrent: 10, WriteBulkheadMaxConcurrent: 10, AuditBulkheadMaxConcurrent: 10,
		BulkheadMaxWait: time.Second, RetryMaxRetries: 3, RetryWindow: time.Minute,
	})
	reg := metrics.NewWithRegistry("test", nil)
	logger := logging.New("test", "error", "json")

	return NewResolver(c, s, rm, reg, logger, time.Minute, 10*time.Second), c, mock
}

func TestResolveReturnsPositiveCacheHitWithoutTouchingStore(t *testing.T) {
	r, c, _ := newTestResolver(t)
	key := domain.Key{Tenant: "acme", Service: "billing", Environment: "prod", Version: "v1"}
	require.NoError(t, c.Set(context.Background(), cache.Key(key.Tenant, key.Service, key.Environment, key.Version), "https://billing.internal/v1", time.Minute))

	outcome, err := r.Resolve(context.Background(), key)
	require.NoError(t, err)
	require.Equal(t, "https://billing.internal/v1", outcome.URL)
	require.Empty(t, outcome.Source)
}

func TestResolveReturnsNotFoundOnNegativeCacheHit(t *testing.T) {
	r, c, _ := newTestResolver(t)
	key := domain.Key{Tenant: "acme", Service: "billing", Environment: "prod", Version: "v99"}
	require.NoError(t, c.SetNegative(context.Background(), cache.Key(key.Tenant, key.Service, key.Environment, key.Version), 10*time.Second))

	_, err := r.Resolve(context.Background(), key)
	require.ErrorIs(t, err, store.ErrRouteNotFound)
}

func TestResolveFallsThroughToStoreOnCacheMissAndPopulatesPositiveCache(t *testing.T) {
	r, c, mock := newTestResolver(t)
	key := domain.Key{Tenant: "acme", Service: "billing", Environment: "prod", Version: "v1"}

	rows := sqlmock.NewRows([]string{"id", "url"}).AddRow(int64(1), "https://billing.internal/v1")
	mock.ExpectQuery("SELECT e.id, e.url").
		WithArgs(key.Tenant, key.Service, key.Environment, key.Version).
		WillReturnRows(rows)

	outcome, err := r.Resolve(context.Background(), key)
	require.NoError(t, err)
	require.Equal(t, "https://billing.internal/v1", outcome.URL)

	_, cOutcome, err := c.Get(context.Background(), cache.Key(key.Tenant, key.Service, key.Environment, key.Version))
	require.NoError(t, err)
	require.Equal(t, cache.Hit, cOutcome)
}

func TestResolveSetsNegativeCacheOnStoreMiss(t *testing.T) {
	r, c, mock := newTestResolver(t)
	key := domain.Key{Tenant: "acme", Service: "billing", Environment: "prod", Version: "v99"}

	mock.ExpectQuery("SELECT e.id, e.url").
		WithArgs(key.Tenant, key.Service, key.Environment, key.Version).
		WillReturnError(sql.ErrNoRows)

	_, err := r.Resolve(context.Background(), key)
	require.Error(t, err)

	_, outcome, cerr := c.Get(context.Background(), cache.Key(key.Tenant, key.Service, key.Environment, key.Version))
	require.NoError(t, cerr)
	require.Equal(t, cache.NegativeHit, outcome)
}

// newTrippableResolver builds a resolver whose circuits trip on a single
// failure (threshold=1, min calls=1) and whose retry budgets permit no
// retries, so a breaker's open/closed transitions are deterministic across
// exactly two Execute calls.
func newTrippableResolver(t *testing.T) (*Resolver, *resilience.Manager, *cache.Cache, sqlmock.Sqlmock) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c := cache.NewFromClient(redisClient)

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	s := store.New(db)

	rm := resilience.NewManager(config.ResilienceConfig{
		DBFailureThreshold: 1, DBTimeout: time.Minute, DBWindow: time.Minute, DBMinCalls: 1,
		CacheFailureThreshold: 1, CacheTimeout: time.Minute, CacheWindow: time.Minute, CacheMinCalls: 1,
		ReadBulkheadMaxConcurrent: 10, WriteBulkheadMaxConcurrent: 10, AuditBulkheadMaxConcurrent: 10,
		BulkheadMaxWait: time.Second, RetryMaxRetries: 0, RetryWindow: time.Minute,
	})
	reg := metrics.NewWithRegistry("test", nil)
	logger := logging.New("test", "error", "json")

	return NewResolver(c, s, rm, reg, logger, time.Minute, 10*time.Second), rm, c, mock
}

func TestResolveReturns503NotMaskedAs500WhenDBCircuitOpenAndNoCacheEntry(t *testing.T) {
	r, rm, _, _ := newTrippableResolver(t)
	key := domain.Key{Tenant: "acme", Service: "billing", Environment: "prod", Version: "v1"}

	boom := errors.New("boom")
	_ = rm.DBCircuit.Execute(func() error { return boom })
	_ = rm.DBCircuit.Execute(func() error { return boom })
	require.Equal(t, resilience.StateOpen, rm.DBCircuit.State())

	_, err := r.Resolve(context.Background(), key)
	require.Error(t, err)
	require.True(t, apierr.Is(err, apierr.KindCircuitOpen), "expected CircuitOpen kind, got %v", err)
	require.Equal(t, http.StatusServiceUnavailable, apierr.HTTPStatus(err))
}

func TestResolveServesCacheFallbackWhenDBCircuitOpenAndPositiveEntryPresent(t *testing.T) {
	r, rm, c, _ := newTrippableResolver(t)
	key := domain.Key{Tenant: "acme", Service: "billing", Environment: "prod", Version: "v1"}
	cacheKey := cache.Key(key.Tenant, key.Service, key.Environment, key.Version)
	require.NoError(t, c.Set(context.Background(), cacheKey, "https://billing.internal/v1", time.Minute))

	boom := errors.New("boom")
	_ = rm.CacheCircuit.Execute(func() error { return boom })
	_ = rm.CacheCircuit.Execute(func() error { return boom })
	require.Equal(t, resilience.StateOpen, rm.CacheCircuit.State())

	_ = rm.DBCircuit.Execute(func() error { return boom })
	_ = rm.DBCircuit.Execute(func() error { return boom })
	require.Equal(t, resilience.StateOpen, rm.DBCircuit.State())

	outcome, err := r.Resolve(context.Background(), key)
	require.NoError(t, err)
	require.Equal(t, "https://billing.internal/v1", outcome.URL)
	require.Equal(t, domain.SourceCacheFallback, outcome.Source)
}
