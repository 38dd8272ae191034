package consumers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/iamtahmad1/traffic-manager/internal/cache"
	"github.com/iamtahmad1/traffic-manager/internal/domain"
	"github.com/iamtahmad1/traffic-manager/internal/store"
)

func TestGroupIDFormatsPrefixAndType(t *testing.T) {
	require.Equal(t, "traffic-manager-cache_invalidation", GroupID("traffic-manager", TypeCacheInvalidation))
}

func TestInvalidationHandlerDeletesCacheEntry(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	c := cache.NewFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))

	event := domain.Event{Tenant: "acme", Service: "billing", Environment: "prod", Version: "v1"}
	key := cache.Key(event.Tenant, event.Service, event.Environment, event.Version)
	require.NoError(t, c.Set(context.Background(), key, "https://billing.internal/v1", time.Minute))

	h := NewInvalidationHandler(c)
	require.NoError(t, h.Handle(context.Background(), event))

	_, outcome, err := c.Get(context.Background(), key)
	require.NoError(t, err)
	require.Equal(t, cache.Miss, outcome)
}

func TestInvalidationHandlerIsIdempotentOnAbsentKey(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	c := cache.NewFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))

	h := NewInvalidationHandler(c)
	event := domain.Event{Tenant: "acme", Service: "billing", Environment: "prod", Version: "v99"}
	require.NoError(t, h.Handle(context.Background(), event))
}

type fakeResolver struct {
	err error
}

func (f fakeResolver) Resolve(ctx context.Context, key domain.Key) (domain.ResolveOutcome, error) {
	return domain.ResolveOutcome{URL: "https://billing.internal/v1"}, f.err
}

func TestWarmingHandlerSwallowsNotFound(t *testing.T) {
	h := NewWarmingHandler(fakeResolver{err: store.ErrRouteNotFound})
	err := h.Handle(context.Background(), domain.Event{Tenant: "acme", Service: "billing", Environment: "prod", Version: "v99"})
	require.NoError(t, err)
}

func TestWarmingHandlerPropagatesOtherErrors(t *testing.T) {
	h := NewWarmingHandler(fakeResolver{err: errors.New("cache down")})
	err := h.Handle(context.Background(), domain.Event{Tenant: "acme", Service: "billing", Environment: "prod", Version: "v1"})
	require.Error(t, err)
}

type fakeAuditInserter struct {
	inserted []domain.AuditDocument
}

func (f *fakeAuditInserter) Insert(ctx context.Context, doc domain.AuditDocument) error {
	f.inserted = append(f.inserted, doc)
	return nil
}

func TestAuditHandlerRejectsMissingFields(t *testing.T) {
	h := NewAuditHandler(&fakeAuditInserter{})
	err := h.Handle(context.Background(), domain.Event{EventID: "e1"})
	require.Error(t, err)
}

func TestAuditHandlerPersistsValidEvent(t *testing.T) {
	inserter := &fakeAuditInserter{}
	h := NewAuditHandler(inserter)
	event := domain.Event{
		EventID: "e1", Action: domain.ActionCreate, Tenant: "acme", Service: "billing",
		Environment: "prod", Version: "v1", URL: "https://billing.internal/v1",
		OccurredAt: "2026-01-01T00:00:00Z", CorrelationID: "req-aaaaaaaaaaaaaaaa",
	}
	require.NoError(t, h.Handle(context.Background(), event))
	require.Len(t, inserter.inserted, 1)
	require.Equal(t, "e1", inserter.inserted[0].EventID)
}
