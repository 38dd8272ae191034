package audit

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iamtahmad1/traffic-manager/internal/domain"
)

// These tests exercise the audit store against a real MongoDB instance and
// are skipped unless AUDIT_TEST_MONGO_URI is set, matching this repo's
// convention of keeping driver-backed integration tests opt-in.
func requireLiveMongo(t *testing.T) Config {
	t.Helper()
	uri := os.Getenv("AUDIT_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("AUDIT_TEST_MONGO_URI not set; skipping live Mongo audit test")
	}
	return Config{
		URI: uri, Database: "traffic_manager_test", Collection: "audit_events",
		ConnectTimeout: 5 * time.Second, ServerSelectionTimeout: 5 * time.Second,
	}
}

func TestInsertIsIdempotentOnDuplicateEventID(t *testing.T) {
	cfg := requireLiveMongo(t)
	ctx := context.Background()
	store, err := Connect(ctx, cfg)
	require.NoError(t, err)
	defer store.Close(ctx)

	doc := domain.AuditDocument{
		EventID: "dup-event-1", Action: domain.ActionCreate, Tenant: "acme", Service: "billing",
		Environment: "prod", Version: "v1", URL: "https://billing.internal/v1",
		OccurredAt: time.Now().UTC(), CorrelationID: "req-aaaaaaaaaaaaaaaa",
	}

	require.NoError(t, store.Insert(ctx, doc))
	require.NoError(t, store.Insert(ctx, doc))

	history, err := store.RouteHistory(ctx, doc.Key(), 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
}

func TestRecentOrdersMostRecentFirst(t *testing.T) {
	cfg := requireLiveMongo(t)
	ctx := context.Background()
	store, err := Connect(ctx, cfg)
	require.NoError(t, err)
	defer store.Close(ctx)

	older := domain.AuditDocument{EventID: "order-1", Action: domain.ActionCreate, OccurredAt: time.Now().Add(-time.Hour)}
	newer := domain.AuditDocument{EventID: "order-2", Action: domain.ActionCreate, OccurredAt: time.Now()}
	require.NoError(t, store.Insert(ctx, older))
	require.NoError(t, store.Insert(ctx, newer))

	docs, err := store.Recent(ctx, 2)
	require.NoError(t, err)
	require.True(t, len(docs) >= 2)
	require.Equal(t, "order-2", docs[0].EventID)
}
