package events

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/require"

	"github.com/iamtahmad1/traffic-manager/internal/correlation"
	"github.com/iamtahmad1/traffic-manager/internal/domain"
)

func TestPublishSendsRouteEventEnvelope(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)
	mockProducer.ExpectSendMessageAndSucceed()

	p := NewFromSyncProducer(mockProducer, "route-events")
	ctx := correlation.WithID(context.Background(), "req-aaaaaaaaaaaaaaaa")
	key := domain.Key{Tenant: "acme", Service: "billing", Environment: "prod", Version: "v1"}

	err := p.Publish(ctx, domain.ActionCreate, key, "https://billing.internal/v1")
	require.NoError(t, err)
	require.NoError(t, mockProducer.Close())
}

func TestPublishPropagatesBrokerFailure(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)
	mockProducer.ExpectSendMessageAndFail(context.DeadlineExceeded)

	p := NewFromSyncProducer(mockProducer, "route-events")
	key := domain.Key{Tenant: "acme", Service: "billing", Environment: "prod", Version: "v1"}

	err := p.Publish(context.Background(), domain.ActionCreate, key, "https://billing.internal/v1")
	require.Error(t, err)
	require.NoError(t, mockProducer.Close())
}

func TestEventEnvelopeRoundTrips(t *testing.T) {
	evt := domain.Event{
		EventID: "e1", Action: domain.ActionActivate, Tenant: "acme", Service: "billing",
		Environment: "prod", Version: "v1", URL: "https://billing.internal/v1",
		OccurredAt: "2026-01-01T00:00:00Z", CorrelationID: "req-aaaaaaaaaaaaaaaa",
	}
	raw, err := json.Marshal(evt)
	require.NoError(t, err)

	var decoded domain.Event
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Equal(t, evt, decoded)
}
