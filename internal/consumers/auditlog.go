package consumers

import (
	"context"
	"fmt"
	"time"

	"github.com/iamtahmad1/traffic-manager/internal/domain"
)

// AuditInserter is the subset of the audit store the audit handler needs.
type AuditInserter interface {
	Insert(ctx context.Context, doc domain.AuditDocument) error
}

// AuditHandler persists every route event as a durable audit document. The
// underlying store dedups on event_id, so redelivery under at-least-once
// semantics is safe.
type AuditHandler struct {
	store AuditInserter
}

// NewAuditHandler constructs an AuditHandler.
func NewAuditHandler(s AuditInserter) *AuditHandler {
	return &AuditHandler{store: s}
}

// Handle validates the event's required fields and persists it.
func (h *AuditHandler) Handle(ctx context.Context, event domain.Event) error {
	if event.EventID == "" || event.Tenant == "" || event.Service == "" || event.Environment == "" || event.Version == "" {
		return fmt.Errorf("audit event missing required fields: %+v", event)
	}

	occurredAt, err := time.Parse(time.RFC3339Nano, event.OccurredAt)
	if err != nil {
		occurredAt, err = time.Parse(time.RFC3339, event.OccurredAt)
		if err != nil {
			occurredAt = time.Now().UTC()
		}
	}

	doc := domain.AuditDocument{
		EventID: event.EventID, Action: event.Action, Tenant: event.Tenant, Service: event.Service,
		Environment: event.Environment, Version: event.Version, URL: event.URL,
		OccurredAt: occurredAt, CorrelationID: event.CorrelationID,
	}
	return h.store.Insert(ctx, doc)
}
