// Package consumers implements the three independent consumer groups fed
// by the route-events topic: cache invalidation, cache warming, and audit
// persistence. Each runs in its own consumer group so one slow or failing
// consumer type never blocks another.
package consumers

import (
	"context"
	"encoding/json"

	"github.com/IBM/sarama"
	"github.com/sirupsen/logrus"

	"github.com/iamtahmad1/traffic-manager/internal/correlation"
	"github.com/iamtahmad1/traffic-manager/internal/domain"
	"github.com/iamtahmad1/traffic-manager/internal/platform/logging"
)

// Type names one of the three independent consumer groups.
type Type string

const (
	TypeCacheInvalidation Type = "cache_invalidation"
	TypeCacheWarming      Type = "cache_warming"
	TypeAuditLog          Type = "audit_log"
)

// GroupID formats the consumer group id for a consumer type, matching the
// original "{prefix}-{consumer_type}" scheme so each type gets independent
// partition assignment and offset tracking.
func GroupID(prefix string, t Type) string {
	return prefix + "-" + string(t)
}

// Handler processes a single decoded RouteEvent. Implementations must be
// idempotent: delivery is at-least-once.
type Handler interface {
	Handle(ctx context.Context, event domain.Event) error
}

// groupHandler adapts a Handler to sarama.ConsumerGroupHandler, restoring
// correlation context per message before dispatch and logging (but not
// failing the session on) per-message handler errors, matching the
// original's "catch per-message exceptions and continue" poll loop.
type groupHandler struct {
	handler Handler
	logger  *logging.Logger
	typ     Type
}

func newGroupHandler(t Type, h Handler, l *logging.Logger) *groupHandler {
	return &groupHandler{handler: h, logger: l, typ: t}
}

func (g *groupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (g *groupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (g *groupHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case <-sess.Context().Done():
			return nil
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			g.process(sess.Context(), msg)
			sess.MarkMessage(msg, "")
		}
	}
}

func (g *groupHandler) process(ctx context.Context, msg *sarama.ConsumerMessage) {
	var event domain.Event
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		g.logger.WithFields(logrus.Fields{"consumer_type": string(g.typ), "error": err.Error()}).
			Error("failed to decode route event")
		return
	}

	msgCtx := correlation.WithID(ctx, event.CorrelationID)
	if err := g.handler.Handle(msgCtx, event); err != nil {
		g.logger.WithContext(msgCtx).WithFields(logrus.Fields{"consumer_type": string(g.typ), "error": err.Error()}).
			Error("route event handler failed, continuing")
	}
}
