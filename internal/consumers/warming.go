package consumers

import (
	"context"
	"errors"

	"github.com/iamtahmad1/traffic-manager/internal/domain"
	"github.com/iamtahmad1/traffic-manager/internal/store"
)

// Resolver is the subset of the read engine the warming handler needs: a
// plain resolve call that populates whichever cache tier applies as a
// side effect.
type Resolver interface {
	Resolve(ctx context.Context, key domain.Key) (domain.ResolveOutcome, error)
}

// WarmingHandler re-runs the read path for the event's route coordinate so
// the cache is primed before the next real reader asks for it. A
// not-found outcome is expected (the route may have just been
// deactivated) and is not treated as a handler failure.
type WarmingHandler struct {
	resolver Resolver
}

// NewWarmingHandler constructs a WarmingHandler.
func NewWarmingHandler(r Resolver) *WarmingHandler {
	return &WarmingHandler{resolver: r}
}

// Handle resolves the event's route coordinate, priming the cache.
func (h *WarmingHandler) Handle(ctx context.Context, event domain.Event) error {
	_, err := h.resolver.Resolve(ctx, event.Key())
	if errors.Is(err, store.ErrRouteNotFound) {
		return nil
	}
	return err
}
