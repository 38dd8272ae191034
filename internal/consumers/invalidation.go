package consumers

import (
	"context"

	"github.com/iamtahmad1/traffic-manager/internal/cache"
	"github.com/iamtahmad1/traffic-manager/internal/domain"
)

// InvalidationHandler evicts the cache entry for the event's route
// coordinate. Deleting an absent key is not an error, so this handler is
// naturally idempotent under redelivery.
type InvalidationHandler struct {
	cache *cache.Cache
}

// NewInvalidationHandler constructs an InvalidationHandler.
func NewInvalidationHandler(c *cache.Cache) *InvalidationHandler {
	return &InvalidationHandler{cache: c}
}

// Handle evicts the cached entry (positive or negative) for the event's key.
func (h *InvalidationHandler) Handle(ctx context.Context, event domain.Event) error {
	key := event.Key()
	cacheKey := cache.Key(key.Tenant, key.Service, key.Environment, key.Version)
	return h.cache.Delete(ctx, cacheKey)
}
