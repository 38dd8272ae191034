package engine

import (
	"context"
	"errors"
	"time"

	"github.com/iamtahmad1/traffic-manager/internal/domain"
	"github.com/iamtahmad1/traffic-manager/internal/events"
	"github.com/iamtahmad1/traffic-manager/internal/platform/apierr"
	"github.com/iamtahmad1/traffic-manager/internal/platform/logging"
	"github.com/iamtahmad1/traffic-manager/internal/platform/metrics"
	"github.com/iamtahmad1/traffic-manager/internal/resilience"
	"github.com/iamtahmad1/traffic-manager/internal/store"
)

// Writer implements the write path: transactional relational mutation
// followed by a best-effort event publish. The relational store is the
// single source of truth; a publish failure never rolls back or fails the
// write, it is only logged and counted.
type Writer struct {
	store      *store.Store
	producer   *events.Producer
	resilience *resilience.Manager
	metrics    *metrics.Metrics
	logger     *logging.Logger
}

// NewWriter constructs a Writer.
func NewWriter(s *store.Store, p *events.Producer, r *resilience.Manager, m *metrics.Metrics, l *logging.Logger) *Writer {
	return &Writer{store: s, producer: p, resilience: r, metrics: m, logger: l}
}

// Create upserts the endpoint for key and publishes a "created" event.
func (w *Writer) Create(ctx context.Context, key domain.Key, url string) (domain.Route, error) {
	return w.mutate(ctx, domain.ActionCreate, key, func() (domain.Route, error) {
		return w.store.CreateRoute(ctx, key, url)
	})
}

// Activate marks the endpoint for key active and publishes an "activated"
// event.
func (w *Writer) Activate(ctx context.Context, key domain.Key) (domain.Route, error) {
	return w.mutate(ctx, domain.ActionActivate, key, func() (domain.Route, error) {
		return w.store.Activate(ctx, key)
	})
}

// Deactivate marks the endpoint for key inactive and publishes a
// "deactivated" event.
func (w *Writer) Deactivate(ctx context.Context, key domain.Key) (domain.Route, error) {
	return w.mutate(ctx, domain.ActionDeactivate, key, func() (domain.Route, error) {
		return w.store.Deactivate(ctx, key)
	})
}

func (w *Writer) mutate(ctx context.Context, action domain.Action, key domain.Key, fn func() (domain.Route, error)) (domain.Route, error) {
	start := time.Now()

	release, err := w.resilience.WriteBulkhead.Acquire()
	if err != nil {
		return domain.Route{}, err
	}
	defer release()

	var route domain.Route
	var sentinelErr error
	dbErr := w.resilience.DBCircuit.Execute(func() error {
		return w.resilience.DBRetryBudget.Retry(ctx, func() error {
			var innerErr error
			route, innerErr = fn()
			w.metrics.RecordDBQuery(string(action), innerErr)
			switch innerErr {
			case store.ErrRouteNotFound, store.ErrEnvironmentNotFound, store.ErrEmptyURL:
				// Not retryable and not a circuit/budget-relevant failure:
				// the write itself is malformed or targets a route that
				// doesn't exist, not a transient dependency fault.
				sentinelErr = innerErr
				return nil
			default:
				sentinelErr = nil
				return innerErr
			}
		})
	})
	if dbErr == nil && sentinelErr != nil {
		dbErr = sentinelErr
	}
	if dbErr != nil {
		w.metrics.RecordWrite(string(action), false, time.Since(start))
		switch dbErr {
		case store.ErrRouteNotFound, store.ErrEnvironmentNotFound:
			return domain.Route{}, apierr.RouteNotFound(dbErr.Error())
		case store.ErrEmptyURL:
			return domain.Route{}, apierr.Validation(dbErr.Error())
		default:
			var apiErr *apierr.Error
			if errors.As(dbErr, &apiErr) {
				return domain.Route{}, dbErr
			}
			return domain.Route{}, apierr.Dependency("relational write failed", dbErr)
		}
	}

	w.metrics.RecordWrite(string(action), true, time.Since(start))
	w.publishBestEffort(ctx, action, key, route.URL)
	return route, nil
}

func (w *Writer) publishBestEffort(ctx context.Context, action domain.Action, key domain.Key, url string) {
	if w.producer == nil {
		return
	}
	err := w.producer.Publish(ctx, action, key, url)
	w.metrics.RecordKafkaPublish(string(action), err)
	if err != nil {
		w.logger.WithContext(ctx).WithError(err).Error("best-effort route event publish failed")
	}
}
