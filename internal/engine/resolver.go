// Package engine implements the read path (Resolver) and write path
// (Writer) that sit between the HTTP surface and the cache/store/event
// dependencies, mediated by the resilience Manager.
package engine

import (
	"context"
	"errors"
	"time"

	"github.com/iamtahmad1/traffic-manager/internal/cache"
	"github.com/iamtahmad1/traffic-manager/internal/domain"
	"github.com/iamtahmad1/traffic-manager/internal/platform/apierr"
	"github.com/iamtahmad1/traffic-manager/internal/platform/logging"
	"github.com/iamtahmad1/traffic-manager/internal/platform/metrics"
	"github.com/iamtahmad1/traffic-manager/internal/resilience"
	"github.com/iamtahmad1/traffic-manager/internal/store"
)

// Resolver implements the three-tier read path: positive cache, negative
// cache, relational store.
type Resolver struct {
	cache       *cache.Cache
	store       *store.Store
	resilience  *resilience.Manager
	metrics     *metrics.Metrics
	logger      *logging.Logger
	positiveTTL time.Duration
	negativeTTL time.Duration
}

// NewResolver constructs a Resolver.
func NewResolver(c *cache.Cache, s *store.Store, r *resilience.Manager, m *metrics.Metrics, l *logging.Logger, positiveTTL, negativeTTL time.Duration) *Resolver {
	return &Resolver{cache: c, store: s, resilience: r, metrics: m, logger: l, positiveTTL: positiveTTL, negativeTTL: negativeTTL}
}

// Resolve runs the read path for key: cache hit, negative-cache hit, or a
// store lookup that lazily populates whichever cache tier applies. When the
// store's circuit is open, a final direct cache read is attempted before
// giving up; a positive entry found that way is served with
// domain.SourceCacheFallback so callers can surface the diagnostic marker.
func (r *Resolver) Resolve(ctx context.Context, key domain.Key) (domain.ResolveOutcome, error) {
	start := time.Now()
	cacheKey := cache.Key(key.Tenant, key.Service, key.Environment, key.Version)

	release, err := r.resilience.ReadBulkhead.Acquire()
	if err != nil {
		return domain.ResolveOutcome{}, err
	}
	defer release()

	url, outcome, err := r.lookupCache(ctx, cacheKey)
	if err == nil {
		switch outcome {
		case cache.Hit:
			r.metrics.RecordResolve(key.Tenant, key.Service, "cache_hit", time.Since(start))
			return domain.ResolveOutcome{URL: url}, nil
		case cache.NegativeHit:
			r.metrics.RecordResolve(key.Tenant, key.Service, "negative_cache_hit", time.Since(start))
			return domain.ResolveOutcome{}, &apierr.Error{Kind: apierr.KindRouteNotFound, Message: store.ErrRouteNotFound.Error(), Err: store.ErrRouteNotFound}
		}
	} else {
		r.logger.WithContext(ctx).WithError(err).Warn("cache lookup failed, falling through to store")
	}

	route, err := r.lookupStore(ctx, key)
	if err != nil {
		if err == store.ErrRouteNotFound {
			if setErr := r.cache.SetNegative(ctx, cacheKey, r.negativeTTL); setErr != nil {
				r.logger.WithContext(ctx).WithError(setErr).Warn("failed to set negative cache entry")
			}
			r.metrics.RecordResolve(key.Tenant, key.Service, "cache_miss", time.Since(start))
			return domain.ResolveOutcome{}, &apierr.Error{Kind: apierr.KindRouteNotFound, Message: err.Error(), Err: err}
		}
		if apierr.Is(err, apierr.KindCircuitOpen) {
			if fallback, ok := r.cacheFallback(ctx, cacheKey); ok {
				r.metrics.RecordResolve(key.Tenant, key.Service, "cache_fallback", time.Since(start))
				return domain.ResolveOutcome{URL: fallback, Source: domain.SourceCacheFallback}, nil
			}
		}
		var apiErr *apierr.Error
		if errors.As(err, &apiErr) {
			return domain.ResolveOutcome{}, err
		}
		return domain.ResolveOutcome{}, apierr.Dependency("relational store lookup failed", err)
	}

	if setErr := r.cache.Set(ctx, cacheKey, route.URL, r.positiveTTL); setErr != nil {
		r.logger.WithContext(ctx).WithError(setErr).Warn("failed to set positive cache entry")
	}
	r.metrics.RecordResolve(key.Tenant, key.Service, "cache_miss", time.Since(start))
	return domain.ResolveOutcome{URL: route.URL}, nil
}

// cacheFallback is the "final cache read" §4.10 calls for once the store's
// circuit is open: a direct, circuit-bypassing read, since the cache
// circuit's own health is orthogonal to the DB outage this is compensating
// for.
func (r *Resolver) cacheFallback(ctx context.Context, cacheKey string) (string, bool) {
	url, outcome, err := r.cache.Get(ctx, cacheKey)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Warn("cache fallback read failed")
		return "", false
	}
	return url, outcome == cache.Hit
}

func (r *Resolver) lookupCache(ctx context.Context, cacheKey string) (string, cache.Outcome, error) {
	var (
		url     string
		outcome cache.Outcome
	)
	err := r.resilience.CacheCircuit.Execute(func() error {
		return r.resilience.CacheRetryBudget.Retry(ctx, func() error {
			var innerErr error
			url, outcome, innerErr = r.cache.Get(ctx, cacheKey)
			return innerErr
		})
	})
	return url, outcome, err
}

func (r *Resolver) lookupStore(ctx context.Context, key domain.Key) (domain.Route, error) {
	var route domain.Route
	err := r.resilience.DBCircuit.Execute(func() error {
		return r.resilience.DBRetryBudget.Retry(ctx, func() error {
			var innerErr error
			route, innerErr = r.store.Resolve(ctx, key)
			r.metrics.RecordDBQuery("resolve_endpoint", innerErr)
			if innerErr == store.ErrRouteNotFound {
				return nil
			}
			return innerErr
		})
	})
	if err != nil {
		return domain.Route{}, err
	}
	if route.URL == "" {
		return domain.Route{}, store.ErrRouteNotFound
	}
	return route, nil
}
