// Package httpapi exposes the routing control plane over HTTP using
// chi, with a fixed middleware chain: correlation-ID propagation,
// request metrics, and a drain gate ahead of every /api/v1 handler.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iamtahmad1/traffic-manager/internal/domain"
	"github.com/iamtahmad1/traffic-manager/internal/platform/apierr"
	"github.com/iamtahmad1/traffic-manager/internal/platform/logging"
	"github.com/iamtahmad1/traffic-manager/internal/platform/metrics"
	"github.com/iamtahmad1/traffic-manager/internal/resilience"
)

// Service name reported in /health payloads.
const serviceName = "traffic-manager"

// RouteResolver is the subset of the read engine the resolve endpoint
// needs.
type RouteResolver interface {
	Resolve(ctx context.Context, key domain.Key) (domain.ResolveOutcome, error)
}

// RouteWriter is the subset of the write engine the route mutation
// endpoints need.
type RouteWriter interface {
	Create(ctx context.Context, key domain.Key, url string) (domain.Route, error)
	Activate(ctx context.Context, key domain.Key) (domain.Route, error)
	Deactivate(ctx context.Context, key domain.Key) (domain.Route, error)
}

// AuditReader is the subset of the audit store the audit endpoints need.
type AuditReader interface {
	RouteHistory(ctx context.Context, key domain.Key, limit int64) ([]domain.AuditDocument, error)
	Recent(ctx context.Context, limit int64) ([]domain.AuditDocument, error)
	ByAction(ctx context.Context, action domain.Action, limit int64) ([]domain.AuditDocument, error)
	TimeRange(ctx context.Context, from, to time.Time, limit int64) ([]domain.AuditDocument, error)
	Ping(ctx context.Context) error
}

// DependencyPinger is satisfied by any dependency whose liveness the
// readiness probe should check.
type DependencyPinger interface {
	Ping(ctx context.Context) error
}

// Server wires the engine, audit store, and resilience manager into a
// chi.Router.
type Server struct {
	resolver   RouteResolver
	writer     RouteWriter
	audit      AuditReader
	resilience *resilience.Manager
	metrics    *metrics.Metrics
	logger     *logging.Logger

	dbPinger    DependencyPinger
	cachePinger DependencyPinger
}

// New constructs the HTTP server's chi.Router.
func New(resolver RouteResolver, writer RouteWriter, auditStore AuditReader, rm *resilience.Manager, m *metrics.Metrics, l *logging.Logger, dbPinger, cachePinger DependencyPinger) http.Handler {
	s := &Server{
		resolver: resolver, writer: writer, audit: auditStore, resilience: rm, metrics: m, logger: l,
		dbPinger: dbPinger, cachePinger: cachePinger,
	}

	r := chi.NewRouter()
	r.Use(s.recoveryMiddleware)
	r.Use(securityHeadersMiddleware)
	r.Use(bodyLimitMiddleware)
	r.Use(s.correlationMiddleware)
	r.Use(s.metricsMiddleware)

	r.Get("/health", s.handleHealth)
	r.Get("/health/live", s.handleHealth)
	r.Get("/health/ready", s.handleReady)
	r.Get("/health/resilience", s.handleResilience)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.drainMiddleware)

		r.Get("/routes/resolve", s.handleResolve)
		r.Post("/routes", s.handleCreateRoute)
		r.Post("/routes/activate", s.handleActivateRoute)
		r.Post("/routes/deactivate", s.handleDeactivateRoute)

		r.Get("/audit/route", s.handleAuditRoute)
		r.Get("/audit/recent", s.handleAuditRecent)
		r.Get("/audit/action", s.handleAuditAction)
		r.Get("/audit/time-range", s.handleAuditTimeRange)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, err error) {
	status := apierr.HTTPStatus(err)
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
