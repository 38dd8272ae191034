// Package app wires every component into a running process: cmd/trafficd
// hosts the HTTP surface, cmd/trafficconsumer hosts one event consumer.
// Both share this package's dependency wiring and lifecycle shape.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/iamtahmad1/traffic-manager/internal/audit"
	"github.com/iamtahmad1/traffic-manager/internal/cache"
	"github.com/iamtahmad1/traffic-manager/internal/engine"
	"github.com/iamtahmad1/traffic-manager/internal/events"
	"github.com/iamtahmad1/traffic-manager/internal/httpapi"
	"github.com/iamtahmad1/traffic-manager/internal/platform/config"
	"github.com/iamtahmad1/traffic-manager/internal/platform/logging"
	"github.com/iamtahmad1/traffic-manager/internal/platform/metrics"
	"github.com/iamtahmad1/traffic-manager/internal/resilience"
	"github.com/iamtahmad1/traffic-manager/internal/store"
)

// Application wires the shared dependency graph every entrypoint needs.
type Application struct {
	Config     *config.Config
	Logger     *logging.Logger
	Metrics    *metrics.Metrics
	Resilience *resilience.Manager

	Store    *store.Store
	Cache    *cache.Cache
	Audit    *audit.Store
	Producer *events.Producer

	Resolver *engine.Resolver
	Writer   *engine.Writer

	startedAt time.Time
	sampler   *metrics.Sampler
}

// New dials every external dependency and assembles the engine layer. The
// caller owns calling Close when done.
func New(ctx context.Context, cfg *config.Config, serviceName string) (*Application, error) {
	logger := logging.New(serviceName, cfg.LogLevel, cfg.LogFormat)
	m := metrics.Init(serviceName)
	rm := resilience.NewManager(cfg.Resilience)

	s, err := store.Open(cfg.Database.DSN(), cfg.Database.PoolMax, cfg.Database.PoolMin)
	if err != nil {
		return nil, fmt.Errorf("open relational store: %w", err)
	}

	c := cache.New(cache.Config{
		Addr: cfg.Redis.Addr(), DB: cfg.Redis.DB,
		SocketTimeout: cfg.Redis.SocketTimeout, PoolMax: cfg.Redis.PoolMax,
	})

	auditStore, err := audit.Connect(ctx, audit.Config{
		URI: cfg.Mongo.URI(), Database: cfg.Mongo.DB, Collection: cfg.Mongo.AuditCollection,
		ConnectTimeout: cfg.Mongo.ConnectTimeout, ServerSelectionTimeout: cfg.Mongo.ServerSelectionTimeout,
	})
	if err != nil {
		s.Close()
		c.Close()
		return nil, fmt.Errorf("connect audit store: %w", err)
	}

	producer, err := events.NewProducer(events.ProducerConfig{
		BootstrapServers: cfg.Kafka.BootstrapServers, Topic: cfg.Kafka.RouteEventsTopic,
		Retries: cfg.Kafka.Retries, RequestTimeout: cfg.Kafka.RequestTimeout,
	})
	if err != nil {
		s.Close()
		c.Close()
		auditStore.Close(ctx)
		return nil, fmt.Errorf("connect event producer: %w", err)
	}

	resolver := engine.NewResolver(c, s, rm, m, logger, cfg.CachePositiveTTL, cfg.CacheNegativeTTL)
	writer := engine.NewWriter(s, producer, rm, m, logger)

	sampler := metrics.NewSampler(m, time.Now(), 30*time.Second, s.DB(), c, producer)

	return &Application{
		Config: cfg, Logger: logger, Metrics: m, Resilience: rm,
		Store: s, Cache: c, Audit: auditStore, Producer: producer,
		Resolver: resolver, Writer: writer,
		startedAt: time.Now(), sampler: sampler,
	}, nil
}

// RunSampler starts the background metrics sampler; it blocks until ctx is
// cancelled and is meant to run in its own goroutine.
func (a *Application) RunSampler(ctx context.Context) {
	a.sampler.Run(ctx)
}

// HTTPHandler builds the chi router for the HTTP entrypoint.
func (a *Application) HTTPHandler() http.Handler {
	dbPinger := pingerFunc(func(ctx context.Context) error { return a.Store.Ping(ctx) })
	cachePinger := pingerFunc(func(ctx context.Context) error { return a.Cache.Ping(ctx) })
	return httpapi.New(a.Resolver, a.Writer, a.Audit, a.Resilience, a.Metrics, a.Logger, dbPinger, cachePinger)
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

// MigrateDB applies embedded schema migrations against the relational
// store. Callers may skip this for production deploys where migrations
// ship through a separate pipeline.
func (a *Application) MigrateDB(migrate func(db *sql.DB) error) error {
	return migrate(a.Store.DB())
}

// Close releases every dependency connection.
func (a *Application) Close(ctx context.Context) error {
	var errs []error
	if err := a.Producer.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := a.Audit.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := a.Cache.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := a.Store.Close(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("close application dependencies: %v", errs)
	}
	return nil
}
