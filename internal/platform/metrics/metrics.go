// Package metrics provides Prometheus metrics collection for the routing
// control plane.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every collector the read path, write path, event pipeline,
// and dependency clients report into.
type Metrics struct {
	ResolveRequestsTotal        *prometheus.CounterVec
	ResolveCacheHitTotal        prometheus.Counter
	ResolveCacheMissTotal       prometheus.Counter
	ResolveNegativeCacheHitTotal prometheus.Counter
	ResolveLatencySeconds       prometheus.Histogram

	WriteRequestsTotal *prometheus.CounterVec
	WriteSuccessTotal  *prometheus.CounterVec
	WriteFailureTotal  *prometheus.CounterVec
	WriteLatencySeconds *prometheus.HistogramVec

	KafkaEventsPublishedTotal *prometheus.CounterVec
	KafkaEventsFailedTotal    *prometheus.CounterVec

	DBQueriesTotal         *prometheus.CounterVec
	DBConnectionErrorsTotal prometheus.Counter

	APIRequestsTotal        *prometheus.CounterVec
	APIRequestDurationSeconds *prometheus.HistogramVec

	DBPoolSize      prometheus.Gauge
	DBPoolAvailable prometheus.Gauge
	DBPoolInUse     prometheus.Gauge
	CacheConnected  prometheus.Gauge
	KafkaProducerReady prometheus.Gauge
	ApplicationUptimeSeconds prometheus.Gauge
}

// New creates a Metrics instance registered against the default registry.
func New(serviceName string) *Metrics {
	return NewWithRegistry(serviceName, prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a Metrics instance registered against registerer,
// which may be nil to skip registration (used by tests).
func NewWithRegistry(serviceName string, registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		ResolveRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "resolve_requests_total", Help: "Total route resolution requests"},
			[]string{"tenant", "service"},
		),
		ResolveCacheHitTotal: prometheus.NewCounter(
			prometheus.CounterOpts{Name: "resolve_cache_hit_total", Help: "Resolutions served from the positive cache"},
		),
		ResolveCacheMissTotal: prometheus.NewCounter(
			prometheus.CounterOpts{Name: "resolve_cache_miss_total", Help: "Resolutions that missed both cache tiers"},
		),
		ResolveNegativeCacheHitTotal: prometheus.NewCounter(
			prometheus.CounterOpts{Name: "resolve_negative_cache_hit_total", Help: "Resolutions short-circuited by the negative cache"},
		),
		ResolveLatencySeconds: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "resolve_latency_seconds",
				Help:    "Route resolution latency in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
		),

		WriteRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "write_requests_total", Help: "Total write-path requests"},
			[]string{"action"},
		),
		WriteSuccessTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "write_success_total", Help: "Write-path requests that committed"},
			[]string{"action"},
		),
		WriteFailureTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "write_failure_total", Help: "Write-path requests that failed"},
			[]string{"action"},
		),
		WriteLatencySeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "write_latency_seconds",
				Help:    "Write-path latency in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"action"},
		),

		KafkaEventsPublishedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "kafka_events_published_total", Help: "Route events published successfully"},
			[]string{"action"},
		),
		KafkaEventsFailedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "kafka_events_failed_total", Help: "Route events that failed to publish"},
			[]string{"action"},
		),

		DBQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "db_queries_total", Help: "Total relational store queries"},
			[]string{"operation", "status"},
		),
		DBConnectionErrorsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{Name: "db_connection_errors_total", Help: "Relational store connection errors"},
		),

		APIRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "api_requests_total", Help: "Total HTTP requests"},
			[]string{"method", "endpoint", "status_code"},
		),
		APIRequestDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "api_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"method", "endpoint"},
		),

		DBPoolSize:      prometheus.NewGauge(prometheus.GaugeOpts{Name: "db_pool_size", Help: "Configured relational pool size"}),
		DBPoolAvailable: prometheus.NewGauge(prometheus.GaugeOpts{Name: "db_pool_available", Help: "Idle relational pool connections"}),
		DBPoolInUse:     prometheus.NewGauge(prometheus.GaugeOpts{Name: "db_pool_in_use", Help: "In-use relational pool connections"}),
		CacheConnected:  prometheus.NewGauge(prometheus.GaugeOpts{Name: "cache_connected", Help: "1 if the cache ping succeeded last sample"}),
		KafkaProducerReady: prometheus.NewGauge(prometheus.GaugeOpts{Name: "kafka_producer_ready", Help: "1 if the event producer is ready"}),
		ApplicationUptimeSeconds: prometheus.NewGauge(prometheus.GaugeOpts{Name: "application_uptime_seconds", Help: "Seconds since process start"}),
	}

	if registerer != nil {
		registerer.MustRegister(
			m.ResolveRequestsTotal, m.ResolveCacheHitTotal, m.ResolveCacheMissTotal,
			m.ResolveNegativeCacheHitTotal, m.ResolveLatencySeconds,
			m.WriteRequestsTotal, m.WriteSuccessTotal, m.WriteFailureTotal, m.WriteLatencySeconds,
			m.KafkaEventsPublishedTotal, m.KafkaEventsFailedTotal,
			m.DBQueriesTotal, m.DBConnectionErrorsTotal,
			m.APIRequestsTotal, m.APIRequestDurationSeconds,
			m.DBPoolSize, m.DBPoolAvailable, m.DBPoolInUse,
			m.CacheConnected, m.KafkaProducerReady, m.ApplicationUptimeSeconds,
		)
	}

	_ = serviceName
	return m
}

// RecordResolve records the outcome of a single route resolution.
func (m *Metrics) RecordResolve(tenant, service string, outcome string, duration time.Duration) {
	m.ResolveRequestsTotal.WithLabelValues(tenant, service).Inc()
	m.ResolveLatencySeconds.Observe(duration.Seconds())
	switch outcome {
	case "cache_hit":
		m.ResolveCacheHitTotal.Inc()
	case "negative_cache_hit":
		m.ResolveNegativeCacheHitTotal.Inc()
	case "cache_miss":
		m.ResolveCacheMissTotal.Inc()
	}
}

// RecordWrite records the outcome of a write-path operation.
func (m *Metrics) RecordWrite(action string, success bool, duration time.Duration) {
	m.WriteRequestsTotal.WithLabelValues(action).Inc()
	m.WriteLatencySeconds.WithLabelValues(action).Observe(duration.Seconds())
	if success {
		m.WriteSuccessTotal.WithLabelValues(action).Inc()
	} else {
		m.WriteFailureTotal.WithLabelValues(action).Inc()
	}
}

// RecordKafkaPublish records a route event publish attempt.
func (m *Metrics) RecordKafkaPublish(action string, err error) {
	if err != nil {
		m.KafkaEventsFailedTotal.WithLabelValues(action).Inc()
		return
	}
	m.KafkaEventsPublishedTotal.WithLabelValues(action).Inc()
}

// RecordDBQuery records a relational store query outcome.
func (m *Metrics) RecordDBQuery(operation string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
		m.DBConnectionErrorsTotal.Inc()
	}
	m.DBQueriesTotal.WithLabelValues(operation, status).Inc()
}

// RecordAPIRequest records a completed HTTP request.
func (m *Metrics) RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	m.APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	m.APIRequestDurationSeconds.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// SetDBPoolStats publishes the current pool gauges.
func (m *Metrics) SetDBPoolStats(size, available, inUse int) {
	m.DBPoolSize.Set(float64(size))
	m.DBPoolAvailable.Set(float64(available))
	m.DBPoolInUse.Set(float64(inUse))
}

// SetCacheConnected publishes whether the last cache ping succeeded.
func (m *Metrics) SetCacheConnected(connected bool) {
	m.CacheConnected.Set(boolToFloat(connected))
}

// SetKafkaProducerReady publishes whether the event producer is usable.
func (m *Metrics) SetKafkaProducerReady(ready bool) {
	m.KafkaProducerReady.Set(boolToFloat(ready))
}

// UpdateUptime publishes seconds elapsed since startTime.
func (m *Metrics) UpdateUptime(startTime time.Time) {
	m.ApplicationUptimeSeconds.Set(time.Since(startTime).Seconds())
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

var (
	globalMetrics *Metrics
	globalMu      sync.Mutex
)

// Init initializes (once) and returns the global Metrics instance.
func Init(serviceName string) *Metrics {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalMetrics == nil {
		globalMetrics = New(serviceName)
	}
	return globalMetrics
}

// Global returns the global Metrics instance, initializing a default one
// if Init was never called.
func Global() *Metrics {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalMetrics == nil {
		globalMetrics = New("traffic-manager")
	}
	return globalMetrics
}
