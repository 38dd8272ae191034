package metrics

import (
	"context"
	"database/sql"
	"time"
)

// PingablePool is the subset of the relational pool the sampler reads gauges
// from; satisfied by *sql.DB.
type PingablePool interface {
	Stats() sql.DBStats
}

// Pinger is satisfied by any dependency client whose liveness can be probed
// with a context-bound Ping.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Sampler periodically samples pool/dependency gauges into Metrics. It
// mirrors the ticker-driven background worker idiom used elsewhere in this
// codebase for periodic polling.
type Sampler struct {
	metrics   *Metrics
	startedAt time.Time
	interval  time.Duration

	pool  PingablePool
	cache Pinger
	kafka Pinger
}

// NewSampler constructs a sampler. cache and kafka may be nil if not yet
// wired (e.g. during early startup); pool may be nil for the same reason.
func NewSampler(m *Metrics, startedAt time.Time, interval time.Duration, pool PingablePool, cache, kafka Pinger) *Sampler {
	return &Sampler{metrics: m, startedAt: startedAt, interval: interval, pool: pool, cache: cache, kafka: kafka}
}

// Run blocks, sampling every interval until ctx is cancelled.
func (s *Sampler) Run(ctx context.Context) {
	s.sampleOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sampleOnce(ctx)
		}
	}
}

func (s *Sampler) sampleOnce(ctx context.Context) {
	s.metrics.UpdateUptime(s.startedAt)

	if s.pool != nil {
		stats := s.pool.Stats()
		s.metrics.SetDBPoolStats(stats.MaxOpenConnections, stats.Idle, stats.InUse)
	}

	if s.cache != nil {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := s.cache.Ping(pingCtx)
		cancel()
		s.metrics.SetCacheConnected(err == nil)
	}

	if s.kafka != nil {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := s.kafka.Ping(pingCtx)
		cancel()
		s.metrics.SetKafkaProducerReady(err == nil)
	}
}
