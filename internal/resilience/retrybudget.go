package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"github.com/iamtahmad1/traffic-manager/internal/platform/apierr"
)

// RetryBudgetConfig configures a named retry budget.
type RetryBudgetConfig struct {
	Name             string
	MaxRetries       int
	WindowSeconds    time.Duration
	MinRetryInterval time.Duration
}

// RetryBudget enforces an aggregate retry ceiling within a rolling window,
// plus a minimum spacing between individual retries (backed by a
// single-token rate.Limiter so the spacing policy doesn't duplicate the
// window bookkeeping the budget already does).
type RetryBudget struct {
	name    string
	cfg     RetryBudgetConfig
	limiter *rate.Limiter

	mu           sync.Mutex
	retryTimes   []time.Time
	totalRetries int64
}

// NewRetryBudget constructs a retry budget per cfg.
func NewRetryBudget(cfg RetryBudgetConfig) *RetryBudget {
	var limiter *rate.Limiter
	if cfg.MinRetryInterval > 0 {
		limiter = rate.NewLimiter(rate.Every(cfg.MinRetryInterval), 1)
	}
	return &RetryBudget{name: cfg.Name, cfg: cfg, limiter: limiter}
}

func (b *RetryBudget) expireLocked(now time.Time) {
	cutoff := now.Add(-b.cfg.WindowSeconds)
	kept := b.retryTimes[:0]
	for _, t := range b.retryTimes {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	b.retryTimes = kept
}

// CanRetry reports whether another retry is currently permitted.
func (b *RetryBudget) CanRetry() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.expireLocked(time.Now())
	return len(b.retryTimes) < b.cfg.MaxRetries
}

// RecordRetry atomically re-checks the budget and records a retry,
// returning RetryBudgetExceeded if the budget was exhausted between the
// caller's CanRetry check and this call.
func (b *RetryBudget) RecordRetry() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.expireLocked(time.Now())
	if len(b.retryTimes) >= b.cfg.MaxRetries {
		return apierr.RetryBudgetExceeded("retry budget " + b.name + " exhausted")
	}
	b.retryTimes = append(b.retryTimes, time.Now())
	b.totalRetries++
	return nil
}

// Snapshot projects the budget's current state for observability.
type RetryBudgetSnapshot struct {
	Name             string `json:"name"`
	RetriesInWindow  int    `json:"retries_in_window"`
	TotalRetries     int64  `json:"total_retries"`
}

func (b *RetryBudget) Snapshot() RetryBudgetSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.expireLocked(time.Now())
	return RetryBudgetSnapshot{Name: b.name, RetriesInWindow: len(b.retryTimes), TotalRetries: b.totalRetries}
}

// Retry runs fn, retrying on error while the budget permits it, spaced by
// an exponential backoff schedule (and by the minimum-interval limiter when
// configured). It gives up and returns fn's last error once the budget is
// exhausted or ctx is cancelled while waiting on the limiter; a
// cancellation during the backoff sleep returns ctx.Err() instead.
func (b *RetryBudget) Retry(ctx context.Context, fn func() error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 50 * time.Millisecond
	bo.MaxInterval = 2 * time.Second

	var lastErr error
	for {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !b.CanRetry() {
			return lastErr
		}
		if err := b.RecordRetry(); err != nil {
			return lastErr
		}
		if b.limiter != nil {
			if err := b.limiter.Wait(ctx); err != nil {
				return lastErr
			}
		}
		wait := bo.NextBackOff()
		if wait == backoff.Stop {
			return lastErr
		}
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
