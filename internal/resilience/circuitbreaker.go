// Package resilience implements the four independent fault-tolerance
// primitives mediating every external call: circuit breaker, retry budget,
// bulkhead, and drainer.
package resilience

import (
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/iamtahmad1/traffic-manager/internal/platform/apierr"
)

// State mirrors gobreaker's three-state machine with the names the design
// uses.
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half_open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig configures a single named circuit breaker.
type CircuitBreakerConfig struct {
	Name             string
	FailureThreshold int
	TimeoutSeconds   time.Duration
	WindowSeconds    time.Duration
	MinCalls         int
}

// CircuitBreaker wraps gobreaker.CircuitBreaker[any]. gobreaker's native
// ReadyToTrip only sees consecutive failures; the design calls for a
// rolling-window failure count with a minimum call floor, so this type
// keeps its own timestamp ring under its own mutex (separate from
// gobreaker's internal one), and gobreaker's ReadyToTrip simply consults
// it.
type CircuitBreaker struct {
	name string
	cfg  CircuitBreakerConfig

	mu           sync.Mutex
	failureTimes []time.Time
	totalCalls   int64

	gb *gobreaker.CircuitBreaker[any]
}

// NewCircuitBreaker constructs a circuit breaker per cfg.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	cb := &CircuitBreaker{name: cfg.Name, cfg: cfg}

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Interval:    0,
		Timeout:     cfg.TimeoutSeconds,
		ReadyToTrip: func(_ gobreaker.Counts) bool {
			return cb.windowTripped()
		},
	}
	cb.gb = gobreaker.NewCircuitBreaker[any](settings)
	return cb
}

// windowTripped evaluates the rolling-window policy under the CB's own
// mutex: expire stale timestamps, then compare against threshold/min-calls.
func (cb *CircuitBreaker) windowTripped() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.expireLocked(time.Now())
	return cb.totalCalls >= int64(cb.cfg.MinCalls) && len(cb.failureTimes) >= cb.cfg.FailureThreshold
}

func (cb *CircuitBreaker) expireLocked(now time.Time) {
	cutoff := now.Add(-cb.cfg.WindowSeconds)
	kept := cb.failureTimes[:0]
	for _, t := range cb.failureTimes {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	cb.failureTimes = kept
}

func (cb *CircuitBreaker) recordCall(failed bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.totalCalls++
	if failed {
		cb.expireLocked(time.Now())
		cb.failureTimes = append(cb.failureTimes, time.Now())
	}
}

func (cb *CircuitBreaker) resetLocked() {
	cb.failureTimes = nil
	cb.totalCalls = 0
}

// Reset clears this breaker's failure history and call count, as happens
// implicitly on a successful half_open probe.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.resetLocked()
}

// State returns the breaker's current state.
func (cb *CircuitBreaker) State() State {
	switch cb.gb.State() {
	case gobreaker.StateClosed:
		return StateClosed
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	default:
		return StateOpen
	}
}

// Execute runs fn through the breaker. The wrapped operation is always
// invoked outside of the CB's internal mutex (gobreaker itself never holds
// a lock across the call, and recordCall/windowTripped only touch CB state).
func (cb *CircuitBreaker) Execute(fn func() error) error {
	_, err := cb.gb.Execute(func() (any, error) {
		callErr := fn()
		cb.recordCall(callErr != nil)
		if callErr == nil {
			// A successful call while half_open or after enough
			// window quiet time clears history so a single
			// transient blip doesn't linger.
			if cb.State() == StateHalfOpen {
				cb.Reset()
			} else {
				cb.mu.Lock()
				cb.expireLocked(time.Now())
				cb.mu.Unlock()
			}
		}
		return nil, callErr
	})
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return apierr.CircuitOpen("circuit breaker " + cb.name + " is open")
	}
	return err
}

// Snapshot is the observability projection of one breaker's state.
type CircuitBreakerSnapshot struct {
	Name            string `json:"name"`
	State           string `json:"state"`
	FailuresInWindow int   `json:"failures_in_window"`
	TotalCalls       int64 `json:"total_calls"`
}

func (cb *CircuitBreaker) Snapshot() CircuitBreakerSnapshot {
	// Read gobreaker's state before taking cb.mu: ReadyToTrip takes cb.mu
	// while gobreaker holds its own lock, so the reverse order could deadlock.
	state := cb.State().String()
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.expireLocked(time.Now())
	return CircuitBreakerSnapshot{
		Name:             cb.name,
		State:            state,
		FailuresInWindow: len(cb.failureTimes),
		TotalCalls:       cb.totalCalls,
	}
}
