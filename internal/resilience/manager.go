package resilience

import "github.com/iamtahmad1/traffic-manager/internal/platform/config"

// Manager aggregates the named resilience primitives the rest of the
// system depends on. Its registry is immutable after construction; each
// primitive still owns its own mutex.
type Manager struct {
	DBCircuit    *CircuitBreaker
	CacheCircuit *CircuitBreaker
	AuditCircuit *CircuitBreaker

	DBRetryBudget    *RetryBudget
	CacheRetryBudget *RetryBudget

	ReadBulkhead  *Bulkhead
	WriteBulkhead *Bulkhead
	AuditBulkhead *Bulkhead

	Drainer *Drainer
}

// NewManager builds the resilience Manager from resolved configuration.
func NewManager(cfg config.ResilienceConfig) *Manager {
	return &Manager{
		DBCircuit: NewCircuitBreaker(CircuitBreakerConfig{
			Name: "db", FailureThreshold: cfg.DBFailureThreshold,
			TimeoutSeconds: cfg.DBTimeout, WindowSeconds: cfg.DBWindow, MinCalls: cfg.DBMinCalls,
		}),
		CacheCircuit: NewCircuitBreaker(CircuitBreakerConfig{
			Name: "cache", FailureThreshold: cfg.CacheFailureThreshold,
			TimeoutSeconds: cfg.CacheTimeout, WindowSeconds: cfg.CacheWindow, MinCalls: cfg.CacheMinCalls,
		}),
		AuditCircuit: NewCircuitBreaker(CircuitBreakerConfig{
			Name: "audit", FailureThreshold: cfg.AuditFailureThreshold,
			TimeoutSeconds: cfg.AuditTimeout, WindowSeconds: cfg.AuditWindow, MinCalls: cfg.AuditMinCalls,
		}),

		DBRetryBudget: NewRetryBudget(RetryBudgetConfig{
			Name: "db", MaxRetries: cfg.RetryMaxRetries,
			WindowSeconds: cfg.RetryWindow, MinRetryInterval: cfg.RetryMinInterval,
		}),
		CacheRetryBudget: NewRetryBudget(RetryBudgetConfig{
			Name: "cache", MaxRetries: cfg.RetryMaxRetries,
			WindowSeconds: cfg.RetryWindow, MinRetryInterval: cfg.RetryMinInterval,
		}),

		ReadBulkhead:  NewBulkhead("read", cfg.ReadBulkheadMaxConcurrent, cfg.BulkheadMaxWait),
		WriteBulkhead: NewBulkhead("write", cfg.WriteBulkheadMaxConcurrent, cfg.BulkheadMaxWait),
		AuditBulkhead: NewBulkhead("audit", cfg.AuditBulkheadMaxConcurrent, cfg.BulkheadMaxWait),

		Drainer: NewDrainer(),
	}
}

// Snapshot is the JSON projection served at /health/resilience.
type Snapshot struct {
	CircuitBreakers []CircuitBreakerSnapshot `json:"circuit_breakers"`
	RetryBudgets    []RetryBudgetSnapshot    `json:"retry_budgets"`
	Bulkheads       []BulkheadSnapshot       `json:"bulkheads"`
	Drain           DrainerSnapshot          `json:"drain"`
}

// Snapshot captures the current state of every named primitive.
func (m *Manager) Snapshot() Snapshot {
	return Snapshot{
		CircuitBreakers: []CircuitBreakerSnapshot{
			m.DBCircuit.Snapshot(), m.CacheCircuit.Snapshot(), m.AuditCircuit.Snapshot(),
		},
		RetryBudgets: []RetryBudgetSnapshot{
			m.DBRetryBudget.Snapshot(), m.CacheRetryBudget.Snapshot(),
		},
		Bulkheads: []BulkheadSnapshot{
			m.ReadBulkhead.Snapshot(), m.WriteBulkhead.Snapshot(), m.AuditBulkhead.Snapshot(),
		},
		Drain: m.Drainer.Snapshot(),
	}
}
