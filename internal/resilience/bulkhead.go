package resilience

import (
	"sync/atomic"
	"time"

	"github.com/iamtahmad1/traffic-manager/internal/platform/apierr"
)

// Bulkhead is a semaphore of MaxConcurrent permits, isolating one operation
// class's resource pool from another (reads vs writes vs audit inserts).
type Bulkhead struct {
	name        string
	maxConcurrent int
	maxWait     time.Duration
	permits     chan struct{}
	inUse       int64
}

// NewBulkhead constructs a bulkhead with maxConcurrent permits; acquire
// calls block for at most maxWait before failing BulkheadFull.
func NewBulkhead(name string, maxConcurrent int, maxWait time.Duration) *Bulkhead {
	return &Bulkhead{
		name:          name,
		maxConcurrent: maxConcurrent,
		maxWait:       maxWait,
		permits:       make(chan struct{}, maxConcurrent),
	}
}

// release is returned by Acquire; callers must invoke it on every exit
// path via defer so a panic still releases the permit.
type release func()

// Acquire blocks until a permit is available or maxWait elapses. On
// success it returns a release func that must be deferred immediately.
func (bh *Bulkhead) Acquire() (release, error) {
	select {
	case bh.permits <- struct{}{}:
		atomic.AddInt64(&bh.inUse, 1)
		return func() {
			<-bh.permits
			atomic.AddInt64(&bh.inUse, -1)
		}, nil
	case <-time.After(bh.maxWait):
		return func() {}, apierr.BulkheadFull("bulkhead " + bh.name + " is full")
	}
}

// InUse returns the live in-use gauge value.
func (bh *Bulkhead) InUse() int64 { return atomic.LoadInt64(&bh.inUse) }

// MaxConcurrent returns the configured ceiling.
func (bh *Bulkhead) MaxConcurrent() int { return bh.maxConcurrent }

type BulkheadSnapshot struct {
	Name          string `json:"name"`
	InUse         int64  `json:"in_use"`
	MaxConcurrent int    `json:"max_concurrent"`
}

func (bh *Bulkhead) Snapshot() BulkheadSnapshot {
	return BulkheadSnapshot{Name: bh.name, InUse: bh.InUse(), MaxConcurrent: bh.maxConcurrent}
}
