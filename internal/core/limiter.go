package core

// limiter.go bounds the number of runs processed at once.
//
// Slots are a buffered channel. A caller that cannot get a slot waits up to
// maxWait and then fails with ErrTooManyRuns. WaitForDrain supports graceful
// shutdown by blocking until every slot is released.

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

// ErrTooManyRuns is returned when every run slot stays busy for the whole wait.
var ErrTooManyRuns = errors.New("too many concurrent runs, please try again later")

const (
	// DefaultMaxConcurrentRuns is the default number of parallel runs.
	DefaultMaxConcurrentRuns = 4
	// DefaultMaxWait is how long Acquire waits for a slot.
	DefaultMaxWait = 30 * time.Second
)

// Limiter is a counting semaphore for runs.
type Limiter struct {
	slots   chan struct{}
	maxWait time.Duration

	active   atomic.Int64
	rejected atomic.Int64
	done     atomic.Int64
}

// NewLimiter allows at most maxConcurrent runs; non-positive arguments use the defaults.
func NewLimiter(maxConcurrent int, maxWait time.Duration) *Limiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentRuns
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWait
	}
	return &Limiter{
		slots:   make(chan struct{}, maxConcurrent),
		maxWait: maxWait,
	}
}

// Acquire takes a slot, waiting at most maxWait. Callers must Release it.
func (l *Limiter) Acquire(ctx context.Context) error {
	timer := time.NewTimer(l.maxWait)
	defer timer.Stop()

	select {
	case l.slots <- struct{}{}:
		l.active.Add(1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		l.rejected.Add(1)
		return ErrTooManyRuns
	}
}

// TryAcquire takes a slot only if one is free.
func (l *Limiter) TryAcquire() bool {
	select {
	case l.slots <- struct{}{}:
		l.active.Add(1)
		return true
	default:
		l.rejected.Add(1)
		return false
	}
}

// Release returns a slot taken by Acquire or TryAcquire.
func (l *Limiter) Release() {
	l.active.Add(-1)
	l.done.Add(1)
	<-l.slots
}

// WaitForDrain blocks until no run holds a slot or ctx ends.
func (l *Limiter) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for l.active.Load() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

// LimiterStatus is a point-in-time view of a Limiter.
type LimiterStatus struct {
	Active        int   `json:"active"`
	Available     int   `json:"available"`
	MaxConcurrent int   `json:"max_concurrent"`
	Completed     int64 `json:"completed"`
	Rejected      int64 `json:"rejected"`
}

// Status reports the limiter's counters.
func (l *Limiter) Status() LimiterStatus {
	return LimiterStatus{
		Active:        int(l.active.Load()),
		Available:     cap(l.slots) - len(l.slots),
		MaxConcurrent: cap(l.slots),
		Completed:     l.done.Load(),
		Rejected:      l.rejected.Load(),
	}
}
