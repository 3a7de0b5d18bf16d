package broadcast

import (
	"sync"
	"time"
)

// FailureGuard is a sliding-window circuit breaker consulted before each
// automatic skip-to-next after a playback failure. When tripCount failures
// land within the trailing window the guard trips and the caller must stop
// auto-skipping and surface the error instead. Reset on successful playback
// start or on an explicit channel switch.
type FailureGuard struct {
	windowMs  int64
	tripCount int

	mu       sync.Mutex
	failures []int64
	tripped  bool
	nowFn    func() int64
}

// NewFailureGuard creates a failure guard with the given window and trip count
func NewFailureGuard(window time.Duration, tripCount int) *FailureGuard {
	return &FailureGuard{
		windowMs:  window.Milliseconds(),
		tripCount: tripCount,
		nowFn:     func() int64 { return time.Now().UnixMilli() },
	}
}

// RecordFailure records a failure at the current instant and returns true if
// the guard is tripped afterwards
func (g *FailureGuard) RecordFailure() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.nowFn()
	g.failures = append(g.failures, now)
	g.pruneLocked(now)

	if len(g.failures) >= g.tripCount {
		g.tripped = true
	}
	return g.tripped
}

// Reset clears the failure window and the tripped flag
func (g *FailureGuard) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failures = nil
	g.tripped = false
}

// Tripped returns true if the guard has tripped
func (g *FailureGuard) Tripped() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.tripped
}

// Failures returns the number of failures within the trailing window
func (g *FailureGuard) Failures() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.pruneLocked(g.nowFn())
	return len(g.failures)
}

// pruneLocked drops failures older than the window (must hold lock)
func (g *FailureGuard) pruneLocked(now int64) {
	cutoff := now - g.windowMs
	kept := g.failures[:0]
	for _, ts := range g.failures {
		if ts > cutoff {
			kept = append(kept, ts)
		}
	}
	g.failures = kept
}
