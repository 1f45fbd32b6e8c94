package util

import (
	"sync"
	"time"
)

// FetchGuard combines a minimum inter-call interval with a single-flight
// check for one kind of fetch. A caller that is suppressed — either because
// the previous call was too recent or because another fetch of the same kind
// is still in flight — receives false from Acquire and is expected to degrade
// to an empty result rather than block. These are best-effort rate limits,
// not correctness guarantees.
type FetchGuard struct {
	interval time.Duration
	now      func() time.Time

	mu       sync.Mutex
	lastCall time.Time
	inFlight bool
}

// NewFetchGuard creates a guard with the given minimum interval between
// fetches.
func NewFetchGuard(interval time.Duration) *FetchGuard {
	return &FetchGuard{interval: interval, now: time.Now}
}

// SetClock replaces the guard's time source. Tests use this to drive the
// interval check deterministically.
func (g *FetchGuard) SetClock(now func() time.Time) {
	g.mu.Lock()
	g.now = now
	g.mu.Unlock()
}

// Acquire attempts to start a fetch. It returns false when the previous call
// was less than the interval ago, or when another fetch is already running.
// On success the caller must call Release when the fetch completes.
func (g *FetchGuard) Acquire() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.inFlight {
		return false
	}
	now := g.now()
	if !g.lastCall.IsZero() && now.Sub(g.lastCall) < g.interval {
		return false
	}
	g.lastCall = now
	g.inFlight = true
	return true
}

// Release marks the in-flight fetch as finished.
func (g *FetchGuard) Release() {
	g.mu.Lock()
	g.inFlight = false
	g.mu.Unlock()
}
