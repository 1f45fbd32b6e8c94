package reconcile

import (
	"sync"

	"tracknote/internal/domain"
)

// DirectionResolver is the single authority for per-instrument position
// direction. Callers that know the direction (e.g. from the persisted store)
// register a hint; otherwise the direction is inferred from the shape of the
// order group. Each engine owns one resolver instance — there is no process
// global.
type DirectionResolver struct {
	mu    sync.RWMutex
	hints map[string]domain.Direction
}

// NewDirectionResolver creates an empty resolver.
func NewDirectionResolver() *DirectionResolver {
	return &DirectionResolver{hints: make(map[string]domain.Direction)}
}

// SetHint records an authoritative direction for an instrument.
func (r *DirectionResolver) SetHint(instrument string, d domain.Direction) {
	r.mu.Lock()
	r.hints[instrument] = d
	r.mu.Unlock()
}

// ClearHint removes a recorded direction.
func (r *DirectionResolver) ClearHint(instrument string) {
	r.mu.Lock()
	delete(r.hints, instrument)
	r.mu.Unlock()
}

// Hint returns the recorded direction for an instrument, or DirectionUnknown.
func (r *DirectionResolver) Hint(instrument string) domain.Direction {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.hints[instrument]
}

// Resolve determines the position direction for an instrument's order group.
// An explicit hint wins. Otherwise the group shape decides: exactly one buy
// with at least one sell is a long position (entry plus target/stop); exactly
// one sell with at least one buy is short. Anything else is undetermined.
func (r *DirectionResolver) Resolve(instrument string, group []*domain.Order) domain.Direction {
	if hint := r.Hint(instrument); hint != domain.DirectionUnknown {
		return hint
	}

	buys, sells := 0, 0
	for _, o := range group {
		if o.Side == domain.SideBuy {
			buys++
		} else if o.Side.IsSell() {
			sells++
		}
	}

	switch {
	case buys == 1 && sells >= 1:
		return domain.DirectionLong
	case sells == 1 && buys >= 1:
		return domain.DirectionShort
	}
	return domain.DirectionUnknown
}
