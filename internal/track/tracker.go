package track

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"tracknote/internal/domain"
	"tracknote/internal/store"
)

// Tracker runs the full holdings pass: detect newly filled preorders, then
// merge each into its instrument's position. Merges for one instrument are
// serialized through a per-instrument lock so concurrent passes cannot
// double-merge.
type Tracker struct {
	detector *ExecutedTradeDetector
	merger   *TradeMerger

	mu    sync.Mutex
	locks map[string]*sync.Mutex

	log *slog.Logger
}

// NewTracker creates a tracker over the given store.
func NewTracker(s store.OrderStore) *Tracker {
	return &Tracker{
		detector: NewExecutedTradeDetector(s),
		merger:   NewTradeMerger(s),
		locks:    make(map[string]*sync.Mutex),
		log:      slog.Default().With("component", "tracker"),
	}
}

// Detector exposes the underlying detector, mainly so callers can pin its
// clock.
func (t *Tracker) Detector() *ExecutedTradeDetector { return t.detector }

// TrackResult summarizes one holdings pass.
type TrackResult struct {
	Executed int    `json:"executed"`
	Merged   int    `json:"merged"`
	Success  bool   `json:"success"`
	Message  string `json:"message"`

	// Positions holds the merged positions created during the pass.
	Positions []*domain.MergedPosition `json:"positions,omitempty"`
}

// ProcessHoldings detects executed trades against the given holdings and
// merges each newly bought order. Merge failures are collected rather than
// aborting the pass; Success is false only when every attempted merge
// failed.
func (t *Tracker) ProcessHoldings(ctx context.Context, holdings []domain.Holding) TrackResult {
	executed := t.detector.DetectExecutedTrades(ctx, holdings)
	if len(executed) == 0 {
		return TrackResult{Success: true, Message: "no newly executed trades"}
	}

	merged, failed := 0, 0
	var positions []*domain.MergedPosition
	for _, o := range executed {
		holding := domain.FindHolding(holdings, o.Instrument)

		outcome, err := t.processOne(ctx, o, holding)
		if err != nil {
			failed++
			t.log.Error("merge failed", "instrument", o.Instrument, "err", err)
			continue
		}
		if outcome.Merged {
			merged++
			positions = append(positions, outcome.Position)
		}
	}

	res := TrackResult{
		Executed:  len(executed),
		Merged:    merged,
		Success:   failed < len(executed),
		Message:   fmt.Sprintf("%d executed, %d merged", len(executed), merged),
		Positions: positions,
	}
	if failed > 0 {
		res.Message = fmt.Sprintf("%s, %d merge failures", res.Message, failed)
	}
	return res
}

// processOne runs a single merge under the instrument's lock.
func (t *Tracker) processOne(ctx context.Context, o *domain.Order, holding *domain.Holding) (MergeOutcome, error) {
	lock := t.instrumentLock(o.Instrument)
	lock.Lock()
	defer lock.Unlock()

	return t.merger.ProcessNewBought(ctx, o, holding)
}

func (t *Tracker) instrumentLock(instrument string) *sync.Mutex {
	t.mu.Lock()
	defer t.mu.Unlock()

	lock, ok := t.locks[instrument]
	if !ok {
		lock = &sync.Mutex{}
		t.locks[instrument] = lock
	}
	return lock
}
