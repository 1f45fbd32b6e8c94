// Package track follows persisted orders through their lifecycle: detecting
// fills by comparing holdings against preorders, and consolidating bought
// orders into merged positions.
package track

import (
	"context"
	"log/slog"
	"time"

	"tracknote/internal/domain"
	"tracknote/internal/store"
)

// ExecutedTradeDetector finds preorders whose fills have shown up in the
// broker's holdings and moves them to the bought state.
type ExecutedTradeDetector struct {
	store store.OrderStore
	now   func() time.Time
	log   *slog.Logger
}

// NewExecutedTradeDetector creates a detector over the given store.
func NewExecutedTradeDetector(s store.OrderStore) *ExecutedTradeDetector {
	return &ExecutedTradeDetector{
		store: s,
		now:   time.Now,
		log:   slog.Default().With("component", "detector"),
	}
}

// SetClock replaces the time source used for executed timestamps.
func (d *ExecutedTradeDetector) SetClock(now func() time.Time) {
	d.now = now
}

// DetectExecutedTrades compares current holdings against stored preorders
// and transitions filled ones to bought. An order counts as filled when the
// holding covers at least 99% of the already-bought quantity plus the
// preorder's quantity and the holding's direction agrees with the order's.
//
// Store read failures degrade to an empty result; a failed transition is
// logged and skipped so one bad record cannot stall the rest.
func (d *ExecutedTradeDetector) DetectExecutedTrades(ctx context.Context, holdings []domain.Holding) []*domain.Order {
	preorders, err := d.store.FetchByState(ctx, domain.StatePreorder)
	if err != nil {
		d.log.Warn("fetching preorders failed, skipping detection", "err", err)
		return nil
	}

	var executed []*domain.Order
	for _, o := range preorders {
		holding := domain.FindHolding(holdings, o.Instrument)
		if holding == nil {
			continue
		}
		if !d.orderFilled(ctx, o, holding) {
			continue
		}

		id := domain.IdentityOf(o)
		if id == "" {
			d.log.Warn("preorder has no usable id, skipping", "instrument", o.Instrument)
			continue
		}

		update := store.StateUpdate{ExecutedAt: d.now()}
		if holding.AvgPrice > 0 && o.EntryPrice == 0 {
			update.EntryPrice = holding.AvgPrice
		}
		if err := d.store.UpdateState(ctx, id, domain.StateBought, update); err != nil {
			d.log.Error("marking order bought failed", "id", id, "err", err)
			continue
		}

		o.State = domain.StateBought
		o.ExecutedAt = update.ExecutedAt
		if update.EntryPrice > 0 {
			o.EntryPrice = update.EntryPrice
		}
		executed = append(executed, o)

		d.log.Info("executed trade detected",
			"id", id,
			"instrument", o.Instrument,
			"quantity", domain.QuantityOf(o),
		)
	}
	return executed
}

// orderFilled decides whether the holding evidences a fill of the preorder.
// The holding must cover the quantity already committed to earlier bought
// orders plus this preorder's quantity, so one holding cannot confirm the
// same shares twice.
func (d *ExecutedTradeDetector) orderFilled(ctx context.Context, o *domain.Order, holding *domain.Holding) bool {
	// Direction must agree: a long holding confirms buys, a short holding
	// confirms short entries.
	if holding.Short() != o.InferredShort() {
		return false
	}

	qty := domain.QuantityOf(o)
	if qty <= 0 {
		return false
	}

	expected := d.committedQuantity(ctx, o.Instrument) + qty
	ratio := holding.AbsShares() / expected
	return ratio >= 1-domain.FillTolerance
}

// committedQuantity sums the quantities of orders already bought for the
// instrument. A read failure counts as zero committed shares.
func (d *ExecutedTradeDetector) committedQuantity(ctx context.Context, instrument string) float64 {
	bought, err := d.store.FetchByInstrumentState(ctx, instrument, domain.StateBought)
	if err != nil {
		d.log.Warn("fetching bought orders failed", "instrument", instrument, "err", err)
		return 0
	}

	var total float64
	for _, o := range bought {
		total += domain.QuantityOf(o)
	}
	return total
}
