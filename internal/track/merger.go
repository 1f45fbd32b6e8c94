package track

import (
	"context"
	"fmt"
	"log/slog"

	"tracknote/internal/domain"
	"tracknote/internal/store"
)

// TradeMerger consolidates a newly bought order with the instrument's other
// bought orders into one merged position.
type TradeMerger struct {
	store store.OrderStore
	log   *slog.Logger
}

// NewTradeMerger creates a merger over the given store.
func NewTradeMerger(s store.OrderStore) *TradeMerger {
	return &TradeMerger{
		store: s,
		log:   slog.Default().With("component", "merger"),
	}
}

// MergeOutcome reports what ProcessNewBought did. Merged is false when the
// order had no siblings to merge with, which is a normal terminal outcome,
// not an error.
type MergeOutcome struct {
	Merged   bool
	Position *domain.MergedPosition
	Message  string
}

// ProcessNewBought merges the newly bought order with any other bought
// orders for its instrument. The store performs the consolidation
// atomically; the holding, when supplied, contributes the broker's average
// price.
func (m *TradeMerger) ProcessNewBought(ctx context.Context, newOrder *domain.Order, holding *domain.Holding) (MergeOutcome, error) {
	if newOrder.Instrument == "" {
		return MergeOutcome{}, domain.NewValidationError("instrument", "bought order has no instrument")
	}
	newID := domain.IdentityOf(newOrder)
	if newID == "" {
		return MergeOutcome{}, domain.NewValidationError("identity", "bought order has no usable id")
	}

	bought, err := m.store.FetchByInstrumentState(ctx, newOrder.Instrument, domain.StateBought)
	if err != nil {
		return MergeOutcome{}, fmt.Errorf("fetching bought orders for %s: %w", newOrder.Instrument, err)
	}

	// Everything bought for the instrument except the new order itself.
	var siblings []*domain.Order
	for _, o := range bought {
		if domain.IdentityOf(o) == newID {
			continue
		}
		siblings = append(siblings, o)
	}
	if len(siblings) == 0 {
		return MergeOutcome{Message: "no other bought orders to merge with"}, nil
	}

	components := append(siblings, newOrder)
	pos, err := m.store.Merge(ctx, store.MergeRequest{
		Instrument: newOrder.Instrument,
		Components: components,
		Holding:    holding,
	})
	if err != nil {
		return MergeOutcome{}, fmt.Errorf("merging %s orders: %w", newOrder.Instrument, err)
	}

	m.log.Info("orders merged",
		"instrument", pos.Instrument,
		"mergedId", pos.ID,
		"components", len(pos.ComponentIdentities),
		"quantity", pos.CombinedQuantity,
		"price", pos.WeightedEntryPrice,
	)
	return MergeOutcome{
		Merged:   true,
		Position: pos,
		Message:  fmt.Sprintf("merged %d orders into %s", len(pos.ComponentIdentities), pos.ID),
	}, nil
}
