// Package store persists order records and merged positions. Two
// implementations exist: SQLiteStore for a local embedded database and
// HTTPStore for a remote journal service; both satisfy OrderStore. A
// ParquetJournal sits beside them for append-style pass reporting.
package store

import (
	"context"
	"time"

	"tracknote/internal/domain"
)

// StateUpdate carries the optional fields written alongside a lifecycle
// transition. Zero values are left untouched in the stored record.
type StateUpdate struct {
	ExecutedAt time.Time
	MergedAt   time.Time
	MergeToID  string
	EntryPrice float64
}

// MergeRequest asks the store to consolidate bought orders into a single
// merged position. The component orders must share one instrument.
type MergeRequest struct {
	Instrument string
	Components []*domain.Order

	// Holding, when present, supplies the broker's view of the combined
	// position; its average price is preferred over the component-weighted
	// price when both are known.
	Holding *domain.Holding
}

// OrderStore is the persistence contract for order records.
//
// All methods return TransportError for connectivity or backend failures and
// ValidationError for records that cannot be keyed. Callers on the read path
// are expected to degrade to empty results; write failures propagate.
type OrderStore interface {
	// FetchAll returns every stored order record.
	FetchAll(ctx context.Context) ([]*domain.Order, error)

	// FetchByState returns all orders in the given lifecycle state.
	FetchByState(ctx context.Context, state domain.LifecycleState) ([]*domain.Order, error)

	// FetchByInstrumentState returns orders for one instrument in the given
	// state.
	FetchByInstrumentState(ctx context.Context, instrument string, state domain.LifecycleState) ([]*domain.Order, error)

	// Upsert inserts the order, or updates the existing record sharing its
	// identity. Returns the store-assigned persisted ID.
	Upsert(ctx context.Context, order *domain.Order) (string, error)

	// UpdateState transitions the order keyed by id (persisted ID or
	// identity) to the given state, applying extra in the same write.
	// Backward transitions are rejected.
	UpdateState(ctx context.Context, id string, to domain.LifecycleState, extra StateUpdate) error

	// Merge consolidates the request's component orders into one merged
	// position in a single atomic write: the position is created and every
	// component is moved to the merged state with a back-reference.
	// Components already merged are skipped, making retries idempotent.
	Merge(ctx context.Context, req MergeRequest) (*domain.MergedPosition, error)

	// MergedPositions returns the stored merged positions, newest first.
	MergedPositions(ctx context.Context) ([]*domain.MergedPosition, error)

	// Close releases the store's resources.
	Close() error
}

// CombineComponents computes the consolidated quantity and weighted average
// entry price for a set of component orders. Orders without a usable price
// still contribute quantity; the weighted price is taken over the priced
// subset only.
func CombineComponents(components []*domain.Order) (quantity, weightedPrice float64) {
	var pricedQty, notional float64
	for _, o := range components {
		q := domain.QuantityOf(o)
		quantity += q
		if p := domain.EntryPriceOf(o); p > 0 {
			pricedQty += q
			notional += q * p
		}
	}
	if pricedQty > 0 {
		weightedPrice = notional / pricedQty
	}
	return quantity, weightedPrice
}
