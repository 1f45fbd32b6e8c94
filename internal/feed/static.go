package feed

import (
	"context"
	"sync"

	"tracknote/internal/domain"
)

// Compile-time interface check.
var _ BrokerFeed = (*StaticFeed)(nil)

// StaticFeed implements BrokerFeed over an in-memory snapshot. It backs
// dry-run reconciliation and tests, where the broker view is fixed up front
// instead of fetched.
type StaticFeed struct {
	mu       sync.RWMutex
	orders   []*domain.Order
	holdings []domain.Holding
}

// NewStaticFeed creates a feed serving the given snapshot.
func NewStaticFeed(orders []*domain.Order, holdings []domain.Holding) *StaticFeed {
	return &StaticFeed{orders: orders, holdings: holdings}
}

// Name returns the feed identifier.
func (f *StaticFeed) Name() string { return "static" }

// SetSnapshot replaces the feed's orders and holdings.
func (f *StaticFeed) SetSnapshot(orders []*domain.Order, holdings []domain.Holding) {
	f.mu.Lock()
	f.orders = orders
	f.holdings = holdings
	f.mu.Unlock()
}

// CurrentOrders returns copies of the snapshot orders, so callers may
// annotate them without mutating the feed.
func (f *StaticFeed) CurrentOrders(_ context.Context) ([]*domain.Order, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	orders := make([]*domain.Order, 0, len(f.orders))
	for _, o := range f.orders {
		cp := *o
		orders = append(orders, &cp)
	}
	return orders, nil
}

// CurrentHoldings returns a copy of the snapshot holdings.
func (f *StaticFeed) CurrentHoldings(_ context.Context) ([]domain.Holding, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	holdings := make([]domain.Holding, len(f.holdings))
	copy(holdings, f.holdings)
	return holdings, nil
}
