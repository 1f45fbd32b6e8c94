// Package feed defines the broker feed interface and provides
// implementations for reading current orders and holdings from a brokerage.
package feed

import (
	"context"

	"tracknote/internal/domain"
)

// BrokerFeed abstracts the broker's live view: the open orders and current
// holdings the reconciliation engine compares against its persisted records.
type BrokerFeed interface {
	// Name returns the feed identifier (e.g. "alpaca", "static").
	Name() string

	// CurrentOrders returns the broker's open orders.
	CurrentOrders(ctx context.Context) ([]*domain.Order, error)

	// CurrentHoldings returns the broker's current positions. Short
	// positions are reported with negative share counts.
	CurrentHoldings(ctx context.Context) ([]domain.Holding, error)
}
