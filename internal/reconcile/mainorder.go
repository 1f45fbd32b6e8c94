package reconcile

import (
	"tracknote/internal/domain"
)

// MainOrderClassifier decides which order in an instrument's bracket group is
// the primary entry order. Entries are always limit orders: for a long
// position the main order is the buy limit, for a short position the sell
// limit; stops and targets use the opposite side or a stop kind.
type MainOrderClassifier struct {
	directions *DirectionResolver
}

// NewMainOrderClassifier creates a classifier backed by the given direction
// resolver.
func NewMainOrderClassifier(directions *DirectionResolver) *MainOrderClassifier {
	return &MainOrderClassifier{directions: directions}
}

// IsMainOrder reports whether order is the main (entry) order among all
// orders for its instrument. A lone order is always main. With multiple
// qualifying limit orders the one with the largest quantity wins; the rest
// are sub-orders even though they match the side/kind rule.
func (c *MainOrderClassifier) IsMainOrder(order *domain.Order, allOrders []*domain.Order) bool {
	group := ordersForInstrument(order.Instrument, allOrders)
	if len(group) <= 1 {
		return true
	}

	direction := c.directions.Resolve(order.Instrument, group)

	// Undetermined direction defaults to long.
	entrySide := domain.SideBuy
	if direction == domain.DirectionShort {
		entrySide = domain.SideSell
	}

	if order.Side != entrySide || order.Kind != domain.KindLimit {
		return false
	}

	// Tie-break among qualifying limit orders: largest quantity is the entry.
	var candidates []*domain.Order
	for _, o := range group {
		if o.Side == entrySide && o.Kind == domain.KindLimit {
			candidates = append(candidates, o)
		}
	}
	if len(candidates) <= 1 {
		return true
	}

	main := candidates[0]
	for _, o := range candidates[1:] {
		if domain.QuantityOf(o) > domain.QuantityOf(main) {
			main = o
		}
	}
	return sameOrder(order, main)
}

// ordersForInstrument filters the group sharing the order's instrument.
func ordersForInstrument(instrument string, orders []*domain.Order) []*domain.Order {
	var group []*domain.Order
	for _, o := range orders {
		if o.Instrument == instrument {
			group = append(group, o)
		}
	}
	return group
}

// sameOrder compares two orders by the strongest available ID, falling back
// to pointer identity for orders that carry no ID yet.
func sameOrder(a, b *domain.Order) bool {
	if a == b {
		return true
	}
	idA, idB := domain.IdentityOf(a), domain.IdentityOf(b)
	return idA != "" && idA == idB
}
