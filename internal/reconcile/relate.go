package reconcile

import (
	"tracknote/internal/domain"
)

// relationKey groups orders that belong to the same bracket: one instrument,
// one position intent (new vs exit).
type relationKey struct {
	instrument string
	isExit     bool
}

// BuildRelationships links classified orders into parent/sub-order groups in
// place. Within each (instrument, exit-flag) group the main order receives
// the identities of its sub-orders, and each sub-order points back at the
// main order. Groups without an identified main order are left unlinked — no
// relationship is forced.
func BuildRelationships(orders []*domain.Order) {
	groups := make(map[relationKey][]*domain.Order)
	for _, o := range orders {
		key := relationKey{instrument: o.Instrument, isExit: o.IsExitPositionOrder}
		groups[key] = append(groups[key], o)
	}

	for _, group := range groups {
		var main *domain.Order
		for _, o := range group {
			if o.IsMainOrder {
				main = o
				break
			}
		}
		if main == nil {
			continue
		}

		mainID := linkIdentity(main)
		var subIDs []string
		for _, o := range group {
			if o.IsMainOrder || sameOrder(o, main) {
				continue
			}
			id := linkIdentity(o)
			if id == "" || id == mainID {
				continue
			}
			subIDs = append(subIDs, id)
			o.ParentIdentity = mainID
		}
		main.SubOrderIdentities = subIDs
	}
}

// linkIdentity returns the ID used in relationship references: the stable
// identity when assigned, otherwise the broker's order ID.
func linkIdentity(o *domain.Order) string {
	if o.Identity != "" {
		return o.Identity
	}
	return o.BrokerOrderID
}
