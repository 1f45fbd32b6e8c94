package reconcile

import (
	"tracknote/internal/domain"
)

// MatchPair is a feed order paired with the persisted record it matched.
type MatchPair struct {
	Source *domain.Order // broker feed
	Target *domain.Order // persisted store
}

// MatchResult is the outcome of pairing two order sets.
type MatchResult struct {
	Matches         []MatchPair
	UnmatchedSource []*domain.Order
	UnmatchedTarget []*domain.Order
}

// OrdersMatch reports whether two orders describe the same trade. Instrument,
// side, kind, and quantity must be exactly equal, and each price must be equal
// or absent on both sides. Unlike the fill-detection tolerance, matching is
// exact: both records describe the same submitted order, so their numbers
// should be identical.
func OrdersMatch(a, b *domain.Order) bool {
	if a == nil || b == nil {
		return false
	}
	return a.Instrument == b.Instrument &&
		a.Side == b.Side &&
		a.Kind == b.Kind &&
		domain.QuantityOf(a) == domain.QuantityOf(b) &&
		(a.LimitPrice == b.LimitPrice || (a.LimitPrice == 0 && b.LimitPrice == 0)) &&
		(a.StopPrice == b.StopPrice || (a.StopPrice == 0 && b.StopPrice == 0))
}

// Match pairs source (feed) orders with target (persisted) orders using a
// greedy single pass: each source takes the first unconsumed target that
// satisfies OrdersMatch. The result is order-dependent under ambiguity —
// exact-equality collisions among live orders are rare enough that no
// bipartite optimization is attempted.
func Match(source, target []*domain.Order) MatchResult {
	result := MatchResult{}
	consumed := make([]bool, len(target))

	for _, src := range source {
		matched := false
		for i, tgt := range target {
			if consumed[i] {
				continue
			}
			if OrdersMatch(src, tgt) {
				result.Matches = append(result.Matches, MatchPair{Source: src, Target: tgt})
				consumed[i] = true
				matched = true
				break
			}
		}
		if !matched {
			result.UnmatchedSource = append(result.UnmatchedSource, src)
		}
	}

	for i, tgt := range target {
		if !consumed[i] {
			result.UnmatchedTarget = append(result.UnmatchedTarget, tgt)
		}
	}

	return result
}

// MergeOrderData combines a feed order with its persisted record: the feed
// order is the structural base (live status, prices, quantities), overlaid
// with the identity, annotations, classification flags, and relationships the
// store owns. Pure function; neither input is modified.
func MergeOrderData(feedOrder, storedOrder *domain.Order) *domain.Order {
	if feedOrder == nil {
		return storedOrder
	}
	if storedOrder == nil {
		return feedOrder
	}

	merged := *feedOrder

	merged.Identity = storedOrder.Identity
	if merged.Identity == "" {
		merged.Identity = storedOrder.BrokerOrderID
	}
	merged.PersistedID = storedOrder.PersistedID

	merged.CatalystData = storedOrder.CatalystData
	merged.ReasonData = storedOrder.ReasonData
	merged.ReasonCompleted = storedOrder.ReasonData != ""

	merged.IsMainOrder = storedOrder.IsMainOrder
	merged.SubOrderIdentities = append([]string(nil), storedOrder.SubOrderIdentities...)
	merged.ParentIdentity = storedOrder.ParentIdentity
	merged.Direction = storedOrder.Direction

	merged.State = storedOrder.State
	merged.SavedAt = storedOrder.SavedAt

	return &merged
}
