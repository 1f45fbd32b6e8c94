package reconcile

import (
	"testing"
	"time"

	"tracknote/internal/domain"
)

func buyLimit(instrument string, qty, limit float64) *domain.Order {
	return &domain.Order{
		Instrument: instrument,
		Side:       domain.SideBuy,
		Kind:       domain.KindLimit,
		Quantity:   qty,
		LimitPrice: limit,
	}
}

func TestOrdersMatchExactFields(t *testing.T) {
	a := buyLimit("AAPL", 100, 185.50)
	b := buyLimit("AAPL", 100, 185.50)

	if !OrdersMatch(a, b) {
		t.Error("identical orders should match")
	}
	if !OrdersMatch(b, a) {
		t.Error("matching should be symmetric")
	}

	c := buyLimit("AAPL", 100, 185.51)
	if OrdersMatch(a, c) {
		t.Error("different limit price should not match")
	}
	d := buyLimit("AAPL", 99, 185.50)
	if OrdersMatch(a, d) {
		t.Error("different quantity should not match")
	}
	e := buyLimit("MSFT", 100, 185.50)
	if OrdersMatch(a, e) {
		t.Error("different instrument should not match")
	}
	f := buyLimit("AAPL", 100, 185.50)
	f.Side = domain.SideSell
	if OrdersMatch(a, f) {
		t.Error("different side should not match")
	}
}

func TestOrdersMatchQuantityFallback(t *testing.T) {
	a := &domain.Order{Instrument: "AAPL", Side: domain.SideBuy, Kind: domain.KindLimit, TotalQuantity: 100, LimitPrice: 185.50}
	b := &domain.Order{Instrument: "AAPL", Side: domain.SideBuy, Kind: domain.KindLimit, Shares: 100, LimitPrice: 185.50}
	if !OrdersMatch(a, b) {
		t.Error("orders with equal effective quantity via fallback fields should match")
	}
}

func TestOrdersMatchMarketNoPrices(t *testing.T) {
	a := &domain.Order{Instrument: "AAPL", Side: domain.SideBuy, Kind: domain.KindMarket, Quantity: 10}
	b := &domain.Order{Instrument: "AAPL", Side: domain.SideBuy, Kind: domain.KindMarket, Quantity: 10}
	if !OrdersMatch(a, b) {
		t.Error("market orders with no prices should match")
	}
}

func TestMatchAccounting(t *testing.T) {
	source := []*domain.Order{
		buyLimit("AAPL", 100, 185.50),
		buyLimit("MSFT", 50, 400.00),
		buyLimit("TSLA", 25, 250.00),
	}
	target := []*domain.Order{
		buyLimit("MSFT", 50, 400.00),
		buyLimit("AAPL", 100, 185.50),
	}

	res := Match(source, target)

	if got := len(res.Matches) + len(res.UnmatchedSource); got != len(source) {
		t.Errorf("matches+unmatchedSource = %d, want %d", got, len(source))
	}
	if got := len(res.Matches) + len(res.UnmatchedTarget); got != len(target) {
		t.Errorf("matches+unmatchedTarget = %d, want %d", got, len(target))
	}
	if len(res.Matches) != 2 {
		t.Fatalf("got %d matches, want 2", len(res.Matches))
	}
	if len(res.UnmatchedSource) != 1 || res.UnmatchedSource[0].Instrument != "TSLA" {
		t.Errorf("unexpected unmatched source: %+v", res.UnmatchedSource)
	}
}

func TestMatchConsumesEachTargetOnce(t *testing.T) {
	// Two identical feed orders against a single stored order: only
	// the first can claim it.
	source := []*domain.Order{
		buyLimit("AAPL", 100, 185.50),
		buyLimit("AAPL", 100, 185.50),
	}
	target := []*domain.Order{
		buyLimit("AAPL", 100, 185.50),
	}

	res := Match(source, target)

	if len(res.Matches) != 1 {
		t.Fatalf("got %d matches, want 1", len(res.Matches))
	}
	if len(res.UnmatchedSource) != 1 {
		t.Errorf("got %d unmatched source, want 1", len(res.UnmatchedSource))
	}
	if len(res.UnmatchedTarget) != 0 {
		t.Errorf("got %d unmatched target, want 0", len(res.UnmatchedTarget))
	}
}

func TestMatchGreedyFirstTarget(t *testing.T) {
	t1 := buyLimit("AAPL", 100, 185.50)
	t1.Identity = "first"
	t2 := buyLimit("AAPL", 100, 185.50)
	t2.Identity = "second"

	res := Match([]*domain.Order{buyLimit("AAPL", 100, 185.50)}, []*domain.Order{t1, t2})

	if len(res.Matches) != 1 {
		t.Fatalf("got %d matches, want 1", len(res.Matches))
	}
	if res.Matches[0].Target.Identity != "first" {
		t.Errorf("greedy match picked %q, want the first eligible target", res.Matches[0].Target.Identity)
	}
}

func TestMergeOrderDataOverlaysTracking(t *testing.T) {
	feed := buyLimit("AAPL", 100, 185.50)
	feed.BrokerOrderID = "broker-42"
	feed.Status = "Filled"

	stored := buyLimit("AAPL", 100, 185.50)
	stored.Identity = "TN-AAPL-AB12CD34"
	stored.PersistedID = "row-7"
	stored.IsMainOrder = true
	stored.ParentIdentity = ""
	stored.SubOrderIdentities = []string{"TN-AAPL-11111111"}
	stored.Direction = domain.DirectionLong
	stored.State = domain.StatePreorder
	stored.ReasonData = "breakout setup"
	stored.SavedAt = time.UnixMilli(1710079200000)

	merged := MergeOrderData(feed, stored)

	if merged.Identity != "TN-AAPL-AB12CD34" {
		t.Errorf("identity = %q", merged.Identity)
	}
	if merged.PersistedID != "row-7" {
		t.Errorf("persisted id = %q", merged.PersistedID)
	}
	if merged.Status != "Filled" {
		t.Errorf("status should come from the feed order, got %q", merged.Status)
	}
	if !merged.IsMainOrder || merged.Direction != domain.DirectionLong || merged.State != domain.StatePreorder {
		t.Errorf("tracking fields not carried over: %+v", merged)
	}
	if !merged.ReasonCompleted {
		t.Error("reasonCompleted should be derived from non-empty reason data")
	}
	if len(merged.SubOrderIdentities) != 1 || merged.SubOrderIdentities[0] != "TN-AAPL-11111111" {
		t.Errorf("sub order identities = %v", merged.SubOrderIdentities)
	}

	// Inputs must not be mutated.
	if feed.Identity != "" || feed.IsMainOrder {
		t.Error("MergeOrderData mutated the feed order")
	}
	merged.SubOrderIdentities[0] = "changed"
	if stored.SubOrderIdentities[0] != "TN-AAPL-11111111" {
		t.Error("merged order shares the stored order's sub-order slice")
	}
}

func TestMergeOrderDataIdentityFallback(t *testing.T) {
	feed := buyLimit("AAPL", 100, 185.50)
	stored := buyLimit("AAPL", 100, 185.50)
	stored.BrokerOrderID = "broker-9"

	merged := MergeOrderData(feed, stored)
	if merged.Identity != "broker-9" {
		t.Errorf("identity = %q, want broker order id fallback", merged.Identity)
	}
}
