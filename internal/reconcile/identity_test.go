package reconcile

import (
	"strings"
	"testing"
	"time"

	"tracknote/internal/domain"
)

func TestAssignIdempotentWithExistingIdentity(t *testing.T) {
	a := NewAssigner()
	o := &domain.Order{Instrument: "AAPL", Identity: "TN-AAPL-DEADBEEF"}

	if got := a.Assign(o); got != "TN-AAPL-DEADBEEF" {
		t.Errorf("Assign on order with identity = %q, want existing identity", got)
	}
	if o.Identity != "TN-AAPL-DEADBEEF" {
		t.Errorf("identity mutated to %q", o.Identity)
	}
}

func TestAssignFormat(t *testing.T) {
	a := NewAssigner()
	a.SetClock(func() time.Time { return time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC) })

	o := &domain.Order{
		Instrument: "TSLA",
		Side:       domain.SideBuy,
		Kind:       domain.KindLimit,
		Quantity:   100,
		LimitPrice: 250.50,
		Status:     "Submitted",
	}
	id := a.Assign(o)

	if !strings.HasPrefix(id, "TN-TSLA-") {
		t.Fatalf("identity %q missing TN-{instrument}- prefix", id)
	}
	digest := strings.TrimPrefix(id, "TN-TSLA-")
	if len(digest) == 0 || len(digest) > 8 {
		t.Errorf("digest %q should be 1-8 characters", digest)
	}
	if digest != strings.ToUpper(digest) {
		t.Errorf("digest %q should be upper-cased", digest)
	}
	if o.Identity != id {
		t.Errorf("identity not recorded on order: %q vs %q", o.Identity, id)
	}
}

func TestAssignTimestampedUniqueness(t *testing.T) {
	a := NewAssigner()
	ts := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)
	a.SetClock(func() time.Time {
		ts = ts.Add(time.Millisecond)
		return ts
	})

	mk := func() *domain.Order {
		return &domain.Order{
			Instrument: "NVDA",
			Side:       domain.SideBuy,
			Kind:       domain.KindLimit,
			Quantity:   50,
			LimitPrice: 900,
		}
	}

	id1 := a.Assign(mk())
	id2 := a.Assign(mk())
	if id1 == id2 {
		t.Errorf("identical orders at different times should get distinct identities, both %q", id1)
	}
}

func TestSimpleHashStable(t *testing.T) {
	if simpleHash("abc") != simpleHash("abc") {
		t.Error("simpleHash should be deterministic")
	}
	if simpleHash("") != "0" {
		t.Errorf("simpleHash(\"\") = %q, want \"0\"", simpleHash(""))
	}
	if h := simpleHash("AAPL-buy-limit-100-185.5-0-Submitted1710079200000"); h != strings.ToUpper(h) {
		t.Errorf("digest %q not upper-cased", h)
	}
}
