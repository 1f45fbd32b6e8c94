package domain

import (
	"errors"
	"testing"
)

func TestLifecycleTransitions(t *testing.T) {
	cases := []struct {
		from, to LifecycleState
		want     bool
	}{
		{StatePreorder, StateBought, true},
		{StatePreorder, StateMerged, true},
		{StateBought, StateMerged, true},
		{StateBought, StatePreorder, false},
		{StateMerged, StateBought, false},
		{StateMerged, StatePreorder, false},
		{StatePreorder, StatePreorder, false},
		{LifecycleState("bogus"), StateBought, false},
	}
	for _, c := range cases {
		if got := CanTransition(c.from, c.to); got != c.want {
			t.Errorf("CanTransition(%q, %q) = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

func TestQuantityOfFallbackChain(t *testing.T) {
	// totalQuantity wins when present.
	o := &Order{TotalQuantity: 100, Quantity: 50, Shares: 25}
	if q := QuantityOf(o); q != 100 {
		t.Errorf("QuantityOf with totalQuantity = %v, want 100", q)
	}

	// quantity next.
	o = &Order{Quantity: 50, Shares: 25}
	if q := QuantityOf(o); q != 50 {
		t.Errorf("QuantityOf with quantity = %v, want 50", q)
	}

	// shares last.
	o = &Order{Shares: 25}
	if q := QuantityOf(o); q != 25 {
		t.Errorf("QuantityOf with shares = %v, want 25", q)
	}

	// all absent.
	if q := QuantityOf(&Order{}); q != 0 {
		t.Errorf("QuantityOf of empty order = %v, want 0", q)
	}
}

func TestIdentityOfFallbackChain(t *testing.T) {
	o := &Order{PersistedID: "db-1", Identity: "TN-AAPL-ABC", BrokerOrderID: "7"}
	if id := IdentityOf(o); id != "db-1" {
		t.Errorf("IdentityOf = %q, want persisted ID", id)
	}
	o.PersistedID = ""
	if id := IdentityOf(o); id != "TN-AAPL-ABC" {
		t.Errorf("IdentityOf = %q, want identity", id)
	}
	o.Identity = ""
	if id := IdentityOf(o); id != "7" {
		t.Errorf("IdentityOf = %q, want broker order ID", id)
	}
}

func TestHoldingShort(t *testing.T) {
	long := Holding{Instrument: "AAPL", Shares: 100}
	if long.Short() {
		t.Error("positive shares should not be short")
	}

	short := Holding{Instrument: "TSLA", Shares: -100}
	if !short.Short() {
		t.Error("negative shares should be short")
	}
	if short.AbsShares() != 100 {
		t.Errorf("AbsShares = %v, want 100", short.AbsShares())
	}

	// Explicit override wins over positive shares.
	flagged := Holding{Instrument: "GME", Shares: 100, IsShort: true}
	if !flagged.Short() {
		t.Error("explicit isShort flag should mark holding short")
	}
}

func TestApproxEqual(t *testing.T) {
	if !ApproxEqual(100.0, 100.05) {
		t.Error("100 vs 100.05 should be within 0.001 relative tolerance")
	}
	if ApproxEqual(100.0, 101.0) {
		t.Error("100 vs 101 should exceed tolerance")
	}
	if !ApproxEqual(0, 0) {
		t.Error("zero should equal zero")
	}
	if ApproxEqual(0, 0.5) {
		t.Error("zero should not equal 0.5")
	}
}

func TestNormalizeOrder(t *testing.T) {
	o := &Order{Instrument: "aapl", TotalQuantity: 100, ReasonData: "breakout"}
	NormalizeOrder(o)
	if o.Instrument != "AAPL" {
		t.Errorf("instrument = %q, want AAPL", o.Instrument)
	}
	if o.Quantity != 100 {
		t.Errorf("quantity = %v, want folded 100", o.Quantity)
	}
	if !o.ReasonCompleted {
		t.Error("reasonCompleted should be derived from reasonData")
	}
}

func TestErrorTaxonomy(t *testing.T) {
	terr := NewTransportError("fetch preorders", errors.New("connection refused"))
	if !errors.Is(terr, ErrTransport) {
		t.Error("TransportError should match ErrTransport")
	}
	if errors.Is(terr, ErrValidation) {
		t.Error("TransportError should not match ErrValidation")
	}

	verr := NewValidationError("identity", "no ID available for update")
	if !errors.Is(verr, ErrValidation) {
		t.Error("ValidationError should match ErrValidation")
	}

	var te *TransportError
	if !errors.As(terr, &te) || te.Op != "fetch preorders" {
		t.Error("errors.As should recover the TransportError with its Op")
	}
}
