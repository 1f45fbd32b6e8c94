package feed

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"tracknote/internal/domain"
)

func TestAlpacaFeedName(t *testing.T) {
	f := NewAlpacaFeed("key", "secret", "https://paper-api.alpaca.markets")
	if got := f.Name(); got != "alpaca" {
		t.Errorf("AlpacaFeed.Name() = %q, want %q", got, "alpaca")
	}
}

func TestStaticFeedSnapshot(t *testing.T) {
	orders := []*domain.Order{
		{Instrument: "AAPL", Side: domain.SideBuy, Kind: domain.KindLimit, Quantity: 100},
	}
	holdings := []domain.Holding{{Instrument: "AAPL", Shares: 100}}

	f := NewStaticFeed(orders, holdings)
	ctx := context.Background()

	got, err := f.CurrentOrders(ctx)
	if err != nil {
		t.Fatalf("CurrentOrders: %v", err)
	}
	if len(got) != 1 || got[0].Instrument != "AAPL" {
		t.Fatalf("CurrentOrders = %+v", got)
	}

	// Returned orders are copies: annotating one must not leak back.
	got[0].IsMainOrder = true
	again, _ := f.CurrentOrders(ctx)
	if again[0].IsMainOrder {
		t.Error("feed snapshot was mutated through a returned order")
	}

	h, err := f.CurrentHoldings(ctx)
	if err != nil {
		t.Fatalf("CurrentHoldings: %v", err)
	}
	if len(h) != 1 || h[0].Shares != 100 {
		t.Errorf("CurrentHoldings = %+v", h)
	}
}

func TestFromAlpacaOrderTranslation(t *testing.T) {
	qty := decimal.NewFromInt(100)
	limit := decimal.NewFromFloat(185.50)

	if got := fromAlpacaStatus("pending_cancel"); got != domain.StatusPendingCancel {
		t.Errorf("fromAlpacaStatus(pending_cancel) = %q", got)
	}
	if got := fromAlpacaStatus("filled"); got != "Filled" {
		t.Errorf("fromAlpacaStatus(filled) = %q", got)
	}
	if got := fromAlpacaStatus("held"); got != "held" {
		t.Errorf("unknown statuses should pass through, got %q", got)
	}

	if decimalFloat(nil) != 0 {
		t.Error("nil decimal should read as zero")
	}
	if decimalFloat(&qty) != 100 {
		t.Errorf("decimalFloat(100) = %v", decimalFloat(&qty))
	}
	if decimalFloat(&limit) != 185.50 {
		t.Errorf("decimalFloat(185.50) = %v", decimalFloat(&limit))
	}
}
