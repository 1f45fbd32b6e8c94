package reconcile

import (
	"testing"

	"tracknote/internal/domain"
)

func TestClassifySellAgainstLongHolding(t *testing.T) {
	holdings := []domain.Holding{{Instrument: "AAPL", Shares: 100, AvgPrice: 180}}

	sell := order("AAPL", domain.SideSell, domain.KindLimit, 40)
	cls := ClassifyAgainstHoldings(sell, holdings)
	if !cls.IsExit {
		t.Error("sell of 40 against 100 held shares should be an exit")
	}
	if cls.Matched == nil || cls.Matched.Instrument != "AAPL" {
		t.Errorf("matched holding = %+v", cls.Matched)
	}

	full := order("AAPL", domain.SideSell, domain.KindLimit, 100)
	if !ClassifyAgainstHoldings(full, holdings).IsExit {
		t.Error("sell of the full position should be an exit")
	}

	over := order("AAPL", domain.SideSell, domain.KindLimit, 101)
	if ClassifyAgainstHoldings(over, holdings).IsExit {
		t.Error("sell exceeding held shares should not be an exit")
	}
}

func TestClassifyBuyAgainstLongHolding(t *testing.T) {
	holdings := []domain.Holding{{Instrument: "AAPL", Shares: 100}}
	buy := order("AAPL", domain.SideBuy, domain.KindLimit, 40)
	if ClassifyAgainstHoldings(buy, holdings).IsExit {
		t.Error("buy against a long holding opens or adds to a position, not an exit")
	}
}

func TestClassifyBuyAgainstShortHolding(t *testing.T) {
	holdings := []domain.Holding{{Instrument: "TSLA", Shares: -100, AvgPrice: 250}}

	cover := order("TSLA", domain.SideBuy, domain.KindLimit, 40)
	if !ClassifyAgainstHoldings(cover, holdings).IsExit {
		t.Error("buy of 40 against 100 short shares should be an exit")
	}

	sell := order("TSLA", domain.SideSell, domain.KindLimit, 40)
	if ClassifyAgainstHoldings(sell, holdings).IsExit {
		t.Error("sell against a short holding adds to the short, not an exit")
	}

	over := order("TSLA", domain.SideBuy, domain.KindLimit, 150)
	if ClassifyAgainstHoldings(over, holdings).IsExit {
		t.Error("buy exceeding the short size should not be an exit")
	}
}

func TestClassifyNoHolding(t *testing.T) {
	sell := order("NVDA", domain.SideSell, domain.KindLimit, 40)
	if ClassifyAgainstHoldings(sell, nil).IsExit {
		t.Error("no holding means no exit")
	}
	if ClassifyAgainstHoldings(sell, []domain.Holding{{Instrument: "AAPL", Shares: 100}}).IsExit {
		t.Error("holdings for other instruments do not apply")
	}
}

func TestClassifyShortSell(t *testing.T) {
	holdings := []domain.Holding{{Instrument: "AAPL", Shares: 100}}
	ss := order("AAPL", domain.SideShortSell, domain.KindLimit, 40)
	if !ClassifyAgainstHoldings(ss, holdings).IsExit {
		t.Error("short-sell side counts as a sell against a long holding")
	}
}

func TestApplyHoldings(t *testing.T) {
	holdings := []domain.Holding{
		{Instrument: "AAPL", Shares: 100},
		{Instrument: "TSLA", Shares: -50},
	}
	orders := []*domain.Order{
		order("AAPL", domain.SideSell, domain.KindLimit, 40),  // exit
		order("AAPL", domain.SideBuy, domain.KindLimit, 40),   // new
		order("TSLA", domain.SideBuy, domain.KindLimit, 50),   // exit (cover)
		order("NVDA", domain.SideSell, domain.KindLimit, 10),  // no holding
	}

	if got := ApplyHoldings(orders, holdings); got != 2 {
		t.Errorf("ApplyHoldings = %d exits, want 2", got)
	}
	if !orders[0].IsExitPositionOrder || orders[1].IsExitPositionOrder {
		t.Error("long holding classification wrong")
	}
	if !orders[2].IsExitPositionOrder || orders[3].IsExitPositionOrder {
		t.Error("short/no-holding classification wrong")
	}
}
