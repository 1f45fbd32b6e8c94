package reconcile

import (
	"log/slog"

	"tracknote/internal/domain"
)

// HoldingClassification is the result of checking an order against current
// holdings: whether it closes or reduces an existing position, and which
// holding it matched.
type HoldingClassification struct {
	IsExit  bool
	Matched *domain.Holding
}

// ClassifyAgainstHoldings decides whether an order opens a new position or
// exits an existing one, using holdings as ground truth. A sell against a
// long holding (or a buy against a short holding) whose quantity does not
// exceed the held shares is an exit — partial or full. The quantity check is
// a strict ≤ with no tolerance. Everything else opens a new position.
func ClassifyAgainstHoldings(order *domain.Order, holdings []domain.Holding) HoldingClassification {
	holding := domain.FindHolding(holdings, order.Instrument)
	if holding == nil {
		return HoldingClassification{}
	}

	qty := domain.QuantityOf(order)

	if holding.Shares > 0 && order.Side.IsSell() && qty <= holding.AbsShares() {
		return HoldingClassification{IsExit: true, Matched: holding}
	}
	if holding.Shares < 0 && order.Side == domain.SideBuy && qty <= holding.AbsShares() {
		return HoldingClassification{IsExit: true, Matched: holding}
	}

	return HoldingClassification{}
}

// ApplyHoldings classifies every order in place, setting IsExitPositionOrder,
// and returns the number of exit-position orders found.
func ApplyHoldings(orders []*domain.Order, holdings []domain.Holding) int {
	exits := 0
	for _, o := range orders {
		cls := ClassifyAgainstHoldings(o, holdings)
		o.IsExitPositionOrder = cls.IsExit
		if cls.IsExit {
			exits++
			slog.Debug("exit position match",
				"instrument", o.Instrument,
				"side", o.Side,
				"quantity", domain.QuantityOf(o),
				"holdingShares", cls.Matched.Shares,
			)
		}
	}
	return exits
}
