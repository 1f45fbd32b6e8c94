package feed

import (
	"context"
	"strings"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/shopspring/decimal"

	"tracknote/internal/domain"
)

// Compile-time interface check.
var _ BrokerFeed = (*AlpacaFeed)(nil)

// AlpacaFeed implements BrokerFeed against the Alpaca trading API.
type AlpacaFeed struct {
	client *alpaca.Client
}

// NewAlpacaFeed creates a feed configured with the given credentials and API
// endpoint.
func NewAlpacaFeed(apiKey, apiSecret, baseURL string) *AlpacaFeed {
	opts := alpaca.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	}
	if baseURL != "" {
		opts.BaseURL = baseURL
	}
	return &AlpacaFeed{client: alpaca.NewClient(opts)}
}

// Name returns the feed identifier.
func (f *AlpacaFeed) Name() string { return "alpaca" }

// CurrentOrders returns the account's open orders, translated to domain
// orders.
func (f *AlpacaFeed) CurrentOrders(ctx context.Context) ([]*domain.Order, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	alpacaOrders, err := f.client.GetOrders(alpaca.GetOrdersRequest{
		Status: "open",
		Limit:  500,
	})
	if err != nil {
		return nil, domain.NewTransportError("fetch broker orders", err)
	}

	orders := make([]*domain.Order, 0, len(alpacaOrders))
	for i := range alpacaOrders {
		orders = append(orders, fromAlpacaOrder(&alpacaOrders[i]))
	}
	return orders, nil
}

// CurrentHoldings returns the account's positions. Alpaca reports short
// positions with negative quantities already.
func (f *AlpacaFeed) CurrentHoldings(ctx context.Context) ([]domain.Holding, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	positions, err := f.client.GetPositions()
	if err != nil {
		return nil, domain.NewTransportError("fetch broker holdings", err)
	}

	holdings := make([]domain.Holding, 0, len(positions))
	for _, p := range positions {
		holdings = append(holdings, domain.Holding{
			Instrument: strings.ToUpper(p.Symbol),
			Shares:     p.Qty.InexactFloat64(),
			IsShort:    p.Side == "short",
			AvgPrice:   p.AvgEntryPrice.InexactFloat64(),
		})
	}
	return holdings, nil
}

// ---------------------------------------------------------------------------
// Translation
// ---------------------------------------------------------------------------

func fromAlpacaOrder(ao *alpaca.Order) *domain.Order {
	o := &domain.Order{
		BrokerOrderID: ao.ID,
		Instrument:    strings.ToUpper(ao.Symbol),
		Side:          fromAlpacaSide(ao.Side),
		Kind:          fromAlpacaType(ao.Type),
		Quantity:      decimalFloat(ao.Qty),
		LimitPrice:    decimalFloat(ao.LimitPrice),
		StopPrice:     decimalFloat(ao.StopPrice),
		EntryPrice:    decimalFloat(ao.FilledAvgPrice),
		Status:        fromAlpacaStatus(ao.Status),
		Source:        "alpaca",
	}
	domain.NormalizeOrder(o)
	return o
}

func fromAlpacaSide(s alpaca.Side) domain.Side {
	if s == alpaca.Sell {
		return domain.SideSell
	}
	return domain.SideBuy
}

func fromAlpacaType(t alpaca.OrderType) domain.OrderKind {
	switch t {
	case alpaca.Limit:
		return domain.KindLimit
	case alpaca.Stop, alpaca.StopLimit:
		return domain.KindStop
	}
	return domain.KindMarket
}

// fromAlpacaStatus maps Alpaca's snake_case statuses onto the status strings
// the rest of the engine expects.
func fromAlpacaStatus(s string) string {
	switch s {
	case "new", "accepted":
		return "Submitted"
	case "filled":
		return "Filled"
	case "partially_filled":
		return "PartiallyFilled"
	case "pending_cancel":
		return domain.StatusPendingCancel
	case "canceled":
		return "Cancelled"
	}
	return s
}

func decimalFloat(d *decimal.Decimal) float64 {
	if d == nil {
		return 0
	}
	return d.InexactFloat64()
}
