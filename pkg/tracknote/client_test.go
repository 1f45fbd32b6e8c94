package tracknote

import (
	"context"
	"log/slog"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"tracknote/internal/domain"
	"tracknote/internal/engine"
	"tracknote/internal/feed"
	"tracknote/internal/httpapi"
	"tracknote/internal/store"
)

func startServer(t *testing.T) (*Client, *store.SQLiteStore) {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "orders.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	f := feed.NewStaticFeed([]*domain.Order{
		{Instrument: "AAPL", Side: domain.SideBuy, Kind: domain.KindLimit, Quantity: 100, LimitPrice: 185.50},
	}, nil)
	e := engine.NewEngine(f, s, nil, time.Hour)
	srv := httpapi.NewServer(e, s, f, slog.Default())

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return NewClient(ts.URL), s
}

func TestClientHealth(t *testing.T) {
	c, _ := startServer(t)
	if err := c.Health(context.Background()); err != nil {
		t.Fatalf("Health: %v", err)
	}
}

func TestClientReconcileAndRead(t *testing.T) {
	c, _ := startServer(t)
	ctx := context.Background()

	report, err := c.Reconcile(ctx)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if report.Saved != 1 {
		t.Errorf("report = %+v, want 1 saved", report)
	}

	orders, err := c.Orders(ctx)
	if err != nil {
		t.Fatalf("Orders: %v", err)
	}
	if len(orders) != 1 || orders[0].Instrument != "AAPL" {
		t.Errorf("orders = %+v", orders)
	}
	if orders[0].Side != "buy" || orders[0].State != "preorder" {
		t.Errorf("wire fields = %q %q, want buy/preorder", orders[0].Side, orders[0].State)
	}

	pre, err := c.OrdersByState(ctx, "preorder")
	if err != nil {
		t.Fatalf("OrdersByState: %v", err)
	}
	if len(pre) != 1 {
		t.Errorf("preorders = %+v", pre)
	}

	positions, err := c.MergedPositions(ctx)
	if err != nil {
		t.Fatalf("MergedPositions: %v", err)
	}
	if len(positions) != 0 {
		t.Errorf("positions = %+v, want none before any merge", positions)
	}
}

func TestClientDetect(t *testing.T) {
	c, _ := startServer(t)
	res, err := c.Detect(context.Background())
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if !res.Success {
		t.Errorf("detect result = %+v", res)
	}
}

func TestClientErrorStatus(t *testing.T) {
	c := NewClient("http://127.0.0.1:0")
	if err := c.Health(context.Background()); err == nil {
		t.Error("unreachable server should error")
	}
}
