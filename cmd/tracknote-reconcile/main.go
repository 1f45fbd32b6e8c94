// tracknote-reconcile runs a single reconciliation pass and prints the
// summary, for cron jobs and manual runs against the same config the server
// uses.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"tracknote/internal/config"
	"tracknote/internal/engine"
	"tracknote/internal/feed"
	"tracknote/internal/store"
	"tracknote/internal/util"
)

func main() {
	cfgPath := flag.String("config", "config/tracknote.yaml", "path to config file")
	detectOnly := flag.Bool("detect-only", false, "skip reconciliation, only detect fills and merge")
	flag.Parse()

	if p := os.Getenv("TRACKNOTE_CONFIG"); p != "" && *cfgPath == "config/tracknote.yaml" {
		*cfgPath = p
	}
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger := util.NewLogger(cfg.Logging.Level)
	util.SetDefault(logger)

	var orders store.OrderStore
	err = util.Retry(context.Background(), 3, time.Second, func() error {
		orders, err = openStore(cfg)
		return err
	})
	if err != nil {
		log.Fatalf("opening order store: %v", err)
	}
	defer orders.Close()

	var journal *store.ParquetJournal
	if cfg.Storage.JournalDir != "" {
		journal = store.NewParquetJournal(cfg.Storage.JournalDir)
	}

	if cfg.Alpaca.APIKey == "" {
		log.Fatal("broker credentials required: set alpaca.api_key or APCA_API_KEY_ID")
	}
	brokerFeed := feed.NewAlpacaFeed(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.BaseURL)

	eng := engine.NewEngine(brokerFeed, orders, journal,
		time.Duration(cfg.Engine.MinFetchIntervalSec)*time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if *detectOnly {
		res, err := eng.DetectAndMerge(ctx)
		if err != nil {
			log.Fatalf("detection failed: %v", err)
		}
		fmt.Printf("detect: %s\n", res.Message)
		return
	}

	report, err := eng.Reconcile(ctx)
	if err != nil {
		log.Fatalf("reconciliation failed: %v", err)
	}
	fmt.Printf("pass %s: matched=%d new=%d saved=%d exits=%d executed=%d merged=%d (%s)\n",
		report.PassID, report.Matched, report.NewOrders, report.Saved,
		report.ExitOrders, report.Executed, report.Merged,
		report.Duration.Round(time.Millisecond))
}

// openStore selects the order store backend from config.
func openStore(cfg *config.Config) (store.OrderStore, error) {
	switch cfg.Storage.Backend {
	case "http":
		if cfg.Storage.APIBaseURL == "" {
			return nil, fmt.Errorf("http backend requires storage.api_base_url")
		}
		return store.NewHTTPStore(cfg.Storage.APIBaseURL), nil
	case "sqlite":
		return store.NewSQLiteStore(cfg.Storage.SQLitePath)
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
}
