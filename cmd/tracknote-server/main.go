package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tracknote/internal/config"
	"tracknote/internal/engine"
	"tracknote/internal/feed"
	"tracknote/internal/httpapi"
	"tracknote/internal/store"
	"tracknote/internal/util"
)

func main() {
	// Load config.
	cfgPath := "config/tracknote.yaml"
	if p := os.Getenv("TRACKNOTE_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	// Setup logging.
	logger := util.NewLogger(cfg.Logging.Level)
	util.SetDefault(logger)

	// Order store. Opening can race a slow filesystem or a remote API that
	// is still coming up, so retry briefly before giving up.
	var orders store.OrderStore
	err = util.Retry(context.Background(), 3, time.Second, func() error {
		orders, err = openStore(cfg)
		return err
	})
	if err != nil {
		log.Fatalf("opening order store: %v", err)
	}
	defer orders.Close()

	// Optional pass journal.
	var journal *store.ParquetJournal
	if cfg.Storage.JournalDir != "" {
		journal = store.NewParquetJournal(cfg.Storage.JournalDir)
	}

	// Broker feed: Alpaca when credentials are configured, otherwise an
	// empty static feed so the API still serves stored data.
	var brokerFeed feed.BrokerFeed
	if cfg.Alpaca.APIKey != "" {
		brokerFeed = feed.NewAlpacaFeed(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.BaseURL)
		logger.Info("broker feed configured", "feed", "alpaca", "baseURL", cfg.Alpaca.BaseURL)
	} else {
		brokerFeed = feed.NewStaticFeed(nil, nil)
		logger.Warn("no broker credentials, using empty static feed")
	}

	eng := engine.NewEngine(brokerFeed, orders, journal,
		time.Duration(cfg.Engine.MinFetchIntervalSec)*time.Second)
	srv := httpapi.NewServer(eng, orders, brokerFeed, logger)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: srv.Handler(),
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Background reconciliation loop.
	go runPassLoop(ctx, eng, time.Duration(cfg.Engine.PollIntervalSec)*time.Second)

	go func() {
		logger.Info("tracknote server listening", "addr", httpServer.Addr, "store", cfg.Storage.Backend)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down tracknote server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
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

// runPassLoop runs reconciliation passes at the configured cadence until ctx
// is cancelled.
func runPassLoop(ctx context.Context, eng *engine.Engine, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := eng.Reconcile(ctx); err != nil {
				// Pass errors are write failures; the next tick retries.
				continue
			}
		}
	}
}
