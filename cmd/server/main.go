package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hichang4u/fxtrader/internal/config"
	"github.com/hichang4u/fxtrader/internal/database"
	"github.com/hichang4u/fxtrader/internal/ledger"
	"github.com/hichang4u/fxtrader/internal/logger"
	"github.com/hichang4u/fxtrader/internal/policy"
	"github.com/hichang4u/fxtrader/internal/rates"
	"github.com/hichang4u/fxtrader/internal/trading"
)

func main() {
	// Load application configuration
	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewLogger(cfg.Logger.Level, cfg.Logger.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	log.Info("Configuration loaded")

	// Initialize database, ledger and policy store
	db, err := database.NewDatabase(cfg.Database.DSN)
	if err != nil {
		log.Fatal("Failed to open database", zap.Error(err))
	}
	log.Info("Database opened and schema migrated", zap.String("dsn", cfg.Database.DSN))

	tradeLedger := ledger.New(db)
	policies := policy.New(db)
	planner := trading.NewPlanner(log, tradeLedger, policies)
	valuator := trading.NewValuator(tradeLedger)

	// Rate feed and background monitor. The monitor only reads the feed; the
	// HTTP path is the sole ledger mutator.
	feed := rates.NewClient(&cfg.Rates, log)
	monitor := rates.NewMonitor(log, feed, time.Duration(cfg.Rates.PollSeconds)*time.Second)

	// Setup context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigchan := make(chan os.Signal, 1)
		signal.Notify(sigchan, syscall.SIGINT, syscall.SIGTERM)
		<-sigchan
		log.Info("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()
	go monitor.Run(ctx)

	// Setup HTTP server
	api := NewAPIHandler(log, planner, valuator, policies, tradeLedger, monitor)
	mux := http.NewServeMux()
	api.Register(mux)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Info("Starting web server", zap.String("address", addr))

	server := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("Web server failed", zap.Error(err))
	}

	log.Info("Server has been shut down.")
}
