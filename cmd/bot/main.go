package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/google/uuid"

	"dipbot/internal/broker"
	"dipbot/internal/config"
	"dipbot/internal/engine"
	"dipbot/internal/logging"
	"dipbot/internal/md"
	"dipbot/internal/metrics"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		return 1
	}

	slog.SetDefault(logging.New(cfg.LogLevel, cfg.LogDir))

	runID := uuid.NewString()
	decisions, err := engine.NewDecisionLogger(cfg.DecisionsPath, runID)
	if err != nil {
		slog.Error("decision logger failed", "path", cfg.DecisionsPath, "error", err)
		return 1
	}
	defer func() {
		if err := decisions.Close(); err != nil {
			slog.Error("failed to close decision log", "error", err)
		}
	}()

	trading := broker.New(cfg.APIKey, cfg.APISecret, cfg.BaseURL)
	data := marketdata.NewClient(marketdata.ClientOpts{
		APIKey:    cfg.APIKey,
		APISecret: cfg.APISecret,
	})
	source := md.New(data, trading, md.Config{
		CryptoWatchlist: cfg.CryptoWatchlist,
		PeriodDays:      cfg.PeriodDays,
		MoversLimit:     cfg.MoversLimit,
	})
	runner := engine.New(cfg, source, trading, decisions)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signalChan
		slog.Info("shutdown signal received")
		cancel()
	}()

	if cfg.MetricsAddr != "" {
		srv := metrics.Serve(cfg.MetricsAddr)
		defer srv.Close()
	}

	slog.Info("starting batch run", "run_id", runID)
	code := 0
	if !cfg.BuyPassOnly {
		if !runPass(ctx, "sell", runner.SellPass) {
			code = 1
		}
	}
	if !cfg.SellPassOnly {
		if !runPass(ctx, "buy", runner.BuyPass) {
			code = 1
		}
	}
	slog.Info("batch run complete", "run_id", runID)
	return code
}

func runPass(ctx context.Context, name string, pass func(context.Context) ([]engine.Result, error)) bool {
	results, err := pass(ctx)
	if err != nil {
		slog.Error("pass failed", "pass", name, "error", err)
		return false
	}
	for _, res := range results {
		fmt.Println(res.String())
	}
	return true
}
