package main

import (
	"context"
	"os"
	"time"

	"ledgerbook/internal/cli"
	ledgerlog "ledgerbook/internal/log"
	"ledgerbook/internal/services"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	logger := cli.SetupLogger(ledgerlog.ComponentRecurring)
	logger.Info("Starting recurring-worker")

	cfg := cli.LoadAndValidateConfig(logger)

	m, err := cli.NewMetrics()
	if err != nil {
		logger.Error("Failed to register metrics", "error", err)
		os.Exit(1)
	}

	res, err := cli.OpenBackend(context.Background(), logger, cfg, m)
	if err != nil {
		logger.Error("Failed to open backend", "error", err)
		os.Exit(1)
	}

	ledgers := services.NewLedgerService(res.Store, res.Options)
	transactions := services.NewTransactionService(res.Store, res.Options)
	processor := services.NewRecurringProcessor(res.Store, ledgers, transactions, res.Options)

	ctx, done := cli.GracefulShutdown(logger.Logger, 30*time.Second, func() {
		if err := res.Cleanup(); err != nil {
			logger.Error("Failed to close backend", "error", err)
		}
	})
	cli.ServeMetrics(ctx, logger.WithComponent(ledgerlog.ComponentMetrics), cfg.MetricsAddr)

	interval := cfg.RecurringInterval
	logger.Info("Recurring transaction processor configured",
		"interval", interval,
		"backend", cfg.DataBackend)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	run := func(now time.Time) {
		count, err := processor.ProcessDue(ctx, now)
		if err != nil {
			logger.Error("Recurring processing failed", "error", err)
			return
		}
		logger.Info("Recurring processing complete",
			"transactions_created", count,
			"next_check", now.Add(interval).Format("15:04:05"))
	}

	// Run initial processing on startup
	run(time.Now())

	for {
		select {
		case <-ctx.Done():
			logger.Info("Shutting down recurring-worker...")
			cli.WaitForShutdown(ctx, done)
			return
		case now := <-ticker.C:
			run(now)
		}
	}
}
