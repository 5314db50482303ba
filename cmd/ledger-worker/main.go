package main

import (
	"context"
	"errors"
	"os"
	"time"

	"ledgerbook/internal/amqp"
	"ledgerbook/internal/backend"
	"ledgerbook/internal/cli"
	ledgerlog "ledgerbook/internal/log"
	"ledgerbook/internal/worker"

	"golang.org/x/sync/errgroup"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	logger := cli.SetupLogger(ledgerlog.ComponentWorker)
	logger.Info("Starting ledger-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required to consume ledger events")
		os.Exit(1)
	}

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

	exporter, err := backend.NewExporter(context.Background(), cfg)
	if err != nil {
		logger.Error("Failed to initialize exporter", "error", err)
		res.Cleanup()
		os.Exit(1)
	}

	consumer, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, m)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		res.Cleanup()
		os.Exit(1)
	}

	ctx, done := cli.GracefulShutdown(logger.Logger, 30*time.Second, func() {
		consumer.Close()
		if err := res.Cleanup(); err != nil {
			logger.Error("Failed to close backend", "error", err)
		}
	})
	cli.ServeMetrics(ctx, logger.WithComponent(ledgerlog.ComponentMetrics), cfg.MetricsAddr)

	syncWorker := worker.NewSyncWorker(res.Store, exporter, m)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return consumer.ConsumeLedgerEvents(gctx, syncWorker.HandleLedgerEvent)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Ledger event consumption failed", "error", err)
		os.Exit(1)
	}

	logger.Info("Shutting down ledger-worker...")
	cli.WaitForShutdown(ctx, done)
}
