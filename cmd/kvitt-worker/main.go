package main

import (
	"context"
	"os"
	"time"

	"kvitt/internal/backend"
	"kvitt/internal/cli"
	klog "kvitt/internal/log"
	"kvitt/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(klog.ComponentWorker)
	logger.Info("Starting kvitt-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	if backendCfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the worker")
		os.Exit(1)
	}

	factory := backend.NewFactory(logger.Logger)
	ctx := context.Background()

	ledger, err := factory.CreateLedger(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize ledger", "error", err, "backend", backendCfg.LedgerBackend)
		os.Exit(1)
	}

	broker, err := factory.CreateBroker(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer broker.Close()

	runCtx, done := cli.GracefulShutdown(logger.Logger, 30*time.Second, nil)

	ledgerWorker := worker.NewLedgerWorker(ledger)
	if err := ledgerWorker.Run(runCtx, broker); err != nil {
		logger.Error("Message consumption failed", "error", err)
		os.Exit(1)
	}

	cli.WaitForShutdown(runCtx, done)
	logger.Info("Worker shutdown complete")
}
