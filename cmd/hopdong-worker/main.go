package main

import (
	"context"
	"errors"
	"os"
	"time"

	"hopdong/internal/amqp"
	"hopdong/internal/backend"
	"hopdong/internal/cli"
	"hopdong/internal/config"
	"hopdong/internal/log"
	"hopdong/internal/services"
	"hopdong/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadConfig((*config.Config).ValidateWorker)
	logger := cli.SetupLogger(cfg, "worker")

	logger.Info("Starting hopdong-worker")

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	remote, err := backend.NewFactory(logger.Logger).CreateBackend(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to initialize remote store", log.FieldError, err, "backend", cfg.RemoteBackend)
		os.Exit(1)
	}
	if remote.Cleanup != nil {
		defer remote.Cleanup()
	}
	if cfg.RemoteBackend == config.RemoteNone {
		logger.Warn("Remote store disabled, queued snapshots will fail until it is configured")
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	syncWorker := worker.NewSyncWorker(repo, remote.Store, worker.DefaultMaxAttempts)
	processor := services.NewSyncProcessor(repo, syncWorker, services.SyncProcessorConfig{
		PollInterval: cfg.SyncInterval,
		BatchSize:    cfg.SyncBatchSize,
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		logger.Info("Shutting down worker...")
		if err := processor.Stop(ctx); err != nil {
			logger.Error("Sync processor stop failed", log.FieldError, err)
		}
	})

	// Snapshots whose message was lost while the worker was down are picked
	// up by the first poll.
	if err := processor.Start(ctx); err != nil {
		logger.Error("Failed to start sync processor", log.FieldError, err)
		os.Exit(1)
	}

	go func() {
		err := amqpClient.Consume(ctx, syncWorker.HandleSyncMessage)
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Message consumption failed", log.FieldError, err)
		}
	}()

	logger.Info("Worker running", "queue", cfg.AMQPQueue, "poll_interval", cfg.SyncInterval)
	cli.WaitForShutdown(ctx, done)
}
