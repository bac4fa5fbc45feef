package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"ccexpense/internal/amqp"
	"ccexpense/internal/config"
	"ccexpense/internal/core"
	"ccexpense/internal/services"
	"ccexpense/internal/storage"
	"ccexpense/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("Starting backup-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	backups := services.NewBackupService(repo, nil)
	w := worker.NewBackupWorker(backups, cfg.BackupDir)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Snapshots without an owner profile fail restore validation; seed it in
	// case the worker comes up before the API server ever ran.
	profile := core.UserProfile{Name: cfg.UserName, Email: cfg.UserEmail}
	if err := services.EnsureProfile(ctx, repo, profile); err != nil {
		logger.Error("Failed to seed backup owner profile", "error", err)
		os.Exit(1)
	}

	// A snapshot at startup covers events missed while the worker was down.
	if err := w.StartupSnapshot(ctx); err != nil {
		logger.Error("Startup snapshot failed", "error", err)
		// Keep running; the next ledger change will retry.
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return amqpClient.ConsumeLedgerChanges(ctx, func(msg *amqp.LedgerChangeMessage) error {
			return w.HandleLedgerChange(ctx, msg)
		})
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Worker stopped gracefully")
}
