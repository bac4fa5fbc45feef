package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"ccexpense/internal/amqp"
	"ccexpense/internal/categorize"
	"ccexpense/internal/config"
	"ccexpense/internal/core"
	"ccexpense/internal/exchange"
	"ccexpense/internal/expand"
	apphttp "ccexpense/internal/http"
	"ccexpense/internal/services"
	"ccexpense/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

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

	// Backups are only restorable with an owner profile attached; seed it on
	// a fresh database.
	profile := core.UserProfile{Name: cfg.UserName, Email: cfg.UserEmail}
	if err := services.EnsureProfile(context.Background(), repo, profile); err != nil {
		logger.Error("Failed to seed backup owner profile", "error", err)
		os.Exit(1)
	}

	var categorizer *categorize.Categorizer
	if cfg.CategoryRulesPath != "" {
		categorizer, err = categorize.NewFromFile(cfg.CategoryRulesPath)
		if err != nil {
			logger.Error("Failed to load category rules", "error", err, "path", cfg.CategoryRulesPath)
			os.Exit(1)
		}
		logger.Info("Loaded category rules", "path", cfg.CategoryRulesPath)
	} else {
		categorizer = categorize.New()
	}

	rateOpts := []exchange.Option{exchange.WithTTL(cfg.ExchangeCacheTTL)}
	if cfg.ExchangeAPIURL != "" {
		rateOpts = append(rateOpts, exchange.WithEndpoint(cfg.ExchangeAPIURL))
	}
	rates := exchange.NewProvider(rateOpts...)

	engine := expand.NewEngine(rates, categorizer)

	// AMQP is optional: without a broker the API still works, only the
	// backup worker goes stale.
	var events services.EventPublisher
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, continuing without ledger events", "error", err)
		} else {
			defer amqpClient.Close()
			events = amqpClient
			logger.Info("AMQP client initialized", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}

	transactions := services.NewTransactionService(repo, engine, events)
	srv := apphttp.NewServer(
		":"+cfg.Port,
		transactions,
		services.NewCardService(repo),
		services.NewBudgetService(repo, repo),
		services.NewImportService(transactions),
		services.NewBackupService(repo, events),
	)

	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cancel()
	}()

	logger.Info("Starting ccexpense server", "port", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
