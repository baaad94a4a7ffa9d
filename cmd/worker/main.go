package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"retreat_app_echo/internal/config"
	"retreat_app_echo/internal/services"
	"retreat_app_echo/internal/tasks"
)

const tickInterval = 5 * time.Minute

func main() {
	cfg := config.Load()

	logger, err := services.NewLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	db, err := services.InitDB(cfg.DatabaseURL, services.DBOptions{LogLevel: services.GormLogLevel(cfg.Env), Logger: logger})
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}

	var cache *services.RedisCache
	if cfg.RedisURL != "" {
		cache, err = services.NewRedisCache(cfg.RedisURL)
		if err != nil {
			logger.Warn("redis unavailable, running without task locks", zap.Error(err))
			cache = nil
		} else {
			defer cache.Close()
		}
	}

	var messenger services.Messenger
	if cfg.Waha.APIKey != "" {
		messenger = services.NewWahaService(cfg.Waha)
	}
	notifier := services.NewNotifier(db, services.NewEmailService(cfg.SMTP), messenger, logger)

	registry := tasks.NewRegistry()
	tasks.DefineTasks(registry, tasks.Dependencies{
		Reports:  services.NewReportService(db),
		Notifier: notifier,
		AppURL:   cfg.AppURL,
		Currency: cfg.PayPal.Currency,
		Logger:   logger,
	})
	runner := tasks.NewRunner(db, registry, cache, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("worker started", zap.Duration("interval", tickInterval), zap.Strings("tasks", registry.Names()))

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	run := func() {
		if _, err := runner.RunDue(ctx); err != nil && ctx.Err() == nil {
			logger.Error("failed to process scheduled tasks", zap.Error(err))
		}
	}

	// Run once on start, then on every tick.
	run()
	for {
		select {
		case <-ticker.C:
			run()
		case <-ctx.Done():
			logger.Info("shutting down worker")
			return
		}
	}
}
