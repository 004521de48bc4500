package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"fincore/internal/amqp"
	"fincore/internal/budget"
	"fincore/internal/cache"
	"fincore/internal/cli"
	apphttp "fincore/internal/http"
	applog "fincore/internal/log"
	"fincore/internal/services"
)

const categoryCacheSize = 500

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg.LogLevel, applog.ComponentApp)

	logger.Info("Starting fincore", "port", cfg.Port, "backend", cfg.DataBackend)

	backendResult := cli.OpenStore(context.Background(), logger.Logger, cfg)
	store := backendResult.Store

	// Events are optional: without a broker the ledger worker's sweep
	// still exports every pending transaction.
	var publisher services.Publisher = services.NopPublisher{}
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, events disabled", applog.FieldError, err)
		} else {
			amqpClient = client
			publisher = client
			logger.Info("AMQP publisher initialized", "exchange", cfg.AMQPExchange)
		}
	} else {
		logger.Info("AMQP disabled, transactions sync through the pending sweep only")
	}

	categories := cache.NewCategoryCache(services.StoreCategories{Store: store}, categoryCacheSize, cfg.CategoryCacheTTL)
	caches := cache.NewManager()
	caches.Register(categories)
	caches.StartCleanup(cfg.CategoryCacheTTL)

	srv := apphttp.NewServer(apphttp.Config{
		Addr:              ":" + cfg.Port,
		DefaultCurrency:   cfg.DefaultCurrency,
		RequestsPerMinute: cfg.RateLimitPerMinute,
		Logger:            logger,
	}, apphttp.Deps{
		Scheduler: services.NewScheduler(store, publisher, services.SchedulerConfig{
			Concurrency:   cfg.RecurringConcurrency,
			StrictAnchors: cfg.RecurringStrictAnchors,
		}),
		Transactions: services.NewTransactionService(store, publisher),
		Budgets:      services.NewBudgetService(store, budget.NoRollover{}),
		Projections:  services.NewProjectionService(store, categories),
		Ready:        store.Ping,
		Categories:   categories,
	})

	ctx, done := cli.GracefulShutdown(logger.Logger, 30*time.Second, func(shutdownCtx context.Context) {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
		caches.Stop()
		if amqpClient != nil {
			_ = amqpClient.Close()
		}
		if err := backendResult.Cleanup(); err != nil {
			logger.Error("Failed to close store", applog.FieldError, err)
		}
	})

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
