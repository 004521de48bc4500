package main

import (
	"context"
	"errors"
	"os"
	"time"

	"fincore/internal/amqp"
	"fincore/internal/cache"
	"fincore/internal/cli"
	"fincore/internal/config"
	applog "fincore/internal/log"
	"fincore/internal/services"
	"fincore/internal/sheets"
	gsheet "fincore/internal/sheets/google"
	memsheet "fincore/internal/sheets/memory"
	"fincore/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg.LogLevel, applog.ComponentWorker)

	logger.Info("Starting ledger-worker", "backend", cfg.DataBackend)

	backendResult := cli.OpenStore(context.Background(), logger.Logger, cfg)
	store := backendResult.Store

	writer, err := newWriter(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize ledger writer", applog.FieldError, err)
		os.Exit(1)
	}

	categories := cache.NewCategoryCache(services.StoreCategories{Store: store}, 500, cfg.CategoryCacheTTL)
	ledger := worker.NewLedgerWorker(store, writer, categories, cfg.SyncBatchSize)
	sweeper := worker.NewSweeper(ledger, worker.SweeperConfig{PollInterval: cfg.SyncInterval})

	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
			os.Exit(1)
		}
	} else {
		logger.Info("AMQP disabled, exporting through the pending sweep only")
	}

	ctx, done := cli.GracefulShutdown(logger.Logger, 30*time.Second, func(shutdownCtx context.Context) {
		if err := sweeper.Stop(shutdownCtx); err != nil {
			logger.Warn("Sweeper stop", applog.FieldError, err)
		}
		if amqpClient != nil {
			_ = amqpClient.Close()
		}
		if err := backendResult.Cleanup(); err != nil {
			logger.Error("Failed to close store", applog.FieldError, err)
		}
	})

	logger.Info("Performing startup sync check")
	if err := ledger.StartupSyncCheck(ctx); err != nil {
		logger.Error("Startup sync check failed", applog.FieldError, err)
	}

	if err := sweeper.Start(ctx); err != nil {
		logger.Error("Failed to start sweeper", applog.FieldError, err)
		os.Exit(1)
	}

	if amqpClient != nil {
		go func() {
			err := amqpClient.ConsumeTransactionCreated(ctx, ledger.HandleMessage)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Message consumption stopped", applog.FieldError, err)
			}
		}()
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Ledger worker stopped")
}

// newWriter picks Google Sheets when a spreadsheet is configured and an
// in-memory ledger otherwise, so the worker still drains pending rows in
// local setups.
func newWriter(ctx context.Context, cfg *config.Config, logger *applog.Logger) (sheets.TransactionWriter, error) {
	if cfg.GoogleSpreadsheetID == "" {
		logger.Warn("GOOGLE_SPREADSHEET_ID not set, exporting to an in-memory ledger")
		return memsheet.New(), nil
	}
	client, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		SheetName:       cfg.GoogleSheetName,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
	})
	if err != nil {
		return nil, err
	}
	logger.Info("Google Sheets writer initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID, "sheet", cfg.GoogleSheetName)
	return client, nil
}
