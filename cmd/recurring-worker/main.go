package main

import (
	"context"
	"os"
	"time"

	"github.com/robfig/cron/v3"

	"fincore/internal/amqp"
	"fincore/internal/cli"
	applog "fincore/internal/log"
	"fincore/internal/services"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg.LogLevel, applog.ComponentScheduler)

	logger.Info("Starting recurring-worker",
		"schedule", cfg.RecurringSchedule,
		"concurrency", cfg.RecurringConcurrency,
		"strict_anchors", cfg.RecurringStrictAnchors)

	backendResult := cli.OpenStore(context.Background(), logger.Logger, cfg)

	var publisher services.Publisher = services.NopPublisher{}
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without events", applog.FieldError, err)
		} else {
			amqpClient = client
			publisher = client
			logger.Info("AMQP client initialized, transactions sync via ledger-worker")
		}
	} else {
		logger.Info("AMQP disabled, transactions sync through the pending sweep only")
	}

	scheduler := services.NewScheduler(backendResult.Store, publisher, services.SchedulerConfig{
		Concurrency:   cfg.RecurringConcurrency,
		StrictAnchors: cfg.RecurringStrictAnchors,
	})

	cronLog := cronLogger{logger: logger}
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(cronLog),
		cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
	)

	ctx, done := cli.GracefulShutdown(logger.Logger, 30*time.Second, func(shutdownCtx context.Context) {
		// Stop waits for a running batch; each occurrence commits on its
		// own, so an abandoned batch leaves no half-written definition.
		select {
		case <-c.Stop().Done():
		case <-shutdownCtx.Done():
			logger.Warn("Recurring batch still running at shutdown")
		}
		if amqpClient != nil {
			_ = amqpClient.Close()
		}
		if err := backendResult.Cleanup(); err != nil {
			logger.Error("Failed to close store", applog.FieldError, err)
		}
	})

	run := func() {
		if ctx.Err() != nil {
			return
		}
		report, err := scheduler.RunDue(ctx, time.Now())
		if err != nil {
			logger.Error("Recurring run failed", applog.FieldError, err, "failed", report.Failed)
			return
		}
		if report.Failed > 0 {
			logger.Warn("Recurring run finished with failures", "failed_ids", report.FailedIDs)
		}
	}

	if _, err := c.AddFunc(cfg.RecurringSchedule, run); err != nil {
		logger.Error("Invalid RECURRING_SCHEDULE", applog.FieldError, err, "schedule", cfg.RecurringSchedule)
		os.Exit(1)
	}

	logger.Info("Running initial recurring processing")
	run()

	c.Start()
	for _, e := range c.Entries() {
		logger.Info("Recurring processing scheduled", "next_run", e.Next.Format(time.RFC3339))
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Recurring-worker stopped")
}

// cronLogger routes cron's own logging through slog.
type cronLogger struct {
	logger *applog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append([]any{applog.FieldError, err}, keysAndValues...)...)
}
