package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"paymanager/internal/amqp"
	"paymanager/internal/cli"
	"paymanager/internal/config"
	"paymanager/internal/log"
	gsheet "paymanager/internal/sheets/google"
	"paymanager/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), os.Stdout)
	logger.Info("Starting paymanager-worker")

	cfg, err := cli.LoadAndValidateConfig(logger)
	if err != nil {
		os.Exit(1)
	}
	if err := run(cfg, logger); err != nil {
		logger.Error("Worker stopped with error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker stopped gracefully")
}

func run(cfg *config.Config, logger *log.Logger) error {
	if !cfg.MirrorEnabled() {
		return errors.New("GOOGLE_SPREADSHEET_ID is required to run the worker")
	}

	app, err := cli.Open(context.Background(), cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	sheetsClient, err := gsheet.New(context.Background(), gsheet.Config{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		PaymentsSheet:   cfg.GoogleSheetName,
		DashboardSheet:  cfg.GoogleDashboardSheetName,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
	}, logger)
	if err != nil {
		return err
	}
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)

	mirror := worker.NewMirrorWorker(
		app.Store,
		sheetsClient,
		worker.WithLogger(logger),
		worker.WithMetrics(app.Metrics),
		worker.WithClock(time.Now, cfg.Location()),
	)

	parent, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctx, done := cli.GracefulShutdown(parent, logger, 10*time.Second, nil)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return mirror.Run(gctx, cfg.SyncInterval)
	})

	if cfg.AMQPEnabled() {
		consumer, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Warn("AMQP unavailable, relying on periodic resync", log.FieldError, err)
		} else {
			defer consumer.Close()
			g.Go(func() error {
				return consumer.ConsumePaymentEvents(gctx, mirror.HandleEvent)
			})
		}
	} else {
		logger.Info("AMQP disabled, relying on periodic resync", "interval", cfg.SyncInterval.String())
	}

	err = g.Wait()
	cancel()
	cli.WaitForShutdown(ctx, done)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
