package main

import (
	"context"
	"errors"
	"os"
	"time"

	"taxlyzer/internal/amqp"
	"taxlyzer/internal/cli"
	tlog "taxlyzer/internal/log"
	"taxlyzer/internal/metrics"
	gsheet "taxlyzer/internal/sheets/google"
	"taxlyzer/internal/storage"
	"taxlyzer/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, tlog.ComponentWorker)

	logger.Info("Starting taxlyzer-worker", tlog.FieldOperation, tlog.OpStartup)

	if !cfg.SheetsEnabled() {
		logger.Error("GOOGLE_SPREADSHEET_ID is required for the worker")
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", tlog.FieldError, err.Error(), "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	sheets, err := gsheet.New(ctx, gsheet.Options{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		SheetName:       cfg.GoogleSheetName,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
	})
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", tlog.FieldError, err.Error())
		os.Exit(1)
	}

	syncWorker := worker.NewSyncWorker(repo, sheets, metrics.New(), cfg.SyncBatchSize)

	logger.Info("Performing startup sync check...")
	if err := syncWorker.StartupSyncCheck(ctx); err != nil {
		logger.Error("Failed startup sync check", tlog.FieldError, err.Error())
	}

	// The poll catches invoices whose message was lost or never published.
	poller := worker.NewPoller("pending-sync", cfg.SyncInterval, syncWorker.ProcessPending)
	if err := poller.Start(ctx); err != nil {
		logger.Error("Failed to start pending sync poller", tlog.FieldError, err.Error())
		os.Exit(1)
	}

	if cfg.AMQPEnabled() {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, relying on polling only", tlog.FieldError, err.Error())
		} else {
			defer client.Close()
			go func() {
				err := client.ConsumeInvoiceSync(ctx, syncWorker.HandleSyncMessage)
				if err != nil && !errors.Is(err, context.Canceled) {
					logger.Error("Message consumption failed", tlog.FieldError, err.Error())
				}
			}()
			logger.Info("Consuming sync messages", "queue", cfg.AMQPQueue)
		}
	} else {
		logger.Info("AMQP not configured, relying on polling only", "interval", cfg.SyncInterval.String())
	}

	cli.WaitForShutdown(ctx, done)

	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := poller.Stop(stopCtx); err != nil {
		logger.Warn("Poller did not stop cleanly", tlog.FieldError, err.Error())
	}
	logger.Info("Worker shutdown complete")
}
