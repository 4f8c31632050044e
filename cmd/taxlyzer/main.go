package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"taxlyzer/internal/archive"
	"taxlyzer/internal/backend"
	"taxlyzer/internal/cache"
	"taxlyzer/internal/classifier"
	"taxlyzer/internal/cli"
	"taxlyzer/internal/config"
	apphttp "taxlyzer/internal/http"
	tlog "taxlyzer/internal/log"
	"taxlyzer/internal/metrics"
	"taxlyzer/internal/ports"
	"taxlyzer/internal/report"
	"taxlyzer/internal/services"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, tlog.ComponentApp)

	ctx := context.Background()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", tlog.FieldError, err.Error())
		os.Exit(1)
	}
	be, err := backend.NewFactory(logger.WithComponent(tlog.ComponentBackend)).CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", tlog.FieldError, err.Error(), "backend", cfg.DataBackend)
		os.Exit(1)
	}

	rules := classifier.DefaultRules()
	if cfg.ClassifierRulesFile != "" {
		rules, err = classifier.LoadRules(cfg.ClassifierRulesFile)
		if err != nil {
			logger.Error("Failed to load classifier rules", tlog.FieldError, err.Error(), "path", cfg.ClassifierRulesFile)
			os.Exit(1)
		}
	}
	slabs, err := be.Store.ListSlabs(ctx)
	if err != nil {
		logger.Error("Failed to load GST slabs", tlog.FieldError, err.Error())
		os.Exit(1)
	}

	m := metrics.New()
	publisher, closePublisher := backend.OpenPublisher(cfg, logger.WithComponent(tlog.ComponentAMQP))
	archiver := openArchiver(ctx, cfg, logger.WithComponent(tlog.ComponentArchive))

	caches := cache.NewManager(logger.WithComponent(tlog.ComponentCache).Logger)
	if cfg.CacheTTL > 0 {
		caches.StartCleanup(cfg.CacheTTL)
	}

	invoices := services.NewInvoiceService(services.InvoiceServiceDeps{
		Store:      be.Store,
		Classifier: classifier.New(rules, slabs),
		Publisher:  publisher,
		Caches:     caches,
		Metrics:    m,
		Logger:     logger.WithComponent(tlog.ComponentInvoice),
	})
	stats := services.NewStatisticsService(be.Store, caches, cfg.CacheSize, cfg.CacheTTL, cfg.StatsConcurrency)
	reports := services.NewReportService(be.Store, archiver, m, report.GSTR1Options{
		SupplierGSTIN: cfg.SupplierGSTIN,
		ReceiverGSTIN: cfg.ReceiverGSTIN,
		PlaceOfSupply: cfg.PlaceOfSupply,
	}, cfg.StatsConcurrency)

	srv, err := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Invoices:           invoices,
		Statistics:         stats,
		Reports:            reports,
		Metrics:            m,
		Logger:             logger.WithComponent(tlog.ComponentHTTP),
		Ready:              be.Ready,
		MaxUploadBytes:     cfg.MaxUploadBytes,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		TrustedProxies:     cfg.TrustedProxies,
	})
	if err != nil {
		logger.Error("Failed to configure HTTP server", tlog.FieldError, err.Error())
		os.Exit(1)
	}

	shutdownCtx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", tlog.FieldError, err.Error())
		}
		caches.Stop()
		if err := closePublisher(); err != nil {
			logger.Warn("Failed to close AMQP client", tlog.FieldError, err.Error())
		}
		if err := be.Close(); err != nil {
			logger.Warn("Failed to close backend", tlog.FieldError, err.Error())
		}
	})

	logger.Info("Starting taxlyzer server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"amqp_enabled", publisher != nil,
		"archive_enabled", archiver != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", tlog.FieldError, err.Error(), "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(shutdownCtx, done)
	logger.Info("Server stopped gracefully")
}

// openArchiver returns nil when archiving is off or S3 cannot be configured.
func openArchiver(ctx context.Context, cfg *config.Config, logger *tlog.Logger) ports.ReportArchiver {
	if !cfg.ArchiveEnabled() {
		return nil
	}
	a, err := archive.NewFromEnv(ctx, cfg.ReportS3Bucket, cfg.ReportS3Prefix, cfg.AWSRegion)
	if err != nil {
		logger.Warn("Report archive disabled", tlog.FieldError, err.Error())
		return nil
	}
	logger.Info("Archiving reports to S3", "bucket", cfg.ReportS3Bucket, "prefix", cfg.ReportS3Prefix)
	return a
}
