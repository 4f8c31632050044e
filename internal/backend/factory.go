package backend

import (
	"context"
	"fmt"
	"log/slog"

	"taxlyzer/internal/amqp"
	"taxlyzer/internal/config"
	tlog "taxlyzer/internal/log"
	"taxlyzer/internal/ports"
	"taxlyzer/internal/storage"
	"taxlyzer/internal/storage/memory"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *tlog.Logger
}

func NewFactory(logger *tlog.Logger) Factory {
	if logger == nil {
		logger = tlog.New(tlog.Config{Handler: slog.Default().Handler(), Component: tlog.ComponentBackend})
	}
	return &DefaultFactory{logger: logger}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteBackend:
		return f.createSQLiteBackend(config)
	case MemoryBackend:
		return f.createMemoryBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (*BackendResult, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)

	return &BackendResult{
		Store:   repo,
		Ready:   repo.Ping,
		Cleanup: repo.Close,
	}, nil
}

func (f *DefaultFactory) createMemoryBackend(config Config) (*BackendResult, error) {
	dataDir := config.DataDirectory
	if dataDir == "" {
		dataDir = "data"
	}

	store := memory.NewFromFiles(dataDir)
	f.logger.Info("Initialized memory backend", "data_directory", dataDir)

	return &BackendResult{Store: store}, nil
}

// OpenPublisher connects the sync publisher when AMQP is configured. Without
// AMQP, or when the broker is unreachable, it returns a nil publisher and the
// app keeps serving; pending invoices are picked up by the worker's poll.
func OpenPublisher(cfg *config.Config, logger *tlog.Logger) (ports.SyncPublisher, CleanupFunc) {
	noop := func() error { return nil }
	if logger == nil {
		logger = tlog.New(tlog.Config{Handler: slog.Default().Handler(), Component: tlog.ComponentBackend})
	}
	if !cfg.AMQPEnabled() {
		logger.Info("AMQP not configured, sync messages disabled")
		return nil, noop
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Warn("Failed to initialize AMQP client, continuing without sync messages", tlog.FieldError, err.Error())
		return nil, noop
	}

	logger.Info("Initialized AMQP client", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	return client, client.Close
}
