package backend

import (
	"context"
	"fmt"
	"log/slog"

	"kvitt/internal/amqp"
	"kvitt/internal/session"
	gsheet "kvitt/internal/sheets/google"
	"kvitt/internal/sheets/memory"
	"kvitt/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateSessionStorage implements Factory.CreateSessionStorage
func (f *DefaultFactory) CreateSessionStorage(_ context.Context, config Config) (session.Storage, error) {
	switch config.SessionBackend {
	case SQLiteBackend:
		repo, err := storage.NewSessionRepository(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite session storage: %w", err)
		}
		f.logger.Info("Initialized SQLite session storage", "db_path", config.SQLiteDBPath)
		return repo, nil
	case MemoryBackend:
		f.logger.Info("Initialized memory session storage")
		return session.NewMemoryStorage(), nil
	default:
		return nil, fmt.Errorf("unsupported session backend: %s", config.SessionBackend)
	}
}

// CreateLedger implements Factory.CreateLedger
func (f *DefaultFactory) CreateLedger(ctx context.Context, config Config) (Ledger, error) {
	switch config.LedgerBackend {
	case SheetsBackend:
		cli, err := gsheet.NewServiceAccount(ctx, config.GoogleSpreadsheetID, config.GoogleSheetName)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
		}
		f.logger.Info("Initialized Google Sheets ledger")
		return cli, nil
	case MemoryBackend:
		f.logger.Info("Initialized memory ledger")
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unsupported ledger backend: %s", config.LedgerBackend)
	}
}

// CreateBroker implements Factory.CreateBroker
func (f *DefaultFactory) CreateBroker(_ context.Context, config Config) (*amqp.Client, error) {
	if config.AMQPURL == "" {
		f.logger.Info("AMQP not configured, change notifications disabled")
		return nil, nil
	}
	client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize AMQP client: %w", err)
	}
	f.logger.Info("Initialized AMQP client",
		"exchange", config.AMQPExchange,
		"queue", config.AMQPQueue)
	return client, nil
}
