package backend

import (
	"context"

	"kvitt/internal/amqp"
	"kvitt/internal/session"
	"kvitt/internal/sheets"
)

// Ledger is a ledger that can both record and list rows.
type Ledger interface {
	sheets.LedgerWriter
	sheets.LedgerReader
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// Factory creates the pluggable pieces of the server and the worker.
type Factory interface {
	// CreateSessionStorage returns where per-browser session state is persisted.
	CreateSessionStorage(ctx context.Context, config Config) (session.Storage, error)
	// CreateLedger returns the ledger change notifications are exported to.
	CreateLedger(ctx context.Context, config Config) (Ledger, error)
	// CreateBroker dials AMQP. It returns nil, nil when AMQP is not configured.
	CreateBroker(ctx context.Context, config Config) (*amqp.Client, error)
}

// Config holds configuration for backend creation
type Config struct {
	SessionBackend BackendType
	LedgerBackend  BackendType

	// SQLite specific
	SQLiteDBPath string

	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets specific
	GoogleSpreadsheetID string
	GoogleSheetName     string
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	SheetsBackend BackendType = "sheets"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValidSession reports whether bt can hold session state.
func (bt BackendType) IsValidSession() bool {
	return bt == SQLiteBackend || bt == MemoryBackend
}

// IsValidLedger reports whether bt can hold the ledger.
func (bt BackendType) IsValidLedger() bool {
	return bt == SheetsBackend || bt == MemoryBackend
}
