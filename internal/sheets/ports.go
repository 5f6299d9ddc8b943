// Package sheets defines the ledger the export worker writes to.
package sheets

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Ports for outbound adapters.
type (
	// LedgerRow is one audit line: a change a user made to an event.
	LedgerRow struct {
		RecordedAt time.Time
		Op         string
		EventID    string
		Username   string
		Title      string
		Amount     decimal.Decimal
		Expense    bool
		DateTime   string
	}

	LedgerWriter interface {
		AppendRow(ctx context.Context, row LedgerRow) (rowRef string, err error)
	}

	// LedgerReader lists the rows of one user in the order they were written.
	LedgerReader interface {
		ListRows(ctx context.Context, username string) ([]LedgerRow, error)
	}
)

// Kind is the label used for the expense flag in exported rows.
func (r LedgerRow) Kind() string {
	if r.Expense {
		return "utgift"
	}
	return "inkomst"
}
