// Package memory is a process-local ledger used when no spreadsheet is configured.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"kvitt/internal/sheets"
)

var (
	_ sheets.LedgerWriter = (*Ledger)(nil)
	_ sheets.LedgerReader = (*Ledger)(nil)
)

type Ledger struct {
	mu   sync.Mutex
	rows []sheets.LedgerRow
}

func New() *Ledger {
	return &Ledger{}
}

// AppendRow stores the row and returns a synthetic row reference.
func (l *Ledger) AppendRow(_ context.Context, row sheets.LedgerRow) (string, error) {
	if row.Username == "" || row.Op == "" {
		return "", errors.New("ledger row needs op and username")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rows = append(l.rows, row)
	return fmt.Sprintf("mem:%d", len(l.rows)), nil
}

func (l *Ledger) ListRows(_ context.Context, username string) ([]sheets.LedgerRow, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []sheets.LedgerRow
	for _, r := range l.rows {
		if r.Username == username {
			out = append(out, r)
		}
	}
	return out, nil
}

// Len returns the number of stored rows.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.rows)
}
