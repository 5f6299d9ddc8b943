// Package worker exports transaction notifications to the ledger.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"kvitt/internal/amqp"
	"kvitt/internal/sheets"
)

// Consumer delivers transaction notifications.
type Consumer interface {
	ConsumeTransactions(ctx context.Context, handler func(context.Context, *amqp.TransactionMessage) error) error
}

// LedgerWorker appends one ledger row per transaction message.
type LedgerWorker struct {
	ledger sheets.LedgerWriter
	now    func() time.Time
}

// NewLedgerWorker creates a worker writing to ledger.
func NewLedgerWorker(ledger sheets.LedgerWriter) *LedgerWorker {
	return &LedgerWorker{ledger: ledger, now: time.Now}
}

// HandleMessage appends msg to the ledger. A returned error makes the
// consumer requeue the message.
func (w *LedgerWorker) HandleMessage(ctx context.Context, msg *amqp.TransactionMessage) error {
	row := sheets.LedgerRow{
		RecordedAt: msg.Timestamp,
		Op:         string(msg.Op),
		EventID:    msg.EventID,
		Username:   msg.Username,
		Title:      msg.Title,
		Amount:     msg.Amount,
		Expense:    msg.Expense,
		DateTime:   msg.DateTime,
	}
	if row.RecordedAt.IsZero() {
		row.RecordedAt = w.now().UTC()
	}

	ref, err := w.ledger.AppendRow(ctx, row)
	if err != nil {
		return fmt.Errorf("append ledger row: %w", err)
	}

	slog.InfoContext(ctx, "Transaction exported to ledger",
		"op", msg.Op,
		"event_id", msg.EventID,
		"username", msg.Username,
		"row_ref", ref)
	return nil
}

// Run consumes until ctx is cancelled.
func (w *LedgerWorker) Run(ctx context.Context, consumer Consumer) error {
	slog.InfoContext(ctx, "Ledger worker started")
	err := consumer.ConsumeTransactions(ctx, w.HandleMessage)
	if ctx.Err() != nil {
		slog.InfoContext(ctx, "Ledger worker stopped")
		return nil
	}
	return err
}
