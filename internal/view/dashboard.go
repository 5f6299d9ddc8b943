package view

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"kvitt/internal/core"
)

// Reader is the read side of the backend.
type Reader interface {
	TotalIncome(ctx context.Context, username string) (decimal.Decimal, error)
	TotalExpense(ctx context.Context, username string) (decimal.Decimal, error)
	KvittStatus(ctx context.Context, username string) (core.KvittStatus, error)
	Events(ctx context.Context, username string) ([]core.Event, error)
}

// Snapshot is an immutable copy of the dashboard sections. A nil section has
// never been fetched successfully.
type Snapshot struct {
	Summary *core.FinancialSummary
	Kvitt   *core.KvittStatus
	Events  []core.Event
}

// Dashboard holds the last successfully fetched value of every section.
type Dashboard struct {
	reader Reader

	mu      sync.RWMutex
	summary *core.FinancialSummary
	kvitt   *core.KvittStatus
	events  []core.Event
}

// NewDashboard creates an empty dashboard.
func NewDashboard(r Reader) *Dashboard {
	return &Dashboard{reader: r}
}

// Refresh fetches the four aggregates concurrently. Each section is replaced
// only when its reads succeeded; the summary needs both totals. The returned
// error joins every failed read and is meant for logging.
func (d *Dashboard) Refresh(ctx context.Context, username string) error {
	var (
		income, expense     decimal.Decimal
		kvitt               core.KvittStatus
		events              []core.Event
		incErr, expErr      error
		kvittErr, eventsErr error
	)

	// A plain group: one failing read must not cancel the others.
	var g errgroup.Group
	g.Go(func() error {
		income, incErr = d.reader.TotalIncome(ctx, username)
		return nil
	})
	g.Go(func() error {
		expense, expErr = d.reader.TotalExpense(ctx, username)
		return nil
	})
	g.Go(func() error {
		kvitt, kvittErr = d.reader.KvittStatus(ctx, username)
		return nil
	})
	g.Go(func() error {
		events, eventsErr = d.reader.Events(ctx, username)
		return nil
	})
	_ = g.Wait()

	d.mu.Lock()
	if incErr == nil && expErr == nil {
		summary := Summarize(income, expense)
		d.summary = &summary
	}
	if kvittErr == nil {
		d.kvitt = &kvitt
	}
	if eventsErr == nil {
		d.events = SortEvents(events)
	}
	d.mu.Unlock()

	var errs []error
	for _, e := range []struct {
		section string
		err     error
	}{
		{"total income", incErr},
		{"total expense", expErr},
		{"kvitt status", kvittErr},
		{"events", eventsErr},
	} {
		if e.err != nil {
			slog.WarnContext(ctx, "Dashboard section not refreshed", "section", e.section, "error", e.err)
			errs = append(errs, fmt.Errorf("%s: %w", e.section, e.err))
		}
	}
	return errors.Join(errs...)
}

// Snapshot returns the current sections.
func (d *Dashboard) Snapshot() Snapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()
	s := Snapshot{Events: append([]core.Event(nil), d.events...)}
	if d.summary != nil {
		summary := *d.summary
		s.Summary = &summary
	}
	if d.kvitt != nil {
		kvitt := *d.kvitt
		s.Kvitt = &kvitt
	}
	return s
}

// Find returns the event with id from the last fetched list.
func (d *Dashboard) Find(id core.EventID) (core.Event, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, e := range d.events {
		if e.ID == id {
			return e, true
		}
	}
	return core.Event{}, false
}

// Reset forgets every section, e.g. after logout.
func (d *Dashboard) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.summary, d.kvitt, d.events = nil, nil, nil
}
