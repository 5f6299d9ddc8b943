// Package form drives the create/edit transaction modal.
//
// The modal is a tagged variant: Closed, Creating or Editing. A submission
// is validated locally first and only reaches the Writer when the input is
// acceptable.
package form

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"kvitt/internal/core"
)

// User-facing messages.
const (
	MsgMissingFields = "Vänligen fyll i både titel och belopp"
	MsgInvalidAmount = "Vänligen ange ett giltigt belopp"
	MsgInvalidDate   = "Vänligen ange ett giltigt datum"
	MsgCreateFailed  = "Kunde inte skapa transaktionen."
	MsgEditFailed    = "Kunde inte spara ändringen."
)

const dateLayout = "2006-01-02"

var (
	// ErrBusy rejects a submission while another one is in flight.
	ErrBusy = errors.New("form: submission in progress")
	// ErrClosed is returned when submitting with no form open.
	ErrClosed = errors.New("form: not open")
	// ErrSubmit wraps a Writer failure.
	ErrSubmit = errors.New("form: submit failed")
)

// ValidationError is a rejected input. Message is shown inline.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// Draft is what the form fields currently hold.
type Draft struct {
	Expense bool
	Title   string
	Amount  string
	Date    string
	Error   string
}

// State is one of Closed, Creating or Editing.
type State interface {
	isState()
}

type (
	Closed   struct{}
	Creating struct{ Draft Draft }
	Editing  struct {
		EventID  core.EventID
		Original core.Event
		Draft    Draft
	}
)

func (Closed) isState()   {}
func (Creating) isState() {}
func (Editing) isState()  {}

// Input is a submitted form.
type Input struct {
	Title  string
	Amount string
	Date   string
}

// Option configures a Controller.
type Option func(*Controller)

// WithAccountType sets the account new events are booked on.
func WithAccountType(accountType string) Option {
	return func(c *Controller) {
		if strings.TrimSpace(accountType) != "" {
			c.accountType = accountType
		}
	}
}

// WithClock overrides time.Now for the create timestamp.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// Controller owns the modal state of one session.
type Controller struct {
	writer      Writer
	refetch     func(ctx context.Context) error
	accountType string
	now         func() time.Time

	mu    sync.Mutex
	state State
	busy  bool
	// gen changes whenever the form is opened or closed.
	gen uint64
}

// NewController creates a closed form. refetch runs after every successful
// submission; its error is logged only.
func NewController(w Writer, refetch func(ctx context.Context) error, opts ...Option) *Controller {
	c := &Controller{
		writer:      w,
		refetch:     refetch,
		accountType: core.DefaultAccountType,
		now:         time.Now,
		state:       Closed{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Busy reports whether a submission is in flight.
func (c *Controller) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy
}

// OpenCreate opens an empty form for an income or an expense.
func (c *Controller) OpenCreate(expense bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.state = Creating{Draft: Draft{Expense: expense, Date: c.now().Format(dateLayout)}}
}

// OpenEdit opens the form pre-populated from e.
func (c *Controller) OpenEdit(e core.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	date := e.DateTime
	if t, ok := e.Time(); ok {
		date = t.Format(dateLayout)
	}
	c.gen++
	c.state = Editing{
		EventID:  e.ID,
		Original: e,
		Draft: Draft{
			Expense: e.Expense,
			Title:   e.Title,
			Amount:  e.Amount.Input(),
			Date:    date,
		},
	}
}

// Cancel closes the form and discards the draft.
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.state = Closed{}
}

// Submit validates in and sends it through the Writer as a create or an
// edit depending on the state. On success the form closes and the refetch
// hook runs. On failure the form stays open with Draft.Error set.
func (c *Controller) Submit(ctx context.Context, username string, in Input) error {
	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return ErrBusy
	}

	var (
		event   core.Event
		edit    bool
		failMsg string
		err     error
	)
	switch st := c.state.(type) {
	case Creating:
		st.Draft = withInput(st.Draft, in)
		event, err = c.buildCreate(st.Draft, username)
		if err != nil {
			st.Draft.Error = validationMessage(err)
		}
		c.state = st
		failMsg = MsgCreateFailed
	case Editing:
		st.Draft = withInput(st.Draft, in)
		event, err = c.buildEdit(st, username)
		if err != nil {
			st.Draft.Error = validationMessage(err)
		}
		c.state = st
		edit = true
		failMsg = MsgEditFailed
	default:
		c.mu.Unlock()
		return ErrClosed
	}
	if err != nil {
		c.mu.Unlock()
		return err
	}
	c.busy = true
	gen := c.gen
	c.mu.Unlock()

	if edit {
		err = c.writer.EditEvent(ctx, event)
	} else {
		err = c.writer.CreateEvent(ctx, event)
	}

	c.mu.Lock()
	c.busy = false
	if err != nil {
		// A Cancel during the call wins.
		if c.gen == gen {
			c.state = setError(c.state, failMsg)
		}
		c.mu.Unlock()
		slog.WarnContext(ctx, "Transaction submit failed", "edit", edit, "error", err)
		return fmt.Errorf("%w: %w", ErrSubmit, err)
	}
	if c.gen == gen {
		c.gen++
		c.state = Closed{}
	}
	c.mu.Unlock()

	if c.refetch != nil {
		if err := c.refetch(ctx); err != nil {
			slog.WarnContext(ctx, "Refetch after submit incomplete", "error", err)
		}
	}
	return nil
}

func withInput(d Draft, in Input) Draft {
	d.Title = in.Title
	d.Amount = in.Amount
	if in.Date != "" {
		d.Date = in.Date
	}
	d.Error = ""
	return d
}

func setError(s State, msg string) State {
	switch st := s.(type) {
	case Creating:
		st.Draft.Error = msg
		return st
	case Editing:
		st.Draft.Error = msg
		return st
	}
	return s
}

func validationMessage(err error) string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Message
	}
	return err.Error()
}

// validate checks title and amount, the fields both variants share.
func validate(d Draft) (string, core.Amount, error) {
	title := strings.TrimSpace(d.Title)
	if title == "" || strings.TrimSpace(d.Amount) == "" {
		return "", core.Amount{}, &ValidationError{Field: "title", Message: MsgMissingFields}
	}
	amount, err := core.ParseAmount(d.Amount)
	if err != nil {
		return "", core.Amount{}, &ValidationError{Field: "amount", Message: MsgInvalidAmount}
	}
	return title, amount, nil
}

func (c *Controller) buildCreate(d Draft, username string) (core.Event, error) {
	title, amount, err := validate(d)
	if err != nil {
		return core.Event{}, err
	}
	return core.Event{
		Title:       title,
		Amount:      amount,
		Expense:     d.Expense,
		DateTime:    c.now().Format(core.LocalDateTimeLayout),
		Username:    username,
		AccountType: c.accountType,
	}, nil
}

func (c *Controller) buildEdit(st Editing, username string) (core.Event, error) {
	title, amount, err := validate(st.Draft)
	if err != nil {
		return core.Event{}, err
	}
	e := st.Original
	e.ID = st.EventID
	e.Title = title
	e.Amount = amount
	e.Username = username
	if e.AccountType == "" {
		e.AccountType = c.accountType
	}

	date := strings.TrimSpace(st.Draft.Date)
	original := ""
	if t, ok := st.Original.Time(); ok {
		original = t.Format(dateLayout)
	}
	if date != "" && date != original {
		t, err := time.Parse(dateLayout, date)
		if err != nil {
			return core.Event{}, &ValidationError{Field: "date", Message: MsgInvalidDate}
		}
		e.DateTime = t.Format(core.LocalDateTimeLayout)
	}
	return e, nil
}
