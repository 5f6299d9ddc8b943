package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultAccountType is the account every event is booked on unless configured otherwise.
const DefaultAccountType = "Vardag"

type (
	// User is the authenticated identity. Only the username is known client side;
	// the backend keeps the credential in an HttpOnly cookie.
	User struct {
		Username string `json:"username"`
	}

	// EventID is the opaque, server-assigned identifier of an event.
	EventID string

	// Event is a single income or expense transaction.
	Event struct {
		ID          EventID `json:"id,omitempty"`
		Title       string  `json:"title"`
		Amount      Amount  `json:"amount"`
		Expense     bool    `json:"expense"`
		Paid        bool    `json:"paid,omitempty"` // set by the backend, only meaningful for expenses
		DateTime    string  `json:"dateTime"`
		Username    string  `json:"username"`
		AccountType string  `json:"accountType"`
	}

	// KvittStatus reports how many expenses the user's balance does not cover.
	KvittStatus struct {
		ExpensesBack  int    `json:"expensesBack"`
		LastKvittDate string `json:"lastKvittDate"`
	}

	// FinancialSummary is recomputed from totals on every fetch.
	FinancialSummary struct {
		TotalIncome  decimal.Decimal
		TotalExpense decimal.Decimal
		Balance      decimal.Decimal
	}
)

var (
	ErrEmptyTitle    = errors.New("empty title")
	ErrInvalidAmount = errors.New("invalid amount")
	ErrEmptyUsername = errors.New("empty username")
	ErrInvalidDate   = errors.New("invalid date")
)

// dateLayouts lists the ISO-8601 shapes the backend has been observed to emit.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// LocalDateTimeLayout is the wire layout used when this client produces a dateTime.
const LocalDateTimeLayout = "2006-01-02T15:04:05"

// ParseDateTime parses an ISO-8601 date or date-time string.
func ParseDateTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}

// Valid reports whether u identifies a user.
func (u User) Valid() bool {
	return strings.TrimSpace(u.Username) != ""
}

// UnmarshalJSON accepts both string and numeric ids.
func (id *EventID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = EventID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("event id: %w", err)
	}
	*id = EventID(n.String())
	return nil
}

// MarshalJSON emits integer-looking ids as numbers so a numeric backend key round-trips.
func (id EventID) MarshalJSON() ([]byte, error) {
	if _, err := strconv.ParseInt(string(id), 10, 64); err == nil {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

func (id EventID) String() string { return string(id) }

// Compare orders ids numerically when both are integers and lexically otherwise.
func (id EventID) Compare(other EventID) int {
	a, errA := strconv.ParseInt(string(id), 10, 64)
	b, errB := strconv.ParseInt(string(other), 10, 64)
	if errA == nil && errB == nil {
		switch {
		case a < b:
			return -1
		case a > b:
			return 1
		}
		return 0
	}
	return strings.Compare(string(id), string(other))
}

// Time returns the parsed dateTime; ok is false when the value cannot be parsed.
func (e Event) Time() (t time.Time, ok bool) {
	t, err := ParseDateTime(e.DateTime)
	return t, err == nil
}

// Validate checks the fields the client is responsible for.
func (e Event) Validate() error {
	if strings.TrimSpace(e.Title) == "" {
		return ErrEmptyTitle
	}
	if !e.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if strings.TrimSpace(e.Username) == "" {
		return ErrEmptyUsername
	}
	if _, err := ParseDateTime(e.DateTime); err != nil {
		return err
	}
	return nil
}

// Settled reports the kvitt state.
func (k KvittStatus) Settled() bool {
	return k.ExpensesBack == 0
}

// NewFinancialSummary derives the balance from the two totals.
func NewFinancialSummary(income, expense decimal.Decimal) FinancialSummary {
	return FinancialSummary{
		TotalIncome:  income,
		TotalExpense: expense,
		Balance:      income.Sub(expense),
	}
}
