package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/shopspring/decimal"

	"kvitt/internal/core"
)

// TotalIncome returns the sum of all income events of username.
func (c *Client) TotalIncome(ctx context.Context, username string) (decimal.Decimal, error) {
	return c.total(ctx, pathTotalIncome, "totalIncome", username)
}

// TotalExpense returns the sum of all expense events of username.
func (c *Client) TotalExpense(ctx context.Context, username string) (decimal.Decimal, error) {
	return c.total(ctx, pathTotalExpense, "totalExpense", username)
}

func (c *Client) total(ctx context.Context, path, field, username string) (decimal.Decimal, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, path, url.Values{"username": {username}}, nil, &raw); err != nil {
		return decimal.Zero, err
	}
	total, err := decodeTotal(raw, field)
	if err != nil {
		return decimal.Zero, fmt.Errorf("GET %s: %w: %v", path, ErrDecode, err)
	}
	return total, nil
}

// decodeTotal accepts a bare number, a numeric string or an object keyed by field.
// A missing field counts as zero.
func decodeTotal(raw json.RawMessage, field string) (decimal.Decimal, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &obj); err != nil {
			return decimal.Zero, err
		}
		v, ok := obj[field]
		if !ok {
			return decimal.Zero, nil
		}
		return core.DecodeDecimal(v)
	}
	return core.DecodeDecimal(trimmed)
}

// KvittStatus returns how many expenses the user is behind on.
func (c *Client) KvittStatus(ctx context.Context, username string) (core.KvittStatus, error) {
	var status core.KvittStatus
	if err := c.do(ctx, http.MethodGet, pathKvittStatus, url.Values{"username": {username}}, nil, &status); err != nil {
		return core.KvittStatus{}, err
	}
	if status.ExpensesBack < 0 {
		return core.KvittStatus{}, fmt.Errorf("GET %s: %w: negative expensesBack %d", pathKvittStatus, ErrDecode, status.ExpensesBack)
	}
	return status, nil
}

// Events lists every event of username in backend order.
func (c *Client) Events(ctx context.Context, username string) ([]core.Event, error) {
	var events []core.Event
	if err := c.do(ctx, http.MethodGet, pathAllEvents, url.Values{"username": {username}}, nil, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// CreateEvent stores a new event. The id is assigned by the backend.
func (c *Client) CreateEvent(ctx context.Context, e core.Event) error {
	e.ID = ""
	return c.do(ctx, http.MethodPost, pathCreateEvent, nil, e, nil)
}

// EditEvent replaces the event identified by e.ID.
func (c *Client) EditEvent(ctx context.Context, e core.Event) error {
	if e.ID == "" {
		return fmt.Errorf("PUT %s: missing event id", pathEditEvent)
	}
	return c.do(ctx, http.MethodPut, pathEditEvent, nil, e, nil)
}

// DeleteEvent removes the event with the given id.
func (c *Client) DeleteEvent(ctx context.Context, id core.EventID) error {
	if id == "" {
		return fmt.Errorf("DELETE %s: missing event id", pathDeleteEvent)
	}
	return c.do(ctx, http.MethodDelete, pathDeleteEvent, url.Values{"id": {id.String()}}, nil, nil)
}
