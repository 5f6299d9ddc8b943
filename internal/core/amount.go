// Package core holds the domain types shared by the gateway, the session
// layer and the views.
//
// Amounts cross the wire as either JSON numbers or numeric strings. They are
// normalized into Amount exactly once, when decoded, and never re-parsed by
// view code.
package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Amount is a decimal money value in kronor.
type Amount struct {
	decimal.Decimal
}

// NewAmount wraps d.
func NewAmount(d decimal.Decimal) Amount {
	return Amount{Decimal: d}
}

// AmountFromInt is a convenience for whole-krona amounts.
func AmountFromInt(v int64) Amount {
	return Amount{Decimal: decimal.NewFromInt(v)}
}

// Bounds on user input. An amount has at most maxIntegerDigits digits before
// the decimal point and is at least 10^minMagnitude.
const (
	maxAmountInput   = 32
	maxIntegerDigits = 15
	minMagnitude     = -15
)

// ParseAmount parses user input into a strictly positive amount.
//
// Both "12.50" and "12,50" are accepted. Anything that is not a finite
// number greater than zero, or lies outside the money bounds above, is
// rejected with ErrInvalidAmount.
func ParseAmount(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Amount{}, ErrInvalidAmount
	}
	if len(s) > maxAmountInput {
		return Amount{}, fmt.Errorf("%w: too long", ErrInvalidAmount)
	}
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if !d.IsPositive() {
		return Amount{}, fmt.Errorf("%w: must be greater than zero", ErrInvalidAmount)
	}
	// Position of the leading digit; computed from the coefficient and the
	// exponent so huge exponents are never expanded.
	magnitude := int64(d.NumDigits()) + int64(d.Exponent())
	if magnitude > maxIntegerDigits {
		return Amount{}, fmt.Errorf("%w: too large", ErrInvalidAmount)
	}
	if magnitude <= minMagnitude {
		return Amount{}, fmt.Errorf("%w: too small", ErrInvalidAmount)
	}
	return Amount{Decimal: d}, nil
}

// decodeDecimal accepts a JSON number, a numeric string, an empty string or null.
func decodeDecimal(b []byte) (decimal.Decimal, error) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return decimal.Zero, nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return decimal.Zero, err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return decimal.Zero, nil
		}
		return decimal.NewFromString(strings.ReplaceAll(s, ",", "."))
	}
	return decimal.NewFromString(string(b))
}

// DecodeDecimal exposes the lenient number-or-string decoding to the gateway.
func DecodeDecimal(raw json.RawMessage) (decimal.Decimal, error) {
	d, err := decodeDecimal(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrInvalidAmount, string(raw))
	}
	return d, nil
}

// UnmarshalJSON accepts numbers and numeric strings.
func (a *Amount) UnmarshalJSON(b []byte) error {
	d, err := decodeDecimal(b)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, string(b))
	}
	a.Decimal = d
	return nil
}

// MarshalJSON always writes a JSON number.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.Decimal.String()), nil
}

// Input renders the amount the way a form field shows it.
func (a Amount) Input() string {
	return a.Decimal.String()
}
