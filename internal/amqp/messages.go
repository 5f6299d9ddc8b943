package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"kvitt/internal/core"
)

// Op is the kind of change a TransactionMessage reports.
type Op string

const (
	OpCreate Op = "create"
	OpEdit   Op = "edit"
	OpDelete Op = "delete"
)

// TransactionMessage announces a successful change to a user's events.
// Deletes carry only the id and username.
type TransactionMessage struct {
	Op        Op              `json:"op"`
	EventID   string          `json:"event_id,omitempty"`
	Username  string          `json:"username"`
	Title     string          `json:"title,omitempty"`
	Amount    decimal.Decimal `json:"amount"`
	Expense   bool            `json:"expense"`
	DateTime  string          `json:"date_time,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewTransactionMessage describes op applied to e.
func NewTransactionMessage(op Op, e core.Event) *TransactionMessage {
	return &TransactionMessage{
		Op:        op,
		EventID:   e.ID.String(),
		Username:  e.Username,
		Title:     e.Title,
		Amount:    e.Amount.Decimal,
		Expense:   e.Expense,
		DateTime:  e.DateTime,
		Timestamp: time.Now().UTC(),
	}
}

// NewDeleteMessage describes the removal of id.
func NewDeleteMessage(username string, id core.EventID) *TransactionMessage {
	return &TransactionMessage{
		Op:        OpDelete,
		EventID:   id.String(),
		Username:  username,
		Timestamp: time.Now().UTC(),
	}
}

// Validate rejects messages a consumer cannot act on.
func (m *TransactionMessage) Validate() error {
	switch m.Op {
	case OpCreate, OpEdit:
	case OpDelete:
		if m.EventID == "" {
			return errors.New("delete without event_id")
		}
	default:
		return fmt.Errorf("unknown op %q", m.Op)
	}
	if m.Username == "" {
		return errors.New("missing username")
	}
	return nil
}

// ToJSON converts the message to JSON bytes.
func (m *TransactionMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// TransactionMessageFromJSON decodes and validates a message.
func TransactionMessageFromJSON(data []byte) (*TransactionMessage, error) {
	var msg TransactionMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
