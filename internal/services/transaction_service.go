package services

import (
	"context"
	"fmt"
	"log/slog"

	"kvitt/internal/amqp"
	"kvitt/internal/core"
)

// EventWriter is the backend surface the service mutates through.
type EventWriter interface {
	CreateEvent(ctx context.Context, e core.Event) error
	EditEvent(ctx context.Context, e core.Event) error
	DeleteEvent(ctx context.Context, id core.EventID) error
}

// Publisher announces committed changes.
type Publisher interface {
	PublishTransaction(ctx context.Context, msg *amqp.TransactionMessage) error
}

// TransactionService writes events to the backend and, once the backend has
// accepted a change, publishes a notification for the ledger export. A
// failed publish never fails the request.
type TransactionService struct {
	events    EventWriter
	publisher Publisher
}

// NewTransactionService creates a service. A nil publisher disables notifications.
func NewTransactionService(events EventWriter, publisher Publisher) *TransactionService {
	return &TransactionService{events: events, publisher: publisher}
}

// CreateEvent stores a new event.
func (s *TransactionService) CreateEvent(ctx context.Context, e core.Event) error {
	if err := s.events.CreateEvent(ctx, e); err != nil {
		return fmt.Errorf("create event: %w", err)
	}
	s.publish(ctx, amqp.NewTransactionMessage(amqp.OpCreate, e))
	return nil
}

// EditEvent replaces an existing event.
func (s *TransactionService) EditEvent(ctx context.Context, e core.Event) error {
	if err := s.events.EditEvent(ctx, e); err != nil {
		return fmt.Errorf("edit event %s: %w", e.ID, err)
	}
	s.publish(ctx, amqp.NewTransactionMessage(amqp.OpEdit, e))
	return nil
}

// DeleteEvent removes the event id owned by username.
func (s *TransactionService) DeleteEvent(ctx context.Context, username string, id core.EventID) error {
	if err := s.events.DeleteEvent(ctx, id); err != nil {
		return fmt.Errorf("delete event %s: %w", id, err)
	}
	s.publish(ctx, amqp.NewDeleteMessage(username, id))
	return nil
}

func (s *TransactionService) publish(ctx context.Context, msg *amqp.TransactionMessage) {
	if s.publisher == nil {
		slog.DebugContext(ctx, "AMQP publisher not configured, skipping notification", "op", msg.Op)
		return
	}
	if err := s.publisher.PublishTransaction(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "Failed to publish transaction message",
			"op", msg.Op,
			"event_id", msg.EventID,
			"error", err)
	}
}
