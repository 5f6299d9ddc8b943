package services

import (
	"context"
	"errors"
	"testing"

	"kvitt/internal/amqp"
	"kvitt/internal/core"
)

type fakeEvents struct {
	created []core.Event
	edited  []core.Event
	deleted []core.EventID
	err     error
}

func (f *fakeEvents) CreateEvent(_ context.Context, e core.Event) error {
	if f.err != nil {
		return f.err
	}
	f.created = append(f.created, e)
	return nil
}

func (f *fakeEvents) EditEvent(_ context.Context, e core.Event) error {
	if f.err != nil {
		return f.err
	}
	f.edited = append(f.edited, e)
	return nil
}

func (f *fakeEvents) DeleteEvent(_ context.Context, id core.EventID) error {
	if f.err != nil {
		return f.err
	}
	f.deleted = append(f.deleted, id)
	return nil
}

type fakePublisher struct {
	msgs []*amqp.TransactionMessage
	err  error
}

func (f *fakePublisher) PublishTransaction(_ context.Context, msg *amqp.TransactionMessage) error {
	f.msgs = append(f.msgs, msg)
	return f.err
}

var rent = core.Event{
	ID:       "3",
	Title:    "Hyra",
	Amount:   core.AmountFromInt(5000),
	Expense:  true,
	DateTime: "2025-01-01T10:00:00",
	Username: "anna",
}

func TestTransactionService_PublishesAfterWrite(t *testing.T) {
	events := &fakeEvents{}
	pub := &fakePublisher{}
	svc := NewTransactionService(events, pub)
	ctx := context.Background()

	if err := svc.CreateEvent(ctx, rent); err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}
	if err := svc.EditEvent(ctx, rent); err != nil {
		t.Fatalf("EditEvent: %v", err)
	}
	if err := svc.DeleteEvent(ctx, "anna", rent.ID); err != nil {
		t.Fatalf("DeleteEvent: %v", err)
	}

	if len(events.created) != 1 || len(events.edited) != 1 || len(events.deleted) != 1 {
		t.Fatalf("backend calls = %d/%d/%d", len(events.created), len(events.edited), len(events.deleted))
	}
	want := []amqp.Op{amqp.OpCreate, amqp.OpEdit, amqp.OpDelete}
	if len(pub.msgs) != len(want) {
		t.Fatalf("published %d messages, want %d", len(pub.msgs), len(want))
	}
	for i, op := range want {
		if pub.msgs[i].Op != op {
			t.Errorf("msgs[%d].Op = %s, want %s", i, pub.msgs[i].Op, op)
		}
		if pub.msgs[i].Username != "anna" {
			t.Errorf("msgs[%d].Username = %q", i, pub.msgs[i].Username)
		}
	}
}

func TestTransactionService_BackendFailureSkipsPublish(t *testing.T) {
	backendErr := errors.New("boom")
	pub := &fakePublisher{}
	svc := NewTransactionService(&fakeEvents{err: backendErr}, pub)

	err := svc.CreateEvent(context.Background(), rent)
	if !errors.Is(err, backendErr) {
		t.Fatalf("err = %v, want wrapped backend error", err)
	}
	if len(pub.msgs) != 0 {
		t.Fatalf("published %d messages after a failed write", len(pub.msgs))
	}
}

func TestTransactionService_PublishFailureIsNotFatal(t *testing.T) {
	svc := NewTransactionService(&fakeEvents{}, &fakePublisher{err: amqp.ErrCircuitOpen})
	if err := svc.EditEvent(context.Background(), rent); err != nil {
		t.Fatalf("EditEvent: %v", err)
	}
}

func TestTransactionService_NilPublisher(t *testing.T) {
	events := &fakeEvents{}
	svc := NewTransactionService(events, nil)
	if err := svc.DeleteEvent(context.Background(), "anna", "9"); err != nil {
		t.Fatalf("DeleteEvent: %v", err)
	}
	if len(events.deleted) != 1 {
		t.Fatal("delete not forwarded")
	}
}
