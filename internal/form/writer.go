package form

import (
	"context"

	"kvitt/internal/core"
)

//go:generate mockgen -destination=mocks/mock_writer.go -source=writer.go Writer

// Writer persists a submitted form.
type Writer interface {
	CreateEvent(ctx context.Context, e core.Event) error
	EditEvent(ctx context.Context, e core.Event) error
}
