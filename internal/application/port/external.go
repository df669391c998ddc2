package port

import (
	"context"
	"io"

	"github.com/garyjia/erp-workflow/internal/domain/entity"
	"github.com/garyjia/erp-workflow/internal/domain/event"
)

// MessageSender delivers a plain-text notification to a user
type MessageSender interface {
	SendText(ctx context.Context, to *entity.User, text string) error
}

// EventPublisher hands committed-transition events to observers without waiting
type EventPublisher interface {
	DispatchAsync(ctx context.Context, evt *event.Event)
}

// ViewExporter renders a list view into a spreadsheet
type ViewExporter interface {
	Export(w io.Writer, title string, rows []*entity.ApplicationWithDetails) error
}
