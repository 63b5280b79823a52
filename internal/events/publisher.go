package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/wolfman30/leadops-platform/pkg/logging"
)

// Publisher records a domain event for downstream delivery.
type Publisher interface {
	Publish(ctx context.Context, eventType string, payload any) error
}

// InlinePublisher hands events straight to a DeliveryHandler. It is used when
// there is no database to hold an outbox; delivery errors are logged, not returned.
type InlinePublisher struct {
	handler DeliveryHandler
	logger  *logging.Logger
}

func NewInlinePublisher(handler DeliveryHandler, logger *logging.Logger) *InlinePublisher {
	if logger == nil {
		logger = logging.Default()
	}
	return &InlinePublisher{handler: handler, logger: logger}
}

func (p *InlinePublisher) Publish(ctx context.Context, eventType string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("events: marshal payload: %w", err)
	}
	if p.handler == nil {
		return nil
	}
	entry := OutboxEntry{
		ID:        uuid.New(),
		Type:      eventType,
		Payload:   data,
		CreatedAt: time.Now().UTC(),
	}
	if err := p.handler.Handle(ctx, entry); err != nil {
		p.logger.Error("inline delivery failed", "error", err, "event_id", entry.ID, "type", eventType)
	}
	return nil
}

// NopPublisher drops events.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, any) error { return nil }

var (
	_ Publisher = (*OutboxStore)(nil)
	_ Publisher = (*InlinePublisher)(nil)
	_ Publisher = NopPublisher{}
)
