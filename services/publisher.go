package services

import (
	"context"
	"log/slog"
	"peer-chat/domain/event"
)

// EventPublisher hands domain events to the fan-out loop.
// Publishing blocks while the loop is saturated, until ctx gives up.
type EventPublisher struct {
	events chan<- event.DomainEvent
	log    *slog.Logger
	onDrop func()
}

func NewEventPublisher(events chan<- event.DomainEvent, log *slog.Logger) EventPublisher {
	return EventPublisher{events: events, log: log, onDrop: func() {}}
}

// WithDropCounter is called every time an event could not be queued.
func (p EventPublisher) WithDropCounter(onDrop func()) EventPublisher {
	p.onDrop = onDrop
	return p
}

func (p EventPublisher) Publish(ctx context.Context, evt event.DomainEvent) error {
	select {
	case p.events <- evt:
		return nil
	case <-ctx.Done():
		p.onDrop()
		p.log.Warn("Domain event dropped", "chat_id", evt.Chat(), "error", ctx.Err())
		return ctx.Err()
	}
}
