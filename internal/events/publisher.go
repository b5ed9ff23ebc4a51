package events

import (
	"context"
	"log/slog"
)

// Publisher delivers events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, ev *Event) error
	Close()
}

// Nop discards every event. It is used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, *Event) error { return nil }
func (Nop) Close()                                {}

// Emit builds and publishes an event. Failures are logged and returned so
// the caller can count them; request paths never fail on them.
func Emit(ctx context.Context, p Publisher, eventType Type, entityID string, payload interface{}) error {
	if p == nil {
		return nil
	}
	ev, err := New(eventType, entityID, payload)
	if err != nil {
		slog.Warn("building event", "type", eventType, "error", err)
		return err
	}
	if err := p.Publish(ctx, ev); err != nil {
		slog.Warn("publishing event", "type", eventType, "entity_id", entityID, "error", err)
		return err
	}
	return nil
}
