package store

import (
	"context"
	"log/slog"
	"time"

	"cicerone/pkg/model"
)

// EventSink journals trip events through an EventStore. It satisfies the
// event sink contract: a failed write is logged and dropped, never
// propagated back to the session.
type EventSink struct {
	events EventStore
}

// NewEventSink creates a sink writing to es.
func NewEventSink(es EventStore) *EventSink {
	return &EventSink{events: es}
}

// Emit persists ev. Best effort.
func (s *EventSink) Emit(ev model.TripEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.events.SaveEvent(ctx, ev); err != nil {
		slog.Warn("Store: failed to journal trip event", "type", ev.Type, "session", ev.SessionID, "error", err)
	}
}
