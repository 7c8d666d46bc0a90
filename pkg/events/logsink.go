package events

import (
	"log/slog"

	"cicerone/pkg/model"
)

// LogSink writes trip events to the structured log.
type LogSink struct{}

// Emit logs ev at info level.
func (LogSink) Emit(ev model.TripEvent) {
	attrs := []any{
		"session", ev.SessionID,
		"tour", ev.TourID,
		"mode", ev.Mode,
		"elapsed", ev.Elapsed,
	}
	if ev.WaypointID != "" {
		attrs = append(attrs, "waypoint", ev.WaypointID)
	}
	if ev.Detail != "" {
		attrs = append(attrs, "detail", ev.Detail)
	}
	slog.Info("Trip: "+string(ev.Type), attrs...)
}
