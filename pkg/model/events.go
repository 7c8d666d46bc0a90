package model

import "time"

// EventType identifies a session lifecycle event.
type EventType string

const (
	EventTourStarted    EventType = "tour_started"
	EventPointTriggered EventType = "point_triggered"
	EventPointSkipped   EventType = "point_skipped"
	EventTourCompleted  EventType = "tour_completed"
	EventTourAbandoned  EventType = "tour_abandoned"
	EventModeChanged    EventType = "mode_changed"
)

// TripEvent is a lifecycle event emitted by the session orchestrator.
// The engine produces these; ownership passes to the event sink.
type TripEvent struct {
	Type       EventType     `json:"type"`
	SessionID  string        `json:"session_id"`
	TourID     string        `json:"tour_id"`
	WaypointID string        `json:"waypoint_id,omitempty"`
	Mode       TriggerMode   `json:"trigger_mode"`
	Elapsed    time.Duration `json:"elapsed"`
	Timestamp  time.Time     `json:"timestamp"`
	// Detail carries diagnostic context (e.g. the skip reason).
	Detail string `json:"detail,omitempty"`
}

// SessionSnapshot is a value copy of the orchestrator's state, safe to hand
// to any observer. Presentation layers poll or subscribe; they never see the
// mutable state itself.
type SessionSnapshot struct {
	SessionID         string        `json:"session_id"`
	TourID            string        `json:"tour_id"`
	Status            SessionStatus `json:"status"`
	Mode              TriggerMode   `json:"trigger_mode"`
	ExpectedIndex     int           `json:"expected_index"`
	CurrentWaypointID string        `json:"current_waypoint_id,omitempty"`
	PointsTriggered   int           `json:"points_triggered"`
	PointsSkipped     int           `json:"points_skipped"`
	WaypointCount     int           `json:"waypoint_count"`
	StartedAt         time.Time     `json:"started_at"`
}
