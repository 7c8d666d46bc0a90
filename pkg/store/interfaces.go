package store

import (
	"context"

	"cicerone/pkg/model"
)

// SessionStore handles session snapshot persistence.
type SessionStore interface {
	SaveSession(ctx context.Context, snap model.SessionSnapshot) error
	GetSession(ctx context.Context, sessionID string) (*model.SessionSnapshot, error)
	// LatestActiveSession returns the most recently updated non-terminal
	// session, or nil when none exists.
	LatestActiveSession(ctx context.Context) (*model.SessionSnapshot, error)
	ListSessions(ctx context.Context, limit int) ([]model.SessionSnapshot, error)
}

// EventStore handles the trip event journal.
type EventStore interface {
	SaveEvent(ctx context.Context, ev model.TripEvent) error
	GetEvents(ctx context.Context, sessionID string) ([]model.TripEvent, error)
}

// TourStore handles tour definition persistence.
type TourStore interface {
	SaveTour(ctx context.Context, t *model.Tour) error
	GetTour(ctx context.Context, id string) (*model.Tour, error)
	ListTours(ctx context.Context) ([]model.Tour, error)
}

// StateStore handles persistent application state.
type StateStore interface {
	GetState(ctx context.Context, key string) (string, bool)
	SetState(ctx context.Context, key, val string) error
	DeleteState(ctx context.Context, key string) error
}

// Store defines the repository interface.
// It composes all sub-interfaces for full store access.
// Consumers should depend on specific sub-interfaces when possible.
type Store interface {
	SessionStore
	EventStore
	TourStore
	StateStore

	// Close closes the store connection.
	Close() error
}
