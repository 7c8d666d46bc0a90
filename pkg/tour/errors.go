package tour

import "errors"

var (
	// ErrSessionTerminal is returned for operations on a completed or
	// abandoned session. Terminal states are absorbing.
	ErrSessionTerminal = errors.New("session already terminal")

	// ErrNoSession is returned when no session has been started.
	ErrNoSession = errors.New("no active session")

	// ErrSessionActive is returned when starting a session while another
	// one is still in flight.
	ErrSessionActive = errors.New("session already active")

	// ErrNoNarration is returned for playback controls when no waypoint
	// narration is in flight.
	ErrNoNarration = errors.New("no narration in progress")
)
