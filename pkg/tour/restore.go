package tour

import (
	"context"
	"fmt"
	"log/slog"

	"cicerone/pkg/model"
)

// Restore resumes a persisted non-terminal session. The session continues
// in Tracking at its saved position: a narration that was cut off by the
// restart is not replayed, since its waypoint had already triggered.
func (o *Orchestrator) Restore(ctx context.Context, t *model.Tour, snap model.SessionSnapshot) error {
	if t == nil {
		return fmt.Errorf("nil tour")
	}
	if err := t.Validate(); err != nil {
		return fmt.Errorf("invalid tour: %w", err)
	}
	if snap.SessionID == "" {
		return fmt.Errorf("snapshot has no session id")
	}
	if snap.Status.Terminal() {
		return ErrSessionTerminal
	}
	if snap.TourID != t.ID {
		return fmt.Errorf("snapshot is for tour %q, not %q", snap.TourID, t.ID)
	}
	if snap.ExpectedIndex < 0 || snap.ExpectedIndex > len(t.Waypoints) {
		return fmt.Errorf("snapshot expected index %d out of range", snap.ExpectedIndex)
	}

	mode := snap.Mode
	if mode == "" {
		mode = model.TriggerModeGPS
	}

	o.mu.Lock()
	if o.status != model.StatusIdle && !o.status.Terminal() {
		o.mu.Unlock()
		return ErrSessionActive
	}
	o.ctx = ctx
	o.sessionID = snap.SessionID
	o.tour = t
	o.mode = mode
	o.expected = snap.ExpectedIndex
	o.triggered = snap.PointsTriggered
	o.skipped = snap.PointsSkipped
	o.startedAt = snap.StartedAt
	o.currentWID = ""
	o.lastFix = nil
	o.playGen++

	if o.expected >= len(t.Waypoints) {
		// Every waypoint was already consumed; the restart interrupted the
		// final narration. Finish the tour now.
		o.status = model.StatusCompleting
		o.emitLocked(model.EventTourCompleted, "", "restored past last waypoint")
		o.status = model.StatusCompleted
		o.persistLocked()
		o.mu.Unlock()
		slog.Info("Tour: restored session was already past its last waypoint, completing", "session", snap.SessionID)
		return nil
	}

	o.status = model.StatusTracking
	o.persistLocked()
	o.mu.Unlock()

	slog.Info("Tour: session restored", "session", snap.SessionID, "tour", t.ID, "mode", mode, "next_waypoint", snap.ExpectedIndex+1)

	o.stopLocomotion()
	if mode == model.TriggerModeGPS {
		o.startLocomotion(ctx)
	}
	return nil
}
