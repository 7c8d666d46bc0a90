// Package tracker collects engine counters for diagnostics.
package tracker

import (
	"sync"
	"sync/atomic"
)

// Tracker tracks engine statistics per session.
type Tracker struct {
	mu    sync.RWMutex
	stats map[string]*SessionStats
}

// SessionStats holds counters for one session.
// Fields are accessed atomically.
type SessionStats struct {
	FixesAccepted  int64
	FixesDiscarded int64
	Triggers       int64
	Skips          int64
	Recoveries     int64
}

// New creates a new Tracker.
func New() *Tracker {
	return &Tracker{
		stats: make(map[string]*SessionStats),
	}
}

// getStats returns the stats object for a session, creating it if needed.
func (t *Tracker) getStats(sessionID string) *SessionStats {
	t.mu.RLock()
	s, ok := t.stats[sessionID]
	t.mu.RUnlock()
	if ok {
		return s
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	// Double check
	if s, ok = t.stats[sessionID]; ok {
		return s
	}
	s = &SessionStats{}
	t.stats[sessionID] = s
	return s
}

// TrackFixAccepted increments the accepted fix counter.
func (t *Tracker) TrackFixAccepted(sessionID string) {
	atomic.AddInt64(&t.getStats(sessionID).FixesAccepted, 1)
}

// TrackFixDiscarded increments the discarded fix counter.
func (t *Tracker) TrackFixDiscarded(sessionID string) {
	atomic.AddInt64(&t.getStats(sessionID).FixesDiscarded, 1)
}

// TrackTrigger increments the waypoint trigger counter.
func (t *Tracker) TrackTrigger(sessionID string) {
	atomic.AddInt64(&t.getStats(sessionID).Triggers, 1)
}

// TrackSkip increments the skipped waypoint counter.
func (t *Tracker) TrackSkip(sessionID string) {
	atomic.AddInt64(&t.getStats(sessionID).Skips, 1)
}

// TrackRecovery increments the interruption recovery counter.
func (t *Tracker) TrackRecovery(sessionID string) {
	atomic.AddInt64(&t.getStats(sessionID).Recoveries, 1)
}

// Snapshot returns a copy of the current stats.
func (t *Tracker) Snapshot() map[string]SessionStats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	result := make(map[string]SessionStats)
	for k, v := range t.stats {
		result[k] = SessionStats{
			FixesAccepted:  atomic.LoadInt64(&v.FixesAccepted),
			FixesDiscarded: atomic.LoadInt64(&v.FixesDiscarded),
			Triggers:       atomic.LoadInt64(&v.Triggers),
			Skips:          atomic.LoadInt64(&v.Skips),
			Recoveries:     atomic.LoadInt64(&v.Recoveries),
		}
	}
	return result
}

// Forget drops the counters for a finished session.
func (t *Tracker) Forget(sessionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.stats, sessionID)
}
