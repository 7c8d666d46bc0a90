package model

import (
	"fmt"
	"time"
)

// TriggerMode describes how waypoints are advanced within a session.
type TriggerMode string

const (
	// TriggerModeGPS advances waypoints from geofence evaluation of live fixes.
	TriggerModeGPS TriggerMode = "gps"
	// TriggerModeManual advances waypoints only on explicit user action.
	TriggerModeManual TriggerMode = "manual"
)

// SessionStatus is the state of a tour session.
type SessionStatus string

const (
	StatusIdle           SessionStatus = "idle"
	StatusTracking       SessionStatus = "tracking"
	StatusPointTriggered SessionStatus = "point_triggered"
	StatusCompleting     SessionStatus = "completing"
	StatusCompleted      SessionStatus = "completed"
	StatusAbandoned      SessionStatus = "abandoned"
)

// Terminal reports whether the status is a terminal state.
func (s SessionStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusAbandoned
}

// Waypoint is a fixed geographic point in a tour with associated narration
// media and a trigger radius. Immutable for the lifetime of a session.
type Waypoint struct {
	ID            string  `json:"id"`
	SequenceOrder int     `json:"sequence_order"` // 1-based, dense, unique
	Lat           float64 `json:"lat"`
	Lon           float64 `json:"lon"`
	// TriggerRadius is the arrival threshold in meters.
	TriggerRadius float64 `json:"trigger_radius_m"`
	// MediaRef is a resolved playable resource: a local file path or a
	// remote URL. Resolution (download manager, URL signing) happens
	// upstream; the engine only consumes the reference.
	MediaRef string `json:"media_ref"`
	// SubtitleCues are optional ordered, non-overlapping caption ranges.
	SubtitleCues []SubtitleCue `json:"subtitle_cues,omitempty"`
	// SubtitleFile optionally points at an SRT file to load cues from.
	SubtitleFile string `json:"subtitle_file,omitempty"`

	Name string `json:"name,omitempty"`
}

// SubtitleCue is a caption active during [Start, End) of the waypoint's audio.
type SubtitleCue struct {
	Start time.Duration `json:"start"`
	End   time.Duration `json:"end"`
	Text  string        `json:"text"`
}

// Tour is an ordered, already-localized waypoint list supplied at session
// start.
type Tour struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Language  string     `json:"language,omitempty"`
	Waypoints []Waypoint `json:"waypoints"`
}

// Validate checks the structural invariants of a tour definition:
// sequence_order values form a contiguous ascending 1-based sequence and
// subtitle cues are ordered and non-overlapping.
func (t *Tour) Validate() error {
	if len(t.Waypoints) == 0 {
		return fmt.Errorf("tour %q has no waypoints", t.ID)
	}

	seen := make(map[string]bool, len(t.Waypoints))
	for i := range t.Waypoints {
		wp := &t.Waypoints[i]
		if wp.ID == "" {
			return fmt.Errorf("waypoint at position %d has empty id", i)
		}
		if seen[wp.ID] {
			return fmt.Errorf("duplicate waypoint id %q", wp.ID)
		}
		seen[wp.ID] = true

		if wp.SequenceOrder != i+1 {
			return fmt.Errorf("waypoint %q: sequence_order %d, want %d (dense 1-based)", wp.ID, wp.SequenceOrder, i+1)
		}
		if wp.Lat < -90 || wp.Lat > 90 || wp.Lon < -180 || wp.Lon > 180 {
			return fmt.Errorf("waypoint %q: coordinates out of range (%f, %f)", wp.ID, wp.Lat, wp.Lon)
		}
		if wp.TriggerRadius <= 0 {
			return fmt.Errorf("waypoint %q: trigger radius must be positive, got %f", wp.ID, wp.TriggerRadius)
		}
		if wp.MediaRef == "" {
			return fmt.Errorf("waypoint %q: empty media ref", wp.ID)
		}
		if err := validateCues(wp.SubtitleCues); err != nil {
			return fmt.Errorf("waypoint %q: %w", wp.ID, err)
		}
	}
	return nil
}

func validateCues(cues []SubtitleCue) error {
	for i, c := range cues {
		if c.End <= c.Start {
			return fmt.Errorf("cue %d: end %s not after start %s", i, c.End, c.Start)
		}
		if i > 0 && c.Start < cues[i-1].End {
			return fmt.Errorf("cue %d overlaps cue %d", i, i-1)
		}
	}
	return nil
}

// DisplayName returns the best available name for a waypoint.
func (w *Waypoint) DisplayName() string {
	if w.Name != "" {
		return w.Name
	}
	return w.ID
}
