// Package subtitle resolves the active caption cue for a playback position.
package subtitle

import (
	"sort"
	"time"

	"cicerone/pkg/model"
)

// Track holds the ordered cues of one waypoint's narration.
type Track struct {
	cues []model.SubtitleCue
}

// NewTrack creates a track from validated cues (ordered, non-overlapping).
func NewTrack(cues []model.SubtitleCue) *Track {
	return &Track{cues: cues}
}

// ActiveCue returns the cue whose [start, end) interval contains elapsed,
// or nil if no cue is active. Stateless; recomputed on every call.
func (t *Track) ActiveCue(elapsed time.Duration) *model.SubtitleCue {
	if t == nil || len(t.cues) == 0 {
		return nil
	}

	// First cue ending after elapsed is the only candidate.
	i := sort.Search(len(t.cues), func(i int) bool {
		return t.cues[i].End > elapsed
	})
	if i == len(t.cues) {
		return nil
	}
	if c := &t.cues[i]; c.Start <= elapsed {
		return c
	}
	return nil
}

// Len returns the number of cues.
func (t *Track) Len() int {
	if t == nil {
		return 0
	}
	return len(t.cues)
}
