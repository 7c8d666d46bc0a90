package subtitle

import (
	"context"
	"sync"
	"time"

	"cicerone/pkg/model"
)

// DefaultPollInterval is the elapsed-time sampling resolution.
const DefaultPollInterval = 100 * time.Millisecond

// PositionSource reports the elapsed time of the active audio resource.
// Satisfied by the audio driver.
type PositionSource interface {
	Position() time.Duration
	IsBusy() bool
}

// Synchronizer derives the active caption from the playback position. It is
// a side observer: cue changes never feed back into session state.
type Synchronizer struct {
	src      PositionSource
	interval time.Duration
	onChange func(*model.SubtitleCue)

	mu      sync.RWMutex
	track   *Track
	current *model.SubtitleCue

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewSynchronizer creates a Synchronizer polling src at interval. onChange
// fires whenever the active cue changes (including to none); it may be nil.
func NewSynchronizer(src PositionSource, interval time.Duration, onChange func(*model.SubtitleCue)) *Synchronizer {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Synchronizer{
		src:      src,
		interval: interval,
		onChange: onChange,
	}
}

// SetTrack switches to the cues of a new waypoint, clearing the current cue.
// A nil track disables captioning until the next waypoint.
func (s *Synchronizer) SetTrack(t *Track) {
	s.mu.Lock()
	s.track = t
	changed := s.current != nil
	s.current = nil
	s.mu.Unlock()

	if changed && s.onChange != nil {
		s.onChange(nil)
	}
}

// Current returns the active cue, or nil.
func (s *Synchronizer) Current() *model.SubtitleCue {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Start launches the polling loop.
func (s *Synchronizer) Start(ctx context.Context) {
	s.stopCh = make(chan struct{})
	s.wg.Add(1)
	go s.loop(ctx, s.stopCh)
}

// Stop halts the polling loop.
func (s *Synchronizer) Stop() {
	if s.stopCh != nil {
		close(s.stopCh)
		s.stopCh = nil
		s.wg.Wait()
	}
}

func (s *Synchronizer) loop(ctx context.Context, stopCh chan struct{}) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

func (s *Synchronizer) tick() {
	s.mu.Lock()
	track := s.track
	if track == nil || !s.src.IsBusy() {
		changed := s.current != nil
		s.current = nil
		s.mu.Unlock()
		if changed && s.onChange != nil {
			s.onChange(nil)
		}
		return
	}

	cue := track.ActiveCue(s.src.Position())
	changed := !sameCue(cue, s.current)
	s.current = cue
	s.mu.Unlock()

	if changed && s.onChange != nil {
		s.onChange(cue)
	}
}

func sameCue(a, b *model.SubtitleCue) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Start == b.Start && a.End == b.End
}
