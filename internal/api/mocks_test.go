package api

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cicerone/pkg/model"
)

// fakeDriver records calls; playback completes only when the test says so.
type fakeDriver struct {
	mu         sync.Mutex
	plays      []string
	onComplete func()
	pauses     int
	resumes    int
	stops      int
	seeks      []time.Duration
	ducks      int
	unducks    int
	volume     float64
	playing    bool
	paused     bool
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{volume: 1.0}
}

func (d *fakeDriver) Play(path string, onComplete func(), onFailure func(error)) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.plays = append(d.plays, path)
	d.onComplete = onComplete
	d.playing = true
	d.paused = false
	return nil
}

func (d *fakeDriver) finish() {
	d.mu.Lock()
	cb := d.onComplete
	d.onComplete = nil
	d.playing = false
	d.mu.Unlock()
	if cb != nil {
		cb()
	}
}

func (d *fakeDriver) Pause() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pauses++
	d.paused = true
}

func (d *fakeDriver) Resume() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.resumes++
	d.paused = false
}

func (d *fakeDriver) SeekRelative(delta time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.playing {
		return fmt.Errorf("nothing playing")
	}
	d.seeks = append(d.seeks, delta)
	return nil
}

func (d *fakeDriver) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stops++
	d.playing = false
	d.onComplete = nil
}

func (d *fakeDriver) Interrupt() {}

func (d *fakeDriver) EndInterruption() {}

func (d *fakeDriver) Duck() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ducks++
}

func (d *fakeDriver) Unduck() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.unducks++
}

func (d *fakeDriver) IsPlaying() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.playing && !d.paused
}

func (d *fakeDriver) IsBusy() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.playing || d.paused
}

func (d *fakeDriver) IsPaused() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.paused
}

func (d *fakeDriver) SetVolume(vol float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.volume = vol
}

func (d *fakeDriver) Volume() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.volume
}

func (d *fakeDriver) Position() time.Duration { return 2 * time.Second }
func (d *fakeDriver) Duration() time.Duration { return 30 * time.Second }

func (d *fakeDriver) Shutdown() {}

func (d *fakeDriver) playCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.plays)
}

// fakeResolver maps media refs to local paths without touching the network.
type fakeResolver struct{}

func (fakeResolver) Resolve(_ context.Context, ref string) (string, error) {
	return "/resolved/" + ref, nil
}

// fakeTourStore is an in-memory TourStore.
type fakeTourStore struct {
	mu    sync.Mutex
	tours map[string]*model.Tour
}

func newFakeTourStore(tours ...*model.Tour) *fakeTourStore {
	s := &fakeTourStore{tours: make(map[string]*model.Tour)}
	for _, t := range tours {
		s.tours[t.ID] = t
	}
	return s
}

func (s *fakeTourStore) SaveTour(_ context.Context, t *model.Tour) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tours[t.ID] = t
	return nil
}

func (s *fakeTourStore) GetTour(_ context.Context, id string) (*model.Tour, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tours[id], nil
}

func (s *fakeTourStore) ListTours(_ context.Context) ([]model.Tour, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Tour, 0, len(s.tours))
	for _, t := range s.tours {
		out = append(out, *t)
	}
	return out, nil
}

// fakeEventStore is an in-memory EventStore.
type fakeEventStore struct {
	mu     sync.Mutex
	events []model.TripEvent
}

func (s *fakeEventStore) SaveEvent(_ context.Context, ev model.TripEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func (s *fakeEventStore) GetEvents(_ context.Context, sessionID string) ([]model.TripEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.TripEvent
	for _, ev := range s.events {
		if ev.SessionID == sessionID {
			out = append(out, ev)
		}
	}
	return out, nil
}

// fakeStateStore is an in-memory StateStore.
type fakeStateStore struct {
	mu    sync.Mutex
	state map[string]string
}

func newFakeStateStore() *fakeStateStore {
	return &fakeStateStore{state: make(map[string]string)}
}

func (s *fakeStateStore) GetState(_ context.Context, key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.state[key]
	return v, ok
}

func (s *fakeStateStore) SetState(_ context.Context, key, val string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state[key] = val
	return nil
}

func (s *fakeStateStore) DeleteState(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.state, key)
	return nil
}

func apiTestTour() *model.Tour {
	return &model.Tour{
		ID:    "tour-api",
		Title: "API Test Tour",
		Waypoints: []model.Waypoint{
			{ID: "wp-a", SequenceOrder: 1, Lat: 50.000, Lon: 8.000, TriggerRadius: 30, MediaRef: "a.mp3"},
			{ID: "wp-b", SequenceOrder: 2, Lat: 50.002, Lon: 8.000, TriggerRadius: 30, MediaRef: "b.mp3"},
		},
	}
}
