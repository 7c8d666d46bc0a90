package tour

import (
	"context"
	"sync"
	"time"

	"cicerone/pkg/location"
	"cicerone/pkg/model"
)

// mockSampler is a hand-driven location.Sampler.
type mockSampler struct {
	mu       sync.Mutex
	fixCh    chan location.Fix
	authCh   chan location.Authorization
	auth     location.Authorization
	startErr error
	started  int
	stopped  int
}

func newMockSampler() *mockSampler {
	return &mockSampler{
		fixCh:  make(chan location.Fix, 16),
		authCh: make(chan location.Authorization, 4),
		auth:   location.AuthGranted,
	}
}

func (m *mockSampler) Start(ctx context.Context, opts location.Options) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.startErr != nil {
		return m.startErr
	}
	m.started++
	return nil
}

func (m *mockSampler) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped++
}

func (m *mockSampler) Fixes() <-chan location.Fix                    { return m.fixCh }
func (m *mockSampler) AuthChanges() <-chan location.Authorization    { return m.authCh }

func (m *mockSampler) Authorization() location.Authorization {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.auth
}

func (m *mockSampler) push(lat, lon, accuracy float64) {
	m.fixCh <- location.Fix{Timestamp: time.Now(), Lat: lat, Lon: lon, AccuracyM: accuracy}
}

func (m *mockSampler) revoke() {
	m.mu.Lock()
	m.auth = location.AuthDenied
	m.mu.Unlock()
	m.authCh <- location.AuthDenied
}

// mockDriver is a scriptable audio.Driver. Playback completion is driven
// by the test via finish/fail.
type mockDriver struct {
	mu          sync.Mutex
	playing     bool
	paused      bool
	interrupted bool
	plays       []string
	stops       int
	playErr     error
	onComplete  func()
	onFailure   func(error)
}

func (m *mockDriver) Play(path string, onComplete func(), onFailure func(error)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.playErr != nil {
		return m.playErr
	}
	m.plays = append(m.plays, path)
	m.playing = true
	m.paused = false
	m.onComplete = onComplete
	m.onFailure = onFailure
	return nil
}

func (m *mockDriver) finish() {
	m.mu.Lock()
	cb := m.onComplete
	m.playing = false
	m.mu.Unlock()
	if cb != nil {
		cb()
	}
}

func (m *mockDriver) fail(err error) {
	m.mu.Lock()
	cb := m.onFailure
	m.playing = false
	m.mu.Unlock()
	if cb != nil {
		cb(err)
	}
}

func (m *mockDriver) playCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.plays)
}

func (m *mockDriver) lastPlay() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.plays) == 0 {
		return ""
	}
	return m.plays[len(m.plays)-1]
}

func (m *mockDriver) stopCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stops
}

func (m *mockDriver) Pause()  { m.mu.Lock(); m.paused = true; m.mu.Unlock() }
func (m *mockDriver) Resume() { m.mu.Lock(); m.paused = false; m.mu.Unlock() }

func (m *mockDriver) SeekRelative(delta time.Duration) error { return nil }

func (m *mockDriver) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stops++
	m.playing = false
	m.onComplete = nil
	m.onFailure = nil
}

func (m *mockDriver) Interrupt() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.playing && !m.interrupted {
		m.interrupted = true
		m.paused = true
	}
}

func (m *mockDriver) EndInterruption() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.interrupted {
		m.interrupted = false
		m.paused = false
	}
}
func (m *mockDriver) Duck()            {}
func (m *mockDriver) Unduck()          {}

func (m *mockDriver) IsPlaying() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.playing && !m.paused
}

func (m *mockDriver) IsBusy() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.playing
}

func (m *mockDriver) IsPaused() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.paused
}

func (m *mockDriver) SetVolume(vol float64)    {}
func (m *mockDriver) Volume() float64          { return 1.0 }
func (m *mockDriver) Position() time.Duration  { return 0 }
func (m *mockDriver) Duration() time.Duration  { return 0 }
func (m *mockDriver) Shutdown()                {}

// mockResolver maps media refs to paths. An optional gate channel holds
// Resolve until the test closes it.
type mockResolver struct {
	mu     sync.Mutex
	errFor map[string]error
	gate   chan struct{}
}

func (m *mockResolver) Resolve(ctx context.Context, mediaRef string) (string, error) {
	m.mu.Lock()
	gate := m.gate
	err, failed := m.errFor[mediaRef]
	m.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if failed {
		return "", err
	}
	return "/resolved/" + mediaRef, nil
}

func (m *mockResolver) setGate(gate chan struct{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gate = gate
}

func (m *mockResolver) failFor(ref string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.errFor == nil {
		m.errFor = make(map[string]error)
	}
	m.errFor[ref] = err
}

// mockStore records persisted snapshots.
type mockStore struct {
	mu    sync.Mutex
	saves []model.SessionSnapshot
}

func (m *mockStore) SaveSession(ctx context.Context, snap model.SessionSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves = append(m.saves, snap)
	return nil
}

func (m *mockStore) last() (model.SessionSnapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.saves) == 0 {
		return model.SessionSnapshot{}, false
	}
	return m.saves[len(m.saves)-1], true
}
