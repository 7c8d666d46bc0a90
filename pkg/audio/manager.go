package audio

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/gopxl/beep/v2/wav"
)

const (
	duckAttenuation     = 0.25
	defaultSampleRateHz = 48000
)

// Manager implements Driver using gopxl/beep.
type Manager struct {
	mu                 sync.RWMutex
	ctrl               *beep.Ctrl
	volume             float64
	ducked             bool
	isPaused           bool
	interrupted        bool
	speakerInitialized bool
	sampleRateHz       int
	currentSampleRate  beep.SampleRate
	streamer           *effects.Volume
	trackStreamer      beep.StreamSeekCloser
	trackFormat        beep.Format
	onFailure          func(error)
}

// NewManager creates a playback manager at full volume.
func NewManager() *Manager {
	return &Manager{volume: 1.0, sampleRateHz: defaultSampleRateHz}
}

// SetSampleRate sets the output device sample rate. Only effective before
// the first Play initializes the speaker.
func (m *Manager) SetSampleRate(hz int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if hz > 0 && !m.speakerInitialized {
		m.sampleRateHz = hz
	}
}

// Play starts playback of a local audio file, stopping any in-flight
// resource first.
func (m *Manager) Play(path string, onComplete func(), onFailure func(error)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Stop any current playback and close the file handle. The cleared
	// sequence's callback never fires, so the previous Play's callbacks
	// stay silent.
	m.stopLocked()

	streamer, format, err := m.decodeStreamer(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if err := m.ensureSpeakerInitialized(streamer); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	resampled := beep.Resample(3, format.SampleRate, m.currentSampleRate, streamer)

	volStreamer := &effects.Volume{
		Streamer: resampled,
		Base:     2,
		Volume:   volumeToPower(m.effectiveVolumeLocked()),
		Silent:   m.volume <= 0.01,
	}

	m.streamer = volStreamer
	m.trackStreamer = streamer
	m.trackFormat = format
	m.onFailure = onFailure
	m.interrupted = false

	m.ctrl = &beep.Ctrl{Streamer: volStreamer}
	m.isPaused = false

	speaker.Play(beep.Seq(m.ctrl, beep.Callback(func() {
		// Completion work happens off the speaker thread.
		go func() {
			m.mu.Lock()
			m.ctrl = nil
			m.streamer = nil
			m.trackStreamer = nil
			m.isPaused = false
			m.interrupted = false
			m.onFailure = nil
			m.mu.Unlock()
			streamer.Close()

			if onComplete != nil {
				onComplete()
			}
		}()
	})))

	slog.Debug("Audio: playing", "path", path)
	return nil
}

// Pause pauses current playback.
func (m *Manager) Pause() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pauseLocked()
}

func (m *Manager) pauseLocked() {
	if m.ctrl != nil && !m.isPaused {
		speaker.Lock()
		m.ctrl.Paused = true
		speaker.Unlock()
		m.isPaused = true
	}
}

// Resume resumes paused playback.
func (m *Manager) Resume() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resumeLocked()
}

func (m *Manager) resumeLocked() {
	if m.ctrl != nil && m.isPaused {
		speaker.Lock()
		m.ctrl.Paused = false
		speaker.Unlock()
		m.isPaused = false
	}
}

// SeekRelative moves the playback position by delta, clamped to the
// resource bounds.
func (m *Manager) SeekRelative(delta time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.trackStreamer == nil || m.trackFormat.SampleRate == 0 {
		return ErrUnavailable
	}

	target := m.trackStreamer.Position() + m.trackFormat.SampleRate.N(delta)
	if target < 0 {
		target = 0
	}
	if maxPos := m.trackStreamer.Len() - 1; target > maxPos {
		target = maxPos
	}

	speaker.Lock()
	err := m.trackStreamer.Seek(target)
	speaker.Unlock()
	if err != nil {
		return fmt.Errorf("seek failed: %w", err)
	}
	return nil
}

// Stop stops current playback without firing callbacks.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopLocked()
}

func (m *Manager) stopLocked() {
	if m.trackStreamer != nil {
		m.trackStreamer.Close()
		m.trackStreamer = nil
	}
	if m.ctrl != nil {
		speaker.Clear()
		m.ctrl = nil
		m.streamer = nil
		m.isPaused = false
	}
	m.interrupted = false
	m.onFailure = nil
}

// Interrupt pauses playback in response to an external interruption.
func (m *Manager) Interrupt() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ctrl == nil || m.interrupted {
		return
	}
	m.interrupted = true
	m.pauseLocked()
	slog.Info("Audio: interrupted, pausing")
}

// EndInterruption resumes playback paused by Interrupt. If the resource was
// lost while interrupted, recovery degrades to a playback failure.
func (m *Manager) EndInterruption() {
	m.mu.Lock()

	if !m.interrupted {
		m.mu.Unlock()
		return
	}
	m.interrupted = false

	if m.ctrl == nil || m.trackStreamer == nil {
		onFailure := m.onFailure
		m.onFailure = nil
		m.mu.Unlock()
		slog.Warn("Audio: playback lost during interruption")
		if onFailure != nil {
			onFailure(ErrUnavailable)
		}
		return
	}

	m.resumeLocked()
	m.mu.Unlock()
	slog.Info("Audio: interruption ended, resumed")
}

// Duck lowers the output volume without pausing.
func (m *Manager) Duck() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ducked {
		return
	}
	m.ducked = true
	m.applyVolumeLocked()
}

// Unduck restores the pre-duck volume.
func (m *Manager) Unduck() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.ducked {
		return
	}
	m.ducked = false
	m.applyVolumeLocked()
}

// IsPlaying returns true if audio is currently playing.
func (m *Manager) IsPlaying() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ctrl != nil && !m.isPaused
}

// IsBusy returns true if a resource is loaded (playing or paused).
func (m *Manager) IsBusy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ctrl != nil
}

// IsPaused returns true if playback is paused.
func (m *Manager) IsPaused() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.isPaused
}

// SetVolume sets playback volume (0.0 to 1.0).
func (m *Manager) SetVolume(vol float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if vol < 0 {
		vol = 0
	} else if vol > 1 {
		vol = 1
	}
	m.volume = vol
	m.applyVolumeLocked()
}

// Volume returns the current volume level.
func (m *Manager) Volume() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.volume
}

func (m *Manager) effectiveVolumeLocked() float64 {
	if m.ducked {
		return m.volume * duckAttenuation
	}
	return m.volume
}

func (m *Manager) applyVolumeLocked() {
	if m.streamer == nil {
		return
	}
	eff := m.effectiveVolumeLocked()
	speaker.Lock()
	m.streamer.Volume = volumeToPower(eff)
	m.streamer.Silent = eff <= 0.01
	speaker.Unlock()
}

// Position returns the current playback position.
func (m *Manager) Position() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.trackStreamer == nil || m.trackFormat.SampleRate == 0 {
		return 0
	}
	return m.trackFormat.SampleRate.D(m.trackStreamer.Position())
}

// Duration returns the total duration of the current audio.
func (m *Manager) Duration() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.trackStreamer == nil || m.trackFormat.SampleRate == 0 {
		return 0
	}
	return m.trackFormat.SampleRate.D(m.trackStreamer.Len())
}

// Shutdown stops playback and releases the output.
func (m *Manager) Shutdown() {
	m.Stop()
}

func (m *Manager) ensureSpeakerInitialized(streamer beep.StreamSeekCloser) error {
	if !m.speakerInitialized {
		rate := beep.SampleRate(m.sampleRateHz)
		if rate <= 0 {
			rate = defaultSampleRateHz
		}
		err := speaker.Init(rate, rate.N(time.Second/10))
		if err != nil {
			streamer.Close()
			slog.Error("Failed to initialize speaker", "error", err)
			return err
		}
		m.speakerInitialized = true
		m.currentSampleRate = rate
	}
	return nil
}

func (m *Manager) decodeStreamer(path string) (beep.StreamSeekCloser, beep.Format, error) {
	f, err := os.Open(path)
	if err != nil {
		slog.Error("Failed to open audio file", "path", path, "error", err)
		return nil, beep.Format{}, err
	}

	// Try MP3 first
	streamer, format, err := mp3.Decode(f)
	if err == nil {
		return streamer, format, nil
	}

	// Reopen for WAV attempt (failed MP3 decode leaves file state uncertain)
	f.Close()
	f, err = os.Open(path)
	if err != nil {
		return nil, beep.Format{}, err
	}

	streamer, format, err = wav.Decode(f)
	if err != nil {
		f.Close()
		slog.Error("Failed to decode audio file", "path", path, "error", err)
		return nil, beep.Format{}, err
	}

	return streamer, format, nil
}
