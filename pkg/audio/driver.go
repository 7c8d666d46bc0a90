// Package audio provides the playback driver for waypoint narration.
package audio

import (
	"errors"
	"time"
)

// ErrUnavailable is returned or reported when a resource cannot be opened or
// played. The orchestrator reacts by skipping the waypoint, never by
// terminating the session.
var ErrUnavailable = errors.New("playback unavailable")

// Driver owns the single audio output session. Only one resource is active
// at a time; Play implicitly stops any in-flight playback. Completion and
// failure are reported asynchronously so callers never block on the audio
// subsystem.
type Driver interface {
	// Play starts playback of a local audio file. onComplete fires when
	// the resource plays to its end; onFailure fires if the resource
	// cannot be opened or playback is lost and cannot be recovered.
	// Exactly one of the two fires per successful Play call.
	Play(path string, onComplete func(), onFailure func(error)) error
	// Pause pauses current playback.
	Pause()
	// Resume resumes paused playback.
	Resume()
	// SeekRelative moves the playback position by delta, clamped to the
	// resource bounds.
	SeekRelative(delta time.Duration) error
	// Stop stops current playback. No callbacks fire for a stopped
	// resource. Idempotent.
	Stop()

	// Interrupt reacts to an external interruption (e.g. an incoming
	// call) by pausing; EndInterruption resumes automatically unless the
	// user paused in the meantime or recovery fails.
	Interrupt()
	EndInterruption()

	// Duck lowers the output volume without pausing; Unduck restores it.
	Duck()
	Unduck()

	// IsPlaying returns true while audio is audibly progressing.
	IsPlaying() bool
	// IsBusy returns true while a resource is loaded (playing or paused).
	IsBusy() bool
	IsPaused() bool
	SetVolume(vol float64)
	Volume() float64
	// Position returns the elapsed time of the current resource.
	Position() time.Duration
	// Duration returns the total length of the current resource.
	Duration() time.Duration

	// Shutdown stops playback and releases the output device.
	Shutdown()
}
