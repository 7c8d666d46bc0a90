// Package tour hosts the session orchestrator, the state machine that turns
// location fixes into sequential waypoint narration.
package tour

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"cicerone/pkg/audio"
	"cicerone/pkg/events"
	"cicerone/pkg/geofence"
	"cicerone/pkg/location"
	"cicerone/pkg/logging"
	"cicerone/pkg/media"
	"cicerone/pkg/model"
	"cicerone/pkg/subtitle"
	"cicerone/pkg/tracker"
)

// Store persists session snapshots so a non-terminal session survives a
// process restart. Persistence is best effort.
type Store interface {
	SaveSession(ctx context.Context, snap model.SessionSnapshot) error
}

// Deps are the orchestrator's collaborators. Sampler, Driver and Resolver
// are required; the rest are optional.
type Deps struct {
	Sampler   location.Sampler
	Driver    audio.Driver
	Resolver  media.Resolver
	Events    *events.Dispatcher
	Subtitles *subtitle.Synchronizer
	Stats     *tracker.Tracker
	Store     Store
}

// Options tune the orchestrator.
type Options struct {
	// AccuracyCeilingM is the horizontal accuracy cutoff for fixes.
	// Zero selects the geofence default.
	AccuracyCeilingM float64
	// Sampler bounds the fix emission rate.
	Sampler location.Options
}

// Orchestrator owns one tour session at a time. Fixes, playback outcomes
// and operator commands all funnel through its mutex; there are no state
// transitions outside it.
type Orchestrator struct {
	sampler   location.Sampler
	driver    audio.Driver
	resolver  media.Resolver
	events    *events.Dispatcher
	subtitles *subtitle.Synchronizer
	stats     *tracker.Tracker
	store     Store
	eval      *geofence.Evaluator
	opts      Options

	mu         sync.Mutex
	ctx        context.Context
	sessionID  string
	tour       *model.Tour
	status     model.SessionStatus
	mode       model.TriggerMode
	expected   int // index into Waypoints of the next candidate
	triggered  int
	skipped    int
	startedAt  time.Time
	currentWID string
	lastFix    *location.Fix

	// playGen invalidates playback callbacks from superseded narrations.
	playGen uint64

	// interruptPending is set while an external interruption holds the
	// current narration paused.
	interruptPending bool

	pumpCancel context.CancelFunc
	pumpWG     sync.WaitGroup

	persistCh chan model.SessionSnapshot
	quitOnce  sync.Once
	quitCh    chan struct{}
	persistWG sync.WaitGroup
}

// New creates an orchestrator in the Idle state.
func New(deps Deps, opts Options) *Orchestrator {
	if deps.Events == nil {
		deps.Events = events.NewDispatcher()
	}
	if deps.Stats == nil {
		deps.Stats = tracker.New()
	}
	o := &Orchestrator{
		sampler:   deps.Sampler,
		driver:    deps.Driver,
		resolver:  deps.Resolver,
		events:    deps.Events,
		subtitles: deps.Subtitles,
		stats:     deps.Stats,
		store:     deps.Store,
		eval:      geofence.New(opts.AccuracyCeilingM),
		opts:      opts,
		status:    model.StatusIdle,
		mode:      model.TriggerModeGPS,
		persistCh: make(chan model.SessionSnapshot, 1),
		quitCh:    make(chan struct{}),
	}
	o.persistWG.Add(1)
	go o.persister()
	return o
}

// Start begins a new session for the given tour. In GPS mode the location
// sampler is started; if it cannot deliver fixes the session falls back to
// manual mode rather than failing.
func (o *Orchestrator) Start(ctx context.Context, t *model.Tour, mode model.TriggerMode) (model.SessionSnapshot, error) {
	if t == nil {
		return model.SessionSnapshot{}, fmt.Errorf("nil tour")
	}
	if err := t.Validate(); err != nil {
		return model.SessionSnapshot{}, fmt.Errorf("invalid tour: %w", err)
	}
	if mode == "" {
		mode = model.TriggerModeGPS
	}

	o.mu.Lock()
	if o.status != model.StatusIdle && !o.status.Terminal() {
		o.mu.Unlock()
		return model.SessionSnapshot{}, ErrSessionActive
	}
	o.ctx = ctx
	o.sessionID = uuid.NewString()
	o.tour = t
	o.status = model.StatusTracking
	o.mode = mode
	o.expected = 0
	o.triggered = 0
	o.skipped = 0
	o.startedAt = time.Now()
	o.currentWID = ""
	o.lastFix = nil
	o.playGen++
	o.emitLocked(model.EventTourStarted, "", "")
	snap := o.snapshotLocked()
	o.mu.Unlock()

	slog.Info("Tour: session started", "session", snap.SessionID, "tour", t.ID, "mode", mode, "waypoints", len(t.Waypoints))

	// Settle any leftover pump from a previous session.
	o.stopLocomotion()
	if mode == model.TriggerModeGPS {
		o.startLocomotion(ctx)
	}
	o.persist()
	return o.Snapshot(), nil
}

// startLocomotion starts the sampler and the fix pump. On failure the
// session degrades to manual mode.
func (o *Orchestrator) startLocomotion(ctx context.Context) {
	if err := o.sampler.Start(ctx, o.opts.Sampler); err != nil {
		slog.Warn("Tour: location unavailable, falling back to manual mode", "error", err)
		o.mu.Lock()
		o.setModeLocked(model.TriggerModeManual, "location unavailable")
		o.mu.Unlock()
		return
	}

	pumpCtx, cancel := context.WithCancel(ctx)
	o.mu.Lock()
	o.pumpCancel = cancel
	o.mu.Unlock()
	o.pumpWG.Add(1)
	go o.pump(pumpCtx)
}

// stopLocomotion stops the fix pump and the sampler.
func (o *Orchestrator) stopLocomotion() {
	o.mu.Lock()
	cancel := o.pumpCancel
	o.pumpCancel = nil
	o.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	o.pumpWG.Wait()
	o.sampler.Stop()
}

func (o *Orchestrator) pump(ctx context.Context) {
	defer o.pumpWG.Done()

	fixes := o.sampler.Fixes()
	auth := o.sampler.AuthChanges()

	for {
		select {
		case <-ctx.Done():
			return
		case fix := <-fixes:
			o.handleFix(fix)
		case a := <-auth:
			if a == location.AuthDenied {
				o.handleAuthDenied()
			}
		}
	}
}

func (o *Orchestrator) handleFix(fix location.Fix) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.status == model.StatusIdle || o.status.Terminal() {
		return
	}
	o.lastFix = &fix
	logging.TraceDefault("Tour: fix received", "lat", fix.Lat, "lon", fix.Lon, "accuracy_m", fix.AccuracyM)

	// Triggering only happens while tracking in GPS mode. Fixes arriving
	// during narration or in manual mode still refresh the position.
	if o.status != model.StatusTracking || o.mode != model.TriggerModeGPS {
		return
	}

	dec := o.eval.Evaluate(fix, o.tour.Waypoints, o.expected)
	if dec.Discarded {
		o.stats.TrackFixDiscarded(o.sessionID)
		return
	}
	o.stats.TrackFixAccepted(o.sessionID)
	if !dec.Triggered {
		return
	}
	o.triggerLocked(dec.WaypointIndex, fmt.Sprintf("distance_m=%.1f", dec.DistanceM))
}

// handleAuthDenied switches a live GPS session to manual mode. The session
// itself keeps going.
func (o *Orchestrator) handleAuthDenied() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.status == model.StatusIdle || o.status.Terminal() {
		return
	}
	if o.mode == model.TriggerModeManual {
		return
	}
	slog.Warn("Tour: location authorization revoked, switching to manual mode", "session", o.sessionID)
	o.setModeLocked(model.TriggerModeManual, "location authorization revoked")
}

// triggerLocked transitions Tracking -> PointTriggered for the waypoint at
// idx and kicks off its narration. The expected index moves forward
// immediately so the waypoint can never trigger twice.
func (o *Orchestrator) triggerLocked(idx int, detail string) {
	wp := o.tour.Waypoints[idx]

	o.status = model.StatusPointTriggered
	o.currentWID = wp.ID
	o.expected = idx + 1
	o.triggered++
	o.playGen++
	o.interruptPending = false
	gen := o.playGen

	o.stats.TrackTrigger(o.sessionID)
	o.emitLocked(model.EventPointTriggered, wp.ID, detail)
	o.persistLocked()

	slog.Info("Tour: waypoint triggered", "session", o.sessionID, "waypoint", wp.ID, "order", wp.SequenceOrder, "detail", detail)

	go o.narrate(o.ctx, gen, wp)
}

// narrate resolves the waypoint's media and starts playback. Runs off the
// lock; gen guards against superseded narrations.
func (o *Orchestrator) narrate(ctx context.Context, gen uint64, wp model.Waypoint) {
	path, err := o.resolver.Resolve(ctx, wp.MediaRef)
	if err != nil {
		o.narrationFailed(gen, wp, fmt.Errorf("resolve %q: %w", wp.MediaRef, err))
		return
	}

	track := narrationTrack(&wp)

	o.mu.Lock()
	if gen != o.playGen || o.status != model.StatusPointTriggered {
		o.mu.Unlock()
		return
	}
	o.mu.Unlock()

	err = o.driver.Play(path,
		func() { o.narrationDone(gen) },
		func(playErr error) { o.narrationFailed(gen, wp, playErr) },
	)
	if err != nil {
		o.narrationFailed(gen, wp, err)
		return
	}

	o.mu.Lock()
	if gen != o.playGen {
		// Superseded while Play was in flight; silence the stray start.
		o.mu.Unlock()
		o.driver.Stop()
		return
	}
	o.mu.Unlock()

	if o.subtitles != nil {
		o.subtitles.SetTrack(track)
	}
}

// narrationDone handles a narration playing to its natural end.
func (o *Orchestrator) narrationDone(gen uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if gen != o.playGen || o.status != model.StatusPointTriggered {
		return
	}
	o.finishNarrationLocked()
}

// narrationFailed handles a waypoint whose narration could not be played.
// The waypoint is skipped and the tour moves on.
func (o *Orchestrator) narrationFailed(gen uint64, wp model.Waypoint, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if gen != o.playGen || o.status != model.StatusPointTriggered {
		return
	}

	slog.Warn("Tour: narration failed, skipping waypoint", "session", o.sessionID, "waypoint", wp.ID, "error", err)
	// A skipped waypoint does not count as triggered.
	o.triggered--
	o.skipped++
	o.stats.TrackSkip(o.sessionID)
	o.emitLocked(model.EventPointSkipped, wp.ID, err.Error())
	o.finishNarrationLocked()
}

// finishNarrationLocked returns to Tracking, or runs the completion
// sequence when the last waypoint has been consumed.
func (o *Orchestrator) finishNarrationLocked() {
	o.currentWID = ""
	if o.subtitles != nil {
		o.subtitles.SetTrack(nil)
	}

	if o.expected >= len(o.tour.Waypoints) {
		o.status = model.StatusCompleting
		o.emitLocked(model.EventTourCompleted, "", "")
		o.status = model.StatusCompleted
		o.persistLocked()
		// The sampler keeps running; terminal sessions ignore fixes. It is
		// stopped on the next Start, on Abandon, or at Shutdown.
		slog.Info("Tour: session completed", "session", o.sessionID, "triggered", o.triggered, "skipped", o.skipped)
		return
	}

	o.status = model.StatusTracking
	o.persistLocked()
}

// Advance triggers the next waypoint on explicit user action. This is the
// primary control in manual mode and an operator override in GPS mode.
func (o *Orchestrator) Advance() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch {
	case o.status == model.StatusIdle:
		return ErrNoSession
	case o.status.Terminal():
		return ErrSessionTerminal
	case o.status != model.StatusTracking:
		return fmt.Errorf("cannot advance during narration")
	}

	o.triggerLocked(o.expected, "manual advance")
	return nil
}

// StopNarration cuts the current narration short and resumes tracking (or
// completes the tour when it was the last waypoint).
func (o *Orchestrator) StopNarration() error {
	o.mu.Lock()
	if o.status != model.StatusPointTriggered {
		o.mu.Unlock()
		return ErrNoNarration
	}
	o.playGen++
	o.finishNarrationLocked()
	o.mu.Unlock()

	o.driver.Stop()
	return nil
}

// Interrupt pauses a live narration for an external interruption, e.g. an
// incoming call on the companion device.
func (o *Orchestrator) Interrupt() {
	o.mu.Lock()
	if o.status == model.StatusPointTriggered && o.driver.IsPlaying() {
		o.interruptPending = true
	}
	o.mu.Unlock()

	o.driver.Interrupt()
}

// EndInterruption resumes a narration paused by Interrupt. A recovery is
// counted only when playback actually comes back; a track lost during the
// interruption surfaces as a playback failure instead.
func (o *Orchestrator) EndInterruption() {
	o.driver.EndInterruption()

	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.interruptPending {
		return
	}
	o.interruptPending = false
	if o.status == model.StatusPointTriggered && o.driver.IsPlaying() {
		o.stats.TrackRecovery(o.sessionID)
	}
}

// Abandon terminates the session from any non-terminal state. Calling it
// again on an already terminal session is a no-op; repeated stops must not
// error or emit duplicate events.
func (o *Orchestrator) Abandon() error {
	o.mu.Lock()
	switch {
	case o.status == model.StatusIdle:
		o.mu.Unlock()
		return ErrNoSession
	case o.status.Terminal():
		o.mu.Unlock()
		return nil
	}

	o.playGen++
	o.status = model.StatusAbandoned
	o.currentWID = ""
	o.emitLocked(model.EventTourAbandoned, "", "")
	o.persistLocked()
	sessionID := o.sessionID
	o.mu.Unlock()

	slog.Info("Tour: session abandoned", "session", sessionID)

	o.driver.Stop()
	if o.subtitles != nil {
		o.subtitles.SetTrack(nil)
	}
	o.stopLocomotion()
	return nil
}

// SetMode switches the trigger mode of a live session. Switching to GPS
// restarts the sampler; if that fails the session stays manual.
func (o *Orchestrator) SetMode(mode model.TriggerMode) error {
	if mode != model.TriggerModeGPS && mode != model.TriggerModeManual {
		return fmt.Errorf("unknown trigger mode %q", mode)
	}

	o.mu.Lock()
	switch {
	case o.status == model.StatusIdle:
		o.mu.Unlock()
		return ErrNoSession
	case o.status.Terminal():
		o.mu.Unlock()
		return ErrSessionTerminal
	case o.mode == mode:
		o.mu.Unlock()
		return nil
	}

	if mode == model.TriggerModeManual {
		o.setModeLocked(mode, "operator request")
		o.mu.Unlock()
		return nil
	}

	if o.sampler.Authorization() == location.AuthDenied {
		o.mu.Unlock()
		return location.ErrUnavailable
	}
	ctx := o.ctx
	restart := o.pumpCancel == nil
	o.setModeLocked(mode, "operator request")
	o.mu.Unlock()

	if restart {
		o.startLocomotion(ctx)
	}
	return nil
}

func (o *Orchestrator) setModeLocked(mode model.TriggerMode, detail string) {
	o.mode = mode
	o.emitLocked(model.EventModeChanged, "", detail)
	o.persistLocked()
}

// Snapshot returns a value copy of the session state.
func (o *Orchestrator) Snapshot() model.SessionSnapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshotLocked()
}

// LastFix returns the most recent fix seen by the session, or nil.
func (o *Orchestrator) LastFix() *location.Fix {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.lastFix == nil {
		return nil
	}
	fix := *o.lastFix
	return &fix
}

// Stats returns the counters of the current session.
func (o *Orchestrator) Stats() tracker.SessionStats {
	o.mu.Lock()
	id := o.sessionID
	o.mu.Unlock()
	return o.stats.Snapshot()[id]
}

// Shutdown stops background goroutines. The session state is persisted as
// is so a non-terminal session can be restored on the next run.
func (o *Orchestrator) Shutdown() {
	o.mu.Lock()
	o.playGen++
	o.persistLocked()
	o.mu.Unlock()

	o.stopLocomotion()
	o.quitOnce.Do(func() { close(o.quitCh) })
	o.persistWG.Wait()
}

func (o *Orchestrator) snapshotLocked() model.SessionSnapshot {
	snap := model.SessionSnapshot{
		SessionID:         o.sessionID,
		Status:            o.status,
		Mode:              o.mode,
		ExpectedIndex:     o.expected,
		CurrentWaypointID: o.currentWID,
		PointsTriggered:   o.triggered,
		PointsSkipped:     o.skipped,
		StartedAt:         o.startedAt,
	}
	if o.tour != nil {
		snap.TourID = o.tour.ID
		snap.WaypointCount = len(o.tour.Waypoints)
	}
	return snap
}

func (o *Orchestrator) emitLocked(t model.EventType, waypointID, detail string) {
	o.events.Publish(model.TripEvent{
		Type:       t,
		SessionID:  o.sessionID,
		TourID:     o.tour.ID,
		WaypointID: waypointID,
		Mode:       o.mode,
		Elapsed:    time.Since(o.startedAt),
		Timestamp:  time.Now(),
		Detail:     detail,
	})
}

// persistLocked queues the current snapshot for the persister, replacing
// any not-yet-written one. Latest wins.
func (o *Orchestrator) persistLocked() {
	if o.store == nil || o.sessionID == "" {
		return
	}
	snap := o.snapshotLocked()
	for {
		select {
		case o.persistCh <- snap:
			return
		default:
			select {
			case <-o.persistCh:
			default:
			}
		}
	}
}

// persist queues a snapshot from outside the lock.
func (o *Orchestrator) persist() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.persistLocked()
}

func (o *Orchestrator) persister() {
	defer o.persistWG.Done()
	for {
		select {
		case snap := <-o.persistCh:
			o.save(snap)
		case <-o.quitCh:
			// Flush the pending snapshot, if any.
			select {
			case snap := <-o.persistCh:
				o.save(snap)
			default:
			}
			return
		}
	}
}

func (o *Orchestrator) save(snap model.SessionSnapshot) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := o.store.SaveSession(ctx, snap); err != nil {
		slog.Warn("Tour: failed to persist session", "session", snap.SessionID, "error", err)
	}
}

func narrationTrack(wp *model.Waypoint) *subtitle.Track {
	if len(wp.SubtitleCues) > 0 {
		return subtitle.NewTrack(wp.SubtitleCues)
	}
	if wp.SubtitleFile != "" {
		cues, err := subtitle.ParseSRTFile(wp.SubtitleFile)
		if err != nil {
			slog.Warn("Tour: failed to load subtitles", "waypoint", wp.ID, "file", wp.SubtitleFile, "error", err)
			return nil
		}
		return subtitle.NewTrack(cues)
	}
	return nil
}
