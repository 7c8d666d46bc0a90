package location

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"cicerone/pkg/geo"
)

const (
	fixBuffer  = 16
	authBuffer = 4
)

// PushSampler is a Sampler fed by an external producer, typically the fix
// ingest endpoint of the API server (a companion device streaming its
// platform positioning output). It applies the rate and displacement gates
// locally so the orchestrator sees a bounded stream regardless of how fast
// the producer pushes.
type PushSampler struct {
	mu       sync.Mutex
	running  bool
	opts     Options
	auth     Authorization
	lastEmit time.Time
	lastFix  *Fix

	fixes chan Fix
	auths chan Authorization
}

// NewPushSampler creates a PushSampler in the unknown authorization state.
func NewPushSampler() *PushSampler {
	return &PushSampler{
		auth:  AuthUnknown,
		fixes: make(chan Fix, fixBuffer),
		auths: make(chan Authorization, authBuffer),
	}
}

// Start begins accepting pushed fixes. Returns ErrUnavailable if
// authorization has already been denied.
func (s *PushSampler) Start(ctx context.Context, opts Options) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.auth == AuthDenied {
		return ErrUnavailable
	}
	s.opts = opts
	s.running = true
	s.lastEmit = time.Time{}
	s.lastFix = nil
	slog.Debug("PushSampler: started", "min_interval", opts.MinInterval, "min_displacement_m", opts.MinDisplacementM)
	return nil
}

// Stop halts emission. Pushed fixes are dropped until the next Start.
func (s *PushSampler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		s.running = false
		slog.Debug("PushSampler: stopped")
	}
}

// Fixes implements Sampler.
func (s *PushSampler) Fixes() <-chan Fix {
	return s.fixes
}

// AuthChanges implements Sampler.
func (s *PushSampler) AuthChanges() <-chan Authorization {
	return s.auths
}

// Authorization implements Sampler.
func (s *PushSampler) Authorization() Authorization {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.auth
}

// Push feeds one fix from the producer. Returns true if the fix was emitted
// downstream, false if it was gated or the sampler is stopped.
func (s *PushSampler) Push(f Fix) bool {
	s.mu.Lock()

	if !s.running || s.auth == AuthDenied {
		s.mu.Unlock()
		return false
	}

	if f.Timestamp.IsZero() {
		f.Timestamp = time.Now()
	}

	// Rate gate
	if !s.lastEmit.IsZero() && s.opts.MinInterval > 0 {
		if f.Timestamp.Sub(s.lastEmit) < s.opts.MinInterval {
			s.mu.Unlock()
			return false
		}
	}

	// Displacement gate
	if s.lastFix != nil && s.opts.MinDisplacementM > 0 {
		moved := geo.Distance(
			geo.Point{Lat: s.lastFix.Lat, Lon: s.lastFix.Lon},
			geo.Point{Lat: f.Lat, Lon: f.Lon},
		)
		if moved < s.opts.MinDisplacementM {
			s.mu.Unlock()
			return false
		}
	}

	s.lastEmit = f.Timestamp
	fixCopy := f
	s.lastFix = &fixCopy
	s.mu.Unlock()

	select {
	case s.fixes <- f:
		return true
	default:
		// Consumer is behind; drop rather than block the producer.
		slog.Debug("PushSampler: fix buffer full, dropping")
		return false
	}
}

// SetAuthorization records a permission change reported by the producer.
// A denial stops emission, matching a platform revoking access mid-session.
func (s *PushSampler) SetAuthorization(a Authorization) {
	s.mu.Lock()
	if s.auth == a {
		s.mu.Unlock()
		return
	}
	s.auth = a
	if a == AuthDenied {
		s.running = false
	}
	s.mu.Unlock()

	slog.Info("PushSampler: authorization changed", "state", a)
	select {
	case s.auths <- a:
	default:
	}
}
