// Package walksim provides a simulated pedestrian location sampler for
// development and tests: it walks a route of points at a configurable speed,
// adds GPS-like noise, and can simulate a mid-session permission revocation.
package walksim

import (
	"context"
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"time"

	"cicerone/pkg/geo"
	"cicerone/pkg/location"
)

const tickRate = 100 * time.Millisecond

// Config holds the simulation parameters.
type Config struct {
	Route []geo.Point
	// SpeedMS is walking speed in meters per second (default 1.4, a brisk walk).
	SpeedMS float64
	// AccuracyM is the reported horizontal accuracy (default 10).
	AccuracyM float64
	// NoiseM is the position jitter amplitude in meters (default 3).
	NoiseM float64
	// RevokeAfter, when positive, simulates the platform revoking location
	// permission that long after Start.
	RevokeAfter time.Duration
	// Loop restarts the route from the beginning when the end is reached.
	Loop bool
}

// Walker implements location.Sampler by advancing a simulated position along
// the route on a fixed tick, the same shape as a sensor callback loop.
type Walker struct {
	cfg Config

	mu      sync.Mutex
	running bool
	auth    location.Authorization
	pos     geo.Point
	legIdx  int
	stopCh  chan struct{}
	wg      sync.WaitGroup

	fixes chan location.Fix
	auths chan location.Authorization
}

// New creates a Walker positioned at the start of the route.
func New(cfg Config) *Walker {
	if cfg.SpeedMS <= 0 {
		cfg.SpeedMS = 1.4
	}
	if cfg.AccuracyM <= 0 {
		cfg.AccuracyM = 10
	}
	if cfg.NoiseM < 0 {
		cfg.NoiseM = 3
	}

	w := &Walker{
		cfg:   cfg,
		auth:  location.AuthGranted,
		fixes: make(chan location.Fix, 16),
		auths: make(chan location.Authorization, 4),
	}
	if len(cfg.Route) > 0 {
		w.pos = cfg.Route[0]
	}
	return w
}

// Start launches the walk loop.
func (w *Walker) Start(ctx context.Context, opts location.Options) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.auth == location.AuthDenied {
		return location.ErrUnavailable
	}
	if w.running {
		return nil
	}
	w.running = true
	w.stopCh = make(chan struct{})

	interval := opts.MinInterval
	if interval < tickRate {
		interval = tickRate
	}

	w.wg.Add(1)
	go w.loop(ctx, interval, opts.MinDisplacementM, w.stopCh)
	slog.Info("Walksim: started", "legs", len(w.cfg.Route), "speed_ms", w.cfg.SpeedMS)
	return nil
}

// Stop halts the walk loop. Idempotent.
func (w *Walker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	close(w.stopCh)
	w.mu.Unlock()
	w.wg.Wait()
	slog.Info("Walksim: stopped")
}

// Fixes implements location.Sampler.
func (w *Walker) Fixes() <-chan location.Fix { return w.fixes }

// AuthChanges implements location.Sampler.
func (w *Walker) AuthChanges() <-chan location.Authorization { return w.auths }

// Authorization implements location.Sampler.
func (w *Walker) Authorization() location.Authorization {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.auth
}

func (w *Walker) loop(ctx context.Context, interval time.Duration, minDisplacement float64, stopCh chan struct{}) {
	defer w.wg.Done()

	ticker := time.NewTicker(tickRate)
	defer ticker.Stop()

	var revokeCh <-chan time.Time
	if w.cfg.RevokeAfter > 0 {
		revokeTimer := time.NewTimer(w.cfg.RevokeAfter)
		defer revokeTimer.Stop()
		revokeCh = revokeTimer.C
	}

	var lastEmit time.Time
	var lastPos geo.Point
	emittedOnce := false

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-revokeCh:
			w.revoke()
			return
		case now := <-ticker.C:
			w.advance(tickRate.Seconds())

			if now.Sub(lastEmit) < interval {
				continue
			}
			pos := w.position()
			if emittedOnce && minDisplacement > 0 && geo.Distance(lastPos, pos) < minDisplacement {
				continue
			}

			f := location.Fix{
				Timestamp: now,
				Lat:       pos.Lat + metersToDegLat(noise(w.cfg.NoiseM)),
				Lon:       pos.Lon + metersToDegLon(noise(w.cfg.NoiseM), pos.Lat),
				AccuracyM: w.cfg.AccuracyM,
			}
			select {
			case w.fixes <- f:
				lastEmit = now
				lastPos = pos
				emittedOnce = true
			default:
			}
		}
	}
}

// advance moves the simulated position dt seconds along the current leg.
func (w *Walker) advance(dt float64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.legIdx >= len(w.cfg.Route)-1 {
		if w.cfg.Loop && len(w.cfg.Route) > 1 {
			w.legIdx = 0
			w.pos = w.cfg.Route[0]
		}
		return
	}

	target := w.cfg.Route[w.legIdx+1]
	step := w.cfg.SpeedMS * dt
	remaining := geo.Distance(w.pos, target)

	if step >= remaining {
		w.pos = target
		w.legIdx++
		return
	}
	w.pos = geo.DestinationPoint(w.pos, step, geo.Bearing(w.pos, target))
}

func (w *Walker) position() geo.Point {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pos
}

func (w *Walker) revoke() {
	w.mu.Lock()
	w.auth = location.AuthDenied
	w.running = false
	w.mu.Unlock()

	slog.Warn("Walksim: simulated permission revocation")
	select {
	case w.auths <- location.AuthDenied:
	default:
	}
}

func noise(amplitude float64) float64 {
	if amplitude <= 0 {
		return 0
	}
	return (rand.Float64()*2 - 1) * amplitude
}

func metersToDegLat(m float64) float64 {
	return m / 111320.0
}

func metersToDegLon(m, lat float64) float64 {
	cosLat := math.Abs(math.Cos(lat * math.Pi / 180.0))
	if cosLat < 0.0001 {
		cosLat = 0.0001
	}
	return m / (111320.0 * cosLat)
}
