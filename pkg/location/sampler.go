// Package location defines the fix stream consumed by the session
// orchestrator and the sampler contract that produces it.
package location

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable is returned when positioning cannot be started or has been
// revoked. The orchestrator reacts by switching to manual trigger mode; it
// never aborts the tour over this.
var ErrUnavailable = errors.New("location unavailable")

// Fix is one timestamped position sample. The engine keeps only the most
// recent accepted fix; history stays with the producer.
type Fix struct {
	Timestamp time.Time `json:"timestamp"`
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`
	// AccuracyM is the reported horizontal accuracy in meters (1-sigma).
	AccuracyM float64 `json:"accuracy_m"`
}

// Authorization is the positioning permission state.
type Authorization string

const (
	AuthUnknown Authorization = "unknown"
	AuthGranted Authorization = "granted"
	AuthDenied  Authorization = "denied"
)

// Options bound the emission rate of a sampler.
type Options struct {
	// MinInterval is the minimum time between emitted fixes.
	MinInterval time.Duration
	// MinDisplacementM is the minimum movement in meters between emitted
	// fixes. Fixes closer to the previous emission are dropped.
	MinDisplacementM float64
}

// Sampler produces a bounded-rate stream of fixes and reports authorization
// changes. Start acquires whatever tracking entitlement the platform needs
// for continuous emission; Stop releases it. Both are idempotent.
type Sampler interface {
	Start(ctx context.Context, opts Options) error
	Stop()
	// Fixes is the emission stream. It is never closed by Start/Stop
	// cycles; consumers select on it alongside their own shutdown signal.
	Fixes() <-chan Fix
	// AuthChanges signals authorization transitions (e.g. a mid-session
	// revocation). Best-effort: a slow consumer may miss intermediate
	// states but always observes the latest via Authorization().
	AuthChanges() <-chan Authorization
	// Authorization returns the current permission state.
	Authorization() Authorization
}
