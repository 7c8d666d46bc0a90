// Package geofence decides when a location fix counts as arrival at the
// next expected waypoint. The evaluator is a pure function of its inputs and
// performs no I/O.
package geofence

import (
	"log/slog"

	"cicerone/pkg/geo"
	"cicerone/pkg/location"
	"cicerone/pkg/model"
)

// DefaultAccuracyCeiling is the horizontal accuracy cutoff in meters above
// which fixes are discarded.
const DefaultAccuracyCeiling = 50.0

// Decision is the outcome of evaluating one fix.
type Decision struct {
	Triggered bool
	// WaypointIndex is the index into the waypoint list that triggered.
	// Only meaningful when Triggered is true; it always equals the
	// expected index passed in.
	WaypointIndex int
	// DistanceM is the great-circle distance from the fix to the expected
	// waypoint, for logging. Negative when the fix was discarded before
	// distance was computed.
	DistanceM float64
	// Discarded reports that the fix failed the accuracy gate.
	Discarded bool
}

// NoOp is the zero decision.
var NoOp = Decision{WaypointIndex: -1, DistanceM: -1}

// Evaluator applies the trigger policy to incoming fixes.
type Evaluator struct {
	accuracyCeiling float64
}

// New creates an Evaluator with the given accuracy ceiling in meters.
// A ceiling <= 0 falls back to DefaultAccuracyCeiling.
func New(accuracyCeilingM float64) *Evaluator {
	if accuracyCeilingM <= 0 {
		accuracyCeilingM = DefaultAccuracyCeiling
	}
	return &Evaluator{accuracyCeiling: accuracyCeilingM}
}

// Evaluate decides whether the fix triggers the waypoint at expectedIndex.
//
// Policy:
//   - fixes with horizontal accuracy worse than the ceiling never advance
//     state, regardless of distance;
//   - only the waypoint at expectedIndex is a candidate. Proximity to any
//     later waypoint is ignored so narrative order is preserved;
//   - the waypoint triggers when the haversine distance is within its
//     radius. Debounce is the caller's concern: expectedIndex only moves
//     forward, so a triggered waypoint is never a candidate again.
func (e *Evaluator) Evaluate(fix location.Fix, waypoints []model.Waypoint, expectedIndex int) Decision {
	if expectedIndex < 0 || expectedIndex >= len(waypoints) {
		return NoOp
	}

	if fix.AccuracyM > e.accuracyCeiling {
		slog.Debug("Geofence: discarding low-accuracy fix",
			"accuracy_m", fix.AccuracyM, "ceiling_m", e.accuracyCeiling)
		return Decision{WaypointIndex: -1, DistanceM: -1, Discarded: true}
	}

	wp := &waypoints[expectedIndex]
	dist := geo.Distance(
		geo.Point{Lat: fix.Lat, Lon: fix.Lon},
		geo.Point{Lat: wp.Lat, Lon: wp.Lon},
	)

	if dist <= wp.TriggerRadius {
		return Decision{Triggered: true, WaypointIndex: expectedIndex, DistanceM: dist}
	}
	return Decision{WaypointIndex: -1, DistanceM: dist}
}

// AccuracyCeiling returns the configured ceiling in meters.
func (e *Evaluator) AccuracyCeiling() float64 {
	return e.accuracyCeiling
}
