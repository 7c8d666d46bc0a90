package geo

import (
	"math"
	"testing"
)

func TestDistance(t *testing.T) {
	tests := []struct {
		name    string
		p1, p2  Point
		wantM   float64
		within  float64
	}{
		{
			name:   "SamePoint",
			p1:     Point{Lat: 50.0, Lon: 14.4},
			p2:     Point{Lat: 50.0, Lon: 14.4},
			wantM:  0,
			within: 0.01,
		},
		{
			name: "EquatorOneDegreeLon",
			p1:   Point{Lat: 0, Lon: 0},
			p2:   Point{Lat: 0, Lon: 1},
			// 1 degree of longitude at the equator is ~111.19 km
			wantM:  111195,
			within: 100,
		},
		{
			name: "SmallOffset",
			p1:   Point{Lat: 0, Lon: 0},
			p2:   Point{Lat: 0, Lon: 0.002},
			// Spec scenario: ~222m apart
			wantM:  222.4,
			within: 1.0,
		},
		{
			name:   "LondonParis",
			p1:     Point{Lat: 51.5074, Lon: -0.1278},
			p2:     Point{Lat: 48.8566, Lon: 2.3522},
			wantM:  343500,
			within: 1000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Distance(tt.p1, tt.p2)
			if math.Abs(got-tt.wantM) > tt.within {
				t.Errorf("Distance() = %.2f, want %.2f (±%.2f)", got, tt.wantM, tt.within)
			}
		})
	}
}

func TestDistance_Symmetric(t *testing.T) {
	p1 := Point{Lat: 50.08, Lon: 14.43}
	p2 := Point{Lat: 50.09, Lon: 14.40}
	if d1, d2 := Distance(p1, p2), Distance(p2, p1); math.Abs(d1-d2) > 1e-9 {
		t.Errorf("distance not symmetric: %f vs %f", d1, d2)
	}
}

func TestDestinationPoint_RoundTrip(t *testing.T) {
	start := Point{Lat: 50.0, Lon: 14.4}
	for _, bearing := range []float64{0, 45, 90, 180, 270} {
		dest := DestinationPoint(start, 500, bearing)
		got := Distance(start, dest)
		if math.Abs(got-500) > 1.0 {
			t.Errorf("bearing %.0f: moved %.2fm, want 500m", bearing, got)
		}
	}
}

func TestBearing(t *testing.T) {
	p := Point{Lat: 0, Lon: 0}
	tests := []struct {
		name string
		to   Point
		want float64
	}{
		{"North", Point{Lat: 1, Lon: 0}, 0},
		{"East", Point{Lat: 0, Lon: 1}, 90},
		{"South", Point{Lat: -1, Lon: 0}, 180},
		{"West", Point{Lat: 0, Lon: -1}, 270},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Bearing(p, tt.to); math.Abs(got-tt.want) > 0.5 {
				t.Errorf("Bearing() = %.2f, want %.2f", got, tt.want)
			}
		})
	}
}
