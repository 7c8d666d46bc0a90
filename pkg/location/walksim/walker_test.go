package walksim

import (
	"context"
	"testing"
	"time"

	"cicerone/pkg/geo"
	"cicerone/pkg/location"
)

func waitFor(t *testing.T, check func() bool, timeout time.Duration, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if check() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("Timeout waiting for: %s", msg)
}

func TestWalker_EmitsFixes(t *testing.T) {
	w := New(Config{
		Route:   []geo.Point{{Lat: 0, Lon: 0}, {Lat: 0, Lon: 0.01}},
		SpeedMS: 10,
		NoiseM:  0,
	})
	if err := w.Start(context.Background(), location.Options{}); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	select {
	case f := <-w.Fixes():
		if f.AccuracyM != 10 {
			t.Errorf("default accuracy = %f, want 10", f.AccuracyM)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no fix emitted")
	}
}

func TestWalker_MovesAlongRoute(t *testing.T) {
	start := geo.Point{Lat: 0, Lon: 0}
	end := geo.Point{Lat: 0, Lon: 0.001} // ~111m
	w := New(Config{
		Route:   []geo.Point{start, end},
		SpeedMS: 100, // cover the leg in ~1s of sim time
		NoiseM:  0,
	})
	if err := w.Start(context.Background(), location.Options{}); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	waitFor(t, func() bool {
		select {
		case f := <-w.Fixes():
			return geo.Distance(geo.Point{Lat: f.Lat, Lon: f.Lon}, end) < 5
		default:
			return false
		}
	}, 5*time.Second, "walker reaches end of route")
}

func TestWalker_Revocation(t *testing.T) {
	w := New(Config{
		Route:       []geo.Point{{Lat: 0, Lon: 0}, {Lat: 1, Lon: 1}},
		RevokeAfter: 50 * time.Millisecond,
	})
	if err := w.Start(context.Background(), location.Options{}); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	select {
	case a := <-w.AuthChanges():
		if a != location.AuthDenied {
			t.Errorf("auth change = %s, want denied", a)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no revocation signal")
	}

	if w.Authorization() != location.AuthDenied {
		t.Error("authorization should be denied after revocation")
	}
	if err := w.Start(context.Background(), location.Options{}); err == nil {
		t.Error("Start after revocation should fail")
	}
}

func TestWalker_StopIdempotent(t *testing.T) {
	w := New(Config{Route: []geo.Point{{Lat: 0, Lon: 0}}})
	if err := w.Start(context.Background(), location.Options{}); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	w.Stop()
	w.Stop() // must not panic or hang
}
