package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"cicerone/pkg/db"
	"cicerone/pkg/model"
)

func TestSQLiteStore(t *testing.T) {
	tempDir := t.TempDir()
	dbPath := filepath.Join(tempDir, "test.db")

	// Init DB
	d, err := db.Init(dbPath)
	if err != nil {
		t.Fatalf("Failed to init DB: %v", err)
	}
	defer d.Close()

	store := NewSQLiteStore(d)
	ctx := context.Background()

	testSessions(t, ctx, store)
	testEvents(t, ctx, store)
	testTours(t, ctx, store)
	testState(t, ctx, store)
}

func testSessions(t *testing.T, ctx context.Context, store *SQLiteStore) {
	t.Run("Sessions", func(t *testing.T) {
		snap := model.SessionSnapshot{
			SessionID:       "s-1",
			TourID:          "tour-1",
			Status:          model.StatusTracking,
			Mode:            model.TriggerModeGPS,
			ExpectedIndex:   2,
			PointsTriggered: 2,
			WaypointCount:   5,
			StartedAt:       time.Now().Add(-time.Hour),
		}

		if err := store.SaveSession(ctx, snap); err != nil {
			t.Fatalf("SaveSession failed: %v", err)
		}

		loaded, err := store.GetSession(ctx, "s-1")
		if err != nil {
			t.Fatalf("GetSession failed: %v", err)
		}
		if loaded == nil {
			t.Fatal("GetSession returned nil")
		}
		if loaded.Status != model.StatusTracking || loaded.ExpectedIndex != 2 {
			t.Errorf("Loaded session mismatch: %+v", loaded)
		}

		// Upsert on progress
		snap.Status = model.StatusCompleted
		snap.ExpectedIndex = 5
		snap.PointsTriggered = 5
		if err := store.SaveSession(ctx, snap); err != nil {
			t.Fatalf("SaveSession (update) failed: %v", err)
		}
		loaded, err = store.GetSession(ctx, "s-1")
		if err != nil {
			t.Fatalf("GetSession after update failed: %v", err)
		}
		if loaded.Status != model.StatusCompleted || loaded.PointsTriggered != 5 {
			t.Errorf("Updated session mismatch: %+v", loaded)
		}

		missing, err := store.GetSession(ctx, "nope")
		if err != nil {
			t.Fatalf("GetSession (missing) failed: %v", err)
		}
		if missing != nil {
			t.Error("Expected nil for missing session")
		}
	})

	t.Run("LatestActiveSession", func(t *testing.T) {
		// s-1 is terminal by now; with no live session the query is empty.
		active, err := store.LatestActiveSession(ctx)
		if err != nil {
			t.Fatalf("LatestActiveSession failed: %v", err)
		}
		if active != nil {
			t.Errorf("Expected no active session, got %+v", active)
		}

		live := model.SessionSnapshot{
			SessionID: "s-2",
			TourID:    "tour-1",
			Status:    model.StatusPointTriggered,
			Mode:      model.TriggerModeManual,
			StartedAt: time.Now(),
		}
		if err := store.SaveSession(ctx, live); err != nil {
			t.Fatalf("SaveSession failed: %v", err)
		}

		active, err = store.LatestActiveSession(ctx)
		if err != nil {
			t.Fatalf("LatestActiveSession failed: %v", err)
		}
		if active == nil || active.SessionID != "s-2" {
			t.Errorf("Expected s-2 as active session, got %+v", active)
		}

		sessions, err := store.ListSessions(ctx, 10)
		if err != nil {
			t.Fatalf("ListSessions failed: %v", err)
		}
		if len(sessions) != 2 {
			t.Errorf("Expected 2 sessions, got %d", len(sessions))
		}
	})
}

func testEvents(t *testing.T, ctx context.Context, store *SQLiteStore) {
	t.Run("Events", func(t *testing.T) {
		evs := []model.TripEvent{
			{Type: model.EventTourStarted, SessionID: "s-ev", TourID: "tour-1", Mode: model.TriggerModeGPS, Timestamp: time.Now()},
			{Type: model.EventPointTriggered, SessionID: "s-ev", TourID: "tour-1", WaypointID: "wp-1", Mode: model.TriggerModeGPS, Elapsed: 90 * time.Second, Timestamp: time.Now(), Detail: "distance_m=12.3"},
			{Type: model.EventTourStarted, SessionID: "other", TourID: "tour-2", Timestamp: time.Now()},
		}
		for _, ev := range evs {
			if err := store.SaveEvent(ctx, ev); err != nil {
				t.Fatalf("SaveEvent failed: %v", err)
			}
		}

		loaded, err := store.GetEvents(ctx, "s-ev")
		if err != nil {
			t.Fatalf("GetEvents failed: %v", err)
		}
		if len(loaded) != 2 {
			t.Fatalf("Expected 2 events, got %d", len(loaded))
		}
		if loaded[0].Type != model.EventTourStarted {
			t.Errorf("Expected tour_started first, got %s", loaded[0].Type)
		}
		if loaded[1].WaypointID != "wp-1" || loaded[1].Elapsed != 90*time.Second {
			t.Errorf("Event round trip mismatch: %+v", loaded[1])
		}
	})
}

func testTours(t *testing.T, ctx context.Context, store *SQLiteStore) {
	t.Run("Tours", func(t *testing.T) {
		tour := &model.Tour{
			ID:    "tour-x",
			Title: "Harbor Loop",
			Waypoints: []model.Waypoint{
				{ID: "wp-1", SequenceOrder: 1, Lat: 53.54, Lon: 9.99, TriggerRadius: 25, MediaRef: "intro.mp3"},
			},
		}

		if err := store.SaveTour(ctx, tour); err != nil {
			t.Fatalf("SaveTour failed: %v", err)
		}

		loaded, err := store.GetTour(ctx, "tour-x")
		if err != nil {
			t.Fatalf("GetTour failed: %v", err)
		}
		if loaded == nil || loaded.Title != "Harbor Loop" || len(loaded.Waypoints) != 1 {
			t.Errorf("Tour round trip mismatch: %+v", loaded)
		}

		// Invalid tours are refused.
		bad := &model.Tour{ID: "bad"}
		if err := store.SaveTour(ctx, bad); err == nil {
			t.Error("Expected SaveTour to refuse a tour without waypoints")
		}

		missing, err := store.GetTour(ctx, "nope")
		if err != nil {
			t.Fatalf("GetTour (missing) failed: %v", err)
		}
		if missing != nil {
			t.Error("Expected nil for missing tour")
		}

		tours, err := store.ListTours(ctx)
		if err != nil {
			t.Fatalf("ListTours failed: %v", err)
		}
		if len(tours) != 1 {
			t.Errorf("Expected 1 tour, got %d", len(tours))
		}
	})
}

func testState(t *testing.T, ctx context.Context, store *SQLiteStore) {
	t.Run("State", func(t *testing.T) {
		if err := store.SetState(ctx, "k1", "v1"); err != nil {
			t.Errorf("SetState failed: %v", err)
		}

		val, found := store.GetState(ctx, "k1")
		if !found || val != "v1" {
			t.Errorf("GetState: got (%q, %v), want (v1, true)", val, found)
		}

		// Overwrite
		if err := store.SetState(ctx, "k1", "v2"); err != nil {
			t.Errorf("SetState (overwrite) failed: %v", err)
		}
		val, _ = store.GetState(ctx, "k1")
		if val != "v2" {
			t.Errorf("GetState after overwrite: got %q, want v2", val)
		}

		if err := store.DeleteState(ctx, "k1"); err != nil {
			t.Errorf("DeleteState failed: %v", err)
		}
		if _, found := store.GetState(ctx, "k1"); found {
			t.Error("Expected key to be deleted")
		}
	})
}
