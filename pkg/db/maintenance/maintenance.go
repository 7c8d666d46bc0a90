// Package maintenance runs startup housekeeping on the tour database.
package maintenance

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"cicerone/pkg/db"
	"cicerone/pkg/model"
	"cicerone/pkg/store"
)

const tourFileStateKeyPrefix = "tour_file_mtime:"

// DefaultEventRetention is how long trip events are kept.
const DefaultEventRetention = 90 * 24 * time.Hour

// Run executes all maintenance tasks: tour import and event pruning.
// It blocks until completion.
func Run(ctx context.Context, s store.Store, d *db.DB, toursDir string) error {
	slog.Info("Starting database maintenance...")

	if err := importTours(ctx, s, toursDir); err != nil {
		slog.Error("Tour import failed", "error", err)
		// We don't stop startup for import failure, but we log it.
	} else {
		slog.Info("Tour import check completed")
	}

	if err := d.PruneEvents(DefaultEventRetention); err != nil {
		slog.Error("Event pruning failed", "error", err)
	} else {
		slog.Info("Event pruning completed")
	}

	return nil
}

// importTours loads tour definition files from toursDir into the store,
// conditional on each file's modification time.
func importTours(ctx context.Context, s store.Store, toursDir string) error {
	if toursDir == "" {
		return nil
	}
	entries, err := os.ReadDir(toursDir)
	if os.IsNotExist(err) {
		return nil // Directory doesn't exist, nothing to import
	}
	if err != nil {
		return fmt.Errorf("failed to read tours dir: %w", err)
	}

	imported := 0
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		path := filepath.Join(toursDir, entry.Name())

		info, err := entry.Info()
		if err != nil {
			slog.Warn("Maintenance: failed to stat tour file", "path", path, "error", err)
			continue
		}
		fileMTime := info.ModTime().UTC().Format(time.RFC3339)

		stateKey := tourFileStateKeyPrefix + entry.Name()
		storedMTime, found := s.GetState(ctx, stateKey)
		if found && storedMTime == fileMTime {
			continue // Up to date
		}

		tour, err := model.LoadTour(path)
		if err != nil {
			slog.Warn("Maintenance: skipping unreadable tour file", "path", path, "error", err)
			continue
		}
		if err := s.SaveTour(ctx, tour); err != nil {
			slog.Warn("Maintenance: failed to store tour", "tour", tour.ID, "error", err)
			continue
		}
		if err := s.SetState(ctx, stateKey, fileMTime); err != nil {
			return fmt.Errorf("failed to record import state: %w", err)
		}

		imported++
		slog.Info("Maintenance: imported tour", "tour", tour.ID, "title", tour.Title, "waypoints", len(tour.Waypoints))
	}

	if imported > 0 {
		slog.Info("Maintenance: tour import done", "imported", imported)
	}
	return nil
}
