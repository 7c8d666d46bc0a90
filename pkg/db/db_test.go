package db_test

import (
	"path/filepath"
	"testing"
	"time"

	"cicerone/pkg/db"
)

func TestDB(t *testing.T) {
	tempDir := t.TempDir()
	path := filepath.Join(tempDir, "db_test.db")

	d, err := db.Init(path)
	if err != nil {
		t.Fatalf("Init() failed: %v", err)
	}
	if d == nil {
		t.Fatal("Init() returned nil DB")
	}

	// Migrations are idempotent.
	if _, err := d.Exec("INSERT INTO persistent_state (key, value) VALUES ('k', 'v')"); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if err := d.PruneEvents(24 * time.Hour); err != nil {
		t.Fatalf("PruneEvents() failed: %v", err)
	}
	d.Close()

	d2, err := db.Init(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	d2.Close()
}
