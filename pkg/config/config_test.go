package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "cicerone.yaml")

	tests := []struct {
		name          string
		setup         func()
		validate      func(*testing.T, *Config)
		checkFile     func(*testing.T)
		expectedError bool
	}{
		{
			name:  "NewFile_Defaults",
			setup: func() {}, // No file
			validate: func(t *testing.T, cfg *Config) {
				if cfg.Location.Provider != "push" {
					t.Errorf("expected default location provider 'push', got '%s'", cfg.Location.Provider)
				}
				if cfg.Geofence.AccuracyCeiling != 50.0 {
					t.Errorf("expected default accuracy ceiling 50, got %f", float64(cfg.Geofence.AccuracyCeiling))
				}
				if time.Duration(cfg.Subtitle.PollInterval) != 100*time.Millisecond {
					t.Errorf("expected default poll interval 100ms, got %s", time.Duration(cfg.Subtitle.PollInterval))
				}
			},
			checkFile: func(t *testing.T) {
				content, err := os.ReadFile(configPath)
				if err != nil {
					t.Fatalf("failed to read config file: %v", err)
				}
				if !strings.Contains(string(content), "provider: push") {
					t.Error("config file missing default values")
				}
				if !strings.Contains(string(content), "accuracy_ceiling: 50.00m") {
					t.Error("config file missing accuracy_ceiling default")
				}
			},
		},
		{
			name: "ExistingFile_Override",
			setup: func() {
				// Pre-create file with custom value
				err := os.WriteFile(configPath, []byte("location:\n  provider: walksim\ngeofence:\n  accuracy_ceiling: 35m\n"), 0o644)
				if err != nil {
					t.Fatalf("failed to setup test file: %v", err)
				}
			},
			validate: func(t *testing.T, cfg *Config) {
				if cfg.Location.Provider != "walksim" {
					t.Errorf("expected location provider 'walksim', got '%s'", cfg.Location.Provider)
				}
				if cfg.Geofence.AccuracyCeiling != 35 {
					t.Errorf("expected accuracy ceiling 35, got %f", float64(cfg.Geofence.AccuracyCeiling))
				}
				// Untouched sections keep their defaults.
				if cfg.DB.Path != "./data/cicerone.db" {
					t.Errorf("expected default db path, got '%s'", cfg.DB.Path)
				}
			},
			checkFile: func(t *testing.T) {
				content, err := os.ReadFile(configPath)
				if err != nil {
					t.Fatalf("failed to read config file: %v", err)
				}
				if !strings.Contains(string(content), "provider: walksim") {
					t.Error("config file should persist custom value")
				}
			},
		},
		{
			name: "Env_Fallback",
			setup: func() {
				t.Setenv("CICERONE_ADDRESS", "0.0.0.0:9999")
				err := os.WriteFile(configPath, []byte("server:\n  address: localhost:1873\n"), 0o644)
				if err != nil {
					t.Fatalf("failed to setup test file: %v", err)
				}
			},
			validate: func(t *testing.T, cfg *Config) {
				if cfg.Server.Address != "0.0.0.0:9999" {
					t.Errorf("expected env address, got '%s'", cfg.Server.Address)
				}
			},
			checkFile: func(t *testing.T) {},
		},
		{
			name: "Env_Override_FirstRun",
			setup: func() {
				// No file yet: env overrides must still apply while the
				// defaults get written out.
				t.Setenv("CICERONE_ADDRESS", "0.0.0.0:9999")
				t.Setenv("CICERONE_TOURS_DIR", "/srv/tours")
			},
			validate: func(t *testing.T, cfg *Config) {
				if cfg.Server.Address != "0.0.0.0:9999" {
					t.Errorf("expected env address, got '%s'", cfg.Server.Address)
				}
				if cfg.Tours.Dir != "/srv/tours" {
					t.Errorf("expected env tours dir, got '%s'", cfg.Tours.Dir)
				}
			},
			checkFile: func(t *testing.T) {
				content, err := os.ReadFile(configPath)
				if err != nil {
					t.Fatalf("failed to read config file: %v", err)
				}
				if strings.Contains(string(content), "0.0.0.0:9999") {
					t.Error("env override must not be written to disk")
				}
			},
		},
		{
			name: "InvalidProvider",
			setup: func() {
				err := os.WriteFile(configPath, []byte("location:\n  provider: teleport\n"), 0o644)
				if err != nil {
					t.Fatalf("failed to setup test file: %v", err)
				}
			},
			expectedError: true,
		},
		{
			name: "InvalidVolume",
			setup: func() {
				err := os.WriteFile(configPath, []byte("audio:\n  volume: 1.5\n"), 0o644)
				if err != nil {
					t.Fatalf("failed to setup test file: %v", err)
				}
			},
			expectedError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Remove(configPath)
			tt.setup()

			cfg, err := Load(configPath)
			if tt.expectedError {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Load() failed: %v", err)
			}
			if tt.validate != nil {
				tt.validate(t, cfg)
			}
			if tt.checkFile != nil {
				tt.checkFile(t)
			}
		})
	}
}

func TestGenerateDefault(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "gen.yaml")

	if err := GenerateDefault(configPath); err != nil {
		t.Fatalf("GenerateDefault() failed: %v", err)
	}
	content, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("failed to read generated file: %v", err)
	}
	if !strings.Contains(string(content), "# Cicerone Configuration") {
		t.Error("generated file missing header comment")
	}

	// Existing file is left alone.
	if err := os.WriteFile(configPath, []byte("custom"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := GenerateDefault(configPath); err != nil {
		t.Fatalf("GenerateDefault() on existing file failed: %v", err)
	}
	content, _ = os.ReadFile(configPath)
	if string(content) != "custom" {
		t.Error("GenerateDefault() overwrote existing file")
	}
}
