package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	Log      LogConfig      `yaml:"log"`
	DB       DBConfig       `yaml:"db"`
	Server   ServerConfig   `yaml:"server"`
	Tours    ToursConfig    `yaml:"tours"`
	Location LocationConfig `yaml:"location"`
	Geofence GeofenceConfig `yaml:"geofence"`
	Audio    AudioConfig    `yaml:"audio"`
	Media    MediaConfig    `yaml:"media"`
	Subtitle SubtitleConfig `yaml:"subtitle"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Server   LogSettings `yaml:"server"`
	Requests LogSettings `yaml:"requests"`
	Events   LogSettings `yaml:"events"`
}

// LogSettings holds settings for a specific logger.
type LogSettings struct {
	Path  string `yaml:"path"`
	Level string `yaml:"level"`
}

// DBConfig holds database settings.
type DBConfig struct {
	Path string `yaml:"path"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Address string `yaml:"address"`
}

// ToursConfig holds tour library settings.
type ToursConfig struct {
	// Dir is scanned for *.json tour definitions at startup.
	Dir string `yaml:"dir"`
}

// LocationConfig holds location sampling settings.
type LocationConfig struct {
	Provider        string        `yaml:"provider"` // "push", "walksim"
	MinInterval     Duration      `yaml:"min_interval"`
	MinDisplacement Distance      `yaml:"min_displacement"`
	Walksim         WalksimConfig `yaml:"walksim"`
}

// WalksimConfig holds settings for the simulated walker.
type WalksimConfig struct {
	SpeedMS     float64  `yaml:"speed_ms"`
	AccuracyM   float64  `yaml:"accuracy_m"`
	NoiseM      float64  `yaml:"noise_m"`
	Loop        bool     `yaml:"loop"`
	RevokeAfter Duration `yaml:"revoke_after"`
}

// GeofenceConfig holds trigger policy settings.
type GeofenceConfig struct {
	// AccuracyCeiling discards fixes with worse horizontal accuracy.
	AccuracyCeiling Distance `yaml:"accuracy_ceiling"`
}

// AudioConfig holds playback settings.
type AudioConfig struct {
	Volume       float64  `yaml:"volume"`
	SeekStep     Duration `yaml:"seek_step"`
	SampleRateHz int      `yaml:"sample_rate_hz"`
}

// MediaConfig holds media resolution settings.
type MediaConfig struct {
	CacheDir string        `yaml:"cache_dir"`
	Retries  int           `yaml:"retries"`
	Timeout  Duration      `yaml:"timeout"`
	Backoff  BackoffConfig `yaml:"backoff"`
}

// BackoffConfig holds exponential backoff settings.
type BackoffConfig struct {
	BaseDelay Duration `yaml:"base_delay"`
	MaxDelay  Duration `yaml:"max_delay"`
}

// SubtitleConfig holds caption synchronization settings.
type SubtitleConfig struct {
	PollInterval Duration `yaml:"poll_interval"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Server: LogSettings{
				Path:  "./logs/server.log",
				Level: "INFO",
			},
			Requests: LogSettings{
				Path:  "./logs/requests.log",
				Level: "INFO",
			},
			Events: LogSettings{
				Path:  "./logs/events.log",
				Level: "INFO",
			},
		},
		DB: DBConfig{
			Path: "./data/cicerone.db",
		},
		Server: ServerConfig{
			Address: "localhost:1873",
		},
		Tours: ToursConfig{
			Dir: "./tours",
		},
		Location: LocationConfig{
			Provider:        "push",
			MinInterval:     Duration(1 * time.Second),
			MinDisplacement: Distance(2.0),
			Walksim: WalksimConfig{
				SpeedMS:   1.4,
				AccuracyM: 10.0,
				NoiseM:    3.0,
				Loop:      false,
			},
		},
		Geofence: GeofenceConfig{
			AccuracyCeiling: Distance(50.0),
		},
		Audio: AudioConfig{
			Volume:       1.0,
			SeekStep:     Duration(15 * time.Second),
			SampleRateHz: 44100,
		},
		Media: MediaConfig{
			CacheDir: "./data/media",
			Retries:  5,
			Timeout:  Duration(60 * time.Second),
			Backoff: BackoffConfig{
				BaseDelay: Duration(1 * time.Second),
				MaxDelay:  Duration(60 * time.Second),
			},
		},
		Subtitle: SubtitleConfig{
			PollInterval: Duration(100 * time.Millisecond),
		},
	}
}

// Load loads the configuration from the given path.
// If the file does not exist, it creates it with default values.
// If the file exists, it merges defaults with existing values but does NOT save back to disk (to preserve user formatting and comments).
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	// Read existing file if it exists
	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else {
		// If file does not exist, save defaults
		if err := Save(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to save config file: %w", err)
		}
	}

	// Env overrides apply on every run, first run included; they are never
	// saved back to disk.
	if addr := os.Getenv("CICERONE_ADDRESS"); addr != "" {
		cfg.Server.Address = addr
	}
	if dir := os.Getenv("CICERONE_TOURS_DIR"); dir != "" {
		cfg.Tours.Dir = dir
	}

	return cfg, validate(cfg)
}

func validate(cfg *Config) error {
	switch cfg.Location.Provider {
	case "push", "walksim":
	default:
		return fmt.Errorf("unknown location provider %q: must be 'push' or 'walksim'", cfg.Location.Provider)
	}
	if cfg.Geofence.AccuracyCeiling <= 0 {
		return fmt.Errorf("geofence accuracy_ceiling must be positive, got %f", float64(cfg.Geofence.AccuracyCeiling))
	}
	if cfg.Audio.Volume < 0 || cfg.Audio.Volume > 1 {
		return fmt.Errorf("audio volume must be within [0, 1], got %f", cfg.Audio.Volume)
	}
	return nil
}

// Save writes the configuration to the path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# Cicerone Configuration
# ---------------------
# Supported Units:
#   Duration: ns, us (or µs), ms, s, m, h, d (day), w (week)
#   Distance: m (meters), km (kilometers), ft (feet), mi (miles)

`)
	data = append(header, data...)

	// Inject comments for Enum fields
	// We use regex to find the keys with indentation to ensure we place comments correctly.

	// Location Provider Options
	reProvider := regexp.MustCompile(`(?m)^(\s+)provider:`)
	data = reProvider.ReplaceAll(data, []byte("${1}# Options: push (fixes arrive over the API), walksim (simulated walker)\n${1}provider:"))

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GenerateDefault creates a default config file at the given path.
// Returns nil if the file already exists.
func GenerateDefault(path string) error {
	// Check if file already exists
	if _, err := os.Stat(path); err == nil {
		return nil // File exists, do nothing
	}

	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Write default config
	return Save(path, DefaultConfig())
}
