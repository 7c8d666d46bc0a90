package model

import (
	"encoding/json"
	"fmt"
	"os"
)

// LoadTour reads and validates a tour definition from a JSON file.
func LoadTour(path string) (*Tour, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tour file: %w", err)
	}

	var t Tour
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse tour file: %w", err)
	}
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("invalid tour %s: %w", path, err)
	}
	return &t, nil
}

// SaveTour writes a tour definition to a JSON file.
func SaveTour(path string, t *Tour) error {
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal tour: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write tour file: %w", err)
	}
	return nil
}
