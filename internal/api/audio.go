package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"cicerone/pkg/audio"
	"cicerone/pkg/store"
)

// NarrationControl is the slice of the orchestrator the audio handler needs.
// Stopping through it keeps the session advancing instead of leaving it
// stuck mid-waypoint.
type NarrationControl interface {
	StopNarration() error
	Interrupt()
	EndInterruption()
}

// AudioHandler handles audio control endpoints.
type AudioHandler struct {
	driver    audio.Driver
	narration NarrationControl
	store     store.StateStore
	seekStep  time.Duration
}

// NewAudioHandler creates a new AudioHandler.
func NewAudioHandler(driver audio.Driver, narration NarrationControl, st store.StateStore, seekStep time.Duration) *AudioHandler {
	if driver == nil {
		return nil
	}
	if seekStep <= 0 {
		seekStep = 15 * time.Second
	}
	return &AudioHandler{
		driver:    driver,
		narration: narration,
		store:     st,
		seekStep:  seekStep,
	}
}

// AudioControlRequest represents an audio control command.
type AudioControlRequest struct {
	Action string `json:"action"` // "pause", "resume", "stop", "seek_forward", "seek_back", "duck", "unduck", "interrupt", "end_interrupt"
}

// AudioVolumeRequest represents a volume change request.
type AudioVolumeRequest struct {
	Volume float64 `json:"volume"`
}

// AudioStatusResponse represents the audio status.
type AudioStatusResponse struct {
	IsPlaying  bool    `json:"is_playing"`
	IsPaused   bool    `json:"is_paused"`
	IsBusy     bool    `json:"is_busy"`
	Volume     float64 `json:"volume"`
	PositionMS int64   `json:"position_ms"`
	DurationMS int64   `json:"duration_ms"`
}

// HandleControl handles POST /api/audio/control
func (h *AudioHandler) HandleControl(w http.ResponseWriter, r *http.Request) {
	var req AudioControlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	var state string
	switch req.Action {
	case "pause":
		h.driver.Pause()
		state = "paused"
	case "resume":
		h.driver.Resume()
		state = "playing"
	case "stop":
		if h.narration != nil {
			if err := h.narration.StopNarration(); err != nil {
				h.driver.Stop()
			}
		} else {
			h.driver.Stop()
		}
		state = "stopped"
	case "seek_forward":
		if err := h.driver.SeekRelative(h.seekStep); err != nil {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		state = "seeked"
	case "seek_back":
		if err := h.driver.SeekRelative(-h.seekStep); err != nil {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		state = "seeked"
	case "interrupt":
		if h.narration != nil {
			h.narration.Interrupt()
		} else {
			h.driver.Interrupt()
		}
		state = "interrupted"
	case "end_interrupt":
		if h.narration != nil {
			h.narration.EndInterruption()
		} else {
			h.driver.EndInterruption()
		}
		state = "resumed"
	case "duck":
		h.driver.Duck()
		state = "ducked"
	case "unduck":
		h.driver.Unduck()
		state = "unducked"
	default:
		http.Error(w, "unknown action", http.StatusBadRequest)
		return
	}

	slog.Debug("Audio control", "action", req.Action, "state", state)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]string{
		"status": "ok",
		"state":  state,
	}); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// HandleVolume handles POST /api/audio/volume
func (h *AudioHandler) HandleVolume(w http.ResponseWriter, r *http.Request) {
	var req AudioVolumeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Volume < 0 || req.Volume > 1 {
		http.Error(w, "volume must be between 0 and 1", http.StatusBadRequest)
		return
	}

	h.driver.SetVolume(req.Volume)

	// Persist volume
	if h.store != nil {
		strVal := fmt.Sprintf("%.2f", req.Volume)
		if err := h.store.SetState(r.Context(), "volume", strVal); err != nil {
			slog.Error("Failed to persist volume", "error", err)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{
		"status": "ok",
		"volume": h.driver.Volume(),
	}); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// HandleStatus handles GET /api/audio/status
func (h *AudioHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	resp := AudioStatusResponse{
		IsPlaying:  h.driver.IsPlaying(),
		IsPaused:   h.driver.IsPaused(),
		IsBusy:     h.driver.IsBusy(),
		Volume:     h.driver.Volume(),
		PositionMS: h.driver.Position().Milliseconds(),
		DurationMS: h.driver.Duration().Milliseconds(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}
