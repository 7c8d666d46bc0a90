package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"cicerone/pkg/model"
	"cicerone/pkg/subtitle"
)

// SubtitleHandler serves the currently displayed subtitle cue.
type SubtitleHandler struct {
	sync *subtitle.Synchronizer
}

// NewSubtitleHandler creates a new SubtitleHandler. Returns nil if no
// synchronizer is configured.
func NewSubtitleHandler(sync *subtitle.Synchronizer) *SubtitleHandler {
	if sync == nil {
		return nil
	}
	return &SubtitleHandler{sync: sync}
}

// SubtitleResponse carries the active cue; Cue is null between cues and
// while nothing is playing.
type SubtitleResponse struct {
	Cue *model.SubtitleCue `json:"cue"`
}

// HandleCurrent handles GET /api/subtitle/current
func (h *SubtitleHandler) HandleCurrent(w http.ResponseWriter, r *http.Request) {
	resp := SubtitleResponse{Cue: h.sync.Current()}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("Failed to encode subtitle cue", "error", err)
	}
}
