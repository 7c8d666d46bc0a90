package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"cicerone/pkg/model"
	"cicerone/pkg/store"
)

// TourHandler serves tour definitions.
type TourHandler struct {
	store store.TourStore
}

// NewTourHandler creates a new TourHandler. Returns nil if the store is missing.
func NewTourHandler(st store.TourStore) *TourHandler {
	if st == nil {
		return nil
	}
	return &TourHandler{store: st}
}

// tourSummary is the list representation; waypoints are elided.
type tourSummary struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Language      string `json:"language,omitempty"`
	WaypointCount int    `json:"waypoint_count"`
}

// HandleList handles GET /api/tours
func (h *TourHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	tours, err := h.store.ListTours(r.Context())
	if err != nil {
		slog.Error("TourHandler: list failed", "error", err)
		http.Error(w, "tour listing failed", http.StatusInternalServerError)
		return
	}

	summaries := make([]tourSummary, 0, len(tours))
	for _, t := range tours {
		summaries = append(summaries, tourSummary{
			ID:            t.ID,
			Title:         t.Title,
			Language:      t.Language,
			WaypointCount: len(t.Waypoints),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(summaries); err != nil {
		slog.Error("Failed to encode tour list", "error", err)
	}
}

// HandleGet handles GET /api/tours/{id}
func (h *TourHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	t, err := h.store.GetTour(r.Context(), id)
	if err != nil {
		slog.Error("TourHandler: lookup failed", "tour_id", id, "error", err)
		http.Error(w, "tour lookup failed", http.StatusInternalServerError)
		return
	}
	if t == nil {
		http.Error(w, "tour not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(t); err != nil {
		slog.Error("Failed to encode tour", "error", err)
	}
}

// HandleCreate handles POST /api/tours
func (h *TourHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var t model.Tour
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := t.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.store.SaveTour(r.Context(), &t); err != nil {
		slog.Error("TourHandler: save failed", "tour_id", t.ID, "error", err)
		http.Error(w, "tour save failed", http.StatusInternalServerError)
		return
	}

	slog.Info("Tour saved via API", "tour_id", t.ID, "waypoints", len(t.Waypoints))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(map[string]string{
		"status": "ok",
		"id":     t.ID,
	}); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}
