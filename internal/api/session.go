package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"cicerone/pkg/location"
	"cicerone/pkg/model"
	"cicerone/pkg/store"
	"cicerone/pkg/tour"
)

// SessionHandler exposes the session orchestrator over HTTP.
type SessionHandler struct {
	orch   *tour.Orchestrator
	tours  store.TourStore
	events store.EventStore
}

// NewSessionHandler creates a new SessionHandler. Returns nil if the
// orchestrator is missing.
func NewSessionHandler(orch *tour.Orchestrator, tours store.TourStore, events store.EventStore) *SessionHandler {
	if orch == nil {
		return nil
	}
	return &SessionHandler{orch: orch, tours: tours, events: events}
}

// SessionStartRequest selects the tour and trigger mode for a new session.
type SessionStartRequest struct {
	TourID string `json:"tour_id"`
	Mode   string `json:"mode,omitempty"`
}

// SessionModeRequest switches the trigger mode of the active session.
type SessionModeRequest struct {
	Mode string `json:"mode"`
}

// SessionStatusResponse bundles the snapshot with live observer state.
type SessionStatusResponse struct {
	Session model.SessionSnapshot `json:"session"`
	LastFix *location.Fix         `json:"last_fix,omitempty"`
}

// HandleStart handles POST /api/session/start
func (h *SessionHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	var req SessionStartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.TourID == "" {
		http.Error(w, "tour_id is required", http.StatusBadRequest)
		return
	}
	if h.tours == nil {
		http.Error(w, "no tour store configured", http.StatusInternalServerError)
		return
	}

	t, err := h.tours.GetTour(r.Context(), req.TourID)
	if err != nil {
		slog.Error("SessionHandler: tour lookup failed", "tour_id", req.TourID, "error", err)
		http.Error(w, "tour lookup failed", http.StatusInternalServerError)
		return
	}
	if t == nil {
		http.Error(w, "tour not found", http.StatusNotFound)
		return
	}

	snap, err := h.orch.Start(r.Context(), t, model.TriggerMode(req.Mode))
	if err != nil {
		if errors.Is(err, tour.ErrSessionActive) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(snap); err != nil {
		slog.Error("Failed to encode session snapshot", "error", err)
	}
}

// HandleStatus handles GET /api/session
func (h *SessionHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	resp := SessionStatusResponse{
		Session: h.orch.Snapshot(),
		LastFix: h.orch.LastFix(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("Failed to encode session status", "error", err)
	}
}

// HandleAdvance handles POST /api/session/advance
func (h *SessionHandler) HandleAdvance(w http.ResponseWriter, r *http.Request) {
	h.respondAction(w, "advanced", h.orch.Advance())
}

// HandleStopNarration handles POST /api/session/stop-narration
func (h *SessionHandler) HandleStopNarration(w http.ResponseWriter, r *http.Request) {
	h.respondAction(w, "stopped", h.orch.StopNarration())
}

// HandleAbandon handles POST /api/session/abandon
func (h *SessionHandler) HandleAbandon(w http.ResponseWriter, r *http.Request) {
	h.respondAction(w, "abandoned", h.orch.Abandon())
}

// HandleMode handles POST /api/session/mode
func (h *SessionHandler) HandleMode(w http.ResponseWriter, r *http.Request) {
	var req SessionModeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	h.respondAction(w, "mode set", h.orch.SetMode(model.TriggerMode(req.Mode)))
}

// HandleEvents returns the trip event journal for a session.
// Defaults to the current session when no session_id is given.
// GET /api/session/events
func (h *SessionHandler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		sessionID = h.orch.Snapshot().SessionID
	}

	var evs []model.TripEvent
	if sessionID != "" && h.events != nil {
		var err error
		evs, err = h.events.GetEvents(r.Context(), sessionID)
		if err != nil {
			slog.Error("SessionHandler: event lookup failed", "session_id", sessionID, "error", err)
			http.Error(w, "event lookup failed", http.StatusInternalServerError)
			return
		}
	}
	if evs == nil {
		evs = []model.TripEvent{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(evs); err != nil {
		slog.Error("Failed to encode trip events", "error", err)
	}
}

func (h *SessionHandler) respondAction(w http.ResponseWriter, state string, err error) {
	if err != nil {
		switch {
		case errors.Is(err, tour.ErrNoSession), errors.Is(err, tour.ErrSessionTerminal), errors.Is(err, tour.ErrNoNarration):
			http.Error(w, err.Error(), http.StatusConflict)
		case errors.Is(err, location.ErrUnavailable):
			http.Error(w, err.Error(), http.StatusConflict)
		default:
			http.Error(w, err.Error(), http.StatusBadRequest)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]string{
		"status": "ok",
		"state":  state,
	}); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}
