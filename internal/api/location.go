package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"cicerone/pkg/location"
	"cicerone/pkg/tour"
)

var errCoordinatesOutOfRange = errors.New("coordinates out of range")

// LocationHandler ingests position fixes pushed by an external client (a
// companion app, a GPS bridge) and exposes the sampler's state.
type LocationHandler struct {
	sampler  *location.PushSampler
	orch     *tour.Orchestrator
	upgrader websocket.Upgrader
}

// NewLocationHandler creates a new LocationHandler. Returns nil if the
// configured sampler is not push-based.
func NewLocationHandler(sampler *location.PushSampler, orch *tour.Orchestrator) *LocationHandler {
	if sampler == nil {
		return nil
	}
	return &LocationHandler{
		sampler: sampler,
		orch:    orch,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// FixRequest is one pushed position sample.
type FixRequest struct {
	Lat       float64    `json:"lat"`
	Lon       float64    `json:"lon"`
	AccuracyM float64    `json:"accuracy_m"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// AuthRequest changes the reported positioning permission.
type AuthRequest struct {
	Authorized bool `json:"authorized"`
}

// LocationStatusResponse reports the sampler and fix state.
type LocationStatusResponse struct {
	Authorization location.Authorization `json:"authorization"`
	LastFix       *location.Fix          `json:"last_fix,omitempty"`
}

// pushFix validates a pushed sample and forwards it to the sampler.
func (h *LocationHandler) pushFix(req FixRequest) (bool, error) {
	if req.Lat < -90 || req.Lat > 90 || req.Lon < -180 || req.Lon > 180 {
		return false, errCoordinatesOutOfRange
	}

	fix := location.Fix{
		Timestamp: time.Now(),
		Lat:       req.Lat,
		Lon:       req.Lon,
		AccuracyM: req.AccuracyM,
	}
	if req.Timestamp != nil {
		fix.Timestamp = *req.Timestamp
	}
	return h.sampler.Push(fix), nil
}

// HandleFix handles POST /api/location/fix
func (h *LocationHandler) HandleFix(w http.ResponseWriter, r *http.Request) {
	var req FixRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	accepted, err := h.pushFix(req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{
		"status":   "ok",
		"accepted": accepted,
	}); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// HandleStream handles GET /api/location/stream. It upgrades the connection
// to a websocket and ingests one JSON-encoded fix per message, acknowledging
// each with {"accepted": bool}. The connection stays open until the client
// closes it.
func (h *LocationHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("Location stream upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	slog.Debug("Location stream connected", "remote", conn.RemoteAddr())

	for {
		var req FixRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Warn("Location stream read failed", "error", err)
			}
			return
		}

		accepted, err := h.pushFix(req)
		ack := map[string]any{"accepted": accepted}
		if err != nil {
			ack["error"] = err.Error()
		}
		if err := conn.WriteJSON(ack); err != nil {
			slog.Warn("Location stream write failed", "error", err)
			return
		}
	}
}

// HandleAuth handles POST /api/location/auth
func (h *LocationHandler) HandleAuth(w http.ResponseWriter, r *http.Request) {
	var req AuthRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	auth := location.AuthDenied
	if req.Authorized {
		auth = location.AuthGranted
	}
	h.sampler.SetAuthorization(auth)

	slog.Info("Location authorization changed via API", "authorization", auth)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]string{
		"status":        "ok",
		"authorization": string(auth),
	}); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// HandleStatus handles GET /api/location/status
func (h *LocationHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	resp := LocationStatusResponse{
		Authorization: h.sampler.Authorization(),
	}
	if h.orch != nil {
		resp.LastFix = h.orch.LastFix()
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("Failed to encode location status", "error", err)
	}
}
