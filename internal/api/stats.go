package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"runtime"
	"time"

	"cicerone/pkg/events"
	"cicerone/pkg/tracker"
)

// StatsHandler serves engine counters for the diagnostics view.
type StatsHandler struct {
	tracker    *tracker.Tracker
	dispatcher *events.Dispatcher
	started    time.Time
}

// NewStatsHandler creates a new StatsHandler.
func NewStatsHandler(t *tracker.Tracker, d *events.Dispatcher) *StatsHandler {
	return &StatsHandler{
		tracker:    t,
		dispatcher: d,
		started:    time.Now(),
	}
}

// StatsResponse is the diagnostics payload.
type StatsResponse struct {
	Sessions      map[string]tracker.SessionStats `json:"sessions"`
	EventsDropped uint64                          `json:"events_dropped"`
	UptimeSec     int64                           `json:"uptime_sec"`
	Goroutines    int                             `json:"goroutines"`
	MemoryMB      uint64                          `json:"memory_mb"`
}

func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	resp := StatsResponse{
		Sessions:   map[string]tracker.SessionStats{},
		UptimeSec:  int64(time.Since(h.started).Seconds()),
		Goroutines: runtime.NumGoroutine(),
		MemoryMB:   mem.Alloc / 1024 / 1024,
	}
	if h.tracker != nil {
		resp.Sessions = h.tracker.Snapshot()
	}
	if h.dispatcher != nil {
		resp.EventsDropped = h.dispatcher.Dropped()
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("Failed to encode stats", "error", err)
	}
}
