package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"cicerone/pkg/version"
)

// NewServer creates and configures the HTTP server.
// It accepts handlers for all API endpoints and a shutdownFunc for graceful shutdown.
func NewServer(addr string, sessionH *SessionHandler, tourH *TourHandler, locH *LocationHandler, audioH *AudioHandler, subH *SubtitleHandler, statsH *StatsHandler, streamH *EventStreamHandler, shutdown func()) *http.Server {
	mux := http.NewServeMux()

	// 1. Health Endpoint
	mux.HandleFunc("GET /health", handleHealth)

	// 1b. Version Endpoint
	mux.HandleFunc("GET /api/version", handleVersion)

	// 1c. Logs Endpoint
	mux.HandleFunc("GET /api/log/latest", handleLatestLog)

	// 2. Session Endpoints
	if sessionH != nil {
		mux.HandleFunc("POST /api/session/start", sessionH.HandleStart)
		mux.HandleFunc("GET /api/session", sessionH.HandleStatus)
		mux.HandleFunc("POST /api/session/advance", sessionH.HandleAdvance)
		mux.HandleFunc("POST /api/session/stop-narration", sessionH.HandleStopNarration)
		mux.HandleFunc("POST /api/session/abandon", sessionH.HandleAbandon)
		mux.HandleFunc("POST /api/session/mode", sessionH.HandleMode)
		mux.HandleFunc("GET /api/session/events", sessionH.HandleEvents)
	}

	// 3. Tour Endpoints
	if tourH != nil {
		mux.HandleFunc("GET /api/tours", tourH.HandleList)
		mux.HandleFunc("GET /api/tours/{id}", tourH.HandleGet)
		mux.HandleFunc("POST /api/tours", tourH.HandleCreate)
	}

	// 4. Location Endpoints
	if locH != nil {
		mux.HandleFunc("POST /api/location/fix", locH.HandleFix)
		mux.HandleFunc("GET /api/location/stream", locH.HandleStream)
		mux.HandleFunc("POST /api/location/auth", locH.HandleAuth)
		mux.HandleFunc("GET /api/location/status", locH.HandleStatus)
	}

	// 5. Audio Endpoints
	if audioH != nil {
		mux.HandleFunc("POST /api/audio/control", audioH.HandleControl)
		mux.HandleFunc("POST /api/audio/volume", audioH.HandleVolume)
		mux.HandleFunc("GET /api/audio/status", audioH.HandleStatus)
	}

	// 6. Subtitle Endpoint
	if subH != nil {
		mux.HandleFunc("GET /api/subtitle/current", subH.HandleCurrent)
	}

	// 7. Stats Endpoint
	if statsH != nil {
		mux.Handle("GET /api/stats", statsH)
	}

	// 8. Event Stream Endpoint
	if streamH != nil {
		mux.HandleFunc("GET /api/events/stream", streamH.HandleStream)
	}

	// 9. Shutdown Endpoint
	mux.HandleFunc("POST /api/shutdown", func(w http.ResponseWriter, r *http.Request) {
		slog.Info("Graceful shutdown initiated via API")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("Shutting down...")); err != nil {
			slog.Error("Failed to write shutdown response", "error", err)
		}
		// Call shutdown in a goroutine to allow response to flush
		go func() {
			time.Sleep(100 * time.Millisecond)
			shutdown()
		}()
	})

	return &http.Server{
		Addr:         addr,
		Handler:      logRequests(mux),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		slog.Error("Failed to write health response", "error", err)
	}
}

func handleVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if _, err := fmt.Fprintf(w, `{"version": "%s"}`, version.Version); err != nil {
		slog.Error("Failed to write version response", "error", err)
	}
}
