package api

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"cicerone/pkg/model"
)

const streamSendBuffer = 16

// EventStreamHandler pushes trip events to websocket subscribers. It
// implements events.Sink so it can be registered with the dispatcher; a slow
// subscriber drops events rather than stalling the others.
type EventStreamHandler struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*websocket.Conn]chan model.TripEvent
	closed  bool
}

// NewEventStreamHandler creates a new EventStreamHandler.
func NewEventStreamHandler() *EventStreamHandler {
	return &EventStreamHandler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The server binds to localhost; cross-origin browsers are fine.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*websocket.Conn]chan model.TripEvent),
	}
}

// Emit fans the event out to all connected subscribers.
func (h *EventStreamHandler) Emit(ev model.TripEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn, ch := range h.clients {
		select {
		case ch <- ev:
		default:
			slog.Warn("Event stream: subscriber lagging, dropping event", "remote", conn.RemoteAddr(), "type", ev.Type)
		}
	}
}

// HandleStream handles GET /api/events/stream
func (h *EventStreamHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	h.mu.Unlock()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("Event stream: upgrade failed", "error", err)
		return
	}

	ch := make(chan model.TripEvent, streamSendBuffer)
	h.mu.Lock()
	h.clients[conn] = ch
	h.mu.Unlock()

	slog.Info("Event stream: subscriber connected", "remote", conn.RemoteAddr())

	go h.writeLoop(conn, ch)
	h.readLoop(conn, ch)
}

// writeLoop drains the subscriber channel onto the wire. It exits when the
// channel is closed by readLoop.
func (h *EventStreamHandler) writeLoop(conn *websocket.Conn, ch <-chan model.TripEvent) {
	for ev := range ch {
		if err := conn.SetWriteDeadline(time.Now().Add(10 * time.Second)); err != nil {
			break
		}
		if err := conn.WriteJSON(ev); err != nil {
			// Force readLoop out of its blocking read.
			_ = conn.Close()
			break
		}
	}
	// Drain so Emit never blocks on a dead subscriber.
	for range ch {
	}
}

// readLoop blocks until the peer disconnects, then unregisters.
func (h *EventStreamHandler) readLoop(conn *websocket.Conn, ch chan model.TripEvent) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.mu.Lock()
	delete(h.clients, conn)
	h.mu.Unlock()
	close(ch)
	_ = conn.Close()

	slog.Info("Event stream: subscriber disconnected", "remote", conn.RemoteAddr())
}

// Close disconnects all subscribers. Connections unwind through their own
// read loops.
func (h *EventStreamHandler) Close() {
	h.mu.Lock()
	h.closed = true
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for conn := range h.clients {
		conns = append(conns, conn)
	}
	h.mu.Unlock()

	for _, conn := range conns {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutdown"),
			time.Now().Add(time.Second))
		_ = conn.Close()
	}
}
