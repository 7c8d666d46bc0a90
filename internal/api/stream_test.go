package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"cicerone/pkg/model"
)

func dialStream(t *testing.T, h *EventStreamHandler) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(h.HandleStream))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestEventStreamHandler_DeliversEvents(t *testing.T) {
	h := NewEventStreamHandler()
	conn := dialStream(t, h)

	// Registration happens before HandleStream returns the upgrade, but
	// give the server a beat to store the subscriber.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		h.mu.Lock()
		n := len(h.clients)
		h.mu.Unlock()
		if n == 1 {
			break
		}
		time.Sleep(2 * time.Millisecond)
	}

	h.Emit(model.TripEvent{Type: model.EventPointTriggered, SessionID: "sess-1", WaypointID: "wp-a"})

	if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatal(err)
	}
	var ev model.TripEvent
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read: %v", err)
	}
	if ev.Type != model.EventPointTriggered || ev.WaypointID != "wp-a" {
		t.Errorf("event: got %+v", ev)
	}
}

func TestEventStreamHandler_EmitWithoutSubscribers(t *testing.T) {
	h := NewEventStreamHandler()
	// Must not panic or block.
	h.Emit(model.TripEvent{Type: model.EventTourStarted})
}

func TestEventStreamHandler_Close(t *testing.T) {
	h := NewEventStreamHandler()
	conn := dialStream(t, h)

	h.Close()

	if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatal(err)
	}
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("expected read error after Close")
	}

	// New subscriptions are refused after Close.
	srv := httptest.NewServer(http.HandlerFunc(h.HandleStream))
	defer srv.Close()
	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("StatusCode: got %v, want %v", resp.StatusCode, http.StatusServiceUnavailable)
	}
}
