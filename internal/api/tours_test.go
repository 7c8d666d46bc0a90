package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"cicerone/pkg/model"
)

func TestTourHandler_List(t *testing.T) {
	h := NewTourHandler(newFakeTourStore(apiTestTour()))

	req := httptest.NewRequest("GET", "/api/tours", http.NoBody)
	w := httptest.NewRecorder()
	h.HandleList(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("StatusCode: got %v", w.Code)
	}
	var summaries []tourSummary
	if err := json.NewDecoder(w.Body).Decode(&summaries); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(summaries) != 1 {
		t.Fatalf("summaries: got %d, want 1", len(summaries))
	}
	if summaries[0].ID != "tour-api" || summaries[0].WaypointCount != 2 {
		t.Errorf("summary: got %+v", summaries[0])
	}
}

func TestTourHandler_Get(t *testing.T) {
	h := NewTourHandler(newFakeTourStore(apiTestTour()))

	req := httptest.NewRequest("GET", "/api/tours/tour-api", http.NoBody)
	req.SetPathValue("id", "tour-api")
	w := httptest.NewRecorder()
	h.HandleGet(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("StatusCode: got %v", w.Code)
	}
	var tr model.Tour
	if err := json.NewDecoder(w.Body).Decode(&tr); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(tr.Waypoints) != 2 {
		t.Errorf("waypoints: got %d, want 2", len(tr.Waypoints))
	}
}

func TestTourHandler_Get_NotFound(t *testing.T) {
	h := NewTourHandler(newFakeTourStore())

	req := httptest.NewRequest("GET", "/api/tours/nope", http.NoBody)
	req.SetPathValue("id", "nope")
	w := httptest.NewRecorder()
	h.HandleGet(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("StatusCode: got %v, want %v", w.Code, http.StatusNotFound)
	}
}

func TestTourHandler_Create(t *testing.T) {
	st := newFakeTourStore()
	h := NewTourHandler(st)

	body, err := json.Marshal(apiTestTour())
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest("POST", "/api/tours", strings.NewReader(string(body)))
	w := httptest.NewRecorder()
	h.HandleCreate(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("StatusCode: got %v (%s)", w.Code, w.Body.String())
	}
	saved, err := st.GetTour(t.Context(), "tour-api")
	if err != nil || saved == nil {
		t.Fatalf("tour not saved: %v", err)
	}
}

func TestTourHandler_Create_Invalid(t *testing.T) {
	h := NewTourHandler(newFakeTourStore())

	// Sequence order must be dense 1-based.
	body := `{"id": "bad", "title": "Bad", "waypoints": [{"id": "w", "sequence_order": 7, "lat": 1, "lon": 2, "trigger_radius_m": 30, "media_ref": "x.mp3"}]}`
	req := httptest.NewRequest("POST", "/api/tours", strings.NewReader(body))
	w := httptest.NewRecorder()
	h.HandleCreate(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("StatusCode: got %v, want %v", w.Code, http.StatusBadRequest)
	}
}
