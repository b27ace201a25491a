package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/boyangli/sentinelmap-positioner/metrics"
	"github.com/boyangli/sentinelmap-positioner/models"
)

func newTestServer() (*Server, *metrics.Metrics) {
	m := metrics.New()
	s := NewServer(Status{CameraID: "cam-1", Method: "homography", Calibrated: true, StaticMaxError: 1.5}, m)
	s.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 1, 0, time.UTC) }
	return s, m
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestLatestBeforeFirstFrame(t *testing.T) {
	s, _ := newTestServer()
	if rec := get(t, s, "/api/positions/latest"); rec.Code != http.StatusNoContent {
		t.Errorf("Expected 204, got %d", rec.Code)
	}
}

func TestLatestFrame(t *testing.T) {
	s, _ := newTestServer()
	radius := 0.8
	positions := []models.DetectedObjectPosition{
		{Latitude: 52.1, Longitude: 5.1, ID: 3, Type: "human", LocationRadius: &radius},
		{Latitude: 52.2, Longitude: 5.2, ID: 4, Type: "human"},
	}
	if err := s.Send(positions, 9, time.Time{}); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	rec := get(t, s, "/api/positions/latest")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	frame, err := models.FrameFromJSON(rec.Body.Bytes())
	if err != nil {
		t.Fatalf("Response is not a frame: %v", err)
	}
	if frame.FrameIndex != 9 || len(frame.DetectedObjects) != 2 {
		t.Errorf("Unexpected frame %+v", frame)
	}
	if frame.SentTimeStamp != "2024-05-01T12:00:01Z" {
		t.Errorf("Unexpected sent time %s", frame.SentTimeStamp)
	}

	rec = get(t, s, "/api/positions/latest/4")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200 for object 4, got %d", rec.Code)
	}
	var p models.DetectedObjectPosition
	if err := json.Unmarshal(rec.Body.Bytes(), &p); err != nil || p.ID != 4 {
		t.Errorf("Expected object 4, got %+v (%v)", p, err)
	}

	if rec := get(t, s, "/api/positions/latest/99"); rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for a missing object, got %d", rec.Code)
	}
	if rec := get(t, s, "/api/positions/latest/abc"); rec.Code != http.StatusNotFound {
		t.Errorf("Expected non-numeric ids not to match a route, got %d", rec.Code)
	}
}

func TestStatus(t *testing.T) {
	s, m := newTestServer()
	m.FramesSent.Add(2)
	_ = s.Send(nil, 12, time.Time{})

	rec := get(t, s, "/api/status")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var body struct {
		CameraID       string            `json:"camera_id"`
		Calibrated     bool              `json:"calibrated"`
		StaticMaxError float64           `json:"static_max_error"`
		LastFrameIndex *int              `json:"last_frame_index"`
		Counters       map[string]uint64 `json:"counters"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Invalid status JSON: %v", err)
	}
	if body.CameraID != "cam-1" || !body.Calibrated || body.StaticMaxError != 1.5 {
		t.Errorf("Unexpected status %+v", body)
	}
	if body.LastFrameIndex == nil || *body.LastFrameIndex != 12 {
		t.Errorf("Expected last frame 12, got %v", body.LastFrameIndex)
	}
	if body.Counters["frames_sent"] != 2 {
		t.Errorf("Expected counters in status, got %v", body.Counters)
	}
}

func TestMetricsRoute(t *testing.T) {
	s, m := newTestServer()
	m.FramesReceived.Add(5)

	rec := get(t, s, "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "positioner_frames_received_total 5") {
		t.Errorf("Expected frame counter in metrics output")
	}

	withoutMetrics := NewServer(Status{}, nil)
	if rec := get(t, withoutMetrics, "/metrics"); rec.Code != http.StatusNotFound {
		t.Errorf("Expected no metrics route without metrics, got %d", rec.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	s, _ := newTestServer()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/status", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405, got %d", rec.Code)
	}
}
