package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/boyangli/sentinelmap-positioner/metrics"
	"github.com/boyangli/sentinelmap-positioner/models"
	"github.com/gorilla/mux"
)

// Status describes the running positioner
type Status struct {
	CameraID           string    `json:"camera_id"`
	Method             string    `json:"method"`
	Calibrated         bool      `json:"calibrated"`
	StaticMaxError     float64   `json:"static_max_error"`
	StaticAverageError float64   `json:"static_average_error"`
	StartedAt          time.Time `json:"started_at"`
}

type statusResponse struct {
	Status
	LastFrameIndex *int              `json:"last_frame_index"`
	Counters       map[string]uint64 `json:"counters,omitempty"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Server exposes the latest frame and the positioner status over HTTP. It
// implements positioner.Sink so it can sit next to the other sinks.
type Server struct {
	status  Status
	metrics *metrics.Metrics
	router  *mux.Router
	now     func() time.Time

	mu     sync.RWMutex
	latest *models.Frame
}

// NewServer creates the HTTP surface. m may be nil.
func NewServer(status Status, m *metrics.Metrics) *Server {
	s := &Server{
		status:  status,
		metrics: m,
		router:  mux.NewRouter(),
		now:     time.Now,
	}

	s.router.HandleFunc("/api/status", s.handleStatus).Methods("GET")
	s.router.HandleFunc("/api/positions/latest", s.handleLatest).Methods("GET")
	s.router.HandleFunc("/api/positions/latest/{id:-?[0-9]+}", s.handleLatestObject).Methods("GET")
	if m != nil {
		s.router.Handle("/metrics", m.Handler()).Methods("GET")
	}
	return s
}

// Send implements positioner.Sink by caching the frame
func (s *Server) Send(positions []models.DetectedObjectPosition, frameIndex int, readAt time.Time) error {
	frame := models.NewFrame(positions, frameIndex, readAt, s.now())

	s.mu.Lock()
	s.latest = frame
	s.mu.Unlock()
	return nil
}

// Handler returns the router
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves until ctx is done, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Handler:      s.router,
		Addr:         addr,
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		log.Printf("🌐 HTTP server listening on %s", addr)
		errChan <- srv.ListenAndServe()
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errChan; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) latestFrame() *models.Frame {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	response := statusResponse{Status: s.status}
	if frame := s.latestFrame(); frame != nil {
		index := frame.FrameIndex
		response.LastFrameIndex = &index
	}
	if s.metrics != nil {
		response.Counters = s.metrics.Snapshot()
	}
	writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleLatest(w http.ResponseWriter, _ *http.Request) {
	frame := s.latestFrame()
	if frame == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, frame)
}

func (s *Server) handleLatestObject(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_id", Message: err.Error()})
		return
	}

	frame := s.latestFrame()
	if frame != nil {
		for _, p := range frame.DetectedObjects {
			if p.ID == id {
				writeJSON(w, http.StatusOK, p)
				return
			}
		}
	}
	writeJSON(w, http.StatusNotFound, errorResponse{
		Error:   "not_found",
		Message: "object " + strconv.Itoa(id) + " is not in the latest frame",
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("⚠️  Failed to write response: %v", err)
	}
}
