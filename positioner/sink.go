package positioner

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/boyangli/sentinelmap-positioner/models"
)

// Sink receives the positions of one frame
type Sink interface {
	Send(positions []models.DetectedObjectPosition, frameIndex int, readAt time.Time) error
}

// SinkFunc adapts a function to Sink
type SinkFunc func(positions []models.DetectedObjectPosition, frameIndex int, readAt time.Time) error

// Send implements Sink
func (f SinkFunc) Send(positions []models.DetectedObjectPosition, frameIndex int, readAt time.Time) error {
	return f(positions, frameIndex, readAt)
}

// MultiSink fans a frame out to every sink. All sinks are tried, failures are joined.
type MultiSink []Sink

// Send implements Sink
func (m MultiSink) Send(positions []models.DetectedObjectPosition, frameIndex int, readAt time.Time) error {
	var errs []error
	for _, s := range m {
		if err := s.Send(positions, frameIndex, readAt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// JSONLineSink writes every frame payload as one JSON line
type JSONLineSink struct {
	mu        sync.Mutex
	w         io.Writer
	sessionID string
	now       func() time.Time
}

// NewJSONLineSink creates a sink writing to w
func NewJSONLineSink(w io.Writer, sessionID string) *JSONLineSink {
	return &JSONLineSink{w: w, sessionID: sessionID, now: time.Now}
}

// Send implements Sink
func (s *JSONLineSink) Send(positions []models.DetectedObjectPosition, frameIndex int, readAt time.Time) error {
	frame := models.NewFrame(positions, frameIndex, readAt, s.now())
	frame.SessionID = s.sessionID
	payload, err := frame.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to serialize frame %d: %w", frameIndex, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.w.Write(append(payload, '\n')); err != nil {
		return fmt.Errorf("failed to write frame %d: %w", frameIndex, err)
	}
	return nil
}
