package positioner

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/boyangli/sentinelmap-positioner/metrics"
	"github.com/boyangli/sentinelmap-positioner/models"
)

// MainPositioner drives conversion frame by frame
type MainPositioner struct {
	convertor      Convertor
	sink           Sink
	metrics        *metrics.Metrics
	writeToConsole bool
}

// Option configures a MainPositioner
type Option func(*MainPositioner)

// WithMetrics records frame and conversion counters in m
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *MainPositioner) {
		p.metrics = m
	}
}

// WithConsoleOutput logs every converted frame
func WithConsoleOutput(enabled bool) Option {
	return func(p *MainPositioner) {
		p.writeToConsole = enabled
	}
}

// NewMainPositioner creates a positioner. A nil convertor or sink makes every
// frame a no-op.
func NewMainPositioner(convertor Convertor, sink Sink, opts ...Option) *MainPositioner {
	p := &MainPositioner{convertor: convertor, sink: sink}
	for _, opt := range opts {
		opt(p)
	}

	if convertor == nil {
		log.Printf("⚠️  No convertor configured, frames will be dropped")
	} else if !convertor.Calibrated() {
		log.Printf("⚠️  Running without calibration, positions have no geographic meaning")
	}
	if sink == nil {
		log.Printf("⚠️  No sink configured, frames will be dropped")
	}
	if p.metrics != nil && convertor != nil {
		p.metrics.SetStaticMaxError(convertor.StaticError().MaxError)
	}
	return p
}

// WriteData converts the detections of one frame and sends them to the sink.
// Errors concern this frame only.
//
// An empty frame returns before anything happens, counters included. Frames
// reaching a positioner without convertor or sink are counted as received and
// skipped. Only untyped nil collaborators are detected: a typed nil pointer
// wrapped in Sink or Convertor is called like any other value.
func (p *MainPositioner) WriteData(detections []models.DetectedObject, frameIndex int, readAt time.Time) error {
	if len(detections) == 0 {
		return nil
	}
	if p.metrics != nil {
		p.metrics.FramesReceived.Add(1)
	}
	if p.convertor == nil || p.sink == nil {
		if p.metrics != nil {
			p.metrics.FramesSkipped.Add(1)
		}
		return nil
	}

	start := time.Now()
	positions, err := p.convertor.ConversionWithError(detections, frameIndex)
	if err != nil {
		if p.metrics != nil {
			p.metrics.ConversionErrors.Add(1)
		}
		return fmt.Errorf("failed to convert frame %d: %w", frameIndex, err)
	}
	p.record(positions, time.Since(start))

	if p.writeToConsole {
		p.logFrame(positions, frameIndex)
	}

	if err := p.sink.Send(positions, frameIndex, readAt); err != nil {
		if p.metrics != nil {
			p.metrics.SinkErrors.Add(1)
		}
		return fmt.Errorf("failed to send frame %d: %w", frameIndex, err)
	}
	if p.metrics != nil {
		p.metrics.FramesSent.Add(1)
	}
	return nil
}

// Run feeds frames to WriteData until the channel closes or ctx is done. A
// failing frame is logged and does not stop the loop.
func (p *MainPositioner) Run(ctx context.Context, frames <-chan models.DetectionFrame) error {
	for {
		select {
		case <-ctx.Done():
			log.Println("Positioner shutting down")
			return ctx.Err()
		case frame, ok := <-frames:
			if !ok {
				return nil
			}
			if err := p.WriteData(frame.Detections, frame.FrameIndex, frame.ReadAt); err != nil {
				log.Printf("❌ %v", err)
			}
		}
	}
}

func (p *MainPositioner) record(positions []models.DetectedObjectPosition, elapsed time.Duration) {
	if p.metrics == nil {
		return
	}
	p.metrics.PositionsConverted.Add(uint64(len(positions)))
	p.metrics.UpdateConversionLatency(elapsed)

	var largest float64
	for _, pos := range positions {
		if pos.LocationRadius == nil {
			continue
		}
		p.metrics.ObserveRadius(*pos.LocationRadius)
		largest = max(largest, *pos.LocationRadius)
	}
	p.metrics.SetLastMaxRadius(largest)
}

func (p *MainPositioner) logFrame(positions []models.DetectedObjectPosition, frameIndex int) {
	log.Printf("📍 Frame %d: %d positions", frameIndex, len(positions))
	for _, pos := range positions {
		radius := 0.0
		if pos.LocationRadius != nil {
			radius = *pos.LocationRadius
		}
		log.Printf("   %s %d at (%.7f, %.7f) ±%.2f m", pos.Type, pos.ID, pos.Latitude, pos.Longitude, radius)
	}
}
