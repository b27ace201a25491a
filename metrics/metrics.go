package metrics

import (
	"math"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the positioner counters
type Metrics struct {
	// Frame counters
	FramesReceived atomic.Uint64
	FramesSkipped  atomic.Uint64
	FramesSent     atomic.Uint64

	// Position counters
	PositionsConverted atomic.Uint64

	// Error counters
	ConversionErrors atomic.Uint64
	SinkErrors       atomic.Uint64

	ConversionLatencyUs atomic.Uint64

	// Float gauges stored as math.Float64bits
	lastMaxRadius  atomic.Uint64
	staticMaxError atomic.Uint64

	radius prometheus.Histogram

	registry *prometheus.Registry
}

// New creates a Metrics instance with its own Prometheus registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		radius: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "positioner_location_radius_meters",
			Help:    "Error radius of emitted positions",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 25, 50},
		}),
	}

	m.registerPrometheusMetrics()

	return m
}

func (m *Metrics) registerPrometheusMetrics() {
	counters := []struct {
		name, help string
		value      *atomic.Uint64
	}{
		{"positioner_frames_received_total", "Frames handed to the positioner", &m.FramesReceived},
		{"positioner_frames_skipped_total", "Frames dropped for lack of a convertor or sink", &m.FramesSkipped},
		{"positioner_frames_sent_total", "Frames delivered to the sink", &m.FramesSent},
		{"positioner_positions_converted_total", "Detections converted to geo positions", &m.PositionsConverted},
		{"positioner_conversion_errors_total", "Frames that failed to convert", &m.ConversionErrors},
		{"positioner_sink_errors_total", "Frames the sink rejected", &m.SinkErrors},
		{"positioner_conversion_latency_us", "Latency of the last frame conversion in microseconds", &m.ConversionLatencyUs},
	}
	for _, c := range counters {
		value := c.value
		m.registry.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{Name: c.name, Help: c.help},
			func() float64 { return float64(value.Load()) },
		))
	}

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "positioner_last_max_radius_meters",
			Help: "Largest error radius in the last converted frame",
		},
		m.LastMaxRadius,
	))

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "positioner_static_max_error_meters",
			Help: "Static max error of the active calibration method",
		},
		m.StaticMaxError,
	))

	m.registry.MustRegister(m.radius)
}

// ObserveRadius records the error radius of one emitted position
func (m *Metrics) ObserveRadius(radius float64) {
	m.radius.Observe(radius)
}

// SetLastMaxRadius stores the largest radius of the last frame
func (m *Metrics) SetLastMaxRadius(radius float64) {
	m.lastMaxRadius.Store(math.Float64bits(radius))
}

// LastMaxRadius returns the largest radius of the last frame
func (m *Metrics) LastMaxRadius() float64 {
	return math.Float64frombits(m.lastMaxRadius.Load())
}

// SetStaticMaxError stores the static max error of the convertor
func (m *Metrics) SetStaticMaxError(e float64) {
	m.staticMaxError.Store(math.Float64bits(e))
}

// StaticMaxError returns the static max error of the convertor
func (m *Metrics) StaticMaxError() float64 {
	return math.Float64frombits(m.staticMaxError.Load())
}

// UpdateConversionLatency stores the duration of the last conversion
func (m *Metrics) UpdateConversionLatency(d time.Duration) {
	m.ConversionLatencyUs.Store(uint64(d.Microseconds()))
}

// Snapshot returns the counters as a plain map
func (m *Metrics) Snapshot() map[string]uint64 {
	return map[string]uint64{
		"frames_received":     m.FramesReceived.Load(),
		"frames_skipped":      m.FramesSkipped.Load(),
		"frames_sent":         m.FramesSent.Load(),
		"positions_converted": m.PositionsConverted.Load(),
		"conversion_errors":   m.ConversionErrors.Load(),
		"sink_errors":         m.SinkErrors.Load(),
	}
}

// Handler returns the Prometheus HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
