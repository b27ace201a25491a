package config

import (
	"fmt"
	"time"

	"github.com/boyangli/sentinelmap-positioner/calibration"
)

// Sink names accepted in POSITIONER_SINK
const (
	SinkKafka    = "kafka"
	SinkPostgres = "postgres"
	SinkLog      = "log"
)

// PositionerConfig holds the settings of the positioning pipeline
type PositionerConfig struct {
	DataDir        string
	DatasetDir     string
	CameraID       string
	AnalyzeWidth   int
	AnalyzeHeight  int
	Sinks          []string
	WriteToConsole bool
	PostgresURL    string
	HTTPAddr       string
	// Playback rate of CSV replays, 0 replays as fast as possible
	ReplaySpeed float64
	ShutdownGrace time.Duration
}

// NewPositionerConfig reads the pipeline settings from the environment
func NewPositionerConfig() (*PositionerConfig, error) {
	dataDir := getEnv("POSITIONER_DATA_DIR", "")
	if dataDir == "" {
		dir, err := calibration.DefaultDataDir()
		if err != nil {
			return nil, err
		}
		dataDir = dir
	}

	cfg := &PositionerConfig{
		DataDir:        dataDir,
		DatasetDir:     getEnv("POSITIONER_DATASET_DIR", ""),
		CameraID:       getEnv("POSITIONER_CAMERA_ID", "0"),
		AnalyzeWidth:   getEnvInt("POSITIONER_ANALYZE_WIDTH", 0),
		AnalyzeHeight:  getEnvInt("POSITIONER_ANALYZE_HEIGHT", 0),
		Sinks:          getEnvList("POSITIONER_SINK", []string{SinkLog}),
		WriteToConsole: getEnvBool("POSITIONER_WRITE_TO_CONSOLE", false),
		PostgresURL:    getEnv("POSTGRES_URL", ""),
		HTTPAddr:       getEnv("POSITIONER_HTTP_ADDR", ":8090"),
		ReplaySpeed:    getEnvFloat("POSITIONER_REPLAY_SPEED", 0),
		ShutdownGrace:  time.Duration(getEnvInt("POSITIONER_SHUTDOWN_GRACE_SEC", 5)) * time.Second,
	}
	return cfg, cfg.Validate()
}

// Validate rejects combinations the pipeline cannot run with
func (c *PositionerConfig) Validate() error {
	if (c.AnalyzeWidth == 0) != (c.AnalyzeHeight == 0) {
		return fmt.Errorf("POSITIONER_ANALYZE_WIDTH and POSITIONER_ANALYZE_HEIGHT must be set together")
	}
	if c.AnalyzeWidth < 0 || c.AnalyzeHeight < 0 {
		return fmt.Errorf("analyze resolution must be positive, got %dx%d", c.AnalyzeWidth, c.AnalyzeHeight)
	}
	if c.ReplaySpeed < 0 {
		return fmt.Errorf("POSITIONER_REPLAY_SPEED must not be negative, got %v", c.ReplaySpeed)
	}
	for _, s := range c.Sinks {
		switch s {
		case SinkKafka, SinkLog:
		case SinkPostgres:
			if c.PostgresURL == "" {
				return fmt.Errorf("sink %q needs POSTGRES_URL", s)
			}
		default:
			return fmt.Errorf("unknown sink %q (expected kafka, postgres or log)", s)
		}
	}
	return nil
}

// AnalyzeResolution is the working resolution detections are expressed in.
// Zero means the calibration resolution is used as is.
func (c *PositionerConfig) AnalyzeResolution() [2]int {
	return [2]int{c.AnalyzeWidth, c.AnalyzeHeight}
}

// HasSink reports whether name is among the configured sinks
func (c *PositionerConfig) HasSink(name string) bool {
	for _, s := range c.Sinks {
		if s == name {
			return true
		}
	}
	return false
}
