package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/boyangli/sentinelmap-positioner/accuracy"
	"github.com/boyangli/sentinelmap-positioner/api"
	"github.com/boyangli/sentinelmap-positioner/calibration"
	"github.com/boyangli/sentinelmap-positioner/config"
	"github.com/boyangli/sentinelmap-positioner/ingestion"
	"github.com/boyangli/sentinelmap-positioner/metrics"
	"github.com/boyangli/sentinelmap-positioner/models"
	"github.com/boyangli/sentinelmap-positioner/positioner"
	"github.com/boyangli/sentinelmap-positioner/producer"
	"github.com/boyangli/sentinelmap-positioner/storage"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("⚠️  No .env file found, using environment variables")
	}

	csvPath := flag.String("csv", "detections.csv", "Path to detection CSV file")
	sessionID := flag.String("session", "", "Session ID (auto-generated if empty)")
	serveHTTP := flag.Bool("http", true, "Serve status, latest positions and metrics over HTTP")
	flag.Parse()

	cfg, err := config.NewPositionerConfig()
	if err != nil {
		log.Fatalf("❌ Invalid configuration: %v", err)
	}
	if *sessionID == "" {
		*sessionID = producer.NewSessionID()
	}

	log.Println("╔═══════════════════════════════════════════════════════════╗")
	log.Println("║   SentinelMap - Camera Positioning Engine                 ║")
	log.Println("╚═══════════════════════════════════════════════════════════╝")
	log.Printf("Camera ID: %s", cfg.CameraID)
	log.Printf("Session ID: %s", *sessionID)
	log.Printf("CSV Path: %s", *csvPath)
	log.Printf("Data Dir: %s", cfg.DataDir)
	log.Printf("Sinks: %v", cfg.Sinks)
	log.Println("───────────────────────────────────────────────────────────")

	convertor, err := buildConvertor(cfg)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}

	m := metrics.New()
	static := convertor.StaticError()
	server := api.NewServer(api.Status{
		CameraID:           cfg.CameraID,
		Method:             calibration.MethodHomography.String(),
		Calibrated:         convertor.Calibrated(),
		StaticMaxError:     static.MaxError,
		StaticAverageError: static.AverageError,
		StartedAt:          time.Now(),
	}, m)

	sinks, closers, err := buildSinks(cfg, *sessionID)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	defer func() {
		for _, c := range closers {
			c()
		}
	}()
	sinks = append(sinks, server)

	p := positioner.NewMainPositioner(convertor, sinks,
		positioner.WithMetrics(m),
		positioner.WithConsoleOutput(cfg.WriteToConsole),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("\n🛑 Received shutdown signal")
		cancel()
	}()

	httpDone := make(chan struct{})
	if *serveHTTP {
		go func() {
			defer close(httpDone)
			if err := server.ListenAndServe(ctx, cfg.HTTPAddr); err != nil {
				log.Printf("❌ HTTP server error: %v", err)
			}
		}()
	} else {
		close(httpDone)
	}

	frames := make(chan models.DetectionFrame, 64)
	reader := ingestion.NewCSVReader(*csvPath, time.Now())
	go func() {
		defer close(frames)
		if err := reader.StreamToChannel(ctx, frames, cfg.ReplaySpeed); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("❌ CSV streaming error: %v", err)
		}
	}()

	startTime := time.Now()
	if err := p.Run(ctx, frames); err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("⚠️  Positioner stopped: %v", err)
	}
	elapsed := time.Since(startTime)

	cancel()
	select {
	case <-httpDone:
	case <-time.After(cfg.ShutdownGrace):
		log.Printf("⚠️  HTTP server did not stop within %v", cfg.ShutdownGrace)
	}

	snapshot := m.Snapshot()
	log.Println("\n═══════════════════════════════════════════════════════════")
	log.Println("                    FINAL REPORT")
	log.Println("═══════════════════════════════════════════════════════════")
	log.Printf("📊 Frames - Received: %d | Sent: %d | Skipped: %d",
		snapshot["frames_received"], snapshot["frames_sent"], snapshot["frames_skipped"])
	log.Printf("📍 Positions: %d | Conversion errors: %d | Sink errors: %d",
		snapshot["positions_converted"], snapshot["conversion_errors"], snapshot["sink_errors"])
	log.Printf("📏 Static error: %s", static)
	log.Printf("⏱️  Total Time: %v", elapsed)
	if elapsed > 0 {
		log.Printf("🚀 Throughput: %.2f frames/sec", float64(snapshot["frames_sent"])/elapsed.Seconds())
	}
	log.Println("═══════════════════════════════════════════════════════════")
}

// buildConvertor loads the calibration of the camera and evaluates its static
// error. Without a persisted calibration the passthrough convertor is used.
func buildConvertor(cfg *config.PositionerConfig) (positioner.Convertor, error) {
	store := calibration.NewStore(cfg.DataDir)
	calib, err := store.Load(cfg.CameraID, cfg.AnalyzeResolution())
	if errors.Is(err, calibration.ErrNotFound) {
		log.Printf("⚠️  No calibration for camera %s, using passthrough positions", cfg.CameraID)
		return positioner.NewPassthroughConvertor(), nil
	}
	if err != nil {
		return nil, err
	}
	log.Printf("✅ Loaded %s calibration for camera %s (%dx%d)",
		calib.Method, cfg.CameraID, calib.CameraResolution[0], calib.CameraResolution[1])

	datasets, err := accuracy.LoadDatasets(cfg.DatasetDir)
	if err != nil {
		return nil, err
	}
	return positioner.NewHomographyConvertor(calib, datasets)
}

// buildSinks creates the configured sinks together with their shutdown hooks
func buildSinks(cfg *config.PositionerConfig, sessionID string) (positioner.MultiSink, []func(), error) {
	var sinks positioner.MultiSink
	var closers []func()

	if cfg.HasSink(config.SinkKafka) {
		kp, err := producer.NewKafkaProducer(config.NewKafkaConfig(), sessionID)
		if err != nil {
			return nil, closers, err
		}
		sinks = append(sinks, kp)
		closers = append(closers, kp.Close)
	}

	if cfg.HasSink(config.SinkPostgres) {
		db, err := storage.Connect(cfg.PostgresURL)
		if err != nil {
			return nil, closers, err
		}
		pg := storage.NewPostgresSink(db, sessionID)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err = pg.EnsureSchema(ctx)
		cancel()
		if err != nil {
			pg.Close()
			return nil, closers, err
		}
		log.Printf("✅ Postgres sink ready")
		sinks = append(sinks, pg)
		closers = append(closers, func() {
			if err := pg.Close(); err != nil {
				log.Printf("⚠️  Failed to close postgres: %v", err)
			}
		})
	}

	if cfg.HasSink(config.SinkLog) {
		sinks = append(sinks, positioner.NewJSONLineSink(os.Stdout, sessionID))
	}

	return sinks, closers, nil
}
