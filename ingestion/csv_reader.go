package ingestion

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/boyangli/sentinelmap-positioner/models"
)

// CSVReader replays detector output from a CSV file, one DetectionFrame per
// run of rows sharing a frame_number.
//
// Pixel columns are either u/v, or bbox_x1/y1/x2/y2 in which case the bottom
// center of the box is used since that is where the object touches the ground.
type CSVReader struct {
	filePath  string
	startedAt time.Time
}

// NewCSVReader creates a reader. Frame read times are startedAt plus timestamp_sec.
func NewCSVReader(filePath string, startedAt time.Time) *CSVReader {
	return &CSVReader{
		filePath:  filePath,
		startedAt: startedAt,
	}
}

// ReadAll reads the entire CSV into frames (use for smaller files)
func (cr *CSVReader) ReadAll() ([]models.DetectionFrame, error) {
	var frames []models.DetectionFrame
	err := cr.scan(func(frame models.DetectionFrame, _ float64) error {
		frames = append(frames, frame)
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("✅ Loaded %d frames from CSV", len(frames))
	return frames, nil
}

// StreamToChannel sends frames to the channel as they are read. With a
// positive speed frames are paced by timestamp_sec divided by speed.
func (cr *CSVReader) StreamToChannel(ctx context.Context, frameChan chan<- models.DetectionFrame, speed float64) error {
	frameCount := 0
	detectionCount := 0
	startTime := time.Now()
	firstTimestamp := -1.0

	err := cr.scan(func(frame models.DetectionFrame, timestampSec float64) error {
		if speed > 0 {
			if firstTimestamp < 0 {
				firstTimestamp = timestampSec
			}
			due := startTime.Add(time.Duration((timestampSec - firstTimestamp) / speed * float64(time.Second)))
			if wait := time.Until(due); wait > 0 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(wait):
				}
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case frameChan <- frame:
		}

		frameCount++
		detectionCount += len(frame.Detections)
		if frameCount%1000 == 0 {
			elapsed := time.Since(startTime)
			log.Printf("📊 Streamed %d frames (%.2f frames/sec)", frameCount, float64(frameCount)/elapsed.Seconds())
		}
		return nil
	})
	if err != nil {
		return err
	}

	elapsed := time.Since(startTime)
	log.Printf("✅ CSV streaming complete - %d frames, %d detections in %v", frameCount, detectionCount, elapsed)
	return nil
}

type frameRow struct {
	frameNumber  int
	timestampSec float64
	detection    models.DetectedObject
}

// scan parses the file and calls emit for every completed frame
func (cr *CSVReader) scan(emit func(frame models.DetectionFrame, timestampSec float64) error) error {
	file, err := os.Open(cr.filePath)
	if err != nil {
		return fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)

	header, err := reader.Read()
	if err != nil {
		return fmt.Errorf("failed to read CSV header: %w", err)
	}
	colMap := make(map[string]int)
	for i, col := range header {
		colMap[col] = i
	}
	if err := checkColumns(colMap); err != nil {
		return err
	}

	var current *models.DetectionFrame
	var currentTimestamp float64
	flush := func() error {
		if current == nil {
			return nil
		}
		frame := *current
		current = nil
		return emit(frame, currentTimestamp)
	}

	rowIndex := 0
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		rowIndex++
		if err != nil {
			log.Printf("⚠️  Error reading CSV row %d: %v", rowIndex, err)
			continue
		}

		parsed, err := parseRow(row, colMap, rowIndex)
		if err != nil {
			log.Printf("⚠️  Error parsing row %d: %v", rowIndex, err)
			continue
		}

		if current != nil && current.FrameIndex != parsed.frameNumber {
			if err := flush(); err != nil {
				return err
			}
		}
		if current == nil {
			current = &models.DetectionFrame{
				FrameIndex: parsed.frameNumber,
				ReadAt:     cr.readAt(parsed.timestampSec),
			}
			currentTimestamp = parsed.timestampSec
		}
		current.Detections = append(current.Detections, parsed.detection)
	}

	return flush()
}

func (cr *CSVReader) readAt(timestampSec float64) time.Time {
	if cr.startedAt.IsZero() {
		return time.Time{}
	}
	return cr.startedAt.Add(time.Duration(timestampSec * float64(time.Second)))
}

func checkColumns(colMap map[string]int) error {
	for _, col := range []string{"frame_number", "timestamp_sec", "class_name"} {
		if _, ok := colMap[col]; !ok {
			return fmt.Errorf("missing column %s", col)
		}
	}
	_, hasU := colMap["u"]
	_, hasV := colMap["v"]
	_, hasBox := colMap["bbox_x1"]
	if !(hasU && hasV) && !hasBox {
		return fmt.Errorf("missing pixel coordinates (expected u/v or bbox_x1/y1/x2/y2)")
	}
	return nil
}

// parseRow converts a CSV row to a detection. Rows without object_id use the row index.
func parseRow(row []string, colMap map[string]int, rowIndex int) (*frameRow, error) {
	field := func(name string) (string, bool) {
		idx, ok := colMap[name]
		if !ok || idx >= len(row) {
			return "", false
		}
		return row[idx], true
	}
	float := func(name string) (float64, error) {
		value, _ := field(name)
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", name, err)
		}
		return f, nil
	}

	frameValue, _ := field("frame_number")
	frameNumber, err := strconv.Atoi(frameValue)
	if err != nil {
		return nil, fmt.Errorf("invalid frame_number: %w", err)
	}

	timestampSec, err := float("timestamp_sec")
	if err != nil {
		return nil, err
	}

	var x, y float64
	if _, ok := field("u"); ok {
		if x, err = float("u"); err != nil {
			return nil, err
		}
		if y, err = float("v"); err != nil {
			return nil, err
		}
	} else {
		var box [4]float64
		for i, name := range []string{"bbox_x1", "bbox_y1", "bbox_x2", "bbox_y2"} {
			if box[i], err = float(name); err != nil {
				return nil, err
			}
		}
		x = (box[0] + box[2]) / 2.0
		y = max(box[1], box[3])
	}

	id := rowIndex
	if value, ok := field("object_id"); ok && value != "" {
		if id, err = strconv.Atoi(value); err != nil {
			return nil, fmt.Errorf("invalid object_id: %w", err)
		}
	}

	className, _ := field("class_name")

	return &frameRow{
		frameNumber:  frameNumber,
		timestampSec: timestampSec,
		detection: models.DetectedObject{
			X:    x,
			Y:    y,
			ID:   id,
			Type: className,
		},
	}, nil
}
