package models

import "time"

// DetectedObject is a single detector hit in camera pixel space
type DetectedObject struct {
	// Camera-plane pixel coordinates, unconstrained sign
	X float64 `json:"x"`
	Y float64 `json:"y"`

	// Tracker identifier, stable across frames for the same entity
	ID   int    `json:"id"`
	Type string `json:"type"`
}

// Shifted returns a copy of the object moved by (dx, dy) pixels
func (d DetectedObject) Shifted(dx, dy float64) DetectedObject {
	d.X += dx
	d.Y += dy
	return d
}

// DetectionFrame groups the detector output of one camera frame
type DetectionFrame struct {
	FrameIndex int              `json:"frame_index"`
	ReadAt     time.Time        `json:"read_at"`
	Detections []DetectedObject `json:"detections"`
}
