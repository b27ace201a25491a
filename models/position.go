package models

import (
	"encoding/json"
	"time"
)

// GeoPosition is a WGS-84 position
type GeoPosition struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Altitude  float64 `json:"altitude"`
}

// LocalGridPosition is a planar Rijksdriehoek (RD New) coordinate in meters
type LocalGridPosition struct {
	X float64
	Y float64
}

// MarshalJSON writes the grid position as a two element array
func (p LocalGridPosition) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{p.X, p.Y})
}

// UnmarshalJSON reads a two element array
func (p *LocalGridPosition) UnmarshalJSON(data []byte) error {
	var pair [2]float64
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	p.X, p.Y = pair[0], pair[1]
	return nil
}

// DetectedObjectPosition is the geo-referenced result for one detection
type DetectedObjectPosition struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Altitude  float64 `json:"altitude"`

	ID   int    `json:"id"`
	Type string `json:"type"`

	// Accuracy radius in meters, nil until the error model ran
	LocationRadius *float64 `json:"locationRadius,omitempty"`

	// Local grid coordinates, nil when no calibrated anchor exists
	GridX *float64 `json:"rijksdriehoekX,omitempty"`
	GridY *float64 `json:"rijksdriehoekY,omitempty"`
}

// WithRadius returns a copy carrying the given error radius
func (p DetectedObjectPosition) WithRadius(radius float64) DetectedObjectPosition {
	p.LocationRadius = &radius
	return p
}

// Frame is the payload handed to sinks for one analyzed camera frame
type Frame struct {
	FrameIndex      int                      `json:"frameIndex"`
	FrameTimeStamp  string                   `json:"frameTimeStamp"`
	SentTimeStamp   string                   `json:"sentTimeStamp"`
	SessionID       string                   `json:"sessionId,omitempty"`
	DetectedObjects []DetectedObjectPosition `json:"detectedObjects"`
}

// ZeroFrameTimeStamp is written when the frame read time is unknown
const ZeroFrameTimeStamp = "0001-01-01T00:00:00"

// NewFrame builds a frame payload, stamping the send time with now
func NewFrame(positions []DetectedObjectPosition, frameIndex int, readAt, now time.Time) *Frame {
	frameTimeStamp := ZeroFrameTimeStamp
	if !readAt.IsZero() {
		frameTimeStamp = readAt.Format(time.RFC3339Nano)
	}
	if positions == nil {
		positions = []DetectedObjectPosition{}
	}
	return &Frame{
		FrameIndex:      frameIndex,
		FrameTimeStamp:  frameTimeStamp,
		SentTimeStamp:   now.Format(time.RFC3339Nano),
		DetectedObjects: positions,
	}
}

// ToJSON serializes the Frame to JSON
func (f *Frame) ToJSON() ([]byte, error) {
	return json.Marshal(f)
}

// FrameFromJSON deserializes JSON to Frame
func FrameFromJSON(data []byte) (*Frame, error) {
	var f Frame
	err := json.Unmarshal(data, &f)
	return &f, err
}
