package positioner

import (
	"github.com/boyangli/sentinelmap-positioner/accuracy"
	"github.com/boyangli/sentinelmap-positioner/models"
)

// Fixed frame of the passthrough convertor
const (
	passthroughOriginX = 540.0
	passthroughOriginY = 250.0
	passthroughScaleX  = 40.0
	passthroughScaleY  = 30.0
)

// PassthroughConvertor is used when no calibration exists. It rescales raw
// pixels into a small fixed frame: positions have altitude 0, no grid
// coordinates and no geographic meaning.
type PassthroughConvertor struct {
	staticError accuracy.StaticError
}

// NewPassthroughConvertor creates an uncalibrated convertor with zero static error
func NewPassthroughConvertor() *PassthroughConvertor {
	static, _ := accuracy.StaticError{}.AverageErrors()
	return &PassthroughConvertor{staticError: static}
}

// Convert implements Convertor
func (c *PassthroughConvertor) Convert(detections []models.DetectedObject, frameIndex int) ([]models.DetectedObjectPosition, error) {
	positions := make([]models.DetectedObjectPosition, 0, len(detections))
	for _, d := range detections {
		positions = append(positions, models.DetectedObjectPosition{
			Latitude:  (passthroughOriginY - d.Y) / passthroughScaleY,
			Longitude: (d.X - passthroughOriginX) / passthroughScaleX,
			ID:        d.ID,
			Type:      d.Type,
		})
	}
	return positions, nil
}

// ConversionWithError implements Convertor
func (c *PassthroughConvertor) ConversionWithError(detections []models.DetectedObject, frameIndex int) ([]models.DetectedObjectPosition, error) {
	return conversionWithError(c.Convert, c.staticError, detections, frameIndex)
}

// StaticError implements Convertor
func (c *PassthroughConvertor) StaticError() accuracy.StaticError {
	return c.staticError
}

// Calibrated implements Convertor
func (c *PassthroughConvertor) Calibrated() bool {
	return false
}
