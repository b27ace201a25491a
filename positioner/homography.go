package positioner

import (
	"fmt"

	"github.com/boyangli/sentinelmap-positioner/accuracy"
	"github.com/boyangli/sentinelmap-positioner/calibration"
	"github.com/boyangli/sentinelmap-positioner/geodesy"
	"github.com/boyangli/sentinelmap-positioner/models"
)

// HomographyConvertor projects camera pixels onto the top-down reference image
// and places them relative to the calibration anchor.
type HomographyConvertor struct {
	cfg         *calibration.Configuration
	staticError accuracy.StaticError
}

// NewHomographyConvertor builds a convertor and measures the static error of
// the configuration's method against datasets.
func NewHomographyConvertor(cfg *calibration.Configuration, datasets []*accuracy.Dataset) (*HomographyConvertor, error) {
	if cfg == nil {
		return nil, ErrNoConfiguration
	}

	static, err := accuracy.EvaluateStaticError(datasets, cfg.Method, convertToGeo)
	if err != nil {
		return nil, fmt.Errorf("failed to compute static error: %w", err)
	}

	return &HomographyConvertor{cfg: cfg, staticError: static}, nil
}

// Configuration returns the calibration in use
func (c *HomographyConvertor) Configuration() *calibration.Configuration {
	return c.cfg
}

// Convert implements Convertor
func (c *HomographyConvertor) Convert(detections []models.DetectedObject, frameIndex int) ([]models.DetectedObjectPosition, error) {
	positions := make([]models.DetectedObjectPosition, 0, len(detections))
	for i, d := range detections {
		p, err := convertDetection(c.cfg, d)
		if err != nil {
			return nil, fmt.Errorf("frame %d detection %d: %w", frameIndex, i, err)
		}
		positions = append(positions, p)
	}
	return positions, nil
}

// ConversionWithError implements Convertor
func (c *HomographyConvertor) ConversionWithError(detections []models.DetectedObject, frameIndex int) ([]models.DetectedObjectPosition, error) {
	return conversionWithError(c.Convert, c.staticError, detections, frameIndex)
}

// StaticError implements Convertor
func (c *HomographyConvertor) StaticError() accuracy.StaticError {
	return c.staticError
}

// Calibrated implements Convertor
func (c *HomographyConvertor) Calibrated() bool {
	return true
}

// anchorOffset projects a camera pixel to the top-down image and returns its
// offset from the anchor in pixels, with dy growing north.
func anchorOffset(cfg *calibration.Configuration, obj models.DetectedObject) (float64, float64, error) {
	x, y, err := calibration.Project(cfg.Matrix, obj.X, obj.Y)
	if err != nil {
		return 0, 0, err
	}
	anchor := cfg.GeoData.AnchorPixelPosition
	return x - float64(anchor[0]), float64(anchor[1]) - y, nil
}

func offsetToGeo(cfg *calibration.Configuration, dx, dy float64) models.GeoPosition {
	anchor := cfg.GeoData.AnchorGeoPosition
	scale := cfg.GeoData.PixelScale
	p := geodesy.MoveByVector(geodesy.LatLon{Lat: anchor.Latitude, Lon: anchor.Longitude}, dx*scale, dy*scale)
	return models.GeoPosition{Latitude: p.Lat, Longitude: p.Lon, Altitude: anchor.Altitude}
}

func convertToGeo(cfg *calibration.Configuration, obj models.DetectedObject) (models.GeoPosition, error) {
	dx, dy, err := anchorOffset(cfg, obj)
	if err != nil {
		return models.GeoPosition{}, err
	}
	return offsetToGeo(cfg, dx, dy), nil
}

func convertDetection(cfg *calibration.Configuration, obj models.DetectedObject) (models.DetectedObjectPosition, error) {
	dx, dy, err := anchorOffset(cfg, obj)
	if err != nil {
		return models.DetectedObjectPosition{}, err
	}
	geo := offsetToGeo(cfg, dx, dy)

	scale := cfg.GeoData.PixelScale
	grid := cfg.AnchorGrid()
	gridX := grid.X + dx*scale
	gridY := grid.Y - dy*scale

	return models.DetectedObjectPosition{
		Latitude:  geo.Latitude,
		Longitude: geo.Longitude,
		Altitude:  geo.Altitude,
		ID:        obj.ID,
		Type:      obj.Type,
		GridX:     &gridX,
		GridY:     &gridY,
	}, nil
}
