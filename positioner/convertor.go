// Package positioner turns camera pixel detections into geo positions with an
// error radius and hands every frame to a sink.
package positioner

import (
	"errors"
	"fmt"

	"github.com/boyangli/sentinelmap-positioner/accuracy"
	"github.com/boyangli/sentinelmap-positioner/geodesy"
	"github.com/boyangli/sentinelmap-positioner/models"
)

// ErrNoConfiguration is returned when a calibrated convertor is built without configuration
var ErrNoConfiguration = errors.New("no calibration configuration")

// Convertor maps camera pixels to geo positions
type Convertor interface {
	// Convert returns one position per detection, in input order, without error radius
	Convert(detections []models.DetectedObject, frameIndex int) ([]models.DetectedObjectPosition, error)
	// ConversionWithError is Convert plus an error radius on every position
	ConversionWithError(detections []models.DetectedObject, frameIndex int) ([]models.DetectedObjectPosition, error)
	// StaticError is the systematic error of the calibration method
	StaticError() accuracy.StaticError
	// Calibrated is false when positions carry no geographic meaning
	Calibrated() bool
}

type convertFunc func(detections []models.DetectedObject, frameIndex int) ([]models.DetectedObjectPosition, error)

// conversionWithError converts every detection and its four shifted siblings.
// The radius is the largest sibling distance plus the static max error.
func conversionWithError(convert convertFunc, static accuracy.StaticError, detections []models.DetectedObject, frameIndex int) ([]models.DetectedObjectPosition, error) {
	if len(detections) == 0 {
		return []models.DetectedObjectPosition{}, nil
	}

	primary, err := convert(detections, frameIndex)
	if err != nil {
		return nil, err
	}

	results := make([]models.DetectedObjectPosition, len(primary))
	for i, main := range primary {
		shifted, err := convert(accuracy.ShiftedDetections(detections[i], accuracy.PerturbationOffset), frameIndex)
		if err != nil {
			return nil, fmt.Errorf("detection %d perturbation: %w", detections[i].ID, err)
		}

		mainPos := geodesy.LatLon{Lat: main.Latitude, Lon: main.Longitude}
		var sensitivity float64
		for _, s := range shifted {
			d, err := geodesy.DistanceBetween(geodesy.LatLon{Lat: s.Latitude, Lon: s.Longitude}, mainPos)
			if err != nil {
				return nil, fmt.Errorf("detection %d perturbation: %w", detections[i].ID, err)
			}
			sensitivity = max(sensitivity, d)
		}

		results[i] = main.WithRadius(sensitivity + static.MaxError)
	}
	return results, nil
}
