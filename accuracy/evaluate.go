package accuracy

import (
	"fmt"
	"log"

	"github.com/boyangli/sentinelmap-positioner/calibration"
	"github.com/boyangli/sentinelmap-positioner/geodesy"
	"github.com/boyangli/sentinelmap-positioner/models"
)

// PerturbationOffset is the pixel shift used to probe the sensitivity of a conversion
const PerturbationOffset = 5.0

// ConvertFunc converts one camera pixel with the given configuration
type ConvertFunc func(cfg *calibration.Configuration, obj models.DetectedObject) (models.GeoPosition, error)

// ShiftedDetections returns four copies of obj moved by offset pixels along +x, -x, +y and -y
func ShiftedDetections(obj models.DetectedObject, offset float64) []models.DetectedObject {
	return []models.DetectedObject{
		obj.Shifted(offset, 0),
		obj.Shifted(-offset, 0),
		obj.Shifted(0, offset),
		obj.Shifted(0, -offset),
	}
}

// WorldOffsetToGeo places a dataset world position [x, y, z] relative to
// latitude and longitude 0. The height y is ignored.
func WorldOffsetToGeo(world []float64) (geodesy.LatLon, error) {
	if len(world) != 3 {
		return geodesy.LatLon{}, fmt.Errorf("%w: world position needs 3 coordinates, got %d", ErrMalformedEntry, len(world))
	}
	return geodesy.MoveByVector(geodesy.LatLon{}, world[0], world[2]), nil
}

// EvaluateStaticError measures the systematic error of method over every
// dataset that holds a configuration for it. Conversions run with the anchor
// pinned to latitude and longitude 0, matching how world offsets are placed.
func EvaluateStaticError(datasets []*Dataset, method calibration.Method, convert ConvertFunc) (StaticError, error) {
	var acc StaticError

	for _, d := range datasets {
		cfg, ok, err := d.Configuration(method)
		if err != nil {
			return StaticError{}, err
		}
		if !ok {
			continue
		}
		cfg.GeoData.AnchorGeoPosition = models.GeoPosition{}

		for i, entry := range d.Entries {
			sample, err := entryError(cfg, entry, convert)
			if err != nil {
				return StaticError{}, fmt.Errorf("dataset %s entry %d: %w", d.path, i, err)
			}
			if acc, err = acc.AddError(sample); err != nil {
				return StaticError{}, fmt.Errorf("dataset %s entry %d: %w", d.path, i, err)
			}
		}
	}

	acc, err := acc.AverageErrors()
	if err != nil {
		return StaticError{}, err
	}

	log.Printf("📏 Method %s static max error: %.3f m", method, acc.MaxError)
	log.Printf("📏 Method %s static average error: %.3f m", method, acc.AverageError)
	return acc, nil
}

func entryError(cfg *calibration.Configuration, entry Entry, convert ConvertFunc) (float64, error) {
	if len(entry.ScreenPosition) != 2 {
		return 0, fmt.Errorf("%w: screen position needs 2 coordinates, got %d", ErrMalformedEntry, len(entry.ScreenPosition))
	}
	actual, err := WorldOffsetToGeo(entry.WorldPosition)
	if err != nil {
		return 0, err
	}

	obj := models.DetectedObject{X: entry.ScreenPosition[0], Y: entry.ScreenPosition[1], ID: -1}
	geo, err := convert(cfg, obj)
	if err != nil {
		return 0, err
	}

	return geodesy.DistanceBetween(actual, geodesy.LatLon{Lat: geo.Latitude, Lon: geo.Longitude})
}
