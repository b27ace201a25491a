// Package geodesy holds the spherical math used to place top-down pixel offsets
// on the globe: bearings from pixel vectors, moving a position along a bearing,
// and great-circle distances.
package geodesy

import (
	"errors"
	"fmt"
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/s2"
)

// EarthRadiusKm is the radius used by MoveByBearing and DistanceBetween.
// Both use the same value so that a move followed by a distance is lossless.
const EarthRadiusKm = 6378.1

var (
	ErrInvalidLatitude  = errors.New("latitude must be in [-90, 90] range")
	ErrInvalidDimension = errors.New("coordinate has wrong number of dimensions")
)

// north is the unit vector the bearing is measured against. Pixel vectors are
// expected with y already flipped so that north is +y.
var north = r2.Point{X: 0, Y: 1}

// LatLon is a latitude/longitude pair in degrees
type LatLon struct {
	Lat float64
	Lon float64
}

// LatLonFromSlice builds a LatLon from a [lat, lon] slice.
func LatLonFromSlice(v []float64) (LatLon, error) {
	if len(v) != 2 {
		return LatLon{}, fmt.Errorf("%w: expected 2, got %d", ErrInvalidDimension, len(v))
	}
	return LatLon{Lat: v[0], Lon: v[1]}, nil
}

// Validate checks the latitude range. Values are never clamped.
func (p LatLon) Validate() error {
	if math.IsNaN(p.Lat) || p.Lat < -90 || p.Lat > 90 {
		return fmt.Errorf("%w: got %v", ErrInvalidLatitude, p.Lat)
	}
	return nil
}

// BearingFromVector returns the clockwise angle from north in radians, in [0, 2π).
// dx grows east and dy grows north. The zero vector has bearing 0.
func BearingFromVector(dx, dy float64) float64 {
	if dx == 0 && dy == 0 {
		return 0
	}

	unit := r2.Point{X: dx, Y: dy}.Normalize()
	// Normalize can overshoot by an ulp, which would make Acos return NaN
	dot := math.Max(-1, math.Min(1, unit.Dot(north)))
	angle := math.Acos(dot)

	if dx < 0 {
		angle = 2*math.Pi - angle
	}
	return angle
}

// MoveByBearing moves a position by meters along bearingDeg (degrees clockwise
// from north) on a sphere of EarthRadiusKm.
func MoveByBearing(latDeg, lonDeg, bearingDeg, meters float64) LatLon {
	lat := degToRad(latDeg)
	lon := degToRad(lonDeg)
	bearing := degToRad(bearingDeg)
	d := (meters / 1000) / EarthRadiusKm

	newLat := math.Asin(math.Sin(lat)*math.Cos(d) + math.Cos(lat)*math.Sin(d)*math.Cos(bearing))
	newLon := lon + math.Atan2(
		math.Sin(bearing)*math.Sin(d)*math.Cos(lat),
		math.Cos(d)-math.Sin(lat)*math.Sin(newLat),
	)

	return LatLon{Lat: radToDeg(newLat), Lon: radToDeg(newLon)}
}

// MoveByVector moves a position by a metric offset where dx points east and dy north.
func MoveByVector(origin LatLon, dx, dy float64) LatLon {
	bearing := BearingFromVector(dx, dy)
	return MoveByBearing(origin.Lat, origin.Lon, radToDeg(bearing), math.Hypot(dx, dy))
}

// DistanceBetween returns the great-circle distance in meters.
func DistanceBetween(a, b LatLon) (float64, error) {
	if err := a.Validate(); err != nil {
		return 0, fmt.Errorf("first position: %w", err)
	}
	if err := b.Validate(); err != nil {
		return 0, fmt.Errorf("second position: %w", err)
	}

	angle := s2.LatLngFromDegrees(a.Lat, a.Lon).Distance(s2.LatLngFromDegrees(b.Lat, b.Lon))
	return angle.Radians() * EarthRadiusKm * 1000, nil
}

func degToRad(deg float64) float64 {
	return deg * math.Pi / 180.0
}

func radToDeg(rad float64) float64 {
	return rad * 180.0 / math.Pi
}
