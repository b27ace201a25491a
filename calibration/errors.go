package calibration

import "errors"

var (
	// ErrNotFound is returned when no configuration was persisted for a camera id
	ErrNotFound = errors.New("calibration configuration not found")
	// ErrParse is returned for malformed configuration records
	ErrParse = errors.New("malformed calibration configuration")
	// ErrImageMissing is returned when the record exists but its reference image does not
	ErrImageMissing = errors.New("reference image missing")
	// ErrDegenerateShape is returned for point sets a transform cannot be estimated from
	ErrDegenerateShape = errors.New("degenerate point set")
	// ErrPointAtInfinity is returned when a point maps onto the horizon of the transform
	ErrPointAtInfinity = errors.New("point maps to infinity")
	// ErrUnknownMethod is returned for calibration method names that do not exist
	ErrUnknownMethod = errors.New("unknown calibration method")
)
