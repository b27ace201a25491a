package calibration

import (
	"fmt"
	"strings"

	"github.com/golang/geo/r2"
	"gonum.org/v1/gonum/mat"
)

// Method identifies a calibration method. The set is closed: every method
// knows how to estimate its transform and under which key its configuration
// is stored.
type Method int

const (
	MethodHomography Method = iota
)

// Methods lists every known calibration method
func Methods() []Method {
	return []Method{MethodHomography}
}

func (m Method) String() string {
	switch m {
	case MethodHomography:
		return "homography"
	default:
		return fmt.Sprintf("Method(%d)", int(m))
	}
}

// ConfigurationKey is the name configurations of this method are persisted under,
// both as file prefix and as key in validation datasets.
func (m Method) ConfigurationKey() string {
	switch m {
	case MethodHomography:
		return "HomographyCalibrationConfiguration"
	default:
		return ""
	}
}

// EstimateTransform estimates the camera -> top-down transform from matched points
func (m Method) EstimateTransform(src, dst []r2.Point) (*mat.Dense, error) {
	switch m {
	case MethodHomography:
		return EstimateHomography(src, dst)
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnknownMethod, m)
	}
}

// ParseMethod accepts the short method name or its configuration key
func ParseMethod(name string) (Method, error) {
	for _, m := range Methods() {
		if strings.EqualFold(name, m.String()) || name == m.ConfigurationKey() {
			return m, nil
		}
	}
	return 0, fmt.Errorf("%w: '%s'", ErrUnknownMethod, name)
}
