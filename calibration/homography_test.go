package calibration

import (
	"errors"
	"math"
	"testing"

	"github.com/golang/geo/r2"
)

func square(size float64) []r2.Point {
	return []r2.Point{{X: 0, Y: 0}, {X: size, Y: 0}, {X: size, Y: size}, {X: 0, Y: size}}
}

func TestHomographyIdentity(t *testing.T) {
	tests := []struct {
		x, y, size float64
	}{
		{20, 20, 50},
		{50, 50, 100},
		{30.7, 22.46, 126.85},
		{0, 0, 10000},
	}

	for _, tt := range tests {
		h, err := EstimateHomography(square(tt.size), square(tt.size))
		if err != nil {
			t.Fatalf("EstimateHomography(size %v) failed: %v", tt.size, err)
		}

		x2, y2, err := Project(h, tt.x, tt.y)
		if err != nil {
			t.Fatalf("Project failed: %v", err)
		}
		if math.Abs(x2-tt.x) > 1e-6 || math.Abs(y2-tt.y) > 1e-6 {
			t.Errorf("size %v: (%v, %v) mapped to (%v, %v)", tt.size, tt.x, tt.y, x2, y2)
		}
	}
}

func TestHomographyScale(t *testing.T) {
	tests := []struct {
		x, y, size, scale float64
	}{
		{20, 20, 50, 1},
		{50, 50, 100, 10},
		{0, 0, 10000, 100},
		{1234, 4321, 10000, 100},
	}

	for _, tt := range tests {
		dst := square(tt.size * tt.scale)
		h, err := EstimateHomography(square(tt.size), dst)
		if err != nil {
			t.Fatalf("EstimateHomography(size %v, scale %v) failed: %v", tt.size, tt.scale, err)
		}

		x2, y2, err := Project(h, tt.x, tt.y)
		if err != nil {
			t.Fatalf("Project failed: %v", err)
		}
		if math.Round(x2) != math.Round(tt.x*tt.scale) || math.Round(y2) != math.Round(tt.y*tt.scale) {
			t.Errorf("scale %v: (%v, %v) mapped to (%v, %v)", tt.scale, tt.x, tt.y, x2, y2)
		}
	}
}

func TestHomographyRotation(t *testing.T) {
	src := square(100)
	tests := []struct {
		name   string
		dst    []r2.Point
		wantX  float64
		wantY  float64
		corner r2.Point
	}{
		{
			name:   "quarter turn",
			dst:    []r2.Point{{X: 100, Y: 0}, {X: 100, Y: 100}, {X: 0, Y: 100}, {X: 0, Y: 0}},
			wantX:  75,
			wantY:  25,
			corner: r2.Point{X: 100, Y: 0},
		},
		{
			name:   "half turn",
			dst:    []r2.Point{{X: 100, Y: 100}, {X: 0, Y: 100}, {X: 0, Y: 0}, {X: 100, Y: 0}},
			wantX:  75,
			wantY:  75,
			corner: r2.Point{X: 100, Y: 100},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := EstimateHomography(src, tt.dst)
			if err != nil {
				t.Fatalf("EstimateHomography failed: %v", err)
			}

			x2, y2, _ := Project(h, 25, 25)
			if math.Round(x2) != tt.wantX || math.Round(y2) != tt.wantY {
				t.Errorf("(25, 25) mapped to (%v, %v), want (%v, %v)", x2, y2, tt.wantX, tt.wantY)
			}

			cx, cy, _ := Project(h, 50, 50)
			if math.Abs(cx-50) > 1e-9 || math.Abs(cy-50) > 1e-9 {
				t.Errorf("center mapped to (%v, %v)", cx, cy)
			}

			ox, oy, _ := Project(h, 0, 0)
			if math.Abs(ox-tt.corner.X) > 1e-9 || math.Abs(oy-tt.corner.Y) > 1e-9 {
				t.Errorf("origin mapped to (%v, %v), want %v", ox, oy, tt.corner)
			}
		})
	}
}

func TestHomographyDegenerate(t *testing.T) {
	tests := []struct {
		name     string
		src, dst []r2.Point
	}{
		{"zero size", square(0), square(0)},
		{"negative size", square(-100), square(-100)},
		{"negative scale", square(50), square(-50)},
		{"zero scale", square(50), square(0)},
		{"mismatched counts", square(50), square(50)[:3]},
		{"too few points", square(50)[:3], square(50)[:3]},
		{"collinear", []r2.Point{{X: 0, Y: 0}, {X: 1, Y: 1}, {X: 2, Y: 2}, {X: 3, Y: 3}}, square(10)},
		{"three collinear", []r2.Point{{X: 0, Y: 0}, {X: 5, Y: 0}, {X: 10, Y: 0}, {X: 0, Y: 10}}, square(10)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := EstimateHomography(tt.src, tt.dst)
			if !errors.Is(err, ErrDegenerateShape) {
				t.Errorf("Expected ErrDegenerateShape, got %v", err)
			}
			if h != nil {
				t.Errorf("Expected no matrix, got %v", h)
			}
		})
	}
}

func TestValidateShape(t *testing.T) {
	duplicate := []r2.Point{{X: 5, Y: 6}, {X: 5, Y: 6}, {X: 1, Y: 9}, {X: 9, Y: 1}}
	if err := ValidateShape(duplicate); !errors.Is(err, ErrDegenerateShape) {
		t.Errorf("Expected duplicate points to be rejected, got %v", err)
	}

	outOfBounds := []r2.Point{{X: -1, Y: 4}, {X: 5, Y: -3}, {X: 1, Y: 9}, {X: 9, Y: 1}}
	if err := ValidateShape(outOfBounds); !errors.Is(err, ErrDegenerateShape) {
		t.Errorf("Expected negative coordinates to be rejected, got %v", err)
	}

	eight := []r2.Point{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 20, Y: 0}, {X: 30, Y: 0}, {X: 0, Y: 10}, {X: 10, Y: 10}, {X: 20, Y: 10}, {X: 30, Y: 10}}
	if err := ValidateShape(eight); err != nil {
		t.Errorf("Expected eight point grid to be accepted, got %v", err)
	}
}

func TestHomographyOverdetermined(t *testing.T) {
	src := []r2.Point{{X: 0, Y: 0}, {X: 100, Y: 0}, {X: 100, Y: 100}, {X: 0, Y: 100}, {X: 50, Y: 20}, {X: 20, Y: 70}}
	dst := make([]r2.Point, len(src))
	for i, p := range src {
		dst[i] = r2.Point{X: 2*p.X + 10, Y: 3*p.Y + 5}
	}

	h, err := EstimateHomography(src, dst)
	if err != nil {
		t.Fatalf("EstimateHomography failed: %v", err)
	}
	x2, y2, _ := Project(h, 40, 40)
	if math.Abs(x2-90) > 1e-6 || math.Abs(y2-125) > 1e-6 {
		t.Errorf("(40, 40) mapped to (%v, %v), want (90, 125)", x2, y2)
	}
}

func TestParseMethod(t *testing.T) {
	for _, name := range []string{"homography", "Homography", "HomographyCalibrationConfiguration"} {
		m, err := ParseMethod(name)
		if err != nil || m != MethodHomography {
			t.Errorf("ParseMethod(%q) = %v, %v", name, m, err)
		}
	}
	if _, err := ParseMethod("lidar"); !errors.Is(err, ErrUnknownMethod) {
		t.Errorf("Expected ErrUnknownMethod, got %v", err)
	}
}

func TestMethodEstimateTransform(t *testing.T) {
	h, err := MethodHomography.EstimateTransform(square(10), square(20))
	if err != nil {
		t.Fatalf("EstimateTransform failed: %v", err)
	}
	x, y, _ := Project(h, 5, 5)
	if math.Abs(x-10) > 1e-9 || math.Abs(y-10) > 1e-9 {
		t.Errorf("(5, 5) mapped to (%v, %v)", x, y)
	}

	if _, err := Method(42).EstimateTransform(square(10), square(20)); !errors.Is(err, ErrUnknownMethod) {
		t.Errorf("Expected ErrUnknownMethod, got %v", err)
	}
}
