package calibration

import (
	"fmt"
	"math"

	"github.com/golang/geo/r2"
	"gonum.org/v1/gonum/mat"
)

const (
	collinearTolerance = 1e-9
	rankTolerance      = 1e-10
	horizonTolerance   = 1e-12
)

// ValidateShape rejects point sets no transform can be estimated from: fewer than
// four points, negative coordinates, duplicates and collinear (zero area) sets.
func ValidateShape(shape []r2.Point) error {
	if len(shape) < 4 {
		return fmt.Errorf("%w: need at least 4 points, got %d", ErrDegenerateShape, len(shape))
	}

	for i, p := range shape {
		if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsInf(p.X, 0) || math.IsInf(p.Y, 0) {
			return fmt.Errorf("%w: point %d is not finite", ErrDegenerateShape, i)
		}
		if p.X < 0 || p.Y < 0 {
			return fmt.Errorf("%w: shape out of bounds at point %d (%v, %v)", ErrDegenerateShape, i, p.X, p.Y)
		}
		for j := i + 1; j < len(shape); j++ {
			if p == shape[j] {
				return fmt.Errorf("%w: points %d and %d are identical", ErrDegenerateShape, i, j)
			}
		}
	}

	if len(shape) == 4 {
		// With exactly four correspondences any collinear triple breaks the transform
		for skip := range shape {
			var tri []r2.Point
			for i, p := range shape {
				if i != skip {
					tri = append(tri, p)
				}
			}
			if collinear(tri[0], tri[1], tri[2]) {
				return fmt.Errorf("%w: three of the four points are collinear", ErrDegenerateShape)
			}
		}
		return nil
	}

	for i := 2; i < len(shape); i++ {
		if !collinear(shape[0], shape[1], shape[i]) {
			return nil
		}
	}
	return fmt.Errorf("%w: all points are collinear", ErrDegenerateShape)
}

func collinear(a, b, c r2.Point) bool {
	ab := b.Sub(a)
	ac := c.Sub(a)
	return math.Abs(ab.Cross(ac)) <= collinearTolerance*ab.Norm()*ac.Norm()
}

// EstimateHomography finds the 3x3 projective transform mapping src onto dst with
// the normalized direct linear transform. The result is scaled so that H[2][2] == 1.
func EstimateHomography(src, dst []r2.Point) (*mat.Dense, error) {
	if len(src) != len(dst) {
		return nil, fmt.Errorf("%w: %d source points but %d destination points", ErrDegenerateShape, len(src), len(dst))
	}
	if err := ValidateShape(src); err != nil {
		return nil, fmt.Errorf("source shape: %w", err)
	}
	if err := ValidateShape(dst); err != nil {
		return nil, fmt.Errorf("destination shape: %w", err)
	}

	srcNorm, srcT, _ := normalizePoints(src)
	dstNorm, _, dstTInv := normalizePoints(dst)

	n := len(src)
	a := mat.NewDense(2*n, 9, nil)
	for i := 0; i < n; i++ {
		x, y := srcNorm[i].X, srcNorm[i].Y
		u, v := dstNorm[i].X, dstNorm[i].Y
		a.SetRow(2*i, []float64{-x, -y, -1, 0, 0, 0, u * x, u * y, u})
		a.SetRow(2*i+1, []float64{0, 0, 0, -x, -y, -1, v * x, v * y, v})
	}

	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDFull); !ok {
		return nil, fmt.Errorf("%w: SVD did not converge", ErrDegenerateShape)
	}
	values := svd.Values(nil)
	if len(values) < 8 || values[7] <= rankTolerance*values[0] {
		return nil, fmt.Errorf("%w: correspondences do not constrain a unique transform", ErrDegenerateShape)
	}

	var v mat.Dense
	svd.VTo(&v)
	hn := mat.NewDense(3, 3, nil)
	for i := 0; i < 9; i++ {
		hn.Set(i/3, i%3, v.At(i, 8))
	}
	if math.Abs(mat.Det(hn)) < rankTolerance {
		return nil, fmt.Errorf("%w: estimated transform is singular", ErrDegenerateShape)
	}

	// Undo the normalization: H = T_dst^-1 * Hn * T_src
	var h mat.Dense
	h.Product(dstTInv, hn, srcT)

	scale := h.At(2, 2)
	if math.Abs(scale) < horizonTolerance {
		return nil, fmt.Errorf("%w: transform maps the origin to infinity", ErrDegenerateShape)
	}
	h.Scale(1/scale, &h)

	return &h, nil
}

// normalizePoints moves the centroid to the origin and scales the mean distance to
// sqrt(2). It returns the normalized points, the transform and its inverse.
func normalizePoints(points []r2.Point) ([]r2.Point, *mat.Dense, *mat.Dense) {
	var centroid r2.Point
	for _, p := range points {
		centroid = centroid.Add(p)
	}
	centroid = centroid.Mul(1 / float64(len(points)))

	var meanDist float64
	for _, p := range points {
		meanDist += p.Sub(centroid).Norm()
	}
	meanDist /= float64(len(points))

	s := math.Sqrt2 / meanDist
	normalized := make([]r2.Point, len(points))
	for i, p := range points {
		normalized[i] = p.Sub(centroid).Mul(s)
	}

	t := mat.NewDense(3, 3, []float64{
		s, 0, -s * centroid.X,
		0, s, -s * centroid.Y,
		0, 0, 1,
	})
	tInv := mat.NewDense(3, 3, []float64{
		1 / s, 0, centroid.X,
		0, 1 / s, centroid.Y,
		0, 0, 1,
	})
	return normalized, t, tInv
}

// Project applies a homography to a pixel and returns the dehomogenized result.
func Project(h mat.Matrix, x, y float64) (float64, float64, error) {
	xp := h.At(0, 0)*x + h.At(0, 1)*y + h.At(0, 2)
	yp := h.At(1, 0)*x + h.At(1, 1)*y + h.At(1, 2)
	w := h.At(2, 0)*x + h.At(2, 1)*y + h.At(2, 2)

	if math.Abs(w) < horizonTolerance {
		return 0, 0, fmt.Errorf("%w: (%v, %v)", ErrPointAtInfinity, x, y)
	}
	return xp / w, yp / w, nil
}
