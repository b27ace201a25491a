package calibration

import (
	"fmt"
	"image"
	"math"
	"sync"
	"sync/atomic"

	"github.com/boyangli/sentinelmap-positioner/geodesy"
	"github.com/boyangli/sentinelmap-positioner/models"
	"gonum.org/v1/gonum/mat"
)

// GeoData binds the top-down reference image to physical space
type GeoData struct {
	// Anchor pixel in the top-down reference image
	AnchorPixelPosition [2]int
	AnchorGeoPosition   models.GeoPosition
	// Persisted grid anchor, nil until derived
	AnchorGridPosition *models.LocalGridPosition
	// Meters represented by one top-down pixel
	PixelScale float64
}

// Configuration is a calibrated camera: the camera -> top-down transform, the
// resolution it was made at, the geo anchor and the top-down reference image.
// It must not be copied after first use.
type Configuration struct {
	Method           Method
	Matrix           *mat.Dense
	CameraResolution [2]int
	GeoData          GeoData
	ReferenceImage   image.Image

	gridOnce    sync.Once
	gridDerived atomic.Bool
	anchorGrid  models.LocalGridPosition
}

// NewConfiguration validates and assembles a configuration
func NewConfiguration(method Method, matrix *mat.Dense, resolution [2]int, geo GeoData, reference image.Image) (*Configuration, error) {
	if err := validateMatrix(matrix); err != nil {
		return nil, err
	}
	if err := validateGeoData(geo); err != nil {
		return nil, err
	}
	return &Configuration{
		Method:           method,
		Matrix:           matrix,
		CameraResolution: resolution,
		GeoData:          geo,
		ReferenceImage:   reference,
	}, nil
}

// AnchorGrid returns the anchor in grid coordinates, deriving it from the anchor
// geo position on first call. Safe for concurrent use.
func (c *Configuration) AnchorGrid() models.LocalGridPosition {
	c.gridOnce.Do(func() {
		if c.GeoData.AnchorGridPosition != nil {
			c.anchorGrid = *c.GeoData.AnchorGridPosition
			return
		}
		c.anchorGrid = geodesy.ToRijksdriehoek(geodesy.LatLon{
			Lat: c.GeoData.AnchorGeoPosition.Latitude,
			Lon: c.GeoData.AnchorGeoPosition.Longitude,
		})
		c.gridDerived.Store(true)
	})
	return c.anchorGrid
}

// Rescale adapts the transform to pixel coordinates expressed in the working
// resolution: H' = H * diag(storedW/workingW, storedH/workingH, 1).
func (c *Configuration) Rescale(working [2]int) error {
	if working == c.CameraResolution {
		return nil
	}
	if working[0] <= 0 || working[1] <= 0 {
		return fmt.Errorf("invalid working resolution %dx%d", working[0], working[1])
	}
	if c.CameraResolution[0] <= 0 || c.CameraResolution[1] <= 0 {
		return fmt.Errorf("%w: stored resolution %dx%d cannot be rescaled", ErrParse, c.CameraResolution[0], c.CameraResolution[1])
	}

	scaling := mat.NewDiagDense(3, []float64{
		float64(c.CameraResolution[0]) / float64(working[0]),
		float64(c.CameraResolution[1]) / float64(working[1]),
		1,
	})
	var scaled mat.Dense
	scaled.Mul(c.Matrix, scaling)

	c.Matrix = &scaled
	c.CameraResolution = working
	return nil
}

// Record returns the persisted form of the configuration
func (c *Configuration) Record() Record {
	rows := make([][]float64, 3)
	for i := range rows {
		rows[i] = mat.Row(nil, i, c.Matrix)
	}

	grid := c.GeoData.AnchorGridPosition
	if grid == nil && c.gridDerived.Load() {
		derived := c.anchorGrid
		grid = &derived
	}

	return Record{
		HomographyMatrix: rows,
		CameraResolution: c.CameraResolution,
		HomographyGeoData: GeoDataRecord{
			AnchorPixelPosition: c.GeoData.AnchorPixelPosition,
			AnchorGeoPosition:   c.GeoData.AnchorGeoPosition,
			AnchorRdPosition:    grid,
			PixelScale:          c.GeoData.PixelScale,
		},
	}
}

// Record is the JSON layout of a persisted configuration
type Record struct {
	HomographyMatrix  [][]float64   `json:"homographyMatrix"`
	CameraResolution  [2]int        `json:"cameraResolution"`
	HomographyGeoData GeoDataRecord `json:"homographyGeoData"`
}

// GeoDataRecord is the JSON layout of GeoData
type GeoDataRecord struct {
	AnchorPixelPosition [2]int                    `json:"anchorPixelPosition"`
	AnchorGeoPosition   models.GeoPosition        `json:"anchorGeoPosition"`
	AnchorRdPosition    *models.LocalGridPosition `json:"anchorRdPosition"`
	PixelScale          float64                   `json:"pixelScale"`
}

// Configuration turns the record into a configuration without reference image
func (r Record) Configuration(method Method) (*Configuration, error) {
	if len(r.HomographyMatrix) != 3 {
		return nil, fmt.Errorf("%w: homographyMatrix must have 3 rows, got %d", ErrParse, len(r.HomographyMatrix))
	}
	data := make([]float64, 0, 9)
	for i, row := range r.HomographyMatrix {
		if len(row) != 3 {
			return nil, fmt.Errorf("%w: homographyMatrix row %d must have 3 columns, got %d", ErrParse, i, len(row))
		}
		data = append(data, row...)
	}

	geo := GeoData{
		AnchorPixelPosition: r.HomographyGeoData.AnchorPixelPosition,
		AnchorGeoPosition:   r.HomographyGeoData.AnchorGeoPosition,
		AnchorGridPosition:  r.HomographyGeoData.AnchorRdPosition,
		PixelScale:          r.HomographyGeoData.PixelScale,
	}
	return NewConfiguration(method, mat.NewDense(3, 3, data), r.CameraResolution, geo, nil)
}

func validateMatrix(m *mat.Dense) error {
	if m == nil {
		return fmt.Errorf("%w: missing homography matrix", ErrParse)
	}
	if r, c := m.Dims(); r != 3 || c != 3 {
		return fmt.Errorf("%w: homography matrix must be 3x3, got %dx%d", ErrParse, r, c)
	}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if v := m.At(i, j); math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%w: homography matrix has non-finite entry at (%d, %d)", ErrParse, i, j)
			}
		}
	}
	return nil
}

func validateGeoData(geo GeoData) error {
	if !(geo.PixelScale > 0) {
		return fmt.Errorf("%w: pixelScale must be positive, got %v", ErrParse, geo.PixelScale)
	}
	lat := geodesy.LatLon{Lat: geo.AnchorGeoPosition.Latitude, Lon: geo.AnchorGeoPosition.Longitude}
	if err := lat.Validate(); err != nil {
		return fmt.Errorf("%w: anchor: %v", ErrParse, err)
	}
	return nil
}
