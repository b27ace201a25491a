// Package accuracy measures how far converted positions are from the truth: a
// systematic error per calibration method derived from validation datasets, and
// the pixel perturbation used for per-detection error radii.
package accuracy

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/boyangli/sentinelmap-positioner/calibration"
	"github.com/boyangli/sentinelmap-positioner/models"
	"github.com/golang/geo/r2"
	"gonum.org/v1/gonum/mat"
)

var (
	// ErrMalformedEntry is returned for dataset entries with the wrong shape
	ErrMalformedEntry = errors.New("malformed dataset entry")
	// ErrSelfCalibration is returned when a dataset would be calibrated from its own entries
	ErrSelfCalibration = errors.New("calibration points repeat the validation entries")
)

// Entry pairs a camera pixel with its measured world offset in meters
type Entry struct {
	ScreenPosition []float64 `json:"screenPosition"`
	// x, y (height), z in meters from the dataset origin; x grows east, z north
	WorldPosition []float64 `json:"worldPosition"`
}

// Dataset is a validation fixture used to compute the static error of a method
type Dataset struct {
	ViewImagePath    string    `json:"viewImagePath"`
	TopDownImagePath string    `json:"topDownImagePath"`
	Origin           []float64 `json:"origin"`
	// Meters per top-down pixel
	Resolution float64 `json:"resolution"`
	Entries    []Entry `json:"entries"`

	CalibrationConfigurations map[string]calibration.Record `json:"calibrationConfigurations"`

	path string
}

// Validate checks every entry. Bad fixtures fail instead of being skipped.
func (d *Dataset) Validate() error {
	if len(d.Origin) != 2 {
		return fmt.Errorf("%w: origin needs 2 coordinates, got %d", ErrMalformedEntry, len(d.Origin))
	}
	if !(d.Resolution > 0) {
		return fmt.Errorf("%w: resolution must be positive, got %v", ErrMalformedEntry, d.Resolution)
	}
	for i, e := range d.Entries {
		if len(e.ScreenPosition) != 2 {
			return fmt.Errorf("%w: entry %d screenPosition needs 2 coordinates, got %d", ErrMalformedEntry, i, len(e.ScreenPosition))
		}
		if len(e.WorldPosition) != 3 {
			return fmt.Errorf("%w: entry %d worldPosition needs 3 coordinates, got %d", ErrMalformedEntry, i, len(e.WorldPosition))
		}
		for _, v := range append(append([]float64{}, e.ScreenPosition...), e.WorldPosition...) {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%w: entry %d has a non-finite coordinate", ErrMalformedEntry, i)
			}
		}
	}
	return nil
}

// Path returns the file the dataset was loaded from
func (d *Dataset) Path() string {
	return d.path
}

// GeoData returns the anchor data a calibration against this dataset uses: the
// dataset origin, rounded to a pixel, pinned to latitude and longitude 0.
func (d *Dataset) GeoData() calibration.GeoData {
	return calibration.GeoData{
		AnchorPixelPosition: [2]int{int(math.Round(d.Origin[0])), int(math.Round(d.Origin[1]))},
		AnchorGeoPosition:   models.GeoPosition{},
		PixelScale:          d.Resolution,
	}
}

// TopDownPixel places the world position of an entry on the top-down image:
// x grows east from the origin, z north, and image rows grow downward.
func (d *Dataset) TopDownPixel(e Entry) r2.Point {
	return r2.Point{
		X: d.Origin[0] + e.WorldPosition[0]/d.Resolution,
		Y: d.Origin[1] - e.WorldPosition[2]/d.Resolution,
	}
}

// Calibrate estimates a configuration for method from correspondences picked
// on the view and top-down images, stores it in the dataset and returns it. The
// entries are kept for evaluation, so src may not simply repeat their screen
// positions. The transform is shifted by the rounding of the origin to the
// integer anchor pixel, keeping the anchor on the dataset origin.
func (d *Dataset) Calibrate(method calibration.Method, src, dst []r2.Point, resolution [2]int) (*calibration.Configuration, error) {
	if d.reusesEntries(src) {
		return nil, fmt.Errorf("%w: dataset %s", ErrSelfCalibration, d.path)
	}
	h, err := method.EstimateTransform(src, dst)
	if err != nil {
		return nil, err
	}

	geo := d.GeoData()
	shift := mat.NewDense(3, 3, []float64{
		1, 0, float64(geo.AnchorPixelPosition[0]) - d.Origin[0],
		0, 1, float64(geo.AnchorPixelPosition[1]) - d.Origin[1],
		0, 0, 1,
	})
	var aligned mat.Dense
	aligned.Mul(shift, h)

	cfg, err := calibration.NewConfiguration(method, &aligned, resolution, geo, nil)
	if err != nil {
		return nil, err
	}
	d.SetConfiguration(cfg)
	return cfg, nil
}

func (d *Dataset) reusesEntries(src []r2.Point) bool {
	if len(src) == 0 || len(d.Entries) == 0 {
		return false
	}
	for _, p := range src {
		found := false
		for _, e := range d.Entries {
			if len(e.ScreenPosition) == 2 && p.X == e.ScreenPosition[0] && p.Y == e.ScreenPosition[1] {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Configuration returns the configuration stored for method. The second result
// is false when the dataset was never calibrated with it.
func (d *Dataset) Configuration(method calibration.Method) (*calibration.Configuration, bool, error) {
	record, ok := d.CalibrationConfigurations[method.ConfigurationKey()]
	if !ok {
		record, ok = d.CalibrationConfigurations[method.String()]
	}
	if !ok {
		return nil, false, nil
	}

	cfg, err := record.Configuration(method)
	if err != nil {
		return nil, true, fmt.Errorf("dataset %s: %w", d.path, err)
	}
	return cfg, true, nil
}

// SetConfiguration stores cfg under its method key, replacing older results
func (d *Dataset) SetConfiguration(cfg *calibration.Configuration) {
	if d.CalibrationConfigurations == nil {
		d.CalibrationConfigurations = make(map[string]calibration.Record)
	}
	delete(d.CalibrationConfigurations, cfg.Method.String())
	d.CalibrationConfigurations[cfg.Method.ConfigurationKey()] = cfg.Record()
}

// LoadDataset reads and validates a dataset file
func LoadDataset(path string) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset: %w", err)
	}

	var d Dataset
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("failed to parse dataset %s: %w", path, err)
	}
	d.path = path
	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("dataset %s: %w", path, err)
	}
	return &d, nil
}

// LoadDatasets reads every *.json dataset in dir in name order. A missing
// directory yields no datasets.
func LoadDatasets(dir string) ([]*Dataset, error) {
	if dir == "" {
		return nil, nil
	}
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		log.Printf("⚠️  Dataset directory %s does not exist, static error will be 0", dir)
		return nil, nil
	}

	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to list datasets: %w", err)
	}
	sort.Strings(paths)

	datasets := make([]*Dataset, 0, len(paths))
	for _, path := range paths {
		d, err := LoadDataset(path)
		if err != nil {
			return nil, err
		}
		datasets = append(datasets, d)
	}

	log.Printf("✅ Loaded %d validation datasets from %s", len(datasets), dir)
	return datasets, nil
}

// Save writes the dataset back to path
func (d *Dataset) Save(path string) error {
	payload, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize dataset: %w", err)
	}
	if err := os.WriteFile(path, payload, 0644); err != nil {
		return fmt.Errorf("failed to write dataset: %w", err)
	}
	d.path = path
	return nil
}
