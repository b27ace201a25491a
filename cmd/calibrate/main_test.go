package main

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/boyangli/sentinelmap-positioner/accuracy"
	"github.com/boyangli/sentinelmap-positioner/calibration"
	"github.com/golang/geo/r2"
)

func TestParsePoints(t *testing.T) {
	points, err := parsePoints("0,0; 10,0;10, 5.5;0,5;")
	if err != nil {
		t.Fatalf("parsePoints failed: %v", err)
	}
	if len(points) != 4 || points[2].X != 10 || points[2].Y != 5.5 {
		t.Errorf("Unexpected points %v", points)
	}

	for _, bad := range []string{"", "1,2,3", "a,b", ";"} {
		if _, err := parsePoints(bad); err == nil {
			t.Errorf("Expected error for '%s'", bad)
		}
	}
}

func TestParseResolution(t *testing.T) {
	res, err := parseResolution("1920X1080")
	if err != nil || res != [2]int{1920, 1080} {
		t.Errorf("Expected 1920x1080, got %v (%v)", res, err)
	}
	for _, bad := range []string{"1920", "0x1080", "19.5x10", "axb"} {
		if _, err := parseResolution(bad); err == nil {
			t.Errorf("Expected error for '%s'", bad)
		}
	}
}

func TestCalibrateDataset(t *testing.T) {
	d := &accuracy.Dataset{
		ViewImagePath:    "view.png",
		TopDownImagePath: "topdown.png",
		Origin:           []float64{200, 200},
		Resolution:       0.5,
		Entries: []accuracy.Entry{
			{ScreenPosition: []float64{10, 10}, WorldPosition: []float64{-10, 0, 10}},
			{ScreenPosition: []float64{90, 10}, WorldPosition: []float64{30, 0, 10}},
			{ScreenPosition: []float64{90, 70}, WorldPosition: []float64{30, 0, -20}},
			{ScreenPosition: []float64{10, 70}, WorldPosition: []float64{-10, 0, -20}},
		},
	}
	path := filepath.Join(t.TempDir(), "dataset.json")
	if err := d.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// Picked on the images, world (-15, 15), (45, 15), (45, -35), (-15, -35)
	src := []r2.Point{{X: 0, Y: 0}, {X: 120, Y: 0}, {X: 120, Y: 100}, {X: 0, Y: 100}}
	dst := []r2.Point{{X: 170, Y: 170}, {X: 290, Y: 170}, {X: 290, Y: 270}, {X: 170, Y: 270}}
	if err := calibrateDataset(path, calibration.MethodHomography, src, dst, [2]int{100, 80}); err != nil {
		t.Fatalf("calibrateDataset failed: %v", err)
	}

	loaded, err := accuracy.LoadDataset(path)
	if err != nil {
		t.Fatalf("LoadDataset failed: %v", err)
	}
	cfg, ok, err := loaded.Configuration(calibration.MethodHomography)
	if err != nil || !ok {
		t.Fatalf("Expected a stored configuration, got %v, %v", ok, err)
	}
	x, y, err := calibration.Project(cfg.Matrix, 90, 70)
	if err != nil {
		t.Fatalf("Project failed: %v", err)
	}
	// world (30, -20) at 0.5 m per pixel from origin (200, 200)
	if abs(x-260) > 1e-6 || abs(y-240) > 1e-6 {
		t.Errorf("Expected (260, 240), got (%v, %v)", x, y)
	}

	entries := []r2.Point{{X: 10, Y: 10}, {X: 90, Y: 10}, {X: 90, Y: 70}, {X: 10, Y: 70}}
	if err := calibrateDataset(path, calibration.MethodHomography, entries, dst, [2]int{100, 80}); !errors.Is(err, accuracy.ErrSelfCalibration) {
		t.Errorf("Expected the validation entries to be refused, got %v", err)
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
