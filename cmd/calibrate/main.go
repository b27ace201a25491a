package main

import (
	"flag"
	"fmt"
	"image"
	"log"
	"strconv"
	"strings"

	"github.com/boyangli/sentinelmap-positioner/accuracy"
	"github.com/boyangli/sentinelmap-positioner/calibration"
	"github.com/boyangli/sentinelmap-positioner/models"
	"github.com/disintegration/imaging"
	"github.com/golang/geo/r2"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("⚠️  No .env file found, using environment variables")
	}

	methodName := flag.String("method", "homography", "Calibration method")
	dataDir := flag.String("data-dir", "", "Calibration data directory (platform default if empty)")
	cameraID := flag.String("camera", "0", "Camera ID the calibration is stored under")
	srcFlag := flag.String("src", "", "Camera points as 'x,y;x,y;...'")
	dstFlag := flag.String("dst", "", "Top-down points as 'x,y;x,y;...'")
	resFlag := flag.String("resolution", "1920x1080", "Camera resolution the points were picked at")
	imagePath := flag.String("image", "", "Top-down reference image")
	anchorPixel := flag.String("anchor-pixel", "", "Anchor pixel in the top-down image as 'x,y'")
	anchorLat := flag.Float64("anchor-lat", 0, "Anchor latitude")
	anchorLon := flag.Float64("anchor-lon", 0, "Anchor longitude")
	anchorAlt := flag.Float64("anchor-alt", 0, "Anchor altitude in meters")
	pixelScale := flag.Float64("scale", 0, "Meters per top-down pixel")
	datasetPath := flag.String("dataset", "", "Store the calibration in this validation dataset instead of a camera")
	flag.Parse()

	method, err := calibration.ParseMethod(*methodName)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	resolution, err := parseResolution(*resFlag)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}

	src, err := parsePoints(*srcFlag)
	if err != nil {
		log.Fatalf("❌ -src: %v", err)
	}
	dst, err := parsePoints(*dstFlag)
	if err != nil {
		log.Fatalf("❌ -dst: %v", err)
	}

	if *datasetPath != "" {
		if err := calibrateDataset(*datasetPath, method, src, dst, resolution); err != nil {
			log.Fatalf("❌ %v", err)
		}
		return
	}
	anchor, err := parsePixel(*anchorPixel)
	if err != nil {
		log.Fatalf("❌ -anchor-pixel: %v", err)
	}
	if *imagePath == "" {
		log.Fatalf("❌ -image is required, a calibration is stored together with its reference image")
	}
	reference, err := imaging.Open(*imagePath)
	if err != nil {
		log.Fatalf("❌ Failed to open reference image: %v", err)
	}

	geo := calibration.GeoData{
		AnchorPixelPosition: anchor,
		AnchorGeoPosition:   models.GeoPosition{Latitude: *anchorLat, Longitude: *anchorLon, Altitude: *anchorAlt},
		PixelScale:          *pixelScale,
	}
	cfg, err := estimate(method, src, dst, resolution, geo, reference)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}

	dir := *dataDir
	if dir == "" {
		if dir, err = calibration.DefaultDataDir(); err != nil {
			log.Fatalf("❌ %v", err)
		}
	}
	if err := calibration.NewStore(dir).Save(*cameraID, cfg); err != nil {
		log.Fatalf("❌ %v", err)
	}
	grid := cfg.AnchorGrid()
	log.Printf("📍 Anchor grid position: (%.2f, %.2f)", grid.X, grid.Y)
}

func estimate(method calibration.Method, src, dst []r2.Point, resolution [2]int, geo calibration.GeoData, reference image.Image) (*calibration.Configuration, error) {
	matrix, err := method.EstimateTransform(src, dst)
	if err != nil {
		return nil, err
	}
	log.Printf("✅ Estimated %s transform from %d correspondences", method, len(src))
	return calibration.NewConfiguration(method, matrix, resolution, geo, reference)
}

// calibrateDataset estimates a transform from points picked on the dataset
// images and stores it inside the dataset file. The dataset entries stay
// reserved for measuring the static error.
func calibrateDataset(path string, method calibration.Method, src, dst []r2.Point, resolution [2]int) error {
	d, err := accuracy.LoadDataset(path)
	if err != nil {
		return err
	}
	if _, err := d.Calibrate(method, src, dst, resolution); err != nil {
		return fmt.Errorf("dataset %s: %w", path, err)
	}
	log.Printf("✅ Estimated %s transform from %d correspondences", method, len(src))
	if err := d.Save(path); err != nil {
		return err
	}
	log.Printf("✅ Stored %s configuration in dataset %s", method, path)
	return nil
}

func parsePoints(s string) ([]r2.Point, error) {
	var points []r2.Point
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		x, y, err := parsePair(part, ",")
		if err != nil {
			return nil, err
		}
		points = append(points, r2.Point{X: x, Y: y})
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("no points given")
	}
	return points, nil
}

func parsePixel(s string) ([2]int, error) {
	x, y, err := parsePair(s, ",")
	if err != nil {
		return [2]int{}, err
	}
	return [2]int{int(x), int(y)}, nil
}

func parseResolution(s string) ([2]int, error) {
	w, h, err := parsePair(strings.ToLower(s), "x")
	if err != nil {
		return [2]int{}, err
	}
	if w <= 0 || h <= 0 || w != float64(int(w)) || h != float64(int(h)) {
		return [2]int{}, fmt.Errorf("invalid resolution '%s'", s)
	}
	return [2]int{int(w), int(h)}, nil
}

func parsePair(s, sep string) (float64, float64, error) {
	fields := strings.Split(s, sep)
	if len(fields) != 2 {
		return 0, 0, fmt.Errorf("expected two values separated by '%s', got '%s'", sep, s)
	}
	a, err := strconv.ParseFloat(strings.TrimSpace(fields[0]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid value in '%s': %w", s, err)
	}
	b, err := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid value in '%s': %w", s, err)
	}
	return a, b, nil
}
