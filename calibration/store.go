package calibration

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"runtime"

	"github.com/disintegration/imaging"
)

const referenceImageDir = "ReferenceImages"

// Store persists configurations per camera id: a JSON record and a JPEG
// reference image, always written and read as a pair.
type Store struct {
	dir string
}

// NewStore creates a store rooted at dir
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// DefaultDataDir returns the per-platform application data directory
func DefaultDataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}

	var base string
	switch runtime.GOOS {
	case "windows":
		base = filepath.Join(home, "AppData", "Roaming")
	case "darwin":
		base = filepath.Join(home, "Library", "Application Support")
	default:
		base = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(base, "WatchfulEye"), nil
}

// Dir returns the root directory of the store
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) recordPath(method Method, cameraID string) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s_%s.json", method.ConfigurationKey(), cameraID))
}

func (s *Store) imagePath(cameraID string) string {
	return filepath.Join(s.dir, referenceImageDir, cameraID+".jpg")
}

// Exists reports whether a record was persisted for the camera id
func (s *Store) Exists(method Method, cameraID string) bool {
	_, err := os.Stat(s.recordPath(method, cameraID))
	return err == nil
}

// Load reads the configuration of a camera id and rescales it to the working
// resolution when that differs from the calibration resolution.
func (s *Store) Load(cameraID string, working [2]int) (*Configuration, error) {
	for _, method := range Methods() {
		path := s.recordPath(method, cameraID)
		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}

		var record Record
		if err := json.Unmarshal(data, &record); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrParse, path, err)
		}
		cfg, err := record.Configuration(method)
		if err != nil {
			return nil, fmt.Errorf("camera %s: %w", cameraID, err)
		}

		cfg.ReferenceImage, err = s.loadImage(cameraID)
		if err != nil {
			return nil, err
		}

		if working[0] > 0 && working[1] > 0 && working != cfg.CameraResolution {
			log.Printf("📐 Rescaling calibration of camera %s from %dx%d to %dx%d",
				cameraID, cfg.CameraResolution[0], cfg.CameraResolution[1], working[0], working[1])
			if err := cfg.Rescale(working); err != nil {
				return nil, fmt.Errorf("camera %s: %w", cameraID, err)
			}
		}
		return cfg, nil
	}

	return nil, fmt.Errorf("%w: camera %s in %s", ErrNotFound, cameraID, s.dir)
}

func (s *Store) loadImage(cameraID string) (img image.Image, err error) {
	path := s.imagePath(cameraID)
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: camera %s expects %s", ErrImageMissing, cameraID, path)
	}
	img, err = imaging.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open reference image %s: %w", path, err)
	}
	return img, nil
}

// Save writes the reference image and then the record. A configuration
// without reference image is rejected so the pair never goes out of sync.
func (s *Store) Save(cameraID string, cfg *Configuration) error {
	if cfg.ReferenceImage == nil {
		return fmt.Errorf("%w: refusing to save camera %s without reference image", ErrImageMissing, cameraID)
	}
	if err := os.MkdirAll(filepath.Join(s.dir, referenceImageDir), 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	imagePath := s.imagePath(cameraID)
	err := writeAtomic(imagePath, func(f *os.File) error {
		return imaging.Encode(f, cfg.ReferenceImage, imaging.JPEG)
	})
	if err != nil {
		return fmt.Errorf("failed to save reference image: %w", err)
	}

	payload, err := json.MarshalIndent(cfg.Record(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize configuration: %w", err)
	}
	recordPath := s.recordPath(cfg.Method, cameraID)
	err = writeAtomic(recordPath, func(f *os.File) error {
		_, err := f.Write(payload)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	log.Printf("✅ Saved %s calibration for camera %s to %s", cfg.Method, cameraID, recordPath)
	return nil
}

// writeAtomic writes through a temp file in the same directory and renames it
// into place.
func writeAtomic(path string, write func(f *os.File) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
