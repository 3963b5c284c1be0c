// Package config loads the handruler YAML configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ayusman/handruler/internal/calibration"
	"github.com/ayusman/handruler/internal/detector"
	"github.com/ayusman/handruler/internal/measure"
	"github.com/ayusman/handruler/internal/store"
)

// DefaultConfigPath is where the CLI looks for a config file by default.
const DefaultConfigPath = "config/handruler.yaml"

const maxFileSize = 1 * 1024 * 1024 // 1MB

// Config is the root configuration. It is loaded once at startup and not
// modified afterwards.
type Config struct {
	Camera          Camera          `yaml:"camera"`
	Detection       Detection       `yaml:"detection"`
	ReferenceObject ReferenceObject `yaml:"reference_object"`
	Calibration     Calibration     `yaml:"calibration"`
	Stabilization   Stabilization   `yaml:"stabilization"`
	Measurement     Measurement     `yaml:"measurement"`
	Storage         Storage         `yaml:"storage"`
	Export          Export          `yaml:"export"`
	Server          Server          `yaml:"server"`
}

// Camera selects and shapes the video source.
type Camera struct {
	// Device is the local camera index, used when URL is empty.
	Device int `yaml:"device"`
	// URL is a network stream such as an IP webcam.
	URL    string `yaml:"url"`
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
	FPS    int    `yaml:"fps"`
	// CropPercent trims this share of each edge before scaling.
	CropPercent int `yaml:"crop_percent"`
	// ScalePercent resizes the cropped frame; 100 keeps its size.
	ScalePercent int `yaml:"scale_percent"`
	// Rotate is one of 0, 90, 180 or 270 degrees clockwise.
	Rotate int `yaml:"rotate"`
}

// Detection configures the landmark detector.
type Detection struct {
	MaxNumHands            int     `yaml:"max_num_hands"`
	MinDetectionConfidence float64 `yaml:"min_detection_confidence"`
	MinTrackingConfidence  float64 `yaml:"min_tracking_confidence"`
}

// ReferenceObject describes the calibration card and the on-screen box it
// is aligned to.
type ReferenceObject struct {
	PhysicalLength float64 `yaml:"physical_length"`
	PixelLength    int     `yaml:"pixel_length"`
	PixelHeight    int     `yaml:"pixel_height"`
	Units          string  `yaml:"units"`
}

// Calibration selects the pixel conversion mode.
type Calibration struct {
	Mode          string  `yaml:"mode"`
	KnownDistance float64 `yaml:"known_distance"`
}

// Stabilization tunes the per-measurement sliding windows.
type Stabilization struct {
	WindowSize int     `yaml:"window_size"`
	MinSamples int     `yaml:"min_samples"`
	OutlierK   float64 `yaml:"outlier_k"`
}

// Measurement holds anatomical model constants.
type Measurement struct {
	ForearmRatio float64 `yaml:"forearm_ratio"`
}

// Storage selects where saved hands go.
type Storage struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
}

// Export configures exporter plugins.
type Export struct {
	PluginDir string `yaml:"plugin_dir"`
	TimeoutMs int    `yaml:"timeout_ms"`
}

// Server configures the HTTP API.
type Server struct {
	Addr string `yaml:"addr"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Camera: Camera{
			Width:        640,
			Height:       480,
			FPS:          15,
			ScalePercent: 100,
		},
		Detection: Detection{
			MaxNumHands:            1,
			MinDetectionConfidence: 0.7,
			MinTrackingConfidence:  0.5,
		},
		ReferenceObject: ReferenceObject{
			PhysicalLength: calibration.DefaultReferenceLength,
			PixelLength:    150,
			PixelHeight:    100,
			Units:          "cm",
		},
		Calibration: Calibration{
			Mode: string(calibration.ModeRatio),
		},
		Stabilization: Stabilization{
			WindowSize: measure.DefaultWindowSize,
			MinSamples: measure.DefaultMinSamples,
			OutlierK:   measure.DefaultOutlierK,
		},
		Measurement: Measurement{
			ForearmRatio: measure.DefaultForearmRatio,
		},
		Storage: Storage{
			Driver: store.DriverJSON,
			Path:   "hand_measurements.json",
		},
		Export: Export{
			PluginDir: "plugins",
			TimeoutMs: 5000,
		},
		Server: Server{
			Addr: "127.0.0.1:8080",
		},
	}
}

// Load reads a YAML config file. The file must have a .yaml or .yml
// extension and be under 1MB. Omitted fields keep their defaults.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("config file must have .yaml or .yml extension, got %q", ext)
	}

	info, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are usable.
func (c *Config) Validate() error {
	if c.Camera.Width <= 0 || c.Camera.Height <= 0 {
		return fmt.Errorf("camera size must be positive, got %dx%d", c.Camera.Width, c.Camera.Height)
	}
	if c.Camera.FPS <= 0 {
		return fmt.Errorf("camera.fps must be positive, got %d", c.Camera.FPS)
	}
	if c.Camera.CropPercent < 0 || c.Camera.CropPercent >= 50 {
		return fmt.Errorf("camera.crop_percent must be in [0, 50), got %d", c.Camera.CropPercent)
	}
	if c.Camera.ScalePercent <= 0 {
		return fmt.Errorf("camera.scale_percent must be positive, got %d", c.Camera.ScalePercent)
	}
	switch c.Camera.Rotate {
	case 0, 90, 180, 270:
	default:
		return fmt.Errorf("camera.rotate must be 0, 90, 180 or 270, got %d", c.Camera.Rotate)
	}

	if c.Detection.MaxNumHands < 1 {
		return fmt.Errorf("detection.max_num_hands must be at least 1, got %d", c.Detection.MaxNumHands)
	}
	if !unit(c.Detection.MinDetectionConfidence) {
		return fmt.Errorf("detection.min_detection_confidence must be between 0 and 1, got %f", c.Detection.MinDetectionConfidence)
	}
	if !unit(c.Detection.MinTrackingConfidence) {
		return fmt.Errorf("detection.min_tracking_confidence must be between 0 and 1, got %f", c.Detection.MinTrackingConfidence)
	}

	if c.ReferenceObject.PhysicalLength <= 0 {
		return fmt.Errorf("reference_object.physical_length must be positive, got %f", c.ReferenceObject.PhysicalLength)
	}
	if c.ReferenceObject.PixelLength <= 0 || c.ReferenceObject.PixelHeight <= 0 {
		return fmt.Errorf("reference_object box must be positive, got %dx%d", c.ReferenceObject.PixelLength, c.ReferenceObject.PixelHeight)
	}

	switch calibration.Mode(c.Calibration.Mode) {
	case calibration.ModeRatio:
	case calibration.ModeFocal:
		if c.Calibration.KnownDistance <= 0 {
			return fmt.Errorf("calibration.known_distance must be positive in focal mode, got %f", c.Calibration.KnownDistance)
		}
	default:
		return fmt.Errorf("calibration.mode must be %q or %q, got %q", calibration.ModeRatio, calibration.ModeFocal, c.Calibration.Mode)
	}

	if c.Stabilization.MinSamples < 3 {
		return fmt.Errorf("stabilization.min_samples must be at least 3, got %d", c.Stabilization.MinSamples)
	}
	if c.Stabilization.WindowSize < c.Stabilization.MinSamples {
		return fmt.Errorf("stabilization.window_size (%d) must be at least min_samples (%d)", c.Stabilization.WindowSize, c.Stabilization.MinSamples)
	}
	if c.Stabilization.OutlierK <= 0 {
		return fmt.Errorf("stabilization.outlier_k must be positive, got %f", c.Stabilization.OutlierK)
	}

	if c.Measurement.ForearmRatio <= 0 {
		return fmt.Errorf("measurement.forearm_ratio must be positive, got %f", c.Measurement.ForearmRatio)
	}

	switch c.Storage.Driver {
	case store.DriverJSON, store.DriverSQLite:
	default:
		return fmt.Errorf("storage.driver must be %q or %q, got %q", store.DriverJSON, store.DriverSQLite, c.Storage.Driver)
	}
	if c.Storage.Path == "" {
		return fmt.Errorf("storage.path is required")
	}

	if c.Export.TimeoutMs < 0 {
		return fmt.Errorf("export.timeout_ms must be non-negative, got %d", c.Export.TimeoutMs)
	}

	return nil
}

// CalibrationConfig returns the calibrator settings.
func (c *Config) CalibrationConfig() calibration.Config {
	return calibration.Config{
		Mode:            calibration.Mode(c.Calibration.Mode),
		ReferenceLength: c.ReferenceObject.PhysicalLength,
		KnownDistance:   c.Calibration.KnownDistance,
	}
}

// EstimatorConfig returns the estimator settings.
func (c *Config) EstimatorConfig() measure.Config {
	return measure.Config{
		WindowSize:   c.Stabilization.WindowSize,
		MinSamples:   c.Stabilization.MinSamples,
		OutlierK:     c.Stabilization.OutlierK,
		ForearmRatio: c.Measurement.ForearmRatio,
		Units:        c.ReferenceObject.Units,
	}
}

// DetectorConfig returns the landmark detector settings.
func (c *Config) DetectorConfig() detector.Config {
	return detector.Config{
		MaxHands:        c.Detection.MaxNumHands,
		MinConfidence:   c.Detection.MinDetectionConfidence,
		MinTrackingConf: c.Detection.MinTrackingConfidence,
	}
}

// ExportTimeout returns the exporter timeout.
func (c *Config) ExportTimeout() time.Duration {
	return time.Duration(c.Export.TimeoutMs) * time.Millisecond
}

func unit(v float64) bool {
	return v >= 0 && v <= 1
}
