// Package calibration converts pixel distances into physical lengths using a
// reference object of known size held in front of the camera.
package calibration

import (
	"errors"
	"fmt"
	"math"

	"github.com/ayusman/handruler/internal/monitoring"
)

// DefaultReferenceLength is the width of an ID-1 card (bank card, ID card) in centimetres.
const DefaultReferenceLength = 8.56

// ErrInvalidCalibrationInput is returned when a reference length is not a
// positive, finite number. The previous calibration is kept.
var ErrInvalidCalibrationInput = errors.New("invalid calibration input")

// Mode selects how pixel lengths are scaled.
type Mode string

const (
	// ModeRatio scales by a fixed length-per-pixel ratio taken at calibration.
	ModeRatio Mode = "ratio"
	// ModeFocal derives a pinhole focal length at calibration and scales by
	// distance / focal length, allowing conversions at other distances.
	ModeFocal Mode = "focal"
)

// Config holds calibrator settings.
type Config struct {
	Mode Mode
	// ReferenceLength is the physical length used when Calibrate is called
	// without an explicit one.
	ReferenceLength float64
	// KnownDistance is the camera-to-reference distance (same units as
	// ReferenceLength) assumed by ModeFocal.
	KnownDistance float64
}

// DefaultConfig returns a ratio-mode configuration for a standard card.
func DefaultConfig() Config {
	return Config{
		Mode:            ModeRatio,
		ReferenceLength: DefaultReferenceLength,
	}
}

// State is a read-only snapshot of the calibration.
type State struct {
	Mode            Mode    `json:"mode"`
	IsCalibrated    bool    `json:"is_calibrated"`
	Ratio           float64 `json:"pixel_to_metric_ratio,omitempty"`
	ReferenceLength float64 `json:"reference_length_metric"`
	ReferencePixels float64 `json:"reference_pixels,omitempty"`
	FocalLength     float64 `json:"focal_length,omitempty"`
	KnownDistance   float64 `json:"fixed_distance,omitempty"`
}

// Calibrator turns pixel lengths into physical lengths. It is not safe for
// concurrent use; the owning session serializes access.
type Calibrator struct {
	config Config
	state  State
	warned bool
}

// New creates an uncalibrated Calibrator. Zero fields of config fall back to
// DefaultConfig values.
func New(config Config) *Calibrator {
	if config.Mode == "" {
		config.Mode = ModeRatio
	}
	if config.ReferenceLength <= 0 {
		config.ReferenceLength = DefaultReferenceLength
	}

	return &Calibrator{
		config: config,
		state: State{
			Mode:            config.Mode,
			ReferenceLength: config.ReferenceLength,
			KnownDistance:   config.KnownDistance,
		},
	}
}

// Calibrate calibrates against the configured reference length.
func (c *Calibrator) Calibrate(referencePixels float64) error {
	return c.CalibrateWith(referencePixels, c.config.ReferenceLength)
}

// CalibrateWith records that referencePixels pixels measure referenceLength
// physical units. It overwrites any earlier calibration.
func (c *Calibrator) CalibrateWith(referencePixels, referenceLength float64) error {
	if !positive(referencePixels) {
		return fmt.Errorf("%w: reference pixel length must be greater than 0, got %v", ErrInvalidCalibrationInput, referencePixels)
	}
	if !positive(referenceLength) {
		return fmt.Errorf("%w: reference length must be greater than 0, got %v", ErrInvalidCalibrationInput, referenceLength)
	}

	next := State{
		Mode:            c.config.Mode,
		IsCalibrated:    true,
		Ratio:           referenceLength / referencePixels,
		ReferenceLength: referenceLength,
		ReferencePixels: referencePixels,
		KnownDistance:   c.config.KnownDistance,
	}

	if c.config.Mode == ModeFocal {
		if !positive(c.config.KnownDistance) {
			return fmt.Errorf("%w: focal mode needs a known distance greater than 0", ErrInvalidCalibrationInput)
		}
		next.FocalLength = referencePixels * c.config.KnownDistance / referenceLength
	}

	c.state = next
	c.warned = false

	monitoring.Logf("calibrated: %.1f px = %.2f, 1 px = %.6f", referencePixels, referenceLength, next.Ratio)
	return nil
}

// PixelsToMetric converts a pixel length into physical units. Before
// calibration it returns 0 and logs a single warning.
func (c *Calibrator) PixelsToMetric(pixels float64) float64 {
	return c.PixelsToMetricAt(pixels, c.config.KnownDistance)
}

// PixelsToMetricAt converts a pixel length measured at the given camera
// distance. The distance only matters in ModeFocal.
func (c *Calibrator) PixelsToMetricAt(pixels, distance float64) float64 {
	if !c.state.IsCalibrated {
		if !c.warned {
			monitoring.Warnf("pixel conversion requested before calibration, returning 0")
			c.warned = true
		}
		return 0
	}

	if c.state.Mode == ModeFocal {
		return pixels * distance / c.state.FocalLength
	}
	return pixels * c.state.Ratio
}

// IsCalibrated reports whether a successful calibration has happened.
func (c *Calibrator) IsCalibrated() bool {
	return c.state.IsCalibrated
}

// Status returns a copy of the current calibration state.
func (c *Calibrator) Status() State {
	return c.state
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 1)
}
