// Package measure turns hand landmarks into stabilized physical lengths of
// the fingers, palm and forearm.
package measure

import (
	"image"

	"github.com/golang/geo/r3"

	"github.com/ayusman/handruler/internal/detector"
	"github.com/ayusman/handruler/internal/geometry"
)

// DefaultForearmRatio is the forearm length as a multiple of the palm width.
const DefaultForearmRatio = 3.5

// Converter maps pixel lengths to physical lengths.
type Converter interface {
	IsCalibrated() bool
	PixelsToMetric(pixels float64) float64
}

// Config holds estimator settings.
type Config struct {
	WindowSize   int
	MinSamples   int
	OutlierK     float64
	ForearmRatio float64
	Units        string
}

// DefaultConfig returns the default estimator settings.
func DefaultConfig() Config {
	return Config{
		WindowSize:   DefaultWindowSize,
		MinSamples:   DefaultMinSamples,
		OutlierK:     DefaultOutlierK,
		ForearmRatio: DefaultForearmRatio,
		Units:        "cm",
	}
}

// Forearm is a forearm estimate in pixel space.
type Forearm struct {
	Length float64
	Wrist  r3.Vector
	End    r3.Vector
}

// MeasureForearm estimates the forearm from the palm width. The end point
// lies on the ray from the middle finger MCP through the wrist, Length pixels
// past the wrist.
func MeasureForearm(points [detector.NumLandmarks]r3.Vector, ratio float64) Forearm {
	wrist := points[detector.Wrist]
	palmWidth := geometry.Distance(points[detector.ThumbCMC], points[detector.PinkyMCP])
	f := Forearm{
		Length: palmWidth * ratio,
		Wrist:  wrist,
		End:    wrist,
	}

	ref := points[detector.MiddleMCP]
	if d := geometry.Distance(wrist, ref); d > 0 {
		f.End = geometry.Extrapolate(wrist, ref, f.Length/d)
	}
	return f
}

// Finger holds a finger's pixel lengths.
type Finger struct {
	Total    float64
	Segments [3]float64
}

// MeasureFinger measures a finger along its joint chain.
func MeasureFinger(points [detector.NumLandmarks]r3.Vector, f detector.Finger) Finger {
	j := f.Joints()
	var out Finger
	out.Total = geometry.Distance(points[j[0]], points[j[3]])
	for i := 0; i < 3; i++ {
		out.Segments[i] = geometry.Distance(points[j[i]], points[j[i+1]])
	}
	return out
}

// Palm holds the palm pixel lengths.
type Palm struct {
	// Width runs from the thumb CMC to the pinky MCP.
	Width float64
	// Length runs from the wrist to the middle finger MCP.
	Length float64
	// Span runs from the thumb tip to the pinky tip.
	Span float64
}

// MeasurePalm measures the palm.
func MeasurePalm(points [detector.NumLandmarks]r3.Vector) Palm {
	return Palm{
		Width:  geometry.Distance(points[detector.ThumbCMC], points[detector.PinkyMCP]),
		Length: geometry.Distance(points[detector.Wrist], points[detector.MiddleMCP]),
		Span:   geometry.Distance(points[detector.ThumbTip], points[detector.PinkyTip]),
	}
}

// Estimator keeps one sliding window per measurement and produces a
// Snapshot per observed hand. It is not safe for concurrent use.
type Estimator struct {
	converter  Converter
	config     Config
	stabilizer Stabilizer
	windows    map[Key]*Window
}

// NewEstimator creates an Estimator reading calibration from converter.
// Non-positive config fields fall back to the defaults.
func NewEstimator(converter Converter, config Config) *Estimator {
	def := DefaultConfig()
	if config.WindowSize <= 0 {
		config.WindowSize = def.WindowSize
	}
	if config.MinSamples <= 0 {
		config.MinSamples = def.MinSamples
	}
	if config.OutlierK <= 0 {
		config.OutlierK = def.OutlierK
	}
	if config.ForearmRatio <= 0 {
		config.ForearmRatio = def.ForearmRatio
	}

	e := &Estimator{
		converter:  converter,
		config:     config,
		stabilizer: Stabilizer{MinSamples: config.MinSamples, K: config.OutlierK},
		windows:    make(map[Key]*Window),
	}
	for _, k := range Keys() {
		e.windows[k] = NewWindow(config.WindowSize)
	}
	return e
}

// Config returns the effective estimator settings.
func (e *Estimator) Config() Config {
	return e.config
}

// Measure converts hand into physical lengths, pushes them into the windows
// and returns the stabilized snapshot. It returns nil when there is no hand,
// the frame is empty, or the converter is not calibrated.
func (e *Estimator) Measure(hand *detector.HandLandmarks, size image.Point) *Snapshot {
	if hand == nil || size.X <= 0 || size.Y <= 0 || !e.converter.IsCalibrated() {
		return nil
	}

	points := hand.Pixels(size)
	snap := &Snapshot{
		Handedness: hand.Handedness,
		Units:      e.config.Units,
	}

	forearm := MeasureForearm(points, e.config.ForearmRatio)
	snap.Forearm.Wrist = forearm.Wrist
	snap.Forearm.End = forearm.End
	e.observe(snap, Key{PartForearm, MetricLength}, forearm.Length)

	palm := MeasurePalm(points)
	e.observe(snap, Key{PartPalm, MetricWidth}, palm.Width)
	e.observe(snap, Key{PartPalm, MetricLength}, palm.Length)
	e.observe(snap, Key{PartPalm, MetricSpan}, palm.Span)

	for _, f := range detector.Fingers {
		p := FingerPart(f)
		m := MeasureFinger(points, f)
		e.observe(snap, Key{p, MetricTotal}, m.Total)
		for i, seg := range m.Segments {
			e.observe(snap, Key{p, SegmentMetric(i)}, seg)
		}
	}

	return snap
}

func (e *Estimator) observe(snap *Snapshot, k Key, pixels float64) {
	w := e.windows[k]
	w.Push(e.converter.PixelsToMetric(pixels))
	v, ok := e.stabilizer.Stabilize(w.Values())
	if !ok {
		v = 0
	}
	snap.set(k, Length{Value: v, Stable: ok})
}

// Samples returns how many samples the window for k holds.
func (e *Estimator) Samples(k Key) int {
	if w, ok := e.windows[k]; ok {
		return w.Len()
	}
	return 0
}

// Reset clears every window.
func (e *Estimator) Reset() {
	for _, w := range e.windows {
		w.Reset()
	}
}
