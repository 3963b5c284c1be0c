package measure

import (
	"image"
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/handruler/internal/detector"
	"github.com/ayusman/handruler/internal/geometry"
)

// ratioConverter is a fixed-ratio Converter; a zero ratio means uncalibrated.
type ratioConverter float64

func (r ratioConverter) IsCalibrated() bool { return r > 0 }

func (r ratioConverter) PixelsToMetric(px float64) float64 {
	if r <= 0 {
		return 0
	}
	return px * float64(r)
}

var frame = image.Pt(1000, 1000)

func TestWindow(t *testing.T) {
	w := NewWindow(3)
	assert.Equal(t, 3, w.Cap())
	assert.Empty(t, w.Values())

	for _, v := range []float64{1, 2, 3, 4, 5} {
		w.Push(v)
	}
	assert.Equal(t, []float64{3, 4, 5}, w.Values())
	assert.Equal(t, 3, w.Len())

	vals := w.Values()
	vals[0] = 99
	assert.Equal(t, 3.0, w.Values()[0], "Values must return a copy")

	w.Reset()
	assert.Zero(t, w.Len())

	assert.Equal(t, 1, NewWindow(0).Cap())
}

func TestStabilize(t *testing.T) {
	s := DefaultStabilizer()

	tests := []struct {
		name   string
		values []float64
		want   float64
		ok     bool
	}{
		{"constant", []float64{10, 10, 10, 10, 10}, 10, true},
		{"single outlier rejected", []float64{10, 10, 10, 10, 1000}, 10, true},
		{"outlier first", []float64{1000, 10, 10, 10, 10}, 10, true},
		{"wide tail rejected", []float64{1, 2, 3, 4, 100}, 2.5, true},
		{"no outliers", []float64{9, 10, 11, 10, 10, 9, 11}, 10, true},
		{"too short", []float64{10, 10, 10, 10}, 0, false},
		{"empty", nil, 0, false},
		{"NaN poisons window", []float64{10, 10, math.NaN(), 10, 10}, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := s.Stabilize(tt.values)
			assert.Equal(t, tt.ok, ok)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}

	t.Run("does not reorder input", func(t *testing.T) {
		in := []float64{5, 1, 4, 2, 3}
		s.Stabilize(in)
		assert.Equal(t, []float64{5, 1, 4, 2, 3}, in)
	})

	t.Run("minimum raised to three", func(t *testing.T) {
		lax := Stabilizer{MinSamples: 1, K: 2}
		_, ok := lax.Stabilize([]float64{10, 10})
		assert.False(t, ok)
		v, ok := lax.Stabilize([]float64{10, 10, 10})
		assert.True(t, ok)
		assert.Equal(t, 10.0, v)
	})
}

func TestKeys(t *testing.T) {
	keys := Keys()
	require.Len(t, keys, 24)

	seen := make(map[string]bool)
	for _, k := range keys {
		name := k.String()
		assert.False(t, seen[name], "duplicate key %s", name)
		seen[name] = true
	}

	assert.True(t, seen["forearm.length"])
	assert.True(t, seen["palm.width"])
	assert.True(t, seen["palm.span"])
	assert.True(t, seen["thumb.segment_3"])
	assert.True(t, seen["pinky.total"])

	assert.Equal(t, "unknown", Part(42).String())
	assert.Equal(t, "unknown", Metric(-1).String())

	f, ok := PartRing.Finger()
	assert.True(t, ok)
	assert.Equal(t, detector.Ring, f)
	_, ok = PartPalm.Finger()
	assert.False(t, ok)
}

func TestMeasureForearm(t *testing.T) {
	hand := detector.FlatHandLandmarks(frame, 150)
	points := hand.Pixels(frame)

	f := MeasureForearm(points, DefaultForearmRatio)

	assert.InDelta(t, 525.0, f.Length, 1e-6)
	assert.InDelta(t, f.Length, geometry.Distance(f.Wrist, f.End), 1e-6)
	// The hand points up, so the forearm continues straight down.
	assert.InDelta(t, 500.0, f.End.X, 1e-6)
	assert.InDelta(t, 1325.0, f.End.Y, 1e-6)

	t.Run("end lies on the middle finger axis", func(t *testing.T) {
		axis := geometry.Direction(points[detector.MiddleMCP], points[detector.Wrist])
		toEnd := geometry.Direction(points[detector.Wrist], f.End)
		assert.InDelta(t, 0.0, axis.Cross(toEnd).Norm(), 1e-6)
		assert.Greater(t, axis.Dot(toEnd), 0.0)
	})

	t.Run("degenerate hand keeps the wrist", func(t *testing.T) {
		var pts [detector.NumLandmarks]r3.Vector
		pts[detector.ThumbCMC] = r3.Vector{X: 10}
		f := MeasureForearm(pts, 2)
		assert.InDelta(t, 20.0, f.Length, 1e-9)
		assert.Equal(t, f.Wrist, f.End)
	})
}

func TestMeasureFingerAndPalm(t *testing.T) {
	points := detector.FlatHandLandmarks(frame, 150).Pixels(frame)

	index := MeasureFinger(points, detector.Index)
	assert.InDelta(t, 135.0, index.Total, 1e-6)
	assert.InDelta(t, 60.0, index.Segments[0], 1e-6)
	assert.InDelta(t, 40.0, index.Segments[1], 1e-6)
	assert.InDelta(t, 35.0, index.Segments[2], 1e-6)

	thumb := MeasureFinger(points, detector.Thumb)
	assert.InDelta(t, math.Hypot(80, 105), thumb.Total, 1e-6)

	palm := MeasurePalm(points)
	assert.InDelta(t, 150.0, palm.Width, 1e-6)
	assert.InDelta(t, 160.0, palm.Length, 1e-6)
	assert.InDelta(t, 230.0, palm.Span, 1e-6)
}

func TestEstimator_ReferenceScenario(t *testing.T) {
	conv := ratioConverter(8.56 / 150)
	e := NewEstimator(conv, DefaultConfig())
	hand := detector.FlatHandLandmarks(frame, 150)

	var snap *Snapshot
	for i := 0; i < DefaultMinSamples-1; i++ {
		snap = e.Measure(&hand, frame)
		require.NotNil(t, snap)
		assert.Zero(t, snap.Stable(), "frame %d should still be pending", i)
		assert.False(t, snap.Palm.Width.Stable)
		assert.Zero(t, snap.Palm.Width.Value)
	}

	snap = e.Measure(&hand, frame)
	require.NotNil(t, snap)
	assert.Equal(t, len(Keys()), snap.Stable())

	assert.True(t, snap.Palm.Width.Stable)
	assert.InDelta(t, 8.56, snap.Palm.Width.Value, 1e-9)
	assert.InDelta(t, 29.96, snap.Forearm.Length.Value, 1e-9)
	assert.InDelta(t, 135*8.56/150, snap.Fingers[detector.Index].Total.Value, 1e-9)
	assert.Equal(t, "Right", snap.Handedness)
	assert.Equal(t, "cm", snap.Units)
	assert.Equal(t, DefaultMinSamples, e.Samples(Key{PartPalm, MetricWidth}))
}

func TestEstimator_RejectsJitter(t *testing.T) {
	conv := ratioConverter(8.56 / 150)
	e := NewEstimator(conv, DefaultConfig())

	steady := detector.FlatHandLandmarks(frame, 150)
	glitch := detector.FlatHandLandmarks(frame, 300)

	var snap *Snapshot
	for i := 0; i < DefaultWindowSize; i++ {
		h := steady
		if i == 6 {
			h = glitch
		}
		snap = e.Measure(&h, frame)
	}

	require.NotNil(t, snap)
	assert.InDelta(t, 8.56, snap.Palm.Width.Value, 1e-9)
	assert.InDelta(t, 29.96, snap.Forearm.Length.Value, 1e-9)
}

func TestEstimator_NoSnapshot(t *testing.T) {
	hand := detector.FlatHandLandmarks(frame, 150)

	t.Run("uncalibrated", func(t *testing.T) {
		e := NewEstimator(ratioConverter(0), DefaultConfig())
		assert.Nil(t, e.Measure(&hand, frame))
		assert.Zero(t, e.Samples(Key{PartPalm, MetricWidth}))
	})

	t.Run("no hand", func(t *testing.T) {
		e := NewEstimator(ratioConverter(1), DefaultConfig())
		assert.Nil(t, e.Measure(nil, frame))
	})

	t.Run("empty frame", func(t *testing.T) {
		e := NewEstimator(ratioConverter(1), DefaultConfig())
		assert.Nil(t, e.Measure(&hand, image.Point{}))
	})
}

func TestEstimator_Reset(t *testing.T) {
	e := NewEstimator(ratioConverter(1), DefaultConfig())
	hand := detector.FlatHandLandmarks(frame, 150)

	for i := 0; i < DefaultMinSamples; i++ {
		e.Measure(&hand, frame)
	}
	e.Reset()

	snap := e.Measure(&hand, frame)
	require.NotNil(t, snap)
	assert.Zero(t, snap.Stable())
	assert.Equal(t, 1, e.Samples(Key{PartForearm, MetricLength}))
}

func TestNewEstimator_Defaults(t *testing.T) {
	e := NewEstimator(ratioConverter(1), Config{})
	cfg := e.Config()
	assert.Equal(t, DefaultWindowSize, cfg.WindowSize)
	assert.Equal(t, DefaultMinSamples, cfg.MinSamples)
	assert.Equal(t, DefaultOutlierK, cfg.OutlierK)
	assert.Equal(t, DefaultForearmRatio, cfg.ForearmRatio)
}

func TestSnapshot_Measurements(t *testing.T) {
	t.Run("nothing stable", func(t *testing.T) {
		snap := &Snapshot{}
		assert.Empty(t, snap.Measurements())
		assert.Zero(t, snap.Stable())

		var none *Snapshot
		assert.Empty(t, none.Measurements())
	})

	t.Run("groups per part", func(t *testing.T) {
		snap := &Snapshot{}
		snap.Forearm.Length = Length{Value: 29.96, Stable: true}
		snap.Palm.Width = Length{Value: 8.56, Stable: true}
		snap.Palm.Span = Length{Value: 13.1, Stable: false}
		snap.Fingers[detector.Index].Total = Length{Value: 7.704, Stable: true}
		snap.Fingers[detector.Index].Segments[1] = Length{Value: 2.28, Stable: true}

		m := snap.Measurements()
		require.Len(t, m, 3)

		assert.False(t, m["forearm"].IsGroup())
		assert.Equal(t, 30.0, m["forearm"].Value)

		assert.Equal(t, map[string]float64{"width": 8.6}, m["palm"].Group)
		assert.Equal(t, map[string]float64{"total": 7.7, "segment_2": 2.3}, m["index"].Group)
		assert.Equal(t, 4, snap.Stable())
	})

	t.Run("lengths keyed by name", func(t *testing.T) {
		snap := &Snapshot{}
		snap.Fingers[detector.Pinky].Segments[2] = Length{Value: 1.5, Stable: true}
		l := snap.Lengths()
		assert.Len(t, l, 24)
		assert.Equal(t, Length{Value: 1.5, Stable: true}, l["pinky.segment_3"])
	})
}
