package session

import (
	"errors"
	"image"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/handruler/internal/calibration"
	"github.com/ayusman/handruler/internal/detector"
	"github.com/ayusman/handruler/internal/measure"
	"github.com/ayusman/handruler/internal/monitoring"
	"github.com/ayusman/handruler/internal/store"
)

type memorySink struct {
	mu      sync.Mutex
	records []*store.Record
	err     error
}

func (m *memorySink) Append(rec *store.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.records = append(m.records, rec)
	return nil
}

func (m *memorySink) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

var frame = image.Pt(1000, 1000)

func newSession(t *testing.T, sink store.Sink) *Session {
	t.Helper()
	monitoring.SetLogger(nil)
	t.Cleanup(func() { monitoring.SetLogger(log.Printf) })

	s := New(Config{
		Calibration: calibration.DefaultConfig(),
		Estimator:   measure.DefaultConfig(),
	}, sink)
	s.now = func() time.Time { return time.Date(2024, 5, 1, 10, 30, 0, 0, time.Local) }
	return s
}

func hands() []detector.HandLandmarks {
	return []detector.HandLandmarks{detector.FlatHandLandmarks(frame, 150)}
}

func feed(s *Session, n int) *measure.Snapshot {
	var snap *measure.Snapshot
	for i := 0; i < n; i++ {
		snap = s.Observe(hands(), frame)
	}
	return snap
}

func TestSession_Scenario(t *testing.T) {
	sink := &memorySink{}
	s := newSession(t, sink)

	// Measuring before calibration is rejected.
	assert.ErrorIs(t, s.StartMeasuring(), ErrNotCalibrated)
	assert.Equal(t, Uncalibrated, s.State())

	require.NoError(t, s.Calibrate(150, 8.56))
	assert.Equal(t, CalibratedIdle, s.State())

	require.NoError(t, s.StartMeasuring())
	assert.Equal(t, Measuring, s.State())

	// No hand: save is a no-op.
	assert.Nil(t, s.Observe(nil, frame))
	rec, err := s.Save()
	require.NoError(t, err)
	assert.Nil(t, rec)
	assert.Equal(t, 1, s.Status().HandIndex)
	assert.Equal(t, Measuring, s.State())
	assert.Zero(t, sink.count())

	snap := feed(s, measure.DefaultMinSamples)
	require.NotNil(t, snap)
	assert.InDelta(t, 8.56, snap.Palm.Width.Value, 1e-9)
	assert.InDelta(t, 29.96, snap.Forearm.Length.Value, 1e-9)

	rec, err = s.Save()
	require.NoError(t, err)
	require.NotNil(t, rec)

	assert.Equal(t, 1, sink.count())
	assert.Equal(t, 1, rec.HandIndex)
	assert.Equal(t, "2024-05-01 10:30:00", rec.Timestamp)
	assert.Equal(t, 30.0, rec.Measurements["forearm"].Value)
	assert.Equal(t, 8.6, rec.Measurements["palm"].Group["width"])

	st := s.Status()
	assert.Equal(t, 2, st.HandIndex)
	assert.Equal(t, 1, st.Saved)
	assert.Equal(t, CalibratedIdle, st.State)

	// Saving again requires measuring.
	_, err = s.Save()
	assert.ErrorIs(t, err, ErrNotMeasuring)
}

func TestSession_SaveBeforeStable(t *testing.T) {
	sink := &memorySink{}
	s := newSession(t, sink)
	require.NoError(t, s.Calibrate(150, 8.56))
	require.NoError(t, s.StartMeasuring())

	feed(s, measure.DefaultMinSamples-1)

	rec, err := s.Save()
	require.NoError(t, err)
	assert.Nil(t, rec)
	assert.Zero(t, sink.count())
	assert.Equal(t, Measuring, s.State())
}

func TestSession_SinkFailure(t *testing.T) {
	sink := &memorySink{err: errors.New("disk full")}
	s := newSession(t, sink)
	require.NoError(t, s.Calibrate(150, 8.56))
	require.NoError(t, s.StartMeasuring())
	feed(s, measure.DefaultMinSamples)

	rec, err := s.Save()
	assert.Error(t, err)
	assert.Nil(t, rec)
	assert.Equal(t, Measuring, s.State())
	assert.Equal(t, 1, s.Status().HandIndex)
	assert.NotNil(t, s.Latest(), "snapshot should survive a failed save")
}

func TestSession_Recalibrate(t *testing.T) {
	s := newSession(t, &memorySink{})
	require.NoError(t, s.Calibrate(150, 8.56))
	require.NoError(t, s.StartMeasuring())
	feed(s, measure.DefaultMinSamples)

	t.Run("invalid input keeps state", func(t *testing.T) {
		err := s.Calibrate(0, 8.56)
		assert.ErrorIs(t, err, calibration.ErrInvalidCalibrationInput)
		assert.Equal(t, Measuring, s.State())
		assert.NotNil(t, s.Latest())
	})

	t.Run("success drops history", func(t *testing.T) {
		require.NoError(t, s.Calibrate(300, 8.56))
		assert.Equal(t, CalibratedIdle, s.State())
		assert.Nil(t, s.Latest())

		require.NoError(t, s.StartMeasuring())
		snap := s.Observe(hands(), frame)
		require.NotNil(t, snap)
		assert.Zero(t, snap.Stable())

		snap = feed(s, measure.DefaultMinSamples-1)
		assert.InDelta(t, 4.28, snap.Palm.Width.Value, 1e-9)
	})
}

func TestSession_ObserveOutsideMeasuring(t *testing.T) {
	s := newSession(t, &memorySink{})
	assert.Nil(t, s.Observe(hands(), frame))
	assert.True(t, s.Status().HandDetected)

	require.NoError(t, s.CalibrateReference(150))
	assert.Nil(t, s.Observe(hands(), frame))
	assert.Equal(t, calibration.DefaultReferenceLength, s.Status().Calibration.ReferenceLength)
}

func TestSession_StartMeasuringIdempotent(t *testing.T) {
	s := newSession(t, &memorySink{})
	require.NoError(t, s.Calibrate(150, 8.56))
	require.NoError(t, s.StartMeasuring())
	feed(s, 3)

	require.NoError(t, s.StartMeasuring())
	snap := feed(s, 2)
	require.NotNil(t, snap)
	assert.Equal(t, len(measure.Keys()), snap.Stable(), "history must survive a repeated start")
}

func TestSession_FirstHandIndex(t *testing.T) {
	sink := &memorySink{}
	monitoring.SetLogger(nil)
	t.Cleanup(func() { monitoring.SetLogger(log.Printf) })
	s := New(Config{FirstHandIndex: 7}, sink)

	require.NoError(t, s.Calibrate(150, 8.56))
	require.NoError(t, s.StartMeasuring())
	feed(s, measure.DefaultMinSamples)

	rec, err := s.Save()
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, 7, rec.HandIndex)
	assert.Equal(t, 8, s.Status().HandIndex)
}

func TestSession_Concurrent(t *testing.T) {
	s := newSession(t, &memorySink{})
	require.NoError(t, s.Calibrate(150, 8.56))
	require.NoError(t, s.StartMeasuring())

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			feed(s, 20)
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				_ = s.Status()
				_ = s.Latest()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, Measuring, s.State())
}

func TestSession_ObserveStatus(t *testing.T) {
	s := newSession(t, &memorySink{})
	require.NoError(t, s.Calibrate(150, 8.56))
	require.NoError(t, s.StartMeasuring())

	// Recalibrate and restart alongside the frame loop.
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			_ = s.Calibrate(150, 8.56)
			_ = s.StartMeasuring()
		}
	}()

	for i := 0; i < 500; i++ {
		snap, st := s.ObserveStatus(hands(), frame)
		if snap != nil {
			require.Equal(t, Measuring, st.State)
		}
		require.Equal(t, snap.Stable(), st.Stable)
		require.True(t, st.HandDetected)
	}
	close(stop)
	wg.Wait()
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "UNCALIBRATED", Uncalibrated.String())
	assert.Equal(t, "CALIBRATED_IDLE", CalibratedIdle.String())
	assert.Equal(t, "MEASURING", Measuring.String())
	assert.Equal(t, "UNKNOWN", State(9).String())
}
