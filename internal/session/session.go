// Package session holds the measurement workflow: calibrate against the
// reference card, measure a hand until its lengths settle, then save them.
package session

import (
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/ayusman/handruler/internal/calibration"
	"github.com/ayusman/handruler/internal/detector"
	"github.com/ayusman/handruler/internal/measure"
	"github.com/ayusman/handruler/internal/store"
)

var (
	// ErrNotCalibrated is returned when measuring is requested before calibration.
	ErrNotCalibrated = errors.New("not calibrated")
	// ErrNotMeasuring is returned when saving outside a measurement.
	ErrNotMeasuring = errors.New("not measuring")
)

// State is the session workflow state.
type State int

const (
	Uncalibrated State = iota
	CalibratedIdle
	Measuring
)

func (s State) String() string {
	switch s {
	case Uncalibrated:
		return "UNCALIBRATED"
	case CalibratedIdle:
		return "CALIBRATED_IDLE"
	case Measuring:
		return "MEASURING"
	default:
		return "UNKNOWN"
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Config holds session settings.
type Config struct {
	Calibration calibration.Config
	Estimator   measure.Config
	// FirstHandIndex is the index given to the first saved hand. Values
	// below 1 mean 1.
	FirstHandIndex int
}

// Status is a point-in-time view of the session.
type Status struct {
	State        State             `json:"state"`
	HandIndex    int               `json:"hand_index"`
	HandDetected bool              `json:"hand_detected"`
	Stable       int               `json:"stable"`
	Total        int               `json:"total"`
	Saved        int               `json:"saved"`
	Calibration  calibration.State `json:"calibration"`
}

// Session is safe for concurrent use. The frame loop, the HTTP API and the
// tray all drive the same session.
type Session struct {
	mu sync.Mutex

	calibrator *calibration.Calibrator
	estimator  *measure.Estimator
	sink       store.Sink
	now        func() time.Time

	state       State
	handIndex   int
	handPresent bool
	latest      *measure.Snapshot
	saved       int
}

// New creates an uncalibrated session writing saved records to sink.
func New(config Config, sink store.Sink) *Session {
	cal := calibration.New(config.Calibration)
	if config.FirstHandIndex < 1 {
		config.FirstHandIndex = 1
	}

	return &Session{
		calibrator: cal,
		estimator:  measure.NewEstimator(cal, config.Estimator),
		sink:       sink,
		now:        time.Now,
		state:      Uncalibrated,
		handIndex:  config.FirstHandIndex,
	}
}

// Calibrate calibrates against a reference spanning referencePixels pixels
// and referenceLength physical units. On success all measurement history is
// dropped and the session waits for StartMeasuring. On failure nothing changes.
func (s *Session) Calibrate(referencePixels, referenceLength float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.calibrator.CalibrateWith(referencePixels, referenceLength); err != nil {
		return err
	}
	s.resetLocked()
	s.state = CalibratedIdle
	return nil
}

// CalibrateReference calibrates against the configured reference length.
func (s *Session) CalibrateReference(referencePixels float64) error {
	return s.Calibrate(referencePixels, s.ReferenceLength())
}

// ReferenceLength returns the configured physical reference length.
func (s *Session) ReferenceLength() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calibrator.Status().ReferenceLength
}

// StartMeasuring begins measuring. Calling it while already measuring does
// nothing.
func (s *Session) StartMeasuring() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case Uncalibrated:
		return ErrNotCalibrated
	case CalibratedIdle:
		s.state = Measuring
	}
	return nil
}

// Observe feeds the hands detected in one frame. Only the first hand is
// measured, and only while measuring. It returns the resulting snapshot or
// nil.
func (s *Session) Observe(hands []detector.HandLandmarks, size image.Point) *measure.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.observeLocked(hands, size)
}

// ObserveStatus is Observe followed by Status, taken under one lock so the
// snapshot and the status describe the same state.
func (s *Session) ObserveStatus(hands []detector.HandLandmarks, size image.Point) (*measure.Snapshot, Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.observeLocked(hands, size)
	return snap, s.statusLocked()
}

func (s *Session) observeLocked(hands []detector.HandLandmarks, size image.Point) *measure.Snapshot {
	s.handPresent = len(hands) > 0
	if s.state != Measuring || !s.handPresent {
		s.latest = nil
		return nil
	}

	s.latest = s.estimator.Measure(&hands[0], size)
	return s.latest
}

// Latest returns a copy of the most recent snapshot, or nil.
func (s *Session) Latest() *measure.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.latest == nil {
		return nil
	}
	snap := *s.latest
	return &snap
}

// Save stores the current stabilized measurements as the next hand and
// returns to CalibratedIdle. When no hand is visible or nothing has settled
// yet it returns a nil record and stays measuring. If the sink fails the
// session is left as it was.
func (s *Session) Save() (*store.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Measuring {
		return nil, ErrNotMeasuring
	}
	if !s.handPresent || s.latest.Stable() == 0 {
		return nil, nil
	}

	rec := store.NewRecord(s.now(), s.handIndex, s.latest.Measurements())
	if err := s.sink.Append(rec); err != nil {
		return nil, fmt.Errorf("save hand %d: %w", s.handIndex, err)
	}

	s.handIndex++
	s.saved++
	s.resetLocked()
	s.state = CalibratedIdle
	return rec, nil
}

// Status returns the current session status.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusLocked()
}

func (s *Session) statusLocked() Status {
	return Status{
		State:        s.state,
		HandIndex:    s.handIndex,
		HandDetected: s.handPresent,
		Stable:       s.latest.Stable(),
		Total:        len(measure.Keys()),
		Saved:        s.saved,
		Calibration:  s.calibrator.Status(),
	}
}

// State returns the current workflow state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) resetLocked() {
	s.estimator.Reset()
	s.latest = nil
}
