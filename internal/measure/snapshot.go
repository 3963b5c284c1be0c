package measure

import (
	"github.com/golang/geo/r3"

	"github.com/ayusman/handruler/internal/detector"
	"github.com/ayusman/handruler/internal/store"
)

// Length is a stabilized physical length. Stable is false while the window
// does not hold enough agreeing samples; Value is then 0 and must not be shown.
type Length struct {
	Value  float64 `json:"value"`
	Stable bool    `json:"stable"`
}

// FingerDimensions holds one finger's lengths.
type FingerDimensions struct {
	Total    Length    `json:"total"`
	Segments [3]Length `json:"segments"`
}

// PalmDimensions holds the palm lengths.
type PalmDimensions struct {
	Width  Length `json:"width"`
	Length Length `json:"length"`
	Span   Length `json:"span"`
}

// ForearmDimensions holds the forearm length and its drawn endpoints in
// pixel space.
type ForearmDimensions struct {
	Length Length    `json:"length"`
	Wrist  r3.Vector `json:"-"`
	End    r3.Vector `json:"-"`
}

// Snapshot is the estimator output for one frame.
type Snapshot struct {
	Fingers    [detector.NumFingers]FingerDimensions `json:"fingers"`
	Palm       PalmDimensions                        `json:"palm"`
	Forearm    ForearmDimensions                     `json:"forearm"`
	Handedness string                                `json:"handedness,omitempty"`
	Units      string                                `json:"units,omitempty"`
}

// Get returns the length stored under key.
func (s *Snapshot) Get(k Key) Length {
	if l := s.slot(k); l != nil {
		return *l
	}
	return Length{}
}

func (s *Snapshot) set(k Key, l Length) {
	if slot := s.slot(k); slot != nil {
		*slot = l
	}
}

func (s *Snapshot) slot(k Key) *Length {
	switch k.Part {
	case PartForearm:
		if k.Metric == MetricLength {
			return &s.Forearm.Length
		}
	case PartPalm:
		switch k.Metric {
		case MetricWidth:
			return &s.Palm.Width
		case MetricLength:
			return &s.Palm.Length
		case MetricSpan:
			return &s.Palm.Span
		}
	default:
		f, ok := k.Part.Finger()
		if !ok {
			return nil
		}
		switch k.Metric {
		case MetricTotal:
			return &s.Fingers[f].Total
		case MetricSegment1, MetricSegment2, MetricSegment3:
			return &s.Fingers[f].Segments[k.Metric-MetricSegment1]
		}
	}
	return nil
}

// Stable counts the measurements that have stabilized.
func (s *Snapshot) Stable() int {
	if s == nil {
		return 0
	}
	n := 0
	for _, k := range Keys() {
		if s.Get(k).Stable {
			n++
		}
	}
	return n
}

// Measurements converts the stable lengths into record entries: the forearm
// as a single value, the palm and each finger as groups. Parts with nothing
// stable are left out.
func (s *Snapshot) Measurements() map[string]store.Entry {
	out := make(map[string]store.Entry)
	if s == nil {
		return out
	}

	if s.Forearm.Length.Stable {
		out[PartForearm.String()] = store.Value(s.Forearm.Length.Value)
	}

	groups := make(map[Part]map[string]float64)
	for _, k := range Keys() {
		if k.Part == PartForearm {
			continue
		}
		l := s.Get(k)
		if !l.Stable {
			continue
		}
		if groups[k.Part] == nil {
			groups[k.Part] = make(map[string]float64)
		}
		groups[k.Part][k.Metric.String()] = l.Value
	}
	for p, g := range groups {
		out[p.String()] = store.Group(g)
	}

	return out
}

// Lengths returns every measurement keyed by its dotted name.
func (s *Snapshot) Lengths() map[string]Length {
	out := make(map[string]Length, len(Keys()))
	for _, k := range Keys() {
		out[k.String()] = s.Get(k)
	}
	return out
}
