package measure

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Stabilization defaults.
const (
	DefaultWindowSize = 10
	DefaultMinSamples = 5
	DefaultOutlierK   = 2.0

	// minFiltered is the fewest samples that may survive outlier rejection.
	minFiltered = 3
)

// Window is a fixed-capacity FIFO of recent samples. When full, pushing a
// new sample evicts the oldest.
type Window struct {
	samples  []float64
	capacity int
}

// NewWindow creates a window holding at most capacity samples (minimum 1).
func NewWindow(capacity int) *Window {
	if capacity < 1 {
		capacity = 1
	}
	return &Window{
		samples:  make([]float64, 0, capacity),
		capacity: capacity,
	}
}

// Push appends a sample, evicting the oldest if the window is full.
func (w *Window) Push(v float64) {
	if len(w.samples) >= w.capacity {
		copy(w.samples, w.samples[1:])
		w.samples = w.samples[:w.capacity-1]
	}
	w.samples = append(w.samples, v)
}

// Values returns a copy of the samples, oldest first.
func (w *Window) Values() []float64 {
	out := make([]float64, len(w.samples))
	copy(out, w.samples)
	return out
}

// Len returns the number of samples held.
func (w *Window) Len() int { return len(w.samples) }

// Cap returns the window capacity.
func (w *Window) Cap() int { return w.capacity }

// Reset drops every sample.
func (w *Window) Reset() {
	w.samples = w.samples[:0]
}

// Stabilizer turns a window of noisy samples into one value by rejecting
// outliers outside [Q1 - K*IQR, Q3 + K*IQR] and averaging the rest.
type Stabilizer struct {
	// MinSamples is the history required before a value is produced.
	// Values below 3 are raised to 3.
	MinSamples int
	// K scales the interquartile range used for the rejection bounds.
	K float64
}

// DefaultStabilizer returns a Stabilizer with the default thresholds.
func DefaultStabilizer() Stabilizer {
	return Stabilizer{MinSamples: DefaultMinSamples, K: DefaultOutlierK}
}

// Stabilize returns the mean of the non-outlier samples. It reports false when
// there is not enough history or too few samples survive filtering; callers
// must treat that as pending, not as zero.
func (s Stabilizer) Stabilize(values []float64) (float64, bool) {
	need := s.MinSamples
	if need < minFiltered {
		need = minFiltered
	}
	if len(values) < need {
		return 0, false
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	// Empirical quartiles pick observed samples, so a single extreme value
	// in a small window cannot drag Q3 towards itself.
	q1 := stat.Quantile(0.25, stat.Empirical, sorted, nil)
	q3 := stat.Quantile(0.75, stat.Empirical, sorted, nil)
	iqr := q3 - q1
	lower := q1 - s.K*iqr
	upper := q3 + s.K*iqr

	filtered := make([]float64, 0, len(sorted))
	for _, v := range sorted {
		if v >= lower && v <= upper {
			filtered = append(filtered, v)
		}
	}
	if len(filtered) < minFiltered {
		return 0, false
	}

	return stat.Mean(filtered, nil), true
}
