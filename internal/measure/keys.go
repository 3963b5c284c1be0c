package measure

import "github.com/ayusman/handruler/internal/detector"

// Part is a measured body part. The first five values line up with
// detector.Finger.
type Part int

const (
	PartThumb Part = iota
	PartIndex
	PartMiddle
	PartRing
	PartPinky
	PartPalm
	PartForearm
	numParts
)

var partNames = [numParts]string{"thumb", "index", "middle", "ring", "pinky", "palm", "forearm"}

func (p Part) String() string {
	if p < 0 || p >= numParts {
		return "unknown"
	}
	return partNames[p]
}

// FingerPart returns the Part for a finger.
func FingerPart(f detector.Finger) Part {
	return Part(f)
}

// Finger returns the finger a part refers to, if any.
func (p Part) Finger() (detector.Finger, bool) {
	if p >= PartThumb && p <= PartPinky {
		return detector.Finger(p), true
	}
	return 0, false
}

// Metric is what is measured on a part.
type Metric int

const (
	MetricTotal Metric = iota
	MetricSegment1
	MetricSegment2
	MetricSegment3
	MetricWidth
	MetricLength
	MetricSpan
	numMetrics
)

var metricNames = [numMetrics]string{"total", "segment_1", "segment_2", "segment_3", "width", "length", "span"}

func (m Metric) String() string {
	if m < 0 || m >= numMetrics {
		return "unknown"
	}
	return metricNames[m]
}

// SegmentMetric returns the metric for the i-th finger segment (0-based).
func SegmentMetric(i int) Metric {
	return MetricSegment1 + Metric(i)
}

// Key names one stabilized measurement, e.g. index.segment_2 or palm.width.
type Key struct {
	Part   Part
	Metric Metric
}

func (k Key) String() string {
	return k.Part.String() + "." + k.Metric.String()
}

// Keys returns every measurement the estimator produces, in display order:
// forearm, palm, then each finger's total followed by its segments.
func Keys() []Key {
	keys := []Key{
		{PartForearm, MetricLength},
		{PartPalm, MetricWidth},
		{PartPalm, MetricLength},
		{PartPalm, MetricSpan},
	}
	for _, f := range detector.Fingers {
		p := FingerPart(f)
		keys = append(keys, Key{p, MetricTotal})
		for i := 0; i < 3; i++ {
			keys = append(keys, Key{p, SegmentMetric(i)})
		}
	}
	return keys
}
