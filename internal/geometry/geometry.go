// Package geometry provides the planar and spatial helpers used to turn hand
// landmarks into lengths. All functions are pure and operate on r3.Vector in
// pixel space.
package geometry

import (
	"image"
	"math"

	"github.com/golang/geo/r3"
)

// Distance returns the Euclidean distance between a and b in the image plane.
// The Z component is ignored: calibration is planar, so depth must not
// contribute to a length that is later scaled by a pixel ratio.
func Distance(a, b r3.Vector) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// Distance3D returns the Euclidean distance between a and b including depth.
func Distance3D(a, b r3.Vector) float64 {
	return a.Distance(b)
}

// Direction returns the vector pointing from `from` to `to`.
func Direction(from, to r3.Vector) r3.Vector {
	return to.Sub(from)
}

// Extrapolate continues the ray from ref through from by factor multiples of
// the |from - ref| vector: from + (from - ref) * factor.
// A factor of zero returns from unchanged.
func Extrapolate(from, ref r3.Vector, factor float64) r3.Vector {
	return from.Add(Direction(ref, from).Mul(factor))
}

// Pixel rounds v to the nearest integer image coordinate.
func Pixel(v r3.Vector) image.Point {
	return image.Pt(int(math.Round(v.X)), int(math.Round(v.Y)))
}
