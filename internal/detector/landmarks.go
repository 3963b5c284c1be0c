// Package detector provides hand detection interfaces and the 21-point hand
// landmark model consumed by the measurement pipeline.
package detector

import (
	"image"

	"github.com/golang/geo/r3"
)

// Hand landmark indices following MediaPipe convention.
// See: https://developers.google.com/mediapipe/solutions/vision/hand_landmarker
const (
	Wrist        = 0
	ThumbCMC     = 1
	ThumbMCP     = 2
	ThumbIP      = 3
	ThumbTip     = 4
	IndexMCP     = 5
	IndexPIP     = 6
	IndexDIP     = 7
	IndexTip     = 8
	MiddleMCP    = 9
	MiddlePIP    = 10
	MiddleDIP    = 11
	MiddleTip    = 12
	RingMCP      = 13
	RingPIP      = 14
	RingDIP      = 15
	RingTip      = 16
	PinkyMCP     = 17
	PinkyPIP     = 18
	PinkyDIP     = 19
	PinkyTip     = 20
	NumLandmarks = 21
)

// Point3D is a landmark in normalized image coordinates: X and Y are in [0,1]
// relative to frame width and height, Z is relative depth on the X scale.
type Point3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// HandLandmarks represents the 21 hand landmarks detected by MediaPipe.
type HandLandmarks struct {
	Points     [NumLandmarks]Point3D `json:"points"`
	Handedness string                `json:"handedness"` // "Left" or "Right"
	Score      float64               `json:"score"`
}

// Pixels projects the landmarks into pixel space for a frame of the given size.
// Depth is scaled by the frame width, matching how MediaPipe reports Z.
func (h *HandLandmarks) Pixels(size image.Point) [NumLandmarks]r3.Vector {
	var out [NumLandmarks]r3.Vector
	if h == nil {
		return out
	}

	w := float64(size.X)
	ht := float64(size.Y)
	for i, p := range h.Points {
		out[i] = r3.Vector{X: p.X * w, Y: p.Y * ht, Z: p.Z * w}
	}
	return out
}

// Finger identifies one of the five digits.
type Finger int

const (
	Thumb Finger = iota
	Index
	Middle
	Ring
	Pinky
	NumFingers
)

// Fingers lists every finger in anatomical order, thumb first.
var Fingers = [NumFingers]Finger{Thumb, Index, Middle, Ring, Pinky}

var fingerNames = [NumFingers]string{"thumb", "index", "middle", "ring", "pinky"}

// fingerJoints holds each finger's joint chain from base to tip.
var fingerJoints = [NumFingers][4]int{
	Thumb:  {ThumbCMC, ThumbMCP, ThumbIP, ThumbTip},
	Index:  {IndexMCP, IndexPIP, IndexDIP, IndexTip},
	Middle: {MiddleMCP, MiddlePIP, MiddleDIP, MiddleTip},
	Ring:   {RingMCP, RingPIP, RingDIP, RingTip},
	Pinky:  {PinkyMCP, PinkyPIP, PinkyDIP, PinkyTip},
}

// String returns the lowercase finger name.
func (f Finger) String() string {
	if f < 0 || f >= NumFingers {
		return "unknown"
	}
	return fingerNames[f]
}

// Joints returns the landmark indices of the finger from base to tip.
// The thumb chain starts at the CMC joint, the others at the MCP.
func (f Finger) Joints() [4]int {
	return fingerJoints[f]
}

// Base returns the landmark index the finger's total length is measured from.
func (f Finger) Base() int {
	return fingerJoints[f][0]
}

// Tip returns the landmark index of the fingertip.
func (f Finger) Tip() int {
	return fingerJoints[f][3]
}
