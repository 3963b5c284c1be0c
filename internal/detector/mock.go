package detector

import (
	"image"
	"sync"

	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results.
type MockDetector struct {
	mu    sync.Mutex
	hands []HandLandmarks
	err   error
	calls int
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetHands sets the hands that will be returned by Detect.
func (m *MockDetector) SetHands(hands []HandLandmarks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hands = hands
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls reports how many times Detect has been invoked.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Detect returns the pre-configured hands or error.
func (m *MockDetector) Detect(frame *gocv.Mat) ([]HandLandmarks, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.hands, nil
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}

// referenceHand is a flat right hand, palm facing the camera, in pixel units
// for a palm width (thumb CMC to pinky MCP) of exactly 150 px.
var referenceHand = [NumLandmarks][2]float64{
	Wrist: {500, 800},

	ThumbCMC: {575, 740},
	ThumbMCP: {610, 700},
	ThumbIP:  {635, 665},
	ThumbTip: {655, 635},

	IndexMCP: {550, 645},
	IndexPIP: {550, 585},
	IndexDIP: {550, 545},
	IndexTip: {550, 510},

	MiddleMCP: {500, 640},
	MiddlePIP: {500, 570},
	MiddleDIP: {500, 525},
	MiddleTip: {500, 487},

	RingMCP: {460, 650},
	RingPIP: {460, 590},
	RingDIP: {460, 548},
	RingTip: {460, 512},

	PinkyMCP: {425, 740},
	PinkyPIP: {425, 690},
	PinkyDIP: {425, 660},
	PinkyTip: {425, 635},
}

// referencePalmWidth is the ThumbCMC-PinkyMCP distance of referenceHand.
const referencePalmWidth = 150.0

// FlatHandLandmarks returns a synthetic open right hand for a frame of the
// given size whose palm width (thumb CMC to pinky MCP) measures palmWidthPx
// pixels. The hand is scaled about the wrist, which sits at (500, 800) px.
func FlatHandLandmarks(size image.Point, palmWidthPx float64) HandLandmarks {
	landmarks := HandLandmarks{
		Handedness: "Right",
		Score:      0.97,
	}
	if size.X <= 0 || size.Y <= 0 {
		return landmarks
	}

	scale := palmWidthPx / referencePalmWidth
	wrist := referenceHand[Wrist]
	for i, p := range referenceHand {
		x := wrist[0] + (p[0]-wrist[0])*scale
		y := wrist[1] + (p[1]-wrist[1])*scale
		landmarks.Points[i] = Point3D{
			X: x / float64(size.X),
			Y: y / float64(size.Y),
		}
	}
	return landmarks
}

// OpenPalmLandmarks returns a preset HandLandmarks representing an open palm.
// All fingers are extended outward.
func OpenPalmLandmarks() HandLandmarks {
	landmarks := HandLandmarks{
		Handedness: "Right",
		Score:      0.95,
	}

	landmarks.Points[Wrist] = Point3D{X: 0.5, Y: 0.8, Z: 0.0}

	landmarks.Points[ThumbCMC] = Point3D{X: 0.55, Y: 0.75, Z: 0.02}
	landmarks.Points[ThumbMCP] = Point3D{X: 0.62, Y: 0.70, Z: 0.03}
	landmarks.Points[ThumbIP] = Point3D{X: 0.68, Y: 0.65, Z: 0.03}
	landmarks.Points[ThumbTip] = Point3D{X: 0.73, Y: 0.60, Z: 0.03}

	landmarks.Points[IndexMCP] = Point3D{X: 0.55, Y: 0.68, Z: 0.0}
	landmarks.Points[IndexPIP] = Point3D{X: 0.57, Y: 0.55, Z: 0.0}
	landmarks.Points[IndexDIP] = Point3D{X: 0.58, Y: 0.45, Z: 0.0}
	landmarks.Points[IndexTip] = Point3D{X: 0.58, Y: 0.35, Z: 0.0}

	landmarks.Points[MiddleMCP] = Point3D{X: 0.50, Y: 0.66, Z: 0.0}
	landmarks.Points[MiddlePIP] = Point3D{X: 0.50, Y: 0.52, Z: 0.0}
	landmarks.Points[MiddleDIP] = Point3D{X: 0.50, Y: 0.40, Z: 0.0}
	landmarks.Points[MiddleTip] = Point3D{X: 0.50, Y: 0.28, Z: 0.0}

	landmarks.Points[RingMCP] = Point3D{X: 0.45, Y: 0.68, Z: 0.0}
	landmarks.Points[RingPIP] = Point3D{X: 0.43, Y: 0.55, Z: 0.0}
	landmarks.Points[RingDIP] = Point3D{X: 0.42, Y: 0.45, Z: 0.0}
	landmarks.Points[RingTip] = Point3D{X: 0.42, Y: 0.35, Z: 0.0}

	landmarks.Points[PinkyMCP] = Point3D{X: 0.40, Y: 0.70, Z: 0.0}
	landmarks.Points[PinkyPIP] = Point3D{X: 0.37, Y: 0.60, Z: 0.0}
	landmarks.Points[PinkyDIP] = Point3D{X: 0.35, Y: 0.50, Z: 0.0}
	landmarks.Points[PinkyTip] = Point3D{X: 0.34, Y: 0.42, Z: 0.0}

	return landmarks
}
