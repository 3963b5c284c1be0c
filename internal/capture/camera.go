// Package capture provides camera capture functionality using GoCV (OpenCV).
package capture

import (
	"errors"
	"fmt"
	"sync"

	"gocv.io/x/gocv"
)

// Default camera settings
const (
	DefaultFPS    = 15
	DefaultWidth  = 640
	DefaultHeight = 480
)

// ErrCameraNotOpen is returned when trying to read from a camera that is not open.
var ErrCameraNotOpen = errors.New("camera is not open")

// Camera defines the interface for camera capture implementations.
type Camera interface {
	Open() error
	Close() error
	ReadFrame() (*gocv.Mat, error)
	SetFPS(fps int)
	FPS() int
	IsOpen() bool
}

// Source selects a capture device. A non-empty URL (for example an IP
// webcam stream) takes precedence over Device.
type Source struct {
	Device int
	URL    string
	Width  int
	Height int
	FPS    int
}

func (s Source) String() string {
	if s.URL != "" {
		return s.URL
	}
	return fmt.Sprintf("device %d", s.Device)
}

// cameraImpl manages video capture from a camera device using GoCV.
type cameraImpl struct {
	source  Source
	capture *gocv.VideoCapture
	mu      sync.Mutex
	running bool
	fps     int
}

// NewCamera creates a Camera for source. Zero size or rate fields use the
// defaults.
func NewCamera(source Source) Camera {
	if source.Width <= 0 {
		source.Width = DefaultWidth
	}
	if source.Height <= 0 {
		source.Height = DefaultHeight
	}
	if source.FPS <= 0 {
		source.FPS = DefaultFPS
	}
	return &cameraImpl{
		source: source,
		fps:    source.FPS,
	}
}

// Open opens the camera for capturing frames.
func (c *cameraImpl) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return nil
	}
	return c.openLocked()
}

func (c *cameraImpl) openLocked() error {
	var device interface{} = c.source.Device
	if c.source.URL != "" {
		device = c.source.URL
	}

	capture, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return fmt.Errorf("open %s: %w", c.source, err)
	}

	capture.Set(gocv.VideoCaptureFrameWidth, float64(c.source.Width))
	capture.Set(gocv.VideoCaptureFrameHeight, float64(c.source.Height))
	capture.Set(gocv.VideoCaptureFPS, float64(c.fps))

	c.capture = capture
	c.running = true

	return nil
}

// Close closes the camera and releases resources.
func (c *cameraImpl) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.capture == nil {
		c.running = false
		return nil
	}

	err := c.capture.Close()
	c.capture = nil
	c.running = false

	return err
}

// ReadFrame reads a single frame from the camera.
// The caller is responsible for closing the returned Mat. When a network
// stream stops delivering frames the stream is reopened and the failed read
// is reported, so the caller can simply skip the tick.
func (c *cameraImpl) ReadFrame() (*gocv.Mat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return nil, ErrCameraNotOpen
	}
	if c.capture == nil {
		if err := c.openLocked(); err != nil {
			return nil, err
		}
	}

	mat := gocv.NewMat()
	if ok := c.capture.Read(&mat); !ok {
		mat.Close()
		if c.source.URL != "" {
			// Dropped streams are reopened on the next read.
			c.capture.Close()
			c.capture = nil
		}
		return nil, errors.New("failed to read frame from camera")
	}

	if mat.Empty() {
		mat.Close()
		return nil, errors.New("captured frame is empty")
	}

	return &mat, nil
}

// SetFPS sets the frames per second for capture.
// Values less than or equal to 0 are ignored.
func (c *cameraImpl) SetFPS(fps int) {
	if fps <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.fps = fps

	if c.capture != nil {
		c.capture.Set(gocv.VideoCaptureFPS, float64(fps))
	}
}

// FPS returns the current frames per second setting.
func (c *cameraImpl) FPS() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.fps
}

// IsOpen returns true if the camera is currently open and running.
func (c *cameraImpl) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.running
}
