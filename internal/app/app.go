// Package app runs the handruler frame loop: capture a frame, detect the
// hand, feed the measurement session, draw the overlay and react to keys.
package app

import (
	"errors"
	"image"
	"log"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/handruler/internal/capture"
	"github.com/ayusman/handruler/internal/detector"
	"github.com/ayusman/handruler/internal/measure"
	"github.com/ayusman/handruler/internal/session"
)

// WindowName is the title of the preview window.
const WindowName = "handruler"

// Key bindings for the preview window.
const (
	KeyCalibrate = 'c'
	KeyMeasure   = 'm'
	KeySave      = 's'
	KeyQuit      = 'q'
)

// Publisher receives one Update per processed frame.
type Publisher interface {
	Publish(v interface{})
}

// Update is what the frame loop reports after each frame.
type Update struct {
	Status    session.Status    `json:"status"`
	Snapshot  *measure.Snapshot `json:"snapshot"`
	Timestamp int64             `json:"timestamp"`
}

// Config holds configuration options for the application.
type Config struct {
	// Camera is the frame source. It should already carry any preprocessing.
	Camera   capture.Camera
	Detector detector.Detector
	// DetectorConfig is used when Detector is nil.
	DetectorConfig detector.Config
	Session        *session.Session

	// RefBoxSize is the width and height of the calibration box in pixels.
	RefBoxSize image.Point
	FPS        int
	// Headless disables the preview window and keyboard input.
	Headless  bool
	Publisher Publisher
}

// App is the main application that ties capture, detection and measurement
// together.
type App struct {
	config   Config
	camera   capture.Camera
	detector detector.Detector
	session  *session.Session

	mu     sync.RWMutex
	refBox image.Rectangle
	jpeg   []byte
	stopCh chan struct{}
	doneCh chan struct{}
	wg     sync.WaitGroup

	quit sync.Once
}

// New creates a new App instance with the given configuration.
func New(config Config) *App {
	if config.FPS <= 0 {
		config.FPS = capture.DefaultFPS
	}
	if config.RefBoxSize == (image.Point{}) {
		config.RefBoxSize = image.Pt(150, 100)
	}

	a := &App{
		config:   config,
		camera:   config.Camera,
		detector: config.Detector,
		session:  config.Session,
		doneCh:   make(chan struct{}),
	}

	// Try MediaPipe first, fall back to mock detector
	if a.detector == nil {
		if mp, err := detector.NewMediaPipeDetector(config.DetectorConfig); err == nil {
			a.detector = mp
			log.Println("Using MediaPipe hand detection")
		} else {
			log.Printf("MediaPipe not available (%v), using mock detector", err)
			a.detector = detector.NewMockDetector()
		}
	}

	return a
}

// Start opens the camera and begins the frame loop.
func (a *App) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	// Don't start if already running
	if a.stopCh != nil {
		return nil
	}

	if err := a.camera.Open(); err != nil {
		return err
	}
	a.camera.SetFPS(a.config.FPS)

	a.stopCh = make(chan struct{})
	a.wg.Add(1)
	go a.runPipeline(a.stopCh)

	log.Println("Frame loop started")
	return nil
}

// Stop halts the frame loop and releases the camera and detector.
func (a *App) Stop() {
	a.mu.Lock()
	if a.stopCh != nil {
		close(a.stopCh)
		a.stopCh = nil
	}
	a.mu.Unlock()

	a.wg.Wait()

	if err := a.camera.Close(); err != nil {
		log.Printf("Error closing camera: %v", err)
	}
	if a.detector != nil {
		if err := a.detector.Close(); err != nil {
			log.Printf("Error closing detector: %v", err)
		}
	}

	log.Println("Frame loop stopped")
}

// Done is closed once the user asks to quit.
func (a *App) Done() <-chan struct{} {
	return a.doneCh
}

// Quit asks the application to exit. It is safe to call more than once.
func (a *App) Quit() {
	a.quit.Do(func() { close(a.doneCh) })
}

// Session returns the measurement session driven by the loop.
func (a *App) Session() *session.Session {
	return a.session
}

// RefBox returns the calibration box for the most recent frame.
func (a *App) RefBox() image.Rectangle {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.refBox
}

// LatestJPEG returns the most recent annotated frame as JPEG, or nil before
// the first frame.
func (a *App) LatestJPEG() []byte {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.jpeg
}

// Calibrate calibrates the session using the width of the on-screen box as
// the reference pixel length.
func (a *App) Calibrate() error {
	width := a.RefBox().Dx()
	if width <= 0 {
		width = a.config.RefBoxSize.X
	}
	if err := a.session.CalibrateReference(float64(width)); err != nil {
		return err
	}
	log.Printf("Calibrated: %d px = %.2f, ratio %.4f", width, a.session.ReferenceLength(), a.session.Status().Calibration.Ratio)
	return nil
}

// StartMeasuring starts measuring the next hand.
func (a *App) StartMeasuring() error {
	if err := a.session.StartMeasuring(); err != nil {
		return err
	}
	log.Printf("Measuring hand #%d", a.session.Status().HandIndex)
	return nil
}

// Save saves the current hand. It returns false when there was nothing
// stable to save.
func (a *App) Save() (bool, error) {
	rec, err := a.session.Save()
	if err != nil {
		return false, err
	}
	if rec == nil {
		log.Println("Nothing stable to save yet")
		return false, nil
	}
	log.Printf("Saved hand #%d (%d measurements)", rec.HandIndex, len(rec.Measurements))
	return true, nil
}

// HandleKey performs the action bound to key. Unbound keys are ignored.
func (a *App) HandleKey(key int) {
	var err error
	switch key {
	case KeyCalibrate:
		err = a.Calibrate()
	case KeyMeasure:
		err = a.StartMeasuring()
	case KeySave:
		_, err = a.Save()
	case KeyQuit:
		a.Quit()
	default:
		return
	}
	if err != nil && !errors.Is(err, session.ErrNotMeasuring) {
		log.Printf("Key %q: %v", rune(key), err)
	}
}

// setFrame records the per-frame outputs read by the HTTP side.
func (a *App) setFrame(box image.Rectangle, jpeg []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.refBox = box
	if jpeg != nil {
		a.jpeg = jpeg
	}
}

func encodeJPEG(img *gocv.Mat) []byte {
	buf, err := gocv.IMEncode(".jpg", *img)
	if err != nil {
		log.Printf("Error encoding frame: %v", err)
		return nil
	}
	defer buf.Close()

	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}
