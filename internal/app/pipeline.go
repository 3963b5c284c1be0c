package app

import (
	"image"
	"log"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/handruler/internal/capture"
	"github.com/ayusman/handruler/internal/detector"
	"github.com/ayusman/handruler/internal/render"
)

// runPipeline is the frame loop. Each tick it:
// 1. Reads a frame; on failure the tick is logged and skipped
// 2. Detects hands
// 3. Feeds them to the session (only the first hand is measured)
// 4. Draws the overlay and keeps a JPEG copy for the stream
// 5. Shows the frame and handles a key press, unless headless
func (a *App) runPipeline(stopCh chan struct{}) {
	defer a.wg.Done()

	var window *gocv.Window
	if !a.config.Headless {
		window = gocv.NewWindow(WindowName)
		defer window.Close()
	}

	ticker := time.NewTicker(time.Second / time.Duration(a.config.FPS))
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			frame, err := a.camera.ReadFrame()
			if err != nil {
				log.Printf("Error reading frame: %v", err)
				continue
			}

			a.process(frame)

			if window != nil {
				window.IMShow(*frame)
				if key := window.WaitKey(1); key >= 0 {
					a.HandleKey(key & 0xFF)
				}
			}
			frame.Close()
		}
	}
}

// Step reads and processes a single frame outside the loop.
func (a *App) Step() error {
	frame, err := a.camera.ReadFrame()
	if err != nil {
		return err
	}
	defer frame.Close()

	a.process(frame)
	return nil
}

// process runs detection, measurement and drawing on frame in place.
func (a *App) process(frame *gocv.Mat) {
	size := image.Pt(frame.Cols(), frame.Rows())
	box := capture.ReferenceBox(size, a.config.RefBoxSize.X, a.config.RefBoxSize.Y)

	hands, err := a.detector.Detect(frame)
	if err != nil {
		log.Printf("Error detecting hands: %v", err)
		hands = nil
	}

	snap, status := a.session.ObserveStatus(hands, size)

	scene := render.Scene{
		RefBox:   box,
		Status:   status,
		Snapshot: snap,
	}
	if len(hands) > 0 {
		scene.Hand = firstHand(hands)
	}
	render.Draw(frame, scene)

	a.setFrame(box, encodeJPEG(frame))

	if a.config.Publisher != nil {
		a.config.Publisher.Publish(Update{
			Status:    status,
			Snapshot:  snap,
			Timestamp: nowMillis(),
		})
	}
}

func firstHand(hands []detector.HandLandmarks) *detector.HandLandmarks {
	h := hands[0]
	return &h
}
