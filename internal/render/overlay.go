// Package render draws the measurement overlay onto camera frames: the
// calibration box, the hand skeleton, the estimated forearm and a text panel.
package render

import (
	"image"
	"image/color"

	"github.com/golang/geo/r3"
	"gocv.io/x/gocv"

	"github.com/ayusman/handruler/internal/detector"
	"github.com/ayusman/handruler/internal/geometry"
	"github.com/ayusman/handruler/internal/measure"
	"github.com/ayusman/handruler/internal/session"
)

var (
	colorBox     = color.RGBA{G: 255}
	colorText    = color.RGBA{R: 255, G: 255, B: 255}
	colorPrompt  = color.RGBA{G: 255}
	colorPanel   = color.RGBA{R: 40, G: 40, B: 40}
	colorForearm = color.RGBA{R: 255, G: 165}
	colorJoint   = color.RGBA{R: 250, G: 44, B: 250}

	fingerColors = [detector.NumFingers]color.RGBA{
		detector.Thumb:  {R: 255, G: 120},
		detector.Index:  {G: 255},
		detector.Middle: {R: 255},
		detector.Ring:   {R: 255, B: 255},
		detector.Pinky:  {G: 255, B: 255},
	}
)

const (
	fontScale   = 0.5
	lineHeight  = 20
	panelWidth  = 300
	panelMargin = 10
)

// palmEdges joins the finger bases into the palm outline.
var palmEdges = [][2]int{
	{detector.Wrist, detector.ThumbCMC},
	{detector.Wrist, detector.IndexMCP},
	{detector.IndexMCP, detector.MiddleMCP},
	{detector.MiddleMCP, detector.RingMCP},
	{detector.RingMCP, detector.PinkyMCP},
	{detector.Wrist, detector.PinkyMCP},
}

// Scene is everything drawn onto one frame.
type Scene struct {
	// RefBox is drawn while the session is uncalibrated.
	RefBox   image.Rectangle
	Status   session.Status
	Hand     *detector.HandLandmarks
	Snapshot *measure.Snapshot
}

// Draw renders scene onto img in place.
func Draw(img *gocv.Mat, scene Scene) {
	if img == nil || img.Empty() {
		return
	}
	size := image.Pt(img.Cols(), img.Rows())

	if scene.Status.State == session.Uncalibrated && !scene.RefBox.Empty() {
		gocv.Rectangle(img, scene.RefBox, colorBox, 2)
	}

	if scene.Hand != nil {
		DrawHand(img, scene.Hand.Pixels(size))
	}
	if scene.Snapshot != nil {
		DrawForearm(img, scene.Snapshot.Forearm)
	}

	y := 30
	for _, line := range Prompts(scene.Status) {
		gocv.PutText(img, line, image.Pt(panelMargin, y), gocv.FontHersheySimplex, 0.7, colorPrompt, 2)
		y += 30
	}

	if lines := PanelLines(scene.Snapshot); len(lines) > 0 {
		DrawPanel(img, image.Pt(0, y), lines)
	}
}

// DrawHand draws the landmark skeleton, each finger in its own color.
func DrawHand(img *gocv.Mat, points [detector.NumLandmarks]r3.Vector) {
	for _, e := range palmEdges {
		gocv.Line(img, geometry.Pixel(points[e[0]]), geometry.Pixel(points[e[1]]), colorJoint, 2)
	}
	for _, f := range detector.Fingers {
		joints := f.Joints()
		for i := 0; i < len(joints)-1; i++ {
			gocv.Line(img, geometry.Pixel(points[joints[i]]), geometry.Pixel(points[joints[i+1]]), fingerColors[f], 2)
		}
	}
	for _, p := range points {
		gocv.Circle(img, geometry.Pixel(p), 3, colorJoint, -1)
	}
}

// DrawForearm draws the estimated forearm from the wrist to its far end.
// Nothing is drawn until the length is stable.
func DrawForearm(img *gocv.Mat, f measure.ForearmDimensions) {
	if !f.Length.Stable {
		return
	}
	wrist, end := geometry.Pixel(f.Wrist), geometry.Pixel(f.End)
	gocv.Line(img, wrist, end, colorForearm, 2)
	gocv.Circle(img, wrist, 4, colorForearm, -1)
	gocv.Circle(img, end, 4, colorForearm, -1)
}

// DrawPanel draws lines of text on a dark panel whose top-left corner is at.
func DrawPanel(img *gocv.Mat, at image.Point, lines []string) {
	height := len(lines)*lineHeight + panelMargin
	gocv.Rectangle(img, image.Rect(at.X, at.Y, at.X+panelWidth, at.Y+height), colorPanel, -1)

	y := at.Y + lineHeight
	for _, line := range lines {
		gocv.PutText(img, line, image.Pt(at.X+panelMargin, y), gocv.FontHersheySimplex, fontScale, colorText, 1)
		y += lineHeight
	}
}
