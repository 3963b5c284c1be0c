package capture

import (
	"image"

	"gocv.io/x/gocv"
)

// Transform reshapes raw camera frames before detection: crop each edge by
// CropPercent, resize by ScalePercent, then rotate clockwise by Rotate
// degrees (0, 90, 180 or 270).
type Transform struct {
	CropPercent  int
	ScalePercent int
	Rotate       int
}

// Identity reports whether the transform leaves frames untouched.
func (t Transform) Identity() bool {
	return t.CropPercent <= 0 && (t.ScalePercent <= 0 || t.ScalePercent == 100) && t.Rotate%360 == 0
}

// CropRect returns the region kept from a frame of the given size.
func (t Transform) CropRect(size image.Point) image.Rectangle {
	if t.CropPercent <= 0 || t.CropPercent >= 50 {
		return image.Rect(0, 0, size.X, size.Y)
	}
	dx := size.X * t.CropPercent / 100
	dy := size.Y * t.CropPercent / 100
	return image.Rect(dx, dy, size.X-dx, size.Y-dy)
}

// OutputSize returns the size of a transformed frame.
func (t Transform) OutputSize(size image.Point) image.Point {
	out := t.CropRect(size).Size()
	if t.ScalePercent > 0 && t.ScalePercent != 100 {
		out = image.Pt(out.X*t.ScalePercent/100, out.Y*t.ScalePercent/100)
	}
	if t.Rotate%180 != 0 {
		out = image.Pt(out.Y, out.X)
	}
	return out
}

// Apply returns a new transformed Mat. The caller closes both src and the
// result.
func (t Transform) Apply(src *gocv.Mat) *gocv.Mat {
	size := image.Pt(src.Cols(), src.Rows())

	region := src.Region(t.CropRect(size))
	cur := region.Clone()
	region.Close()

	if t.ScalePercent > 0 && t.ScalePercent != 100 {
		crop := t.CropRect(size).Size()
		scaled := gocv.NewMat()
		gocv.Resize(cur, &scaled, image.Pt(crop.X*t.ScalePercent/100, crop.Y*t.ScalePercent/100), 0, 0, gocv.InterpolationArea)
		cur.Close()
		cur = scaled
	}

	if flag, ok := rotateFlag(t.Rotate); ok {
		rotated := gocv.NewMat()
		gocv.Rotate(cur, &rotated, flag)
		cur.Close()
		cur = rotated
	}

	return &cur
}

func rotateFlag(deg int) (gocv.RotateFlag, bool) {
	switch ((deg % 360) + 360) % 360 {
	case 90:
		return gocv.Rotate90Clockwise, true
	case 180:
		return gocv.Rotate180Clockwise, true
	case 270:
		return gocv.Rotate90CounterClockwise, true
	default:
		return 0, false
	}
}

// Transformed wraps a Camera so every frame passes through t.
type Transformed struct {
	Camera
	t Transform
}

// WithTransform returns cam unchanged when t is the identity, otherwise a
// Camera applying t to each frame.
func WithTransform(cam Camera, t Transform) Camera {
	if t.Identity() {
		return cam
	}
	return &Transformed{Camera: cam, t: t}
}

// ReadFrame reads and transforms one frame.
func (c *Transformed) ReadFrame() (*gocv.Mat, error) {
	raw, err := c.Camera.ReadFrame()
	if err != nil {
		return nil, err
	}
	defer raw.Close()
	return c.t.Apply(raw), nil
}
