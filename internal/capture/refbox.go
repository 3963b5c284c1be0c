package capture

import "image"

// ReferenceBox returns the on-screen rectangle the calibration card is lined
// up with: width x height pixels centred in a frame of the given size.
// Its width is the reference pixel length used for calibration.
func ReferenceBox(frame image.Point, width, height int) image.Rectangle {
	x := (frame.X - width) / 2
	y := (frame.Y - height) / 2
	return image.Rect(x, y, x+width, y+height)
}
