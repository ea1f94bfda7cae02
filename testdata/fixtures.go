// Package testdata provides synthetic camera frames for pipeline tests.
package testdata

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

// Default frame geometry, matching the camera defaults.
const (
	FrameWidth  = 640
	FrameHeight = 480
)

// NewFrame returns a BGR frame with a filled rectangle standing in for a
// hand, so encoded previews are not uniform.
func NewFrame(width, height int) *gocv.Mat {
	mat := gocv.NewMatWithSize(height, width, gocv.MatTypeCV8UC3)
	rect := image.Rect(width/3, height/3, 2*width/3, 2*height/3)
	gocv.Rectangle(&mat, rect, color.RGBA{R: 224, G: 172, B: 105}, -1)
	return &mat
}

// Sequence returns n default-sized frames. Release them with CloseAll.
func Sequence(n int) []*gocv.Mat {
	frames := make([]*gocv.Mat, n)
	for i := range frames {
		frames[i] = NewFrame(FrameWidth, FrameHeight)
	}
	return frames
}

// CloseAll releases frames created by this package.
func CloseAll(frames []*gocv.Mat) {
	for _, f := range frames {
		if f != nil {
			f.Close()
		}
	}
}
