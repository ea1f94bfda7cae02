// Package overlay annotates preview frames with detected hands and the
// debouncer state.
package overlay

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/ayusman/sosfinder/internal/debounce"
	"github.com/ayusman/sosfinder/internal/detector"
)

// Text anchors in pixels.
var (
	CountOrigin = image.Pt(50, 100)
	SOSOrigin   = image.Pt(50, 50)
)

// Colors. gocv takes RGBA and converts to BGR.
var (
	CountColor    = color.RGBA{R: 0, G: 0, B: 255, A: 0}
	SOSColor      = color.RGBA{R: 255, G: 0, B: 0, A: 0}
	LandmarkColor = color.RGBA{R: 255, G: 0, B: 0, A: 0}
	BoneColor     = color.RGBA{R: 255, G: 255, B: 255, A: 0}
)

const (
	fontScale     = 1.0
	textThickness = 2
	pointRadius   = 4
	boneThickness = 2
)

// CountLabel is the counter text drawn on every frame.
func CountLabel(count int) string {
	return fmt.Sprintf("Count: %d", count)
}

// PixelPoint maps a normalized landmark onto a frame of the given size.
func PixelPoint(p detector.Point3D, width, height int) image.Point {
	return image.Pt(int(p.X*float64(width)), int(p.Y*float64(height)))
}

// Draw renders hands, the count and, while the episode has fired, the SOS
// banner onto frame in place.
func Draw(frame *gocv.Mat, hands []detector.HandLandmarks, snap debounce.Snapshot) {
	if frame == nil || frame.Empty() {
		return
	}

	width, height := frame.Cols(), frame.Rows()
	for i := range hands {
		drawHand(frame, &hands[i], width, height)
	}

	gocv.PutTextWithParams(frame, CountLabel(snap.Count), CountOrigin,
		gocv.FontHersheySimplex, fontScale, CountColor, textThickness, gocv.LineAA, false)

	if snap.Fired {
		gocv.PutTextWithParams(frame, "SOS", SOSOrigin,
			gocv.FontHersheySimplex, fontScale, SOSColor, textThickness, gocv.LineAA, false)
	}
}

func drawHand(frame *gocv.Mat, hand *detector.HandLandmarks, width, height int) {
	for _, c := range detector.HandConnections {
		a := PixelPoint(hand.Points[c[0]], width, height)
		b := PixelPoint(hand.Points[c[1]], width, height)
		gocv.Line(frame, a, b, BoneColor, boneThickness)
	}
	for _, p := range hand.Points {
		gocv.Circle(frame, PixelPoint(p, width, height), pointRadius, LandmarkColor, -1)
	}
}

// EncodeJPEG encodes frame for the preview stream.
func EncodeJPEG(frame *gocv.Mat) ([]byte, error) {
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame)
	if err != nil {
		return nil, err
	}
	defer buf.Close()

	// GetBytes aliases native memory released by Close.
	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out, nil
}
