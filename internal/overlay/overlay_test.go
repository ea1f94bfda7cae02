package overlay

import (
	"bytes"
	"image"
	"testing"

	"gocv.io/x/gocv"

	"github.com/ayusman/sosfinder/internal/debounce"
	"github.com/ayusman/sosfinder/internal/detector"
)

func TestCountLabel(t *testing.T) {
	if got := CountLabel(3); got != "Count: 3" {
		t.Errorf("CountLabel(3) = %q", got)
	}
}

func TestPixelPoint(t *testing.T) {
	got := PixelPoint(detector.Point3D{X: 0.5, Y: 0.25}, 640, 480)
	if got != image.Pt(320, 120) {
		t.Errorf("PixelPoint() = %v, want (320,120)", got)
	}
}

func TestDraw_MarksFrame(t *testing.T) {
	frame := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	defer frame.Close()

	hands := []detector.HandLandmarks{detector.ClosedFistLandmarks()}
	Draw(&frame, hands, debounce.Snapshot{Count: 2, Fired: true})

	flat := frame.Reshape(1, 0)
	defer flat.Close()
	if gocv.CountNonZero(flat) == 0 {
		t.Error("Draw() left the frame blank")
	}
}

func TestDraw_EmptyFrame(t *testing.T) {
	frame := gocv.NewMat()
	defer frame.Close()

	// Must not panic.
	Draw(&frame, nil, debounce.Snapshot{})
	Draw(nil, nil, debounce.Snapshot{})
}

func TestEncodeJPEG(t *testing.T) {
	frame := gocv.NewMatWithSize(120, 160, gocv.MatTypeCV8UC3)
	defer frame.Close()

	data, err := EncodeJPEG(&frame)
	if err != nil {
		t.Fatalf("EncodeJPEG() error = %v", err)
	}
	if !bytes.HasPrefix(data, []byte{0xFF, 0xD8}) {
		t.Error("EncodeJPEG() output is not a JPEG")
	}
}
