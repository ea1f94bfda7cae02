package gesture

import (
	"testing"

	"github.com/ayusman/sosfinder/internal/detector"
)

func TestFistTemplatePredicate(t *testing.T) {
	closed := FistTemplatePredicate(DefaultTolerance)

	tests := []struct {
		name string
		hand detector.HandLandmarks
		want bool
	}{
		{name: "closed fist", hand: detector.ClosedFistLandmarks(), want: true},
		{name: "open palm", hand: detector.OpenPalmLandmarks(), want: false},
		{name: "thumbs up", hand: detector.ThumbsUpLandmarks(), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := closed(&tt.hand); got != tt.want {
				t.Errorf("predicate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFistTemplatePredicate_TranslatedFist(t *testing.T) {
	closed := FistTemplatePredicate(DefaultTolerance)

	// Same pose elsewhere in the frame normalizes to the same landmarks.
	hand := detector.ClosedFistLandmarks()
	for i := range hand.Points {
		hand.Points[i].X += 0.2
		hand.Points[i].Y -= 0.1
	}

	if !closed(&hand) {
		t.Error("translated fist should still match")
	}
}

func TestTemplatePredicate_NoPoses(t *testing.T) {
	closed := TemplatePredicate(DefaultTolerance)
	hand := detector.ClosedFistLandmarks()

	if closed(&hand) {
		t.Error("predicate without templates should never match")
	}
}

func TestTemplatePredicate_NonPositiveToleranceUsesDefault(t *testing.T) {
	closed := TemplatePredicate(0, detector.ClosedFistLandmarks())
	hand := detector.ClosedFistLandmarks()

	if !closed(&hand) {
		t.Error("identical pose should match with the default tolerance")
	}
}

func TestNewTemplate(t *testing.T) {
	tmpl := NewTemplate("fist", "Fist", detector.ClosedFistLandmarks(), 0.4)

	if len(tmpl.Landmarks) != detector.NumLandmarks {
		t.Fatalf("len(Landmarks) = %d, want %d", len(tmpl.Landmarks), detector.NumLandmarks)
	}
	wrist := tmpl.Landmarks[detector.Wrist]
	if wrist.X != 0 || wrist.Y != 0 || wrist.Z != 0 {
		t.Errorf("wrist = %+v, want origin after normalization", wrist)
	}
	if tmpl.Tolerance != 0.4 {
		t.Errorf("Tolerance = %f, want 0.4", tmpl.Tolerance)
	}
}
