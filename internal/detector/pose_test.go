package detector

import (
	"strings"
	"testing"
)

func TestThumbHidden(t *testing.T) {
	tests := []struct {
		name string
		hand HandLandmarks
		want bool
	}{
		{name: "closed fist", hand: ClosedFistLandmarks(), want: true},
		{name: "open palm", hand: OpenPalmLandmarks(), want: false},
		{name: "thumbs up", hand: ThumbsUpLandmarks(), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ThumbHidden(&tt.hand); got != tt.want {
				t.Errorf("ThumbHidden() = %v, want %v", got, tt.want)
			}
		})
	}

	t.Run("nil hand", func(t *testing.T) {
		if ThumbHidden(nil) {
			t.Error("ThumbHidden(nil) should be false")
		}
	})

	t.Run("thumb left but above index base", func(t *testing.T) {
		hand := ClosedFistLandmarks()
		hand.Points[ThumbTip].Y = hand.Points[IndexMCP].Y - 0.05
		if ThumbHidden(&hand) {
			t.Error("thumb above the index base should not count as hidden")
		}
	})
}

func TestAnyClosed(t *testing.T) {
	t.Run("no hands", func(t *testing.T) {
		if AnyClosed(nil, ThumbHidden) {
			t.Error("AnyClosed(nil) should be false")
		}
	})

	t.Run("one of two hands closed", func(t *testing.T) {
		hands := []HandLandmarks{OpenPalmLandmarks(), ClosedFistLandmarks()}
		if !AnyClosed(hands, ThumbHidden) {
			t.Error("expected true when any hand is closed")
		}
	})

	t.Run("nil predicate uses thumb hidden", func(t *testing.T) {
		hands := []HandLandmarks{ClosedFistLandmarks()}
		if !AnyClosed(hands, nil) {
			t.Error("expected default predicate to detect the closed fist")
		}
	})

	t.Run("custom predicate", func(t *testing.T) {
		hands := []HandLandmarks{OpenPalmLandmarks()}
		always := func(*HandLandmarks) bool { return true }
		if !AnyClosed(hands, always) {
			t.Error("custom predicate should be honoured")
		}
	})
}

func TestParseServiceResponse(t *testing.T) {
	points := make([]string, NumLandmarks)
	for i := range points {
		points[i] = `{"x":0.1,"y":0.2,"z":0.3}`
	}
	hand := `{"points":[` + strings.Join(points, ",") + `],"handedness":"Left","score":0.8}`

	t.Run("decodes hands", func(t *testing.T) {
		hands, err := parseServiceResponse([]byte(`{"hands":[`+hand+`]}`), 2)
		if err != nil {
			t.Fatalf("parseServiceResponse() error = %v", err)
		}
		if len(hands) != 1 {
			t.Fatalf("len(hands) = %d, want 1", len(hands))
		}
		if hands[0].Handedness != "Left" {
			t.Errorf("Handedness = %q, want Left", hands[0].Handedness)
		}
		if hands[0].Points[PinkyTip].Z != 0.3 {
			t.Errorf("PinkyTip.Z = %f, want 0.3", hands[0].Points[PinkyTip].Z)
		}
	})

	t.Run("caps at max hands", func(t *testing.T) {
		line := `{"hands":[` + hand + `,` + hand + `,` + hand + `]}`
		hands, err := parseServiceResponse([]byte(line), 2)
		if err != nil {
			t.Fatalf("parseServiceResponse() error = %v", err)
		}
		if len(hands) != 2 {
			t.Errorf("len(hands) = %d, want 2", len(hands))
		}
	})

	t.Run("service error", func(t *testing.T) {
		if _, err := parseServiceResponse([]byte(`{"error":"camera busy"}`), 2); err == nil {
			t.Error("expected error from service error field")
		}
	})

	t.Run("invalid json", func(t *testing.T) {
		if _, err := parseServiceResponse([]byte(`not json`), 2); err == nil {
			t.Error("expected parse error")
		}
	})
}

func TestNewMediaPipeDetector_MissingScript(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ScriptPath = "/nonexistent/" + serviceScript

	if _, err := NewMediaPipeDetector(cfg); err == nil {
		t.Error("expected error for missing service script")
	}
}
