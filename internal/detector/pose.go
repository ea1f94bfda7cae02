package detector

// Predicate decides whether a single detected hand is in the closed pose.
type Predicate func(hand *HandLandmarks) bool

// ThumbHidden reports whether the thumb is tucked behind the fingers: the
// thumb tip lies left of and below the index finger base in image
// coordinates (y grows downward).
func ThumbHidden(hand *HandLandmarks) bool {
	if hand == nil {
		return false
	}
	tip := hand.Points[ThumbTip]
	base := hand.Points[IndexMCP]
	return tip.X < base.X && tip.Y > base.Y
}

// AnyClosed reduces a frame's detections to one boolean: true if any hand
// satisfies pred. A nil predicate falls back to ThumbHidden.
func AnyClosed(hands []HandLandmarks, pred Predicate) bool {
	if pred == nil {
		pred = ThumbHidden
	}
	for i := range hands {
		if pred(&hands[i]) {
			return true
		}
	}
	return false
}
