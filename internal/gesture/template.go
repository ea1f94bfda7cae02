package gesture

import (
	"fmt"

	"github.com/ayusman/sosfinder/internal/detector"
)

// DefaultTolerance is the summed landmark distance accepted by the fist template.
const DefaultTolerance = 0.6

// NewTemplate builds a normalized template from a reference pose.
func NewTemplate(id, name string, pose detector.HandLandmarks, tolerance float64) *Template {
	normalized := pose.Normalize()
	return &Template{
		ID:        id,
		Name:      name,
		Landmarks: normalized.Points[:],
		Tolerance: tolerance,
	}
}

// TemplatePredicate returns a closed-pose predicate that accepts a hand when it
// matches any of the given reference poses within tolerance.
func TemplatePredicate(tolerance float64, poses ...detector.HandLandmarks) detector.Predicate {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}

	m := NewStaticMatcher()
	for i, pose := range poses {
		m.AddTemplate(NewTemplate(fmt.Sprintf("closed-%d", i), "closed", pose, tolerance))
	}

	return func(hand *detector.HandLandmarks) bool {
		return len(m.Match(hand)) > 0
	}
}

// FistTemplatePredicate matches the built-in closed fist reference pose.
func FistTemplatePredicate(tolerance float64) detector.Predicate {
	return TemplatePredicate(tolerance, detector.ClosedFistLandmarks())
}
