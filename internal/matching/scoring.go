package matching

import "math"

// ScoreScale maps a descriptor distance onto a match percentage.
//
// Distances at or below Near score Ceil, distances at or above Far score
// Floor, and everything between is linear. The mapping never looks at rank.
type ScoreScale struct {
	Near  float64
	Far   float64
	Ceil  int
	Floor int
}

// DefaultScoreScale is calibrated for 128-d Facenet style descriptors where
// near-identical faces sit below 0.3 and unrelated faces above 1.2.
func DefaultScoreScale() ScoreScale {
	return ScoreScale{
		Near:  0.3,
		Far:   1.2,
		Ceil:  98,
		Floor: 10,
	}
}

// Percentage converts a distance into an integer in [Floor, Ceil].
// It is non-increasing in distance.
func (s ScoreScale) Percentage(distance float64) int {
	if math.IsNaN(distance) {
		return s.Floor
	}
	if s.Far <= s.Near {
		if distance <= s.Near {
			return s.Ceil
		}
		return s.Floor
	}

	slope := float64(s.Ceil-s.Floor) / (s.Far - s.Near)
	raw := math.Round(float64(s.Ceil) - (distance-s.Near)*slope)

	switch {
	case raw > float64(s.Ceil):
		return s.Ceil
	case raw < float64(s.Floor):
		return s.Floor
	}
	return int(raw)
}

// Valid reports whether the scale yields percentages in [0,100]
func (s ScoreScale) Valid() bool {
	return s.Floor >= 0 && s.Ceil <= 100 && s.Floor <= s.Ceil && s.Near >= 0
}
