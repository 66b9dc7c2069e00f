package domain

// ClampScore bounds a raw score to the 0-100 range.
func ClampScore(value int) int {
	if value < 0 {
		return 0
	}
	if value > 100 {
		return 100
	}
	return value
}

// GradeForScore maps a clamped score to its letter grade band.
func GradeForScore(value int) string {
	switch {
	case value >= 85:
		return "A"
	case value >= 70:
		return "B"
	case value >= 55:
		return "C"
	case value >= 40:
		return "D"
	default:
		return "E"
	}
}
