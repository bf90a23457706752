package analytics

import "math"

// Category buckets a likes count into low, medium, high or viral.
func Category(likes int) string {
	switch {
	case likes < 10:
		return "low"
	case likes < 50:
		return "medium"
	case likes < 200:
		return "high"
	default:
		return "viral"
	}
}

// Score weights comments twice and shares three times as much as likes.
func Score(likes, comments, shares int) int {
	return int(math.Round(float64(likes+2*comments+3*shares) / 10))
}
