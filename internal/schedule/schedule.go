package schedule

import (
	"time"
)

// CoarseTimeOfDay buckets an hour the way the auxiliary corpus is cut:
// (0,6] night, (6,12] morning, (12,18] afternoon, (18,24] evening.
// Hour 0 falls outside every bucket and takes the afternoon default.
func CoarseTimeOfDay(hour int) string {
	switch {
	case hour > 0 && hour <= 6:
		return "night"
	case hour > 6 && hour <= 12:
		return "morning"
	case hour > 12 && hour <= 18:
		return "afternoon"
	case hour > 18 && hour <= 24:
		return "evening"
	}
	return DefaultTimeOfDay
}

const (
	DefaultTimeOfDay = "afternoon"
	DefaultDay       = "Monday"
)

// SlotForHour maps an hour onto the six posting slots a post record uses.
func SlotForHour(hour int) string {
	switch {
	case hour < 4:
		return "midnight"
	case hour < 7:
		return "early_morning"
	case hour < 12:
		return "morning"
	case hour < 17:
		return "afternoon"
	case hour < 21:
		return "evening"
	default:
		return "night"
	}
}

// DayName returns the English weekday name of t.
func DayName(t time.Time) string { return t.Weekday().String() }
