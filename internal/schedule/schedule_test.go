package schedule

import (
	"testing"
	"time"
)

func TestCoarseTimeOfDayBoundaries(t *testing.T) {
	cases := map[int]string{
		0: "afternoon", 1: "night", 6: "night", 7: "morning", 12: "morning",
		13: "afternoon", 18: "afternoon", 19: "evening", 23: "evening",
	}
	for h, want := range cases {
		if got := CoarseTimeOfDay(h); got != want {
			t.Fatalf("hour %d: got %s want %s", h, got, want)
		}
	}
}

func TestSlotForHour(t *testing.T) {
	cases := map[int]string{0: "midnight", 5: "early_morning", 9: "morning", 14: "afternoon", 19: "evening", 22: "night"}
	for h, want := range cases {
		if got := SlotForHour(h); got != want {
			t.Fatalf("hour %d: got %s want %s", h, got, want)
		}
	}
	if DayName(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)) != "Monday" {
		t.Fatal("2024-01-01 is a Monday")
	}
}
