package watch

import (
	"fmt"
	"math"
)

// Summary is the derived view of a set of intervals against a duration.
type Summary struct {
	Merged                    []Interval `json:"mergedIntervals"`
	TotalUniqueWatchedSeconds float64    `json:"totalUniqueWatchedSeconds"`
	ProgressPercentage        float64    `json:"progressPercentage"`
}

// TotalWatched sums interval lengths without clamping. It expects a merged
// set; overlapping input is counted twice.
func TotalWatched(merged []Interval) float64 {
	total := 0.0
	for _, iv := range merged {
		total += iv.Len()
	}
	return total
}

// Percentage returns watched coverage as 0..100. An unknown duration
// (zero, negative or not finite) yields 0.
func Percentage(merged []Interval, duration float64) float64 {
	if duration <= 0 || math.IsNaN(duration) || math.IsInf(duration, 0) {
		return 0
	}
	pct := 100 * TotalWatched(merged) / duration
	return math.Min(math.Max(pct, 0), 100)
}

// Summarize merges intervals and derives totals in one step.
func Summarize(intervals []Interval, duration float64) Summary {
	merged := Merge(intervals)
	return Summary{
		Merged:                    merged,
		TotalUniqueWatchedSeconds: TotalWatched(merged),
		ProgressPercentage:        Percentage(merged, duration),
	}
}

// FormatTime renders seconds as m:ss, or h:mm:ss from one hour on.
func FormatTime(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		seconds = 0
	}
	s := int64(seconds)
	h, m, sec := s/3600, (s%3600)/60, s%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, sec)
	}
	return fmt.Sprintf("%d:%02d", m, sec)
}
