// Package watch holds the interval arithmetic shared by the player-side
// tracker and the progress service, so both sides merge identically.
package watch

import (
	"math"
	"sort"
)

// Interval is one contiguous span of media time, in seconds.
type Interval struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Len returns End-Start, or 0 for degenerate intervals.
func (iv Interval) Len() float64 {
	if !iv.Valid() {
		return 0
	}
	return iv.End - iv.Start
}

// Valid reports whether iv is a finite, non-negative, positive-length span.
func (iv Interval) Valid() bool {
	if math.IsNaN(iv.Start) || math.IsNaN(iv.End) || math.IsInf(iv.Start, 0) || math.IsInf(iv.End, 0) {
		return false
	}
	return iv.Start >= 0 && iv.End > iv.Start
}

// Merge returns the minimal sorted set of intervals covering the same time
// as the input. Overlapping and touching intervals are fused. Invalid
// intervals are dropped. The input slice is not modified.
func Merge(intervals []Interval) []Interval {
	sorted := make([]Interval, 0, len(intervals))
	for _, iv := range intervals {
		if iv.Valid() {
			sorted = append(sorted, iv)
		}
	}
	if len(sorted) == 0 {
		return []Interval{}
	}

	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Start != sorted[j].Start {
			return sorted[i].Start < sorted[j].Start
		}
		return sorted[i].End < sorted[j].End
	})

	merged := make([]Interval, 0, len(sorted))
	acc := sorted[0]
	for _, next := range sorted[1:] {
		if next.Start <= acc.End {
			acc.End = math.Max(acc.End, next.End)
			continue
		}
		merged = append(merged, acc)
		acc = next
	}
	return append(merged, acc)
}

// Union merges any number of interval sets into one merged set.
func Union(sets ...[]Interval) []Interval {
	n := 0
	for _, s := range sets {
		n += len(s)
	}
	all := make([]Interval, 0, n)
	for _, s := range sets {
		all = append(all, s...)
	}
	return Merge(all)
}

// IsMerged reports whether set already satisfies Merge's output invariant.
func IsMerged(set []Interval) bool {
	for i, iv := range set {
		if !iv.Valid() {
			return false
		}
		if i > 0 && iv.Start <= set[i-1].End {
			return false
		}
	}
	return true
}

// ContiguousPrefix returns the end of the watched run starting at zero.
// A first interval starting within tolerance of zero counts as starting
// at zero. Returns 0 when nothing near the start has been watched.
func ContiguousPrefix(merged []Interval, tolerance float64) float64 {
	if len(merged) == 0 || merged[0].Start > tolerance {
		return 0
	}
	end := merged[0].End
	// Gaps smaller than tolerance are bridged the same way the sequential
	// ceiling would allow at playback time.
	for _, iv := range merged[1:] {
		if iv.Start-end > tolerance {
			break
		}
		end = iv.End
	}
	return end
}
