package watch

import (
	"math"
	"time"
)

// Record is the persisted progress of one subject on one content item.
// JSON keys are part of the HTTP contract.
type Record struct {
	SubjectID                 string     `json:"subjectId"`
	ContentID                 string     `json:"contentId"`
	MergedIntervals           []Interval `json:"mergedIntervals"`
	TotalUniqueWatchedSeconds float64    `json:"totalUniqueWatchedSeconds"`
	LastKnownPosition         float64    `json:"lastKnownPosition"`
	ProgressPercentage        float64    `json:"progressPercentage"`
	ContentDuration           float64    `json:"contentDuration"`
	UpdatedAt                 time.Time  `json:"updatedAt,omitzero"`
}

// NewRecord returns the zeroed record served before anything is saved.
func NewRecord(subjectID, contentID string) Record {
	return Record{
		SubjectID:       subjectID,
		ContentID:       contentID,
		MergedIntervals: []Interval{},
	}
}

// Absorb merges incoming state into r: intervals are unioned, duration and
// last position only grow, and derived fields are recomputed. Applying the
// same input twice leaves r unchanged.
func (r *Record) Absorb(intervals []Interval, lastPosition, duration float64) {
	r.MergedIntervals = Union(r.MergedIntervals, intervals)
	if finitePositive(duration) {
		r.ContentDuration = math.Max(r.ContentDuration, duration)
	}
	if finitePositive(lastPosition) {
		r.LastKnownPosition = math.Max(r.LastKnownPosition, lastPosition)
	}
	if r.ContentDuration > 0 {
		r.LastKnownPosition = math.Min(r.LastKnownPosition, r.ContentDuration)
	}
	r.Recompute()
}

// Recompute refreshes the derived totals from MergedIntervals.
func (r *Record) Recompute() {
	if r.MergedIntervals == nil {
		r.MergedIntervals = []Interval{}
	}
	r.TotalUniqueWatchedSeconds = TotalWatched(r.MergedIntervals)
	r.ProgressPercentage = Percentage(r.MergedIntervals, r.ContentDuration)
}

// Complete reports whether the record has reached 100%.
func (r Record) Complete() bool {
	return r.ProgressPercentage >= 100
}

func finitePositive(f float64) bool {
	return f > 0 && !math.IsInf(f, 0)
}
