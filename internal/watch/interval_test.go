package watch

import (
	"math"
	"math/rand"
	"reflect"
	"testing"
)

func iv(start, end float64) Interval { return Interval{Start: start, End: end} }

func TestMerge_Empty(t *testing.T) {
	got := Merge(nil)
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", got)
	}
}

func TestMerge_Scenario(t *testing.T) {
	got := Merge([]Interval{iv(0, 10), iv(5, 15), iv(20, 25)})
	want := []Interval{iv(0, 15), iv(20, 25)}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if total := TotalWatched(got); total != 20 {
		t.Fatalf("expected 20 unique seconds, got %v", total)
	}
	if pct := Percentage(got, 100); pct != 20 {
		t.Fatalf("expected 20%%, got %v", pct)
	}
}

func TestMerge_AdjacentFused(t *testing.T) {
	got := Merge([]Interval{iv(10, 20), iv(0, 10)})
	want := []Interval{iv(0, 20)}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestMerge_ContainedAndDuplicates(t *testing.T) {
	got := Merge([]Interval{iv(0, 30), iv(5, 10), iv(5, 10), iv(29, 31)})
	want := []Interval{iv(0, 31)}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestMerge_DropsInvalid(t *testing.T) {
	got := Merge([]Interval{iv(5, 5), iv(8, 3), iv(-1, 2), iv(math.NaN(), 4), iv(1, math.Inf(1)), iv(2, 4)})
	want := []Interval{iv(2, 4)}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestMerge_DoesNotMutateInput(t *testing.T) {
	in := []Interval{iv(20, 25), iv(5, 15), iv(0, 10)}
	orig := append([]Interval(nil), in...)
	_ = Merge(in)
	if !reflect.DeepEqual(in, orig) {
		t.Fatalf("input mutated: %v", in)
	}
}

func TestUnion(t *testing.T) {
	got := Union([]Interval{iv(0, 10)}, []Interval{iv(8, 20)}, nil)
	want := []Interval{iv(0, 20)}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

// ─── property tests ─────────────────────────────────────────────────────────

func randomIntervals(r *rand.Rand) []Interval {
	n := r.Intn(12)
	out := make([]Interval, n)
	for i := range out {
		start := float64(r.Intn(60))
		out[i] = iv(start, start+float64(1+r.Intn(15)))
	}
	return out
}

// covered marks every unit cell [k, k+1) covered by the intervals. The
// random generator only produces integer bounds so cells are exact.
func covered(set []Interval) map[int]bool {
	cells := map[int]bool{}
	for _, x := range set {
		for k := int(x.Start); k < int(x.End); k++ {
			cells[k] = true
		}
	}
	return cells
}

func TestMerge_Properties(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	for i := 0; i < 500; i++ {
		in := randomIntervals(r)
		got := Merge(in)

		if !IsMerged(got) {
			t.Fatalf("output not sorted/disjoint for %v: %v", in, got)
		}
		if !reflect.DeepEqual(covered(got), covered(in)) {
			t.Fatalf("coverage changed for %v: %v", in, got)
		}
		if total := TotalWatched(got); total != float64(len(covered(in))) {
			t.Fatalf("expected total %d, got %v", len(covered(in)), total)
		}
		if again := Merge(got); !reflect.DeepEqual(again, got) {
			t.Fatalf("not idempotent: %v then %v", got, again)
		}

		shuffled := append([]Interval(nil), in...)
		r.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		if perm := Merge(shuffled); !reflect.DeepEqual(perm, got) {
			t.Fatalf("order dependent: %v vs %v", perm, got)
		}
	}
}

func TestIsMerged(t *testing.T) {
	if !IsMerged(nil) {
		t.Fatal("empty set is merged")
	}
	if IsMerged([]Interval{iv(0, 5), iv(5, 6)}) {
		t.Fatal("adjacent intervals are not merged")
	}
	if IsMerged([]Interval{iv(3, 5), iv(0, 1)}) {
		t.Fatal("unsorted intervals are not merged")
	}
}

func TestContiguousPrefix(t *testing.T) {
	cases := []struct {
		name   string
		merged []Interval
		tol    float64
		want   float64
	}{
		{"empty", nil, 2, 0},
		{"starts late", []Interval{iv(10, 20)}, 2, 0},
		{"from zero", []Interval{iv(0, 30), iv(50, 60)}, 2, 30},
		{"near zero", []Interval{iv(1.5, 30)}, 2, 30},
		{"bridges small gap", []Interval{iv(0, 30), iv(31, 45), iv(60, 70)}, 2, 45},
	}
	for _, tc := range cases {
		if got := ContiguousPrefix(tc.merged, tc.tol); got != tc.want {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}
