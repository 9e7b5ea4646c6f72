package container

import "sort"

// TSPoint is one `(timestamp, value, labels)` entry in a time series.
type TSPoint struct {
	Timestamp int64
	Value     float64
	Labels    map[string]string
}

// timeSeries keeps entries in ascending timestamp order (ties broken by
// insertion order) to permit binary-search range queries (spec.md §3, §4.5).
type timeSeries struct {
	entries []TSPoint
}

func newTimeSeries() *timeSeries {
	return &timeSeries{}
}

// Add inserts a point at its sorted position.
func (ts *timeSeries) Add(p TSPoint) {
	idx := sort.Search(len(ts.entries), func(i int) bool { return ts.entries[i].Timestamp > p.Timestamp })
	ts.entries = append(ts.entries, TSPoint{})
	copy(ts.entries[idx+1:], ts.entries[idx:])
	ts.entries[idx] = p
}

func (ts *timeSeries) Len() int { return len(ts.entries) }

// bounds returns the half-open [lo,hi) index range covering the inclusive
// timestamp range [from,to], both
// optional (nil means unbounded), via binary search.
func (ts *timeSeries) bounds(from, to *int64) (int, int) {
	lo := 0
	if from != nil {
		lo = sort.Search(len(ts.entries), func(i int) bool { return ts.entries[i].Timestamp >= *from })
	}
	hi := len(ts.entries)
	if to != nil {
		hi = sort.Search(len(ts.entries), func(i int) bool { return ts.entries[i].Timestamp > *to })
	}
	if lo > hi {
		lo = hi
	}
	return lo, hi
}

// Range returns points with timestamp in [from,to] inclusive (nil bounds
// are unbounded on that side).
func (ts *timeSeries) Range(from, to *int64) []TSPoint {
	lo, hi := ts.bounds(from, to)
	out := make([]TSPoint, hi-lo)
	copy(out, ts.entries[lo:hi])
	return out
}

// Avg aggregates the average value of points in [from,to] inclusive.
func (ts *timeSeries) Avg(from, to *int64) (float64, bool) {
	lo, hi := ts.bounds(from, to)
	if lo >= hi {
		return 0, false
	}
	var sum float64
	for i := lo; i < hi; i++ {
		sum += ts.entries[i].Value
	}
	return sum / float64(hi-lo), true
}
