package timeline

import (
	"sort"
	"time"
)

// Range is a closed time interval.
type Range struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether r and o intersect. Sharing an endpoint counts.
func (r Range) Overlaps(o Range) bool {
	return !r.Start.After(o.End) && !o.Start.After(r.End)
}

// segmentRange returns seg's interval. Inverted intervals are swapped
// rather than rejected.
func segmentRange(seg *SemanticSegment) (Range, bool) {
	start, ok := parseTime(seg.StartTime)
	if !ok {
		return Range{}, false
	}
	end, ok := parseTime(seg.EndTime)
	if !ok {
		end = start
	}
	if end.Before(start) {
		start, end = end, start
	}
	return Range{Start: start, End: end}, true
}

// Ranges is the set of activity and visit intervals of a document, sorted
// by start so that overlap queries are logarithmic.
type Ranges struct {
	ranges []Range
	maxEnd []time.Time // maxEnd[i] is the latest End among ranges[:i+1]
}

// BuildActivityRanges collects the interval of every segment that has an
// activity or a visit.
func BuildActivityRanges(segs []SemanticSegment) Ranges {
	var rs Ranges
	for i := range segs {
		seg := &segs[i]
		if seg.Activity == nil && seg.Visit == nil {
			continue
		}
		if r, ok := segmentRange(seg); ok {
			rs.ranges = append(rs.ranges, r)
		}
	}
	rs.index()
	return rs
}

func (rs *Ranges) index() {
	sort.Slice(rs.ranges, func(i, j int) bool {
		return rs.ranges[i].Start.Before(rs.ranges[j].Start)
	})
	rs.maxEnd = make([]time.Time, len(rs.ranges))
	for i, r := range rs.ranges {
		rs.maxEnd[i] = r.End
		if i > 0 && rs.maxEnd[i-1].After(r.End) {
			rs.maxEnd[i] = rs.maxEnd[i-1]
		}
	}
}

// Len is the number of intervals.
func (rs Ranges) Len() int { return len(rs.ranges) }

// Intersects reports whether q overlaps any interval in the set.
func (rs Ranges) Intersects(q Range) bool {
	// candidates are the ranges starting no later than q ends
	n := sort.Search(len(rs.ranges), func(i int) bool {
		return rs.ranges[i].Start.After(q.End)
	})
	if n == 0 {
		return false
	}
	return !rs.maxEnd[n-1].Before(q.Start)
}

// IsStandalonePathOverlapping reports whether a standalone path segment
// overlaps an activity or visit, in which case it duplicates movement that
// is already plotted and should be skipped. Segments that are not
// standalone paths, or whose times do not parse, never overlap.
func IsStandalonePathOverlapping(seg *SemanticSegment, ranges Ranges) bool {
	if !seg.IsStandalonePath() {
		return false
	}
	r, ok := segmentRange(seg)
	if !ok {
		return false
	}
	return ranges.Intersects(r)
}
