package playback

import (
	"sort"
	"time"

	"rewind/internal/timeline"
)

// MinutesPerDay bounds the minute-of-day slider.
const MinutesPerDay = 1440

// Cursor is a position between two adjacent points of a day bucket: the
// point at Index, advanced Interpolation of the way toward Index+1.
type Cursor struct {
	Index         int     `json:"index"`
	Interpolation float64 `json:"interpolation"`
}

// Locate finds the cursor for q in points, which must be sorted by
// timestamp. Instants at or before the first point clamp to it, instants at
// or after the last clamp to the last. An instant equal to an interior
// point's timestamp lands exactly on that point.
func Locate(points []timeline.LocationPoint, q time.Time) Cursor {
	n := len(points)
	if n == 0 || !q.After(points[0].Timestamp) {
		return Cursor{}
	}
	if !q.Before(points[n-1].Timestamp) {
		return Cursor{Index: n - 1}
	}

	// first point strictly after q; the pair is (i-1, i)
	i := sort.Search(n, func(i int) bool {
		return points[i].Timestamp.After(q)
	})
	lo, hi := points[i-1].Timestamp, points[i].Timestamp

	span := hi.Sub(lo)
	if span <= 0 {
		return Cursor{Index: i - 1}
	}
	return Cursor{
		Index:         i - 1,
		Interpolation: float64(q.Sub(lo)) / float64(span),
	}
}

// QueryInstant is the instant minute minutes after local midnight of date.
func QueryInstant(date string, loc *time.Location, minute float64) (time.Time, error) {
	day, err := timeline.ParseDate(date)
	if err != nil {
		return time.Time{}, err
	}
	if loc == nil {
		loc = time.UTC
	}
	midnight := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc)
	return midnight.Add(time.Duration(minute * float64(time.Minute))), nil
}

// Position is the display coordinate: a linear blend of the point at the
// cursor and the one after it.
func (c Cursor) Position(points []timeline.LocationPoint) timeline.LatLng {
	if len(points) == 0 {
		return timeline.LatLng{}
	}
	idx := clamp(c.Index, len(points)-1)
	a := points[idx].LatLng
	if c.Interpolation == 0 || idx+1 >= len(points) {
		return a
	}
	b := points[idx+1].LatLng
	return timeline.LatLng{
		Lat: a.Lat + (b.Lat-a.Lat)*c.Interpolation,
		Lng: a.Lng + (b.Lng-a.Lng)*c.Interpolation,
	}
}

// Point is the point whose attributes are displayed. Attributes are never
// blended; they always come from the point at Index.
func (c Cursor) Point(points []timeline.LocationPoint) (timeline.LocationPoint, bool) {
	if len(points) == 0 {
		return timeline.LocationPoint{}, false
	}
	return points[clamp(c.Index, len(points)-1)], true
}

func clamp(i, hi int) int {
	if i < 0 {
		return 0
	}
	if i > hi {
		return hi
	}
	return i
}
