package main

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/simplify"
	"github.com/twpayne/go-polyline"

	"rewind/internal/playback"
	"rewind/internal/timeline"
)

// DaySummary describes one day bucket without its points
type DaySummary struct {
	Date       string                `json:"date"`
	Timezone   string                `json:"timezone"`
	StartTS    int64                 `json:"start_ts"`
	EndTS      int64                 `json:"end_ts"`
	MinLat     float64               `json:"min_lat"`
	MaxLat     float64               `json:"max_lat"`
	MinLon     float64               `json:"min_lon"`
	MaxLon     float64               `json:"max_lon"`
	PointCount int                   `json:"point_count"`
	Kinds      map[timeline.Kind]int `json:"kinds"`
	Skipped    timeline.Skipped      `json:"skipped"`
}

// SummarizeDay computes the temporal and spatial bounds of a bucket
func SummarizeDay(bucket *timeline.DayBucket) *DaySummary {
	s := &DaySummary{
		Date:       bucket.Date,
		Timezone:   bucket.Timezone,
		PointCount: bucket.Len(),
		Kinds:      make(map[timeline.Kind]int),
		Skipped:    bucket.Skipped,
	}
	bound, ok := playback.Bounds(bucket.Points)
	if !ok {
		return s
	}

	// points are sorted, so the ends are the temporal bounds
	s.StartTS = bucket.Points[0].Timestamp.Unix()
	s.EndTS = bucket.Points[len(bucket.Points)-1].Timestamp.Unix()
	s.MinLat, s.MaxLat = bound.Min.Lat(), bound.Max.Lat()
	s.MinLon, s.MaxLon = bound.Min.Lon(), bound.Max.Lon()
	for _, pt := range bucket.Points {
		s.Kinds[pt.Kind]++
	}
	return s
}

// Bound is the summary's bounding box
func (s *DaySummary) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{s.MinLon, s.MinLat},
		Max: orb.Point{s.MaxLon, s.MaxLat},
	}
}

// SimplifyPath reduces the number of points using the Douglas-Peucker algorithm.
// tolerance is in degrees - points deviating less than this from the line are removed.
func SimplifyPath(points []timeline.LatLng, tolerance float64) []timeline.LatLng {
	if len(points) <= 2 {
		return points
	}

	ls := make(orb.LineString, len(points))
	for i, p := range points {
		ls[i] = orb.Point{p.Lng, p.Lat}
	}
	simplified, ok := simplify.DouglasPeucker(tolerance).Simplify(ls).(orb.LineString)
	if !ok || len(simplified) < 2 {
		return points
	}

	result := make([]timeline.LatLng, len(simplified))
	for i, p := range simplified {
		result[i] = timeline.LatLng{Lat: p.Lat(), Lng: p.Lon()}
	}
	return result
}

// ToleranceFromBound picks a simplification tolerance for a day's extent:
// about 0.1% of its smaller side, between ~1m and ~100m.
func ToleranceFromBound(b orb.Bound) float64 {
	minSpan := min(b.Max.Lat()-b.Min.Lat(), b.Max.Lon()-b.Min.Lon())
	return min(max(minSpan*0.001, 0.00001), 0.001)
}

// EncodePath encodes a day's route as a Google encoded polyline
func EncodePath(points []timeline.LatLng) string {
	coords := make([][]float64, len(points))
	for i, p := range points {
		coords[i] = []float64{p.Lat, p.Lng}
	}
	return string(polyline.EncodeCoords(coords))
}

// bucketPath returns the coordinates of every point in a bucket
func bucketPath(bucket *timeline.DayBucket) []timeline.LatLng {
	path := make([]timeline.LatLng, len(bucket.Points))
	for i := range bucket.Points {
		path[i] = bucket.Points[i].LatLng
	}
	return path
}
