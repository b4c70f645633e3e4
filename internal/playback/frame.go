package playback

import (
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"rewind/internal/timeline"
)

// Frame is everything drawn for one instant of a day: the route so far and
// the current-position marker.
type Frame struct {
	Date     string                  `json:"date"`
	Minute   float64                 `json:"minute"`
	Instant  time.Time               `json:"instant"`
	Mode     ColorMode               `json:"mode"`
	Cursor   Cursor                  `json:"cursor"`
	Position timeline.LatLng         `json:"position"`
	Point    *timeline.LocationPoint `json:"point,omitempty"`
	Segments []Segment               `json:"segments"`
}

// NewFrame renders bucket at minute-of-day minute.
func NewFrame(bucket *timeline.DayBucket, minute float64, mode ColorMode, maxSegments int) (Frame, error) {
	minute = min(max(minute, 0), MinutesPerDay)
	instant, err := QueryInstant(bucket.Date, bucket.Location(), minute)
	if err != nil {
		return Frame{}, err
	}

	f := Frame{
		Date:     bucket.Date,
		Minute:   minute,
		Instant:  instant,
		Mode:     mode,
		Segments: []Segment{},
	}
	if bucket.Len() == 0 {
		return f, nil
	}

	f.Cursor = Locate(bucket.Points, instant)
	f.Position = f.Cursor.Position(bucket.Points)
	if pt, ok := f.Cursor.Point(bucket.Points); ok {
		f.Point = &pt
	}
	if segs := Reduce(bucket.Points, f.Cursor.Index, mode, maxSegments); segs != nil {
		f.Segments = segs
	}
	return f, nil
}

// FeatureCollection converts the frame to GeoJSON: one LineString feature
// per segment with a "color" property, then a Point feature for the marker.
func (f Frame) FeatureCollection() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, seg := range f.Segments {
		line := make(orb.LineString, len(seg.Coordinates))
		for i, c := range seg.Coordinates {
			line[i] = toOrb(c)
		}
		feat := geojson.NewFeature(line)
		feat.Properties["color"] = seg.Color
		fc.Append(feat)
	}

	if f.Point == nil {
		return fc
	}
	marker := geojson.NewFeature(toOrb(f.Position))
	marker.Properties["marker"] = true
	marker.Properties["kind"] = string(f.Point.Kind)
	marker.Properties["activity"] = f.Point.EffectiveActivity()
	marker.Properties["time"] = f.Point.Timestamp.Format(time.RFC3339)
	if f.Point.PlaceName != "" {
		marker.Properties["place"] = f.Point.PlaceName
	}
	if f.Point.Source != "" {
		marker.Properties["source"] = f.Point.Source
	}
	fc.Append(marker)
	return fc
}

func toOrb(ll timeline.LatLng) orb.Point {
	return orb.Point{ll.Lng, ll.Lat}
}

// Bounds is the bounding box of points, or false when there are none.
func Bounds(points []timeline.LocationPoint) (orb.Bound, bool) {
	if len(points) == 0 {
		return orb.Bound{}, false
	}
	mp := make(orb.MultiPoint, len(points))
	for i := range points {
		mp[i] = toOrb(points[i].LatLng)
	}
	return mp.Bound(), true
}
