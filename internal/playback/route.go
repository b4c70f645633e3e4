package playback

import (
	"fmt"

	"github.com/golang/geo/s2"

	"rewind/internal/timeline"
)

// DefaultMaxSegments bounds how many route segments one frame carries.
const DefaultMaxSegments = 1000

// EarthRadiusMeters is the mean Earth radius.
const EarthRadiusMeters = 6371000.0

// ColorMode selects how route segments are colored.
type ColorMode string

const (
	ColorNone     ColorMode = "none"
	ColorSpeed    ColorMode = "speed"
	ColorActivity ColorMode = "activity"
)

// ParseColorMode validates a color mode name. The empty name is ColorNone.
func ParseColorMode(s string) (ColorMode, error) {
	switch m := ColorMode(s); m {
	case "":
		return ColorNone, nil
	case ColorNone, ColorSpeed, ColorActivity:
		return m, nil
	default:
		return "", fmt.Errorf("unknown color mode %q, want none, speed or activity", s)
	}
}

// Segment is one colored polyline of the drawn route.
type Segment struct {
	Coordinates []timeline.LatLng `json:"coordinates"`
	Color       string            `json:"color"`
}

// Reduce draws points[0..upto] as at most maxSegments segments. In
// ColorNone mode the route is a single strided polyline that always ends at
// points[upto]. The other modes emit one two-point segment per stride,
// colored by the speed or activity at the stride's first point.
func Reduce(points []timeline.LocationPoint, upto int, mode ColorMode, maxSegments int) []Segment {
	if len(points) == 0 || upto < 0 {
		return nil
	}
	upto = min(upto, len(points)-1)
	if maxSegments <= 0 {
		maxSegments = DefaultMaxSegments
	}

	if mode != ColorSpeed && mode != ColorActivity {
		step := max(1, upto/maxSegments)
		coords := make([]timeline.LatLng, 0, upto/step+2)
		last := 0
		for i := 0; i <= upto; i += step {
			coords = append(coords, points[i].LatLng)
			last = i
		}
		if last != upto {
			coords = append(coords, points[upto].LatLng)
		}
		return []Segment{{Coordinates: coords, Color: DefaultColor}}
	}

	// rounding up keeps the segment count within maxSegments
	step := max(1, (upto+maxSegments-1)/maxSegments)
	segments := make([]Segment, 0, (upto+step-1)/step)
	for i := 0; i < upto; i += step {
		j := min(i+step, upto)
		a, b := &points[i], &points[j]

		color := ActivityColor(a.EffectiveActivity())
		if mode == ColorSpeed {
			color = SpeedColor(Speed(a, b))
		}
		segments = append(segments, Segment{
			Coordinates: []timeline.LatLng{a.LatLng, b.LatLng},
			Color:       color,
		})
	}
	return segments
}

// Speed is a's measured speed if it has one, else the great-circle speed
// from a to b. Zero elapsed time gives zero.
func Speed(a, b *timeline.LocationPoint) float64 {
	if a.SpeedMetersPerSecond != nil {
		return *a.SpeedMetersPerSecond
	}
	elapsed := b.Timestamp.Sub(a.Timestamp).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return DistanceMeters(a.LatLng, b.LatLng) / elapsed
}

// DistanceMeters is the great-circle distance between two coordinates.
func DistanceMeters(a, b timeline.LatLng) float64 {
	p1 := s2.LatLngFromDegrees(a.Lat, a.Lng)
	p2 := s2.LatLngFromDegrees(b.Lat, b.Lng)
	return p1.Distance(p2).Radians() * EarthRadiusMeters
}
