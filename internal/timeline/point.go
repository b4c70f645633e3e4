package timeline

import (
	"sort"
	"time"
)

// Kind is the provenance of a LocationPoint.
type Kind string

const (
	KindActivity Kind = "activity"
	KindPlace    Kind = "place"
	KindPath     Kind = "path"
	KindRaw      Kind = "raw"
)

// Activity labels with special meaning.
const (
	LabelUnknown = "UNKNOWN"
	LabelStill   = "STILL"
)

// UnknownPlace names visits that carry neither a name nor an address.
const UnknownPlace = "Unknown Place"

// LocationPoint is the canonical point every record is reduced to. Values
// are never mutated after extraction.
type LocationPoint struct {
	LatLng
	Timestamp time.Time `json:"timestamp"`
	Kind      Kind      `json:"kind"`

	ActivityLabel string `json:"activity,omitempty"`

	PlaceName    string `json:"place_name,omitempty"`
	PlaceID      string `json:"place_id,omitempty"`
	SemanticType string `json:"semantic_type,omitempty"`

	AccuracyMeters       *int     `json:"accuracy_m,omitempty"`
	Source               string   `json:"source,omitempty"`
	AltitudeMeters       *float64 `json:"altitude_m,omitempty"`
	SpeedMetersPerSecond *float64 `json:"speed_mps,omitempty"`
}

// EffectiveActivity is the label used for coloring: places count as STILL
// when they carry no label of their own.
func (p LocationPoint) EffectiveActivity() string {
	if p.ActivityLabel != "" {
		return p.ActivityLabel
	}
	if p.Kind == KindPlace {
		return LabelStill
	}
	return LabelUnknown
}

// SortPoints orders points by timestamp, keeping extraction order for ties.
func SortPoints(points []LocationPoint) {
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Timestamp.Before(points[j].Timestamp)
	})
}
