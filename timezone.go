package main

import (
	"fmt"
	"math"

	"github.com/ringsaturn/tzf"

	"rewind/internal/timeline"
)

// TimezoneSuggestion is the zone proposed for a document
type TimezoneSuggestion struct {
	Timezone string          `json:"timezone"`
	Exact    bool            `json:"exact"`
	At       timeline.LatLng `json:"at"`
}

// TimezoneFinder resolves coordinates to IANA zone names
type TimezoneFinder struct {
	finder tzf.F
}

// NewTimezoneFinder loads the boundary data. A finder that fails to load
// still answers with longitude-based approximations.
func NewTimezoneFinder() (*TimezoneFinder, error) {
	f, err := tzf.NewDefaultFinder()
	if err != nil {
		return &TimezoneFinder{}, fmt.Errorf("loading timezone boundaries: %w", err)
	}
	return &TimezoneFinder{finder: f}, nil
}

// Lookup returns the zone containing ll
func (tf *TimezoneFinder) Lookup(ll timeline.LatLng) TimezoneSuggestion {
	if tf != nil && tf.finder != nil {
		if name := tf.finder.GetTimezoneName(ll.Lng, ll.Lat); name != "" {
			if _, err := timeline.LoadTimezone(name); err == nil {
				return TimezoneSuggestion{Timezone: name, Exact: true, At: ll}
			}
		}
	}
	return TimezoneSuggestion{Timezone: TimezoneFromCoords(ll.Lat, ll.Lng), At: ll}
}

// TimezoneFromCoords returns a fixed-offset zone name based on longitude.
// Uses a simple 15-degree-per-hour approximation.
func TimezoneFromCoords(lat, lon float64) string {
	offsetHours := int(math.Round(lon / 15.0))

	// Clamp to valid range
	if offsetHours < -12 {
		offsetHours = -12
	} else if offsetHours > 14 {
		offsetHours = 14
	}

	if offsetHours == 0 {
		return "UTC"
	}
	// Etc/GMT zones have inverted signs
	return fmt.Sprintf("Etc/GMT%+d", -offsetHours)
}

// firstPoint returns the earliest decodable point in document order
func firstPoint(doc *timeline.Document, useRaw bool) (timeline.LocationPoint, bool) {
	if doc.UsesRaw(useRaw) {
		for i := range doc.RawSignals {
			if pt, err := timeline.ExtractRawSignal(&doc.RawSignals[i]); err == nil {
				return pt, true
			}
		}
		return timeline.LocationPoint{}, false
	}
	for i := range doc.SemanticSegments {
		if pts, _ := timeline.ExtractSegment(&doc.SemanticSegments[i], nil); len(pts) > 0 {
			return pts[0], true
		}
	}
	return timeline.LocationPoint{}, false
}
