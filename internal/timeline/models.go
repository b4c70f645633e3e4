package timeline

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"
)

// SemanticSegment is one entry of an export's semanticSegments array. It is
// an activity, a visit, or a bare timelinePath.
type SemanticSegment struct {
	StartTime    string       `json:"startTime"` // e.g. 2024-06-21T19:51:13.014-06:00
	EndTime      string       `json:"endTime"`
	Activity     *Activity    `json:"activity,omitempty"`
	Visit        *Visit       `json:"visit,omitempty"`
	TimelinePath []PathVertex `json:"timelinePath,omitempty"`

	// Android includes the device's UTC offset at the time; dates are
	// bucketed by the viewer's timezone instead, so these are informational.
	StartTimeTimezoneUTCOffsetMinutes int `json:"startTimeTimezoneUtcOffsetMinutes,omitempty"`
	EndTimeTimezoneUTCOffsetMinutes   int `json:"endTimeTimezoneUtcOffsetMinutes,omitempty"`
}

// Activity is a movement between two places.
type Activity struct {
	Start        Position     `json:"start"`
	End          Position     `json:"end"`
	TopCandidate TopCandidate `json:"topCandidate"`
	WaypointPath []PathVertex `json:"timelinePath,omitempty"`
}

// Visit is a stay at one place.
type Visit struct {
	TopCandidate TopCandidate `json:"topCandidate"`
}

// TopCandidate is the most likely classification of a segment.
type TopCandidate struct {
	Type          string `json:"type"`
	SemanticType  string `json:"semanticType"`
	PlaceID       string `json:"placeId"`
	PlaceLocation Place  `json:"placeLocation"`
}

// Place is a visit location: a position plus optional labels.
type Place struct {
	Position
	Name    string
	Address string
}

// UnmarshalJSON accepts a bare geo/degree string or an object.
func (p *Place) UnmarshalJSON(b []byte) error {
	if err := p.Position.UnmarshalJSON(b); err != nil {
		return err
	}
	b = bytes.TrimSpace(b)
	if len(b) == 0 || b[0] != '{' {
		return nil
	}
	var labels struct {
		Name    string `json:"name"`
		Address string `json:"address"`
	}
	if err := json.Unmarshal(b, &labels); err != nil {
		return nil
	}
	p.Name, p.Address = labels.Name, labels.Address
	return nil
}

// PathVertex is one waypoint of a timelinePath. Android stamps each vertex
// with its own time; iOS gives minutes since the segment start as a string.
type PathVertex struct {
	Point                              Position `json:"point"`
	Time                               string   `json:"time,omitempty"`
	DurationMinutesOffsetFromStartTime string   `json:"durationMinutesOffsetFromStartTime,omitempty"`
}

// timestamp resolves the vertex's instant, using segStart for offset-only vertices.
func (v PathVertex) timestamp(segStart time.Time, segStartOK bool) (time.Time, bool) {
	if t, ok := parseTime(v.Time); ok {
		return t, true
	}
	if v.DurationMinutesOffsetFromStartTime != "" && segStartOK {
		mins, err := strconv.Atoi(v.DurationMinutesOffsetFromStartTime)
		if err == nil {
			return segStart.Add(time.Duration(mins) * time.Minute), true
		}
	}
	return time.Time{}, false
}

// RawSignal is one entry of an export's rawSignals array. The position
// payload is usually under "position" but some exports flatten it onto the
// signal itself.
type RawSignal struct {
	Position *RawPosition `json:"position,omitempty"`
	RawPosition

	// Time is an alternate signal-level timestamp field.
	Time string `json:"time,omitempty"`
}

// RawPosition is a single GPS/network fix.
type RawPosition struct {
	LatLng      Position `json:"LatLng"`
	LatE7       *int64   `json:"latE7,omitempty"`
	LngE7       *int64   `json:"lngE7,omitempty"`
	LatitudeE7  *int64   `json:"latitudeE7,omitempty"`
	LongitudeE7 *int64   `json:"longitudeE7,omitempty"`

	AccuracyMeters       *float64 `json:"accuracyMeters,omitempty"`
	AccuracyMm           *float64 `json:"accuracyMm,omitempty"`
	AltitudeMeters       *float64 `json:"altitudeMeters,omitempty"`
	SpeedMetersPerSecond *float64 `json:"speedMetersPerSecond,omitempty"`
	Source               string   `json:"source,omitempty"`
	Timestamp            string   `json:"timestamp,omitempty"`
}

// encoding collects every coordinate field of the fix into one Position.
func (p *RawPosition) encoding() Position {
	pos := p.LatLng
	pos.merge(Position{
		LatE7:       p.LatE7,
		LngE7:       p.LngE7,
		LatitudeE7:  p.LatitudeE7,
		LongitudeE7: p.LongitudeE7,
	})
	return pos
}

// Document is a parsed export. Either array may be empty.
type Document struct {
	SemanticSegments []SemanticSegment `json:"semanticSegments,omitempty"`
	RawSignals       []RawSignal       `json:"rawSignals,omitempty"`
}

// HasRawSignals reports whether raw mode has anything to show.
func (d *Document) HasRawSignals() bool {
	return d != nil && len(d.RawSignals) > 0
}

// UsesRaw resolves the raw/semantic toggle: raw mode only applies when the
// document actually carries raw signals.
func (d *Document) UsesRaw(useRaw bool) bool {
	return useRaw && d.HasRawSignals()
}

// parseTime parses the RFC 3339 timestamps found in exports, with or without
// fractional seconds.
func parseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		// Try alternate format without a colon in the offset
		t, err = time.Parse("2006-01-02T15:04:05.999999999-0700", s)
		if err != nil {
			return time.Time{}, false
		}
	}
	return t, true
}
