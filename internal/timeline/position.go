package timeline

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// e7 is the scale of integer coordinates (degrees times 10^7).
const e7 = 1e7

// LatLng is a decoded coordinate in decimal degrees.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Position holds whichever coordinate encoding a record carried. Exports
// use a degree string ("37.422°, -122.084°"), a geo URI ("geo:37.4,-122.0"),
// or integer E7 pairs under one of two naming schemes, sometimes nested
// one level deep under latLng/point/placeLocation.
type Position struct {
	Text string

	LatE7 *int64
	LngE7 *int64

	LatitudeE7  *int64
	LongitudeE7 *int64
}

// IsZero reports whether no encoding was present at all.
func (p Position) IsZero() bool {
	return p.Text == "" && p.LatE7 == nil && p.LngE7 == nil &&
		p.LatitudeE7 == nil && p.LongitudeE7 == nil
}

type positionFields struct {
	LatE7       *int64          `json:"latE7"`
	LngE7       *int64          `json:"lngE7"`
	LatitudeE7  *int64          `json:"latitudeE7"`
	LongitudeE7 *int64          `json:"longitudeE7"`
	LatLng      json.RawMessage `json:"latLng"`
	Point       json.RawMessage `json:"point"`
	Location    json.RawMessage `json:"placeLocation"`
}

// UnmarshalJSON accepts either a string or an object.
func (p *Position) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	if b[0] == '"' {
		return json.Unmarshal(b, &p.Text)
	}
	if b[0] != '{' {
		// numbers, arrays, etc. are left empty and fail decoding later
		return nil
	}

	var f positionFields
	if err := json.Unmarshal(b, &f); err != nil {
		// wrong field types; leave it empty so only this record is dropped
		return nil
	}
	p.LatE7, p.LngE7 = f.LatE7, f.LngE7
	p.LatitudeE7, p.LongitudeE7 = f.LatitudeE7, f.LongitudeE7

	for _, nested := range []json.RawMessage{f.LatLng, f.Point, f.Location} {
		if len(nested) == 0 {
			continue
		}
		var inner Position
		if err := inner.UnmarshalJSON(nested); err != nil {
			return err
		}
		p.merge(inner)
	}
	return nil
}

// merge fills in encodings p does not already have.
func (p *Position) merge(o Position) {
	if p.Text == "" {
		p.Text = o.Text
	}
	if p.LatE7 == nil && p.LngE7 == nil {
		p.LatE7, p.LngE7 = o.LatE7, o.LngE7
	}
	if p.LatitudeE7 == nil && p.LongitudeE7 == nil {
		p.LatitudeE7, p.LongitudeE7 = o.LatitudeE7, o.LongitudeE7
	}
}

// DecodePosition normalizes p into decimal degrees. Encodings are tried in a
// fixed order: degree string, latE7/lngE7, latitudeE7/longitudeE7, geo URI.
// A pair that decodes to exactly 0,0 is treated as missing.
func DecodePosition(p Position) (LatLng, error) {
	text := strings.TrimSpace(p.Text)
	isGeo := strings.HasPrefix(text, geoPrefix)

	if text != "" && !isGeo {
		if ll, ok := parseDegreeString(text); ok {
			return ll, nil
		}
	}
	if p.LatE7 != nil && p.LngE7 != nil {
		if ll, ok := checked(float64(*p.LatE7)/e7, float64(*p.LngE7)/e7); ok {
			return ll, nil
		}
	}
	if p.LatitudeE7 != nil && p.LongitudeE7 != nil {
		if ll, ok := checked(float64(*p.LatitudeE7)/e7, float64(*p.LongitudeE7)/e7); ok {
			return ll, nil
		}
	}
	if isGeo {
		if ll, ok := parseGeoURI(text); ok {
			return ll, nil
		}
	}
	return LatLng{}, ErrUnrecognizedEncoding
}

const geoPrefix = "geo:"

// parseDegreeString handles "22.699°, 75.871°" and the plain "22.699,75.871".
func parseDegreeString(s string) (LatLng, bool) {
	s = strings.ReplaceAll(s, "°", "")
	latStr, lngStr, ok := strings.Cut(s, ",")
	if !ok {
		return LatLng{}, false
	}
	return parsePair(latStr, lngStr)
}

// parseGeoURI handles "geo:30.123456,-105.987654", ignoring any ";param" suffix.
func parseGeoURI(s string) (LatLng, bool) {
	s = strings.TrimPrefix(s, geoPrefix)
	s, _, _ = strings.Cut(s, ";")
	latStr, lngStr, ok := strings.Cut(s, ",")
	if !ok {
		return LatLng{}, false
	}
	// geo URIs may carry a third altitude component
	lngStr, _, _ = strings.Cut(lngStr, ",")
	return parsePair(latStr, lngStr)
}

func parsePair(latStr, lngStr string) (LatLng, bool) {
	lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil {
		return LatLng{}, false
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(lngStr), 64)
	if err != nil {
		return LatLng{}, false
	}
	return checked(lat, lng)
}

// checked rejects NaN, out-of-range values and the 0,0 "no fix" sentinel.
func checked(lat, lng float64) (LatLng, bool) {
	if math.IsNaN(lat) || math.IsNaN(lng) {
		return LatLng{}, false
	}
	if lat == 0 && lng == 0 {
		return LatLng{}, false
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return LatLng{}, false
	}
	return LatLng{Lat: lat, Lng: lng}, true
}
