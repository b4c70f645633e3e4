package timeline

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// ExtractSegment turns one semantic segment into points. Activities yield
// one point per waypoint, or their start and end when they have no path;
// visits yield one place point at the start time; bare paths yield one
// point per waypoint. With a filter, each point is tested individually, so
// a segment spanning midnight contributes only the points on the date.
func ExtractSegment(seg *SemanticSegment, filter *DateFilter) ([]LocationPoint, Skipped) {
	var (
		points  []LocationPoint
		skipped Skipped
	)
	start, startOK := parseTime(seg.StartTime)

	emit := func(pos Position, t time.Time, tOK bool, base LocationPoint) {
		ll, err := DecodePosition(pos)
		if err != nil {
			skipped.Count(err)
			return
		}
		if !tOK {
			skipped.Count(ErrMissingTimestamp)
			return
		}
		if !filter.Keep(t) {
			return
		}
		base.LatLng = ll
		base.Timestamp = t
		points = append(points, base)
	}

	emitPath := func(path []PathVertex, base LocationPoint) {
		for _, v := range path {
			t, ok := v.timestamp(start, startOK)
			emit(v.Point, t, ok, base)
		}
	}

	switch {
	case seg.Activity != nil:
		base := LocationPoint{
			Kind:          KindActivity,
			ActivityLabel: NormalizeLabel(seg.Activity.TopCandidate.Type),
		}
		if path := seg.waypoints(); len(path) > 0 {
			emitPath(path, base)
			break
		}
		end, endOK := parseTime(seg.EndTime)
		emit(seg.Activity.Start, start, startOK, base)
		emit(seg.Activity.End, end, endOK, base)

	case seg.Visit != nil:
		cand := seg.Visit.TopCandidate
		emit(cand.PlaceLocation.Position, start, startOK, LocationPoint{
			Kind:         KindPlace,
			PlaceName:    placeName(cand.PlaceLocation),
			PlaceID:      cand.PlaceID,
			SemanticType: cand.SemanticType,
		})

	case len(seg.TimelinePath) > 0:
		emitPath(seg.TimelinePath, LocationPoint{
			Kind:          KindPath,
			ActivityLabel: LabelUnknown,
		})
	}

	return points, skipped
}

// IsStandalonePath reports whether seg is a path with neither an activity
// nor a visit.
func (seg *SemanticSegment) IsStandalonePath() bool {
	return seg.Activity == nil && seg.Visit == nil && len(seg.TimelinePath) > 0
}

// waypoints is the path an activity carries, or the segment's own path.
func (seg *SemanticSegment) waypoints() []PathVertex {
	if seg.Activity != nil && len(seg.Activity.WaypointPath) > 0 {
		return seg.Activity.WaypointPath
	}
	return seg.TimelinePath
}

func placeName(p Place) string {
	switch {
	case p.Name != "":
		return p.Name
	case p.Address != "":
		return p.Address
	default:
		return UnknownPlace
	}
}

// NormalizeLabel upper-cases an activity type and joins words with
// underscores ("in passenger vehicle" -> "IN_PASSENGER_VEHICLE"). The empty
// label becomes UNKNOWN.
func NormalizeLabel(label string) string {
	label = strings.TrimSpace(label)
	if label == "" {
		return LabelUnknown
	}
	label = strings.ToUpper(label)
	return strings.Join(strings.FieldsFunc(label, func(r rune) bool {
		return r == ' ' || r == '-' || r == '_'
	}), "_")
}

// ExtractRawSignal turns one raw signal into a point. It returns
// ErrUnrecognizedEncoding or ErrMissingTimestamp when the signal cannot
// produce one.
func ExtractRawSignal(sig *RawSignal) (LocationPoint, error) {
	pos := sig.payload()

	ll, err := DecodePosition(pos.encoding())
	if err != nil {
		return LocationPoint{}, fmt.Errorf("raw signal: %w", err)
	}
	t, ok := sig.timestamp()
	if !ok {
		return LocationPoint{}, fmt.Errorf("raw signal: %w", ErrMissingTimestamp)
	}

	pt := LocationPoint{
		LatLng:               ll,
		Timestamp:            t,
		Kind:                 KindRaw,
		Source:               pos.Source,
		AltitudeMeters:       pos.AltitudeMeters,
		SpeedMetersPerSecond: pos.SpeedMetersPerSecond,
	}

	switch {
	case pos.AccuracyMeters != nil:
		acc := int(math.Round(*pos.AccuracyMeters))
		pt.AccuracyMeters = &acc
	case pos.AccuracyMm != nil:
		acc := int(math.Round(*pos.AccuracyMm / 1000))
		pt.AccuracyMeters = &acc
	}

	return pt, nil
}

// payload is the nested position if present, else the signal itself.
func (sig *RawSignal) payload() *RawPosition {
	if sig.Position != nil {
		return sig.Position
	}
	return &sig.RawPosition
}

// timestamp walks the fallback chain: position timestamp, then the
// signal's alternate time field, then the signal's own timestamp.
func (sig *RawSignal) timestamp() (time.Time, bool) {
	candidates := []string{sig.Time, sig.RawPosition.Timestamp}
	if sig.Position != nil {
		candidates = append([]string{sig.Position.Timestamp}, candidates...)
	}
	for _, ts := range candidates {
		if ts == "" {
			continue
		}
		return parseTime(ts)
	}
	return time.Time{}, false
}
