package main

import (
	"fmt"
	"io"
	"time"

	"github.com/twpayne/go-kml"

	"rewind/internal/timeline"
)

// WriteKML writes a day bucket as a KML document: the route as one
// LineString and every place visit as a Point.
func WriteKML(w io.Writer, bucket *timeline.DayBucket) error {
	coords := make([]kml.Coordinate, len(bucket.Points))
	var places []kml.Element
	for i, pt := range bucket.Points {
		coords[i] = kml.Coordinate{Lon: pt.Lng, Lat: pt.Lat}
		if pt.AltitudeMeters != nil {
			coords[i].Alt = *pt.AltitudeMeters
		}
		if pt.Kind != timeline.KindPlace {
			continue
		}
		places = append(places, kml.Placemark(
			kml.Name(pt.PlaceName),
			kml.Description(placeDescription(pt)),
			kml.TimeStamp(kml.When(pt.Timestamp)),
			kml.Point(kml.Coordinates(kml.Coordinate{Lon: pt.Lng, Lat: pt.Lat})),
		))
	}

	docElements := []kml.Element{
		kml.Name(fmt.Sprintf("Timeline %s (%s)", bucket.Date, bucket.Timezone)),
	}
	if len(coords) > 0 {
		docElements = append(docElements, kml.Placemark(
			kml.Name("Route"),
			kml.Description(fmt.Sprintf("%d points", len(coords))),
			kml.LineString(
				kml.Tessellate(true),
				kml.Coordinates(coords...),
			),
		))
	}
	if len(places) > 0 {
		docElements = append(docElements, kml.Folder(append([]kml.Element{kml.Name("Places")}, places...)...))
	}

	return kml.KML(kml.Document(docElements...)).WriteIndent(w, "", "  ")
}

func placeDescription(pt timeline.LocationPoint) string {
	desc := pt.Timestamp.UTC().Format(time.RFC3339)
	if pt.SemanticType != "" {
		desc += " " + pt.SemanticType
	}
	return desc
}
