package playback

import "rewind/internal/timeline"

// Route colors.
const (
	ColorRed     = "#ef4444"
	ColorOrange  = "#f97316"
	ColorAmber   = "#f59e0b"
	ColorYellow  = "#eab308"
	ColorGreen   = "#22c55e"
	ColorCyan    = "#06b6d4"
	ColorBlue    = "#3b82f6"
	ColorPurple  = "#a855f7"
	ColorFuchsia = "#d946ef"
	ColorPink    = "#ec4899"
	ColorGray    = "#9ca3af"

	DefaultColor = ColorBlue
)

// SpeedColor buckets a speed in meters per second.
func SpeedColor(mps float64) string {
	switch {
	case mps < 1:
		return ColorRed
	case mps < 5:
		return ColorYellow
	case mps < 15:
		return ColorGreen
	default:
		return ColorBlue
	}
}

var activityColors = map[string]string{
	"WALKING":      ColorGreen,
	"ON_FOOT":      ColorGreen,
	"RUNNING":      ColorOrange,
	"CYCLING":      ColorPurple,
	"ON_BICYCLE":   ColorPurple,
	"MOTORCYCLING": ColorFuchsia,

	"IN_PASSENGER_VEHICLE": ColorBlue,
	"IN_VEHICLE":           ColorBlue,
	"IN_ROAD_VEHICLE":      ColorBlue,
	"IN_CAR":               ColorBlue,
	"IN_TAXI":              ColorBlue,
	"DRIVING":              ColorBlue,

	"IN_SUBWAY":    ColorPurple,
	"SUBWAY":       ColorPurple,
	"IN_TRAIN":     ColorCyan,
	"IN_TRAM":      ColorCyan,
	"IN_RAIL":      ColorCyan,
	"TRAIN":        ColorCyan,
	"IN_BUS":       ColorAmber,
	"BUS":          ColorAmber,
	"FLYING":       ColorPink,
	"STILL":        ColorRed,
	"UNKNOWN":      ColorGray,
}

// ActivityColor maps an activity label to its route color. Labels not in
// the table get DefaultColor.
func ActivityColor(label string) string {
	if c, ok := activityColors[timeline.NormalizeLabel(label)]; ok {
		return c
	}
	return DefaultColor
}
