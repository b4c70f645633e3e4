package playback

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rewind/internal/timeline"
)

func bucketOf(points []timeline.LocationPoint) *timeline.DayBucket {
	return &timeline.DayBucket{Date: "2024-06-01", Timezone: "UTC", Points: points}
}

func TestNewFrame(t *testing.T) {
	points := track(10) // 08:00 .. 08:09
	points[3].PlaceName = "Cafe"
	points[3].Kind = timeline.KindPlace

	// 08:03:30
	f, err := NewFrame(bucketOf(points), 8*60+3.5, ColorActivity, 1000)
	require.NoError(t, err)

	assert.Equal(t, Cursor{Index: 3, Interpolation: 0.5}, f.Cursor)
	require.NotNil(t, f.Point)
	assert.Equal(t, "Cafe", f.Point.PlaceName)
	assert.InDelta(t, 10.0035, f.Position.Lat, 1e-9)
	require.Len(t, f.Segments, 3)
	assert.Equal(t, ColorGray, f.Segments[2].Color)

	fc := f.FeatureCollection()
	require.Len(t, fc.Features, 4)
	line, ok := fc.Features[0].Geometry.(orb.LineString)
	require.True(t, ok)
	assert.Equal(t, orb.Point{20, 10}, line[0])

	marker := fc.Features[3]
	assert.Equal(t, orb.Point{20, f.Position.Lat}, marker.Geometry)
	assert.Equal(t, "Cafe", marker.Properties["place"])
	assert.Equal(t, "STILL", marker.Properties["activity"])

	_, err = json.Marshal(fc)
	assert.NoError(t, err)
}

func TestNewFrame_BeforeFirstPoint(t *testing.T) {
	f, err := NewFrame(bucketOf(track(5)), 0, ColorNone, 1000)
	require.NoError(t, err)
	assert.Equal(t, Cursor{}, f.Cursor)
	require.Len(t, f.Segments, 1)
	assert.Len(t, f.Segments[0].Coordinates, 1)
}

func TestNewFrame_EmptyBucket(t *testing.T) {
	f, err := NewFrame(bucketOf(nil), 600, ColorSpeed, 1000)
	require.NoError(t, err)
	assert.Nil(t, f.Point)
	assert.Empty(t, f.Segments)
	assert.Empty(t, f.FeatureCollection().Features)
}

func TestNewFrame_ClampsMinute(t *testing.T) {
	f, err := NewFrame(bucketOf(track(3)), 5000, ColorNone, 1000)
	require.NoError(t, err)
	assert.Equal(t, float64(MinutesPerDay), f.Minute)
	assert.Equal(t, Cursor{Index: 2}, f.Cursor)
	assert.True(t, f.Instant.Equal(day.Add(24*time.Hour)))
}

func TestBounds(t *testing.T) {
	b, ok := Bounds(track(11))
	require.True(t, ok)
	assert.InDelta(t, 10, b.Min.Lat(), 1e-9)
	assert.InDelta(t, 10.01, b.Max.Lat(), 1e-9)
	assert.InDelta(t, 20, b.Min.Lon(), 1e-9)

	_, ok = Bounds(nil)
	assert.False(t, ok)
}
