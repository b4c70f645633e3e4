package playback

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rewind/internal/timeline"
)

var day = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

// track returns n points one minute apart starting at 08:00, moving north
// by 0.001° per point.
func track(n int) []timeline.LocationPoint {
	points := make([]timeline.LocationPoint, n)
	for i := range points {
		points[i] = timeline.LocationPoint{
			LatLng:    timeline.LatLng{Lat: 10 + float64(i)*0.001, Lng: 20},
			Timestamp: day.Add(8*time.Hour + time.Duration(i)*time.Minute),
			Kind:      timeline.KindPath,
		}
	}
	return points
}

func TestLocate(t *testing.T) {
	points := track(5) // 08:00 .. 08:04
	at := func(h, m, s int) time.Time { return day.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(s)*time.Second) }

	for i, tc := range []struct {
		q      time.Time
		expect Cursor
	}{
		{at(7, 0, 0), Cursor{}},
		{at(8, 0, 0), Cursor{}},
		{at(8, 0, 30), Cursor{Index: 0, Interpolation: 0.5}},
		{at(8, 2, 0), Cursor{Index: 2}},
		{at(8, 2, 15), Cursor{Index: 2, Interpolation: 0.25}},
		{at(8, 4, 0), Cursor{Index: 4}},
		{at(23, 0, 0), Cursor{Index: 4}},
	} {
		assert.Equal(t, tc.expect, Locate(points, tc.q), "case %d", i)
	}
}

func TestLocate_InteriorBoundaryIsIdempotent(t *testing.T) {
	points := track(100)
	for k := 1; k < 99; k++ {
		q := points[k].Timestamp
		first := Locate(points, q)
		assert.Equal(t, Cursor{Index: k}, first)
		assert.Equal(t, first, Locate(points, q))
	}
}

func TestLocate_DuplicateTimestamps(t *testing.T) {
	points := track(3)
	points[2].Timestamp = points[1].Timestamp
	points = append(points, track(4)[3])

	c := Locate(points, points[1].Timestamp.Add(30*time.Second))
	assert.Equal(t, 2, c.Index)
	assert.InDelta(t, 0.5/2, c.Interpolation, 1e-9)
}

func TestLocate_Empty(t *testing.T) {
	assert.Equal(t, Cursor{}, Locate(nil, day))
}

func TestCursor_PositionBlendsAttributesSnap(t *testing.T) {
	points := track(2)
	points[0].ActivityLabel = "WALKING"
	points[1].ActivityLabel = "RUNNING"

	c := Locate(points, points[0].Timestamp.Add(15*time.Second))
	pos := c.Position(points)
	assert.InDelta(t, 10.00025, pos.Lat, 1e-9)
	assert.InDelta(t, 20, pos.Lng, 1e-9)

	pt, ok := c.Point(points)
	require.True(t, ok)
	assert.Equal(t, "WALKING", pt.ActivityLabel)

	_, ok = Cursor{}.Point(nil)
	assert.False(t, ok)
}

func TestQueryInstant(t *testing.T) {
	la, err := time.LoadLocation("America/Los_Angeles")
	require.NoError(t, err)

	q, err := QueryInstant("2024-06-01", la, 90)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 6, 1, 8, 30, 0, 0, time.UTC), q.UTC())

	q, err = QueryInstant("2024-06-01", nil, 0.5)
	require.NoError(t, err)
	assert.Equal(t, day.Add(30*time.Second), q)

	_, err = QueryInstant("tomorrow", la, 0)
	assert.Error(t, err)
}
