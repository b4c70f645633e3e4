package timeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const mixedDay = `{"semanticSegments":[
	{"startTime":"2024-06-01T12:00:00Z","endTime":"2024-06-01T12:30:00Z",
	 "activity":{"topCandidate":{"type":"cycling"},"start":"geo:10,20","end":"geo:10.2,20.2"}},
	{"startTime":"2024-06-01T12:00:00Z","endTime":"2024-06-01T12:30:00Z",
	 "timelinePath":[{"point":"geo:10.1,20.1","time":"2024-06-01T12:15:00Z"}]},
	{"startTime":"2024-06-01T08:00:00Z","endTime":"2024-06-01T11:00:00Z",
	 "visit":{"topCandidate":{"placeLocation":{"latLng":"10.0°, 20.0°","name":"Home"}}}},
	{"startTime":"2024-06-01T14:00:00Z","endTime":"2024-06-01T15:00:00Z",
	 "timelinePath":[
		{"point":"geo:11,21","time":"2024-06-01T14:30:00Z"},
		{"point":"geo:11.1,21.1","time":"2024-06-01T14:00:00Z"},
		{"point":"nowhere","time":"2024-06-01T14:45:00Z"}
	 ]}
]}`

func TestLoadPoints_Semantic(t *testing.T) {
	doc := mustParse(t, mixedDay)

	res, err := LoadPoints(context.Background(), doc, LoadOptions{Logger: zaptest.NewLogger(t)})
	require.NoError(t, err)

	assert.Equal(t, 4, res.Records)
	assert.Equal(t, 1, res.Skipped.Overlapping)
	assert.Equal(t, 1, res.Skipped.Encoding)
	require.Len(t, res.Points, 5)

	assertSorted(t, res.Points)
	assert.Equal(t, KindPlace, res.Points[0].Kind)
	assert.Equal(t, "Home", res.Points[0].PlaceName)
	assert.Equal(t, "CYCLING", res.Points[1].ActivityLabel)
	assert.Equal(t, KindPath, res.Points[4].Kind)
}

func TestLoadPoints_RawSkipsBadSignals(t *testing.T) {
	doc := mustParse(t, `{"rawSignals":[
		{"position":{"LatLng":"1,1","timestamp":"2024-06-01T10:00:00Z"}},
		{"position":{"LatLng":"1,1"}},
		{"position":{"LatLng":"0°, 0°","timestamp":"2024-06-01T11:00:00Z"}},
		{"position":{"LatLng":"2,2","timestamp":"2024-06-01T09:00:00Z"}}
	],"semanticSegments":[]}`)

	res, err := LoadPoints(context.Background(), doc, LoadOptions{UseRaw: true})
	require.NoError(t, err)
	assert.Len(t, res.Points, 2)
	assert.Equal(t, Skipped{Encoding: 1, Timestamp: 1}, res.Skipped)
	assertSorted(t, res.Points)
}

func TestLoadPoints_Cancelled(t *testing.T) {
	doc := mustParse(t, mixedDay)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := LoadPoints(ctx, doc, LoadOptions{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBuildDayBucket(t *testing.T) {
	doc := mustParse(t, mixedDay)

	bucket, err := BuildDayBucket(context.Background(), doc, "2024-06-01", time.UTC, LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, 5, bucket.Len())
	assert.Equal(t, "UTC", bucket.Timezone)
	assert.Equal(t, time.UTC, bucket.Location())
	assertSorted(t, bucket.Points)

	empty, err := BuildDayBucket(context.Background(), doc, "2024-06-02", time.UTC, LoadOptions{})
	assert.ErrorIs(t, err, ErrNoDataForDate)
	assert.Zero(t, empty.Len())

	_, err = BuildDayBucket(context.Background(), doc, "June 1st", time.UTC, LoadOptions{})
	assert.Error(t, err)
}

func assertSorted(t *testing.T, points []LocationPoint) {
	t.Helper()
	for i := 1; i < len(points); i++ {
		assert.False(t, points[i].Timestamp.Before(points[i-1].Timestamp), "points[%d] before points[%d]", i, i-1)
	}
}
