package timeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScan_VisitsInOrderExactlyOnce(t *testing.T) {
	items := make([]int, 25)
	for i := range items {
		items[i] = i
	}

	var seen []int
	err := Scan(context.Background(), items, 7, func(item *int, index int) {
		assert.Equal(t, index, *item)
		seen = append(seen, *item)
	})
	require.NoError(t, err)
	assert.Equal(t, items, seen)
}

func TestScan_Progress(t *testing.T) {
	items := make([]struct{}, 25)

	var progress [][2]int
	err := scan(context.Background(), items, ScanOptions{
		ChunkSize: 10,
		Progress: func(done, total int) {
			progress = append(progress, [2]int{done, total})
		},
	}, func(*struct{}, int) {})
	require.NoError(t, err)
	assert.Equal(t, [][2]int{{10, 25}, {20, 25}, {25, 25}}, progress)
}

func TestScan_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	items := make([]int, 100)

	visited := 0
	err := Scan(ctx, items, 10, func(*int, int) {
		visited++
		if visited == 15 {
			cancel()
		}
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 20, visited)
}

func TestScan_Empty(t *testing.T) {
	err := Scan(context.Background(), []int(nil), 0, func(*int, int) {
		t.Fatal("visited an item of an empty slice")
	})
	assert.NoError(t, err)
}
