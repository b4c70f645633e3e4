package playback

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestPlayer_RunsToEndOfDay(t *testing.T) {
	p := NewPlayer(bucketOf(track(10)), PlayerConfig{
		Interval:       time.Millisecond,
		MinutesPerTick: 240,
		Logger:         zaptest.NewLogger(t),
	})

	var minutes []float64
	err := p.Run(context.Background(), DrawerFunc(func(f Frame) error {
		minutes = append(minutes, f.Minute)
		return nil
	}))
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 240, 480, 720, 960, 1200, 1440}, minutes)
}

func TestPlayer_SeekAndMode(t *testing.T) {
	p := NewPlayer(bucketOf(track(10)), PlayerConfig{})
	p.Seek(8*60 + 5)
	p.SetMode(ColorSpeed)

	f, err := p.Frame()
	require.NoError(t, err)
	assert.Equal(t, ColorSpeed, f.Mode)
	assert.Equal(t, 5, f.Cursor.Index)

	p.Seek(-10)
	assert.Zero(t, p.Minute())
	p.Seek(1e6)
	assert.Equal(t, float64(MinutesPerDay), p.Minute())
}

func TestPlayer_Cancelled(t *testing.T) {
	p := NewPlayer(bucketOf(track(10)), PlayerConfig{Interval: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())

	draws := 0
	err := p.Run(ctx, DrawerFunc(func(Frame) error {
		draws++
		cancel()
		return nil
	}))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, draws)
}

func TestPlayer_DrawError(t *testing.T) {
	p := NewPlayer(bucketOf(track(10)), PlayerConfig{Interval: time.Millisecond})
	boom := errors.New("socket closed")

	err := p.Run(context.Background(), DrawerFunc(func(Frame) error { return boom }))
	assert.ErrorIs(t, err, boom)
}
