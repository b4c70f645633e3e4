package playback

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"rewind/internal/timeline"
)

// Drawer receives one full replacement frame per tick.
type Drawer interface {
	Draw(Frame) error
}

// DrawerFunc adapts a function to Drawer.
type DrawerFunc func(Frame) error

func (f DrawerFunc) Draw(fr Frame) error { return f(fr) }

// PlayerConfig controls playback speed and rendering.
type PlayerConfig struct {
	Interval       time.Duration
	MinutesPerTick float64
	MaxSegments    int
	Mode           ColorMode
	Logger         *zap.Logger
}

// Player animates a day bucket. Run advances a minute-of-day cursor every
// tick and draws the frame for it; Seek and SetMode may be called from
// other goroutines while Run is active.
type Player struct {
	bucket *timeline.DayBucket
	cfg    PlayerConfig
	log    *zap.Logger

	mu     sync.Mutex
	minute float64
	mode   ColorMode
}

// NewPlayer returns a player positioned at midnight.
func NewPlayer(bucket *timeline.DayBucket, cfg PlayerConfig) *Player {
	if cfg.Interval <= 0 {
		cfg.Interval = 50 * time.Millisecond
	}
	if cfg.MinutesPerTick <= 0 {
		cfg.MinutesPerTick = 1
	}
	if cfg.Mode == "" {
		cfg.Mode = ColorNone
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Player{
		bucket: bucket,
		cfg:    cfg,
		log:    log,
		mode:   cfg.Mode,
	}
}

// Seek moves the cursor to minute, clamped to the day.
func (p *Player) Seek(minute float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.minute = min(max(minute, 0), MinutesPerDay)
}

// SetMode changes the color mode from the next frame on.
func (p *Player) SetMode(mode ColorMode) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.mode = mode
}

// Minute is the current cursor.
func (p *Player) Minute() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.minute
}

// Frame renders the current cursor without advancing it.
func (p *Player) Frame() (Frame, error) {
	p.mu.Lock()
	minute, mode := p.minute, p.mode
	p.mu.Unlock()
	return NewFrame(p.bucket, minute, mode, p.cfg.MaxSegments)
}

// advance moves the cursor one tick forward, stopping at the end of the day.
func (p *Player) advance() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.minute = min(p.minute+p.cfg.MinutesPerTick, MinutesPerDay)
}

// Run draws the current frame, then one frame per tick until the end of
// the day, ctx is cancelled, or d fails. Reaching the end of the day
// returns nil.
func (p *Player) Run(ctx context.Context, d Drawer) error {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	p.log.Debug("playback started",
		zap.String("date", p.bucket.Date),
		zap.Int("points", p.bucket.Len()),
		zap.Float64("minute", p.Minute()))

	for {
		frame, err := p.Frame()
		if err != nil {
			return err
		}
		if err := d.Draw(frame); err != nil {
			return fmt.Errorf("drawing frame at minute %.0f: %w", frame.Minute, err)
		}
		if frame.Minute >= MinutesPerDay {
			p.log.Debug("playback finished", zap.String("date", p.bucket.Date))
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		p.advance()
	}
}
