package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"rewind/internal/playback"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	assert.Equal(t, playback.ColorNone, cfg.Mode())
	assert.Equal(t, time.UTC, cfg.Location())
}

func TestLoadConfig_Overrides(t *testing.T) {
	path := writeConfig(t, `
timezone: America/Los_Angeles
use_raw: true
color_mode: speed
max_segments: 250
log_level: debug
playback:
  interval: 100ms
  minutes_per_tick: 2.5
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "America/Los_Angeles", cfg.Timezone)
	assert.True(t, cfg.UseRaw)
	assert.Equal(t, playback.ColorSpeed, cfg.Mode())
	assert.Equal(t, 250, cfg.MaxSegments)
	// untouched keys keep their defaults
	assert.Equal(t, DefaultConfig().ChunkSize, cfg.ChunkSize)

	lvl, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, zapcore.DebugLevel, lvl)

	pc := cfg.PlayerConfig(playback.ColorActivity)
	assert.Equal(t, 100*time.Millisecond, pc.Interval)
	assert.Equal(t, 2.5, pc.MinutesPerTick)
	assert.Equal(t, 250, pc.MaxSegments)
	assert.Equal(t, playback.ColorActivity, pc.Mode)
}

func TestLoadConfig_Invalid(t *testing.T) {
	for i, body := range []string{
		"color_mode: rainbow\n",
		"timezone: Mars/Olympus_Mons\n",
		"max_segments: -1\n",
		"log_level: loud\n",
		"timezone: [unterminated\n",
	} {
		_, err := LoadConfig(writeConfig(t, body))
		assert.Error(t, err, "case %d", i)
	}
}
