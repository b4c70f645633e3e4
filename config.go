package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"rewind/internal/playback"
	"rewind/internal/timeline"
)

// Config represents the application configuration
type Config struct {
	Timezone    string         `yaml:"timezone,omitempty"`
	UseRaw      bool           `yaml:"use_raw,omitempty"`
	ColorMode   string         `yaml:"color_mode,omitempty"`
	MaxSegments int            `yaml:"max_segments,omitempty"`
	ChunkSize   int            `yaml:"chunk_size,omitempty"`
	MaxUploadMB int64          `yaml:"max_upload_mb,omitempty"`
	LogLevel    string         `yaml:"log_level,omitempty"`
	Playback    PlaybackConfig `yaml:"playback,omitempty"`
}

// PlaybackConfig holds animation settings
type PlaybackConfig struct {
	Interval       time.Duration `yaml:"interval,omitempty"`
	MinutesPerTick float64       `yaml:"minutes_per_tick,omitempty"`
}

// DefaultConfig is used when no config file exists
func DefaultConfig() *Config {
	return &Config{
		Timezone:    "UTC",
		ColorMode:   string(playback.ColorNone),
		MaxSegments: playback.DefaultMaxSegments,
		ChunkSize:   timeline.DefaultChunkSize,
		MaxUploadMB: 500,
		LogLevel:    "info",
		Playback: PlaybackConfig{
			Interval:       50 * time.Millisecond,
			MinutesPerTick: 1,
		},
	}
}

// DefaultConfigPath returns the default config file path following XDG spec
func DefaultConfigPath() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configDir = filepath.Join(home, ".config")
	}
	return filepath.Join(configDir, "rewind", "config.yaml")
}

// LoadConfig loads configuration from the specified path on top of the
// defaults. A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		path = DefaultConfigPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			// Config file is optional
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects settings the server cannot run with
func (c *Config) Validate() error {
	if _, err := timeline.LoadTimezone(c.Timezone); err != nil {
		return err
	}
	if _, err := playback.ParseColorMode(c.ColorMode); err != nil {
		return err
	}
	if c.MaxSegments <= 0 {
		return fmt.Errorf("max_segments must be positive, got %d", c.MaxSegments)
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk_size must be positive, got %d", c.ChunkSize)
	}
	if c.MaxUploadMB <= 0 {
		return fmt.Errorf("max_upload_mb must be positive, got %d", c.MaxUploadMB)
	}
	if c.Playback.Interval <= 0 || c.Playback.MinutesPerTick <= 0 {
		return errors.New("playback interval and minutes_per_tick must be positive")
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Mode is the configured default color mode
func (c *Config) Mode() playback.ColorMode {
	m, _ := playback.ParseColorMode(c.ColorMode)
	return m
}

// Level is the configured log level
func (c *Config) Level() (zapcore.Level, error) {
	if c.LogLevel == "" {
		return zapcore.InfoLevel, nil
	}
	lvl, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return lvl, fmt.Errorf("log_level: %w", err)
	}
	return lvl, nil
}

// Location is the configured default timezone
func (c *Config) Location() *time.Location {
	loc, err := timeline.LoadTimezone(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// PlayerConfig builds the playback settings for one session
func (c *Config) PlayerConfig(mode playback.ColorMode) playback.PlayerConfig {
	return playback.PlayerConfig{
		Interval:       c.Playback.Interval,
		MinutesPerTick: c.Playback.MinutesPerTick,
		MaxSegments:    c.MaxSegments,
		Mode:           mode,
	}
}
