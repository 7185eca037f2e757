package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete client engine configuration
type Config struct {
	Backend  BackendConfig  `yaml:"backend"`
	Audio    AudioConfig    `yaml:"audio"`
	Realtime RealtimeConfig `yaml:"realtime"`
	Bounded  BoundedConfig  `yaml:"bounded"`
	Level    LevelConfig    `yaml:"level"`
	Logging  LoggingConfig  `yaml:"logging"`
	Monitor  MonitorConfig  `yaml:"monitor"`
}

// BackendConfig contains the inference backend endpoints
type BackendConfig struct {
	BaseURL          string `yaml:"base_url"`           // POST {base_url}/predict, GET {base_url}/
	WSURL            string `yaml:"ws_url"`             // streaming socket endpoint
	RequestTimeoutMs int    `yaml:"request_timeout_ms"` // one-shot request timeout
}

// AudioConfig contains capture parameters
type AudioConfig struct {
	SampleRate      int `yaml:"sample_rate"`
	Channels        int `yaml:"channels"`  // must be 1 (mono)
	BitDepth        int `yaml:"bit_depth"` // must be 16
	FramesPerBuffer int `yaml:"frames_per_buffer"`
}

// RealtimeConfig contains the chunk cycle parameters
type RealtimeConfig struct {
	ChunkWindowMs int `yaml:"chunk_window_ms"` // encoder run per chunk
}

// BoundedConfig contains the bounded recording parameters
type BoundedConfig struct {
	MaxDurationMs int `yaml:"max_duration_ms"` // hard cap per recording
}

// LevelConfig contains the mic level meter parameters
type LevelConfig struct {
	Smoothing float64 `yaml:"smoothing"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// MonitorConfig contains the local observability endpoint configuration
type MonitorConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
	Port    int    `yaml:"port"`
}

// DefaultConfig returns the configuration used when no file overrides are given
func DefaultConfig() *Config {
	return &Config{
		Backend: BackendConfig{
			BaseURL:          "http://localhost:8000",
			WSURL:            "ws://localhost:8000/ws",
			RequestTimeoutMs: 10000,
		},
		Audio: AudioConfig{
			SampleRate:      16000,
			Channels:        1,
			BitDepth:        16,
			FramesPerBuffer: 480,
		},
		Realtime: RealtimeConfig{
			ChunkWindowMs: 1350,
		},
		Bounded: BoundedConfig{
			MaxDurationMs: 3000,
		},
		Level: LevelConfig{
			Smoothing: 0.2,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
		Monitor: MonitorConfig{
			Enabled: false,
			Address: "127.0.0.1",
			Port:    8090,
		},
	}
}

// Load reads the configuration file over the defaults and validates the result
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	if err := c.Backend.Validate(); err != nil {
		return fmt.Errorf("backend config: %w", err)
	}

	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}

	if err := c.Realtime.Validate(); err != nil {
		return fmt.Errorf("realtime config: %w", err)
	}

	if err := c.Bounded.Validate(); err != nil {
		return fmt.Errorf("bounded config: %w", err)
	}

	if err := c.Level.Validate(); err != nil {
		return fmt.Errorf("level config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	if err := c.Monitor.Validate(); err != nil {
		return fmt.Errorf("monitor config: %w", err)
	}

	return nil
}

// Validate validates backend configuration
func (b *BackendConfig) Validate() error {
	if b.BaseURL == "" {
		return fmt.Errorf("base_url cannot be empty")
	}

	u, err := url.Parse(b.BaseURL)
	if err != nil {
		return fmt.Errorf("base_url is not a valid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("base_url scheme must be http or https, got '%s'", u.Scheme)
	}

	if b.WSURL == "" {
		return fmt.Errorf("ws_url cannot be empty")
	}

	wu, err := url.Parse(b.WSURL)
	if err != nil {
		return fmt.Errorf("ws_url is not a valid URL: %w", err)
	}
	if wu.Scheme != "ws" && wu.Scheme != "wss" {
		return fmt.Errorf("ws_url scheme must be ws or wss, got '%s'", wu.Scheme)
	}

	if b.RequestTimeoutMs < 1 {
		return fmt.Errorf("request_timeout_ms must be at least 1, got %d", b.RequestTimeoutMs)
	}

	return nil
}

// Validate validates audio configuration
func (a *AudioConfig) Validate() error {
	if a.SampleRate < 8000 || a.SampleRate > 48000 {
		return fmt.Errorf("sample_rate must be between 8000 and 48000 Hz, got %d", a.SampleRate)
	}

	if a.Channels != 1 {
		return fmt.Errorf("channels must be 1 (mono), got %d", a.Channels)
	}

	if a.BitDepth != 16 {
		return fmt.Errorf("bit_depth must be 16, got %d", a.BitDepth)
	}

	if a.FramesPerBuffer < 64 || a.FramesPerBuffer > 8192 {
		return fmt.Errorf("frames_per_buffer must be between 64 and 8192, got %d", a.FramesPerBuffer)
	}

	return nil
}

// Validate validates realtime configuration
func (r *RealtimeConfig) Validate() error {
	if r.ChunkWindowMs < 100 {
		return fmt.Errorf("chunk_window_ms must be at least 100, got %d", r.ChunkWindowMs)
	}

	return nil
}

// Validate validates bounded recording configuration
func (b *BoundedConfig) Validate() error {
	if b.MaxDurationMs < 100 {
		return fmt.Errorf("max_duration_ms must be at least 100, got %d", b.MaxDurationMs)
	}

	return nil
}

// Validate validates level meter configuration
func (l *LevelConfig) Validate() error {
	if l.Smoothing <= 0 || l.Smoothing > 1 {
		return fmt.Errorf("smoothing must be in (0, 1], got %f", l.Smoothing)
	}

	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	// stdout, stderr, or a file path; nothing further to check here
	return nil
}

// Validate validates monitor configuration
func (m *MonitorConfig) Validate() error {
	if m.Enabled {
		if m.Port < 1 || m.Port > 65535 {
			return fmt.Errorf("monitor port must be between 1 and 65535, got %d", m.Port)
		}

		if m.Address == "" {
			return fmt.Errorf("monitor address cannot be empty when monitor is enabled")
		}
	}

	return nil
}

// GetRequestTimeout returns the one-shot request timeout as a time.Duration
func (b *BackendConfig) GetRequestTimeout() time.Duration {
	return time.Duration(b.RequestTimeoutMs) * time.Millisecond
}

// GetChunkWindow returns the chunk encoder window as a time.Duration
func (r *RealtimeConfig) GetChunkWindow() time.Duration {
	return time.Duration(r.ChunkWindowMs) * time.Millisecond
}

// GetMaxDuration returns the bounded recording hard cap as a time.Duration
func (b *BoundedConfig) GetMaxDuration() time.Duration {
	return time.Duration(b.MaxDurationMs) * time.Millisecond
}
