// Package config handles loading, defaulting, and validation of the livechart
// configuration file. Every section maps to a typed struct so the rest of the
// codebase gets strong typing without manual key lookups. Files ending in
// .yaml or .yml are read as YAML; anything else is read as TOML.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration, mirroring the file sections.
type Config struct {
	Logging LoggingConfig `toml:"logging" yaml:"logging" json:"logging"`
	Stream  StreamConfig  `toml:"stream"  yaml:"stream"  json:"stream"`
	Buffer  BufferConfig  `toml:"buffer"  yaml:"buffer"  json:"buffer"`
	UI      UIConfig      `toml:"ui"      yaml:"ui"      json:"ui"`
	Server  ServerConfig  `toml:"server"  yaml:"server"  json:"server"`
	Feed    FeedConfig    `toml:"feed"    yaml:"feed"    json:"feed"`
}

type LoggingConfig struct {
	Level string `toml:"level" yaml:"level" json:"level"`
}

// StreamConfig controls the reconnecting client.
type StreamConfig struct {
	Endpoint                string `toml:"endpoint"                  yaml:"endpoint"                  json:"endpoint"`
	MaxRetries              int    `toml:"max_retries"               yaml:"max_retries"               json:"max_retries"`
	BaseDelayMS             int    `toml:"base_delay_ms"             yaml:"base_delay_ms"             json:"base_delay_ms"`
	MaxDelayMS              int    `toml:"max_delay_ms"              yaml:"max_delay_ms"              json:"max_delay_ms"`
	HandshakeTimeoutSeconds int    `toml:"handshake_timeout_seconds" yaml:"handshake_timeout_seconds" json:"handshake_timeout_seconds"`
}

// BufferConfig controls the series buffer.
type BufferConfig struct {
	MaxPoints         int `toml:"max_points"          yaml:"max_points"          json:"max_points"`
	PublishIntervalMS int `toml:"publish_interval_ms" yaml:"publish_interval_ms" json:"publish_interval_ms"`
}

type UIConfig struct {
	AltScreen bool   `toml:"alt_screen" yaml:"alt_screen" json:"alt_screen"`
	LogFile   string `toml:"log_file"   yaml:"log_file"   json:"log_file"`
}

type ServerConfig struct {
	Bind string `toml:"bind" yaml:"bind" json:"bind"`
}

// FeedConfig controls the reference data generator served by livechartd.
type FeedConfig struct {
	IntervalMS int `toml:"interval_ms" yaml:"interval_ms" json:"interval_ms"`
	MaxPoints  int `toml:"max_points"  yaml:"max_points"  json:"max_points"`
}

// Default returns a Config populated with sane defaults. Values here are
// used whenever the file omits a field.
func Default() Config {
	return Config{
		Logging: LoggingConfig{
			Level: "info",
		},
		Stream: StreamConfig{
			Endpoint:                "ws://localhost:8004",
			MaxRetries:              5,
			BaseDelayMS:             1000,
			MaxDelayMS:              16000,
			HandshakeTimeoutSeconds: 10,
		},
		Buffer: BufferConfig{
			MaxPoints:         1000,
			PublishIntervalMS: 16,
		},
		UI: UIConfig{
			AltScreen: true,
			LogFile:   "",
		},
		Server: ServerConfig{
			Bind: "0.0.0.0:8004",
		},
		Feed: FeedConfig{
			IntervalMS: 100,
			MaxPoints:  1000,
		},
	}
}

// Load reads the file at path, layers it on top of the defaults, and
// validates the result. An empty path yields the validated defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, validate(cfg)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &cfg)
	default:
		err = toml.Unmarshal(b, &cfg)
	}
	if err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}

	if err := validate(cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// Validate checks a Config assembled outside Load, e.g. after flag overrides.
func Validate(cfg Config) error {
	return validate(cfg)
}

func validate(cfg Config) error {
	switch cfg.Logging.Level {
	case "debug", "info", "error":
	default:
		return errors.New("logging.level must be one of debug, info, error")
	}
	if cfg.Stream.MaxRetries < 0 {
		return errors.New("stream.max_retries must be >= 0")
	}
	if cfg.Stream.BaseDelayMS < 1 {
		return errors.New("stream.base_delay_ms must be >= 1")
	}
	if cfg.Stream.MaxDelayMS < cfg.Stream.BaseDelayMS {
		return errors.New("stream.max_delay_ms must be >= stream.base_delay_ms")
	}
	if cfg.Stream.HandshakeTimeoutSeconds < 1 {
		return errors.New("stream.handshake_timeout_seconds must be >= 1")
	}
	if cfg.Buffer.MaxPoints < 1 {
		return errors.New("buffer.max_points must be >= 1")
	}
	if cfg.Buffer.PublishIntervalMS < 1 {
		return errors.New("buffer.publish_interval_ms must be >= 1")
	}
	if cfg.Server.Bind == "" {
		return errors.New("server.bind must not be empty")
	}
	if cfg.Feed.IntervalMS < 1 {
		return errors.New("feed.interval_ms must be >= 1")
	}
	if cfg.Feed.MaxPoints < 1 {
		return errors.New("feed.max_points must be >= 1")
	}
	return nil
}

// Debug reports whether per-message logging is enabled.
func (c LoggingConfig) Debug() bool { return c.Level == "debug" }

func (c StreamConfig) BaseDelay() time.Duration {
	return time.Duration(c.BaseDelayMS) * time.Millisecond
}

func (c StreamConfig) MaxDelay() time.Duration {
	return time.Duration(c.MaxDelayMS) * time.Millisecond
}

func (c StreamConfig) HandshakeTimeout() time.Duration {
	return time.Duration(c.HandshakeTimeoutSeconds) * time.Second
}

func (c BufferConfig) PublishInterval() time.Duration {
	return time.Duration(c.PublishIntervalMS) * time.Millisecond
}

func (c FeedConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMS) * time.Millisecond
}
