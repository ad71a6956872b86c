package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"github.com/srg/blesh/internal/command"
	"github.com/srg/blesh/internal/ptybridge"
	"github.com/srg/blesh/internal/session"
	"gopkg.in/yaml.v3"
)

// Output formats accepted for scan results
const (
	FormatTable = "table"
	FormatJSON  = "json"
)

// Config holds application configuration
type Config struct {
	LogLevel string        `yaml:"log_level" default:"panic"`
	Scan     ScanConfig    `yaml:"scan"`
	Connect  ConnectConfig `yaml:"connect"`
	Session  SessionConfig `yaml:"session"`
	Bridge   BridgeConfig  `yaml:"bridge"`
}

type ScanConfig struct {
	Timeout time.Duration `yaml:"timeout" default:"5s"`
	Format  string        `yaml:"format" default:"table"`
}

type ConnectConfig struct {
	Timeout time.Duration `yaml:"timeout" default:"30s"`
}

// SessionConfig holds the settling delays around radio operations
type SessionConfig struct {
	PreScanSettle        time.Duration `yaml:"pre_scan_settle" default:"100ms"`
	PreConnectRescan     time.Duration `yaml:"pre_connect_rescan" default:"500ms"`
	PostDisconnectSettle time.Duration `yaml:"post_disconnect_settle" default:"1s"`
	// NamePatterns are matched case-insensitively against advertised names during scan
	NamePatterns []string `yaml:"name_patterns"`
}

type BridgeConfig struct {
	ChunkSize    int           `yaml:"chunk_size" default:"20"`
	PollInterval time.Duration `yaml:"poll_interval" default:"200ms"`
	BufferSize   int           `yaml:"buffer_size" default:"4096"`
}

// DefaultConfig returns default configuration values
func DefaultConfig() *Config {
	c := &Config{}
	defaults.SetDefaults(c)
	c.Session.NamePatterns = append([]string(nil), session.DefaultNamePatterns...)
	return c
}

// Load reads a YAML config file over the defaults. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	c := DefaultConfig()
	if path == "" {
		return c, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return c, nil
}

// Validate reports the first invalid setting
func (c *Config) Validate() error {
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}

	switch strings.ToLower(c.Scan.Format) {
	case FormatTable, FormatJSON:
	default:
		return fmt.Errorf("scan.format: unsupported format %q (use %s or %s)", c.Scan.Format, FormatTable, FormatJSON)
	}

	durations := map[string]time.Duration{
		"scan.timeout":                   c.Scan.Timeout,
		"connect.timeout":                c.Connect.Timeout,
		"session.pre_scan_settle":        c.Session.PreScanSettle,
		"session.pre_connect_rescan":     c.Session.PreConnectRescan,
		"session.post_disconnect_settle": c.Session.PostDisconnectSettle,
	}
	for name, d := range durations {
		if d < 0 {
			return fmt.Errorf("%s must not be negative, got %s", name, d)
		}
	}

	if c.Bridge.ChunkSize < 1 || c.Bridge.ChunkSize > 512 {
		return fmt.Errorf("bridge.chunk_size must be between 1 and 512, got %d", c.Bridge.ChunkSize)
	}
	if c.Bridge.PollInterval <= 0 {
		return fmt.Errorf("bridge.poll_interval must be positive, got %s", c.Bridge.PollInterval)
	}
	if c.Bridge.BufferSize < c.Bridge.ChunkSize {
		return fmt.Errorf("bridge.buffer_size must be at least chunk_size (%d), got %d", c.Bridge.ChunkSize, c.Bridge.BufferSize)
	}
	return nil
}

// NewLogger creates a configured logger instance
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		level = logrus.PanicLevel
	}
	logger.SetLevel(level)

	// Use structured logging format
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	return logger
}

// SessionOptions maps the session section onto session manager options
func (c *Config) SessionOptions() *session.Options {
	return &session.Options{
		PreScanSettle:        c.Session.PreScanSettle,
		PreConnectRescan:     c.Session.PreConnectRescan,
		PostDisconnectSettle: c.Session.PostDisconnectSettle,
		NamePatterns:         append([]string(nil), c.Session.NamePatterns...),
	}
}

// CommandOptions maps the scan section onto dispatcher options
func (c *Config) CommandOptions() *command.Options {
	return &command.Options{DefaultScanTimeout: c.Scan.Timeout}
}

// BridgeOptions maps the bridge section onto PTY bridge options
func (c *Config) BridgeOptions() *ptybridge.Options {
	return &ptybridge.Options{
		ChunkSize:    c.Bridge.ChunkSize,
		PollInterval: c.Bridge.PollInterval,
		BufferSize:   c.Bridge.BufferSize,
	}
}
