// Package model defines shared configuration and reading structures for the
// JeeLink reader.
package model

import (
	"errors"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the root structure loaded from configs/config.yml.
// Durations are carried as plain integers so the file stays yaml-friendly.
type Config struct {
	Device           string   `yaml:"device"`             // serial device path, e.g. /dev/ttyUSB0
	Baud             int      `yaml:"baud"`               // the JeeLink sketch speaks 57600
	SilenceTimeoutS  int      `yaml:"silence_timeout_s"`  // max gap between frames before the session faults
	InitialBackoffMs int      `yaml:"initial_backoff_ms"` // first reconnect delay after a fault
	MaxBackoffS      int      `yaml:"max_backoff_s"`      // cap for the reconnect delay
	SettleDelayMs    int      `yaml:"settle_delay_ms"`    // wait after init commands (the sketch sends no ack)
	InitCommands     []string `yaml:"init_commands"`      // sketch command lines written on every (re)connect
	MaxFrameLen      int      `yaml:"max_frame_len"`      // longest accepted frame payload in bytes
	MetricsAddr      string   `yaml:"metrics_addr"`       // e.g. ":9100"; empty disables the metrics listener
}

// Defaults for fields left zero in the config file. Baud matches the JeeLink
// v3 firmware; "0a" turns the receiver activity LED off and "v" asks the
// sketch to print its version banner.
const (
	DefaultBaud            = 57600
	DefaultSilenceTimeoutS = 90
	DefaultBackoffMs       = 500
	DefaultMaxBackoffS     = 60
	DefaultSettleDelayMs   = 2000
	DefaultMaxFrameLen     = 256
)

// LoadConfig reads the YAML configuration at path and fills defaults.
func LoadConfig(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, err
	}
	cfg.ApplyDefaults()
	return cfg, nil
}

// ApplyDefaults fills zero-valued fields with their defaults.
func (c *Config) ApplyDefaults() {
	if c.Baud == 0 {
		c.Baud = DefaultBaud
	}
	if c.SilenceTimeoutS == 0 {
		c.SilenceTimeoutS = DefaultSilenceTimeoutS
	}
	if c.InitialBackoffMs == 0 {
		c.InitialBackoffMs = DefaultBackoffMs
	}
	if c.MaxBackoffS == 0 {
		c.MaxBackoffS = DefaultMaxBackoffS
	}
	if c.SettleDelayMs == 0 {
		c.SettleDelayMs = DefaultSettleDelayMs
	}
	if c.MaxFrameLen == 0 {
		c.MaxFrameLen = DefaultMaxFrameLen
	}
	if c.InitCommands == nil {
		c.InitCommands = []string{"0a", "v"}
	}
}

// Validate reports configuration errors that cannot be defaulted away.
func (c *Config) Validate() error {
	if c.Device == "" {
		return errors.New("config: device path is required")
	}
	if c.Baud < 0 || c.MaxFrameLen < 0 {
		return errors.New("config: negative values are not allowed")
	}
	return nil
}

// SilenceTimeout returns the silence timeout as a time.Duration.
func (c *Config) SilenceTimeout() time.Duration {
	return time.Duration(c.SilenceTimeoutS) * time.Second
}

// InitialBackoff returns the first reconnect delay.
func (c *Config) InitialBackoff() time.Duration {
	return time.Duration(c.InitialBackoffMs) * time.Millisecond
}

// MaxBackoff returns the reconnect delay cap.
func (c *Config) MaxBackoff() time.Duration {
	return time.Duration(c.MaxBackoffS) * time.Second
}

// SettleDelay returns the post-configuration settle time.
func (c *Config) SettleDelay() time.Duration {
	return time.Duration(c.SettleDelayMs) * time.Millisecond
}
