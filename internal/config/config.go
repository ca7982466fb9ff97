// Package config loads the bridge configuration from YAML.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Device    DeviceConfig    `yaml:"device"`
	Timing    TimingConfig    `yaml:"timing"`
	Readiness ReadinessConfig `yaml:"readiness"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Store     StoreConfig     `yaml:"store"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	LogLevel  string          `yaml:"log_level"`
}

// DeviceConfig identifies the scale and its handshake quirks.
type DeviceConfig struct {
	// Address is the scale's BLE address (MAC on Linux, UUID on macOS).
	// Compared case-insensitively.
	Address string `yaml:"address"`
	// SendInit writes the legacy Init command before Sync. Some firmware
	// revisions need it, others ignore it.
	SendInit bool `yaml:"send_init"`
}

// TimingConfig holds the poll and session timing constants. They vary
// between firmware and adapter combinations, so none are hard-coded.
type TimingConfig struct {
	PollIntervalSeconds   int `yaml:"poll_interval_seconds"`
	ConnectTimeoutSeconds int `yaml:"connect_timeout_seconds"`
	FrameTimeoutSeconds   int `yaml:"frame_timeout_seconds"`
}

// ReadinessConfig tunes the connectable-window heuristic.
type ReadinessConfig struct {
	ServiceCountThreshold int `yaml:"service_count_threshold"`
}

// MQTTConfig holds the snapshot delivery settings.
type MQTTConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Broker   string `yaml:"broker"`
	Topic    string `yaml:"topic"`
	ClientID string `yaml:"client_id"`
}

// StoreConfig holds the last-snapshot persistence settings.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// MetricsConfig holds the prometheus endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// DefaultConfigDir returns the default config directory path.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "bf700d")
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// Default returns a Config with the values observed on a real BF 700.
func Default() *Config {
	return &Config{
		Device: DeviceConfig{
			SendInit: true,
		},
		Timing: TimingConfig{
			PollIntervalSeconds:   3,
			ConnectTimeoutSeconds: 15,
			FrameTimeoutSeconds:   8,
		},
		Readiness: ReadinessConfig{
			ServiceCountThreshold: 14,
		},
		MQTT: MQTTConfig{
			Enabled:  false,
			Broker:   "tcp://localhost:1883",
			Topic:    "bf700/measurement",
			ClientID: "bf700d",
		},
		Store: StoreConfig{
			Path: filepath.Join(DefaultConfigDir(), "bf700.db"),
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Listen:  ":9465",
		},
		LogLevel: "info",
	}
}

// Load reads and parses a YAML config file. Missing fields are filled
// with defaults. Tilde (~) in store.path is expanded to the user's home
// directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.Store.Path = expandTilde(cfg.Store.Path)

	return cfg, nil
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	if c.Device.Address == "" {
		return fmt.Errorf("device.address must not be empty")
	}

	if c.Timing.PollIntervalSeconds <= 0 {
		return fmt.Errorf("timing.poll_interval_seconds must be > 0")
	}
	if c.Timing.ConnectTimeoutSeconds <= 0 {
		return fmt.Errorf("timing.connect_timeout_seconds must be > 0")
	}
	if c.Timing.FrameTimeoutSeconds <= 0 {
		return fmt.Errorf("timing.frame_timeout_seconds must be > 0")
	}

	if c.Readiness.ServiceCountThreshold <= 0 {
		return fmt.Errorf("readiness.service_count_threshold must be > 0")
	}

	if c.MQTT.Enabled {
		if c.MQTT.Broker == "" {
			return fmt.Errorf("mqtt.broker must not be empty when mqtt is enabled")
		}
		if c.MQTT.Topic == "" {
			return fmt.Errorf("mqtt.topic must not be empty when mqtt is enabled")
		}
	}

	if c.Store.Path == "" {
		return fmt.Errorf("store.path must not be empty")
	}

	if c.Metrics.Enabled && c.Metrics.Listen == "" {
		return fmt.Errorf("metrics.listen must not be empty when metrics are enabled")
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn, or error, got %q", c.LogLevel)
	}

	return nil
}

// PollInterval returns the tick period as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Timing.PollIntervalSeconds) * time.Second
}

// ConnectTimeout returns the connect bound as a duration.
func (c *Config) ConnectTimeout() time.Duration {
	return time.Duration(c.Timing.ConnectTimeoutSeconds) * time.Second
}

// FrameTimeout returns the notification wait bound as a duration.
func (c *Config) FrameTimeout() time.Duration {
	return time.Duration(c.Timing.FrameTimeoutSeconds) * time.Second
}

// expandTilde replaces a leading ~ with the user's home directory.
func expandTilde(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
