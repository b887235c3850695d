// Package config holds the pipeline configuration loaded once at
// initialization. There is no dynamic reconfiguration mid-session.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Channels toggles the notification delivery channels.
type Channels struct {
	InApp   bool `yaml:"in_app" json:"in_app"`
	Desktop bool `yaml:"desktop" json:"desktop"`
	Sound   bool `yaml:"sound" json:"sound"`
}

// Config is the full pipeline configuration.
type Config struct {
	// Endpoint is the outbound delivery URL. Empty with LocalMode false
	// means delivery failures are immediate (useful in tests).
	Endpoint string `yaml:"endpoint" json:"endpoint"`

	// LocalMode routes every batch to the durable local history instead
	// of the network.
	LocalMode bool `yaml:"local_mode" json:"local_mode"`

	BatchSize       int           `yaml:"batch_size" json:"batch_size"`
	FlushInterval   time.Duration `yaml:"flush_interval" json:"flush_interval"`
	SessionTimeout  time.Duration `yaml:"session_timeout" json:"session_timeout"`
	MaxRetries      int           `yaml:"max_retries" json:"max_retries"`
	LocalHistoryCap int           `yaml:"local_history_cap" json:"local_history_cap"`

	// Gzip enables Content-Encoding: gzip on outbound batches.
	Gzip bool `yaml:"gzip" json:"gzip"`

	MaxNotifications int      `yaml:"max_notifications" json:"max_notifications"`
	Channels         Channels `yaml:"channels" json:"channels"`

	// StoreDir is the durable store directory. Empty selects an
	// in-memory store.
	StoreDir string `yaml:"store_dir" json:"store_dir"`
}

// Default returns the configuration used when a field is unset.
func Default() Config {
	return Config{
		BatchSize:        50,
		FlushInterval:    30 * time.Second,
		SessionTimeout:   30 * time.Minute,
		MaxRetries:       5,
		LocalHistoryCap:  100,
		MaxNotifications: 50,
		Channels:         Channels{InApp: true},
	}
}

// Load reads a yaml config file and applies defaults for unset fields.
// An empty path returns Default().
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// UnmarshalYAML decodes the config, accepting durations in
// time.ParseDuration format ("30s", "5m").
func (c *Config) UnmarshalYAML(value *yaml.Node) error {
	type alias struct {
		Endpoint         string   `yaml:"endpoint"`
		LocalMode        bool     `yaml:"local_mode"`
		BatchSize        int      `yaml:"batch_size"`
		FlushInterval    string   `yaml:"flush_interval"`
		SessionTimeout   string   `yaml:"session_timeout"`
		MaxRetries       int      `yaml:"max_retries"`
		LocalHistoryCap  int      `yaml:"local_history_cap"`
		Gzip             bool     `yaml:"gzip"`
		MaxNotifications int      `yaml:"max_notifications"`
		Channels         Channels `yaml:"channels"`
		StoreDir         string   `yaml:"store_dir"`
	}
	// Seed from the current value so fields absent from the document keep
	// their defaults.
	a := alias{
		Endpoint:         c.Endpoint,
		LocalMode:        c.LocalMode,
		BatchSize:        c.BatchSize,
		MaxRetries:       c.MaxRetries,
		LocalHistoryCap:  c.LocalHistoryCap,
		Gzip:             c.Gzip,
		MaxNotifications: c.MaxNotifications,
		Channels:         c.Channels,
		StoreDir:         c.StoreDir,
	}
	if err := value.Decode(&a); err != nil {
		return err
	}

	flushInterval := c.FlushInterval
	if a.FlushInterval != "" {
		d, err := time.ParseDuration(a.FlushInterval)
		if err != nil {
			return fmt.Errorf("flush_interval: %w", err)
		}
		flushInterval = d
	}
	sessionTimeout := c.SessionTimeout
	if a.SessionTimeout != "" {
		d, err := time.ParseDuration(a.SessionTimeout)
		if err != nil {
			return fmt.Errorf("session_timeout: %w", err)
		}
		sessionTimeout = d
	}

	*c = Config{
		Endpoint:         a.Endpoint,
		LocalMode:        a.LocalMode,
		BatchSize:        a.BatchSize,
		FlushInterval:    flushInterval,
		SessionTimeout:   sessionTimeout,
		MaxRetries:       a.MaxRetries,
		LocalHistoryCap:  a.LocalHistoryCap,
		Gzip:             a.Gzip,
		MaxNotifications: a.MaxNotifications,
		Channels:         a.Channels,
		StoreDir:         a.StoreDir,
	}
	return nil
}

// ApplyDefaults fills zero-valued fields that must be positive.
func (c *Config) ApplyDefaults() {
	d := Default()
	if c.BatchSize <= 0 {
		c.BatchSize = d.BatchSize
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = d.FlushInterval
	}
	if c.SessionTimeout <= 0 {
		c.SessionTimeout = d.SessionTimeout
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = d.MaxRetries
	}
	if c.LocalHistoryCap <= 0 {
		c.LocalHistoryCap = d.LocalHistoryCap
	}
	if c.MaxNotifications <= 0 {
		c.MaxNotifications = d.MaxNotifications
	}
}

// Validate checks internal consistency.
func (c *Config) Validate() error {
	if !c.LocalMode && c.Endpoint == "" {
		// Allowed: delivery fails and buffers. Still worth flagging the
		// contradictory combination of gzip with no endpoint.
		if c.Gzip {
			return fmt.Errorf("gzip requires an endpoint")
		}
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be positive")
	}
	if c.MaxNotifications <= 0 {
		return fmt.Errorf("max_notifications must be positive")
	}
	return nil
}
