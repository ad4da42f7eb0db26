// Package config provides YAML-based configuration loading for VMC.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level VMC configuration, loaded from vmc.yaml.
type Config struct {
	Lab         string         `yaml:"lab"`
	AudioFolder string         `yaml:"audio_folder"`
	DB          DBConfig       `yaml:"db"`
	Sampling    SamplingConfig `yaml:"sampling"`
	Pool        PoolConfig     `yaml:"pool"`
	API         APIConfig      `yaml:"api"`
	Slack       SlackConfig    `yaml:"slack"`
	Pitch       PitchConfig    `yaml:"pitch"`
}

// DBConfig holds connection settings for the MySQL-compatible SQL server.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// SamplingConfig controls how many intervals the segment selector promotes.
type SamplingConfig struct {
	HighVolubility   int `yaml:"high_volubility"`
	RandomSupplement int `yaml:"random_supplement"`
}

// PoolConfig controls the coding assignment engine.
type PoolConfig struct {
	LeaseTimeout  time.Duration `yaml:"lease_timeout"`
	SweepSchedule string        `yaml:"sweep_schedule"`
}

// UnmarshalYAML accepts lease_timeout as a duration string ("1h", "90m").
func (p *PoolConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		LeaseTimeout  string `yaml:"lease_timeout"`
		SweepSchedule string `yaml:"sweep_schedule"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if raw.LeaseTimeout != "" {
		d, err := time.ParseDuration(raw.LeaseTimeout)
		if err != nil {
			return fmt.Errorf("parse pool.lease_timeout %q: %w", raw.LeaseTimeout, err)
		}
		p.LeaseTimeout = d
	}
	p.SweepSchedule = raw.SweepSchedule
	return nil
}

// APIConfig holds the coder-facing HTTP server settings.
type APIConfig struct {
	Listen string `yaml:"listen"`
}

// SlackConfig holds optional notification settings. An empty webhook URL
// disables notifications.
type SlackConfig struct {
	WebhookURL string `yaml:"webhook_url"`
	Channel    string `yaml:"channel"`
}

// PitchConfig names the external pitch estimator executable.
type PitchConfig struct {
	Command string `yaml:"command"`
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.DB.Host == "" {
		c.DB.Host = "127.0.0.1"
	}
	if c.DB.Port == 0 {
		c.DB.Port = 3306
	}
	if c.DB.User == "" {
		c.DB.User = "root"
	}
	if c.DB.Database == "" && c.Lab != "" {
		c.DB.Database = "vmc_" + c.Lab
	}
	if c.Sampling.HighVolubility == 0 {
		c.Sampling.HighVolubility = 10
	}
	if c.Sampling.RandomSupplement == 0 {
		c.Sampling.RandomSupplement = 20
	}
	if c.Pool.LeaseTimeout == 0 {
		c.Pool.LeaseTimeout = time.Hour
	}
	if c.Pool.SweepSchedule == "" {
		c.Pool.SweepSchedule = "0 * * * *"
	}
	if c.API.Listen == "" {
		c.API.Listen = "127.0.0.1:8990"
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	if c.Lab == "" {
		errs = append(errs, "lab is required")
	}
	if c.AudioFolder == "" {
		errs = append(errs, "audio_folder is required")
	}
	if c.Sampling.HighVolubility < 0 || c.Sampling.RandomSupplement < 0 {
		errs = append(errs, "sampling counts must not be negative")
	}
	if c.Pool.LeaseTimeout < time.Minute {
		errs = append(errs, "pool.lease_timeout must be at least one minute")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
