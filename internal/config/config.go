// Package config loads service configuration from a YAML file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Config holds all service settings
type Config struct {
	Database   DatabaseConfig   `yaml:"database"`
	Server     ServerConfig     `yaml:"server"`
	Ingest     IngestConfig     `yaml:"ingest"`
	Detector   DetectorConfig   `yaml:"detector"`
	Compliance ComplianceConfig `yaml:"compliance"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type IngestConfig struct {
	BatchSize int `yaml:"batch_size"`
}

type DetectorConfig struct {
	PageSize int `yaml:"page_size"`
	Workers  int `yaml:"workers"`
}

type ComplianceConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

// UnmarshalYAML accepts durations in time.ParseDuration form ("30s",
// "1m"). An absent or empty timeout keeps the current value.
func (c *ComplianceConfig) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw struct {
		Timeout string `yaml:"timeout"`
	}
	if err := unmarshal(&raw); err != nil {
		return err
	}
	if raw.Timeout == "" {
		return nil
	}
	d, err := time.ParseDuration(raw.Timeout)
	if err != nil {
		return fmt.Errorf("invalid compliance.timeout %q: %w", raw.Timeout, err)
	}
	c.Timeout = d
	return nil
}

// Default returns the built-in configuration
func Default() Config {
	return Config{
		Database:   DatabaseConfig{Path: "vessel_metrics.db"},
		Server:     ServerConfig{Port: 8080},
		Ingest:     IngestConfig{BatchSize: 1000},
		Detector:   DetectorConfig{PageSize: 10000, Workers: 8},
		Compliance: ComplianceConfig{Timeout: 30 * time.Second},
	}
}

// Load reads the config file at path, applying defaults for anything
// unset. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects settings the services cannot run with
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path must not be empty")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Ingest.BatchSize <= 0 {
		return fmt.Errorf("ingest.batch_size must be positive, got %d", c.Ingest.BatchSize)
	}
	if c.Detector.PageSize <= 0 {
		return fmt.Errorf("detector.page_size must be positive, got %d", c.Detector.PageSize)
	}
	if c.Detector.Workers <= 0 {
		return fmt.Errorf("detector.workers must be positive, got %d", c.Detector.Workers)
	}
	if c.Compliance.Timeout <= 0 {
		return fmt.Errorf("compliance.timeout must be positive, got %v", c.Compliance.Timeout)
	}
	return nil
}
