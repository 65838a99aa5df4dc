package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_EmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")

	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, "vessel_metrics.db", cfg.Database.Path)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 1000, cfg.Ingest.BatchSize)
	assert.Equal(t, 10000, cfg.Detector.PageSize)
	assert.Equal(t, 8, cfg.Detector.Workers)
	assert.Equal(t, 30*time.Second, cfg.Compliance.Timeout)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
database:
  path: /tmp/fleet.db
server:
  port: 9090
detector:
  workers: 16
compliance:
  timeout: 1m
`)

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, "/tmp/fleet.db", cfg.Database.Path)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 16, cfg.Detector.Workers)
	assert.Equal(t, time.Minute, cfg.Compliance.Timeout)
	// untouched sections keep their defaults
	assert.Equal(t, 1000, cfg.Ingest.BatchSize)
	assert.Equal(t, 10000, cfg.Detector.PageSize)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))

	require.Error(t, err)
	assert.ErrorContains(t, err, "failed to read config file")
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := writeConfig(t, "server: [not a mapping")

	_, err := Load(path)

	require.Error(t, err)
	assert.ErrorContains(t, err, "failed to parse config file")
}

func TestLoad_InvalidDuration(t *testing.T) {
	path := writeConfig(t, "compliance:\n  timeout: soon\n")

	_, err := Load(path)

	require.Error(t, err)
	assert.ErrorContains(t, err, "invalid compliance.timeout")
}

func TestValidate_RejectsBadValues(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"empty db path", func(c *Config) { c.Database.Path = "" }, "database.path"},
		{"port too low", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"port too high", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"zero batch size", func(c *Config) { c.Ingest.BatchSize = 0 }, "ingest.batch_size"},
		{"zero page size", func(c *Config) { c.Detector.PageSize = 0 }, "detector.page_size"},
		{"zero workers", func(c *Config) { c.Detector.Workers = 0 }, "detector.workers"},
		{"zero timeout", func(c *Config) { c.Compliance.Timeout = 0 }, "compliance.timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)

			err := cfg.Validate()

			require.Error(t, err)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestValidate_DefaultsAreValid(t *testing.T) {
	cfg := Default()
	assert.NoError(t, cfg.Validate())
}
