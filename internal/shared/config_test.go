package shared

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Storage.Backend != "s3" {
			t.Errorf("expected storage backend s3, got %s", config.Storage.Backend)
		}

		if config.Assign.Deadline.Duration != 3*time.Hour {
			t.Errorf("expected deadline 3h, got %s", config.Assign.Deadline.Duration)
		}

		if config.Marketplace.RequestsPerSecond != 2.0 {
			t.Errorf("expected 2 requests per second, got %v", config.Marketplace.RequestsPerSecond)
		}

		if err := config.Validate(); err != nil {
			t.Errorf("embedded default config should validate: %v", err)
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		if config.Project.ID != DefaultConfig().Project.ID {
			t.Errorf("created config project id doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig TOML", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")

		testConfig := `[project]
id = "interview-42"
dir = "/data/interview-42"

[storage]
backend = "sftp"
url = "https://files.example.org/tp"

[storage.sftp]
host = "files.example.org"
user = "tp"
path = "/srv/tp"
timeout = "10s"

[assign]
deadline = "45m"
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Project.ID != "interview-42" {
			t.Errorf("expected project id interview-42, got %s", config.Project.ID)
		}
		if config.Storage.SFTP.Timeout.Duration != 10*time.Second {
			t.Errorf("expected sftp timeout 10s, got %s", config.Storage.SFTP.Timeout.Duration)
		}
		if config.Assign.Deadline.Duration != 45*time.Minute {
			t.Errorf("expected deadline 45m, got %s", config.Assign.Deadline.Duration)
		}
		if config.Assign.RewardCents != 75 {
			t.Errorf("expected default reward to survive, got %d", config.Assign.RewardCents)
		}
		if config.RowsPath() != filepath.Join("/data/interview-42", "data", "rows.csv") {
			t.Errorf("unexpected rows path %s", config.RowsPath())
		}
		if config.CachePath() != filepath.Join("/data/interview-42", "data", "cache.db") {
			t.Errorf("unexpected cache path %s", config.CachePath())
		}
		if config.TranscriptPath("md") != filepath.Join("/data/interview-42", "transcript.md") {
			t.Errorf("unexpected transcript path %s", config.TranscriptPath("md"))
		}
		if config.Storage.SFTP.KnownHosts != "~/.ssh/known_hosts" {
			t.Errorf("expected default known_hosts, got %s", config.Storage.SFTP.KnownHosts)
		}
	})

	t.Run("LoadConfig YAML", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.yaml")

		testConfig := `project:
  id: yaml-project
  dir: /tmp/yaml-project
assign:
  lifetime: 24h
cache:
  path: /tmp/shared-cache.db
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Project.ID != "yaml-project" {
			t.Errorf("expected project id yaml-project, got %s", config.Project.ID)
		}
		if config.Assign.Lifetime.Duration != 24*time.Hour {
			t.Errorf("expected lifetime 24h, got %s", config.Assign.Lifetime.Duration)
		}
		if config.CachePath() != "/tmp/shared-cache.db" {
			t.Errorf("expected explicit cache path, got %s", config.CachePath())
		}
	})

	t.Run("LoadConfig missing file", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
		if !errors.Is(err, ErrMissingConfig) {
			t.Errorf("expected ErrMissingConfig, got %v", err)
		}
	})

	t.Run("Validate", func(t *testing.T) {
		tests := []struct {
			name   string
			mutate func(c *Config)
		}{
			{name: "missing project id", mutate: func(c *Config) { c.Project.ID = "" }},
			{name: "unknown backend", mutate: func(c *Config) { c.Storage.Backend = "ftp" }},
			{name: "s3 without bucket", mutate: func(c *Config) { c.Storage.S3.Bucket = "" }},
			{name: "non-http storage url", mutate: func(c *Config) { c.Storage.URL = "s3://bucket" }},
			{name: "zero reward", mutate: func(c *Config) { c.Assign.RewardCents = 0 }},
			{name: "same lookup fields", mutate: func(c *Config) { c.Marketplace.URLField = "project_id" }},
			{name: "bad log level", mutate: func(c *Config) { c.Log.Level = "chatty" }},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				config := DefaultConfig()
				tt.mutate(config)
				if err := config.Validate(); !errors.Is(err, ErrInvalidConfig) {
					t.Errorf("expected ErrInvalidConfig, got %v", err)
				}
			})
		}
	})

	t.Run("LookupFields", func(t *testing.T) {
		if u, p := (MarketplaceConfig{}).LookupFields(); u != "audio_url" || p != "project_id" {
			t.Errorf("expected defaults, got %q %q", u, p)
		}
		if u, p := (MarketplaceConfig{URLField: "clip_url"}).LookupFields(); u != "clip_url" || p != "project_id" {
			t.Errorf("expected clip_url with default project field, got %q %q", u, p)
		}
	})

	t.Run("Duration rejects garbage", func(t *testing.T) {
		var d Duration
		if err := d.UnmarshalText([]byte("soon")); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})
}
