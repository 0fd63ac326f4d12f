package shared

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML (or YAML) file.
type Config struct {
	Project     ProjectConfig     `toml:"project" yaml:"project"`
	Storage     StorageConfig     `toml:"storage" yaml:"storage"`
	Marketplace MarketplaceConfig `toml:"marketplace" yaml:"marketplace"`
	Assign      AssignConfig      `toml:"assign" yaml:"assign"`
	Cache       CacheConfig       `toml:"cache" yaml:"cache"`
	Log         LogConfig         `toml:"log" yaml:"log"`
}

// ProjectConfig identifies the project and where its local files live.
type ProjectConfig struct {
	ID  string `toml:"id" yaml:"id"`
	Dir string `toml:"dir" yaml:"dir"`
}

// StorageConfig selects and configures the remote storage backend.
type StorageConfig struct {
	Backend string     `toml:"backend" yaml:"backend"` // "s3" or "sftp"
	URL     string     `toml:"url" yaml:"url"`         // public base URL that stored names are appended to
	S3      S3Config   `toml:"s3" yaml:"s3"`
	SFTP    SFTPConfig `toml:"sftp" yaml:"sftp"`
}

// S3Config contains bucket settings. Credentials come from the default AWS chain.
type S3Config struct {
	Bucket   string `toml:"bucket" yaml:"bucket"`
	Region   string `toml:"region" yaml:"region"`
	Prefix   string `toml:"prefix" yaml:"prefix"`
	Endpoint string `toml:"endpoint" yaml:"endpoint"`
}

// SFTPConfig contains SSH connection settings and the remote directory files are written to.
type SFTPConfig struct {
	Host       string   `toml:"host" yaml:"host"`
	Port       int      `toml:"port" yaml:"port"`
	User       string   `toml:"user" yaml:"user"`
	KeyPath    string   `toml:"key_path" yaml:"key_path"`
	KnownHosts string   `toml:"known_hosts" yaml:"known_hosts"`
	Path       string   `toml:"path" yaml:"path"`
	Timeout    Duration `toml:"timeout" yaml:"timeout"`
}

// MarketplaceConfig contains API settings for the work marketplace.
type MarketplaceConfig struct {
	BaseURL           string  `toml:"base_url" yaml:"base_url"`
	APIKey            string  `toml:"api_key" yaml:"api_key"`
	RequestsPerSecond float64 `toml:"requests_per_second" yaml:"requests_per_second"`
	// URLField and ProjectField name the parameters stashed on each unit. Empty means audio_url and project_id.
	URLField     string `toml:"url_field" yaml:"url_field"`
	ProjectField string `toml:"project_field" yaml:"project_field"`
}

// LookupFields returns the stashed parameter names, defaulted.
func (m MarketplaceConfig) LookupFields() (string, string) {
	urlField, projectField := m.URLField, m.ProjectField
	if urlField == "" {
		urlField = "audio_url"
	}
	if projectField == "" {
		projectField = "project_id"
	}
	return urlField, projectField
}

// AssignConfig describes the work units created for a project.
type AssignConfig struct {
	Title          string   `toml:"title" yaml:"title"`
	Description    string   `toml:"description" yaml:"description"`
	Keywords       []string `toml:"keywords" yaml:"keywords"`
	RewardCents    int      `toml:"reward_cents" yaml:"reward_cents"`
	Lifetime       Duration `toml:"lifetime" yaml:"lifetime"`
	Deadline       Duration `toml:"deadline" yaml:"deadline"`
	Approval       Duration `toml:"approval" yaml:"approval"`
	MaxAssignments int      `toml:"max_assignments" yaml:"max_assignments"`
}

// CacheConfig points at the lifecycle cache database.
type CacheConfig struct {
	Path string `toml:"path" yaml:"path"`
}

// LogConfig contains logger settings.
type LogConfig struct {
	Level string `toml:"level" yaml:"level"`
}

// Duration is a [time.Duration] that decodes from strings like "3h" in both TOML and YAML.
type Duration struct {
	time.Duration
}

// UnmarshalText implements [encoding.TextUnmarshaler] (used by the TOML decoder).
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("%w: bad duration %q", ErrInvalidConfig, string(text))
	}
	d.Duration = parsed
	return nil
}

// MarshalText implements [encoding.TextMarshaler].
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// UnmarshalYAML implements [yaml.Unmarshaler].
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	return d.UnmarshalText([]byte(node.Value))
}

// LoadConfig reads, parses and validates a configuration file from the specified path.
//
// Files ending in .yaml or .yml are decoded as YAML, anything else as TOML.
// Values missing from the file keep the defaults of [DefaultConfig].
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrMissingConfig, path)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, config)
	default:
		err = toml.Unmarshal(data, config)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks the configuration once at load time so later code can rely on typed accessors.
func (c *Config) Validate() error {
	if c.Project.ID == "" {
		return fmt.Errorf("%w: project.id is required", ErrInvalidConfig)
	}
	if c.Project.Dir == "" {
		return fmt.Errorf("%w: project.dir is required", ErrInvalidConfig)
	}

	switch c.Storage.Backend {
	case "s3":
		if c.Storage.S3.Bucket == "" {
			return fmt.Errorf("%w: storage.s3.bucket is required", ErrInvalidConfig)
		}
	case "sftp":
		if c.Storage.SFTP.Host == "" || c.Storage.SFTP.User == "" {
			return fmt.Errorf("%w: storage.sftp.host and storage.sftp.user are required", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: storage.backend must be s3 or sftp, got %q", ErrInvalidConfig, c.Storage.Backend)
	}
	if !strings.HasPrefix(c.Storage.URL, "http://") && !strings.HasPrefix(c.Storage.URL, "https://") {
		return fmt.Errorf("%w: storage.url must be an http(s) URL", ErrInvalidConfig)
	}

	if c.Marketplace.BaseURL == "" {
		return fmt.Errorf("%w: marketplace.base_url is required", ErrInvalidConfig)
	}
	if c.Marketplace.RequestsPerSecond < 0 {
		return fmt.Errorf("%w: marketplace.requests_per_second must not be negative", ErrInvalidConfig)
	}
	if urlField, projectField := c.Marketplace.LookupFields(); urlField == projectField {
		return fmt.Errorf("%w: marketplace.url_field and marketplace.project_field must differ", ErrInvalidConfig)
	}

	if c.Assign.RewardCents <= 0 {
		return fmt.Errorf("%w: assign.reward_cents must be positive", ErrInvalidConfig)
	}
	if c.Assign.Deadline.Duration <= 0 || c.Assign.Lifetime.Duration <= 0 {
		return fmt.Errorf("%w: assign.deadline and assign.lifetime must be positive", ErrInvalidConfig)
	}

	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: log.level: %v", ErrInvalidConfig, err)
	}

	return nil
}

// RowsPath returns the project record file.
func (c *Config) RowsPath() string {
	return filepath.Join(c.Project.Dir, "data", "rows.csv")
}

// AudioDir returns the directory holding local audio chunks.
func (c *Config) AudioDir() string {
	return filepath.Join(c.Project.Dir, "audio")
}

// TranscriptPath returns the assembled transcript file for the given extension ("md" or "txt").
func (c *Config) TranscriptPath(ext string) string {
	return filepath.Join(c.Project.Dir, "transcript."+ext)
}

// CachePath returns the lifecycle cache database, defaulting to a file in the project directory.
func (c *Config) CachePath() string {
	if c.Cache.Path != "" {
		return c.Cache.Path
	}
	return filepath.Join(c.Project.Dir, "data", "cache.db")
}

// LogLevel returns the parsed log level. Validate has already rejected bad values.
func (c *Config) LogLevel() log.Level {
	ll, err := log.ParseLevel(c.Log.Level)
	if err != nil {
		return log.InfoLevel
	}
	return ll
}
