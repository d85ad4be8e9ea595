// Package config loads sumup configuration from a YAML file and SUMUP_*
// environment variables. The environment wins over the file; anything left
// unset keeps the value from Default.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/h0rv/sumup/internal/domain"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "SUMUP_"

// Storage drivers.
const (
	StorageMemory = "memory"
	StorageSQLite = "sqlite"
	StorageS3     = "s3"
)

// Card source kinds.
const (
	SourceLocal   = "local"   // YAML board file
	SourceGitHub  = "github"  // GitHub Projects v2
	SourceRequest = "request" // Cards supplied by the host with each request
)

// Config is the top-level sumup configuration.
type Config struct {
	// Board is the default board ID for CLI commands.
	Board string `yaml:"board" env:"BOARD"`

	Server    ServerConfig    `yaml:"server" envPrefix:"SERVER_"`
	Storage   StorageConfig   `yaml:"storage" envPrefix:"STORAGE_"`
	Source    SourceConfig    `yaml:"source" envPrefix:"SOURCE_"`
	Badges    BadgesConfig    `yaml:"badges" envPrefix:"BADGES_"`
	Refresh   RefreshConfig   `yaml:"refresh" envPrefix:"REFRESH_"`
	Log       LogConfig       `yaml:"log" envPrefix:"LOG_"`
	Telemetry TelemetryConfig `yaml:"telemetry" envPrefix:"TELEMETRY_"`
}

// ServerConfig configures the HTTP capability endpoints.
type ServerConfig struct {
	Addr            string        `yaml:"addr" env:"ADDR"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
}

// StorageConfig selects where fields and values are kept.
type StorageConfig struct {
	Driver string       `yaml:"driver" env:"DRIVER"` // memory, sqlite, s3
	SQLite SQLiteConfig `yaml:"sqlite" envPrefix:"SQLITE_"`
	S3     S3Config     `yaml:"s3" envPrefix:"S3_"`
}

// SQLiteConfig configures the SQLite storage driver.
type SQLiteConfig struct {
	Path string `yaml:"path" env:"PATH"`
}

// S3Config configures the S3 storage driver. Endpoint is set for
// S3-compatible services such as MinIO.
type S3Config struct {
	Endpoint     string `yaml:"endpoint" env:"ENDPOINT"`
	Bucket       string `yaml:"bucket" env:"BUCKET"`
	Region       string `yaml:"region" env:"REGION"`
	AccessKey    string `yaml:"access_key" env:"ACCESS_KEY"`
	SecretKey    string `yaml:"secret_key" env:"SECRET_KEY"`
	Prefix       string `yaml:"prefix" env:"PREFIX"`
	UsePathStyle bool   `yaml:"use_path_style" env:"USE_PATH_STYLE"`
	CreateBucket bool   `yaml:"create_bucket" env:"CREATE_BUCKET"`
}

// SourceConfig selects where lists and cards come from.
type SourceConfig struct {
	Kind      string       `yaml:"kind" env:"KIND"` // local, github, request
	BoardFile string       `yaml:"board_file" env:"BOARD_FILE"`
	GitHub    GitHubConfig `yaml:"github" envPrefix:"GITHUB_"`
}

// GitHubConfig selects a GitHub project.
type GitHubConfig struct {
	Owner      string        `yaml:"owner" env:"OWNER"`
	Project    int           `yaml:"project" env:"PROJECT"`
	GroupField string        `yaml:"group_field" env:"GROUP_FIELD"`
	Token      string        `yaml:"token" env:"TOKEN"`
	MaxAge     time.Duration `yaml:"max_age" env:"MAX_AGE"`
}

// BadgesConfig controls badge rendering.
type BadgesConfig struct {
	ValueColor          string        `yaml:"value_color" env:"VALUE_COLOR"`
	SumColor            string        `yaml:"sum_color" env:"SUM_COLOR"`
	ShowFirstCardValues bool          `yaml:"show_first_card_values" env:"SHOW_FIRST_CARD_VALUES"`
	Budget              time.Duration `yaml:"budget" env:"BUDGET"`
	Icon                string        `yaml:"icon" env:"ICON"`
	Concurrency         int           `yaml:"concurrency" env:"CONCURRENCY"`
}

// RefreshConfig controls live updates.
type RefreshConfig struct {
	Interval time.Duration `yaml:"interval" env:"INTERVAL"`
	Debounce time.Duration `yaml:"debounce" env:"DEBOUNCE"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level string `yaml:"level" env:"LEVEL"` // debug, info, warn, error
	File  string `yaml:"file" env:"FILE"`   // Used by the terminal board, which owns stdout
}

// TelemetryConfig controls OpenTelemetry tracing. Tracing is off without an endpoint.
type TelemetryConfig struct {
	Endpoint    string  `yaml:"endpoint" env:"ENDPOINT"`
	ServiceName string  `yaml:"service_name" env:"SERVICE_NAME"`
	Insecure    bool    `yaml:"insecure" env:"INSECURE"`
	SampleRatio float64 `yaml:"sample_ratio" env:"SAMPLE_RATIO"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
		},
		Storage: StorageConfig{
			Driver: StorageMemory,
			SQLite: SQLiteConfig{Path: "sumup.db"},
			S3: S3Config{
				Region: "us-east-1",
				Prefix: "sumup",
			},
		},
		Source: SourceConfig{
			Kind:      SourceLocal,
			BoardFile: "board.yml",
		},
		Badges: BadgesConfig{
			ValueColor:          string(domain.ColorBlue),
			SumColor:            string(domain.ColorGreen),
			ShowFirstCardValues: true,
			Budget:              3 * time.Second,
			Concurrency:         8,
		},
		Refresh: RefreshConfig{
			Interval: 10 * time.Second,
			Debounce: 250 * time.Millisecond,
		},
		Log: LogConfig{
			Level: "info",
			File:  filepath.Join(os.TempDir(), "sumup.log"),
		},
		Telemetry: TelemetryConfig{
			ServiceName: "sumup",
			SampleRatio: 1,
		},
	}
}

// Load reads the YAML file at path over the defaults and applies environment
// overrides. A missing file is not an error; an empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("failed to parse env: %w", err)
	}
	return cfg, nil
}

// Validate reports the first setting that cannot work.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case StorageMemory:
	case StorageSQLite:
		if c.Storage.SQLite.Path == "" {
			return errors.New("storage.sqlite.path is required for the sqlite driver")
		}
	case StorageS3:
		if c.Storage.S3.Bucket == "" {
			return errors.New("storage.s3.bucket is required for the s3 driver")
		}
	default:
		return fmt.Errorf("invalid storage driver: %s (valid: memory, sqlite, s3)", c.Storage.Driver)
	}

	switch c.Source.Kind {
	case SourceRequest:
	case SourceLocal:
		if c.Source.BoardFile == "" {
			return errors.New("source.board_file is required for the local source")
		}
	case SourceGitHub:
		if c.Source.GitHub.Owner == "" || c.Source.GitHub.Project <= 0 {
			return errors.New("source.github.owner and source.github.project are required for the github source")
		}
	default:
		return fmt.Errorf("invalid source kind: %s (valid: local, github, request)", c.Source.Kind)
	}

	for name, color := range map[string]string{
		"badges.value_color": c.Badges.ValueColor,
		"badges.sum_color":   c.Badges.SumColor,
	} {
		if !domain.Color(color).Valid() {
			return fmt.Errorf("invalid %s: %s", name, color)
		}
	}
	if c.Badges.Concurrency < 1 {
		return errors.New("badges.concurrency must be >= 1")
	}
	if c.Refresh.Interval <= 0 {
		return errors.New("refresh.interval must be positive")
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return errors.New("telemetry.sample_ratio must be between 0 and 1")
	}
	return nil
}

// Save writes the configuration as YAML, creating the directory if needed.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
