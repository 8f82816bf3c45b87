// Package config loads dp's YAML configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/pankaj-dahiya-devops/dp-gcp/internal/fanout"
)

// Config is the top-level application configuration.
// It is loaded from ~/.config/dp-gcp/config.yaml and must never be
// committed with credentials inlined.
type Config struct {
	GCP       GCPConfig       `yaml:"gcp"       json:"gcp"`
	Log       LogConfig       `yaml:"log"       json:"log"`
	Telemetry TelemetryConfig `yaml:"telemetry" json:"telemetry"`
	Metrics   MetricsConfig   `yaml:"metrics"   json:"metrics"`
}

// GCPConfig holds GCP defaults used when flags are not provided.
type GCPConfig struct {
	// CredentialsFile is a JSON key file. Empty means Application Default
	// Credentials.
	CredentialsFile string `yaml:"credentials_file" json:"credentials_file"`

	// DefaultProject overrides the project embedded in the credentials.
	DefaultProject string `yaml:"default_project" json:"default_project"`

	// Projects limits audits to these projects. Empty means discover.
	Projects []string `yaml:"projects" json:"projects"`

	// MaxConcurrency caps in-flight API calls per service adapter.
	MaxConcurrency int `yaml:"max_concurrency" json:"max_concurrency"`
}

// LogConfig selects the zerolog level and output format.
type LogConfig struct {
	Level  string `yaml:"level"  json:"level"`
	Format string `yaml:"format" json:"format"`
}

// TelemetryConfig configures OTLP trace export.
type TelemetryConfig struct {
	// OTLPEndpoint is host:port of an OTLP gRPC collector. Empty disables
	// tracing.
	OTLPEndpoint string  `yaml:"otlp_endpoint" json:"otlp_endpoint"`
	Insecure     bool    `yaml:"insecure"      json:"insecure"`
	SampleRate   float64 `yaml:"sample_rate"   json:"sample_rate"`
}

// MetricsConfig configures the Prometheus textfile written after each run.
type MetricsConfig struct {
	Textfile string `yaml:"textfile" json:"textfile"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		GCP:       GCPConfig{MaxConcurrency: fanout.DefaultLimit},
		Log:       LogConfig{Level: "info", Format: "json"},
		Telemetry: TelemetryConfig{SampleRate: 1.0},
	}
}

// Validate reports the first out-of-range value.
func (c *Config) Validate() error {
	if c.GCP.MaxConcurrency < 1 {
		return fmt.Errorf("gcp.max_concurrency must be >= 1, got %d", c.GCP.MaxConcurrency)
	}
	if _, err := zerolog.ParseLevel(strings.ToLower(c.Log.Level)); err != nil {
		return fmt.Errorf("log.level %q: %w", c.Log.Level, err)
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "console":
	default:
		return fmt.Errorf("log.format must be json or console, got %q", c.Log.Format)
	}
	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
		return fmt.Errorf("telemetry.sample_rate must be within [0, 1], got %v", c.Telemetry.SampleRate)
	}
	return nil
}

// Loader is the interface for reading Config from disk.
// Default implementation reads from ~/.config/dp-gcp/config.yaml.
type Loader interface {
	// Load reads and parses the configuration file. Callers validate after
	// merging flag overrides.
	Load() (*Config, error)

	// ConfigPath returns the absolute path to the configuration file.
	ConfigPath() string
}

// FileLoader reads Config from a YAML file. Fields absent from the file keep
// their Default values.
type FileLoader struct {
	Path string
}

// NewFileLoader returns a loader for path, or for DefaultPath when path is
// empty.
func NewFileLoader(path string) *FileLoader {
	if path == "" {
		path = DefaultPath()
	}
	return &FileLoader{Path: path}
}

// DefaultPath returns ~/.config/dp-gcp/config.yaml, falling back to a
// relative path when the home directory cannot be resolved.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".config", "dp-gcp", "config.yaml")
	}
	return filepath.Join(home, ".config", "dp-gcp", "config.yaml")
}

func (l *FileLoader) ConfigPath() string { return l.Path }

// Load returns Default when the file does not exist. It does not validate:
// a bad value in the file may still be overridden by a flag.
func (l *FileLoader) Load() (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(l.Path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config %q: %w", l.Path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %q: %w", l.Path, err)
	}
	return cfg, nil
}
