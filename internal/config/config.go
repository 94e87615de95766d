// Package config loads the optional YAML configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/keanucz/audioconv/internal/formats"
	"github.com/keanucz/audioconv/internal/outdir"
)

// DefaultPath is the config file read when --config is not given.
const DefaultPath = "audioconv.yaml"

// ToolsDirEnv overrides the tools directory.
const ToolsDirEnv = "AUDIOCONV_TOOLS_DIR"

// Config represents the complete application configuration
type Config struct {
	OutputDir       string        `yaml:"output_dir"`
	DefaultFormat   string        `yaml:"default_format"`
	Bitrate         string        `yaml:"bitrate"`
	ToolsDir        string        `yaml:"tools_dir"`
	Sources         []string      `yaml:"sources"`
	DownloadTimeout time.Duration `yaml:"download_timeout"`
	Watch           WatchConfig   `yaml:"watch"`
}

// WatchConfig contains watch mode settings
type WatchConfig struct {
	// Settle is how long a new file must stay unchanged before conversion.
	Settle     time.Duration `yaml:"settle"`
	Extensions []string      `yaml:"extensions"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	cfg := &Config{}
	_ = cfg.Validate()
	return cfg
}

// Load reads and parses the configuration from the specified YAML file. A
// missing file at DefaultPath is not an error; defaults are returned.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) && !explicit {
		cfg := Default()
		cfg.applyEnv()
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	if dir := os.Getenv(ToolsDirEnv); dir != "" {
		c.ToolsDir = dir
	}
}

// Validate fills defaults and rejects values the converter cannot use.
func (c *Config) Validate() error {
	if c.OutputDir == "" {
		c.OutputDir = outdir.DefaultPath
	}
	if c.DefaultFormat == "" {
		c.DefaultFormat = formats.DefaultExt
	}
	if c.Bitrate == "" {
		c.Bitrate = "192k"
	}
	if c.ToolsDir == "" {
		c.ToolsDir = "."
	}
	if c.DownloadTimeout == 0 {
		c.DownloadTimeout = 10 * time.Minute
	}
	if c.Watch.Settle == 0 {
		c.Watch.Settle = 500 * time.Millisecond
	}
	if len(c.Watch.Extensions) == 0 {
		c.Watch.Extensions = []string{".mp4", ".mov", ".avi", ".mkv", ".webm", ".m4v", ".flv"}
	}

	if !formats.Default().IsSupported(c.DefaultFormat) {
		return fmt.Errorf("default_format %q is not a supported format", c.DefaultFormat)
	}
	if c.DownloadTimeout < 0 {
		return fmt.Errorf("download_timeout must be positive")
	}
	return nil
}
