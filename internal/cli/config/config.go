// Package config loads the executor CLI settings from YAML with environment
// overrides. Command-line flags are applied on top by the caller.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultBaseURL = "http://127.0.0.1:8090"
	// DefaultTimeout covers a full grading request with compilation.
	DefaultTimeout = 2 * time.Minute
)

// Config holds CLI configuration.
type Config struct {
	BaseURL string        `yaml:"baseURL" env:"EXECUTOR_CLI_BASE_URL"`
	Timeout time.Duration `yaml:"timeout" env:"EXECUTOR_CLI_TIMEOUT"`
	// PrettyJSON indents raw JSON output; unset means true.
	PrettyJSON *bool `yaml:"prettyJSON"`
	// JSON prints raw responses instead of the formatted report.
	JSON    bool `yaml:"json"`
	NoColor bool `yaml:"noColor" env:"EXECUTOR_CLI_NO_COLOR"`
}

// Load reads path, applies environment overrides and fills defaults. A
// missing file is not an error.
func Load(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return cfg, fmt.Errorf("read config file failed: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file %s failed: %w", path, err)
		}
	}
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return cfg, fmt.Errorf("read env overrides failed: %w", err)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.PrettyJSON == nil {
		pretty := true
		cfg.PrettyJSON = &pretty
	}
	return cfg, cfg.Validate()
}

// Validate checks the settings after overrides and normalizes BaseURL.
func (c *Config) Validate() error {
	u, err := url.Parse(strings.TrimSpace(c.BaseURL))
	if err != nil {
		return fmt.Errorf("invalid baseURL %q: %w", c.BaseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid baseURL %q: scheme must be http or https", c.BaseURL)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid baseURL %q: missing host", c.BaseURL)
	}
	if u.RawQuery != "" || u.Fragment != "" {
		return fmt.Errorf("invalid baseURL %q: query and fragment are not allowed", c.BaseURL)
	}
	c.BaseURL = strings.TrimRight(u.String(), "/")
	if c.Timeout < 0 {
		return fmt.Errorf("invalid timeout %s: must not be negative", c.Timeout)
	}
	return nil
}

// Pretty reports whether raw JSON output is indented.
func (c Config) Pretty() bool {
	return c.PrettyJSON == nil || *c.PrettyJSON
}
