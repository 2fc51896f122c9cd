// Package config provides YAML configuration parsing for BreachWatch.
//
// This package enables running BreachWatch as a standalone binary with a
// configuration file, as an alternative to the programmatic SDK approach.
//
// Example configuration:
//
//	title: Family breach monitor
//	port: 8080
//	api_key: ${HIBP_API_KEY}
//
//	emails:
//	  - alice@example.com
//	  - bob@example.com
//
//	update_interval: 15m
//	retry_interval: 5s
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Interval bounds. The floor on update_interval keeps a misconfigured
// instance from burning through the HIBP rate limit; the floor on
// retry_interval keeps startup loops polite.
const (
	minUpdateInterval = 1 * time.Minute
	minRetryInterval  = 1 * time.Second
	minTimeout        = 1 * time.Second
	maxTimeout        = 30 * time.Second
)

var validate = validator.New()

// Config is the root configuration structure for BreachWatch.
//
// It maps directly to the YAML configuration file structure.
// Use [Load] or [Parse] to create a Config from YAML.
type Config struct {
	// Title is the dashboard title. Defaults to "BreachWatch" if not set.
	Title string `yaml:"title"`

	// Port is the HTTP server port. Defaults to 8080.
	Port int `yaml:"port"`

	// APIKey is the HIBP subscription key. Required.
	// Supports environment variable substitution: ${VAR} or ${VAR:-default}
	APIKey string `yaml:"api_key"`

	// Emails lists the monitored addresses. At least one is required.
	Emails []string `yaml:"emails"`

	// BaseURL overrides the breachedaccount endpoint URL. Intended for
	// tests and proxies; defaults to the public HIBP v3 endpoint.
	// Supports environment variable substitution.
	BaseURL string `yaml:"base_url"`

	// UpdateInterval is the standard throttle window between lookups.
	// Accepts duration strings like "15m", "1h". Defaults to 15m.
	UpdateInterval Duration `yaml:"update_interval"`

	// RetryInterval is the forced throttle window used by startup fetch
	// loops. Defaults to 5s.
	RetryInterval Duration `yaml:"retry_interval"`

	// Timeout is the per-request HTTP timeout. Defaults to 5s.
	Timeout Duration `yaml:"timeout"`
}

// Duration wraps time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
// Group 1: variable name
// Group 2: the ":-default" part (if present, indicates a default was specified)
// Group 3: the default value (may be empty for ${VAR:-})
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with
// environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		// already have an error, skip processing
		if firstErr != nil {
			return match
		}

		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		hasDefault := len(submatches) > 2 && submatches[2] != ""
		defaultVal := ""
		if hasDefault && len(submatches) > 3 {
			defaultVal = submatches[3]
		}

		value, exists := os.LookupEnv(varName)
		if !exists {
			if hasDefault {
				return defaultVal
			}
			firstErr = fmt.Errorf("environment variable %q is not set", varName)
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// Load reads and parses a YAML configuration file.
//
// Environment variables in the file are expanded before validation.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration data.
//
// Environment variables are expanded in APIKey and BaseURL. Defaults are
// applied for Port (8080), UpdateInterval (15m), RetryInterval (5s), and
// Timeout (5s).
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.UpdateInterval == 0 {
		cfg.UpdateInterval = Duration(15 * time.Minute)
	}
	if cfg.RetryInterval == 0 {
		cfg.RetryInterval = Duration(5 * time.Second)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = Duration(5 * time.Second)
	}

	if err := cfg.expandAndValidate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// expandAndValidate expands environment variables and validates the config.
func (c *Config) expandAndValidate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}

	if c.APIKey == "" {
		return errors.New("api_key is required")
	}
	expanded, err := expandEnvVars(c.APIKey)
	if err != nil {
		return fmt.Errorf("api_key: %w", err)
	}
	c.APIKey = expanded
	if c.APIKey == "" {
		return errors.New("api_key expanded to an empty string")
	}

	if c.BaseURL != "" {
		expanded, err := expandEnvVars(c.BaseURL)
		if err != nil {
			return fmt.Errorf("base_url: %w", err)
		}
		c.BaseURL = expanded
	}

	if len(c.Emails) == 0 {
		return errors.New("at least one email must be defined")
	}

	seen := make(map[string]struct{}, len(c.Emails))
	for i, email := range c.Emails {
		if err := validate.Var(email, "required,email"); err != nil {
			return fmt.Errorf("emails[%d]: %q is not a valid email address", i, email)
		}
		if _, exists := seen[email]; exists {
			return fmt.Errorf("emails[%d]: duplicate email %q", i, email)
		}
		seen[email] = struct{}{}
	}

	if c.UpdateInterval.Duration() < minUpdateInterval {
		return fmt.Errorf("update_interval must be at least %s, got %s",
			minUpdateInterval, c.UpdateInterval.Duration())
	}

	if c.RetryInterval.Duration() < minRetryInterval {
		return fmt.Errorf("retry_interval must be at least %s, got %s",
			minRetryInterval, c.RetryInterval.Duration())
	}

	if c.RetryInterval.Duration() >= c.UpdateInterval.Duration() {
		return fmt.Errorf("retry_interval (%s) must be shorter than update_interval (%s)",
			c.RetryInterval.Duration(), c.UpdateInterval.Duration())
	}

	if c.Timeout.Duration() < minTimeout || c.Timeout.Duration() > maxTimeout {
		return fmt.Errorf("timeout must be between %s and %s, got %s",
			minTimeout, maxTimeout, c.Timeout.Duration())
	}

	return nil
}
