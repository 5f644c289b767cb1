// Package config provides YAML configuration parsing for swarmdeck.
//
// This package enables running swarmdeck as a standalone binary with a
// configuration file, as an alternative to the programmatic SDK approach.
//
// Example configuration:
//
//	title: Agent Village Ops
//	port: 8080
//	api_base: ${SWARM_API_BASE:-http://localhost:8000/api}
//
//	headers:
//	  Authorization: Bearer ${SWARM_API_TOKEN}
//
//	feeds:
//	  live:
//	    interval: 5s
//	  chat:
//	    interval: 3s
//	  evaluator:
//	    interval: 10s
//
//	agents:
//	  - id: agent-1
//	    stream_url: http://streams.local/agent-1/vnc.html?autoconnect=true
package config

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// interval bounds for production configs. The lower bound prevents
// accidental DoS of the backend with overly aggressive polling.
const (
	minInterval = 1 * time.Second
	maxInterval = 1 * time.Hour
)

// builtinFeeds are the feed keys the feeds section may configure.
var builtinFeeds = []string{"live", "chat", "evaluator"}

// Config is the root configuration structure for swarmdeck.
//
// It maps directly to the YAML configuration file structure.
// Use [Load] or [Parse] to create a Config from YAML.
type Config struct {
	// Title is the dashboard title. Defaults to "Swarmdeck" if not set.
	Title string `yaml:"title"`

	// Port is the HTTP server port. Defaults to 8080.
	Port int `yaml:"port"`

	// APIBase is the backend API base URL all feed paths are joined to.
	// Supports environment variable substitution: ${VAR} or ${VAR:-default}
	APIBase string `yaml:"api_base"`

	// Headers are custom HTTP headers sent with every feed fetch.
	// Values support environment variable substitution.
	Headers map[string]string `yaml:"headers"`

	// Feeds tunes the built-in feeds by key ("live", "chat",
	// "evaluator"). Feeds not listed run at their defaults.
	Feeds map[string]FeedConfig `yaml:"feeds"`

	// Agents pre-registers stream viewports for a fixed fleet.
	Agents []AgentConfig `yaml:"agents"`
}

// FeedConfig tunes one built-in feed.
type FeedConfig struct {
	// Interval is the feed's refresh interval.
	// Accepts duration strings like "5s", "1m", "500ms".
	// Must be between 1s and 1h if set.
	Interval Duration `yaml:"interval"`

	// Timeout is the per-request timeout. Defaults to 10s.
	Timeout Duration `yaml:"timeout"`

	// Enabled turns the feed off when set to false. Defaults to true.
	Enabled *bool `yaml:"enabled"`
}

// AgentConfig pre-registers one agent's stream viewport.
type AgentConfig struct {
	// ID is the agent identifier (e.g. "agent-1").
	ID string `yaml:"id"`

	// StreamURL is the agent's live desktop stream URL.
	// Supports environment variable substitution.
	StreamURL string `yaml:"stream_url"`
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

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
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
		// submatches[2] is ":-..." (non-empty if default syntax was used)
		// submatches[3] is the actual default value (may be empty for ${VAR:-})
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
// Environment variables in the file are expanded before parsing.
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
// Environment variables are expanded in APIBase, Header, and StreamURL
// values. The default port (8080) is applied when unset.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if cfg.Port == 0 {
		cfg.Port = 8080
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

	if c.APIBase == "" {
		return fmt.Errorf("api_base is required")
	}
	expanded, err := expandEnvVars(c.APIBase)
	if err != nil {
		return fmt.Errorf("api_base: %w", err)
	}
	c.APIBase = expanded
	if err := validateHTTPURL(c.APIBase); err != nil {
		return fmt.Errorf("api_base: %w", err)
	}

	for k, v := range c.Headers {
		expanded, err := expandEnvVars(v)
		if err != nil {
			return fmt.Errorf("headers[%s]: %w", k, err)
		}
		c.Headers[k] = expanded
	}

	for key, fc := range c.Feeds {
		if !isBuiltinFeed(key) {
			return fmt.Errorf("feeds: unknown feed %q (expected one of %s)", key, strings.Join(builtinFeeds, ", "))
		}
		if fc.Interval != 0 {
			if fc.Interval.Duration() < minInterval {
				return fmt.Errorf("feeds[%s]: interval must be at least %s, got %s", key, minInterval, fc.Interval.Duration())
			}
			if fc.Interval.Duration() > maxInterval {
				return fmt.Errorf("feeds[%s]: interval must not exceed %s, got %s", key, maxInterval, fc.Interval.Duration())
			}
		}
		if fc.Timeout != 0 && fc.Timeout.Duration() < time.Second {
			return fmt.Errorf("feeds[%s]: timeout must be at least 1s if specified, got %s", key, fc.Timeout.Duration())
		}
	}

	seen := make(map[string]struct{}, len(c.Agents))
	for i := range c.Agents {
		a := &c.Agents[i]

		if a.ID == "" {
			return fmt.Errorf("agents[%d]: id is required", i)
		}
		if _, exists := seen[a.ID]; exists {
			return fmt.Errorf("agents[%d]: duplicate agent id %q", i, a.ID)
		}
		seen[a.ID] = struct{}{}

		if a.StreamURL == "" {
			return fmt.Errorf("agents[%d] (%s): stream_url is required", i, a.ID)
		}
		expanded, err := expandEnvVars(a.StreamURL)
		if err != nil {
			return fmt.Errorf("agents[%d] (%s): stream_url: %w", i, a.ID, err)
		}
		a.StreamURL = expanded
		if err := validateHTTPURL(a.StreamURL); err != nil {
			return fmt.Errorf("agents[%d] (%s): stream_url: %w", i, a.ID, err)
		}
	}

	return nil
}

// validateHTTPURL checks a URL parses and carries an http(s) scheme.
func validateHTTPURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if parsed.Scheme == "" {
		return fmt.Errorf("url must have a scheme (http:// or https://)")
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("url scheme must be http or https, got %q", parsed.Scheme)
	}
	return nil
}

// isBuiltinFeed reports whether key names a configurable built-in feed.
func isBuiltinFeed(key string) bool {
	for _, k := range builtinFeeds {
		if k == key {
			return true
		}
	}
	return false
}
