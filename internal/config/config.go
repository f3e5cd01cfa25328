// Package config loads restkit settings from config.yaml and RESTKIT_
// environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultPath is the config file read when no path is given.
const DefaultPath = "config.yaml"

// EnvPrefix prefixes every environment override. Nested keys are separated
// by a double underscore, e.g. RESTKIT_SERVER__PORT.
const EnvPrefix = "RESTKIT_"

type Config struct {
	Server  ServerConfig  `koanf:"server"`
	Matcher MatcherConfig `koanf:"matcher"`
	Request RequestConfig `koanf:"request"`
	Log     LogConfig     `koanf:"log"`
	Tracing TracingConfig `koanf:"tracing"`
	Metrics MetricsConfig `koanf:"metrics"`
}

type ServerConfig struct {
	Port            int           `koanf:"port"`
	Timeout         time.Duration `koanf:"timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// MatcherConfig selects the requests the REST pipeline handles.
type MatcherConfig struct {
	Prefixes    []string `koanf:"prefixes"`
	Whitelist   []string `koanf:"whitelist"`
	Blacklist   []string `koanf:"blacklist"`
	Header      string   `koanf:"header"`
	SubRequests bool     `koanf:"sub_requests"`
}

type RequestConfig struct {
	Formats       []string `koanf:"formats"`
	DefaultFormat string   `koanf:"default_format"`
	MaxBodyBytes  int64    `koanf:"max_body_bytes"`
}

type LogConfig struct {
	Level string `koanf:"level"` // debug, info, warn, error
}

type TracingConfig struct {
	Enabled     bool   `koanf:"enabled"`
	ServiceName string `koanf:"service_name"`
}

type MetricsConfig struct {
	Enabled bool   `koanf:"enabled"`
	Path    string `koanf:"path"`
}

func defaults() map[string]any {
	return map[string]any{
		"server.port":             8080,
		"server.timeout":          "60s",
		"server.shutdown_timeout": "10s",
		"matcher.prefixes":        []string{"/api"},
		"request.formats":         []string{"json", "msgpack", "xml"},
		"request.default_format":  "json",
		"request.max_body_bytes":  10 << 20,
		"log.level":               "info",
		"tracing.enabled":         true,
		"tracing.service_name":    "restkit",
		"metrics.enabled":         true,
		"metrics.path":            "/metrics",
	}
}

var knownFormats = map[string]bool{"json": true, "msgpack": true, "xml": true}

// Load reads the config file at path (DefaultPath when empty), applies
// environment overrides and defaults, and validates the result. A missing
// file is not an error.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}
	k := koanf.New(".")

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	for key, value := range defaults() {
		if !k.Exists(key) {
			if err := k.Set(key, value); err != nil {
				return nil, fmt.Errorf("set default %s: %w", key, err)
			}
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	cfg.Matcher.Header = substituteEnvVars(cfg.Matcher.Header)
	for i := range cfg.Matcher.Prefixes {
		cfg.Matcher.Prefixes[i] = substituteEnvVars(cfg.Matcher.Prefixes[i])
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values koanf cannot type check.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if len(c.Request.Formats) == 0 {
		return errors.New("request.formats must not be empty")
	}
	defaultListed := false
	for _, f := range c.Request.Formats {
		if !knownFormats[f] {
			return fmt.Errorf("request.formats: unknown format %q", f)
		}
		if f == c.Request.DefaultFormat {
			defaultListed = true
		}
	}
	if !defaultListed {
		return fmt.Errorf("request.default_format %q is not in request.formats", c.Request.DefaultFormat)
	}
	if c.Request.MaxBodyBytes <= 0 {
		return errors.New("request.max_body_bytes must be positive")
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// SlogLevel parses the configured log level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// substituteEnvVars replaces ${VAR} with the value of the environment
// variable VAR.
func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
