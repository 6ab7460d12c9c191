// config.go: Host configuration with validation and defaults
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package textreplacer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/agilira/argus"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the configuration file used when none is given.
const DefaultConfigFile = "textreplacer.yaml"

// Duration is a time.Duration that reads and writes as a Go duration string
// ("1s", "500ms"). Bare numbers are taken as seconds.
type Duration time.Duration

// Duration returns the value as a time.Duration.
func (d Duration) Duration() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

func (d Duration) MarshalYAML() (interface{}, error) { return d.String(), nil }

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	return d.parse(node.Value)
}

func (d Duration) MarshalJSON() ([]byte, error) { return json.Marshal(d.String()) }

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return d.parse(s)
	}
	var seconds float64
	if err := json.Unmarshal(data, &seconds); err != nil {
		return fmt.Errorf("invalid duration %s", string(data))
	}
	*d = Duration(seconds * float64(time.Second))
	return nil
}

func (d *Duration) parse(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		*d = 0
		return nil
	}
	if parsed, err := time.ParseDuration(s); err == nil {
		*d = Duration(parsed)
		return nil
	}
	var seconds float64
	if _, err := fmt.Sscanf(s, "%g", &seconds); err != nil {
		return fmt.Errorf("invalid duration %q", s)
	}
	*d = Duration(seconds * float64(time.Second))
	return nil
}

// Config is the complete host configuration.
type Config struct {
	OBS       OBSSettings       `json:"obs" yaml:"obs"`
	Sources   []SourceConfig    `json:"sources" yaml:"sources"`
	Plugins   PluginsConfig     `json:"plugins" yaml:"plugins"`
	Scheduler SchedulerSettings `json:"scheduler" yaml:"scheduler"`
	Cache     CacheConfig       `json:"cache" yaml:"cache"`
	Logging   LoggingConfig     `json:"logging" yaml:"logging"`

	// Watch reloads source templates when the file changes
	Watch bool `json:"watch" yaml:"watch"`
}

// OBSSettings holds the control channel connection settings.
type OBSSettings struct {
	Address           string `json:"address" yaml:"address"`
	Password          string `json:"password,omitempty" yaml:"password,omitempty"`
	PasswordProtected bool   `json:"password_protected" yaml:"password_protected"`
}

// SourceConfig is one text source and its template.
type SourceConfig struct {
	Name string `json:"name" yaml:"name"`
	Text string `json:"text" yaml:"text"`
}

// PluginsConfig controls discovery and plugin requests.
type PluginsConfig struct {
	Directory        string                `json:"directory" yaml:"directory"`
	DataDirectory    string                `json:"data_directory,omitempty" yaml:"data_directory,omitempty"`
	Enabled          []string              `json:"enabled" yaml:"enabled"`
	DisableArtifacts bool                  `json:"disable_artifacts" yaml:"disable_artifacts"`
	RequestTimeout   Duration              `json:"request_timeout" yaml:"request_timeout"`
	CircuitBreaker   *CircuitBreakerConfig `json:"circuit_breaker,omitempty" yaml:"circuit_breaker,omitempty"`
}

// SchedulerSettings configures the two periodic activities.
type SchedulerSettings struct {
	RefreshInterval Duration `json:"refresh_interval" yaml:"refresh_interval"`
	ConsoleInterval Duration `json:"console_interval" yaml:"console_interval"`
}

// CacheConfig controls persistence of last known placeholder values.
type CacheConfig struct {
	Persist bool   `json:"persist" yaml:"persist"`
	Path    string `json:"path,omitempty" yaml:"path,omitempty"`
}

// LoggingConfig selects the log level and output format ("console" or "json").
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

// DefaultConfig returns the configuration written on first run.
func DefaultConfig() Config {
	breaker := DefaultCircuitBreakerConfig()
	return Config{
		OBS: OBSSettings{Address: DefaultOBSAddress},
		Sources: []SourceConfig{
			{Name: "Text", Text: "Test: %clock_time%"},
		},
		Plugins: PluginsConfig{
			Directory:      "plugins",
			Enabled:        []string{"clock", "counter"},
			RequestTimeout: Duration(DefaultRequestTimeout),
			CircuitBreaker: &breaker,
		},
		Scheduler: SchedulerSettings{
			RefreshInterval: Duration(DefaultRefreshInterval),
			ConsoleInterval: Duration(DefaultConsoleInterval),
		},
		Cache:   CacheConfig{Persist: true},
		Logging: LoggingConfig{Level: "info", Format: "console"},
	}
}

// ApplyDefaults fills unset values.
func (c *Config) ApplyDefaults() {
	if c.OBS.Address == "" {
		c.OBS.Address = DefaultOBSAddress
	}
	if c.Plugins.Directory == "" {
		c.Plugins.Directory = "plugins"
	}
	if c.Plugins.DataDirectory == "" {
		c.Plugins.DataDirectory = filepath.Join(c.Plugins.Directory, "data")
	}
	if c.Plugins.RequestTimeout == 0 {
		c.Plugins.RequestTimeout = Duration(DefaultRequestTimeout)
	}
	if c.Plugins.CircuitBreaker == nil {
		defaults := DefaultCircuitBreakerConfig()
		c.Plugins.CircuitBreaker = &defaults
	}
	if c.Scheduler.RefreshInterval == 0 {
		c.Scheduler.RefreshInterval = Duration(DefaultRefreshInterval)
	}
	if c.Scheduler.ConsoleInterval == 0 {
		c.Scheduler.ConsoleInterval = Duration(DefaultConsoleInterval)
	}
	if c.Cache.Path == "" {
		c.Cache.Path = filepath.Join(c.Plugins.DataDirectory, "placeholder_cache.db")
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
}

var validLogLevels = map[string]bool{
	"trace": true, "debug": true, "info": true, "warn": true,
	"error": true, "fatal": true, "panic": true, "disabled": true,
}

// Validate checks the configuration for values the host cannot run with.
func (c *Config) Validate() error {
	if c.OBS.PasswordProtected && c.OBS.Password == "" {
		return NewConfigValidationError("obs.password_protected is set but obs.password is empty", nil)
	}

	seen := make(map[string]bool, len(c.Sources))
	for i, s := range c.Sources {
		if strings.TrimSpace(s.Name) == "" {
			return NewConfigValidationError(fmt.Sprintf("sources[%d] has no name", i), nil)
		}
		if seen[s.Name] {
			return NewConfigValidationError(fmt.Sprintf("source %q is listed twice", s.Name), nil)
		}
		seen[s.Name] = true
	}

	for i, m := range c.Plugins.Enabled {
		if strings.TrimSpace(m) == "" {
			return NewConfigValidationError(fmt.Sprintf("plugins.enabled[%d] is empty", i), nil)
		}
	}

	if c.Plugins.RequestTimeout < 0 {
		return NewConfigValidationError("plugins.request_timeout must not be negative", nil)
	}
	if cb := c.Plugins.CircuitBreaker; cb != nil {
		if cb.FailureThreshold < 0 || cb.SuccessThreshold < 0 || cb.RecoveryTimeout < 0 {
			return NewConfigValidationError("plugins.circuit_breaker values must not be negative", nil)
		}
	}
	if c.Scheduler.RefreshInterval < 0 || c.Scheduler.ConsoleInterval < 0 {
		return NewConfigValidationError("scheduler intervals must not be negative", nil)
	}

	if c.Logging.Level != "" && !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return NewConfigValidationError(fmt.Sprintf("unknown log level %q", c.Logging.Level), nil)
	}
	switch c.Logging.Format {
	case "", "console", "json":
	default:
		return NewConfigValidationError(fmt.Sprintf("unknown log format %q", c.Logging.Format), nil)
	}
	return nil
}

// Templates returns source name to template text, in file order.
func (c *Config) Templates() []SourceConfig {
	return append([]SourceConfig(nil), c.Sources...)
}

// LoadConfig reads, expands, validates and defaults the configuration at path.
func LoadConfig(path string) (Config, error) {
	var config Config

	data, err := os.ReadFile(path) // #nosec G304 -- path is the operator supplied config file
	if err != nil {
		if os.IsNotExist(err) {
			return config, NewConfigNotFoundError(path)
		}
		return config, NewConfigFileError(path, "read failed", err)
	}

	if err := parseConfig(data, argus.DetectFormat(path), &config); err != nil {
		return config, NewConfigParseError(path, err)
	}
	if err := expandConfigEnvironment(&config); err != nil {
		return config, err
	}
	if err := config.Validate(); err != nil {
		return config, err
	}
	config.ApplyDefaults()
	return config, nil
}

// LoadOrCreateConfig loads path, first writing DefaultConfig there when the
// file does not exist. created reports whether the file was written.
func LoadOrCreateConfig(path string) (config Config, created bool, err error) {
	if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
		if err := WriteConfig(path, DefaultConfig()); err != nil {
			return config, false, err
		}
		created = true
	}
	config, err = LoadConfig(path)
	return config, created, err
}

// WriteConfig writes config to path in the format implied by its extension.
func WriteConfig(path string, config Config) error {
	var (
		data []byte
		err  error
	)
	if argus.DetectFormat(path) == argus.FormatJSON {
		data, err = json.MarshalIndent(config, "", "  ")
	} else {
		data, err = yaml.Marshal(config)
	}
	if err != nil {
		return NewConfigFileError(path, "encode failed", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return NewConfigFileError(path, "create directory failed", err)
		}
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return NewConfigFileError(path, "write failed", err)
	}
	return nil
}

// parseConfig decodes YAML with yaml.v3 and every other format through
// argus, binding the parsed map onto the struct via JSON.
func parseConfig(data []byte, format argus.ConfigFormat, config *Config) error {
	if format == argus.FormatYAML {
		return yaml.Unmarshal(data, config)
	}

	configMap, err := argus.ParseConfig(data, format)
	if err != nil {
		return err
	}
	if configMap == nil {
		return fmt.Errorf("configuration is empty")
	}
	jsonBytes, err := json.Marshal(configMap)
	if err != nil {
		return fmt.Errorf("failed to marshal config map to JSON: %w", err)
	}
	return json.Unmarshal(jsonBytes, config)
}
