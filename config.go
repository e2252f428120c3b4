package apmz

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied by DefaultConfig.
const (
	DefaultServerURL   = "http://127.0.0.1:8200"
	DefaultTimeout     = 5 * time.Second
	DefaultEnvironment = "development"
)

// Config contains all the configuration for an agent.
type Config struct {
	// Core settings
	AppName     string `yaml:"app_name"`
	AppVersion  string `yaml:"app_version"`
	ServerURL   string `yaml:"server_url"`
	SecretToken string `yaml:"secret_token"`
	Hostname    string `yaml:"hostname"`
	Environment string `yaml:"environment"`
	// Active switches sending on or off. Nil means on.
	Active  *bool         `yaml:"active"`
	Timeout time.Duration `yaml:"timeout"`

	// Env is the allow-list of environment entries attached to events.
	// Empty reports everything.
	Env []string `yaml:"env"`

	// Diagnostics
	Backtrace      bool `yaml:"backtrace"`
	BacktraceLimit int  `yaml:"backtrace_limit"`

	// Transport settings
	Compress bool `yaml:"compress"`
}

// DefaultConfig returns a config with every optional field set.
// AppName is left empty and must be provided.
func DefaultConfig() Config {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	active := true
	return Config{
		ServerURL:   DefaultServerURL,
		Hostname:    hostname,
		Environment: DefaultEnvironment,
		Active:      &active,
		Timeout:     DefaultTimeout,
	}
}

// LoadConfig reads a YAML config file over DefaultConfig and validates it.
func LoadConfig(path string) (Config, error) {
	cfg, err := ReadConfig(path)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ReadConfig reads a YAML config file over DefaultConfig without validating,
// for callers that apply overrides first.
func ReadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config: %w", err)
	}
	return DecodeConfig(data)
}

// ParseConfig decodes YAML over DefaultConfig and validates the result.
func ParseConfig(data []byte) (Config, error) {
	cfg, err := DecodeConfig(data)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// DecodeConfig decodes YAML over DefaultConfig.
func DecodeConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// Validate reports missing required fields.
func (c Config) Validate() error {
	if c.AppName == "" {
		return ErrMissingAppName
	}
	return nil
}

// Enabled reports whether the agent may send.
func (c Config) Enabled() bool {
	return c.Active == nil || *c.Active
}

// withDefaults fills zero-valued optional fields.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.ServerURL == "" {
		c.ServerURL = def.ServerURL
	}
	if c.Hostname == "" {
		c.Hostname = def.Hostname
	}
	if c.Environment == "" {
		c.Environment = def.Environment
	}
	if c.Timeout <= 0 {
		c.Timeout = def.Timeout
	}
	return c
}
