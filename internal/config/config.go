// Package config provides YAML configuration loading and validation for the
// gateway process.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration structure for the gateway.
type Config struct {
	// Binary holds the length-prefixed TCP listener configuration.
	Binary ListenerConfig `yaml:"binary"`

	// HTTP holds the minimal HTTP handler's listener configuration.
	HTTP ListenerConfig `yaml:"http"`

	// Beast holds the net/http+chi based HTTP front-end's configuration.
	Beast BeastConfig `yaml:"beast"`

	// WebSocket holds the WebSocket listener configuration.
	WebSocket ListenerConfig `yaml:"websocket"`

	// UDP holds the UDP session reactor configuration.
	UDP UDPConfig `yaml:"udp"`

	// NumSlaves is the number of slave reactor goroutines each TCP-based
	// master reactor (binary, HTTP, WebSocket) distributes sessions across.
	// Defaults to 4 when omitted.
	NumSlaves int `yaml:"num_slaves"`

	// RequestTimeout is the deadline of each application handler call; a
	// reply that arrives after it is dropped and no reply is sent in its
	// place. Defaults to 5s when omitted.
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// MaxFrameSize caps the size of a single length-prefixed binary frame
	// the gateway will allocate for. Defaults to 16 MiB when omitted.
	MaxFrameSize int `yaml:"max_frame_size"`

	// LogLevel sets the minimum log severity: "debug", "info", "warn", or
	// "error". Defaults to "info" when omitted.
	LogLevel string `yaml:"log_level"`
}

// ListenerConfig is a host/port pair shared by the binary, minimal-HTTP, and
// WebSocket listeners.
type ListenerConfig struct {
	Host string `yaml:"host"`
	Port uint16 `yaml:"port"`
}

// BeastConfig configures the net/http+chi HTTP front-end.
type BeastConfig struct {
	ListenerConfig `yaml:",inline"`

	// RootPath is stripped from incoming request paths before routing.
	// Defaults to "/" when omitted.
	RootPath string `yaml:"root_path"`

	// MaxRequestSize caps the request body size in bytes. Defaults to 1 MiB
	// when omitted.
	MaxRequestSize int64 `yaml:"max_request_size"`
}

// UDPConfig configures the virtual-session UDP reactor.
type UDPConfig struct {
	ListenerConfig `yaml:",inline"`

	// Workers is the number of goroutines driving the shared UDP socket.
	// Defaults to 1 when omitted.
	Workers int `yaml:"workers"`

	// SessionTimeout is how long a virtual UDP session may sit idle before
	// the cleanup sweep removes it. Defaults to 300s when omitted.
	SessionTimeout time.Duration `yaml:"session_timeout"`

	// CleanupInterval is how often the cleanup sweep runs. Defaults to 60s
	// when omitted.
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// LoadConfig reads the YAML file at path, unmarshals it into Config, applies
// defaults, and validates all required fields. It returns a typed error
// describing every validation failure encountered.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: cannot read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: cannot parse %q: %w", path, err)
	}

	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config: validation failed for %q: %w", path, err)
	}

	return &cfg, nil
}

// Default returns a Config populated entirely with the defaults documented
// on each field, as used when no config file is supplied.
func Default() *Config {
	cfg := &Config{
		Binary:    ListenerConfig{Host: "0.0.0.0", Port: 8080},
		HTTP:      ListenerConfig{Host: "0.0.0.0", Port: 8082},
		WebSocket: ListenerConfig{Host: "0.0.0.0", Port: 8081},
	}
	cfg.Beast.Host = "0.0.0.0"
	cfg.Beast.Port = 8083
	cfg.UDP.Host = "0.0.0.0"
	cfg.UDP.Port = 8084
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.NumSlaves == 0 {
		cfg.NumSlaves = 4
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 5 * time.Second
	}
	if cfg.MaxFrameSize == 0 {
		cfg.MaxFrameSize = 16 * 1024 * 1024
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Beast.RootPath == "" {
		cfg.Beast.RootPath = "/"
	}
	if cfg.Beast.MaxRequestSize == 0 {
		cfg.Beast.MaxRequestSize = 1024 * 1024
	}
	if cfg.UDP.Workers == 0 {
		cfg.UDP.Workers = 1
	}
	if cfg.UDP.SessionTimeout == 0 {
		cfg.UDP.SessionTimeout = 300 * time.Second
	}
	if cfg.UDP.CleanupInterval == 0 {
		cfg.UDP.CleanupInterval = 60 * time.Second
	}
}

func validate(cfg *Config) error {
	var errs []error

	if cfg.NumSlaves < 1 {
		errs = append(errs, errors.New("num_slaves must be at least 1"))
	}
	if cfg.MaxFrameSize < 4 {
		errs = append(errs, errors.New("max_frame_size must be at least 4 (the header size)"))
	}
	if cfg.UDP.Workers < 1 {
		errs = append(errs, errors.New("udp.workers must be at least 1"))
	}
	if !validLogLevels[cfg.LogLevel] {
		errs = append(errs, fmt.Errorf("log_level %q must be one of: debug, info, warn, error", cfg.LogLevel))
	}

	return errors.Join(errs...)
}
