// Package config defines the server configuration, its YAML loading and
// validation, and a file watcher for hot reload of tunables.
package config

import (
	"fmt"
	"time"
)

// Default configuration values.
const (
	DefaultHost            = "127.0.0.1"
	DefaultPort            = 8080
	DefaultDispatchTimeout = 10 * time.Second
	DefaultShutdownGrace   = 30 * time.Second
	DefaultRouteCacheSize  = 1000
	DefaultMaxBodyBytes    = 1 << 20
)

// Config is the top-level server configuration.
type Config struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// DispatchTimeout bounds how long a request waits for a handler to
	// resolve its response bridge before a fallback error is returned.
	DispatchTimeout Duration `yaml:"dispatchTimeout"`

	// ShutdownGrace bounds draining of in-flight requests on Stop.
	ShutdownGrace Duration `yaml:"shutdownGrace"`

	// RouteCacheSize is the capacity of the route match LRU cache.
	RouteCacheSize int `yaml:"routeCacheSize"`

	// MaxBodyBytes caps how much of a request body is read into a
	// snapshot.
	MaxBodyBytes int64 `yaml:"maxBodyBytes"`

	Log       LogConfig        `yaml:"log"`
	RateLimit *RateLimitConfig `yaml:"rateLimit,omitempty"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// RateLimitConfig holds optional rate limiting configuration.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerSecond int  `yaml:"requestsPerSecond"`
	Burst             int  `yaml:"burst"`
	PerClient         bool `yaml:"perClient"`
}

// Default returns a Config populated with default values.
func Default() *Config {
	return &Config{
		Host:            DefaultHost,
		Port:            DefaultPort,
		DispatchTimeout: Duration(DefaultDispatchTimeout),
		ShutdownGrace:   Duration(DefaultShutdownGrace),
		RouteCacheSize:  DefaultRouteCacheSize,
		MaxBodyBytes:    DefaultMaxBodyBytes,
		Log: LogConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// ApplyDefaults fills in zero-valued fields with defaults.
func (c *Config) ApplyDefaults() {
	if c.Host == "" {
		c.Host = DefaultHost
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.DispatchTimeout <= 0 {
		c.DispatchTimeout = Duration(DefaultDispatchTimeout)
	}
	if c.ShutdownGrace <= 0 {
		c.ShutdownGrace = Duration(DefaultShutdownGrace)
	}
	if c.RouteCacheSize <= 0 {
		c.RouteCacheSize = DefaultRouteCacheSize
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Log.Output == "" {
		c.Log.Output = "stdout"
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.DispatchTimeout < 0 {
		return fmt.Errorf("dispatchTimeout must not be negative")
	}
	if c.ShutdownGrace < 0 {
		return fmt.Errorf("shutdownGrace must not be negative")
	}
	if c.RouteCacheSize < 0 {
		return fmt.Errorf("routeCacheSize must not be negative")
	}
	if rl := c.RateLimit; rl != nil && rl.Enabled {
		if rl.RequestsPerSecond <= 0 {
			return fmt.Errorf("rateLimit.requestsPerSecond must be positive")
		}
		if rl.Burst <= 0 {
			return fmt.Errorf("rateLimit.burst must be positive")
		}
	}
	return nil
}

// Addr returns the host:port bind address.
func (c *Config) Addr() string {
	host := c.Host
	if host == "" {
		host = DefaultHost
	}
	return fmt.Sprintf("%s:%d", host, c.Port)
}
