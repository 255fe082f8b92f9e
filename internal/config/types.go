package config

import "time"

// Config represents the entire application configuration
type Config struct {
	Server       ServerConfig  `yaml:"server"`
	Logging      LoggingConfig `yaml:"logging"`
	Metrics      MetricsConfig `yaml:"metrics"`
	AllowedHosts []string      `yaml:"allowed_hosts"`
	DefaultProxy string        `yaml:"default_proxy"`
	Routes       []Route       `yaml:"routes"`
}

// ServerConfig contains listener settings
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level      string `yaml:"level"`  // debug, info, warn, error
	Format     string `yaml:"format"` // json, text
	Output     string `yaml:"output"` // stdout, stderr, or file path
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// MetricsConfig controls the prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	Path    string `yaml:"path"`
}

// Route sends requests matching Host and PathPrefix to Upstream.
// Host uses the allowed_hosts pattern syntax; empty means any host.
type Route struct {
	Name       string `yaml:"name"`
	Host       string `yaml:"host,omitempty"`
	PathPrefix string `yaml:"path_prefix,omitempty"`
	Upstream   string `yaml:"upstream"`
	Proxy      string `yaml:"proxy,omitempty"`
}
