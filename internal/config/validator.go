package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"
)

// ValidateConfig validates the configuration
func ValidateConfig(cfg *Config) error {
	if err := validateServerConfig(&cfg.Server); err != nil {
		return fmt.Errorf("invalid server config: %w", err)
	}

	if err := validateLoggingConfig(&cfg.Logging); err != nil {
		return fmt.Errorf("invalid logging config: %w", err)
	}

	if err := validateMetricsConfig(&cfg.Metrics); err != nil {
		return fmt.Errorf("invalid metrics config: %w", err)
	}

	if cfg.DefaultProxy != "" {
		if err := validateProxyURL(cfg.DefaultProxy); err != nil {
			return fmt.Errorf("invalid default_proxy: %w", err)
		}
	}

	checkAllowedHosts(cfg.AllowedHosts)

	names := make(map[string]bool, len(cfg.Routes))
	for i, route := range cfg.Routes {
		if err := validateRoute(&route); err != nil {
			return fmt.Errorf("invalid route at index %d (%s): %w", i, route.Name, err)
		}
		if names[route.Name] {
			return fmt.Errorf("duplicate route name: %s", route.Name)
		}
		names[route.Name] = true
	}

	return nil
}

// checkAllowedHosts never fails: patterns are not validated, an ineffective
// one just never matches. Obvious mistakes are logged.
func checkAllowedHosts(hosts []string) {
	if len(hosts) == 0 {
		log.Warn().Msg("allowed_hosts is empty, every request will be rejected")
		return
	}
	for i, h := range hosts {
		if strings.TrimSpace(h) == "" {
			log.Warn().Int("index", i).Msg("empty allowed_hosts entry never matches")
		}
	}
}

func validateServerConfig(cfg *ServerConfig) error {
	if cfg.Addr == "" {
		return fmt.Errorf("addr is required")
	}
	if cfg.ReadTimeout < 0 {
		return fmt.Errorf("read_timeout must be positive")
	}
	if cfg.WriteTimeout < 0 {
		return fmt.Errorf("write_timeout must be positive")
	}
	if cfg.IdleTimeout < 0 {
		return fmt.Errorf("idle_timeout must be positive")
	}
	return nil
}

func validateLoggingConfig(cfg *LoggingConfig) error {
	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[cfg.Level] {
		return fmt.Errorf("invalid level: %s (must be debug, info, warn, or error)", cfg.Level)
	}

	validFormats := map[string]bool{
		"json": true,
		"text": true,
	}
	if !validFormats[cfg.Format] {
		return fmt.Errorf("invalid format: %s (must be json or text)", cfg.Format)
	}

	if cfg.MaxSizeMB < 0 || cfg.MaxBackups < 0 || cfg.MaxAgeDays < 0 {
		return fmt.Errorf("rotation settings must not be negative")
	}

	return nil
}

func validateMetricsConfig(cfg *MetricsConfig) error {
	if !cfg.Enabled {
		return nil
	}
	if !strings.HasPrefix(cfg.Path, "/") {
		return fmt.Errorf("path must start with /: %s", cfg.Path)
	}
	return nil
}

func validateRoute(route *Route) error {
	if route.Name == "" {
		return fmt.Errorf("route name is required")
	}
	if route.Upstream == "" {
		return fmt.Errorf("route upstream is required")
	}
	if strings.Contains(route.Upstream, "://") {
		return fmt.Errorf("upstream must be host:port, got: %s", route.Upstream)
	}
	if !strings.HasPrefix(route.PathPrefix, "/") {
		return fmt.Errorf("path_prefix must start with /: %s", route.PathPrefix)
	}

	if route.Proxy != "" {
		if err := validateProxyURL(route.Proxy); err != nil {
			return fmt.Errorf("invalid proxy URL: %w", err)
		}
	}

	return nil
}

func validateProxyURL(proxyURL string) error {
	u, err := url.Parse(proxyURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("proxy scheme must be http or https, got: %s", u.Scheme)
	}

	if u.Host == "" {
		return fmt.Errorf("proxy host is required")
	}

	return nil
}
