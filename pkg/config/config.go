// Package config loads client configuration from file, environment, and
// flags via viper. Environment variables use the AETHERWATCH_ prefix.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the resolved client configuration.
type Config struct {
	// APIBaseURL is the analysis service address.
	APIBaseURL string `mapstructure:"api_base_url"`

	// RequestTimeout bounds each HTTP request.
	RequestTimeout time.Duration `mapstructure:"request_timeout"`

	// PollInterval drives job and finding subscriptions.
	PollInterval time.Duration `mapstructure:"poll_interval"`

	// StatusInterval drives the health subscription. Usually slower than
	// PollInterval since status changes less often.
	StatusInterval time.Duration `mapstructure:"status_interval"`

	// Verbose enables debug logging.
	Verbose bool `mapstructure:"verbose"`
}

// SetDefaults registers the default values on a viper instance. Call
// before binding flags so flags still win.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("api_base_url", "http://localhost:8000")
	v.SetDefault("request_timeout", 30*time.Second)
	v.SetDefault("poll_interval", 2*time.Second)
	v.SetDefault("status_interval", 5*time.Second)
	v.SetDefault("verbose", false)
}

// Load resolves the configuration from the given viper instance.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the client cannot run with.
func (c *Config) Validate() error {
	if c.APIBaseURL == "" {
		return fmt.Errorf("api_base_url must not be empty")
	}
	if !strings.HasPrefix(c.APIBaseURL, "http://") && !strings.HasPrefix(c.APIBaseURL, "https://") {
		return fmt.Errorf("api_base_url must be an http(s) URL, got %q", c.APIBaseURL)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive, got %v", c.PollInterval)
	}
	if c.StatusInterval <= 0 {
		return fmt.Errorf("status_interval must be positive, got %v", c.StatusInterval)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %v", c.RequestTimeout)
	}
	return nil
}
