package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	v := viper.New()
	SetDefaults(v)

	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8000", cfg.APIBaseURL)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 2*time.Second, cfg.PollInterval)
	assert.Equal(t, 5*time.Second, cfg.StatusInterval)
	assert.False(t, cfg.Verbose)
}

func TestLoad_Overrides(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("api_base_url", "https://lab.internal:8443")
	v.Set("poll_interval", "500ms")

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "https://lab.internal:8443", cfg.APIBaseURL)
	assert.Equal(t, 500*time.Millisecond, cfg.PollInterval)
}

func TestValidate(t *testing.T) {
	base := Config{
		APIBaseURL:     "http://localhost:8000",
		RequestTimeout: time.Second,
		PollInterval:   time.Second,
		StatusInterval: time.Second,
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "empty url", mutate: func(c *Config) { c.APIBaseURL = "" }, wantErr: "api_base_url"},
		{name: "non-http url", mutate: func(c *Config) { c.APIBaseURL = "ftp://x" }, wantErr: "http(s)"},
		{name: "zero poll interval", mutate: func(c *Config) { c.PollInterval = 0 }, wantErr: "poll_interval"},
		{name: "negative status interval", mutate: func(c *Config) { c.StatusInterval = -time.Second }, wantErr: "status_interval"},
		{name: "zero timeout", mutate: func(c *Config) { c.RequestTimeout = 0 }, wantErr: "request_timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}
