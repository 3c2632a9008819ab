package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "console", cfg.Logger.Format)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, 90*time.Second, cfg.Network.NavigationTimeout)
	assert.Equal(t, 3, cfg.Fetch.MaxRetries)
	assert.Equal(t, 100, cfg.Fetch.MaxURLs)
	assert.Equal(t, "output", cfg.Output.Directory)

	require.NoError(t, cfg.Validate())
}

func TestNewConfigFromViper(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("browser.headless", false)
	v.Set("network.quiet_period", "500ms")
	v.Set("output.directory", "artifacts")

	cfg, err := NewConfigFromViper(v)
	require.NoError(t, err)

	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, 500*time.Millisecond, cfg.Network.QuietPeriod)
	assert.Equal(t, "artifacts", cfg.Output.Directory)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero navigation timeout", func(c *Config) { c.Network.NavigationTimeout = 0 }},
		{"zero retries", func(c *Config) { c.Fetch.MaxRetries = 0 }},
		{"zero max urls", func(c *Config) { c.Fetch.MaxURLs = 0 }},
		{"empty output dir", func(c *Config) { c.Output.Directory = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
