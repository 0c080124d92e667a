package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		Server: Server{AuthToken: "secret", MaxUploadSize: "50MB"},
		Probe: Probe{
			PingTimeout:    3 * time.Second,
			DetailsTimeout: 5 * time.Second,
			Workers:        4,
		},
		RateLimit: RateLimit{HardLimitCount: 60, HardLimitWin: time.Minute},
	}
}

func TestValidate_ParsesUploadLimit(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, int64(50_000_000), cfg.Server.UploadLimit)

	cfg.Server.MaxUploadSize = "50MiB"
	require.NoError(t, cfg.Validate())
	assert.Equal(t, int64(50*1024*1024), cfg.Server.UploadLimit)
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing token", func(c *Config) { c.Server.AuthToken = "" }},
		{"bad size", func(c *Config) { c.Server.MaxUploadSize = "lots" }},
		{"zero size", func(c *Config) { c.Server.MaxUploadSize = "0B" }},
		{"zero ping timeout", func(c *Config) { c.Probe.PingTimeout = 0 }},
		{"negative details timeout", func(c *Config) { c.Probe.DetailsTimeout = -time.Second }},
		{"zero rate window", func(c *Config) { c.RateLimit.HardLimitWin = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidate_ClampsWorkers(t *testing.T) {
	cfg := validConfig()
	cfg.Probe.Workers = 0
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 1, cfg.Probe.Workers)
}
