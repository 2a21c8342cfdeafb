package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_parseFlags(t *testing.T) {
	tests := []struct {
		name        string
		args        []string
		check       func(t *testing.T, c *Config)
		expectPanic bool
	}{
		{
			name: "core flags",
			args: []string{"-a", "127.0.0.1:9090", "-d", "db", "-s", "secret", "-r", "redis://r:6379/1"},
			check: func(t *testing.T, c *Config) {
				assert.Equal(t, "127.0.0.1:9090", c.EndpointAddrHTTP)
				assert.Equal(t, "db", c.DatabaseDSN)
				assert.Equal(t, "secret", c.SecretKey)
				assert.Equal(t, "redis://r:6379/1", c.RedisURL)
			},
		},
		{
			name: "repeatable rate limit replaces defaults",
			args: []string{"-rate-limit", "10 per day", "-rate-limit", "2 per hour"},
			check: func(t *testing.T, c *Config) {
				assert.Equal(t, []string{"10 per day", "2 per hour"}, c.RateLimitDefaults)
			},
		},
		{
			name: "durations and cookie",
			args: []string{"-session-lifetime", "10m", "-store-timeout", "2s", "-insecure-cookie"},
			check: func(t *testing.T, c *Config) {
				assert.Equal(t, 10*time.Minute, c.SessionLifetime)
				assert.Equal(t, 2*time.Second, c.StoreTimeout)
				assert.False(t, c.CookieSecure)
			},
		},
		{
			name: "foreign flags are ignored",
			args: []string{"-c", "cfg.json", "-zzz", "1"},
			check: func(t *testing.T, c *Config) {
				assert.Equal(t, ":8080", c.EndpointAddrHTTP)
				assert.True(t, c.CookieSecure)
			},
		},
		{
			name:        "bad duration panics",
			args:        []string{"-session-lifetime", "soon"},
			expectPanic: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Config{}
			c.LoadDefaults()

			if tt.expectPanic {
				require.Panics(t, func() { parseFlags(c, tt.args) })
				return
			}
			require.NotPanics(t, func() { parseFlags(c, tt.args) })
			tt.check(t, c)
		})
	}
}
