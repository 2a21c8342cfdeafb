package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, dir, name string, data map[string]any) string {
	t.Helper()
	if dir == "" {
		dir = t.TempDir()
	}
	if name == "" {
		name = "cfg.json"
	}
	path := filepath.Join(dir, name)
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func Test_parseJson(t *testing.T) {
	dir := t.TempDir()
	path := writeTempJSON(t, dir, "bank.json", map[string]any{
		"endpoint_addr_http":          "0.0.0.0:8443",
		"database_dsn":                "postgres://bank@db/bank",
		"secret_key":                  "json-secret",
		"session_lifetime":            "15m",
		"reset_token_validity":        "2h",
		"store_timeout":               int64(3 * time.Second),
		"rate_limit_defaults":         []string{"100 per day"},
		"rate_limit_login":            "3 per minute",
		"cookie_secure":               false,
		"bcrypt_cost":                 12,
		"s3_bucket":                   "statements",
		"registration_default_status": "active",
	})

	t.Run("loads from json", func(t *testing.T) {
		cfg := &Config{}
		cfg.LoadDefaults()
		parseJson(cfg, []string{"-config", path})

		assert.Equal(t, "0.0.0.0:8443", cfg.EndpointAddrHTTP)
		assert.Equal(t, "postgres://bank@db/bank", cfg.DatabaseDSN)
		assert.Equal(t, "json-secret", cfg.SecretKey)
		assert.Equal(t, 15*time.Minute, cfg.SessionLifetime)
		assert.Equal(t, 2*time.Hour, cfg.ResetTokenValidity)
		assert.Equal(t, 3*time.Second, cfg.StoreTimeout)
		assert.Equal(t, []string{"100 per day"}, cfg.RateLimitDefaults)
		assert.Equal(t, "3 per minute", cfg.RateLimitLogin)
		assert.False(t, cfg.CookieSecure)
		assert.Equal(t, 12, cfg.BcryptCost)
		assert.Equal(t, "statements", cfg.S3Bucket)
		assert.Equal(t, "active", cfg.RegistrationDefaultStatus)

		// keys missing from the file keep their defaults
		assert.Equal(t, 5*time.Minute, cfg.PendingTransferTTL)
		assert.Equal(t, "10 per hour", cfg.RateLimitRegister)
	})

	t.Run("no config flag leaves config untouched", func(t *testing.T) {
		cfg := &Config{EndpointAddrHTTP: "defaults:1234", SecretKey: "key"}
		parseJson(cfg, []string{"-a", ":1"})

		assert.Equal(t, "defaults:1234", cfg.EndpointAddrHTTP)
		assert.Equal(t, "key", cfg.SecretKey)
	})

	t.Run("invalid JSON panics", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte(`{ this is not valid json`), 0o600))

		require.Panics(t, func() { parseJson(&Config{}, []string{"-c", bad}) })
	})

	t.Run("missing file panics", func(t *testing.T) {
		require.Panics(t, func() { parseJson(&Config{}, []string{"-c", filepath.Join(dir, "nope.json")}) })
	})
}
