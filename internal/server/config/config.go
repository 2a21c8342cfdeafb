// Package config handles configuration for the bank server, including
// defaults, a JSON overlay, environment variables and command-line flags.
package config

import (
	"os"
	"time"
)

// Config holds runtime settings for the bank server.
//
// Fields:
//   - EndpointAddrHTTP: bind address for the HTTP API.
//   - DatabaseDSN: PostgreSQL DSN (pgx). Empty selects the in-memory store.
//   - SecretKey: HMAC secret for session cookies and reset tokens.
//   - SessionLifetime: sliding inactivity window of a session.
//   - ResetTokenValidity / PendingTransferTTL: lifetimes of a password reset
//     link and of a transfer awaiting confirmation.
//   - StoreTimeout: per-request deadline for store calls.
//   - RedisURL: rate-limit and session backend. Empty keeps both in memory.
//   - RateLimit*: policies in "N per unit" form.
//   - RabbitMQURL / EventsExchange: notification publishing. Empty URL logs only.
//   - S3*: statement export storage. Empty bucket disables statements.
type Config struct {
	EndpointAddrHTTP string
	DatabaseDSN      string
	SecretKey        string

	SessionLifetime    time.Duration
	ResetTokenValidity time.Duration
	PendingTransferTTL time.Duration
	StoreTimeout       time.Duration

	RedisURL              string
	RateLimitPrefix       string
	RateLimitDefaults     []string
	RateLimitLogin        string
	RateLimitResetRequest string
	RateLimitResetConfirm string
	RateLimitRegister     string
	RateLimitTransfer     string
	RateLimitPenalty      time.Duration

	RabbitMQURL    string
	EventsExchange string
	PublicBaseURL  string

	RegistrationDefaultStatus string
	CookieSecure              bool
	BcryptCost                int

	LogBackend string
	LogLevel   string

	S3RootUser     string
	S3RootPassword string
	S3Bucket       string
	S3Region       string
	S3BaseEndpoint string

	JanitorSchedule string
}

// LoadDefaults populates Config with development defaults.
// NOTE: SecretKey is left empty on purpose; the server generates a random
// one at startup when nothing overrides it.
func (c *Config) LoadDefaults() {
	c.EndpointAddrHTTP = ":8080"
	c.DatabaseDSN = ""
	c.SecretKey = ""
	c.SessionLifetime = 30 * time.Minute
	c.ResetTokenValidity = 1 * time.Hour
	c.PendingTransferTTL = 5 * time.Minute
	c.StoreTimeout = 5 * time.Second
	c.RedisURL = ""
	c.RateLimitPrefix = "bankapp:rl"
	c.RateLimitDefaults = []string{"200 per day", "50 per hour"}
	c.RateLimitLogin = "5 per minute"
	c.RateLimitResetRequest = "3 per hour"
	c.RateLimitResetConfirm = "5 per hour"
	c.RateLimitRegister = "10 per hour"
	c.RateLimitTransfer = "30 per hour"
	c.RateLimitPenalty = 1 * time.Second
	c.RabbitMQURL = ""
	c.EventsExchange = "bankapp.events"
	c.PublicBaseURL = "http://localhost:8080"
	c.RegistrationDefaultStatus = "pending"
	c.CookieSecure = true
	c.BcryptCost = 10
	c.LogBackend = "slog"
	c.LogLevel = "info"
	c.S3RootUser = "admin"
	c.S3RootPassword = "secretpassword"
	c.S3Bucket = ""
	c.S3Region = "us-east-1"
	c.S3BaseEndpoint = "http://127.0.0.1:9000/"
	c.JanitorSchedule = "@every 10m"
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional JSON file, the environment (and .env) and finally
// command-line flags. It panics on malformed input, like flag parsing does.
func LoadConfig() *Config {
	return load(os.Args[1:])
}

func load(args []string) *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg, args)
	parseEnv(cfg)
	parseFlags(cfg, args)
	return cfg
}
