package config

import (
	"flag"

	"github.com/dmitrijs2005/bankapp/internal/flagx"
)

var knownFlags = []string{
	"-a", "-d", "-s", "-r", "-l", "-log-backend", "-log-level",
	"-rate-limit", "-session-lifetime", "-reset-validity", "-store-timeout",
	"-amqp", "-base-url", "-b", "-e", "-g", "-u", "-p", "-insecure-cookie",
}

// BoolFlags lists the flags that take no value.
var BoolFlags = []string{"-insecure-cookie"}

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags:
//
//	-a string              HTTP bind address (e.g. ":8080")
//	-d string              PostgreSQL DSN, empty for the in-memory store
//	-s string              secret key for cookies and reset tokens
//	-r string              Redis URL for rate limits and sessions
//	-rate-limit value      default rate-limit tier, repeatable
//	-session-lifetime dur  sliding session lifetime
//	-reset-validity dur    password reset link validity
//	-store-timeout dur     per-request store deadline
//	-amqp string           RabbitMQ URL
//	-base-url string       public base URL used in reset links
//	-log-backend string    slog or zap
//	-l, -log-level string  log level
//	-u/-p/-b/-g/-e         S3 user, password, bucket, region, endpoint
//	-insecure-cookie       drop the Secure attribute (local HTTP only)
//
// Args are filtered through flagx.FilterArgs first so flags owned by other
// layers (-c/-config) do not collide.
func parseFlags(config *Config, args []string) {
	args = flagx.FilterArgs(args, knownFlags)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	fs.StringVar(&config.RedisURL, "r", config.RedisURL, "redis URL")

	fs.Var(flagx.NewStringList(&config.RateLimitDefaults), "rate-limit", "default rate limit (repeatable)")
	fs.DurationVar(&config.SessionLifetime, "session-lifetime", config.SessionLifetime, "session lifetime")
	fs.DurationVar(&config.ResetTokenValidity, "reset-validity", config.ResetTokenValidity, "password reset token validity")
	fs.DurationVar(&config.StoreTimeout, "store-timeout", config.StoreTimeout, "store timeout")

	fs.StringVar(&config.RabbitMQURL, "amqp", config.RabbitMQURL, "RabbitMQ URL")
	fs.StringVar(&config.PublicBaseURL, "base-url", config.PublicBaseURL, "public base URL")

	fs.StringVar(&config.LogBackend, "log-backend", config.LogBackend, "log backend (slog|zap)")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")
	fs.StringVar(&config.LogLevel, "log-level", config.LogLevel, "log level")

	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	insecure := fs.Bool("insecure-cookie", !config.CookieSecure, "send session cookie without Secure")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.CookieSecure = !*insecure
}
