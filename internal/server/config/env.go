package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// envFile is loaded into the process environment when present. Variables
// already set in the environment win over the file.
var envFile = ".env"

// parseEnv overlays values from environment variables. Only variables that
// are actually set override the previous layers.
//
// Recognised variables:
//
//	HTTP_ADDR, DATABASE_DSN, SECRET_KEY, SESSION_LIFETIME,
//	RESET_TOKEN_VALIDITY, PENDING_TRANSFER_TTL, STORE_TIMEOUT, REDIS_URL,
//	RATE_LIMIT_PREFIX, RATE_LIMIT_DEFAULTS (comma separated),
//	RATE_LIMIT_LOGIN, RATE_LIMIT_RESET_REQUEST, RATE_LIMIT_RESET_CONFIRM,
//	RATE_LIMIT_REGISTER, RATE_LIMIT_TRANSFER, RATE_LIMIT_PENALTY,
//	RABBITMQ_URL, EVENTS_EXCHANGE, PUBLIC_BASE_URL,
//	REGISTRATION_DEFAULT_STATUS, COOKIE_SECURE, BCRYPT_COST, LOG_BACKEND,
//	LOG_LEVEL, S3_ROOT_USER, S3_ROOT_PASSWORD, S3_BUCKET, S3_REGION,
//	S3_BASE_ENDPOINT, JANITOR_SCHEDULE
func parseEnv(config *Config) {
	// a missing .env is the normal case outside local development
	_ = godotenv.Load(envFile)

	v := viper.New()
	v.AutomaticEnv()

	str := func(key string, dst *string) {
		if v.IsSet(key) {
			*dst = v.GetString(key)
		}
	}

	dur := func(key string, dst *time.Duration) {
		if v.IsSet(key) {
			*dst = v.GetDuration(key)
		}
	}

	str("HTTP_ADDR", &config.EndpointAddrHTTP)
	str("DATABASE_DSN", &config.DatabaseDSN)
	str("SECRET_KEY", &config.SecretKey)

	dur("SESSION_LIFETIME", &config.SessionLifetime)
	dur("RESET_TOKEN_VALIDITY", &config.ResetTokenValidity)
	dur("PENDING_TRANSFER_TTL", &config.PendingTransferTTL)
	dur("STORE_TIMEOUT", &config.StoreTimeout)
	dur("RATE_LIMIT_PENALTY", &config.RateLimitPenalty)

	str("REDIS_URL", &config.RedisURL)
	str("RATE_LIMIT_PREFIX", &config.RateLimitPrefix)
	if v.IsSet("RATE_LIMIT_DEFAULTS") {
		config.RateLimitDefaults = splitList(v.GetString("RATE_LIMIT_DEFAULTS"))
	}
	str("RATE_LIMIT_LOGIN", &config.RateLimitLogin)
	str("RATE_LIMIT_RESET_REQUEST", &config.RateLimitResetRequest)
	str("RATE_LIMIT_RESET_CONFIRM", &config.RateLimitResetConfirm)
	str("RATE_LIMIT_REGISTER", &config.RateLimitRegister)
	str("RATE_LIMIT_TRANSFER", &config.RateLimitTransfer)

	str("RABBITMQ_URL", &config.RabbitMQURL)
	str("EVENTS_EXCHANGE", &config.EventsExchange)
	str("PUBLIC_BASE_URL", &config.PublicBaseURL)

	str("REGISTRATION_DEFAULT_STATUS", &config.RegistrationDefaultStatus)
	if v.IsSet("COOKIE_SECURE") {
		config.CookieSecure = v.GetBool("COOKIE_SECURE")
	}
	if v.IsSet("BCRYPT_COST") {
		config.BcryptCost = v.GetInt("BCRYPT_COST")
	}

	str("LOG_BACKEND", &config.LogBackend)
	str("LOG_LEVEL", &config.LogLevel)

	str("S3_ROOT_USER", &config.S3RootUser)
	str("S3_ROOT_PASSWORD", &config.S3RootPassword)
	str("S3_BUCKET", &config.S3Bucket)
	str("S3_REGION", &config.S3Region)
	str("S3_BASE_ENDPOINT", &config.S3BaseEndpoint)

	str("JANITOR_SCHEDULE", &config.JanitorSchedule)
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
