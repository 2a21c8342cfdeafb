package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/bankapp/internal/flagx"
	"github.com/dmitrijs2005/bankapp/internal/timex"
)

// JsonConfig is the on-disk shape of the JSON config file. Durations use
// timex.Duration so both "30m" and integer nanoseconds are accepted.
// Pointer fields distinguish "absent" from the zero value; absent keys keep
// whatever the previous layer set.
type JsonConfig struct {
	EndpointAddrHTTP *string `json:"endpoint_addr_http"`
	DatabaseDSN      *string `json:"database_dsn"`
	SecretKey        *string `json:"secret_key"`

	SessionLifetime    *timex.Duration `json:"session_lifetime"`
	ResetTokenValidity *timex.Duration `json:"reset_token_validity"`
	PendingTransferTTL *timex.Duration `json:"pending_transfer_ttl"`
	StoreTimeout       *timex.Duration `json:"store_timeout"`

	RedisURL              *string         `json:"redis_url"`
	RateLimitPrefix       *string         `json:"rate_limit_prefix"`
	RateLimitDefaults     []string        `json:"rate_limit_defaults"`
	RateLimitLogin        *string         `json:"rate_limit_login"`
	RateLimitResetRequest *string         `json:"rate_limit_reset_request"`
	RateLimitResetConfirm *string         `json:"rate_limit_reset_confirm"`
	RateLimitRegister     *string         `json:"rate_limit_register"`
	RateLimitTransfer     *string         `json:"rate_limit_transfer"`
	RateLimitPenalty      *timex.Duration `json:"rate_limit_penalty"`

	RabbitMQURL    *string `json:"rabbitmq_url"`
	EventsExchange *string `json:"events_exchange"`
	PublicBaseURL  *string `json:"public_base_url"`

	RegistrationDefaultStatus *string `json:"registration_default_status"`
	CookieSecure              *bool   `json:"cookie_secure"`
	BcryptCost                *int    `json:"bcrypt_cost"`

	LogBackend *string `json:"log_backend"`
	LogLevel   *string `json:"log_level"`

	S3RootUser     *string `json:"s3_root_user"`
	S3RootPassword *string `json:"s3_root_password"`
	S3Bucket       *string `json:"s3_bucket"`
	S3Region       *string `json:"s3_region"`
	S3BaseEndpoint *string `json:"s3_base_endpoint"`

	JanitorSchedule *string `json:"janitor_schedule"`
}

// parseJson overlays values from the JSON file named by -c/-config in args.
// Without the flag nothing is loaded. An unreadable file or invalid JSON
// panics.
func parseJson(config *Config, args []string) {
	jsonConfigFile := flagx.ConfigFileFlag(args)

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)

	setDuration(&config.SessionLifetime, c.SessionLifetime)
	setDuration(&config.ResetTokenValidity, c.ResetTokenValidity)
	setDuration(&config.PendingTransferTTL, c.PendingTransferTTL)
	setDuration(&config.StoreTimeout, c.StoreTimeout)

	setString(&config.RedisURL, c.RedisURL)
	setString(&config.RateLimitPrefix, c.RateLimitPrefix)
	if c.RateLimitDefaults != nil {
		config.RateLimitDefaults = c.RateLimitDefaults
	}
	setString(&config.RateLimitLogin, c.RateLimitLogin)
	setString(&config.RateLimitResetRequest, c.RateLimitResetRequest)
	setString(&config.RateLimitResetConfirm, c.RateLimitResetConfirm)
	setString(&config.RateLimitRegister, c.RateLimitRegister)
	setString(&config.RateLimitTransfer, c.RateLimitTransfer)
	setDuration(&config.RateLimitPenalty, c.RateLimitPenalty)

	setString(&config.RabbitMQURL, c.RabbitMQURL)
	setString(&config.EventsExchange, c.EventsExchange)
	setString(&config.PublicBaseURL, c.PublicBaseURL)

	setString(&config.RegistrationDefaultStatus, c.RegistrationDefaultStatus)
	if c.CookieSecure != nil {
		config.CookieSecure = *c.CookieSecure
	}
	if c.BcryptCost != nil {
		config.BcryptCost = *c.BcryptCost
	}

	setString(&config.LogBackend, c.LogBackend)
	setString(&config.LogLevel, c.LogLevel)

	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)

	setString(&config.JanitorSchedule, c.JanitorSchedule)
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *timex.Duration) {
	if v != nil {
		*dst = v.Duration
	}
}
