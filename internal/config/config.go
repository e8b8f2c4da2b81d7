// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// DatabaseURL is the Postgres DSN for sessions, events, and attempts.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`

	// ChallengeTimeoutMs is the base validity window for visual challenges.
	ChallengeTimeoutMs int `mapstructure:"CHALLENGE_TIMEOUT_MS"`
	// ChallengeExtendedTimeoutMs is the ceiling offered by one extension grant.
	ChallengeExtendedTimeoutMs int `mapstructure:"CHALLENGE_EXTENDED_TIMEOUT_MS"`
	// MaxASLAttempts is the ASL verification retry ceiling.
	MaxASLAttempts int `mapstructure:"MAX_ASL_ATTEMPTS"`
	// MaxOTPAttempts is the OTP fallback retry ceiling.
	MaxOTPAttempts int `mapstructure:"MAX_OTP_ATTEMPTS"`
	// SessionTTL is the session lifetime (e.g. "10m"); ttl_elapsed fires past it.
	SessionTTL string `mapstructure:"SESSION_TTL"`

	// ASLServiceURL is the liveness/sign-recognition verify endpoint.
	ASLServiceURL string `mapstructure:"ASL_SERVICE_URL"`
	// ASLServiceAPIKey authenticates to the recognition service; optional in dev.
	ASLServiceAPIKey string `mapstructure:"ASL_SERVICE_API_KEY"`
	// IdentityBackendURL is the identity API base (e.g. https://host/auth).
	IdentityBackendURL string `mapstructure:"IDENTITY_BACKEND_URL"`

	// JWTPrivateKey is PEM (or a path to PEM) for signing access tokens.
	JWTPrivateKey string `mapstructure:"JWT_PRIVATE_KEY"`
	// JWTPublicKey is the matching public key PEM or path.
	JWTPublicKey string `mapstructure:"JWT_PUBLIC_KEY"`
	// JWTIssuer is the iss claim on issued access tokens.
	JWTIssuer string `mapstructure:"JWT_ISSUER"`
	// JWTAudience is the aud claim on issued access tokens.
	JWTAudience string `mapstructure:"JWT_AUDIENCE"`
	// JWTAccessTTL is the access token lifetime (e.g. "15m").
	JWTAccessTTL string `mapstructure:"JWT_ACCESS_TTL"`
	// BcryptCost is the bcrypt cost for hashing one-time fallback codes.
	BcryptCost int `mapstructure:"BCRYPT_COST"`

	// RedisAddr enables the Redis challenge store when set (host:port).
	RedisAddr string `mapstructure:"REDIS_ADDR"`

	// KafkaBrokers is a comma-separated broker list; when set, auth events are
	// streamed to Kafka in addition to the durable audit log.
	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// KafkaTopic is the auth event stream topic.
	KafkaTopic string `mapstructure:"AUTH_EVENTS_KAFKA_TOPIC"`
	// KafkaGroupID is the consumer group ID for the event worker.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`
	// LokiURL is the Loki push endpoint used by the event worker.
	LokiURL string `mapstructure:"LOKI_URL"`
	// OTLPEndpoint enables OTLP export of traces/metrics/logs when set.
	OTLPEndpoint string `mapstructure:"OTLP_ENDPOINT"`
}

// Load reads .env (if present), then builds and validates Config from the
// environment via Viper. Missing .env is ignored (e.g. in CI); env vars
// override .env.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("APP_ENV", "")
	v.SetDefault("CHALLENGE_TIMEOUT_MS", 60000)
	v.SetDefault("CHALLENGE_EXTENDED_TIMEOUT_MS", 300000)
	v.SetDefault("MAX_ASL_ATTEMPTS", 3)
	v.SetDefault("MAX_OTP_ATTEMPTS", 3)
	v.SetDefault("SESSION_TTL", "10m")
	v.SetDefault("ASL_SERVICE_URL", "")
	v.SetDefault("ASL_SERVICE_API_KEY", "")
	v.SetDefault("IDENTITY_BACKEND_URL", "")
	v.SetDefault("JWT_ISSUER", "deafauth-core")
	v.SetDefault("JWT_AUDIENCE", "deafauth-api")
	v.SetDefault("JWT_ACCESS_TTL", "15m")
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("AUTH_EVENTS_KAFKA_TOPIC", "deafauth-events")
	v.SetDefault("KAFKA_GROUP_ID", "deafauth-event-worker")
	v.SetDefault("LOKI_URL", "")
	v.SetDefault("OTLP_ENDPOINT", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.ChallengeTimeoutMs <= 0 {
		return nil, errors.New("config: CHALLENGE_TIMEOUT_MS must be positive")
	}
	if cfg.ChallengeExtendedTimeoutMs < cfg.ChallengeTimeoutMs {
		return nil, errors.New("config: CHALLENGE_EXTENDED_TIMEOUT_MS must be >= CHALLENGE_TIMEOUT_MS")
	}
	if cfg.MaxASLAttempts <= 0 || cfg.MaxOTPAttempts <= 0 {
		return nil, errors.New("config: attempt ceilings must be positive")
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, errors.New("config: BCRYPT_COST must be between 4 and 31")
	}

	return &cfg, nil
}

// ChallengeTimeout returns the base challenge validity window.
func (c *Config) ChallengeTimeout() time.Duration {
	return time.Duration(c.ChallengeTimeoutMs) * time.Millisecond
}

// ChallengeExtendedTimeout returns the extension ceiling.
func (c *Config) ChallengeExtendedTimeout() time.Duration {
	return time.Duration(c.ChallengeExtendedTimeoutMs) * time.Millisecond
}

// SessionTTLDuration parses SessionTTL. Returns 10m if unset or invalid.
func (c *Config) SessionTTLDuration() time.Duration {
	d, err := time.ParseDuration(c.SessionTTL)
	if err != nil || d <= 0 {
		return 10 * time.Minute
	}
	return d
}

// AccessTTL parses JWTAccessTTL. Returns 15m if unset or invalid.
func (c *Config) AccessTTL() time.Duration {
	d, err := time.ParseDuration(c.JWTAccessTTL)
	if err != nil || d <= 0 {
		return 15 * time.Minute
	}
	return d
}

// KafkaBrokersList returns broker addresses from the comma-separated config.
// A non-empty list means event streaming is enabled.
func (c *Config) KafkaBrokersList() []string {
	if c == nil || c.KafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.KafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
