package config

import "time"

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Auth     AuthConfig     `mapstructure:"auth" validate:"required"`
	Jobs     JobsConfig     `mapstructure:"jobs" validate:"required"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

// ServerConfig contains HTTP server and logging settings.
type ServerConfig struct {
	Port                   int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel               string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	ShutdownTimeoutSeconds int    `mapstructure:"shutdown_timeout_seconds" validate:"gte=1"`
}

// ShutdownTimeout returns the graceful shutdown window.
func (c ServerConfig) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSeconds) * time.Second
}

// DatabaseConfig contains connection pool settings.
type DatabaseConfig struct {
	URL                    string `mapstructure:"url" validate:"required,url"`
	MaxOpenConns           int    `mapstructure:"max_open_conns" validate:"gte=1"`
	MaxIdleConns           int    `mapstructure:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetimeMinutes int    `mapstructure:"conn_max_lifetime_minutes" validate:"gte=1"`
}

// AuthConfig contains authentication settings.
type AuthConfig struct {
	JWTSecret            string  `mapstructure:"jwt_secret" validate:"required,min=32"`
	TokenLifetimeMinutes int     `mapstructure:"token_lifetime_minutes" validate:"gte=1,lte=43200"`
	BcryptCost           int     `mapstructure:"bcrypt_cost" validate:"gte=4,lte=31"`
	LoginRatePerMinute   float64 `mapstructure:"login_rate_per_minute" validate:"gt=0"`
	LoginBurst           int     `mapstructure:"login_burst" validate:"gte=1"`
}

// TokenLifetime returns the access token lifetime.
func (c AuthConfig) TokenLifetime() time.Duration {
	return time.Duration(c.TokenLifetimeMinutes) * time.Minute
}

// JobsConfig controls the background job runner and the history job retry policy.
type JobsConfig struct {
	WorkerCount               int   `mapstructure:"worker_count" validate:"gte=1"`
	QueueSize                 int   `mapstructure:"queue_size" validate:"gte=1"`
	MaxAttempts               int   `mapstructure:"max_attempts" validate:"gte=1"`
	BackoffSeconds            []int `mapstructure:"backoff_seconds" validate:"required,min=1,dive,gte=0"`
	AttemptTimeoutSeconds     int   `mapstructure:"attempt_timeout_seconds" validate:"gte=1"`
	StuckJobAgeMinutes        int   `mapstructure:"stuck_job_age_minutes" validate:"gte=1"`
	StuckCheckIntervalMinutes int   `mapstructure:"stuck_check_interval_minutes" validate:"gte=1"`
}

// Backoff returns the configured delays between attempts.
func (c JobsConfig) Backoff() []time.Duration {
	out := make([]time.Duration, len(c.BackoffSeconds))
	for i, s := range c.BackoffSeconds {
		out[i] = time.Duration(s) * time.Second
	}
	return out
}

// RedisConfig is optional. When URL is empty revoked tokens are kept in memory.
type RedisConfig struct {
	URL string `mapstructure:"url" validate:"omitempty,url"`
}
