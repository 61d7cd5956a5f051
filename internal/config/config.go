package config

import (
	"time"
)

// Config represents the complete service configuration.
// Precedence, lowest first: built-in defaults, optional YAML config file,
// WAITLIST_* environment variables, runtime overrides (flags, tests).
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Store     StoreConfig     `mapstructure:"store"`
	Redis     RedisConfig     `mapstructure:"redis"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Waitlist  WaitlistConfig  `mapstructure:"waitlist"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	Admin     AdminConfig     `mapstructure:"admin"`
	CORS      CORSConfig      `mapstructure:"cors"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Health    HealthConfig    `mapstructure:"health"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port" validate:"gte=0,lte=65535"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	// MaxBodyBytes caps request bodies; larger requests get 413.
	MaxBodyBytes int64 `mapstructure:"max_body_bytes" validate:"gt=0"`
}

// StoreConfig selects and configures the key-value collaborator that holds
// signups.
type StoreConfig struct {
	// Driver is one of memory, libsql, redis.
	Driver    string `mapstructure:"driver" validate:"oneof=memory libsql redis"`
	Path      string `mapstructure:"path"`
	URL       string `mapstructure:"url"`
	AuthToken string `mapstructure:"auth_token"`
}

// RedisConfig is shared by the redis store driver and the redis rate limiter.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db" validate:"gte=0"`
}

// RateLimitConfig configures the per-client sliding window on POST /waitlist.
type RateLimitConfig struct {
	// Backend is memory (per process) or redis (shared across instances).
	Backend string        `mapstructure:"backend" validate:"oneof=memory redis"`
	Limit   int           `mapstructure:"limit" validate:"gte=1"`
	Window  time.Duration `mapstructure:"window" validate:"gt=0"`

	// SweepProbability is the chance that a single Allow call also drops idle
	// clients from the in-memory map.
	SweepProbability float64 `mapstructure:"sweep_probability" validate:"gte=0,lte=1"`
}

// WaitlistConfig contains signup semantics.
type WaitlistConfig struct {
	// StrictDedup reserves the normalized email with a conditional write
	// before storing, closing the concurrent duplicate window.
	StrictDedup bool `mapstructure:"strict_dedup"`
}

// NotifyConfig configures the operator notification email.
type NotifyConfig struct {
	// Driver is one of resend, smtp, log, none.
	Driver  string        `mapstructure:"driver" validate:"oneof=resend smtp log none"`
	APIKey  string        `mapstructure:"api_key"`
	From    string        `mapstructure:"from"`
	To      string        `mapstructure:"to"`
	Subject string        `mapstructure:"subject"`
	Timeout time.Duration `mapstructure:"timeout" validate:"gt=0"`

	// RatePerMinute and Burst bound outbound notification volume.
	RatePerMinute float64 `mapstructure:"rate_per_minute" validate:"gte=0"`
	Burst         int     `mapstructure:"burst" validate:"gte=0"`

	SMTP SMTPConfig `mapstructure:"smtp"`
}

// SMTPConfig is used by the smtp notify driver.
type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// AdminConfig holds the operator read-access secret.
//
// An empty Token disables the admin read path (503), it never opens it.
type AdminConfig struct {
	Token string `mapstructure:"token"`
}

// CORSConfig holds the CORS policy. The default allows any origin; operators
// are expected to narrow AllowedOrigins for production deployments.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	MaxAge         int      `mapstructure:"max_age" validate:"gte=0"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	// Level controls the minimum log level
	// Valid values: trace, debug, info, warn, error
	Level string `mapstructure:"level"`
}

// MetricsConfig contains Prometheus metrics configuration
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// Port is the dedicated Prometheus exporter port; /metrics on the main
	// port proxies it.
	Port int `mapstructure:"port" validate:"gte=0,lte=65535"`
}

// HealthConfig contains health check configuration
type HealthConfig struct {
	Enabled bool `mapstructure:"enabled"`
}
