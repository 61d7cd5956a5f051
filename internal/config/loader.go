// Package config provides centralized configuration management for the
// waitlist service. Layers, lowest precedence first:
// built-in defaults (SetDefaults), an optional YAML file read by viper,
// WAITLIST_* environment variables mapped through gofulmen/config env specs,
// and runtime overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

const (
	// AppName is used for XDG config/data directories and the binary name.
	AppName = "waitlist"

	// EnvPrefix is the prefix for every environment variable the service reads.
	EnvPrefix = "WAITLIST_"
)

var (
	// appConfig holds the current application configuration
	appConfig *Config
	configMu  sync.RWMutex

	validate = validator.New(validator.WithRequiredStructEnabled())
)

// EnvVarSpec defines environment variable mappings for config fields
// following the pattern: {PREFIX}{NAME} maps to config path
type EnvVarSpec = gfconfig.EnvVarSpec

// Environment variable types
const (
	EnvString = gfconfig.EnvString
	EnvInt    = gfconfig.EnvInt
	EnvBool   = gfconfig.EnvBool
)

// SetDefaults registers built-in defaults on v.
func SetDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.max_body_bytes", 10000)

	// Store defaults
	v.SetDefault("store.driver", "libsql")
	v.SetDefault("store.path", DefaultStorePath())
	v.SetDefault("store.url", "")
	v.SetDefault("store.auth_token", "")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.username", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	// Rate limit defaults: 3 attempts per client per 5 minutes
	v.SetDefault("ratelimit.backend", "memory")
	v.SetDefault("ratelimit.limit", 3)
	v.SetDefault("ratelimit.window", "5m")
	v.SetDefault("ratelimit.sweep_probability", 0.01)

	v.SetDefault("waitlist.strict_dedup", false)

	// Notification defaults
	v.SetDefault("notify.driver", "log")
	v.SetDefault("notify.api_key", "")
	v.SetDefault("notify.from", "onboarding@resend.dev")
	v.SetDefault("notify.to", "")
	v.SetDefault("notify.subject", "New Waitlist Signup!")
	v.SetDefault("notify.timeout", "10s")
	v.SetDefault("notify.rate_per_minute", 30)
	v.SetDefault("notify.burst", 10)
	v.SetDefault("notify.smtp.host", "")
	v.SetDefault("notify.smtp.port", 587)
	v.SetDefault("notify.smtp.username", "")
	v.SetDefault("notify.smtp.password", "")

	v.SetDefault("admin.token", "")

	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.max_age", 600)

	// Logging defaults
	v.SetDefault("logging.level", "info")

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)

	// Health check defaults
	v.SetDefault("health.enabled", true)
}

// Load decodes the layered configuration held by v into a validated Config.
// Environment overrides and any runtime overrides are merged on top of
// whatever v already holds (defaults and config file).
//
// This function is safe to call multiple times (e.g., for config reload)
func Load(v *viper.Viper, runtimeOverrides ...map[string]any) (*Config, error) {
	if v == nil {
		return nil, fmt.Errorf("viper instance is required")
	}

	envOverrides, err := gfconfig.LoadEnvOverrides(getEnvSpecs())
	if err != nil {
		return nil, fmt.Errorf("failed to load environment overrides: %w", err)
	}
	if envOverrides == nil {
		envOverrides = map[string]any{}
	}
	if err := applyFloatEnvOverrides(envOverrides); err != nil {
		return nil, err
	}

	allOverrides := []map[string]any{envOverrides}
	allOverrides = append(allOverrides, runtimeOverrides...)
	for _, overrides := range allOverrides {
		if len(overrides) == 0 {
			continue
		}
		if err := v.MergeConfigMap(overrides); err != nil {
			return nil, fmt.Errorf("failed to merge config overrides: %w", err)
		}
	}

	cfg := &Config{}
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(cfg, hook); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	normalize(cfg)

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	setConfig(cfg)

	return cfg, nil
}

// GetConfig returns the current application configuration (thread-safe)
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

// setConfig updates the current configuration (thread-safe)
func setConfig(cfg *Config) {
	configMu.Lock()
	defer configMu.Unlock()
	appConfig = cfg
}

// DefaultStorePath returns the default libsql database location under the
// XDG data directory.
func DefaultStorePath() string {
	dataDir := gfconfig.GetAppDataDir(AppName)
	if strings.TrimSpace(dataDir) == "" {
		return "./" + AppName + ".db"
	}
	return filepath.Join(dataDir, AppName+".db")
}

func normalize(cfg *Config) {
	cfg.Store.Driver = strings.ToLower(strings.TrimSpace(cfg.Store.Driver))
	cfg.RateLimit.Backend = strings.ToLower(strings.TrimSpace(cfg.RateLimit.Backend))
	cfg.Notify.Driver = strings.ToLower(strings.TrimSpace(cfg.Notify.Driver))
	cfg.Admin.Token = strings.TrimSpace(cfg.Admin.Token)
	cfg.Notify.To = strings.TrimSpace(cfg.Notify.To)

	if cfg.Store.Driver == "libsql" && strings.TrimSpace(cfg.Store.URL) == "" && strings.TrimSpace(cfg.Store.Path) == "" {
		cfg.Store.Path = DefaultStorePath()
	}

	origins := make([]string, 0, len(cfg.CORS.AllowedOrigins))
	for _, origin := range cfg.CORS.AllowedOrigins {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	cfg.CORS.AllowedOrigins = origins
}

// applyFloatEnvOverrides handles the float-valued settings that the env spec
// table cannot type.
func applyFloatEnvOverrides(envOverrides map[string]any) error {
	floats := []struct {
		name string
		path []string
	}{
		{EnvPrefix + "RATELIMIT_SWEEP_PROBABILITY", []string{"ratelimit", "sweep_probability"}},
		{EnvPrefix + "NOTIFY_RATE_PER_MINUTE", []string{"notify", "rate_per_minute"}},
	}

	for _, f := range floats {
		raw := strings.TrimSpace(os.Getenv(f.name))
		if raw == "" {
			continue
		}
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", f.name, err)
		}
		section := ensureMap(envOverrides, f.path[0])
		section[f.path[1]] = value
	}
	return nil
}

// getEnvSpecs returns environment variable specifications for config mapping
// Maps WAITLIST_{NAME} environment variables to config paths
func getEnvSpecs() []EnvVarSpec {
	prefix := EnvPrefix

	return []EnvVarSpec{
		// Server config
		{Name: prefix + "HOST", Path: []string{"server", "host"}, Type: EnvString},
		{Name: prefix + "PORT", Path: []string{"server", "port"}, Type: EnvInt},
		// Duration fields are parsed as strings and converted by mapstructure decode hook
		{Name: prefix + "READ_TIMEOUT", Path: []string{"server", "read_timeout"}, Type: EnvString},
		{Name: prefix + "WRITE_TIMEOUT", Path: []string{"server", "write_timeout"}, Type: EnvString},
		{Name: prefix + "IDLE_TIMEOUT", Path: []string{"server", "idle_timeout"}, Type: EnvString},
		{Name: prefix + "SHUTDOWN_TIMEOUT", Path: []string{"server", "shutdown_timeout"}, Type: EnvString},
		{Name: prefix + "MAX_BODY_BYTES", Path: []string{"server", "max_body_bytes"}, Type: EnvInt},

		// Store config
		{Name: prefix + "STORE_DRIVER", Path: []string{"store", "driver"}, Type: EnvString},
		{Name: prefix + "STORE_PATH", Path: []string{"store", "path"}, Type: EnvString},
		{Name: prefix + "STORE_URL", Path: []string{"store", "url"}, Type: EnvString},
		{Name: prefix + "STORE_AUTH_TOKEN", Path: []string{"store", "auth_token"}, Type: EnvString},

		{Name: prefix + "REDIS_ADDR", Path: []string{"redis", "addr"}, Type: EnvString},
		{Name: prefix + "REDIS_USERNAME", Path: []string{"redis", "username"}, Type: EnvString},
		{Name: prefix + "REDIS_PASSWORD", Path: []string{"redis", "password"}, Type: EnvString},
		{Name: prefix + "REDIS_DB", Path: []string{"redis", "db"}, Type: EnvInt},

		// Rate limiting
		{Name: prefix + "RATELIMIT_BACKEND", Path: []string{"ratelimit", "backend"}, Type: EnvString},
		{Name: prefix + "RATELIMIT_LIMIT", Path: []string{"ratelimit", "limit"}, Type: EnvInt},
		{Name: prefix + "RATELIMIT_WINDOW", Path: []string{"ratelimit", "window"}, Type: EnvString},

		{Name: prefix + "STRICT_DEDUP", Path: []string{"waitlist", "strict_dedup"}, Type: EnvBool},

		// Notification: API key and operator address are the deployment secrets
		{Name: prefix + "NOTIFY_DRIVER", Path: []string{"notify", "driver"}, Type: EnvString},
		{Name: prefix + "NOTIFY_API_KEY", Path: []string{"notify", "api_key"}, Type: EnvString},
		{Name: prefix + "NOTIFY_FROM", Path: []string{"notify", "from"}, Type: EnvString},
		{Name: prefix + "NOTIFY_TO", Path: []string{"notify", "to"}, Type: EnvString},
		{Name: prefix + "NOTIFY_SUBJECT", Path: []string{"notify", "subject"}, Type: EnvString},
		{Name: prefix + "NOTIFY_TIMEOUT", Path: []string{"notify", "timeout"}, Type: EnvString},
		{Name: prefix + "NOTIFY_BURST", Path: []string{"notify", "burst"}, Type: EnvInt},
		{Name: prefix + "SMTP_HOST", Path: []string{"notify", "smtp", "host"}, Type: EnvString},
		{Name: prefix + "SMTP_PORT", Path: []string{"notify", "smtp", "port"}, Type: EnvInt},
		{Name: prefix + "SMTP_USERNAME", Path: []string{"notify", "smtp", "username"}, Type: EnvString},
		{Name: prefix + "SMTP_PASSWORD", Path: []string{"notify", "smtp", "password"}, Type: EnvString},

		// Operator read-access secret
		{Name: prefix + "ADMIN_TOKEN", Path: []string{"admin", "token"}, Type: EnvString},

		{Name: prefix + "CORS_ALLOWED_ORIGINS", Path: []string{"cors", "allowed_origins"}, Type: EnvString},
		{Name: prefix + "CORS_MAX_AGE", Path: []string{"cors", "max_age"}, Type: EnvInt},

		// Logging config
		{Name: prefix + "LOG_LEVEL", Path: []string{"logging", "level"}, Type: EnvString},

		// Metrics config
		{Name: prefix + "METRICS_ENABLED", Path: []string{"metrics", "enabled"}, Type: EnvBool},
		{Name: prefix + "METRICS_PORT", Path: []string{"metrics", "port"}, Type: EnvInt},

		// Health config
		{Name: prefix + "HEALTH_ENABLED", Path: []string{"health", "enabled"}, Type: EnvBool},
	}
}

func ensureMap(parent map[string]any, key string) map[string]any {
	if parent == nil {
		return map[string]any{}
	}
	if existing, ok := parent[key]; ok {
		if typed, ok := existing.(map[string]any); ok {
			return typed
		}
	}
	next := map[string]any{}
	parent[key] = next
	return next
}
