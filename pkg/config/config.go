// Package config provides unified configuration for the tutogate server.
//
// Configuration is loaded with a layered approach:
//  1. .env file in the working directory (never overrides the environment)
//  2. Built-in defaults
//  3. YAML config file (discovered or explicitly specified)
//  4. Environment variable overrides (TUTOGATE_ prefix, plus the legacy
//     JWT_SECRET and PORT names)
//  5. File reference resolution (_file suffix fields)
//  6. Validation
package config

import "time"

// Config holds all configuration for the tutogate server.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Auth          AuthConfig          `yaml:"auth"`
	Storage       StorageConfig       `yaml:"storage"`
	Redis         RedisConfig         `yaml:"redis"`
	Observability ObservabilityConfig `yaml:"observability"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// ObservabilityConfig holds monitoring and instrumentation settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
}

// MetricsConfig holds Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // default: true
	Path    string `yaml:"path"`    // default: "/metrics"
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`             // default: 8080
	ReadTimeout     time.Duration `yaml:"read_timeout"`     // default: 30s
	WriteTimeout    time.Duration `yaml:"write_timeout"`    // default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"` // default: 15s
}

// AuthConfig holds token and gate settings.
type AuthConfig struct {
	Secret        string          `yaml:"secret"`         // HMAC signing secret, required
	SecretFile    string          `yaml:"secret_file"`    // _file variant for secret
	Issuer        string          `yaml:"issuer"`         // expected iss claim, optional
	CookieName    string          `yaml:"cookie_name"`    // default: "token"
	TokenTTL      time.Duration   `yaml:"token_ttl"`      // default: 24h
	Leeway        time.Duration   `yaml:"leeway"`         // clock skew tolerance, default: 0
	LookupTimeout time.Duration   `yaml:"lookup_timeout"` // default: 5s
	RateLimit     RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig holds per-identity rate limit settings.
type RateLimitConfig struct {
	Enabled    bool           `yaml:"enabled"`     // default: false
	Backend    string         `yaml:"backend"`     // "memory" or "redis", default: "memory"
	DefaultRPM int            `yaml:"default_rpm"` // default: 120
	Tiers      map[string]int `yaml:"tiers"`       // role name -> requests per minute
}

// StorageConfig holds user and tutorial store settings.
type StorageConfig struct {
	Type     string         `yaml:"type"`      // "memory" or "postgres", default: "memory"
	SeedFile string         `yaml:"seed_file"` // YAML seed for the memory store
	Postgres PostgresConfig `yaml:"postgres"`
}

// PostgresConfig holds PostgreSQL-specific settings.
type PostgresConfig struct {
	DSN             string        `yaml:"dsn"`
	DSNFile         string        `yaml:"dsn_file"`          // _file variant for dsn
	MaxConns        int32         `yaml:"max_conns"`         // default: 10
	MinConns        int32         `yaml:"min_conns"`         // default: pgxpool's
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"` // default: pgxpool's (1h)
	MigrateOnStart  bool          `yaml:"migrate_on_start"`  // default: false
}

// RedisConfig holds the connection used by the redis rate limit backend.
type RedisConfig struct {
	Addr         string `yaml:"addr"` // default: "localhost:6379"
	Password     string `yaml:"password"`
	PasswordFile string `yaml:"password_file"` // _file variant for password
	DB           int    `yaml:"db"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error; default: "info"
	Format string `yaml:"format"` // "text" or "json", default: "text"
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Auth: AuthConfig{
			CookieName:    "token",
			TokenTTL:      24 * time.Hour,
			LookupTimeout: 5 * time.Second,
			RateLimit: RateLimitConfig{
				Backend:    "memory",
				DefaultRPM: 120,
			},
		},
		Storage: StorageConfig{
			Type: "memory",
			Postgres: PostgresConfig{
				MaxConns: 10,
			},
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
