package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rhuss/tutogate/pkg/auth"
)

// Validate checks the configuration for required fields and valid values.
// Returns an error with a descriptive field path on failure.
func (c *Config) Validate() error {
	var errs []error

	if c.Auth.Secret == "" {
		errs = append(errs, fmt.Errorf("auth.secret (or auth.secret_file, JWT_SECRET) is required"))
	}

	if c.Server.Port <= 0 {
		errs = append(errs, fmt.Errorf("server.port must be > 0, got %d", c.Server.Port))
	}

	if c.Auth.LookupTimeout <= 0 {
		errs = append(errs, fmt.Errorf("auth.lookup_timeout must be > 0, got %v", c.Auth.LookupTimeout))
	}
	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, fmt.Errorf("auth.token_ttl must be > 0, got %v", c.Auth.TokenTTL))
	}
	if c.Auth.Leeway < 0 {
		errs = append(errs, fmt.Errorf("auth.leeway must not be negative, got %v", c.Auth.Leeway))
	}

	switch c.Storage.Type {
	case "memory", "postgres":
	default:
		errs = append(errs, fmt.Errorf("storage.type must be \"memory\" or \"postgres\", got %q", c.Storage.Type))
	}

	if c.Storage.Type == "postgres" {
		if c.Storage.Postgres.DSN == "" && c.Storage.Postgres.DSNFile == "" {
			errs = append(errs, fmt.Errorf("storage.postgres.dsn or storage.postgres.dsn_file is required when storage.type is \"postgres\""))
		}
		pg := c.Storage.Postgres
		if pg.MaxConns < 0 || pg.MinConns < 0 {
			errs = append(errs, fmt.Errorf("storage.postgres.max_conns and min_conns must not be negative"))
		}
		if pg.MaxConns > 0 && pg.MinConns > pg.MaxConns {
			errs = append(errs, fmt.Errorf("storage.postgres.min_conns (%d) must not exceed max_conns (%d)", pg.MinConns, pg.MaxConns))
		}
		if pg.MaxConnLifetime < 0 {
			errs = append(errs, fmt.Errorf("storage.postgres.max_conn_lifetime must not be negative"))
		}
	}

	if c.Auth.RateLimit.Enabled {
		switch c.Auth.RateLimit.Backend {
		case "memory":
		case "redis":
			if c.Redis.Addr == "" {
				errs = append(errs, fmt.Errorf("redis.addr is required when auth.rate_limit.backend is \"redis\""))
			}
		default:
			errs = append(errs, fmt.Errorf("auth.rate_limit.backend must be \"memory\" or \"redis\", got %q", c.Auth.RateLimit.Backend))
		}
		for name := range c.Auth.RateLimit.Tiers {
			if !auth.Role(name).Valid() {
				errs = append(errs, fmt.Errorf("auth.rate_limit.tiers: unknown role %q", name))
			}
		}
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level))
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be \"text\" or \"json\", got %q", c.Logging.Format))
	}

	return errors.Join(errs...)
}

// RateLimitTiers converts the configured tiers to per-role limits.
func (c *Config) RateLimitTiers() map[auth.Role]auth.TierConfig {
	tiers := make(map[auth.Role]auth.TierConfig, len(c.Auth.RateLimit.Tiers))
	for name, rpm := range c.Auth.RateLimit.Tiers {
		tiers[auth.Role(name)] = auth.TierConfig{RequestsPerMinute: rpm}
	}
	return tiers
}
