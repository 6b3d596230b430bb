package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Load loads configuration from a layered set of sources.
//
// The loading order is:
//  1. .env file (variables already set in the environment win)
//  2. Built-in defaults
//  3. YAML config file (explicit path, TUTOGATE_CONFIG env, ./config.yaml, /etc/tutogate/config.yaml)
//  4. Environment variable overrides
//  5. File reference resolution (_file suffix)
//  6. Validation
func Load(configPath string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	cfg := Defaults()

	filePath := discoverConfigFile(configPath)
	if filePath != "" {
		if err := loadYAMLFile(filePath, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", filePath, err)
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("applying environment: %w", err)
	}

	if err := resolveFileReferences(&cfg); err != nil {
		return nil, fmt.Errorf("resolving file references: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// loadDotEnv loads path into the process environment when it exists.
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// discoverConfigFile finds the config file path using the discovery order:
// 1. Explicit configPath argument
// 2. TUTOGATE_CONFIG environment variable
// 3. ./config.yaml in the current directory
// 4. /etc/tutogate/config.yaml
//
// Returns empty string if no config file is found.
func discoverConfigFile(configPath string) string {
	if configPath != "" {
		return configPath
	}

	if envPath := os.Getenv("TUTOGATE_CONFIG"); envPath != "" {
		return envPath
	}

	candidates := []string{
		"config.yaml",
		"/etc/tutogate/config.yaml",
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// loadYAMLFile reads and parses a YAML file into the Config struct.
// Fields not present in the YAML retain their current (default) values.
func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// applyEnvOverrides maps environment variables to config fields. The legacy
// JWT_SECRET and PORT names are applied first so TUTOGATE_* always wins.
// Malformed numeric or duration values are reported rather than ignored.
func applyEnvOverrides(cfg *Config) error {
	var errs []error

	setString := func(name string, dst *string) {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}
	setInt := func(name string, dst *int) {
		if v := os.Getenv(name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				return
			}
			*dst = n
		}
	}
	setInt32 := func(name string, dst *int32) {
		if v := os.Getenv(name); v != "" {
			n, err := strconv.ParseInt(v, 10, 32)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				return
			}
			*dst = int32(n)
		}
	}
	setDuration := func(name string, dst *time.Duration) {
		if v := os.Getenv(name); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				return
			}
			*dst = d
		}
	}
	setBool := func(name string, dst *bool) {
		if v := os.Getenv(name); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				return
			}
			*dst = b
		}
	}

	// Legacy names.
	setString("JWT_SECRET", &cfg.Auth.Secret)
	setInt("PORT", &cfg.Server.Port)

	setInt("TUTOGATE_PORT", &cfg.Server.Port)
	setString("TUTOGATE_JWT_SECRET", &cfg.Auth.Secret)
	setString("TUTOGATE_JWT_SECRET_FILE", &cfg.Auth.SecretFile)
	setString("TUTOGATE_JWT_ISSUER", &cfg.Auth.Issuer)
	setString("TUTOGATE_COOKIE_NAME", &cfg.Auth.CookieName)
	setDuration("TUTOGATE_TOKEN_TTL", &cfg.Auth.TokenTTL)
	setDuration("TUTOGATE_LOOKUP_TIMEOUT", &cfg.Auth.LookupTimeout)
	setBool("TUTOGATE_RATE_LIMIT_ENABLED", &cfg.Auth.RateLimit.Enabled)
	setString("TUTOGATE_RATE_LIMIT_BACKEND", &cfg.Auth.RateLimit.Backend)
	setInt("TUTOGATE_RATE_LIMIT_DEFAULT_RPM", &cfg.Auth.RateLimit.DefaultRPM)
	setString("TUTOGATE_STORAGE", &cfg.Storage.Type)
	setString("TUTOGATE_SEED_FILE", &cfg.Storage.SeedFile)
	setString("TUTOGATE_POSTGRES_DSN", &cfg.Storage.Postgres.DSN)
	setInt32("TUTOGATE_POSTGRES_MAX_CONNS", &cfg.Storage.Postgres.MaxConns)
	setInt32("TUTOGATE_POSTGRES_MIN_CONNS", &cfg.Storage.Postgres.MinConns)
	setDuration("TUTOGATE_POSTGRES_MAX_CONN_LIFETIME", &cfg.Storage.Postgres.MaxConnLifetime)
	setString("TUTOGATE_REDIS_ADDR", &cfg.Redis.Addr)
	setString("TUTOGATE_REDIS_PASSWORD", &cfg.Redis.Password)
	setString("TUTOGATE_LOG_LEVEL", &cfg.Logging.Level)
	setString("TUTOGATE_LOG_FORMAT", &cfg.Logging.Format)

	return errors.Join(errs...)
}

// resolveFileReferences reads _file fields and populates the corresponding value fields.
// For each field ending in _file, if the value field is empty and the file field is set,
// the file is read, whitespace is trimmed, and the value field is populated.
func resolveFileReferences(cfg *Config) error {
	if cfg.Auth.SecretFile != "" && cfg.Auth.Secret == "" {
		val, err := readSecretFile(cfg.Auth.SecretFile)
		if err != nil {
			return fmt.Errorf("auth.secret_file: %w", err)
		}
		cfg.Auth.Secret = val
	}

	if cfg.Storage.Postgres.DSNFile != "" && cfg.Storage.Postgres.DSN == "" {
		val, err := readSecretFile(cfg.Storage.Postgres.DSNFile)
		if err != nil {
			return fmt.Errorf("storage.postgres.dsn_file: %w", err)
		}
		cfg.Storage.Postgres.DSN = val
	}

	if cfg.Redis.PasswordFile != "" && cfg.Redis.Password == "" {
		val, err := readSecretFile(cfg.Redis.PasswordFile)
		if err != nil {
			return fmt.Errorf("redis.password_file: %w", err)
		}
		cfg.Redis.Password = val
	}

	return nil
}

// readSecretFile reads a file and returns its content with surrounding whitespace trimmed.
func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
