// Package config loads the laku server configuration from YAML or TOML.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server" toml:"server"`
	Database DatabaseConfig `yaml:"database" toml:"database"`
	Redis    RedisConfig    `yaml:"redis" toml:"redis"`
	Ledger   LedgerConfig   `yaml:"ledger" toml:"ledger"`
	Logging  LoggingConfig  `yaml:"logging" toml:"logging"`
}

type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr" toml:"http_addr"`
	GRPCAddr string `yaml:"grpc_addr" toml:"grpc_addr"`
}

type DatabaseConfig struct {
	Driver          string        `yaml:"driver" toml:"driver"`
	DSN             string        `yaml:"dsn" toml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns" toml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" toml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"-" toml:"-"`
	Migrate         bool          `yaml:"migrate" toml:"migrate"`

	ConnMaxLifetimeRaw string `yaml:"conn_max_lifetime" toml:"conn_max_lifetime"`
}

// RedisConfig enables the Redis idempotency guard. When disabled the server
// deduplicates request ids in process memory.
type RedisConfig struct {
	Enabled        bool          `yaml:"enabled" toml:"enabled"`
	Addr           string        `yaml:"addr" toml:"addr"`
	PoolSize       int           `yaml:"pool_size" toml:"pool_size"`
	IdempotencyTTL time.Duration `yaml:"-" toml:"-"`

	IdempotencyTTLRaw string `yaml:"idempotency_ttl" toml:"idempotency_ttl"`
}

type LedgerConfig struct {
	Timezone         string        `yaml:"timezone" toml:"timezone"`
	OperationTimeout time.Duration `yaml:"-" toml:"-"`

	OperationTimeoutRaw string `yaml:"operation_timeout" toml:"operation_timeout"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// Default returns a configuration that runs against a local MySQL with an
// in-memory idempotency guard.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPAddr: ":8080",
			GRPCAddr: ":50051",
		},
		Database: DatabaseConfig{
			Driver:          "mysql",
			DSN:             "root:root@tcp(localhost:3306)/laku",
			MaxOpenConns:    50,
			MaxIdleConns:    25,
			ConnMaxLifetime: 5 * time.Minute,
			Migrate:         true,
		},
		Redis: RedisConfig{
			Addr:           "localhost:6379",
			PoolSize:       100,
			IdempotencyTTL: 24 * time.Hour,
		},
		Ledger: LedgerConfig{
			Timezone:         "Local",
			OperationTimeout: 5 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads a configuration file on top of Default. Files ending in .toml
// are decoded as TOML, anything else as YAML. ${VAR} references are expanded
// before decoding and environment overrides are applied after.
// An empty path loads the defaults plus environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}

		expanded := expandEnvVars(string(data))
		if strings.EqualFold(filepath.Ext(path), ".toml") {
			if _, err := toml.Decode(expanded, cfg); err != nil {
				return nil, fmt.Errorf("parsing config file: %w", err)
			}
		} else if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}

		if err := parseDurations(cfg); err != nil {
			return nil, fmt.Errorf("parsing durations: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR} with its environment value, or "" when unset.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envVarPattern.FindStringSubmatch(match)[1])
	})
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("LAKU_DB_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
		cfg.Redis.Enabled = true
	}
}

func parseDurations(cfg *Config) error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"database.conn_max_lifetime", cfg.Database.ConnMaxLifetimeRaw, &cfg.Database.ConnMaxLifetime},
		{"redis.idempotency_ttl", cfg.Redis.IdempotencyTTLRaw, &cfg.Redis.IdempotencyTTL},
		{"ledger.operation_timeout", cfg.Ledger.OperationTimeoutRaw, &cfg.Ledger.OperationTimeout},
	}
	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = d
	}
	return nil
}

// Validate returns the first invalid setting it finds.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Database.Driver) {
	case "mysql", "postgres", "postgresql", "pgx", "sqlite", "sqlite3":
	default:
		return fmt.Errorf("database.driver %q is not supported (mysql, postgres, sqlite)", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if c.Database.MaxOpenConns < 0 || c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database pool sizes must not be negative")
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required when redis is enabled")
	}
	if c.Redis.IdempotencyTTL <= 0 {
		return fmt.Errorf("redis.idempotency_ttl must be positive")
	}
	if c.Ledger.OperationTimeout < 0 {
		return fmt.Errorf("ledger.operation_timeout must not be negative")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	switch c.Logging.Format {
	case "", "json", "console":
	default:
		return fmt.Errorf("logging.format %q must be json or console", c.Logging.Format)
	}
	return nil
}

// Location resolves ledger.timezone. Empty and "Local" mean the host zone.
func (c *Config) Location() (*time.Location, error) {
	switch c.Ledger.Timezone {
	case "", "Local":
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Ledger.Timezone)
	if err != nil {
		return nil, fmt.Errorf("ledger.timezone %q: %w", c.Ledger.Timezone, err)
	}
	return loc, nil
}
