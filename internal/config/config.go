// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

// Package config loads passgate configuration from flags, an optional YAML
// file and the environment.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"io/fs"
	"log/slog"
	"net"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/passgate/passgate/internal/xdg"
)

// Database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

// Session backends.
const (
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendMemory   = "memory"
)

// EnvPrefix marks environment variables that map onto config keys.
// PASSGATE_SESSION__TTL sets session.ttl.
const EnvPrefix = "PASSGATE_"

// MinSecretLength is the shortest accepted session-signing secret.
const MinSecretLength = 32

// Default values for flags.
const (
	defaultHTTPAddr    = "127.0.0.1:8080"
	defaultMetricsAddr = "127.0.0.1:9100"
	defaultLogFormat   = "json"
	defaultLogLevel    = "info"
	defaultCookieName  = "passgate_session"
	defaultSessionTTL  = 24 * time.Hour
	defaultBcryptCost  = 10
)

// Config is the full passgate configuration.
type Config struct {
	HTTPAddr    string `koanf:"http_addr"`
	MetricsAddr string `koanf:"metrics_addr"`
	LogFormat   string `koanf:"log_format"`
	LogLevel    string `koanf:"log_level"`

	Database DatabaseConfig `koanf:"database"`
	Session  SessionConfig  `koanf:"session"`
	Hasher   HasherConfig   `koanf:"hasher"`
}

// DatabaseConfig selects and addresses the credential store.
type DatabaseConfig struct {
	URL         string `koanf:"url"`
	Host        string `koanf:"host"`
	Port        int    `koanf:"port"`
	User        string `koanf:"user"`
	Password    string `koanf:"password"`
	Name        string `koanf:"name"`
	Driver      string `koanf:"driver"`
	SQLitePath  string `koanf:"sqlite_path"`
	AutoMigrate bool   `koanf:"auto_migrate"`
}

// SessionConfig controls session binding and the signed cookie.
type SessionConfig struct {
	Secret     string        `koanf:"secret"`
	Backend    string        `koanf:"backend"`
	TTL        time.Duration `koanf:"ttl"`
	RedisURL   string        `koanf:"redis_url"`
	CookieName string        `koanf:"cookie_name"`
	Secure     bool          `koanf:"secure"`
}

// HasherConfig selects the password hashing algorithm.
type HasherConfig struct {
	Algorithm     string `koanf:"algorithm"`
	BcryptCost    int    `koanf:"bcrypt_cost"`
	MaxConcurrent int64  `koanf:"max_concurrent"`
}

// flagKeys maps flag names to config keys.
var flagKeys = map[string]string{
	"http-addr":           "http_addr",
	"metrics-addr":        "metrics_addr",
	"log-format":          "log_format",
	"log-level":           "log_level",
	"database-url":        "database.url",
	"db-driver":           "database.driver",
	"sqlite-path":         "database.sqlite_path",
	"auto-migrate":        "database.auto_migrate",
	"session-backend":     "session.backend",
	"session-ttl":         "session.ttl",
	"redis-url":           "session.redis_url",
	"cookie-name":         "session.cookie_name",
	"cookie-secure":       "session.secure",
	"hasher":              "hasher.algorithm",
	"bcrypt-cost":         "hasher.bcrypt_cost",
	"max-concurrent-hash": "hasher.max_concurrent",
}

// envKeys maps the well-known unprefixed environment variables.
var envKeys = map[string]string{
	"DATABASE_URL":   "database.url",
	"DB_HOST":        "database.host",
	"DB_PORT":        "database.port",
	"DB_USER":        "database.user",
	"DB_PASSWORD":    "database.password",
	"DB_DATABASE":    "database.name",
	"SESSION_SECRET": "session.secret",
	"REDIS_URL":      "session.redis_url",
}

// RegisterFlags adds the configuration flags and their defaults to flags.
func RegisterFlags(flags *pflag.FlagSet) {
	flags.String("http-addr", defaultHTTPAddr, "HTTP listen address")
	flags.String("metrics-addr", defaultMetricsAddr, "metrics/health HTTP address (empty = disabled)")
	flags.String("log-format", defaultLogFormat, "log format (json or text)")
	flags.String("log-level", defaultLogLevel, "log level (debug, info, warn, error)")
	flags.String("database-url", "", "PostgreSQL connection URL")
	flags.String("db-driver", DriverPostgres, "credential store (postgres, sqlite, memory)")
	flags.String("sqlite-path", "", "SQLite database file (default: XDG_DATA_HOME/passgate/passgate.db)")
	flags.Bool("auto-migrate", true, "apply pending migrations on startup")
	flags.String("session-backend", BackendPostgres, "session store (postgres, redis, memory)")
	flags.Duration("session-ttl", defaultSessionTTL, "session lifetime")
	flags.String("redis-url", "", "Redis URL for the redis session backend")
	flags.String("cookie-name", defaultCookieName, "session cookie name")
	flags.Bool("cookie-secure", true, "mark the session cookie Secure")
	flags.String("hasher", "argon2id", "password hashing algorithm (argon2id or bcrypt)")
	flags.Int("bcrypt-cost", defaultBcryptCost, "bcrypt cost factor")
	flags.Int64("max-concurrent-hash", 0, "hash operations in flight (0 = 4 x GOMAXPROCS)")
}

// Load builds a Config. Sources are applied lowest precedence first: flag
// defaults, the YAML file, the environment, then flags set explicitly.
// An empty path falls back to the XDG config file when one exists.
func Load(flags *pflag.FlagSet, path string) (*Config, error) {
	k := koanf.New(".")

	explicit := path != ""
	if !explicit {
		if p, err := xdg.ConfigFile(); err == nil {
			path = p
		}
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			if explicit || !errors.Is(err, fs.ErrNotExist) {
				return nil, oops.Code("CONFIG_LOAD_FAILED").
					With("path", path).
					Wrapf(err, "read config file")
			}
		}
	}

	if err := k.Load(env.ProviderWithValue("", ".", envKey), nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").Wrapf(err, "read environment")
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, flagValue(flags)), nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").Wrapf(err, "read flags")
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, oops.Code("CONFIG_INVALID").Wrapf(err, "decode config")
	}
	return cfg, nil
}

func envKey(name, value string) (string, any) {
	if value == "" {
		return "", nil
	}
	if key, ok := envKeys[name]; ok {
		return key, value
	}
	if rest, ok := strings.CutPrefix(name, EnvPrefix); ok && rest != "" {
		return strings.ReplaceAll(strings.ToLower(rest), "__", "."), value
	}
	return "", nil
}

func flagValue(flags *pflag.FlagSet) func(*pflag.Flag) (string, any) {
	return func(f *pflag.Flag) (string, any) {
		key, ok := flagKeys[f.Name]
		if !ok {
			return "", nil
		}
		return key, posflag.FlagVal(flags, f)
	}
}

// Validate checks enum values and backend combinations.
func (c *Config) Validate() error {
	invalid := oops.Code("CONFIG_INVALID")

	if c.HTTPAddr == "" {
		return invalid.Errorf("http_addr is required")
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return invalid.With("log_format", c.LogFormat).Errorf("log_format must be 'json' or 'text'")
	}
	if !slices.Contains([]string{"debug", "info", "warn", "error"}, strings.ToLower(c.LogLevel)) {
		return invalid.With("log_level", c.LogLevel).Errorf("log_level must be debug, info, warn or error")
	}

	if err := c.Database.Validate(); err != nil {
		return err
	}

	switch c.Session.Backend {
	case BackendPostgres:
		if c.Database.Driver != DriverPostgres {
			return invalid.With("driver", c.Database.Driver).
				Errorf("postgres session backend requires the postgres driver")
		}
	case BackendRedis:
		if c.Session.RedisURL == "" {
			return invalid.Errorf("redis session backend requires REDIS_URL")
		}
	case BackendMemory:
	default:
		return invalid.With("backend", c.Session.Backend).Errorf("unknown session backend")
	}

	if c.Session.TTL <= 0 {
		return invalid.With("ttl", c.Session.TTL).Errorf("session ttl must be positive")
	}
	if c.Session.CookieName == "" {
		return invalid.Errorf("session cookie_name is required")
	}
	if c.Session.Secret != "" && len(c.Session.Secret) < MinSecretLength {
		return invalid.With("min_length", MinSecretLength).Errorf("session secret is too short")
	}

	switch c.Hasher.Algorithm {
	case "", "argon2id", "bcrypt":
	default:
		return invalid.With("algorithm", c.Hasher.Algorithm).Errorf("unknown hasher")
	}
	if c.Hasher.MaxConcurrent < 0 {
		return invalid.With("max_concurrent", c.Hasher.MaxConcurrent).Errorf("max_concurrent must not be negative")
	}
	return nil
}

// Validate checks the driver and that it has what it needs to connect.
func (d DatabaseConfig) Validate() error {
	switch d.Driver {
	case DriverPostgres:
		if d.DSN() == "" {
			return oops.Code("CONFIG_INVALID").Errorf("postgres driver requires DATABASE_URL or DB_HOST")
		}
	case DriverSQLite, DriverMemory:
	default:
		return oops.Code("CONFIG_INVALID").With("driver", d.Driver).Errorf("unknown database driver")
	}
	return nil
}

// DSN returns the PostgreSQL connection string. DATABASE_URL wins; otherwise
// one is assembled from the DB_* parts. It returns "" when neither is set.
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	if d.Host == "" {
		return ""
	}

	host := d.Host
	if d.Port != 0 {
		host = net.JoinHostPort(d.Host, strconv.Itoa(d.Port))
	}
	u := url.URL{Scheme: "postgres", Host: host, Path: "/" + d.Name}
	switch {
	case d.User != "" && d.Password != "":
		u.User = url.UserPassword(d.User, d.Password)
	case d.User != "":
		u.User = url.User(d.User)
	}
	return u.String()
}

// ResolveSQLitePath returns the configured SQLite path, or the XDG default
// with its directory created.
func (d DatabaseConfig) ResolveSQLitePath() (string, error) {
	if d.SQLitePath != "" {
		return d.SQLitePath, nil
	}
	dir, err := xdg.DataDir()
	if err != nil {
		return "", err
	}
	if err := xdg.EnsureDir(dir); err != nil {
		return "", err
	}
	return xdg.SQLitePath()
}

// EnsureSessionSecret fills in a random secret when none is configured.
// Sessions signed with a generated secret do not survive a restart.
func (c *Config) EnsureSessionSecret(logger *slog.Logger) error {
	if c.Session.Secret != "" {
		return nil
	}
	buf := make([]byte, MinSecretLength)
	if _, err := rand.Read(buf); err != nil {
		return oops.Code("CONFIG_SECRET_FAILED").Wrapf(err, "generate session secret")
	}
	c.Session.Secret = hex.EncodeToString(buf)
	logger.Warn("SESSION_SECRET not set; generated a random secret, sessions will not survive restart")
	return nil
}
