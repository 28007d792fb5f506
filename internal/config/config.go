package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// AppConfig represents the top-level sleepplanet configuration file. It is
// built once at startup and passed by value or pointer into every component;
// nothing mutates it afterwards.
type AppConfig struct {
	Server    ServerConfig    `yaml:"server"`
	Auth      AuthConfig      `yaml:"auth"`
	Database  DatabaseConfig  `yaml:"database"`
	Logging   LoggingConfig   `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// ServerConfig controls the HTTP server behavior.
type ServerConfig struct {
	Host            string     `yaml:"host"`
	Port            int        `yaml:"port"`
	ShutdownTimeout Duration   `yaml:"shutdown_timeout"`
	CookieSecure    bool       `yaml:"cookie_secure"`
	CORS            CORSConfig `yaml:"cors"`
}

// CORSConfig controls cross-origin resource sharing settings. An empty origin
// list disables CORS handling entirely.
type CORSConfig struct {
	Origins []string `yaml:"origins"`
}

// AuthConfig controls credential issuance and password hashing.
type AuthConfig struct {
	JWTSecret string       `yaml:"jwt_secret"`
	ExpiresIn Duration     `yaml:"expires_in"`
	Argon2    Argon2Config `yaml:"argon2"`
}

// Argon2Config holds the cost parameters for new password hashes.
type Argon2Config struct {
	MemoryKiB   uint32 `yaml:"memory_kib"`
	Iterations  uint32 `yaml:"iterations"`
	Parallelism uint8  `yaml:"parallelism"`
}

// DatabaseConfig describes the relational store holding administrator accounts.
type DatabaseConfig struct {
	Driver            string   `yaml:"driver"` // postgres, mysql, sqlite
	URL               string   `yaml:"url"`
	PoolSize          int      `yaml:"pool_size"`
	MinIdle           int      `yaml:"min_idle"`
	ConnMaxLifetime   Duration `yaml:"conn_max_lifetime"`
	ConnectionTimeout Duration `yaml:"connection_timeout"`
	StatementTimeout  Duration `yaml:"statement_timeout"`
	AutoMigrate       bool     `yaml:"auto_migrate"`
	SeedRoles         []string `yaml:"seed_roles"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// RateLimitConfig limits login attempts per client IP.
type RateLimitConfig struct {
	LoginPerMinute int `yaml:"login_per_minute"`
}

// Duration is a time.Duration that unmarshals from either a Go duration
// string ("24h") or a plain integer number of seconds (86400).
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := ParseDuration(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// ParseDuration accepts "90s", "24h" or a bare integer meaning seconds.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return d, nil
}

// Default returns an AppConfig pre-filled with sensible defaults. The JWT
// secret and database URL have no default and must be supplied.
func Default() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            5800,
			ShutdownTimeout: Duration(60 * time.Second),
			CORS:            CORSConfig{Origins: []string{}},
		},
		Auth: AuthConfig{
			ExpiresIn: Duration(24 * time.Hour),
			Argon2: Argon2Config{
				MemoryKiB:   64 * 1024,
				Iterations:  3,
				Parallelism: 2,
			},
		},
		Database: DatabaseConfig{
			Driver:            "postgres",
			PoolSize:          10,
			ConnMaxLifetime:   Duration(30 * time.Minute),
			ConnectionTimeout: Duration(30 * time.Second),
			StatementTimeout:  Duration(30 * time.Second),
			AutoMigrate:       true,
			SeedRoles:         []string{},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		RateLimit: RateLimitConfig{
			LoginPerMinute: 20,
		},
	}
}

// LoadDotEnv loads the first .env file found among paths. Existing process
// environment variables always win over file values.
func LoadDotEnv(paths ...string) string {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err == nil {
			return p
		}
	}
	return ""
}

// Load reads the YAML file at path on top of Default(). Environment variables
// referenced as ${VAR_NAME} in the file are expanded before parsing. An empty
// path returns the defaults.
func Load(path string) (*AppConfig, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	content := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(content), cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return cfg, nil
}

// Lookup returns an override value for a dotted config key ("auth.jwt_secret")
// and whether it was set.
type Lookup func(key string) (string, bool)

// ApplyOverrides layers non-empty override values onto the config. It is fed
// from viper so that SLEEPPLANET_* environment variables and bound flags take
// precedence over the file.
func (c *AppConfig) ApplyOverrides(lookup Lookup) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	dur := func(key string, dst *Duration) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		d, err := ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = Duration(d)
		return nil
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: invalid integer %q", key, v)
		}
		*dst = n
		return nil
	}

	str("server.host", &c.Server.Host)
	str("auth.jwt_secret", &c.Auth.JWTSecret)
	str("database.driver", &c.Database.Driver)
	str("database.url", &c.Database.URL)
	str("logging.level", &c.Logging.Level)
	str("logging.format", &c.Logging.Format)

	for _, err := range []error{
		num("server.port", &c.Server.Port),
		num("database.pool_size", &c.Database.PoolSize),
		dur("auth.expires_in", &c.Auth.ExpiresIn),
		dur("database.connection_timeout", &c.Database.ConnectionTimeout),
		dur("database.statement_timeout", &c.Database.StatementTimeout),
	} {
		if err != nil {
			return err
		}
	}

	// DATABASE_URL is honoured as a last resort, matching common deployment setups.
	if c.Database.URL == "" {
		c.Database.URL = os.Getenv("DATABASE_URL")
	}
	return nil
}

// Validate reports configuration that would make the service unusable. The
// server refuses to start when it returns an error.
func (c *AppConfig) Validate() error {
	var errs []error
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("auth.jwt_secret is empty"))
	}
	if c.Auth.ExpiresIn.Std() < time.Second {
		errs = append(errs, errors.New("auth.expires_in must be at least 1s"))
	}
	if c.Database.URL == "" {
		errs = append(errs, errors.New("database.url is empty (set DATABASE_URL)"))
	}
	switch c.Database.Driver {
	case "postgres", "mysql", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("database.driver %q is not supported", c.Database.Driver))
	}
	if c.Database.PoolSize < 0 {
		errs = append(errs, errors.New("database.pool_size must not be negative"))
	}
	return errors.Join(errs...)
}

// Marshal renders the config as YAML with the secret masked.
func (c *AppConfig) Marshal() ([]byte, error) {
	masked := *c
	if masked.Auth.JWTSecret != "" {
		masked.Auth.JWTSecret = "********"
	}
	return yaml.Marshal(&masked)
}

// WriteDefault writes the default configuration to a YAML file.
func WriteDefault(path string) error {
	data, err := yaml.Marshal(Default())
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
