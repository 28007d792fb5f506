package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/sleepplanet/sleepplanet/internal/config"
	"github.com/sleepplanet/sleepplanet/internal/password"
	"github.com/sleepplanet/sleepplanet/internal/service"
	"github.com/sleepplanet/sleepplanet/internal/store"
)

const defaultConfigFile = "sleepplanet.yaml"

// resolveConfigPath returns the --config flag value, or ./sleepplanet.yaml
// when it exists, or "" to run on defaults and overrides alone.
func resolveConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	if _, err := os.Stat(defaultConfigFile); err == nil {
		return defaultConfigFile
	}
	return ""
}

// loadConfig builds the effective configuration: defaults, then the dotenv
// file, then the YAML file, then SLEEPPLANET_* variables and bound flags.
func loadConfig() (*config.AppConfig, error) {
	if envFile != "" {
		config.LoadDotEnv(envFile)
	}

	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyOverrides(viperLookup); err != nil {
		return nil, fmt.Errorf("apply overrides: %w", err)
	}
	return cfg, nil
}

func viperLookup(key string) (string, bool) {
	if !viper.IsSet(key) {
		return "", false
	}
	return viper.GetString(key), true
}

// newLogger builds the process logger from the logging section.
func newLogger(cfg config.LoggingConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// services bundles the components every command that touches accounts needs.
type services struct {
	store  *store.Store
	admins *service.AdminService
}

func (s *services) Close() error { return s.store.Close() }

// openServices connects to the account database and builds the admin service.
func openServices(ctx context.Context, cfg *config.AppConfig, logger *slog.Logger) (*services, error) {
	st, err := store.Open(ctx, storeConfig(cfg.Database))
	if err != nil {
		return nil, fmt.Errorf("open account store: %w", err)
	}

	tokens, err := service.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.ExpiresIn.Std())
	if err != nil {
		st.Close()
		return nil, err
	}
	hasher := password.NewHasher(password.Params{
		Memory:      cfg.Auth.Argon2.MemoryKiB,
		Iterations:  cfg.Auth.Argon2.Iterations,
		Parallelism: cfg.Auth.Argon2.Parallelism,
	})

	return &services{
		store:  st,
		admins: service.NewAdminService(st, hasher, tokens, logger),
	}, nil
}

func storeConfig(db config.DatabaseConfig) store.Config {
	return store.Config{
		Driver:           db.Driver,
		DSN:              db.URL,
		MaxOpenConns:     db.PoolSize,
		MaxIdleConns:     db.MinIdle,
		ConnMaxLifetime:  db.ConnMaxLifetime.Std(),
		CheckoutTimeout:  db.ConnectionTimeout.Std(),
		StatementTimeout: db.StatementTimeout.Std(),
		AutoMigrate:      db.AutoMigrate,
		SeedRoles:        db.SeedRoles,
	}
}

// versionString returns a display version string.
func versionString() string {
	if appVersion == "" || appVersion == "dev" {
		return "dev"
	}
	if strings.HasPrefix(appVersion, "v") {
		return appVersion
	}
	return "v" + appVersion
}
