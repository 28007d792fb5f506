package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sleepplanet/sleepplanet/internal/metrics"
	"github.com/sleepplanet/sleepplanet/internal/server"
)

func newServeCmd() *cobra.Command {
	var (
		port int
		host string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the admin API server",
		Long:  "Start the HTTP server that exposes login and administrator management.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 5800, "HTTP listen port")
	cmd.Flags().StringVar(&host, "host", "0.0.0.0", "HTTP listen host")

	viper.BindPFlag("server.port", cmd.Flags().Lookup("port"))
	viper.BindPFlag("server.host", cmd.Flags().Lookup("host"))

	return cmd
}

func runServe(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration:\n%w", err)
	}
	logger := newLogger(cfg.Logging, os.Stderr)

	svcs, err := openServices(ctx, cfg, logger)
	if err != nil {
		return err
	}
	dialect := svcs.store.Dialect()
	logger.Info("account store ready", "dialect", dialect.Name, "sql_driver", dialect.DriverName, "pool_size", cfg.Database.PoolSize)

	hasAdmin, err := svcs.store.HasAnyAdmin(ctx)
	if err != nil {
		logger.Warn("failed to check for admin", "error", err)
	}
	if err == nil && !hasAdmin {
		logger.Warn("no administrator found - run: sleepplanet admin create")
	}

	srv := server.New(server.Config{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ShutdownTimeout: cfg.Server.ShutdownTimeout.Std(),
		CORSOrigins:     cfg.Server.CORS.Origins,
		CookieSecure:    cfg.Server.CookieSecure,
		LoginPerMinute:  cfg.RateLimit.LoginPerMinute,
	}, svcs.store, svcs.admins, metrics.New(), logger)

	fmt.Printf("→ SleepPlanet %s\n", versionString())
	fmt.Printf("→ Listening on http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Printf("→ OpenAPI:    http://%s:%d/openapi.json\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Printf("→ Health:     http://%s:%d/healthz\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Printf("→ Metrics:    http://%s:%d/metrics\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()

	return srv.ListenAndServe()
}
