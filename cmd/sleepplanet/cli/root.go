package cli

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile    string
	envFile    string
	appVersion string // set in Execute, reported by serve and version
)

// overrideKeys are the config keys that SLEEPPLANET_* environment variables
// and command-line flags may override.
var overrideKeys = []string{
	"server.host",
	"server.port",
	"auth.jwt_secret",
	"auth.expires_in",
	"database.driver",
	"database.url",
	"database.pool_size",
	"database.connection_timeout",
	"database.statement_timeout",
	"logging.level",
	"logging.format",
}

// Execute creates the root command tree and runs it.
func Execute(version, commit, date string) error {
	appVersion = version
	rootCmd := newRootCmd(version, commit, date)
	return rootCmd.Execute()
}

func newRootCmd(version, commit, date string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sleepplanet",
		Short: "SleepPlanet administration server",
		Long: `SleepPlanet administration server.

Authenticates administrators, issues signed bearer credentials and manages the
administrator population (create, list, freeze, delete) behind a role-checked
HTTP API.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./sleepplanet.yaml if present)")
	cmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the config")

	cobra.OnInitialize(initConfig)

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newVersionCmd(version, commit, date))
	cmd.AddCommand(newAdminCmd())
	cmd.AddCommand(newOpenAPICmd())
	cmd.AddCommand(newConfigCmd())

	return cmd
}

// initConfig wires viper to the environment. The YAML file itself is parsed
// by the config package so that ${VAR} references are expanded; viper only
// supplies overrides.
func initConfig() {
	viper.SetEnvPrefix("SLEEPPLANET")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	for _, key := range overrideKeys {
		viper.BindEnv(key)
	}
}
