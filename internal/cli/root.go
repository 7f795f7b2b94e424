// Package cli contains all commands for vulnwatchctl.
package cli

import (
	"os"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/vulnwatch/vulnwatch-client/internal/cli/config"
	"github.com/vulnwatch/vulnwatch-client/internal/cli/output"
)

var (
	cfgFile string
	verbose bool
	cfg     *config.Config
	printer *output.Printer
	version = "dev"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "vulnwatchctl",
	Short: "Vulnerability management CLI",
	Long: `vulnwatchctl is a command line client for a vulnerability management
backend. It signs in with local credentials or through an OpenID Connect
provider and works with products, observations and the other resources the
backend exposes.

Example usage:
  vulnwatchctl login --username admin     # Sign in with a password
  vulnwatchctl products list              # List products
  vulnwatchctl observations list --product 42
  vulnwatchctl whoami                     # Show the signed-in user
  vulnwatchctl logout`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the version string for the CLI.
func SetVersion(v string) {
	version = v
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .vulnwatchctl.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// initConfig loads the configuration and prepares logging and output.
func initConfig() error {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		return errors.Wrap(err, "loading config")
	}

	level := zerolog.InfoLevel
	if parsed, parseErr := zerolog.ParseLevel(cfg.Logging.Level); parseErr == nil {
		level = parsed
	}
	if verbose {
		level = zerolog.DebugLevel
	}
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()

	printer = output.NewPrinter(cfg.Output.Colors)
	return nil
}
