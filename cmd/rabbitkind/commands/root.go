// Package commands defines the CLI command structure and flag bindings.
//
// This package contains cobra command definitions that handle argument parsing,
// flag binding, and validation. Command execution is delegated to handler
// functions in the handlers package.
package commands

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/imamik/rabbitkind/internal/logging"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	verbose    bool
	logJSON    bool
}

var globals globalFlags

// Root returns the root command for the rabbitkind CLI.
//
// The root command owns the persistent --config, --verbose and --log-json
// flags and installs the logger into the command context before any
// subcommand runs.
func Root() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "rabbitkind",
		Short:         "Provision RabbitMQ with LDAP authentication on kind",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			log := logging.New(logging.Options{
				Verbose: globals.verbose,
				JSON:    globals.logJSON,
				Out:     os.Stderr,
			})
			logging.SetGlobal(log)
			cmd.SetContext(logging.IntoContext(cmd.Context(), log))
		},
	}

	cmd.PersistentFlags().StringVarP(&globals.configPath, "config", "c", "", "Path to configuration file (default: rabbitkind.yaml if present)")
	cmd.PersistentFlags().BoolVarP(&globals.verbose, "verbose", "v", false, "Enable debug logging")
	cmd.PersistentFlags().BoolVar(&globals.logJSON, "log-json", false, "Log as JSON lines")

	// Core commands
	cmd.AddCommand(Apply())
	cmd.AddCommand(Destroy())
	cmd.AddCommand(Report())

	// Utility commands
	cmd.AddCommand(Check())
	cmd.AddCommand(Doctor())
	cmd.AddCommand(Version())
	cmd.AddCommand(Completion())

	return cmd
}

// optionalBool returns a pointer to the flag's value when it was set and nil
// otherwise.
func optionalBool(cmd *cobra.Command, name string, value bool) *bool {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	return &value
}
