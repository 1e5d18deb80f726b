package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/rabbitkind/cmd/rabbitkind/handlers"
)

// Destroy returns the destroy command.
func Destroy() *cobra.Command {
	var opts handlers.DestroyOptions
	var tui bool

	cmd := &cobra.Command{
		Use:   "destroy",
		Short: "Delete everything apply created",
		Long: `Destroy deletes the provisioned resources in reverse dependency order,
finishing with the kind cluster itself.

The order and kubeconfig come from the last run report when there is one.
A failed delete is reported and the remaining steps still run.

Example:
  rabbitkind destroy --yes

WARNING: This operation is irreversible. Messages and directory entries are lost.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts.ConfigPath = globals.configPath
			opts.TUI = optionalBool(cmd, "tui", tui)
			return handlers.Destroy(cmd.Context(), opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.Yes, "yes", "y", false, "Do not ask for confirmation")
	cmd.Flags().BoolVar(&tui, "tui", false, "Show the progress view (default: when stdout is a terminal)")
	cmd.Flags().StringVar(&opts.MetricsFile, "metrics-file", "", "Write Prometheus metrics to this textfile")

	return cmd
}
