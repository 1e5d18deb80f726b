package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/rabbitkind/cmd/rabbitkind/handlers"
)

// Apply returns the apply command.
func Apply() *cobra.Command {
	var opts handlers.ApplyOptions
	var tui bool

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Create the kind cluster, operators, OpenLDAP and RabbitMQ",
		Long: `Apply provisions a local RabbitMQ environment authenticating against OpenLDAP.

Steps run in dependency order:
  - kind cluster
  - namespace
  - cert-manager (Helm)
  - RabbitMQ cluster operator and messaging topology operator
  - LDAP credentials and OpenLDAP seeded with the configured users
  - RabbitmqCluster with the LDAP auth backend
  - RabbitMQ default-user credentials

Each step waits until its resources report ready. If a step fails, the
steps that already succeeded are deleted in reverse order unless
--no-rollback is given.

The run report, including generated credentials, is written to
output.reportPath (and to S3 when output.s3.bucket is set).

Examples:
  rabbitkind apply
  rabbitkind apply -c rabbitkind.yaml --resume
  rabbitkind apply --no-rollback --tui=false -v`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts.ConfigPath = globals.configPath
			opts.TUI = optionalBool(cmd, "tui", tui)
			return handlers.Apply(cmd.Context(), opts)
		},
	}

	cmd.Flags().BoolVar(&opts.Resume, "resume", false, "Skip steps the last report lists as succeeded")
	cmd.Flags().BoolVar(&opts.NoRollback, "no-rollback", false, "Keep succeeded steps when a later step fails")
	cmd.Flags().BoolVar(&tui, "tui", false, "Show the progress view (default: when stdout is a terminal)")
	cmd.Flags().StringVar(&opts.MetricsFile, "metrics-file", "", "Write Prometheus metrics to this textfile")
	cmd.Flags().BoolVar(&opts.ShowSecrets, "show-secrets", false, "Print generated passwords in the summary")
	cmd.Flags().BoolVar(&opts.SkipPrerequisites, "skip-prerequisites", false, "Do not check for docker, kind and kubectl")

	return cmd
}
