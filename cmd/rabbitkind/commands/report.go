package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/rabbitkind/cmd/rabbitkind/handlers"
)

// Report returns the report command.
func Report() *cobra.Command {
	var opts handlers.ReportOptions

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Show the last run report",
		Long: `Report prints the last apply or destroy report: step states, durations,
errors and the credentials the run produced. Secrets are masked unless
--show-secrets is given.

Examples:
  rabbitkind report
  rabbitkind report -o json --show-secrets
  rabbitkind report --from-s3`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts.ConfigPath = globals.configPath
			return handlers.Report(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.Path, "path", "", "Report file (default: output.reportPath)")
	cmd.Flags().StringVarP(&opts.Format, "format", "o", handlers.FormatText, "Output format: text, json or yaml")
	cmd.Flags().BoolVar(&opts.ShowSecrets, "show-secrets", false, "Print passwords and kubeconfigs")
	cmd.Flags().BoolVar(&opts.FromS3, "from-s3", false, "Read the latest report from output.s3")
	cmd.MarkFlagsMutuallyExclusive("path", "from-s3")

	return cmd
}
