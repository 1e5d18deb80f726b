package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/rabbitkind/cmd/rabbitkind/handlers"
)

// Doctor returns the command that checks for the client tools rabbitkind
// drives: docker, kind and kubectl, plus helm as an optional extra.
func Doctor() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check that required tools are installed",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Doctor(cmd.Context())
		},
	}
}
