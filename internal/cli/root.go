// Package cli implements the formproc command line.
package cli

import (
	"github.com/spf13/cobra"
)

// Execute runs the root command.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "formproc",
		Short:         "Run form submission pipelines",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(newProcessCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newTargetsCmd())
	return cmd
}
