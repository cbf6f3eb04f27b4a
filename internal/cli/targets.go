package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/wehubfusion/Daedalus/pkg/process/targets"
)

func newTargetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "targets",
		Short: "List targets and their stages",
		RunE: func(cmd *cobra.Command, args []string) error {
			registry := targets.NewRegistry()
			names := make([]string, 0, len(targets.Targets))
			for name := range targets.Targets {
				names = append(names, name)
			}
			sort.Strings(names)

			out := cmd.OutOrStdout()
			for _, name := range names {
				processors, err := targets.Processors(registry, name)
				if err != nil {
					return err
				}
				if _, err := fmt.Fprintf(out, "%s:\n", name); err != nil {
					return err
				}
				for i, p := range processors {
					suffix := ""
					if p.Suspends {
						suffix = " (suspends)"
					}
					if _, err := fmt.Fprintf(out, "  %d. %s%s\n", i+1, p.Name, suffix); err != nil {
						return err
					}
				}
			}
			return nil
		},
	}
}
