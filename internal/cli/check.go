package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func checkCommand(root *rootCommand) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the tag table without writing anything",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			table, err := root.builds.Check(cmd.Context())
			if err != nil {
				return &buildError{err: err}
			}
			fmt.Fprintf(root.out, "%s: %d tags OK\n", root.cfg.Source, table.Len())
			return nil
		},
	}
}
