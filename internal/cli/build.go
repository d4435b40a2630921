package cli

import (
	"github.com/spf13/cobra"
)

const buildLongDescription = `Command "build"

Load the tag table once, validate it (field count, has_param flag, code length,
unique codes) and write every configured artifact. Nothing is written when the
source is invalid. A failing target leaves the other targets' artifacts in place
and its own artifact unchanged.
`

func buildCommand(root *rootCommand) *cobra.Command {
	return &cobra.Command{
		Use:   "build [target...]",
		Short: "Compile the tag table into the configured artifacts",
		Long:  buildLongDescription,
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := root.builds.Build(cmd.Context(), args...)
			if result != nil {
				printResult(root.out, result)
			}
			if err != nil {
				return &buildError{err: err}
			}
			return nil
		},
	}
}
