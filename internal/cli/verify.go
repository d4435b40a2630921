package cli

import (
	"github.com/spf13/cobra"
)

const verifyLongDescription = `Command "verify"

Read every configured artifact back and compare it with the tag table: same
number of tags, same order (the relational target on a server is compared by
code), same has_param flags and descriptions.
`

func verifyCommand(root *rootCommand) *cobra.Command {
	return &cobra.Command{
		Use:   "verify [target...]",
		Short: "Check that the artifacts match the tag table",
		Long:  verifyLongDescription,
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := root.builds.Verify(cmd.Context(), args...)
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
