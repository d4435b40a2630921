package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"tagc/internal/emit"
)

func targetsCommand(root *rootCommand) *cobra.Command {
	return &cobra.Command{
		Use:         "targets",
		Short:       "List the artifact targets and their settings",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{noConfig: "true"},
		RunE: func(*cobra.Command, []string) error {
			w := tabwriter.NewWriter(root.out, 0, 4, 2, ' ', 0)
			for _, spec := range emit.ListTargets() {
				fmt.Fprintf(w, "%s\t%s\t%s\n", spec.Type, spec.Label, spec.Extension)
				for _, f := range spec.ConfigFields {
					var notes []string
					if f.Required {
						notes = append(notes, "required")
					}
					if f.Default != "" {
						notes = append(notes, "default "+f.Default)
					}
					fmt.Fprintf(w, "  targets.%s.%s\t%s\t%s\n", spec.Type, f.Key, f.Type, strings.Join(notes, ", "))
				}
			}
			return w.Flush()
		},
	}
}
