package cli

import (
	"github.com/spf13/cobra"

	mcpserver "tagc/internal/mcp"
)

func mcpCommand(root *rootCommand) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve check/compile tools over MCP on stdin/stdout",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			// stdout carries the protocol; logs already go to stderr.
			return mcpserver.New(root.builds, root.logger).ServeStdio()
		},
	}
}
