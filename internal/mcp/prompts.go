package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerPrompts() {
	s.mcp.AddPrompt(mcp.NewPrompt("add_tag",
		mcp.WithPromptDescription("Guide through adding a new animation tag to the source table and rebuilding the artifacts"),
		mcp.WithArgument("code",
			mcp.ArgumentDescription("Tag code, 1 to 3 characters"),
			mcp.RequiredArgument(),
		),
		mcp.WithArgument("description",
			mcp.ArgumentDescription("What the tag does"),
		),
	), s.handleAddTagPrompt)
}

func (s *Server) handleAddTagPrompt(_ context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	code := req.Params.Arguments["code"]
	desc := req.Params.Arguments["description"]
	source := s.builds.Config().Source
	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Add the %q tag", code),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.TextContent{
					Type: "text",
					Text: fmt.Sprintf(`Add the animation tag %q to %s. Follow these steps:

1. Read the tagc://tags resource and make sure no tag already uses the code %q.
2. Append one CSV row to %s: code, has_param (1 if the tag takes a numeric parameter, else 0), description.
   Description: %q (leave the field empty if there is none).
3. Run check_tags and fix any MalformedRow, InvalidFlag, InvalidCode or DuplicateKey error it reports.
4. Run compile_tags to regenerate every artifact.

Codes are matched longest first (3, 2, then 1 characters), so a new code must not
change how existing animation strings are read.`, code, source, code, source, desc),
				},
			},
		},
	}, nil
}
