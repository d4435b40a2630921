package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"tagc/internal/emit"
	"tagc/internal/service"
)

// Server is the MCP server for tagc.
// It lets AI agents validate the tag source and run builds.
type Server struct {
	mcp    *server.MCPServer
	builds *service.BuildService
	logger *zap.Logger
}

// New creates and configures a new MCP server with all tools, resources
// and prompts.
func New(builds *service.BuildService, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{builds: builds, logger: logger}

	s.mcp = server.NewMCPServer(
		"tagc-mcp",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(true, false),
		server.WithPromptCapabilities(true),
	)
	s.registerTools()
	s.registerResources()
	s.registerPrompts()
	return s
}

// MCP returns the underlying server, mainly for in-process tests.
func (s *Server) MCP() *server.MCPServer {
	return s.mcp
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	s.logger.Info("[MCP] Starting stdio server...")
	return server.ServeStdio(s.mcp)
}

func (s *Server) registerTools() {
	s.mcp.AddTool(mcp.NewTool("check_tags",
		mcp.WithDescription("Load and validate the tag source (field count, has_param flag, code length, unique codes) without writing any artifact"),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{ReadOnlyHint: boolPtr(true)}),
	), s.handleCheck)

	s.mcp.AddTool(mcp.NewTool("compile_tags",
		mcp.WithDescription("🛑 DESTRUCTIVE: Compile the tag source into the configured artifacts (C array, JSON, relational table). Existing artifacts are replaced."),
		mcp.WithString("targets", mcp.Description("Optional comma-separated target types to build (default: all configured)")),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{DestructiveHint: boolPtr(true)}),
	), s.handleCompile)

	s.mcp.AddTool(mcp.NewTool("list_targets",
		mcp.WithDescription("List available artifact targets with their configuration fields and whether each is configured"),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{ReadOnlyHint: boolPtr(true)}),
	), s.handleListTargets)
}

func (s *Server) handleCheck(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	table, err := s.builds.Check(ctx)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	return jsonResult(map[string]any{
		"source": s.builds.Config().Source,
		"tags":   table.Len(),
	})
}

func (s *Server) handleCompile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var only []string
	if raw := req.GetString("targets", ""); raw != "" {
		for _, t := range strings.Split(raw, ",") {
			if t = strings.TrimSpace(t); t != "" {
				only = append(only, t)
			}
		}
	}

	result, err := s.builds.Build(ctx, only...)
	if err != nil {
		if result == nil {
			return errorResult(err.Error()), nil
		}
		data, _ := json.Marshal(result)
		return errorResult(fmt.Sprintf("%v\n%s", err, data)), nil
	}
	return jsonResult(result)
}

type targetInfo struct {
	emit.TargetSpec
	Configured bool `json:"configured"`
}

func (s *Server) handleListTargets(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	specs := emit.ListTargets()
	out := make([]targetInfo, len(specs))
	for i, spec := range specs {
		_, ok := s.builds.Config().Targets[spec.Type]
		out[i] = targetInfo{TargetSpec: spec, Configured: ok}
	}
	return jsonResult(out)
}

// textResult creates a simple text tool result.
func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

// errorResult reports a failed build or check to the agent.
func errorResult(text string) *mcp.CallToolResult {
	r := textResult(text)
	r.IsError = true
	return r
}

// jsonResult serializes v to JSON and wraps it in a text tool result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return textResult(string(data)), nil
}

func boolPtr(v bool) *bool { return &v }
