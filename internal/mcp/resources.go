package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"tagc/internal/domain"
)

const (
	tagsURI      = "tagc://tags"
	tagURIPrefix = "tagc://tags/"
)

func (s *Server) registerResources() {
	// ── tagc://tags ────────────────────────────────────
	s.mcp.AddResource(mcp.NewResource(
		tagsURI,
		"Tag Table",
		mcp.WithResourceDescription("The validated tag table in source order"),
		mcp.WithMIMEType("application/json"),
	), s.handleTagsResource)

	// ── tagc://tags/{code} ─────────────────────────────
	s.mcp.AddResourceTemplate(
		mcp.NewResourceTemplate(
			"tagc://tags/{code}",
			"Single Tag",
		),
		s.handleTagResource,
	)
}

// tagSummary is the JSON shape of a tag for agents.
type tagSummary struct {
	Code        string `json:"code"`
	HasParam    bool   `json:"hasParam"`
	Description string `json:"description,omitempty"`
}

func summarizeTag(t domain.Tag) tagSummary {
	d, _ := t.Desc()
	return tagSummary{Code: t.Code, HasParam: t.HasParam, Description: d}
}

func (s *Server) handleTagsResource(ctx context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	table, err := s.builds.Check(ctx)
	if err != nil {
		return nil, err
	}

	summaries := make([]tagSummary, table.Len())
	for i, t := range table.All() {
		summaries[i] = summarizeTag(t)
	}
	return jsonResource(tagsURI, summaries)
}

func (s *Server) handleTagResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uri := req.Params.URI
	code := codeFromURI(uri)
	if code == "" {
		return nil, fmt.Errorf("could not extract code from URI: %s", uri)
	}

	table, err := s.builds.Check(ctx)
	if err != nil {
		return nil, err
	}
	tag, ok := table.Get(code)
	if !ok {
		return nil, fmt.Errorf("tag %q not found", code)
	}
	return jsonResource(uri, summarizeTag(tag))
}

// codeFromURI extracts the code from "tagc://tags/{code}".
func codeFromURI(uri string) string {
	code, ok := strings.CutPrefix(uri, tagURIPrefix)
	if !ok || strings.Contains(code, "/") {
		return ""
	}
	return code
}

func jsonResource(uri string, v any) ([]mcp.ResourceContents, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal resource: %w", err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
