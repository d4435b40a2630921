package mcpserver

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tagc/internal/config"
	"tagc/internal/emit"
	"tagc/internal/service"
)

func newTestServer(t *testing.T, source string) (*Server, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/src/tags.csv", []byte(source), 0o644))
	cfg := &config.Config{
		Source:      "/src/tags.csv",
		Comma:       ',',
		Parallelism: 2,
		Targets: map[string]emit.TargetConfig{
			"json": {"output": "/out/tags.json"},
			"sql":  {"output": filepath.Join(t.TempDir(), "tags.db")},
		},
	}
	return New(service.NewBuildService(cfg, fs, nil, nil), nil), fs
}

func call(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "want text content, got %T", res.Content[0])
	return tc.Text
}

func TestCheckTags(t *testing.T) {
	s, _ := newTestServer(t, "ABC,1,moves left\nDEF,0,\n")

	res, err := s.handleCheck(context.Background(), call(nil))
	require.NoError(t, err)
	assert.False(t, res.IsError)

	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &out))
	assert.Equal(t, float64(2), out["tags"])
}

func TestCheckTags_Invalid(t *testing.T) {
	s, _ := newTestServer(t, "AAA,1,\nAAA,0,dup\n")

	res, err := s.handleCheck(context.Background(), call(nil))
	require.NoError(t, err, "tool failures are reported in the result")
	assert.True(t, res.IsError)
	assert.Contains(t, text(t, res), "DuplicateKey")
}

func TestCompileTags(t *testing.T) {
	s, fs := newTestServer(t, "ABC,1,moves left\nDEF,0,\n")

	res, err := s.handleCompile(context.Background(), call(map[string]any{"targets": "json"}))
	require.NoError(t, err)
	require.False(t, res.IsError, text(t, res))

	var result service.BuildResult
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &result))
	assert.Equal(t, service.StatusSuccess, result.Status)
	require.Len(t, result.Targets, 1)
	assert.Equal(t, "json", result.Targets[0].Target)

	data, err := afero.ReadFile(fs, "/out/tags.json")
	require.NoError(t, err)
	assert.Equal(t, `[["ABC",1,"moves left"],["DEF",0,""]]`+"\n", string(data))
}

func TestCompileTags_AllConfigured(t *testing.T) {
	s, _ := newTestServer(t, "s,1,sound\n")

	res, err := s.handleCompile(context.Background(), call(nil))
	require.NoError(t, err)
	require.False(t, res.IsError, text(t, res))

	var result service.BuildResult
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &result))
	assert.Len(t, result.Targets, 2)
}

func TestCompileTags_UnknownTarget(t *testing.T) {
	s, _ := newTestServer(t, "s,1,sound\n")

	res, err := s.handleCompile(context.Background(), call(map[string]any{"targets": "yaml"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, text(t, res), "unknown target type")
}

func TestListTargets(t *testing.T) {
	s, _ := newTestServer(t, "s,1,sound\n")

	res, err := s.handleListTargets(context.Background(), call(nil))
	require.NoError(t, err)

	var out []targetInfo
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &out))
	require.Len(t, out, 3)
	configured := map[string]bool{}
	for _, ti := range out {
		configured[ti.Type] = ti.Configured
	}
	assert.Equal(t, map[string]bool{"carray": false, "json": true, "sql": true}, configured)
}

func TestNew_ServerIsCreated(t *testing.T) {
	s, _ := newTestServer(t, "s,1,sound\n")
	assert.NotNil(t, s.MCP())
}

// ─────────────────────────────────────────────────────────────
// Resources & prompts
// ─────────────────────────────────────────────────────────────

func TestTagsResource(t *testing.T) {
	s, _ := newTestServer(t, "ABC,1,moves left\nDEF,0,\n")

	contents, err := s.handleTagsResource(context.Background(), mcp.ReadResourceRequest{})
	require.NoError(t, err)
	require.Len(t, contents, 1)
	rc, ok := contents[0].(mcp.TextResourceContents)
	require.True(t, ok)
	assert.Equal(t, tagsURI, rc.URI)

	var tags []tagSummary
	require.NoError(t, json.Unmarshal([]byte(rc.Text), &tags))
	assert.Equal(t, []tagSummary{
		{Code: "ABC", HasParam: true, Description: "moves left"},
		{Code: "DEF"},
	}, tags)
}

func TestTagResource(t *testing.T) {
	s, _ := newTestServer(t, "ABC,1,moves left\nDEF,0,\n")

	var req mcp.ReadResourceRequest
	req.Params.URI = "tagc://tags/DEF"
	contents, err := s.handleTagResource(context.Background(), req)
	require.NoError(t, err)
	assert.Contains(t, contents[0].(mcp.TextResourceContents).Text, `"code": "DEF"`)

	req.Params.URI = "tagc://tags/XYZ"
	_, err = s.handleTagResource(context.Background(), req)
	assert.ErrorContains(t, err, "not found")
}

func TestCodeFromURI(t *testing.T) {
	assert.Equal(t, "bpd", codeFromURI("tagc://tags/bpd"))
	assert.Empty(t, codeFromURI("tagc://tags/a/b"))
	assert.Empty(t, codeFromURI("notes://page/x"))
}

func TestAddTagPrompt(t *testing.T) {
	s, _ := newTestServer(t, "s,1,sound\n")

	var req mcp.GetPromptRequest
	req.Params.Arguments = map[string]string{"code": "shk", "description": "screen shake"}
	res, err := s.handleAddTagPrompt(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, res.Messages, 1)

	msg := res.Messages[0].Content.(mcp.TextContent).Text
	assert.Contains(t, msg, `"shk"`)
	assert.Contains(t, msg, "/src/tags.csv")
	assert.Contains(t, msg, "compile_tags")
}
