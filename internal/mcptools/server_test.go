package mcptools

import (
	"context"
	"encoding/json"
	"sort"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupServerClient wires an MCP server and client together using in-memory
// transports and returns the connected client session.
func setupServerClient(t *testing.T) *mcp.ClientSession {
	t.Helper()

	server := NewMCPServer(newTestService())
	st, ct := mcp.NewInMemoryTransports()

	ctx := context.Background()

	_, err := server.Connect(ctx, st, nil)
	require.NoError(t, err)

	client := mcp.NewClient(&mcp.Implementation{
		Name:    "test-client",
		Version: "1.0.0",
	}, nil)

	session, err := client.Connect(ctx, ct, nil)
	require.NoError(t, err)

	t.Cleanup(func() {
		session.Close()
	})

	return session
}

// decode round-trips structured content into out.
func decode(t *testing.T, result *mcp.CallToolResult, out any) {
	t.Helper()
	require.NotNil(t, result.StructuredContent, "expected structured content")
	raw, err := json.Marshal(result.StructuredContent)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, out))
}

func TestMCPListTools(t *testing.T) {
	session := setupServerClient(t)

	result, err := session.ListTools(context.Background(), &mcp.ListToolsParams{})
	require.NoError(t, err)

	names := make([]string, len(result.Tools))
	for i, tool := range result.Tools {
		names[i] = tool.Name
	}
	sort.Strings(names)
	assert.Equal(t, []string{"diff_files", "list_languages", "scan_files"}, names)
}

func TestMCPScanFiles(t *testing.T) {
	session := setupServerClient(t)

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name: "scan_files",
		Arguments: ScanFilesInput{Files: []FileInput{
			{Path: "app.js", Content: "var token = \"abc123\";\neval(token);\n"},
		}},
	})
	require.NoError(t, err)
	require.False(t, result.IsError, "scan_files should not return an error")

	var out ScanFilesOutput
	decode(t, result, &out)

	require.Len(t, out.Findings, 1)
	var ids []string
	for _, f := range out.Findings[0].Findings {
		ids = append(ids, f.RuleID)
	}
	assert.Equal(t, []string{"no-var", "hardcoded-secret", "eval-usage"}, ids)
}

func TestMCPScanFiles_MissingFilesIsToolError(t *testing.T) {
	session := setupServerClient(t)

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "scan_files",
		Arguments: ScanFilesInput{},
	})
	require.NoError(t, err, "handler errors surface as tool errors, not protocol errors")
	assert.True(t, result.IsError)
}

func TestMCPDiffFiles(t *testing.T) {
	session := setupServerClient(t)

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name: "diff_files",
		Arguments: DiffFilesInput{
			Before: []FileInput{{Path: "m.go", Content: "package m\n\nfunc A() {}\n\nfunc B() {}\n"}},
			After:  []FileInput{{Path: "m.go", Content: "package m\n\nfunc A() {}\n\nfunc C() {}\n"}},
		},
	})
	require.NoError(t, err)
	require.False(t, result.IsError)

	var out DiffFilesOutput
	decode(t, result, &out)
	assert.Equal(t, ChangeSummary{Added: 1, Removed: 1, Unchanged: 1}, out.Summary)
}

func TestMCPListLanguages(t *testing.T) {
	session := setupServerClient(t)

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "list_languages",
		Arguments: ListLanguagesInput{},
	})
	require.NoError(t, err)
	require.False(t, result.IsError)

	var out ListLanguagesOutput
	decode(t, result, &out)
	assert.Len(t, out.Capabilities, 7)
	assert.Len(t, out.Rules, 13)
}
