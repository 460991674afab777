package llm

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/opsrelay/opsrelay/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	logger.InitForTests()
}

type fakeCaller struct {
	result *mcp.CallToolResult
	err    error
	calls  []string
}

func (f *fakeCaller) CallTool(_ context.Context, name string, _ map[string]any) (*mcp.CallToolResult, error) {
	f.calls = append(f.calls, name)
	return f.result, f.err
}

type fakeRecorder struct {
	names    []string
	statuses []string
	outputs  []string
}

func (f *fakeRecorder) SaveToolCall(_ context.Context, _, toolName string, _ map[string]any, output, status string) error {
	f.names = append(f.names, toolName)
	f.statuses = append(f.statuses, status)
	f.outputs = append(f.outputs, output)
	return nil
}

func textResult(s string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{mcp.TextContent{Type: "text", Text: s}}}
}

func TestDispatcher_Invoke(t *testing.T) {
	t.Run("Should surface the first text part on success", func(t *testing.T) {
		d := NewDispatcher(&fakeCaller{result: textResult("total 4\ndrwxr-xr-x")})
		out := d.Invoke(context.Background(), "run_terminal_command", map[string]any{"command": "ls"})
		assert.Equal(t, StatusSuccess, out.Status)
		assert.Equal(t, "total 4\ndrwxr-xr-x", out.Text)
	})

	t.Run("Should convert caller faults into error outcomes", func(t *testing.T) {
		d := NewDispatcher(&fakeCaller{err: errors.New("connection refused")})
		out := d.Invoke(context.Background(), "run_terminal_command", nil)
		assert.Equal(t, StatusError, out.Status)
		assert.Contains(t, out.Text, "run_terminal_command")
		assert.Contains(t, out.Text, "connection refused")
	})

	t.Run("Should classify tool-reported errors as error status", func(t *testing.T) {
		result := textResult("Directory not found: /nope")
		result.IsError = true
		d := NewDispatcher(&fakeCaller{result: result})
		out := d.Invoke(context.Background(), "run_terminal_command", nil)
		assert.Equal(t, StatusError, out.Status)
		assert.Equal(t, "Directory not found: /nope", out.Text)
	})

	t.Run("Should truncate oversized output to the cap", func(t *testing.T) {
		d := NewDispatcher(&fakeCaller{result: textResult(strings.Repeat("x", MaxToolResultChars*3))})
		out := d.Invoke(context.Background(), "read_file", nil)
		assert.Equal(t, StatusSuccess, out.Status)
		assert.Len(t, out.Text, MaxToolResultChars)
	})

	t.Run("Should serialize non-text content as JSON", func(t *testing.T) {
		result := &mcp.CallToolResult{Content: []mcp.Content{
			mcp.ImageContent{Type: "image", Data: "aGk=", MIMEType: "image/png"},
		}}
		d := NewDispatcher(&fakeCaller{result: result})
		out := d.Invoke(context.Background(), "screenshot", nil)
		assert.Equal(t, StatusSuccess, out.Status)
		assert.Contains(t, out.Text, "image/png")
	})

	t.Run("Should record every invocation when a recorder is configured", func(t *testing.T) {
		rec := &fakeRecorder{}
		okCaller := &fakeCaller{result: textResult("ok")}
		d := NewDispatcher(okCaller).WithRecorder(rec, "session-1")
		d.Invoke(context.Background(), "get_system_info", nil)

		failing := &fakeCaller{err: errors.New("boom")}
		d = NewDispatcher(failing).WithRecorder(rec, "session-1")
		d.Invoke(context.Background(), "get_system_info", nil)

		require.Len(t, rec.names, 2)
		assert.Equal(t, []string{"success", "error"}, rec.statuses)
	})
}

func TestTruncate(t *testing.T) {
	t.Run("Should leave short strings untouched", func(t *testing.T) {
		assert.Equal(t, "short", truncate("short", 10))
	})

	t.Run("Should count characters, not bytes", func(t *testing.T) {
		s := strings.Repeat("é", 6)
		assert.Equal(t, strings.Repeat("é", 4), truncate(s, 4))
	})
}
