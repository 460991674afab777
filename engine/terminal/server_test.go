package terminal

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s, err := NewServer(ServerConfig{StartDir: t.TempDir()})
	require.NoError(t, err)
	return s
}

func callReq(name string, args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)
	text, ok := mcp.AsTextContent(result.Content[0])
	require.True(t, ok)
	return text.Text
}

func TestServer_RunCommand(t *testing.T) {
	t.Run("Should execute a command and format its result", func(t *testing.T) {
		s := newTestServer(t)
		result, err := s.handleRunCommand(context.Background(),
			callReq("run_terminal_command", map[string]any{"command": "echo hi"}))
		require.NoError(t, err)
		assert.False(t, result.IsError)
		text := resultText(t, result)
		assert.Contains(t, text, "Command: echo hi")
		assert.Contains(t, text, "Return Code: 0")
		assert.Contains(t, text, "Output:\nhi")
	})

	t.Run("Should reject a call without a command", func(t *testing.T) {
		s := newTestServer(t)
		result, err := s.handleRunCommand(context.Background(),
			callReq("run_terminal_command", nil))
		require.NoError(t, err)
		assert.True(t, result.IsError)
	})

	t.Run("Should persist a directory change across calls", func(t *testing.T) {
		s := newTestServer(t)
		sub := filepath.Join(s.cfg.StartDir, "sub")
		require.NoError(t, os.Mkdir(sub, 0o755))

		result, err := s.handleRunCommand(context.Background(),
			callReq("run_terminal_command", map[string]any{"command": "cd sub"}))
		require.NoError(t, err)
		assert.False(t, result.IsError)
		assert.Contains(t, resultText(t, result), sub)

		result, err = s.handleRunCommand(context.Background(),
			callReq("run_terminal_command", map[string]any{"command": "pwd"}))
		require.NoError(t, err)
		assert.Contains(t, resultText(t, result), "Working Directory: "+sub)
	})

	t.Run("Should format cd results like any other command", func(t *testing.T) {
		s := newTestServer(t)
		sub := filepath.Join(s.cfg.StartDir, "sub")
		require.NoError(t, os.Mkdir(sub, 0o755))

		result, err := s.handleRunCommand(context.Background(),
			callReq("run_terminal_command", map[string]any{"command": "cd sub"}))
		require.NoError(t, err)
		text := resultText(t, result)
		assert.Contains(t, text, "Command: cd sub")
		assert.Contains(t, text, "Working Directory: "+s.cfg.StartDir)
		assert.Contains(t, text, "Return Code: 0")
		assert.Contains(t, text, "Changed directory to "+sub)
	})

	t.Run("Should keep the directory when cd fails", func(t *testing.T) {
		s := newTestServer(t)
		result, err := s.handleRunCommand(context.Background(),
			callReq("run_terminal_command", map[string]any{"command": "cd missing"}))
		require.NoError(t, err)
		assert.False(t, result.IsError)
		text := resultText(t, result)
		assert.Contains(t, text, "Return Code: 1")
		assert.Contains(t, text, "no such file or directory")
		assert.Equal(t, s.cfg.StartDir, s.dirs.Get(""))
	})

	t.Run("Should honor an explicit working_directory for one invocation", func(t *testing.T) {
		s := newTestServer(t)
		other := t.TempDir()

		result, err := s.handleRunCommand(context.Background(),
			callReq("run_terminal_command", map[string]any{
				"command":           "pwd",
				"working_directory": other,
			}))
		require.NoError(t, err)
		assert.Contains(t, resultText(t, result), "Working Directory: "+other)
		// The override does not move the session.
		assert.Equal(t, s.cfg.StartDir, s.dirs.Get(""))
	})

	t.Run("Should resolve a cd target against an explicit working_directory", func(t *testing.T) {
		s := newTestServer(t)
		other := t.TempDir()
		sub := filepath.Join(other, "sub")
		require.NoError(t, os.Mkdir(sub, 0o755))

		result, err := s.handleRunCommand(context.Background(),
			callReq("run_terminal_command", map[string]any{
				"command":           "cd sub",
				"working_directory": other,
			}))
		require.NoError(t, err)
		assert.Contains(t, resultText(t, result), "Changed directory to "+sub)
		assert.Equal(t, sub, s.dirs.Get(""))
	})
}

func TestServer_SystemInfo(t *testing.T) {
	t.Run("Should report host facts as JSON", func(t *testing.T) {
		s := newTestServer(t)
		result, err := s.handleSystemInfo(context.Background(), callReq("get_system_info", nil))
		require.NoError(t, err)
		text := resultText(t, result)
		assert.Contains(t, text, `"os"`)
		assert.Contains(t, text, `"hostname"`)
		assert.Contains(t, text, s.cfg.StartDir)
	})
}

func TestServer_Files(t *testing.T) {
	t.Run("Should write then read a file relative to the session directory", func(t *testing.T) {
		s := newTestServer(t)
		result, err := s.handleWriteFile(context.Background(),
			callReq("write_file", map[string]any{"path": "notes.txt", "content": "line1\nline2\nline3"}))
		require.NoError(t, err)
		assert.False(t, result.IsError)

		result, err = s.handleReadFile(context.Background(),
			callReq("read_file", map[string]any{"path": "notes.txt"}))
		require.NoError(t, err)
		assert.Equal(t, "line1\nline2\nline3", resultText(t, result))
	})

	t.Run("Should honor the max_lines cap", func(t *testing.T) {
		s := newTestServer(t)
		_, err := s.handleWriteFile(context.Background(),
			callReq("write_file", map[string]any{"path": "notes.txt", "content": "line1\nline2\nline3"}))
		require.NoError(t, err)

		result, err := s.handleReadFile(context.Background(),
			callReq("read_file", map[string]any{"path": "notes.txt", "max_lines": 2}))
		require.NoError(t, err)
		text := resultText(t, result)
		assert.Contains(t, text, "line1\nline2")
		assert.NotContains(t, text, "line3")
		assert.Contains(t, text, "(truncated)")
	})

	t.Run("Should create missing parent directories on write", func(t *testing.T) {
		s := newTestServer(t)
		result, err := s.handleWriteFile(context.Background(),
			callReq("write_file", map[string]any{"path": "nested/dir/notes.txt", "content": "hi"}))
		require.NoError(t, err)
		assert.False(t, result.IsError)

		data, err := os.ReadFile(filepath.Join(s.cfg.StartDir, "nested", "dir", "notes.txt"))
		require.NoError(t, err)
		assert.Equal(t, "hi", string(data))
	})

	t.Run("Should surface a read error for a missing file", func(t *testing.T) {
		s := newTestServer(t)
		result, err := s.handleReadFile(context.Background(),
			callReq("read_file", map[string]any{"path": "missing.txt"}))
		require.NoError(t, err)
		assert.True(t, result.IsError)
	})
}

type stubSession struct{ id string }

func (s stubSession) SessionID() string { return s.id }
func (s stubSession) NotificationChannel() chan<- mcp.JSONRPCNotification {
	return nil
}
func (s stubSession) Initialize()       {}
func (s stubSession) Initialized() bool { return true }

func TestServer_DropSession(t *testing.T) {
	t.Run("Should forget a session's directory on disconnect", func(t *testing.T) {
		s := newTestServer(t)
		s.dirs.Set("sess-1", "/tmp")
		s.dropSession(stubSession{id: "sess-1"})
		assert.Equal(t, s.cfg.StartDir, s.dirs.Get("sess-1"))
	})

	t.Run("Should tolerate a nil session", func(t *testing.T) {
		s := newTestServer(t)
		s.dropSession(nil)
	})
}
