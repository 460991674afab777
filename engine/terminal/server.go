package terminal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/opsrelay/opsrelay/pkg/logger"
)

const (
	serverName = "opsrelay-terminal"

	// maxReadBytes bounds read_file responses so a single file cannot
	// flood the conversation.
	maxReadBytes = 256 * 1024
)

// ServerConfig configures the terminal tool server.
type ServerConfig struct {
	// BaseURL is the externally visible URL of the SSE endpoint.
	BaseURL string
	// StartDir is the working directory new sessions begin in. Defaults
	// to the process working directory.
	StartDir string
	// CommandTimeout bounds each command execution.
	CommandTimeout time.Duration
}

// SetDefaults fills zero fields with working values.
func (c *ServerConfig) SetDefaults() error {
	if c.StartDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("terminal: resolve working directory: %w", err)
		}
		c.StartDir = wd
	}
	if c.CommandTimeout <= 0 {
		c.CommandTimeout = defaultCommandTimeout
	}
	return nil
}

// Server exposes terminal operations as MCP tools over SSE or stdio.
// Each connected session gets its own tracked working directory.
type Server struct {
	cfg    ServerConfig
	runner *Runner
	dirs   *DirRegistry
	mcp    *server.MCPServer
}

// NewServer builds the tool server and registers its tools.
func NewServer(cfg ServerConfig) (*Server, error) {
	if err := cfg.SetDefaults(); err != nil {
		return nil, err
	}
	s := &Server{
		cfg:    cfg,
		runner: NewRunner(cfg.CommandTimeout),
		dirs:   NewDirRegistry(cfg.StartDir),
	}
	hooks := &server.Hooks{}
	hooks.AddOnUnregisterSession(func(_ context.Context, session server.ClientSession) {
		s.dropSession(session)
	})
	m := server.NewMCPServer(serverName, "1.0.0",
		server.WithRecovery(),
		server.WithLogging(),
		server.WithHooks(hooks),
	)
	m.AddTool(mcp.NewTool("run_terminal_command",
		mcp.WithDescription("Execute a command in the terminal and return its output. "+
			"Directory changes via cd persist for the rest of the session."),
		mcp.WithString("command", mcp.Required(),
			mcp.Description("The command to execute")),
		mcp.WithString("working_directory",
			mcp.Description("Run in this directory instead of the session's current one")),
	), s.handleRunCommand)
	m.AddTool(mcp.NewTool("get_system_info",
		mcp.WithDescription("Report host facts: operating system, architecture, hostname, and CPU count."),
	), s.handleSystemInfo)
	m.AddTool(mcp.NewTool("read_file",
		mcp.WithDescription("Read a text file. Relative paths resolve against the session's working directory."),
		mcp.WithString("path", mcp.Required(),
			mcp.Description("The file to read")),
		mcp.WithNumber("max_lines",
			mcp.Description("Return at most this many lines from the start of the file")),
	), s.handleReadFile)
	m.AddTool(mcp.NewTool("write_file",
		mcp.WithDescription("Write content to a file, creating it if needed. "+
			"Relative paths resolve against the session's working directory."),
		mcp.WithString("path", mcp.Required(),
			mcp.Description("The file to write")),
		mcp.WithString("content", mcp.Required(),
			mcp.Description("The full file content")),
	), s.handleWriteFile)
	s.mcp = m
	return s, nil
}

// ServeSSE serves the tool server over SSE on addr until ctx is
// canceled.
func (s *Server) ServeSSE(ctx context.Context, addr string) error {
	log := logger.FromContext(ctx)
	opts := []server.SSEOption{}
	if s.cfg.BaseURL != "" {
		opts = append(opts, server.WithBaseURL(s.cfg.BaseURL))
	}
	sse := server.NewSSEServer(s.mcp, opts...)

	errCh := make(chan error, 1)
	go func() { errCh <- sse.Start(addr) }()
	log.Info("Terminal tool server listening", "addr", addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := sse.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("terminal: shutdown sse server: %w", err)
		}
		return nil
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("terminal: sse server: %w", err)
		}
		return nil
	}
}

// ServeStdio serves the tool server over stdin/stdout.
func (s *Server) ServeStdio() error {
	if err := server.ServeStdio(s.mcp); err != nil {
		return fmt.Errorf("terminal: stdio server: %w", err)
	}
	return nil
}

// dropSession forgets a disconnected session's working directory so the
// registry does not grow with client churn.
func (s *Server) dropSession(session server.ClientSession) {
	if session == nil {
		return
	}
	s.dirs.Drop(session.SessionID())
}

// sessionKey identifies the calling session, or the shared default when
// the transport carries no session identity.
func (s *Server) sessionKey(ctx context.Context) string {
	if session := server.ClientSessionFromContext(ctx); session != nil {
		return session.SessionID()
	}
	return ""
}

func (s *Server) handleRunCommand(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	command, err := req.RequireString("command")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	key := s.sessionKey(ctx)
	cwd := s.dirs.Get(key)
	// An explicit working_directory overrides the session directory for
	// this one invocation; relative overrides resolve against it.
	if wd := req.GetString("working_directory", ""); wd != "" {
		if !filepath.IsAbs(wd) {
			wd = filepath.Join(cwd, wd)
		}
		cwd = filepath.Clean(wd)
	}

	result := s.runner.Execute(ctx, command, cwd)
	// The directory only moves on a successful change; failed cd and
	// ordinary commands leave the session where it was.
	if result.ReturnCode == 0 && result.NewCwd != cwd {
		s.dirs.Set(key, result.NewCwd)
	}
	text := FormatResult(result)
	if result.ReturnCode == -1 {
		return mcp.NewToolResultError(text), nil
	}
	return mcp.NewToolResultText(text), nil
}

func (s *Server) handleSystemInfo(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	info := map[string]any{
		"os":                runtime.GOOS,
		"arch":              runtime.GOARCH,
		"hostname":          hostname,
		"cpus":              runtime.NumCPU(),
		"working_directory": s.dirs.Get(s.sessionKey(ctx)),
	}
	b, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("marshal system info: %v", err)), nil
	}
	return mcp.NewToolResultText(string(b)), nil
}

func (s *Server) handleReadFile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	resolved := s.resolvePath(ctx, path)
	data, err := os.ReadFile(resolved)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("read %s: %v", path, err)), nil
	}
	truncated := false
	if len(data) > maxReadBytes {
		data = data[:maxReadBytes]
		truncated = true
	}
	text := string(data)
	if maxLines := req.GetInt("max_lines", 0); maxLines > 0 {
		lines := strings.SplitN(text, "\n", maxLines+1)
		if len(lines) > maxLines {
			lines = lines[:maxLines]
			truncated = true
		}
		text = strings.Join(lines, "\n")
	}
	if truncated {
		text += "\n... (truncated)"
	}
	return mcp.NewToolResultText(text), nil
}

func (s *Server) handleWriteFile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	resolved := s.resolvePath(ctx, path)
	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("write %s: %v", path, err)), nil
	}
	if err := os.WriteFile(resolved, []byte(content), 0o644); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("write %s: %v", path, err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Wrote %d bytes to %s", len(content), resolved)), nil
}

func (s *Server) resolvePath(ctx context.Context, path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(s.dirs.Get(s.sessionKey(ctx)), path)
}
