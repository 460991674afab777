package mcp

import (
	"context"
	"errors"
	"fmt"
	"time"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/opsrelay/opsrelay/pkg/logger"
)

// ErrNotConnected is returned when the client is used before Connect.
var ErrNotConnected = errors.New("mcp: client is not connected")

// Config configures the tool-server client.
type Config struct {
	// URL is the tool server's SSE endpoint.
	URL string
	// ConnectTimeout bounds Start+Initialize.
	ConnectTimeout time.Duration
	// RequestTimeout bounds every ListTools/CallTool call so a stalled
	// tool server surfaces as a fault instead of hanging a conversation.
	RequestTimeout time.Duration
}

// SetDefaults fills unset durations with the standard bounds.
func (c *Config) SetDefaults() {
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 10 * time.Second
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 30 * time.Second
	}
}

// Validate checks the configuration before any connection is attempted.
func (c *Config) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("mcp: server URL is required")
	}
	return nil
}

// Client wraps an MCP client session against the tool server. Connection
// setup must complete before the orchestrator's first call.
type Client struct {
	cfg    Config
	client *mcpclient.Client
}

// NewClient builds an unconnected client for the given configuration.
func NewClient(cfg Config) (*Client, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Client{cfg: cfg}, nil
}

// Connect establishes the SSE transport and initializes the MCP session.
func (c *Client) Connect(ctx context.Context) error {
	log := logger.FromContext(ctx)
	log.Info("Connecting to tool server", "url", c.cfg.URL)

	sse, err := mcpclient.NewSSEMCPClient(c.cfg.URL)
	if err != nil {
		return fmt.Errorf("mcp: create client for %s: %w", c.cfg.URL, err)
	}
	connectCtx, cancel := context.WithTimeout(ctx, c.cfg.ConnectTimeout)
	defer cancel()
	if err := sse.Start(connectCtx); err != nil {
		return fmt.Errorf("mcp: start transport: %w", err)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{Name: "opsrelay", Version: "0.1.0"}
	result, err := sse.Initialize(connectCtx, initReq)
	if err != nil {
		sse.Close()
		return fmt.Errorf("mcp: initialize session: %w", err)
	}
	c.client = sse
	log.Info("Connected to tool server",
		"server_name", result.ServerInfo.Name,
		"server_version", result.ServerInfo.Version)
	return nil
}

// ListTools fetches the current tool catalog. Callers fetch fresh at the
// start of each orchestrator invocation; the catalog is never cached here.
func (c *Client) ListTools(ctx context.Context) ([]mcp.Tool, error) {
	if c.client == nil {
		return nil, ErrNotConnected
	}
	reqCtx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()
	result, err := c.client.ListTools(reqCtx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("mcp: list tools: %w", err)
	}
	return result.Tools, nil
}

// CallTool invokes a single named tool with a structured input.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error) {
	if c.client == nil {
		return nil, ErrNotConnected
	}
	reqCtx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	result, err := c.client.CallTool(reqCtx, req)
	if err != nil {
		return nil, fmt.Errorf("mcp: call tool %q: %w", name, err)
	}
	return result, nil
}

// Close tears down the MCP session.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}
	err := c.client.Close()
	c.client = nil
	return err
}
