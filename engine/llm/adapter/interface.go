package llmadapter

import (
	"context"

	"github.com/opsrelay/opsrelay/engine/conversation"
)

// Request represents a completion-service call, independent of provider.
type Request struct {
	SystemPrompt string
	Messages     []conversation.Message
	Tools        []ToolDefinition
	Options      CallOptions
}

// ToolDefinition is one tool offer advertised to the completion service.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]any // JSON Schema
}

// CallOptions carries the per-call tuning knobs. MaxTokens and Temperature
// are fixed deployment constants surfaced through configuration.
type CallOptions struct {
	Temperature float64
	MaxTokens   int32
	ToolChoice  string // "auto", "none", or a specific tool name
}

// Client is the completion-service boundary. GenerateContent returns the
// service's full output as an assistant message whose blocks losslessly
// mirror the returned content, tool_use blocks included.
type Client interface {
	GenerateContent(ctx context.Context, req *Request) (*conversation.Message, error)
	Close() error
}
