package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/opsrelay/opsrelay/pkg/logger"
)

// MaxToolResultChars caps every tool-result text surfaced back into a
// conversation, protecting the transcript against unbounded tool output.
const MaxToolResultChars = 10000

// Status classifies a tool invocation outcome.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// ToolOutcome is the normalized result of one tool invocation. Text is
// always at most MaxToolResultChars characters.
type ToolOutcome struct {
	Text   string
	Status Status
}

// ToolCaller is the minimal tool-server contract the dispatcher needs.
// Satisfied by *mcp.Client.
type ToolCaller interface {
	CallTool(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error)
}

// CallRecorder persists tool invocations for audit and analytics.
type CallRecorder interface {
	SaveToolCall(ctx context.Context, sessionID, toolName string, input map[string]any, output, status string) error
}

// Dispatcher invokes named tools on the tool server and normalizes the
// heterogeneous result shapes into bounded plain text. Faults never
// escape Invoke; they become error-status outcomes the completion service
// can reason about.
type Dispatcher struct {
	caller    ToolCaller
	recorder  CallRecorder
	sessionID string
}

// NewDispatcher builds a dispatcher over the given tool caller.
func NewDispatcher(caller ToolCaller) *Dispatcher {
	return &Dispatcher{caller: caller}
}

// WithRecorder returns a dispatcher that records every invocation under
// the given session id.
func (d *Dispatcher) WithRecorder(recorder CallRecorder, sessionID string) *Dispatcher {
	return &Dispatcher{caller: d.caller, recorder: recorder, sessionID: sessionID}
}

// Invoke calls one named tool. Unknown tool names are left to the tool
// server to reject; its error comes back as a recoverable error outcome
// like any other tool fault.
func (d *Dispatcher) Invoke(ctx context.Context, name string, input map[string]any) ToolOutcome {
	log := logger.FromContext(ctx)
	log.Debug("Executing tool", "tool_name", name)

	result, err := d.caller.CallTool(ctx, name, input)
	var outcome ToolOutcome
	if err != nil {
		outcome = ToolOutcome{
			Text:   fmt.Sprintf("Error executing tool '%s': %v", name, err),
			Status: StatusError,
		}
		log.Error("Tool execution failed", "tool_name", name, "error", err)
	} else {
		outcome = ToolOutcome{Text: normalizeResult(result), Status: StatusSuccess}
		if result != nil && result.IsError {
			outcome.Status = StatusError
		}
		log.Debug("Tool execution completed", "tool_name", name, "status", outcome.Status)
	}

	outcome.Text = truncate(outcome.Text, MaxToolResultChars)
	d.record(ctx, name, input, outcome)
	return outcome
}

// normalizeResult reduces a tool-server result to plain text: the first
// part's textual payload when present, otherwise a JSON rendering of the
// whole content sequence, otherwise a stringification of the result.
func normalizeResult(result *mcp.CallToolResult) string {
	if result == nil {
		return ""
	}
	if len(result.Content) > 0 {
		if text, ok := mcp.AsTextContent(result.Content[0]); ok && text.Text != "" {
			return text.Text
		}
		if b, err := json.Marshal(result.Content); err == nil {
			return string(b)
		}
	}
	return fmt.Sprintf("%v", result)
}

func (d *Dispatcher) record(ctx context.Context, name string, input map[string]any, outcome ToolOutcome) {
	if d.recorder == nil {
		return
	}
	if err := d.recorder.SaveToolCall(ctx, d.sessionID, name, input, outcome.Text, string(outcome.Status)); err != nil {
		logger.FromContext(ctx).Warn("Failed to record tool call",
			"tool_name", name, "session_id", d.sessionID, "error", err)
	}
}

func truncate(s string, maxChars int) string {
	if len(s) <= maxChars {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxChars {
		return s
	}
	return string(runes[:maxChars])
}
