package llmadapter

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/opsrelay/opsrelay/engine/conversation"
)

// NewToolUseID mints a correlation id in the shape the completion service
// uses. Scripted runs and tests mint their own; live runs echo the
// service's ids untouched.
func NewToolUseID() string {
	return "toolu_" + uuid.NewString()
}

// ScriptedClient replays a fixed sequence of assistant messages, one per
// GenerateContent call, and records every request it receives. It stands
// in for the completion service in tests and offline runs.
type ScriptedClient struct {
	mu       sync.Mutex
	script   []conversation.Message
	next     int
	Requests []Request
}

// NewScriptedClient builds a client that replays the given messages.
func NewScriptedClient(script ...conversation.Message) *ScriptedClient {
	return &ScriptedClient{script: script}
}

// GenerateContent implements Client.
func (c *ScriptedClient) GenerateContent(_ context.Context, req *Request) (*conversation.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Requests = append(c.Requests, *req)
	if c.next >= len(c.script) {
		return nil, fmt.Errorf("scripted client exhausted after %d calls", len(c.script))
	}
	msg := c.script[c.next]
	c.next++
	return &msg, nil
}

// Close implements Client.
func (c *ScriptedClient) Close() error { return nil }

// Calls reports how many completion calls were made.
func (c *ScriptedClient) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.next
}
