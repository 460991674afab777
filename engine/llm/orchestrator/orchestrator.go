package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/opsrelay/opsrelay/engine/conversation"
	"github.com/opsrelay/opsrelay/engine/llm"
	llmadapter "github.com/opsrelay/opsrelay/engine/llm/adapter"
	enginemcp "github.com/opsrelay/opsrelay/engine/mcp"
	"github.com/opsrelay/opsrelay/pkg/logger"
)

const (
	// NoTextPlaceholder substitutes a final answer when the completion
	// service produced neither text nor tool requests.
	NoTextPlaceholder = "(no textual result)"
	// ExhaustedMessage is the fixed sentinel returned when the turn
	// budget runs out; reported, not retried.
	ExhaustedMessage = "Conversation exceeded maximum turns."

	defaultMaxTurns = 10
)

// ToolServer is the tool-server contract the loop depends on. Satisfied
// by *mcp.Client.
type ToolServer interface {
	ListTools(ctx context.Context) ([]mcpgo.Tool, error)
	CallTool(ctx context.Context, name string, args map[string]any) (*mcpgo.CallToolResult, error)
}

// HistoryEntry is one persisted turn, oldest-first when listed.
type HistoryEntry struct {
	Role      string
	Text      string
	Timestamp time.Time
}

// SessionStore is the persistence boundary the loop writes through.
type SessionStore interface {
	SaveMessage(ctx context.Context, sessionID, role, text string) error
	SaveToolCall(ctx context.Context, sessionID, toolName string, input map[string]any, output, status string) error
	RecentHistory(ctx context.Context, sessionID string, limit int) ([]HistoryEntry, error)
}

// Config configures the loop's fixed collaborators.
type Config struct {
	Client       llmadapter.Client
	Tools        ToolServer
	SystemPrompt string
	MaxTokens    int32
	Temperature  float64
}

// RunOptions vary per invocation.
type RunOptions struct {
	// MaxTurns bounds the completion/tool alternation; the console flow
	// runs with 100, the chat-platform flow with 10.
	MaxTurns int
	// SessionID plus Store enable persistence of the final answer and of
	// every tool call.
	SessionID string
	Store     SessionStore
	// HistoryLimit, when positive, seeds that many prior persisted turns
	// ahead of the new query.
	HistoryLimit int
}

// Loop is the turn state machine tying the completion service, the tool
// catalog, and tool dispatch together for one conversation at a time.
// Loops are stateless across invocations and safe to share between
// independent conversations.
type Loop struct {
	cfg Config
}

// New validates the configuration and builds a loop.
func New(cfg Config) (*Loop, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("orchestrator: completion client is required")
	}
	if cfg.Tools == nil {
		return nil, fmt.Errorf("orchestrator: tool server is required")
	}
	if strings.TrimSpace(cfg.SystemPrompt) == "" {
		return nil, fmt.Errorf("orchestrator: system prompt is required")
	}
	return &Loop{cfg: cfg}, nil
}

// Run drives one conversation to a terminal state and returns the final
// answer text. Tool faults are folded into the conversation as data;
// completion-service faults end the run with a *CompletionError; turn
// exhaustion returns the fixed sentinel with a nil error.
func (l *Loop) Run(ctx context.Context, query string, opts RunOptions) (string, error) {
	log := logger.FromContext(ctx)
	maxTurns := opts.MaxTurns
	if maxTurns <= 0 {
		maxTurns = defaultMaxTurns
	}

	messages := l.seedHistory(ctx, query, &opts)
	messages = append(messages, conversation.UserText(query))

	dispatcher := llm.NewDispatcher(l.cfg.Tools)
	if opts.Store != nil && opts.SessionID != "" {
		dispatcher = dispatcher.WithRecorder(opts.Store, opts.SessionID)
	}

	// The catalog is fetched fresh per invocation; the tool server's
	// offering may legitimately change between conversations.
	tools, err := l.cfg.Tools.ListTools(ctx)
	if err != nil {
		return "", fmt.Errorf("orchestrator: fetch tool catalog: %w", err)
	}
	offers := enginemcp.CatalogToToolDefs(tools)
	log.Debug("Starting conversation", "tools", len(offers), "max_turns", maxTurns)

	for turn := 0; turn < maxTurns; turn++ {
		resp, err := l.cfg.Client.GenerateContent(ctx, &llmadapter.Request{
			SystemPrompt: l.cfg.SystemPrompt,
			Messages:     messages,
			Tools:        offers,
			Options: llmadapter.CallOptions{
				Temperature: l.cfg.Temperature,
				MaxTokens:   l.cfg.MaxTokens,
				ToolChoice:  "auto",
			},
		})
		if err != nil {
			return "", &CompletionError{Err: err}
		}

		// The assistant turn is appended before any classification so the
		// transcript reflects exactly what the service returned even if
		// tool handling fails afterwards.
		messages = append(messages, *resp)

		uses := resp.ToolUses()
		if len(uses) == 0 {
			final := strings.TrimSpace(resp.JoinedText())
			if final == "" {
				final = NoTextPlaceholder
			}
			l.persistAnswer(ctx, &opts, final)
			log.Debug("Conversation complete", "turns", turn+1)
			return final, nil
		}

		// Tool-use blocks run sequentially in emitted order; the single
		// follow-up user turn carries one result per request, same order,
		// echoing each correlation id unchanged.
		results := make([]conversation.Block, 0, len(uses))
		for _, use := range uses {
			outcome := dispatcher.Invoke(ctx, use.ToolName, use.Input)
			results = append(results, conversation.ToolResultBlock(use.ToolUseID, outcome.Text))
		}
		messages = append(messages, conversation.Message{
			Role:   conversation.RoleUser,
			Blocks: results,
		})
	}

	log.Warn("Conversation exceeded turn budget", "max_turns", maxTurns)
	return ExhaustedMessage, nil
}

// seedHistory loads prior persisted turns oldest-first, excluding the
// just-saved current query so it is not duplicated.
func (l *Loop) seedHistory(ctx context.Context, query string, opts *RunOptions) []conversation.Message {
	if opts.Store == nil || opts.SessionID == "" || opts.HistoryLimit <= 0 {
		return nil
	}
	entries, err := opts.Store.RecentHistory(ctx, opts.SessionID, opts.HistoryLimit)
	if err != nil {
		logger.FromContext(ctx).Warn("Failed to load session history",
			"session_id", opts.SessionID, "error", err)
		return nil
	}
	if n := len(entries); n > 0 &&
		entries[n-1].Role == conversation.RoleUser && entries[n-1].Text == query {
		entries = entries[:n-1]
	}
	messages := make([]conversation.Message, 0, len(entries))
	for _, e := range entries {
		switch e.Role {
		case conversation.RoleAssistant:
			messages = append(messages, conversation.AssistantText(e.Text))
		default:
			messages = append(messages, conversation.UserText(e.Text))
		}
	}
	return messages
}

func (l *Loop) persistAnswer(ctx context.Context, opts *RunOptions, answer string) {
	if opts.Store == nil || opts.SessionID == "" {
		return
	}
	if err := opts.Store.SaveMessage(ctx, opts.SessionID, conversation.RoleAssistant, answer); err != nil {
		logger.FromContext(ctx).Warn("Failed to persist assistant message",
			"session_id", opts.SessionID, "error", err)
	}
}
