package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/opsrelay/opsrelay/engine/infra/sqlite"
	"github.com/opsrelay/opsrelay/engine/llm/orchestrator"
	"github.com/opsrelay/opsrelay/pkg/logger"
)

// Runner drives one conversation to completion. Satisfied by
// *orchestrator.Loop.
type Runner interface {
	Run(ctx context.Context, query string, opts orchestrator.RunOptions) (string, error)
}

// Store is the session persistence the chat flow needs. Satisfied by
// *sqlite.Store.
type Store interface {
	orchestrator.SessionStore
	UpsertSession(ctx context.Context, sessionID, channelID, userID, threadTS string) error
}

// Message is one inbound chat-platform message, already stripped of any
// platform mention syntax.
type Message struct {
	ChannelID string
	UserID    string
	ThreadTS  string
	Text      string
}

// Config bounds the chat flow.
type Config struct {
	// MaxTurns bounds each conversation; chat platforms run tighter than
	// the console.
	MaxTurns int
	// HistoryLimit is how many prior turns seed a follow-up question.
	HistoryLimit int
}

// Service is the gateway-agnostic chat message flow: it derives the
// session, persists the exchange, and always produces a reply. Faults
// are rendered as reply text so the platform user sees what happened.
type Service struct {
	runner Runner
	store  Store
	cfg    Config
}

// NewService builds the chat service.
func NewService(runner Runner, store Store, cfg Config) (*Service, error) {
	if runner == nil {
		return nil, fmt.Errorf("bot: runner is required")
	}
	if store == nil {
		return nil, fmt.Errorf("bot: store is required")
	}
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = 10
	}
	if cfg.HistoryLimit < 0 {
		cfg.HistoryLimit = 0
	}
	return &Service{runner: runner, store: store, cfg: cfg}, nil
}

// HandleMessage processes one inbound message and returns the reply to
// post. It never fails; persistence trouble degrades to a stateless
// conversation and conversation faults become the reply itself.
func (s *Service) HandleMessage(ctx context.Context, msg Message) string {
	log := logger.FromContext(ctx)
	if strings.TrimSpace(msg.Text) == "" {
		return "I need a question or a command to work with."
	}

	sessionID := sqlite.SessionID(msg.ChannelID, msg.UserID, msg.ThreadTS)
	opts := orchestrator.RunOptions{
		MaxTurns:     s.cfg.MaxTurns,
		SessionID:    sessionID,
		Store:        s.store,
		HistoryLimit: s.cfg.HistoryLimit,
	}

	if err := s.store.UpsertSession(ctx, sessionID, msg.ChannelID, msg.UserID, msg.ThreadTS); err != nil {
		log.Warn("Failed to upsert session, continuing without persistence",
			"session_id", sessionID, "error", err)
		opts.SessionID = ""
		opts.Store = nil
		opts.HistoryLimit = 0
	} else if err := s.store.SaveMessage(ctx, sessionID, "user", msg.Text); err != nil {
		log.Warn("Failed to persist user message", "session_id", sessionID, "error", err)
	}

	answer, err := s.runner.Run(ctx, msg.Text, opts)
	if err != nil {
		var cerr *orchestrator.CompletionError
		if errors.As(err, &cerr) {
			log.Error("Completion service fault", "session_id", sessionID, "error", err)
			return cerr.Error()
		}
		log.Error("Conversation failed", "session_id", sessionID, "error", err)
		return fmt.Sprintf("Something went wrong: %v", err)
	}
	return answer
}
