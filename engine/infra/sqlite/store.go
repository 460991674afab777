package sqlite

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/opsrelay/opsrelay/engine/llm/orchestrator"
)

// Store persists chat sessions, their message history, and every tool
// call made on their behalf. It implements orchestrator.SessionStore.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the database at cfg.Path and brings its
// schema up to date.
func NewStore(ctx context.Context, cfg *Config) (*Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("sqlite: config is required")
	}
	cfg.SetDefaults()
	dsn, err := buildDSN(cfg)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := applyBusyTimeout(ctx, db, cfg); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: enable foreign keys: %w", err)
	}
	if err := applyMigrations(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("sqlite: close database: %w", err)
	}
	return nil
}

// SessionID derives the stable session identifier for a channel, user,
// and optional thread. The same triple always yields the same id; an
// empty thread collapses to the channel's main conversation.
func SessionID(channelID, userID, threadTS string) string {
	thread := threadTS
	if thread == "" {
		thread = "main"
	}
	sum := sha256.Sum256([]byte(channelID + ":" + userID + ":" + thread))
	return hex.EncodeToString(sum[:])
}

// UpsertSession creates the session row if absent and refreshes its
// last-active timestamp either way.
func (s *Store) UpsertSession(ctx context.Context, sessionID, channelID, userID, threadTS string) error {
	if threadTS == "" {
		threadTS = "main"
	}
	now := time.Now().UTC()
	const q = `INSERT INTO chat_sessions (session_id, channel_id, user_id, thread_ts, created_at, last_active)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (session_id) DO UPDATE SET last_active = excluded.last_active`
	if _, err := s.db.ExecContext(ctx, q, sessionID, channelID, userID, threadTS, now, now); err != nil {
		return fmt.Errorf("sqlite: upsert session: %w", err)
	}
	return nil
}

// SaveMessage appends one turn to the session transcript.
func (s *Store) SaveMessage(ctx context.Context, sessionID, role, text string) error {
	const q = `INSERT INTO messages (session_id, role, content, created_at) VALUES (?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, q, sessionID, role, text, time.Now().UTC()); err != nil {
		return fmt.Errorf("sqlite: save message: %w", err)
	}
	return nil
}

// SaveToolCall records one tool invocation with its input, bounded
// output, and success or error status.
func (s *Store) SaveToolCall(ctx context.Context, sessionID, toolName string, input map[string]any, output, status string) error {
	inputJSON := "{}"
	if len(input) > 0 {
		b, err := json.Marshal(input)
		if err != nil {
			return fmt.Errorf("sqlite: marshal tool input: %w", err)
		}
		inputJSON = string(b)
	}
	const q = `INSERT INTO tool_calls (session_id, tool_name, tool_input, tool_output, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, q, sessionID, toolName, inputJSON, output, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("sqlite: save tool call: %w", err)
	}
	return nil
}

// RecentHistory returns up to limit of the session's newest messages,
// reordered oldest-first for seeding a conversation.
func (s *Store) RecentHistory(ctx context.Context, sessionID string, limit int) ([]orchestrator.HistoryEntry, error) {
	if limit <= 0 {
		return nil, nil
	}
	const q = `SELECT role, content, created_at FROM messages
		WHERE session_id = ? ORDER BY id DESC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, q, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query history: %w", err)
	}
	defer rows.Close()
	var out []orchestrator.HistoryEntry
	for rows.Next() {
		var e orchestrator.HistoryEntry
		if err := rows.Scan(&e.Role, &e.Text, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("sqlite: scan message: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iter messages: %w", err)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
