package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrSessionNotFound reports an export request for an unknown session.
var ErrSessionNotFound = errors.New("sqlite: session not found")

// UsageStats aggregates activity since a cutoff.
type UsageStats struct {
	Sessions  int            `json:"sessions"`
	Messages  int            `json:"messages"`
	ToolCalls int            `json:"tool_calls"`
	ToolUsage map[string]int `json:"tool_usage"`
}

// SessionExport is the full record of one session, suitable for JSON
// serialization.
type SessionExport struct {
	SessionID string           `json:"session_id"`
	ChannelID string           `json:"channel_id"`
	UserID    string           `json:"user_id"`
	ThreadTS  string           `json:"thread_ts"`
	CreatedAt time.Time        `json:"created_at"`
	Messages  []ExportMessage  `json:"messages"`
	ToolCalls []ExportToolCall `json:"tool_calls"`
}

type ExportMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type ExportToolCall struct {
	ToolName  string    `json:"tool_name"`
	Input     string    `json:"input"`
	Output    string    `json:"output"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// Stats reports usage counts for sessions active since the cutoff.
func (s *Store) Stats(ctx context.Context, since time.Time) (*UsageStats, error) {
	stats := &UsageStats{ToolUsage: make(map[string]int)}
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM chat_sessions WHERE last_active >= ?`, since).
		Scan(&stats.Sessions); err != nil {
		return nil, fmt.Errorf("sqlite: count sessions: %w", err)
	}
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE created_at >= ?`, since).
		Scan(&stats.Messages); err != nil {
		return nil, fmt.Errorf("sqlite: count messages: %w", err)
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT tool_name, COUNT(*) FROM tool_calls WHERE created_at >= ? GROUP BY tool_name`, since)
	if err != nil {
		return nil, fmt.Errorf("sqlite: count tool calls: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		var count int
		if err := rows.Scan(&name, &count); err != nil {
			return nil, fmt.Errorf("sqlite: scan tool usage: %w", err)
		}
		stats.ToolUsage[name] = count
		stats.ToolCalls += count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iter tool usage: %w", err)
	}
	return stats, nil
}

// ExportSession returns the complete transcript and tool-call log of one
// session.
func (s *Store) ExportSession(ctx context.Context, sessionID string) (*SessionExport, error) {
	export := &SessionExport{SessionID: sessionID}
	err := s.db.QueryRowContext(ctx,
		`SELECT channel_id, user_id, thread_ts, created_at FROM chat_sessions WHERE session_id = ?`,
		sessionID).
		Scan(&export.ChannelID, &export.UserID, &export.ThreadTS, &export.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: load session: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT role, content, created_at FROM messages WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: export messages: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var m ExportMessage
		if err := rows.Scan(&m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scan export message: %w", err)
		}
		export.Messages = append(export.Messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iter export messages: %w", err)
	}

	calls, err := s.db.QueryContext(ctx,
		`SELECT tool_name, tool_input, tool_output, status, created_at
		 FROM tool_calls WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: export tool calls: %w", err)
	}
	defer calls.Close()
	for calls.Next() {
		var c ExportToolCall
		if err := calls.Scan(&c.ToolName, &c.Input, &c.Output, &c.Status, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scan export tool call: %w", err)
		}
		export.ToolCalls = append(export.ToolCalls, c)
	}
	if err := calls.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iter export tool calls: %w", err)
	}
	return export, nil
}

// CleanupSessions deletes sessions whose last activity predates the
// cutoff, along with their messages and tool calls. Returns the number
// of sessions removed.
func (s *Store) CleanupSessions(ctx context.Context, before time.Time) (int64, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return 0, fmt.Errorf("sqlite: begin cleanup tx: %w", err)
	}
	defer tx.Rollback()

	const stale = `SELECT session_id FROM chat_sessions WHERE last_active < ?`
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM messages WHERE session_id IN (`+stale+`)`, before); err != nil {
		return 0, fmt.Errorf("sqlite: cleanup messages: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM tool_calls WHERE session_id IN (`+stale+`)`, before); err != nil {
		return 0, fmt.Errorf("sqlite: cleanup tool calls: %w", err)
	}
	res, err := tx.ExecContext(ctx,
		`DELETE FROM chat_sessions WHERE last_active < ?`, before)
	if err != nil {
		return 0, fmt.Errorf("sqlite: cleanup sessions: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: rows affected (cleanup): %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("sqlite: commit cleanup: %w", err)
	}
	return removed, nil
}
