package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/opsrelay/opsrelay/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	logger.InitForTests()
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(context.Background(), &Config{
		Path: filepath.Join(t.TempDir(), "test.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSessionID(t *testing.T) {
	t.Run("Should be deterministic for the same triple", func(t *testing.T) {
		assert.Equal(t, SessionID("C1", "U1", "123.456"), SessionID("C1", "U1", "123.456"))
	})

	t.Run("Should differ across channels, users, and threads", func(t *testing.T) {
		base := SessionID("C1", "U1", "123.456")
		assert.NotEqual(t, base, SessionID("C2", "U1", "123.456"))
		assert.NotEqual(t, base, SessionID("C1", "U2", "123.456"))
		assert.NotEqual(t, base, SessionID("C1", "U1", "789.000"))
	})

	t.Run("Should collapse an empty thread to the main conversation", func(t *testing.T) {
		assert.Equal(t, SessionID("C1", "U1", ""), SessionID("C1", "U1", "main"))
	})

	t.Run("Should produce a hex digest", func(t *testing.T) {
		assert.Len(t, SessionID("C1", "U1", ""), 64)
	})
}

func TestStore_Sessions(t *testing.T) {
	t.Run("Should upsert the same session twice without error", func(t *testing.T) {
		store := newTestStore(t)
		ctx := context.Background()
		id := SessionID("C1", "U1", "")
		require.NoError(t, store.UpsertSession(ctx, id, "C1", "U1", ""))
		require.NoError(t, store.UpsertSession(ctx, id, "C1", "U1", ""))

		export, err := store.ExportSession(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "C1", export.ChannelID)
		assert.Equal(t, "main", export.ThreadTS)
	})
}

func TestStore_Messages(t *testing.T) {
	t.Run("Should return recent history oldest-first", func(t *testing.T) {
		store := newTestStore(t)
		ctx := context.Background()
		id := SessionID("C1", "U1", "")
		require.NoError(t, store.UpsertSession(ctx, id, "C1", "U1", ""))
		for _, pair := range [][2]string{
			{"user", "q1"}, {"assistant", "a1"},
			{"user", "q2"}, {"assistant", "a2"},
		} {
			require.NoError(t, store.SaveMessage(ctx, id, pair[0], pair[1]))
		}

		history, err := store.RecentHistory(ctx, id, 3)
		require.NoError(t, err)
		require.Len(t, history, 3)
		assert.Equal(t, "a1", history[0].Text)
		assert.Equal(t, "q2", history[1].Text)
		assert.Equal(t, "a2", history[2].Text)
		assert.Equal(t, "assistant", history[2].Role)
	})

	t.Run("Should return everything when the limit exceeds the transcript", func(t *testing.T) {
		store := newTestStore(t)
		ctx := context.Background()
		id := SessionID("C1", "U1", "")
		require.NoError(t, store.UpsertSession(ctx, id, "C1", "U1", ""))
		require.NoError(t, store.SaveMessage(ctx, id, "user", "hello"))

		history, err := store.RecentHistory(ctx, id, 10)
		require.NoError(t, err)
		require.Len(t, history, 1)
		assert.Equal(t, "hello", history[0].Text)
	})

	t.Run("Should return nothing for an unknown session", func(t *testing.T) {
		store := newTestStore(t)
		history, err := store.RecentHistory(context.Background(), "missing", 5)
		require.NoError(t, err)
		assert.Empty(t, history)
	})
}

func TestStore_ToolCalls(t *testing.T) {
	t.Run("Should record tool calls with serialized input", func(t *testing.T) {
		store := newTestStore(t)
		ctx := context.Background()
		id := SessionID("C1", "U1", "")
		require.NoError(t, store.UpsertSession(ctx, id, "C1", "U1", ""))
		require.NoError(t, store.SaveToolCall(ctx, id, "run_terminal_command",
			map[string]any{"command": "ls"}, "a.txt", "success"))
		require.NoError(t, store.SaveToolCall(ctx, id, "run_terminal_command",
			nil, "Error executing tool", "error"))

		export, err := store.ExportSession(ctx, id)
		require.NoError(t, err)
		require.Len(t, export.ToolCalls, 2)
		assert.JSONEq(t, `{"command":"ls"}`, export.ToolCalls[0].Input)
		assert.Equal(t, "success", export.ToolCalls[0].Status)
		assert.Equal(t, "{}", export.ToolCalls[1].Input)
		assert.Equal(t, "error", export.ToolCalls[1].Status)
	})
}

func TestStore_Analytics(t *testing.T) {
	t.Run("Should aggregate usage counts", func(t *testing.T) {
		store := newTestStore(t)
		ctx := context.Background()
		id := SessionID("C1", "U1", "")
		require.NoError(t, store.UpsertSession(ctx, id, "C1", "U1", ""))
		require.NoError(t, store.SaveMessage(ctx, id, "user", "q"))
		require.NoError(t, store.SaveMessage(ctx, id, "assistant", "a"))
		require.NoError(t, store.SaveToolCall(ctx, id, "get_system_info", nil, "linux", "success"))
		require.NoError(t, store.SaveToolCall(ctx, id, "get_system_info", nil, "linux", "success"))

		stats, err := store.Stats(ctx, time.Now().UTC().Add(-time.Hour))
		require.NoError(t, err)
		assert.Equal(t, 1, stats.Sessions)
		assert.Equal(t, 2, stats.Messages)
		assert.Equal(t, 2, stats.ToolCalls)
		assert.Equal(t, 2, stats.ToolUsage["get_system_info"])
	})

	t.Run("Should report session not found on export", func(t *testing.T) {
		store := newTestStore(t)
		_, err := store.ExportSession(context.Background(), "missing")
		assert.ErrorIs(t, err, ErrSessionNotFound)
	})

	t.Run("Should remove stale sessions with their records", func(t *testing.T) {
		store := newTestStore(t)
		ctx := context.Background()
		id := SessionID("C1", "U1", "")
		require.NoError(t, store.UpsertSession(ctx, id, "C1", "U1", ""))
		require.NoError(t, store.SaveMessage(ctx, id, "user", "q"))
		require.NoError(t, store.SaveToolCall(ctx, id, "get_system_info", nil, "linux", "success"))

		removed, err := store.CleanupSessions(ctx, time.Now().UTC().Add(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, int64(1), removed)

		_, err = store.ExportSession(ctx, id)
		assert.ErrorIs(t, err, ErrSessionNotFound)

		history, err := store.RecentHistory(ctx, id, 10)
		require.NoError(t, err)
		assert.Empty(t, history)
	})

	t.Run("Should keep active sessions during cleanup", func(t *testing.T) {
		store := newTestStore(t)
		ctx := context.Background()
		id := SessionID("C1", "U1", "")
		require.NoError(t, store.UpsertSession(ctx, id, "C1", "U1", ""))

		removed, err := store.CleanupSessions(ctx, time.Now().UTC().Add(-time.Hour))
		require.NoError(t, err)
		assert.Zero(t, removed)

		_, err = store.ExportSession(ctx, id)
		assert.NoError(t, err)
	})
}
