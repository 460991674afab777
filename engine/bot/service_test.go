package bot

import (
	"context"
	"errors"
	"testing"

	"github.com/opsrelay/opsrelay/engine/infra/sqlite"
	"github.com/opsrelay/opsrelay/engine/llm/orchestrator"
	"github.com/opsrelay/opsrelay/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	logger.InitForTests()
}

type fakeRunner struct {
	answer string
	err    error
	opts   []orchestrator.RunOptions
}

func (f *fakeRunner) Run(_ context.Context, _ string, opts orchestrator.RunOptions) (string, error) {
	f.opts = append(f.opts, opts)
	return f.answer, f.err
}

type fakeStore struct {
	upsertErr error
	saveErr   error
	sessions  []string
	messages  []string
}

func (f *fakeStore) UpsertSession(_ context.Context, sessionID, _, _, _ string) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.sessions = append(f.sessions, sessionID)
	return nil
}

func (f *fakeStore) SaveMessage(_ context.Context, _, role, text string) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.messages = append(f.messages, role+": "+text)
	return nil
}

func (f *fakeStore) SaveToolCall(context.Context, string, string, map[string]any, string, string) error {
	return nil
}

func (f *fakeStore) RecentHistory(context.Context, string, int) ([]orchestrator.HistoryEntry, error) {
	return nil, nil
}

func newService(t *testing.T, runner Runner, store Store) *Service {
	t.Helper()
	svc, err := NewService(runner, store, Config{MaxTurns: 10, HistoryLimit: 5})
	require.NoError(t, err)
	return svc
}

func TestNewService(t *testing.T) {
	t.Run("Should require a runner and a store", func(t *testing.T) {
		_, err := NewService(nil, &fakeStore{}, Config{})
		assert.Error(t, err)
		_, err = NewService(&fakeRunner{}, nil, Config{})
		assert.Error(t, err)
	})
}

func TestService_HandleMessage(t *testing.T) {
	msg := Message{ChannelID: "C1", UserID: "U1", ThreadTS: "123.456", Text: "list files"}

	t.Run("Should persist the exchange and return the answer", func(t *testing.T) {
		runner := &fakeRunner{answer: "two files"}
		store := &fakeStore{}
		svc := newService(t, runner, store)

		reply := svc.HandleMessage(context.Background(), msg)
		assert.Equal(t, "two files", reply)

		wantID := sqlite.SessionID("C1", "U1", "123.456")
		assert.Equal(t, []string{wantID}, store.sessions)
		assert.Equal(t, []string{"user: list files"}, store.messages)

		require.Len(t, runner.opts, 1)
		assert.Equal(t, wantID, runner.opts[0].SessionID)
		assert.Equal(t, 10, runner.opts[0].MaxTurns)
		assert.Equal(t, 5, runner.opts[0].HistoryLimit)
	})

	t.Run("Should reply with the completion fault text", func(t *testing.T) {
		runner := &fakeRunner{err: &orchestrator.CompletionError{Err: errors.New("rate limited")}}
		svc := newService(t, runner, &fakeStore{})

		reply := svc.HandleMessage(context.Background(), msg)
		assert.Contains(t, reply, "Error calling completion service")
		assert.Contains(t, reply, "rate limited")
	})

	t.Run("Should wrap unexpected faults in a generic reply", func(t *testing.T) {
		runner := &fakeRunner{err: errors.New("boom")}
		svc := newService(t, runner, &fakeStore{})

		reply := svc.HandleMessage(context.Background(), msg)
		assert.Contains(t, reply, "Something went wrong")
	})

	t.Run("Should degrade to a stateless run when the session cannot be stored", func(t *testing.T) {
		runner := &fakeRunner{answer: "ok"}
		store := &fakeStore{upsertErr: errors.New("disk full")}
		svc := newService(t, runner, store)

		reply := svc.HandleMessage(context.Background(), msg)
		assert.Equal(t, "ok", reply)
		require.Len(t, runner.opts, 1)
		assert.Empty(t, runner.opts[0].SessionID)
		assert.Nil(t, runner.opts[0].Store)
	})

	t.Run("Should ask for input on a blank message", func(t *testing.T) {
		runner := &fakeRunner{}
		svc := newService(t, runner, &fakeStore{})

		reply := svc.HandleMessage(context.Background(), Message{ChannelID: "C1", UserID: "U1", Text: "  "})
		assert.NotEmpty(t, reply)
		assert.Empty(t, runner.opts)
	})
}
