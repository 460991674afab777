package logger

import (
	"context"
	"io"
	"sync"
)

type ctxKey struct{}

var (
	defaultMu     sync.RWMutex
	defaultLogger Logger = NewLogger(nil)
)

// SetDefault replaces the process-wide fallback logger.
func SetDefault(l Logger) {
	if l == nil {
		return
	}
	defaultMu.Lock()
	defaultLogger = l
	defaultMu.Unlock()
}

// GetDefault returns the process-wide fallback logger.
func GetDefault() Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultLogger
}

// ContextWithLogger attaches a logger to the context for downstream retrieval.
func ContextWithLogger(ctx context.Context, l Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the logger attached to ctx, falling back to the
// process default so callers never receive nil.
func FromContext(ctx context.Context) Logger {
	if ctx != nil {
		if l, ok := ctx.Value(ctxKey{}).(Logger); ok && l != nil {
			return l
		}
	}
	return GetDefault()
}

// InitForTests silences the default logger so test output stays readable.
func InitForTests() {
	SetDefault(NewLogger(&Config{Level: ErrorLevel, Output: io.Discard}))
}

// Setup configures the default logger from CLI-level settings.
func Setup(level string, json bool) {
	SetDefault(NewLogger(&Config{
		Level:      LogLevel(level),
		JSON:       json,
		TimeFormat: "15:04:05",
	}))
}
