package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Config captures SQLite store configuration derived from application settings.
type Config struct {
	// Path is the database location or ":memory:" for in-memory deployments.
	Path string

	// MaxOpenConns controls the pool size exposed by database/sql.
	MaxOpenConns int

	// MaxIdleConns limits idle connections retained in the pool.
	MaxIdleConns int

	// ConnMaxLifetime bounds connection reuse duration.
	ConnMaxLifetime time.Duration

	// BusyTimeout configures sqlite busy timeout via PRAGMA busy_timeout.
	BusyTimeout time.Duration
}

// SetDefaults fills zero fields with working values.
func (c *Config) SetDefaults() {
	if c.MaxOpenConns == 0 {
		c.MaxOpenConns = 1
	}
	if c.MaxIdleConns == 0 {
		c.MaxIdleConns = 1
	}
	if c.BusyTimeout == 0 {
		c.BusyTimeout = 5 * time.Second
	}
}

func buildDSN(cfg *Config) (string, error) {
	if cfg.Path == "" {
		return "", fmt.Errorf("sqlite: database path is required")
	}
	if cfg.Path == ":memory:" {
		return "file::memory:?cache=shared", nil
	}
	return "file:" + cfg.Path, nil
}

func applyBusyTimeout(ctx context.Context, db *sql.DB, cfg *Config) error {
	ms := cfg.BusyTimeout.Milliseconds()
	if ms <= 0 {
		return nil
	}
	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout = %d", ms)); err != nil {
		return fmt.Errorf("sqlite: set busy timeout: %w", err)
	}
	return nil
}
