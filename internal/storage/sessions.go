// Package storage persists browser session state in SQLite so logins
// survive server restarts.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"kvitt/internal/session"

	_ "modernc.org/sqlite"
)

// SessionRepository is a session.Storage backed by one SQLite table.
type SessionRepository struct {
	db      *sql.DB
	queries *Queries
	now     func() time.Time
}

// NewSessionRepository opens (creating if needed) the database at dbPath and
// migrates it.
func NewSessionRepository(dbPath string) (*SessionRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SessionRepository{db: db, queries: New(db), now: time.Now}, nil
}

// Close closes the database.
func (r *SessionRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks the database connection.
func (r *SessionRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Cache returns the values of one session.
func (r *SessionRepository) Cache(sessionID string) session.Cache {
	return &sessionCache{repo: r, id: sessionID}
}

// Touch moves every value of sessionID to now.
func (r *SessionRepository) Touch(ctx context.Context, sessionID string) error {
	if err := r.queries.TouchSession(ctx, sessionID, r.now().UnixMilli()); err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	return nil
}

// Prune deletes every session whose newest value is older than idleSince
// and returns how many sessions went.
func (r *SessionRepository) Prune(ctx context.Context, idleSince time.Time) (int, error) {
	cutoff := idleSince.UnixMilli()
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("prune sessions: %w", err)
	}
	defer tx.Rollback()

	q := r.queries.WithTx(tx)
	n, err := q.CountIdleSessions(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("count idle sessions: %w", err)
	}
	if n == 0 {
		return 0, nil
	}
	if err := q.DeleteIdleSessions(ctx, cutoff); err != nil {
		return 0, fmt.Errorf("prune sessions: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("prune sessions: %w", err)
	}
	return int(n), nil
}

type sessionCache struct {
	repo *SessionRepository
	id   string
}

func (c *sessionCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := c.repo.queries.GetValue(ctx, c.id, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %s: %w", key, err)
	}
	return value, true, nil
}

func (c *sessionCache) Set(ctx context.Context, key string, value []byte) error {
	err := c.repo.queries.UpsertValue(ctx, UpsertValueParams{
		SessionID: c.id,
		Key:       key,
		Value:     value,
		UpdatedAt: c.repo.now().UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (c *sessionCache) Delete(ctx context.Context, key string) error {
	if err := c.repo.queries.DeleteValue(ctx, c.id, key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}
