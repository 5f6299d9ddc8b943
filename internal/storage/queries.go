package storage

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

// Queries holds the statements of the session_values table.
type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

const getValue = `SELECT value FROM session_values WHERE session_id = ? AND key = ?`

func (q *Queries) GetValue(ctx context.Context, sessionID, key string) ([]byte, error) {
	var value []byte
	err := q.db.QueryRowContext(ctx, getValue, sessionID, key).Scan(&value)
	return value, err
}

const upsertValue = `
INSERT INTO session_values (session_id, key, value, updated_at)
VALUES (?, ?, ?, ?)
ON CONFLICT (session_id, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`

type UpsertValueParams struct {
	SessionID string
	Key       string
	Value     []byte
	UpdatedAt int64
}

func (q *Queries) UpsertValue(ctx context.Context, arg UpsertValueParams) error {
	_, err := q.db.ExecContext(ctx, upsertValue, arg.SessionID, arg.Key, arg.Value, arg.UpdatedAt)
	return err
}

const deleteValue = `DELETE FROM session_values WHERE session_id = ? AND key = ?`

func (q *Queries) DeleteValue(ctx context.Context, sessionID, key string) error {
	_, err := q.db.ExecContext(ctx, deleteValue, sessionID, key)
	return err
}

const touchSession = `UPDATE session_values SET updated_at = ? WHERE session_id = ?`

func (q *Queries) TouchSession(ctx context.Context, sessionID string, updatedAt int64) error {
	_, err := q.db.ExecContext(ctx, touchSession, updatedAt, sessionID)
	return err
}

const idleSessions = `
SELECT session_id FROM session_values
GROUP BY session_id
HAVING MAX(updated_at) < ?`

const countIdleSessions = `SELECT COUNT(*) FROM (` + idleSessions + `)`

func (q *Queries) CountIdleSessions(ctx context.Context, cutoff int64) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countIdleSessions, cutoff).Scan(&n)
	return n, err
}

// Sessions with any value written after the cutoff survive.
const deleteIdleSessions = `DELETE FROM session_values WHERE session_id IN (` + idleSessions + `)`

func (q *Queries) DeleteIdleSessions(ctx context.Context, cutoff int64) error {
	_, err := q.db.ExecContext(ctx, deleteIdleSessions, cutoff)
	return err
}
