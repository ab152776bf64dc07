// Package sqlstore keeps sessions in the session_access and session_record
// tables created by the database migrations.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/botflow/core/session"
)

// Backend is a session.Backend over a postgres or sqlite3 database.
type Backend struct {
	db  *sqlx.DB
	now func() time.Time
}

// Option configures a Backend.
type Option func(*Backend)

// WithClock replaces the time written to session_access.
func WithClock(now func() time.Time) Option {
	return func(b *Backend) {
		if now != nil {
			b.now = now
		}
	}
}

// New returns a backend over db. The schema must already be migrated.
func New(db *sqlx.DB, opts ...Option) *Backend {
	b := &Backend{db: db, now: time.Now}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Every operation updates session_access first so concurrent transactions
// lock rows in the same order.
func (b *Backend) touch(ctx context.Context, tx *sqlx.Tx, id session.ID, create bool) (bool, error) {
	ms := b.now().UnixMilli()
	if create {
		_, err := tx.ExecContext(ctx, tx.Rebind(
			`INSERT INTO session_access (session_id, accessed_at) VALUES (?, ?)
			 ON CONFLICT (session_id) DO UPDATE SET accessed_at = excluded.accessed_at`), id.String(), ms)
		return true, err
	}
	res, err := tx.ExecContext(ctx, tx.Rebind(
		`UPDATE session_access SET accessed_at = ? WHERE session_id = ?`), ms, id.String())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (b *Backend) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := b.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Read implements session.Backend.
func (b *Backend) Read(ctx context.Context, id session.ID, key string) ([]byte, bool, error) {
	var (
		value []byte
		found bool
	)
	err := b.inTx(ctx, func(tx *sqlx.Tx) error {
		exists, err := b.touch(ctx, tx, id, false)
		if err != nil || !exists {
			return err
		}
		err = tx.GetContext(ctx, &value, tx.Rebind(
			`SELECT value FROM session_record WHERE session_id = ? AND record_key = ?`), id.String(), key)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		found = err == nil
		return err
	})
	if err != nil {
		return nil, false, fmt.Errorf("sqlstore: read: %w", err)
	}
	return value, found, nil
}

// Write implements session.Backend.
func (b *Backend) Write(ctx context.Context, id session.ID, key string, value []byte) error {
	err := b.inTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := b.touch(ctx, tx, id, true); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, tx.Rebind(
			`INSERT INTO session_record (session_id, record_key, value) VALUES (?, ?, ?)
			 ON CONFLICT (session_id, record_key) DO UPDATE SET value = excluded.value`), id.String(), key, value)
		return err
	})
	if err != nil {
		return fmt.Errorf("sqlstore: write: %w", err)
	}
	return nil
}

// Delete implements session.Backend.
func (b *Backend) Delete(ctx context.Context, id session.ID, key string) error {
	err := b.inTx(ctx, func(tx *sqlx.Tx) error {
		exists, err := b.touch(ctx, tx, id, false)
		if err != nil || !exists {
			return err
		}
		_, err = tx.ExecContext(ctx, tx.Rebind(
			`DELETE FROM session_record WHERE session_id = ? AND record_key = ?`), id.String(), key)
		return err
	})
	if err != nil {
		return fmt.Errorf("sqlstore: delete: %w", err)
	}
	return nil
}

// Sessions implements session.Backend. Ids come back oldest access first.
func (b *Backend) Sessions(ctx context.Context) ([]session.ID, error) {
	var raw []string
	if err := b.db.SelectContext(ctx, &raw,
		`SELECT session_id FROM session_access ORDER BY accessed_at, session_id`); err != nil {
		return nil, fmt.Errorf("sqlstore: list: %w", err)
	}
	ids := make([]session.ID, len(raw))
	for i, s := range raw {
		ids[i] = session.ID(s)
	}
	return ids, nil
}

// Expire implements session.Backend. The access row is deleted only when it
// is still older than the cutoff, so a concurrent touch keeps the session.
func (b *Backend) Expire(ctx context.Context, id session.ID, lifetime time.Duration) (bool, error) {
	cutoff := b.now().Add(-lifetime).UnixMilli()
	removed := false
	err := b.inTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, tx.Rebind(
			`DELETE FROM session_access WHERE session_id = ? AND accessed_at < ?`), id.String(), cutoff)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil || n == 0 {
			return err
		}
		removed = true
		_, err = tx.ExecContext(ctx, tx.Rebind(
			`DELETE FROM session_record WHERE session_id = ?`), id.String())
		return err
	})
	if err != nil {
		return false, fmt.Errorf("sqlstore: expire %s: %w", id, err)
	}
	return removed, nil
}
