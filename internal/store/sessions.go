package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// GetSession returns the stored value for key, or nil when the key is
// missing or expired.
func (s *SQLiteStore) GetSession(ctx context.Context, key string, now time.Time) ([]byte, error) {
	var row struct {
		Value     []byte `db:"value"`
		ExpiresAt int64  `db:"expires_at"`
	}
	err := s.db.GetContext(ctx, &row, "SELECT value, expires_at FROM sessions WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting session: %w", err)
	}
	if row.ExpiresAt > 0 && now.Unix() >= row.ExpiresAt {
		if err := s.DeleteSession(ctx, key); err != nil {
			return nil, err
		}
		return nil, nil
	}
	return row.Value, nil
}

// SetSession stores val under key. A zero expiresAt never expires.
func (s *SQLiteStore) SetSession(ctx context.Context, key string, val []byte, expiresAt time.Time) error {
	var exp int64
	if !expiresAt.IsZero() {
		exp = expiresAt.Unix()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (key, value, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
		key, val, exp)
	if err != nil {
		return fmt.Errorf("setting session: %w", err)
	}
	return nil
}

func (s *SQLiteStore) DeleteSession(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE key = ?", key); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// ResetSessions deletes every session.
func (s *SQLiteStore) ResetSessions(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM sessions"); err != nil {
		return fmt.Errorf("resetting sessions: %w", err)
	}
	return nil
}

// PurgeExpiredSessions deletes sessions that expired before now and
// returns how many were removed.
func (s *SQLiteStore) PurgeExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM sessions WHERE expires_at > 0 AND expires_at <= ?", now.Unix())
	if err != nil {
		return 0, fmt.Errorf("purging sessions: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
