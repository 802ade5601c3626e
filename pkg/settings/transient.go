package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"
)

func (s *Store) expiry(ttl time.Duration) int64 {
	return s.now().Add(ttl).UnixMilli()
}

// Transient reads a value that has not yet expired.
func (s *Store) Transient(ctx context.Context, name string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM transients WHERE name = ? AND expires_at > ?",
		name, s.now().UnixMilli()).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read transient %s: %w", name, err)
	}
	return value, true, nil
}

// SetTransient stores value under name until ttl has passed.
func (s *Store) SetTransient(ctx context.Context, name, value string, ttl time.Duration) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO transients (name, value, expires_at) VALUES (?, ?, ?)
ON CONFLICT(name) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
		name, value, s.expiry(ttl))
	if err != nil {
		return fmt.Errorf("failed to write transient %s: %w", name, err)
	}
	return nil
}

// DeleteTransient removes a transient whether or not it has expired.
func (s *Store) DeleteTransient(ctx context.Context, name string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM transients WHERE name = ?", name); err != nil {
		return fmt.Errorf("failed to delete transient %s: %w", name, err)
	}
	return nil
}

// Counter reads a live counter. A missing or expired counter is 0, false.
func (s *Store) Counter(ctx context.Context, name string) (int64, bool, error) {
	raw, ok, err := s.Transient(ctx, name)
	if err != nil || !ok {
		return 0, false, err
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("transient %s is not a counter: %w", name, err)
	}
	return n, true, nil
}

// SetCounter stores n under name until ttl has passed.
func (s *Store) SetCounter(ctx context.Context, name string, n int64, ttl time.Duration) error {
	return s.SetTransient(ctx, name, strconv.FormatInt(n, 10), ttl)
}

// Increment adds one to a counter and returns the new value. A missing or
// expired counter restarts at 1 with a fresh ttl; a live one keeps its
// original expiry, which gives fixed windows.
func (s *Store) Increment(ctx context.Context, name string, ttl time.Duration) (int64, error) {
	now := s.now().UnixMilli()
	var raw string
	err := s.db.QueryRowContext(ctx, `
INSERT INTO transients (name, value, expires_at) VALUES (?, '1', ?)
ON CONFLICT(name) DO UPDATE SET
    value      = CASE WHEN transients.expires_at <= ? THEN '1'
                      ELSE CAST(CAST(transients.value AS INTEGER) + 1 AS TEXT) END,
    expires_at = CASE WHEN transients.expires_at <= ? THEN excluded.expires_at
                      ELSE transients.expires_at END
RETURNING value`,
		name, s.expiry(ttl), now, now).Scan(&raw)
	if err != nil {
		return 0, fmt.Errorf("failed to increment counter %s: %w", name, err)
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("transient %s is not a counter: %w", name, err)
	}
	return n, nil
}

// PurgeExpired deletes every expired transient and reports how many went.
func (s *Store) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM transients WHERE expires_at <= ?", s.now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired transients: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
