package store

import (
	"context"
	"fmt"
	"time"
)

// AcquireLock takes the named lock for owner until ttl elapses. It reports
// false when another owner holds an unexpired lock. An owner may refresh
// its own lock.
func (s *Store) AcquireLock(ctx context.Context, name, owner string, ttl time.Duration) (bool, error) {
	now := time.Now()
	res, err := s.q.ExecContext(ctx,
		`INSERT INTO tec_ct1_locks (name, owner, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT (name) DO UPDATE SET owner = excluded.owner, expires_at = excluded.expires_at
		 WHERE tec_ct1_locks.expires_at < ? OR tec_ct1_locks.owner = excluded.owner`,
		name, owner, now.Add(ttl).Unix(), now.Unix(),
	)
	if err != nil {
		return false, fmt.Errorf("acquire lock %s: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// ReleaseLock releases the named lock if owner holds it
func (s *Store) ReleaseLock(ctx context.Context, name, owner string) error {
	if _, err := s.q.ExecContext(ctx, "DELETE FROM tec_ct1_locks WHERE name = ? AND owner = ?", name, owner); err != nil {
		return fmt.Errorf("release lock %s: %w", name, err)
	}
	return nil
}
