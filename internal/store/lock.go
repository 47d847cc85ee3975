package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/socsieng/pg-migrations/internal/util"
)

// Lock is a row of migration_lock that is still held
type Lock struct {
	ID          int64
	ToolVersion string
	CreatedAt   time.Time
}

// AcquireLock claims the migration lock without waiting. It returns false
// when any session, including this one, already holds it.
func (s *Store) AcquireLock(ctx context.Context) (bool, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return false, err
	}

	var lockID int64
	err := s.transaction(ctx, func(tx *sql.Tx) error {
		countQuery := "SELECT COUNT(*) FROM migration_lock WHERE is_locked = ?"
		switch s.dialect {
		case Postgres:
			// Blocks concurrent claimers until commit without blocking readers
			if _, err := tx.ExecContext(ctx, "LOCK TABLE migration_lock IN SHARE ROW EXCLUSIVE MODE"); err != nil {
				return fmt.Errorf("failed to lock migration_lock: %w", err)
			}
		case MySQL:
			countQuery += " FOR UPDATE"
		}

		var locks int
		if err := tx.QueryRowContext(ctx, s.dialect.rebind(countQuery), true).Scan(&locks); err != nil {
			return fmt.Errorf("failed to count active locks: %w", err)
		}
		if locks > 0 {
			return nil
		}

		id, err := s.insert(ctx, tx,
			"INSERT INTO migration_lock (is_locked, migration_tool_version, created_at) VALUES (?, ?, ?)",
			true, s.toolVersion, now())
		if err != nil {
			return fmt.Errorf("failed to insert lock: %w", err)
		}
		lockID = id
		return nil
	})
	if err != nil {
		return false, err
	}

	if lockID == 0 {
		util.DebugLog("Migration lock is held by another session")
		return false, nil
	}

	s.lockID = lockID
	util.DebugLog("Acquired migration lock %d", lockID)
	return true, nil
}

// ReleaseLock releases the lock held by this session. It is a no-op when
// no lock is held.
func (s *Store) ReleaseLock(ctx context.Context) error {
	if s.lockID == 0 {
		return nil
	}

	_, err := s.db.ExecContext(ctx,
		s.dialect.rebind("UPDATE migration_lock SET is_locked = ? WHERE id = ?"),
		false, s.lockID)
	if err != nil {
		return fmt.Errorf("failed to release lock %d: %w", s.lockID, err)
	}

	util.DebugLog("Released migration lock %d", s.lockID)
	s.lockID = 0
	return nil
}

// HoldsLock reports whether this session holds the migration lock
func (s *Store) HoldsLock() bool {
	return s.lockID != 0
}

// ForceRelease releases every held lock regardless of owner and returns the
// number of rows released. It is meant for recovering after a crashed run.
func (s *Store) ForceRelease(ctx context.Context) (int64, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return 0, err
	}

	result, err := s.db.ExecContext(ctx,
		s.dialect.rebind("UPDATE migration_lock SET is_locked = ? WHERE is_locked = ?"),
		false, true)
	if err != nil {
		return 0, fmt.Errorf("failed to release locks: %w", err)
	}

	released, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}

	s.lockID = 0
	return released, nil
}

// ActiveLock returns the most recent held lock, or nil when the lock is free
func (s *Store) ActiveLock(ctx context.Context) (*Lock, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}

	var lock Lock
	err := s.db.QueryRowContext(ctx, s.dialect.rebind(`
		SELECT id, migration_tool_version, created_at
		FROM migration_lock
		WHERE is_locked = ?
		ORDER BY id DESC
		LIMIT 1
	`), true).Scan(&lock.ID, &lock.ToolVersion, &lock.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query active lock: %w", err)
	}

	return &lock, nil
}
