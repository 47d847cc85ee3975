package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/socsieng/pg-migrations/internal/changeset"
	"github.com/socsieng/pg-migrations/internal/util"
)

// ChangesetView is a recorded changeset joined with its most recent changelog entry
type ChangesetView struct {
	ID            int64
	File          string
	Name          string
	ExecutionType changeset.ExecutionType
	Context       string
	CreatedAt     time.Time
	Hash          string // content hash of the latest execution
	ExecutedAt    time.Time
}

// HistoryEntry is one row of the changelog
type HistoryEntry struct {
	ID            int64
	LockID        int64
	File          string
	Name          string
	ExecutionType changeset.ExecutionType
	Hash          string
	ExecutedAt    time.Time
}

// FormatName returns file:name, or just the file for unnamed changesets
func (h *HistoryEntry) FormatName() string {
	return formatName(h.File, h.Name)
}

// GetChangeset returns the recorded state of a changeset, or nil when it has never run
func (s *Store) GetChangeset(ctx context.Context, file, name string) (*ChangesetView, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}

	var view ChangesetView
	var executionType string
	err := s.db.QueryRowContext(ctx, s.dialect.rebind(`
		SELECT c.id, c.file, COALESCE(c.name, ''), c.execution_type, COALESCE(c.context, ''),
		       c.created_at, l.content_hash, l.executed_at
		FROM migration_changesets c
		JOIN migration_changelog l ON l.changeset_id = c.id
		WHERE c.file = ? AND COALESCE(c.name, '') = ?
		ORDER BY l.executed_at DESC, l.id DESC
		LIMIT 1
	`), file, name).Scan(&view.ID, &view.File, &view.Name, &executionType, &view.Context,
		&view.CreatedAt, &view.Hash, &view.ExecutedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query changeset %s: %w", formatName(file, name), err)
	}

	view.ExecutionType = changeset.ExecutionType(executionType)
	return &view, nil
}

// ExecuteChangeset runs the changeset script, then records the changeset and
// appends a changelog entry tagged with the held lock. The script and the
// bookkeeping are not in one transaction.
func (s *Store) ExecuteChangeset(ctx context.Context, cs *changeset.Changeset) error {
	if s.lockID == 0 {
		return ErrLockNotHeld
	}

	started := time.Now()
	if _, err := s.db.ExecContext(ctx, cs.Script); err != nil {
		return &ExecutionError{Changeset: cs.FormatName(), Err: err}
	}
	util.DebugLog("Executed %s in %s", cs.FormatName(), time.Since(started).Round(time.Millisecond))

	err := s.transaction(ctx, func(tx *sql.Tx) error {
		changesetID, err := s.recordChangeset(ctx, tx, cs)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, s.dialect.rebind(`
			INSERT INTO migration_changelog (lock_id, changeset_id, content_hash, executed_at)
			VALUES (?, ?, ?, ?)
		`), s.lockID, changesetID, cs.Hash, now())
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to record changeset %s: %w", cs.FormatName(), err)
	}

	return nil
}

// recordChangeset inserts the changeset row on first execution and keeps
// its context current afterwards
func (s *Store) recordChangeset(ctx context.Context, tx *sql.Tx, cs *changeset.Changeset) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx, s.dialect.rebind(`
		SELECT id FROM migration_changesets
		WHERE file = ? AND COALESCE(name, '') = ?
	`), cs.File, cs.Name).Scan(&id)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return s.insert(ctx, tx, `
			INSERT INTO migration_changesets (file, name, execution_type, context, created_at)
			VALUES (?, ?, ?, ?, ?)`,
			cs.File, cs.Name, string(cs.ExecutionType), nullString(cs.Context), now())
	case err != nil:
		return 0, err
	}

	_, err = tx.ExecContext(ctx, s.dialect.rebind("UPDATE migration_changesets SET context = ? WHERE id = ?"),
		nullString(cs.Context), id)
	return id, err
}

// History returns changelog entries, newest first. A limit of zero or less returns everything.
func (s *Store) History(ctx context.Context, limit int) ([]*HistoryEntry, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}

	query := `
		SELECT l.id, l.lock_id, c.file, COALESCE(c.name, ''), c.execution_type, l.content_hash, l.executed_at
		FROM migration_changelog l
		JOIN migration_changesets c ON c.id = l.changeset_id
		ORDER BY l.executed_at DESC, l.id DESC`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query changelog: %w", err)
	}
	defer rows.Close()

	var entries []*HistoryEntry
	for rows.Next() {
		var entry HistoryEntry
		var executionType string
		if err := rows.Scan(&entry.ID, &entry.LockID, &entry.File, &entry.Name, &executionType,
			&entry.Hash, &entry.ExecutedAt); err != nil {
			return nil, err
		}
		entry.ExecutionType = changeset.ExecutionType(executionType)
		entries = append(entries, &entry)
	}

	return entries, rows.Err()
}

func formatName(file, name string) string {
	if name == "" {
		return file
	}
	return file + ":" + name
}
