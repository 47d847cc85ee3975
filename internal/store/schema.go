package store

import (
	"context"
	"fmt"
)

// Bookkeeping tables. Each dialect creates them only when absent.
var schemas = map[Dialect][]string{
	SQLite: {
		`CREATE TABLE IF NOT EXISTS migration_lock (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  is_locked BOOLEAN NOT NULL,
  migration_tool_version TEXT NOT NULL,
  created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`,
		`CREATE TABLE IF NOT EXISTS migration_changesets (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  file TEXT NOT NULL,
  name TEXT,
  execution_type TEXT NOT NULL CHECK (execution_type IN ('once', 'always', 'change')),
  context TEXT,
  created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
  UNIQUE (file, name)
)`,
		`CREATE TABLE IF NOT EXISTS migration_changelog (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  lock_id INTEGER NOT NULL REFERENCES migration_lock(id),
  changeset_id INTEGER NOT NULL REFERENCES migration_changesets(id),
  content_hash TEXT NOT NULL,
  executed_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`,
		`CREATE INDEX IF NOT EXISTS idx_migration_changelog_changeset ON migration_changelog(changeset_id, executed_at)`,
	},

	Postgres: {
		`CREATE TABLE IF NOT EXISTS migration_lock (
  id serial PRIMARY KEY,
  is_locked boolean NOT NULL,
  migration_tool_version text NOT NULL,
  created_at timestamp NOT NULL DEFAULT current_timestamp
)`,
		`CREATE TABLE IF NOT EXISTS migration_changesets (
  id serial PRIMARY KEY,
  file text NOT NULL,
  name text,
  execution_type text NOT NULL CHECK (execution_type IN ('once', 'always', 'change')),
  context text,
  created_at timestamp NOT NULL DEFAULT current_timestamp,
  UNIQUE (file, name)
)`,
		`CREATE TABLE IF NOT EXISTS migration_changelog (
  id serial PRIMARY KEY,
  lock_id integer NOT NULL REFERENCES migration_lock,
  changeset_id integer NOT NULL REFERENCES migration_changesets,
  content_hash text NOT NULL,
  executed_at timestamp NOT NULL DEFAULT current_timestamp
)`,
		`CREATE INDEX IF NOT EXISTS idx_migration_changelog_changeset ON migration_changelog(changeset_id, executed_at)`,
	},

	// InnoDB cannot index TEXT without a prefix, so identifiers are VARCHAR
	MySQL: {
		`CREATE TABLE IF NOT EXISTS migration_lock (
  id INT AUTO_INCREMENT PRIMARY KEY,
  is_locked BOOLEAN NOT NULL,
  migration_tool_version VARCHAR(64) NOT NULL,
  created_at TIMESTAMP(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6)
) ENGINE=InnoDB`,
		`CREATE TABLE IF NOT EXISTS migration_changesets (
  id INT AUTO_INCREMENT PRIMARY KEY,
  file VARCHAR(512) NOT NULL,
  name VARCHAR(255),
  execution_type VARCHAR(16) NOT NULL CHECK (execution_type IN ('once', 'always', 'change')),
  context TEXT,
  created_at TIMESTAMP(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
  UNIQUE KEY uq_migration_changesets_file_name (file, name)
) ENGINE=InnoDB`,
		`CREATE TABLE IF NOT EXISTS migration_changelog (
  id INT AUTO_INCREMENT PRIMARY KEY,
  lock_id INT NOT NULL,
  changeset_id INT NOT NULL,
  content_hash VARCHAR(64) NOT NULL,
  executed_at TIMESTAMP(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
  INDEX idx_migration_changelog_changeset (changeset_id, executed_at),
  FOREIGN KEY (lock_id) REFERENCES migration_lock(id),
  FOREIGN KEY (changeset_id) REFERENCES migration_changesets(id)
) ENGINE=InnoDB`,
	},
}

// Tables lists the bookkeeping tables in creation order
var Tables = []string{"migration_lock", "migration_changesets", "migration_changelog"}

// ensureSchema creates the bookkeeping tables the first time the store needs them
func (s *Store) ensureSchema(ctx context.Context) error {
	if s.schemaReady {
		return nil
	}

	statements, ok := schemas[s.dialect]
	if !ok {
		return fmt.Errorf("no schema for dialect %s", s.dialect)
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create migration tables: %w", err)
		}
	}

	s.schemaReady = true
	return nil
}
