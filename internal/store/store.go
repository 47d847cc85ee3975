// Package store persists migration bookkeeping: the advisory lock, the
// changesets that have run and the append-only changelog of executions.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/socsieng/pg-migrations/internal/util"
)

// DefaultToolVersion is recorded on lock rows when Options.ToolVersion is empty
const DefaultToolVersion = "0.0.0"

// Store owns the connection to the target database and the lock held by this session
type Store struct {
	db          *sql.DB
	dialect     Dialect
	toolVersion string
	schemaReady bool
	lockID      int64
}

// Options holds options for opening a store
type Options struct {
	Connection  string // postgres:// or mysql:// URL, or a SQLite path
	User        string // overrides the connection string user
	Password    string // overrides the connection string password
	ToolVersion string
	Retry       *util.RetryConfig // nil uses util.ConnectRetryConfig
}

// Open connects to the target database, retrying transient network errors
func Open(ctx context.Context, opts Options) (*Store, error) {
	if opts.Connection == "" {
		return nil, fmt.Errorf("%w: connection string", util.ErrMissingArgument)
	}

	dialect := DetectDialect(opts.Connection)
	db, err := openDB(dialect, opts.Connection, opts.User, opts.Password)
	if err != nil {
		return nil, err
	}

	// One logical operation at a time; the lock transaction must not see
	// a second session from the same pool.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	toolVersion := opts.ToolVersion
	if toolVersion == "" {
		toolVersion = DefaultToolVersion
	}
	s := &Store{db: db, dialect: dialect, toolVersion: toolVersion}

	retry := opts.Retry
	if retry == nil {
		retry = util.ConnectRetryConfig()
	}

	err = util.Retry(ctx, retry, func() error {
		return s.CheckConnection(ctx)
	}, fmt.Sprintf("connect to %s database", dialect))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	util.DebugLog("Connected to %s database", dialect)

	return s, nil
}

// Close closes the database connection. A lock still held is left in place.
func (s *Store) Close() error {
	if s.lockID != 0 {
		util.WarnLog("Closing store while holding migration lock %d", s.lockID)
	}
	return s.db.Close()
}

// DB returns the underlying database connection for custom queries
func (s *Store) DB() *sql.DB {
	return s.db
}

// Dialect returns the SQL dialect of the target database
func (s *Store) Dialect() Dialect {
	return s.dialect
}

// CheckConnection pings the database
func (s *Store) CheckConnection(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

// ServerVersion returns the version string reported by the database server
func (s *Store) ServerVersion(ctx context.Context) (string, error) {
	var query string
	switch s.dialect {
	case Postgres:
		query = "SHOW server_version"
	case MySQL:
		query = "SELECT VERSION()"
	default:
		query = "SELECT sqlite_version()"
	}

	var version string
	if err := s.db.QueryRowContext(ctx, query).Scan(&version); err != nil {
		return "", fmt.Errorf("failed to query server version: %w", err)
	}
	return version, nil
}

// transaction executes fn within a transaction
func (s *Store) transaction(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// insert runs an INSERT and returns the new row id
func (s *Store) insert(ctx context.Context, tx *sql.Tx, query string, args ...any) (int64, error) {
	if s.dialect == Postgres {
		var id int64
		err := tx.QueryRowContext(ctx, s.dialect.rebind(query+" RETURNING id"), args...).Scan(&id)
		return id, err
	}

	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func now() time.Time {
	return time.Now().UTC()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
