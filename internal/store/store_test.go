package store

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/socsieng/pg-migrations/internal/changeset"
	"github.com/socsieng/pg-migrations/internal/util"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	path := filepath.Join(t.TempDir(), "target.db")
	store, err := Open(context.Background(), Options{
		Connection:  path,
		ToolVersion: "1.2.3",
		Retry:       &util.RetryConfig{MaxAttempts: 1},
	})
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return store
}

func parseOne(t *testing.T, file, content string) *changeset.Changeset {
	t.Helper()

	changesets, err := changeset.Parse(file, content)
	if err != nil {
		t.Fatalf("failed to parse changeset: %v", err)
	}
	if len(changesets) != 1 {
		t.Fatalf("expected 1 changeset, got %d", len(changesets))
	}
	return changesets[0]
}

func TestOpen_RequiresConnection(t *testing.T) {
	_, err := Open(context.Background(), Options{})
	if !errors.Is(err, util.ErrMissingArgument) {
		t.Errorf("expected ErrMissingArgument, got %v", err)
	}
}

func TestStoreCreatesTables(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if _, err := store.AcquireLock(ctx); err != nil {
		t.Fatalf("failed to acquire lock: %v", err)
	}
	defer store.ReleaseLock(ctx)

	for _, table := range Tables {
		var count int
		err := store.db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&count)
		if err != nil {
			t.Fatalf("failed to query table %s: %v", table, err)
		}
		if count != 1 {
			t.Errorf("expected table %s to exist", table)
		}
	}

	version, err := store.ServerVersion(ctx)
	if err != nil {
		t.Fatalf("failed to get server version: %v", err)
	}
	if !strings.HasPrefix(version, "3.") {
		t.Errorf("expected a SQLite 3 version, got %q", version)
	}
}

func TestLock_AcquireAndRelease(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	acquired, err := store.AcquireLock(ctx)
	if err != nil {
		t.Fatalf("failed to acquire lock: %v", err)
	}
	if !acquired {
		t.Fatal("expected lock to be acquired")
	}
	if !store.HoldsLock() {
		t.Error("expected store to hold the lock")
	}

	if err := store.ReleaseLock(ctx); err != nil {
		t.Fatalf("failed to release lock: %v", err)
	}
	if store.HoldsLock() {
		t.Error("expected store not to hold the lock after release")
	}

	// Releasing twice is harmless
	if err := store.ReleaseLock(ctx); err != nil {
		t.Errorf("second release failed: %v", err)
	}
}

func TestLock_NotAcquiredWhileHeld(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	acquired, err := store.AcquireLock(ctx)
	if err != nil || !acquired {
		t.Fatalf("expected first acquire to succeed, got %v, %v", acquired, err)
	}

	acquired, err = store.AcquireLock(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if acquired {
		t.Error("expected second acquire to fail while the lock is held")
	}

	if err := store.ReleaseLock(ctx); err != nil {
		t.Fatalf("failed to release lock: %v", err)
	}

	acquired, err = store.AcquireLock(ctx)
	if err != nil || !acquired {
		t.Errorf("expected acquire after release to succeed, got %v, %v", acquired, err)
	}
	store.ReleaseLock(ctx)
}

func TestLock_HeldByAnotherSession(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shared.db")
	ctx := context.Background()

	first, err := Open(ctx, Options{Connection: path})
	if err != nil {
		t.Fatalf("failed to open first store: %v", err)
	}
	defer first.Close()

	second, err := Open(ctx, Options{Connection: "sqlite://" + path})
	if err != nil {
		t.Fatalf("failed to open second store: %v", err)
	}
	defer second.Close()

	if acquired, err := first.AcquireLock(ctx); err != nil || !acquired {
		t.Fatalf("expected first session to acquire lock, got %v, %v", acquired, err)
	}

	if acquired, err := second.AcquireLock(ctx); err != nil || acquired {
		t.Errorf("expected second session to be refused, got %v, %v", acquired, err)
	}

	lock, err := second.ActiveLock(ctx)
	if err != nil {
		t.Fatalf("failed to query active lock: %v", err)
	}
	if lock == nil {
		t.Fatal("expected an active lock")
	}
	if lock.ToolVersion != DefaultToolVersion {
		t.Errorf("expected tool version %s, got %s", DefaultToolVersion, lock.ToolVersion)
	}

	if err := first.ReleaseLock(ctx); err != nil {
		t.Fatalf("failed to release lock: %v", err)
	}
	if acquired, err := second.AcquireLock(ctx); err != nil || !acquired {
		t.Errorf("expected second session to acquire released lock, got %v, %v", acquired, err)
	}
	second.ReleaseLock(ctx)
}

func TestForceRelease(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if acquired, err := store.AcquireLock(ctx); err != nil || !acquired {
		t.Fatalf("expected lock, got %v, %v", acquired, err)
	}

	released, err := store.ForceRelease(ctx)
	if err != nil {
		t.Fatalf("force release failed: %v", err)
	}
	if released != 1 {
		t.Errorf("expected 1 released lock, got %d", released)
	}

	lock, err := store.ActiveLock(ctx)
	if err != nil {
		t.Fatalf("failed to query active lock: %v", err)
	}
	if lock != nil {
		t.Errorf("expected no active lock, got %+v", lock)
	}

	released, err = store.ForceRelease(ctx)
	if err != nil || released != 0 {
		t.Errorf("expected nothing to release, got %d, %v", released, err)
	}
}

func TestExecuteChangeset(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	cs := parseOne(t, "file_1", `--migration
--changeset name
create table my_table(val text);
      `)

	if acquired, err := store.AcquireLock(ctx); err != nil || !acquired {
		t.Fatalf("expected lock, got %v, %v", acquired, err)
	}
	defer store.ReleaseLock(ctx)

	if err := store.ExecuteChangeset(ctx, cs); err != nil {
		t.Fatalf("failed to execute changeset: %v", err)
	}

	view, err := store.GetChangeset(ctx, cs.File, cs.Name)
	if err != nil {
		t.Fatalf("failed to get changeset: %v", err)
	}
	if view == nil {
		t.Fatal("expected recorded changeset")
	}
	if view.Hash != "5c2371b09ea6c42f8fd00e9f298ad4daa5e0e24f" {
		t.Errorf("unexpected hash %s", view.Hash)
	}
	if view.ExecutionType != changeset.Once {
		t.Errorf("expected execution type once, got %q", view.ExecutionType)
	}

	var tables int
	if err := store.db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='my_table'").Scan(&tables); err != nil {
		t.Fatalf("failed to query table: %v", err)
	}
	if tables != 1 {
		t.Error("expected changeset script to create my_table")
	}

	history, err := store.History(ctx, 10)
	if err != nil {
		t.Fatalf("failed to query history: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected 1 history entry, got %d", len(history))
	}
	if history[0].FormatName() != "file_1:name" || history[0].LockID != store.lockID {
		t.Errorf("unexpected history entry %+v", history[0])
	}
}

func TestExecuteChangeset_UnnamedStoredAsEmptyName(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	cs := parseOne(t, "tables/my_table.sql", "--migration\n--changeset\ncreate table my_table(val text);")

	store.AcquireLock(ctx)
	defer store.ReleaseLock(ctx)

	if err := store.ExecuteChangeset(ctx, cs); err != nil {
		t.Fatalf("failed to execute changeset: %v", err)
	}

	var nullNames int
	if err := store.db.QueryRow("SELECT COUNT(*) FROM migration_changesets WHERE name IS NULL").Scan(&nullNames); err != nil {
		t.Fatalf("failed to query changesets: %v", err)
	}
	if nullNames != 0 {
		t.Errorf("expected unnamed changesets to be stored with an empty name, found %d NULL names", nullNames)
	}

	view, err := store.GetChangeset(ctx, "tables/my_table.sql", "")
	if err != nil || view == nil {
		t.Fatalf("expected recorded changeset, got %v, %v", view, err)
	}
}

func TestExecuteChangeset_RequiresLock(t *testing.T) {
	store := openTestStore(t)

	cs := parseOne(t, "file", "--migration\n--changeset name\nselect 1;")
	err := store.ExecuteChangeset(context.Background(), cs)
	if !errors.Is(err, ErrLockNotHeld) {
		t.Errorf("expected ErrLockNotHeld, got %v", err)
	}
}

func TestExecuteChangeset_ScriptFailure(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	cs := parseOne(t, "broken.sql", "--migration\n--changeset bad\ncreate tabel nope(val text);")

	store.AcquireLock(ctx)
	defer store.ReleaseLock(ctx)

	err := store.ExecuteChangeset(ctx, cs)
	var execErr *ExecutionError
	if !errors.As(err, &execErr) {
		t.Fatalf("expected *ExecutionError, got %T: %v", err, err)
	}
	if execErr.Changeset != "broken.sql:bad" {
		t.Errorf("expected changeset broken.sql:bad, got %s", execErr.Changeset)
	}
	if execErr.Unwrap() == nil {
		t.Error("expected wrapped driver error")
	}

	view, err := store.GetChangeset(ctx, cs.File, cs.Name)
	if err != nil {
		t.Fatalf("failed to get changeset: %v", err)
	}
	if view != nil {
		t.Error("expected failed changeset not to be recorded")
	}
}

func TestExecuteChangeset_LatestEntryWins(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	store.AcquireLock(ctx)
	defer store.ReleaseLock(ctx)

	first := parseOne(t, "views.sql", "--migration\n--changeset view type:change context:dev\nselect 1;")
	second := parseOne(t, "views.sql", "--migration\n--changeset view type:change context:test\nselect 2;")

	for _, cs := range []*changeset.Changeset{first, second} {
		if err := store.ExecuteChangeset(ctx, cs); err != nil {
			t.Fatalf("failed to execute changeset: %v", err)
		}
	}

	view, err := store.GetChangeset(ctx, "views.sql", "view")
	if err != nil {
		t.Fatalf("failed to get changeset: %v", err)
	}
	if view.Hash != second.Hash {
		t.Errorf("expected latest hash %s, got %s", second.Hash, view.Hash)
	}
	if view.Context != "test" {
		t.Errorf("expected context to follow the latest execution, got %q", view.Context)
	}

	history, err := store.History(ctx, 0)
	if err != nil {
		t.Fatalf("failed to query history: %v", err)
	}
	if len(history) != 2 {
		t.Errorf("expected 2 changelog entries, got %d", len(history))
	}
}

func TestValidateChangeset(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	store.AcquireLock(ctx)
	defer store.ReleaseLock(ctx)

	record := func(content string) {
		t.Helper()
		if err := store.ExecuteChangeset(ctx, parseOne(t, "file", content)); err != nil {
			t.Fatalf("failed to execute changeset: %v", err)
		}
	}

	record("--migration\n--changeset once\ncreate table once_table(val text);")
	record("--migration\n--changeset always type:always\nselect 1;")
	record("--migration\n--changeset change type:change\nselect 1;")
	record("--migration\n--changeset typed type:always\nselect 1;")

	tests := []struct {
		name          string
		content       string
		shouldExecute bool
		messages      int
	}{
		{"never recorded", "--migration\n--changeset new\nselect 1;", true, 0},
		{"once unchanged", "--migration\n--changeset once\ncreate table once_table(val text);", false, 0},
		{"once changed", "--migration\n--changeset once\ncreate table once_table(val integer);", false, 1},
		{"always unchanged", "--migration\n--changeset always type:always\nselect 1;", true, 0},
		{"always changed", "--migration\n--changeset always type:always\nselect 2;", true, 0},
		{"change unchanged", "--migration\n--changeset change type:change\nselect 1;", false, 0},
		{"change changed", "--migration\n--changeset change type:change\nselect 2;", true, 0},
		{"type changed", "--migration\n--changeset typed type:once\nselect 1;", false, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			validation, err := store.ValidateChangeset(ctx, parseOne(t, "file", tt.content))
			if err != nil {
				t.Fatalf("validation failed: %v", err)
			}
			if validation.ShouldExecute != tt.shouldExecute {
				t.Errorf("expected shouldExecute %v, got %v", tt.shouldExecute, validation.ShouldExecute)
			}
			if len(validation.Messages) != tt.messages {
				t.Errorf("expected %d messages, got %q", tt.messages, validation.Messages)
			}
		})
	}
}

func TestValidate_TypeChangeMessage(t *testing.T) {
	cs := changeset.New("file", "name", changeset.Change, "", "select 1;")
	recorded := &ChangesetView{File: "file", Name: "name", ExecutionType: changeset.Once, Hash: cs.Hash}

	validation := Validate(cs, recorded)
	if validation.ShouldExecute {
		t.Error("expected type change not to execute")
	}
	if len(validation.Messages) != 1 || !strings.Contains(validation.Messages[0], `from "once" to "change"`) {
		t.Errorf("unexpected messages %q", validation.Messages)
	}
}
