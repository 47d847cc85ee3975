package main

import (
	"context"
	"fmt"
	"os"

	"github.com/socsieng/pg-migrations/internal/migration"
	"github.com/socsieng/pg-migrations/internal/store"
	"github.com/socsieng/pg-migrations/internal/util"
	"github.com/spf13/cobra"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor [schema]",
	Short: "Run diagnostic checks on the database and schema",
	Long: `Run diagnostic checks to ensure pg-migrations can operate correctly.

This command checks:
- Database connectivity and server version
- SQLite database files on network filesystems (file locking is unreliable)
- Migration lock state (a held lock blocks every run)
- Schema loading (manifest, globs and changeset syntax)
- Drift between the schema and the changelog

Use this command to troubleshoot a failing migration.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

type checkResult struct {
	name    string
	message string
	error   bool
	warning bool
}

func runDoctor(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	util.InfoLog("=== pg-migrations Doctor - Diagnostics ===")
	util.InfoLog("")

	results := []checkResult{}

	db, result := checkDatabase(ctx)
	results = append(results, result)
	if db != nil {
		defer db.Close()
		if db.Dialect() == store.SQLite {
			results = append(results, checkDatabaseLocation(GetConfigString("connection", "")))
		}
		results = append(results, checkLock(ctx, db))
	}

	var m *migration.Migration
	if len(args) > 0 {
		m, result = checkSchema(args[0])
		results = append(results, result)
	}
	if db != nil && m != nil {
		results = append(results, checkDrift(ctx, db, m, util.GetList("context")))
	}

	// Print results
	util.InfoLog("")
	util.InfoLog("=== Diagnostic Results ===")
	util.InfoLog("")

	hasErrors := false
	hasWarnings := false

	for _, r := range results {
		symbol := "✓"
		if r.error {
			symbol = "✗"
			hasErrors = true
		} else if r.warning {
			symbol = "⚠"
			hasWarnings = true
		}

		line := fmt.Sprintf("[%s] %s", symbol, r.name)
		if r.message != "" {
			line += fmt.Sprintf(": %s", r.message)
		}

		if r.error {
			util.ErrorLog("%s", line)
		} else if r.warning {
			util.WarnLog("%s", line)
		} else {
			util.SuccessLog("%s", line)
		}
	}

	util.InfoLog("")
	if hasErrors {
		util.ErrorLog("Some critical checks failed. Please resolve errors before migrating.")
		return fmt.Errorf("diagnostics failed")
	} else if hasWarnings {
		util.WarnLog("Some checks produced warnings. Review them before proceeding.")
	} else {
		util.SuccessLog("All checks passed!")
	}

	return nil
}

// checkDatabase opens the configured database and reports its version. The
// returned store is nil when the check failed.
func checkDatabase(ctx context.Context) (*store.Store, checkResult) {
	opts, err := connectionOptions(util.PromptPassword)
	if err != nil {
		return nil, checkResult{name: "Database", error: true, message: err.Error()}
	}
	return openDatabase(ctx, opts)
}

func openDatabase(ctx context.Context, opts store.Options) (*store.Store, checkResult) {
	opts.Retry = &util.RetryConfig{MaxAttempts: 1}

	db, err := store.Open(ctx, opts)
	if err != nil {
		return nil, checkResult{
			name:    "Database",
			error:   true,
			message: fmt.Sprintf("cannot connect: %v", err),
		}
	}

	version, err := db.ServerVersion(ctx)
	if err != nil {
		return db, checkResult{
			name:    "Database",
			warning: true,
			message: fmt.Sprintf("%s (version unknown: %v)", db.Dialect(), err),
		}
	}

	return db, checkResult{
		name:    "Database",
		message: fmt.Sprintf("%s %s", db.Dialect(), version),
	}
}

// checkDatabaseLocation warns when a sqlite database lives on a network
// filesystem, where file locks do not reliably exclude other hosts
func checkDatabaseLocation(connection string) checkResult {
	path := store.SQLitePath(connection)
	if path == "" {
		return checkResult{name: "Database location", message: "in-memory"}
	}

	info, err := util.DetectNetworkFilesystem(path)
	if err != nil {
		return checkResult{
			name:    "Database location",
			warning: true,
			message: fmt.Sprintf("cannot inspect %s: %v", path, err),
		}
	}

	if info.IsNetwork {
		return checkResult{
			name:    "Database location",
			warning: true,
			message: fmt.Sprintf("%s is on a %s mount (%s), concurrent runs from other hosts may not be excluded", path, info.Protocol, info.MountPath),
		}
	}

	return checkResult{name: "Database location", message: fmt.Sprintf("%s (local filesystem)", path)}
}

// checkLock warns when a lock is held, since every run will refuse to start
func checkLock(ctx context.Context, db *store.Store) checkResult {
	lock, err := db.ActiveLock(ctx)
	if err != nil {
		return checkResult{
			name:    "Migration lock",
			error:   true,
			message: fmt.Sprintf("cannot read lock table: %v", err),
		}
	}

	if lock != nil {
		return checkResult{
			name:    "Migration lock",
			warning: true,
			message: fmt.Sprintf("held since %s by version %s (run 'pg-migrations unlock' if no migration is running)", util.FormatAge(lock.CreatedAt), lock.ToolVersion),
		}
	}

	return checkResult{name: "Migration lock", message: "free"}
}

// checkSchema loads every changeset of the schema
func checkSchema(path string) (*migration.Migration, checkResult) {
	if _, err := os.Stat(path); err != nil {
		return nil, checkResult{
			name:    "Schema",
			error:   true,
			message: fmt.Sprintf("cannot access %s: %v", path, err),
		}
	}

	m, err := migration.Load(path)
	if err != nil {
		return nil, checkResult{
			name:    "Schema",
			error:   true,
			message: err.Error(),
		}
	}

	if len(m.Changesets) == 0 {
		return m, checkResult{
			name:    "Schema",
			warning: true,
			message: fmt.Sprintf("%s (no changesets found)", path),
		}
	}

	return m, checkResult{
		name: "Schema",
		message: fmt.Sprintf("%s (%d %s in %d %s)", path,
			len(m.Changesets), util.Plural(len(m.Changesets), "changeset", "changesets"),
			len(m.Files), util.Plural(len(m.Files), "file", "files")),
	}
}

// checkDrift reports changesets that would fail validation
func checkDrift(ctx context.Context, db *store.Store, m *migration.Migration, contexts []string) checkResult {
	statuses, err := m.Status(ctx, db, migration.Options{Contexts: contexts})
	if err != nil {
		return checkResult{name: "Changelog", error: true, message: err.Error()}
	}

	counts := migration.CountByState(statuses)
	if drift := counts[migration.StateDrift]; drift > 0 {
		return checkResult{
			name:    "Changelog",
			error:   true,
			message: fmt.Sprintf("%d %s drifted (see 'pg-migrations status')", drift, util.Plural(drift, "changeset has", "changesets have")),
		}
	}

	return checkResult{
		name:    "Changelog",
		message: fmt.Sprintf("%d pending, %d up to date", counts[migration.StatePending], counts[migration.StateUpToDate]),
	}
}
