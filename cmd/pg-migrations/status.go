package main

import (
	"fmt"

	"github.com/socsieng/pg-migrations/internal/migration"
	"github.com/socsieng/pg-migrations/internal/util"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status <schema>",
	Short: "Show which changesets are pending, applied or have drifted",
	Long: `Compare the changesets of a schema with the changelog of the database
without applying anything.

Each changeset is reported as:
- pending: would run on the next migration
- up to date: already applied and unchanged
- drift: cannot run (a type:once changeset changed, or its type changed)
- excluded: not part of the requested --context

Also shows whether the migration lock is held and, with --history, the most
recent changelog entries.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().Int("history", 0, "show the last N changelog entries")
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	historyLimit, _ := cmd.Flags().GetInt("history")

	schema, err := schemaArg(args)
	if err != nil {
		return err
	}

	db, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	m, err := migration.Load(schema)
	if err != nil {
		return err
	}

	statuses, err := m.Status(ctx, db, migration.Options{Contexts: util.GetList("context")})
	if err != nil {
		return err
	}

	util.InfoLog("=== Changesets ===")
	for _, status := range statuses {
		line := fmt.Sprintf("[%s] %s", status.State, status.Changeset.FormatName())
		switch status.State {
		case migration.StateDrift:
			util.ErrorLog("%s", line)
			for _, msg := range status.Messages {
				util.ErrorLog("    %s", msg)
			}
		case migration.StatePending:
			util.WarnLog("%s", line)
		default:
			util.InfoLog("%s", line)
		}
	}

	counts := migration.CountByState(statuses)
	util.InfoLog("")
	util.InfoLog("Total: %d %s", len(statuses), util.Plural(len(statuses), "changeset", "changesets"))
	util.InfoLog("  Pending: %d", counts[migration.StatePending])
	util.InfoLog("  Up to date: %d", counts[migration.StateUpToDate])
	if counts[migration.StateExcluded] > 0 {
		util.InfoLog("  Excluded: %d", counts[migration.StateExcluded])
	}
	if counts[migration.StateDrift] > 0 {
		util.ErrorLog("  Drift: %d", counts[migration.StateDrift])
	}

	lock, err := db.ActiveLock(ctx)
	if err != nil {
		return err
	}
	util.InfoLog("")
	if lock != nil {
		util.WarnLog("Lock: held since %s by version %s (id %d)", util.FormatAge(lock.CreatedAt), lock.ToolVersion, lock.ID)
	} else {
		util.InfoLog("Lock: free")
	}

	if historyLimit > 0 {
		history, err := db.History(ctx, historyLimit)
		if err != nil {
			return err
		}

		util.InfoLog("")
		util.InfoLog("=== Recent Changelog ===")
		for _, entry := range history {
			util.InfoLog("%s  %-6s  %.10s  %s", util.FormatAge(entry.ExecutedAt), entry.ExecutionType, entry.Hash, entry.FormatName())
		}
	}

	return nil
}
