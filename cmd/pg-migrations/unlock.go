package main

import (
	"github.com/socsieng/pg-migrations/internal/util"
	"github.com/spf13/cobra"
)

var unlockCmd = &cobra.Command{
	Use:   "unlock",
	Short: "Release a migration lock left behind by a crashed run",
	Long: `Force-release the migration lock.

A run that is killed while applying changesets leaves its lock held, and
later runs refuse to start. Only use this when no other migration is running.`,
	Args: cobra.NoArgs,
	RunE: runUnlock,
}

func init() {
	rootCmd.AddCommand(unlockCmd)
}

func runUnlock(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	db, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	lock, err := db.ActiveLock(ctx)
	if err != nil {
		return err
	}
	if lock == nil {
		util.InfoLog("Lock is not held")
		return nil
	}

	released, err := db.ForceRelease(ctx)
	if err != nil {
		return err
	}

	util.SuccessLog("Released %d %s (held since %s)", released, util.Plural(int(released), "lock", "locks"), util.FormatAge(lock.CreatedAt))
	return nil
}
