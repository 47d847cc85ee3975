package main

import (
	"context"
	"fmt"
	"time"

	"github.com/socsieng/pg-migrations/internal/changeset"
	"github.com/socsieng/pg-migrations/internal/migration"
	"github.com/socsieng/pg-migrations/internal/report"
	"github.com/socsieng/pg-migrations/internal/store"
	"github.com/socsieng/pg-migrations/internal/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const reportHistoryLimit = 20

func runMigrate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	schema, err := schemaArg(args)
	if err != nil {
		return err
	}

	generateScript := viper.GetBool("generate-script")
	contexts := util.GetList("context")

	db, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	m, err := migration.Load(schema)
	if err != nil {
		return err
	}

	logger := newEventLogger(GetConfigString("event-log", ""))
	defer logger.Close()

	mode := "migrate"
	if generateScript {
		mode = "generate-script"
	}
	summary := report.NewSummaryReport(schema, string(db.Dialect()), mode, contexts, len(m.Changesets))
	summary.EventLogPath = logger.Path()

	opts := migration.Options{
		Contexts:     contexts,
		Events:       logger,
		ShowProgress: true,
	}

	startTime := time.Now()
	var runErr error

	if generateScript {
		var pending []*changeset.Changeset
		pending, runErr = m.FilterChangesets(ctx, db, opts)
		if runErr == nil {
			summary.RecordApplied(pending)
			fmt.Fprintln(cmd.OutOrStdout(), migration.RenderScript(pending))
		}
	} else {
		var applied []*changeset.Changeset
		applied, runErr = m.Execute(ctx, db, opts)
		summary.RecordApplied(applied)
		if runErr == nil {
			fmt.Fprintln(cmd.OutOrStdout(), appliedMessage(len(applied)))
		}
	}

	if runErr != nil {
		logger.LogError(report.EventError, "", runErr)
		summary.RecordError(runErr)
	}
	summary.Duration = time.Since(startTime)

	writeSummary(ctx, db, summary, GetConfigString("report", ""))
	return runErr
}

// appliedMessage reports how many changesets ran
func appliedMessage(n int) string {
	return fmt.Sprintf("%d %s applied", n, util.Plural(n, "change", "changes"))
}

// newEventLogger opens a JSONL event log in dir, or returns nil when dir is
// empty. Failing to open the log only warns.
func newEventLogger(dir string) *report.EventLogger {
	if dir == "" {
		return nil
	}

	logLevel := report.LevelInfo
	if viper.GetBool("quiet") {
		logLevel = report.LevelWarning
	} else if viper.GetBool("verbose") {
		logLevel = report.LevelDebug
	}

	logger, err := report.NewEventLogger(dir, logLevel)
	if err != nil {
		util.WarnLog("Failed to create event logger: %v", err)
		return nil
	}
	util.InfoLog("Event log: %s", logger.Path())
	return logger
}

// writeSummary writes the markdown summary when a path was given
func writeSummary(ctx context.Context, db *store.Store, summary *report.SummaryReport, path string) {
	if path == "" {
		return
	}

	if err := summary.LoadHistory(context.WithoutCancel(ctx), db, reportHistoryLimit); err != nil {
		util.WarnLog("%v", err)
	}
	if err := report.WriteMarkdownReport(summary, path); err != nil {
		util.WarnLog("Failed to write summary report: %v", err)
		return
	}
	util.SuccessLog("Summary report saved to: %s", path)
}
