package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/socsieng/pg-migrations/internal/changeset"
	"github.com/socsieng/pg-migrations/internal/store"
	"github.com/socsieng/pg-migrations/internal/util"
)

// ChangelogReader is the part of the store a summary reads history from
type ChangelogReader interface {
	History(ctx context.Context, limit int) ([]*store.HistoryEntry, error)
}

// SummaryReport describes a single migration run
type SummaryReport struct {
	GeneratedAt time.Time
	Duration    time.Duration

	Schema       string
	Dialect      string
	Mode         string // "migrate" or "generate-script"
	Contexts     []string
	EventLogPath string

	ChangesetsDiscovered int
	Applied              []AppliedChangeset
	Error                string

	History []*store.HistoryEntry
}

// AppliedChangeset is a changeset that ran (or would run) in this run
type AppliedChangeset struct {
	Name          string
	ExecutionType changeset.ExecutionType
	Hash          string
	ScriptBytes   int
}

// NewSummaryReport creates a summary for a run over the given changesets
func NewSummaryReport(schema, dialect, mode string, contexts []string, discovered int) *SummaryReport {
	return &SummaryReport{
		GeneratedAt:          time.Now(),
		Schema:               schema,
		Dialect:              dialect,
		Mode:                 mode,
		Contexts:             contexts,
		ChangesetsDiscovered: discovered,
	}
}

// RecordApplied adds changesets to the applied list
func (r *SummaryReport) RecordApplied(changesets []*changeset.Changeset) {
	for _, cs := range changesets {
		r.Applied = append(r.Applied, AppliedChangeset{
			Name:          cs.FormatName(),
			ExecutionType: cs.ExecutionType,
			Hash:          cs.Hash,
			ScriptBytes:   len(cs.Script),
		})
	}
}

// RecordError marks the run as failed
func (r *SummaryReport) RecordError(err error) {
	if err != nil {
		r.Error = err.Error()
	}
}

// LoadHistory fills in the most recent changelog entries
func (r *SummaryReport) LoadHistory(ctx context.Context, db ChangelogReader, limit int) error {
	history, err := db.History(ctx, limit)
	if err != nil {
		return fmt.Errorf("failed to load changelog history: %w", err)
	}
	r.History = history
	return nil
}

// WriteMarkdownReport writes the summary report as Markdown
func WriteMarkdownReport(report *SummaryReport, outputPath string) error {
	dir := filepath.Dir(outputPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	var md strings.Builder

	md.WriteString("# Migration Summary\n\n")
	md.WriteString(fmt.Sprintf("**Generated:** %s\n\n", report.GeneratedAt.Format("2006-01-02 15:04:05")))

	if report.Schema != "" {
		md.WriteString(fmt.Sprintf("**Schema:** `%s`\n\n", report.Schema))
	}
	if report.EventLogPath != "" {
		md.WriteString(fmt.Sprintf("**Event Log:** `%s`\n\n", report.EventLogPath))
	}

	md.WriteString("---\n\n")

	md.WriteString("## Overview\n\n")
	md.WriteString("| Metric | Value |\n")
	md.WriteString("|--------|-------|\n")
	if report.Mode != "" {
		md.WriteString(fmt.Sprintf("| Mode | %s |\n", report.Mode))
	}
	if report.Dialect != "" {
		md.WriteString(fmt.Sprintf("| Database | %s |\n", report.Dialect))
	}
	if len(report.Contexts) > 0 {
		md.WriteString(fmt.Sprintf("| Contexts | %s |\n", strings.Join(report.Contexts, ", ")))
	}
	md.WriteString(fmt.Sprintf("| Changesets Discovered | %d |\n", report.ChangesetsDiscovered))
	md.WriteString(fmt.Sprintf("| Changesets Applied | %d |\n", len(report.Applied)))
	if report.Duration > 0 {
		md.WriteString(fmt.Sprintf("| Duration | %s |\n", report.Duration.Round(time.Millisecond)))
	}
	status := "succeeded"
	if report.Error != "" {
		status = "failed"
	}
	md.WriteString(fmt.Sprintf("| Status | %s |\n", status))
	md.WriteString("\n")

	if report.Error != "" {
		md.WriteString("## Error\n\n")
		md.WriteString("```\n")
		md.WriteString(report.Error)
		md.WriteString("\n```\n\n")
	}

	if len(report.Applied) > 0 {
		md.WriteString("## Applied Changesets\n\n")
		md.WriteString("| # | Changeset | Type | Hash | Script |\n")
		md.WriteString("|---|-----------|------|------|--------|\n")
		for i, applied := range report.Applied {
			md.WriteString(fmt.Sprintf("| %d | `%s` | %s | `%s` | %s |\n",
				i+1,
				truncatePath(applied.Name, 80),
				applied.ExecutionType,
				shortHash(applied.Hash),
				util.FormatBytes(int64(applied.ScriptBytes))))
		}
		md.WriteString("\n")
	}

	if len(report.History) > 0 {
		md.WriteString("## Recent Changelog\n\n")
		md.WriteString("| Executed | Changeset | Type | Hash | Lock |\n")
		md.WriteString("|----------|-----------|------|------|------|\n")
		for _, entry := range report.History {
			md.WriteString(fmt.Sprintf("| %s | `%s` | %s | `%s` | %d |\n",
				util.FormatAge(entry.ExecutedAt),
				truncatePath(entry.FormatName(), 60),
				entry.ExecutionType,
				shortHash(entry.Hash),
				entry.LockID))
		}
		md.WriteString("\n")
	}

	md.WriteString("---\n\n")
	md.WriteString("*Generated by pg-migrations*\n")

	if err := os.WriteFile(outputPath, []byte(md.String()), 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	return nil
}

func shortHash(hash string) string {
	if len(hash) > 10 {
		return hash[:10]
	}
	return hash
}

// truncatePath truncates a file path to a maximum length
func truncatePath(path string, maxLen int) string {
	if len(path) <= maxLen {
		return path
	}
	// Truncate from the middle, keeping start and end
	start := maxLen/2 - 2
	end := len(path) - (maxLen/2 - 2)
	return path[:start] + "..." + path[end:]
}
