package report

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/socsieng/pg-migrations/internal/changeset"
	"github.com/socsieng/pg-migrations/internal/store"
	"github.com/socsieng/pg-migrations/internal/util"
)

type fakeChangelog struct {
	entries []*store.HistoryEntry
	err     error
	limit   int
}

func (f *fakeChangelog) History(ctx context.Context, limit int) ([]*store.HistoryEntry, error) {
	f.limit = limit
	return f.entries, f.err
}

func TestSummaryReport_Record(t *testing.T) {
	report := NewSummaryReport("db/schema.yml", "sqlite", "migrate", []string{"dev"}, 3)

	first := changeset.New("tables.sql", "users", changeset.Once, "", "create table users(id int);")
	second := changeset.New("views.sql", "", changeset.Change, "", "create view v as select 1;")
	report.RecordApplied([]*changeset.Changeset{first, second})
	report.RecordError(nil)

	if report.GeneratedAt.IsZero() {
		t.Error("Expected GeneratedAt to be set")
	}
	if len(report.Applied) != 2 {
		t.Fatalf("Expected 2 applied changesets, got %d", len(report.Applied))
	}
	if report.Applied[0].Name != "tables.sql:users" || report.Applied[1].Name != "views.sql" {
		t.Errorf("Unexpected applied names %+v", report.Applied)
	}
	if report.Applied[0].ScriptBytes != len(first.Script) {
		t.Errorf("Expected script size %d, got %d", len(first.Script), report.Applied[0].ScriptBytes)
	}
	if report.Error != "" {
		t.Errorf("Expected no error, got %q", report.Error)
	}

	report.RecordError(errors.New("boom"))
	if report.Error != "boom" {
		t.Errorf("Expected error boom, got %q", report.Error)
	}
}

func TestSummaryReport_LoadHistory(t *testing.T) {
	changelog := &fakeChangelog{entries: []*store.HistoryEntry{
		{ID: 2, LockID: 1, File: "tables.sql", Name: "users", ExecutionType: changeset.Once, Hash: "abc"},
	}}

	report := NewSummaryReport("db", "sqlite", "migrate", nil, 1)
	if err := report.LoadHistory(context.Background(), changelog, 5); err != nil {
		t.Fatalf("LoadHistory failed: %v", err)
	}
	if changelog.limit != 5 {
		t.Errorf("Expected limit 5, got %d", changelog.limit)
	}
	if len(report.History) != 1 {
		t.Errorf("Expected 1 history entry, got %d", len(report.History))
	}

	changelog.err = errors.New("no such table")
	if err := report.LoadHistory(context.Background(), changelog, 5); err == nil {
		t.Error("Expected history error to propagate")
	}
}

func TestWriteMarkdownReport(t *testing.T) {
	tmpDir := t.TempDir()
	outputPath := filepath.Join(tmpDir, "reports", "summary.md")

	report := &SummaryReport{
		GeneratedAt:          time.Now(),
		Duration:             1500 * time.Millisecond,
		Schema:               "db/schema.yml",
		Dialect:              "postgres",
		Mode:                 "migrate",
		Contexts:             []string{"dev", "test"},
		EventLogPath:         "/test/events.jsonl",
		ChangesetsDiscovered: 12,
		Applied: []AppliedChangeset{
			{Name: "migrations/v1.0/tables.sql:users", ExecutionType: changeset.Once, Hash: "5c2371b09ea6c42f8fd00e9f298ad4daa5e0e24f", ScriptBytes: 1500},
		},
		History: []*store.HistoryEntry{
			{ID: 1, LockID: 7, File: "migrations/v1.0/tables.sql", Name: "users", ExecutionType: changeset.Once,
				Hash: "5c2371b09ea6c42f8fd00e9f298ad4daa5e0e24f", ExecutedAt: time.Now().Add(-2 * time.Hour)},
		},
	}

	if err := WriteMarkdownReport(report, outputPath); err != nil {
		t.Fatalf("WriteMarkdownReport failed: %v", err)
	}

	content, err := os.ReadFile(outputPath)
	if err != nil {
		t.Fatalf("Failed to read report file: %v", err)
	}
	contentStr := string(content)

	expected := []string{
		"# Migration Summary",
		"## Overview",
		"`db/schema.yml`",
		"/test/events.jsonl",
		"| Database | postgres |",
		"| Contexts | dev, test |",
		"| Changesets Discovered | 12 |",
		"| Changesets Applied | 1 |",
		"| Status | succeeded |",
		"## Applied Changesets",
		"`migrations/v1.0/tables.sql:users`",
		"`5c2371b09e`",
		"1.5 kB",
		"## Recent Changelog",
		"hours ago",
	}
	for _, want := range expected {
		if !strings.Contains(contentStr, want) {
			t.Errorf("Report missing %q", want)
		}
	}
	if strings.Contains(contentStr, "## Error") {
		t.Error("Successful run should not have an Error section")
	}
}

func TestWriteMarkdownReport_Failure(t *testing.T) {
	outputPath := filepath.Join(t.TempDir(), "summary.md")

	report := NewSummaryReport("db", "sqlite", "migrate", nil, 2)
	report.RecordError(errors.New("Could not acquire database lock"))

	if err := WriteMarkdownReport(report, outputPath); err != nil {
		t.Fatalf("WriteMarkdownReport failed: %v", err)
	}

	content, _ := os.ReadFile(outputPath)
	contentStr := string(content)
	if !strings.Contains(contentStr, "| Status | failed |") {
		t.Error("Report missing failed status")
	}
	if !strings.Contains(contentStr, "Could not acquire database lock") {
		t.Error("Report missing error message")
	}
	if strings.Contains(contentStr, "## Applied Changesets") {
		t.Error("Report should not list applied changesets")
	}
}

func TestWriteMarkdownReport_FromStore(t *testing.T) {
	ctx := context.Background()
	db, err := store.Open(ctx, store.Options{Connection: filepath.Join(t.TempDir(), "target.db")})
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	cs := changeset.New("tables.sql", "users", changeset.Once, "", "create table users(id int);")
	if _, err := db.AcquireLock(ctx); err != nil {
		t.Fatalf("Failed to acquire lock: %v", err)
	}
	if err := db.ExecuteChangeset(ctx, cs); err != nil {
		t.Fatalf("Failed to execute changeset: %v", err)
	}
	db.ReleaseLock(ctx)

	report := NewSummaryReport("db", string(db.Dialect()), "migrate", nil, 1)
	report.RecordApplied([]*changeset.Changeset{cs})
	if err := report.LoadHistory(ctx, db, 10); err != nil {
		t.Fatalf("LoadHistory failed: %v", err)
	}

	outputPath := filepath.Join(t.TempDir(), "summary.md")
	if err := WriteMarkdownReport(report, outputPath); err != nil {
		t.Fatalf("WriteMarkdownReport failed: %v", err)
	}

	content, _ := os.ReadFile(outputPath)
	if !strings.Contains(string(content), "`tables.sql:users`") {
		t.Error("Report missing changelog entry from store")
	}
	if !strings.Contains(string(content), util.FormatBytes(int64(len(cs.Script)))) {
		t.Error("Report missing script size")
	}
}

func TestTruncatePath(t *testing.T) {
	testCases := []struct {
		name   string
		path   string
		maxLen int
	}{
		{"Short path - no truncation", "migrations/tables.sql", 50},
		{"Long path - truncate middle", "migrations/v1.0/tables/20170115T210000-my_table.sql:create", 30},
		{"Exactly at limit", "migrations/a.sql", 16},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result := truncatePath(tc.path, tc.maxLen)

			if len(result) > tc.maxLen {
				t.Errorf("Result length %d exceeds maxLen %d", len(result), tc.maxLen)
			}
			if len(tc.path) > tc.maxLen && !strings.Contains(result, "...") {
				t.Error("Expected truncated path to contain '...'")
			}
			if len(tc.path) <= tc.maxLen && result != tc.path {
				t.Errorf("Expected %q unchanged, got %q", tc.path, result)
			}
		})
	}
}

func TestShortHash(t *testing.T) {
	if got := shortHash("5c2371b09ea6c42f8fd00e9f298ad4daa5e0e24f"); got != "5c2371b09e" {
		t.Errorf("shortHash() = %q", got)
	}
	if got := shortHash("abc"); got != "abc" {
		t.Errorf("shortHash(abc) = %q", got)
	}
}
