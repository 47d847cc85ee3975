// Package migration discovers changeset files, validates them against the
// recorded changelog and applies the ones that must run.
package migration

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/socsieng/pg-migrations/internal/changeset"
	"github.com/socsieng/pg-migrations/internal/report"
	"github.com/socsieng/pg-migrations/internal/store"
	"github.com/socsieng/pg-migrations/internal/util"
)

// Repository is the changelog store a migration runs against
type Repository interface {
	AcquireLock(ctx context.Context) (bool, error)
	ReleaseLock(ctx context.Context) error
	GetChangeset(ctx context.Context, file, name string) (*store.ChangesetView, error)
	ValidateChangeset(ctx context.Context, cs *changeset.Changeset) (changeset.Validation, error)
	ExecuteChangeset(ctx context.Context, cs *changeset.Changeset) error
}

// Options controls which changesets run and how progress is reported
type Options struct {
	Contexts     []string            // empty runs every context
	Events       *report.EventLogger // nil disables the audit log
	ShowProgress bool                // progress bar on a terminal
}

// Migration is the ordered list of changesets loaded from a schema
type Migration struct {
	BasePath   string
	Files      []string
	Changesets []*changeset.Changeset
}

// Load reads changesets from a directory or a manifest file. A directory
// uses the default manifest; a manifest resolves its patterns relative to
// its own directory.
func Load(path string) (*Migration, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema %s: %w", path, err)
	}

	manifest := DefaultManifest()
	basePath := path
	if !info.IsDir() {
		manifest, err = ReadManifest(path)
		if err != nil {
			return nil, err
		}
		basePath = filepath.Dir(path)
	}

	files, err := DiscoverFiles(basePath, manifest.Files)
	if err != nil {
		return nil, err
	}

	m := &Migration{BasePath: basePath, Files: files}
	for _, file := range files {
		changesets, err := changeset.ParseFile(file, basePath)
		if err != nil {
			return nil, err
		}
		m.Changesets = append(m.Changesets, changesets...)
	}

	util.DebugLog("Loaded %d changesets from %d files", len(m.Changesets), len(files))
	return m, nil
}

// FilterChangesets validates every changeset before selecting any. Any
// validation message aborts with a *ValidationError. Otherwise the result
// holds, in order, the changesets that must run and match opts.Contexts.
func (m *Migration) FilterChangesets(ctx context.Context, repo Repository, opts Options) ([]*changeset.Changeset, error) {
	validations := make([]changeset.Validation, len(m.Changesets))
	var failures []ValidationFailure

	for i, cs := range m.Changesets {
		validation, err := repo.ValidateChangeset(ctx, cs)
		if err != nil {
			return nil, fmt.Errorf("failed to validate changeset %s: %w", cs.FormatName(), err)
		}
		opts.Events.LogValidation(cs, validation)

		validations[i] = validation
		if !validation.Valid() {
			failures = append(failures, ValidationFailure{Changeset: cs.FormatName(), Messages: validation.Messages})
		}
	}

	if len(failures) > 0 {
		return nil, &ValidationError{Failures: failures}
	}

	var selected []*changeset.Changeset
	for i, cs := range m.Changesets {
		switch {
		case !validations[i].ShouldExecute:
			opts.Events.LogSkip(cs, "already applied")
		case !cs.MatchesContexts(opts.Contexts):
			opts.Events.LogSkip(cs, fmt.Sprintf("context %q not requested", cs.Context))
		default:
			selected = append(selected, cs)
		}
	}

	return selected, nil
}

// Execute applies the filtered changesets in order while holding the lock.
// The lock is released on every return path. Changesets applied before a
// failure stay applied and are returned along with the error.
func (m *Migration) Execute(ctx context.Context, repo Repository, opts Options) (applied []*changeset.Changeset, err error) {
	acquired, err := repo.AcquireLock(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}
	opts.Events.LogLock(acquired)
	if !acquired {
		return nil, ErrLockUnavailable
	}

	defer func() {
		releaseErr := repo.ReleaseLock(context.WithoutCancel(ctx))
		opts.Events.LogUnlock(releaseErr)
		if releaseErr == nil {
			return
		}
		if err == nil {
			err = fmt.Errorf("failed to release lock: %w", releaseErr)
			return
		}
		util.ErrorLog("Failed to release lock: %v", releaseErr)
	}()

	pending, err := m.FilterChangesets(ctx, repo, opts)
	if err != nil {
		return nil, err
	}

	util.InfoLog("%d %s to apply", len(pending), util.Plural(len(pending), "changeset", "changesets"))

	bar := newProgressBar(len(pending), opts.ShowProgress)
	for _, cs := range pending {
		util.DebugLog("Applying %s (%s)", cs.FormatName(), cs.ExecutionType)

		started := time.Now()
		err := repo.ExecuteChangeset(ctx, cs)
		opts.Events.LogExecute(cs, time.Since(started), err)
		if err != nil {
			if bar != nil {
				bar.Exit()
			}
			return applied, err
		}

		applied = append(applied, cs)
		if bar != nil {
			bar.Add(1)
		}
	}
	if bar != nil {
		bar.Finish()
	}

	return applied, nil
}

// GenerateScript renders the changesets that would run as one SQL script.
// It neither locks nor writes.
func (m *Migration) GenerateScript(ctx context.Context, repo Repository, opts Options) (string, error) {
	pending, err := m.FilterChangesets(ctx, repo, opts)
	if err != nil {
		return "", err
	}
	return RenderScript(pending), nil
}

// RenderScript joins changesets into one script, each block headed by a
// comment naming its changeset
func RenderScript(changesets []*changeset.Changeset) string {
	blocks := make([]string, 0, len(changesets))
	for _, cs := range changesets {
		blocks = append(blocks, fmt.Sprintf("-- %s\n%s", cs.FormatName(), cs.Script))
	}
	return strings.Join(blocks, "\n\n")
}

// newProgressBar returns nil unless progress was requested on a terminal
func newProgressBar(total int, show bool) *progressbar.ProgressBar {
	if !show || total == 0 || util.IsQuiet() || !util.IsTerminal(os.Stderr.Fd()) {
		return nil
	}

	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription("Applying"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetItsString("changesets"),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetRenderBlankState(true),
	)
}
