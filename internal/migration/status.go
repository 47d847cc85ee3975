package migration

import (
	"context"
	"fmt"

	"github.com/socsieng/pg-migrations/internal/changeset"
	"github.com/socsieng/pg-migrations/internal/store"
)

// State summarises where a changeset stands against the changelog
type State string

const (
	StatePending  State = "pending"
	StateUpToDate State = "up to date"
	StateDrift    State = "drift"
	StateExcluded State = "excluded"
)

// ChangesetStatus pairs a changeset with its recorded state
type ChangesetStatus struct {
	Changeset *changeset.Changeset
	Recorded  *store.ChangesetView // nil when never executed
	State     State
	Messages  []string
}

// Status reports the state of every changeset without locking or failing
// on drift. Changesets outside opts.Contexts are excluded.
func (m *Migration) Status(ctx context.Context, repo Repository, opts Options) ([]ChangesetStatus, error) {
	statuses := make([]ChangesetStatus, 0, len(m.Changesets))

	for _, cs := range m.Changesets {
		recorded, err := repo.GetChangeset(ctx, cs.File, cs.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to read changeset %s: %w", cs.FormatName(), err)
		}

		validation := store.Validate(cs, recorded)
		status := ChangesetStatus{Changeset: cs, Recorded: recorded, Messages: validation.Messages}

		switch {
		case !validation.Valid():
			status.State = StateDrift
		case !cs.MatchesContexts(opts.Contexts):
			status.State = StateExcluded
		case validation.ShouldExecute:
			status.State = StatePending
		default:
			status.State = StateUpToDate
		}

		statuses = append(statuses, status)
	}

	return statuses, nil
}

// CountByState tallies statuses per state
func CountByState(statuses []ChangesetStatus) map[State]int {
	counts := make(map[State]int)
	for _, status := range statuses {
		counts[status.State]++
	}
	return counts
}
