package store

import (
	"context"
	"fmt"

	"github.com/socsieng/pg-migrations/internal/changeset"
)

// Validate decides whether cs must run given its recorded state. recorded
// is nil for a changeset that has never run.
func Validate(cs *changeset.Changeset, recorded *ChangesetView) changeset.Validation {
	if recorded == nil {
		return changeset.Validation{ShouldExecute: true}
	}

	if recorded.ExecutionType != cs.ExecutionType {
		return changeset.Validation{
			Messages: []string{fmt.Sprintf("execution type changed from %q to %q", recorded.ExecutionType, cs.ExecutionType)},
		}
	}

	switch cs.ExecutionType {
	case changeset.Always:
		return changeset.Validation{ShouldExecute: true}
	case changeset.Change:
		return changeset.Validation{ShouldExecute: recorded.Hash != cs.Hash}
	default:
		if recorded.Hash != cs.Hash {
			return changeset.Validation{
				Messages: []string{fmt.Sprintf("content of type:once changeset has changed (recorded %s, current %s)", recorded.Hash, cs.Hash)},
			}
		}
		return changeset.Validation{}
	}
}

// ValidateChangeset looks up the recorded state of cs and validates it
func (s *Store) ValidateChangeset(ctx context.Context, cs *changeset.Changeset) (changeset.Validation, error) {
	recorded, err := s.GetChangeset(ctx, cs.File, cs.Name)
	if err != nil {
		return changeset.Validation{}, err
	}
	return Validate(cs, recorded), nil
}
