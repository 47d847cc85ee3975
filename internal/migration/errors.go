package migration

import (
	"errors"
	"strings"
)

// ErrLockUnavailable is returned when another session holds the migration lock
var ErrLockUnavailable = errors.New("could not acquire database lock")

// ValidationFailure lists the validation messages of one changeset
type ValidationFailure struct {
	Changeset string // formatted file:name
	Messages  []string
}

// ValidationError aggregates every failed validation of a run
type ValidationError struct {
	Failures []ValidationFailure
}

// Error renders each failure as the changeset name followed by its
// indented messages
func (e *ValidationError) Error() string {
	blocks := make([]string, 0, len(e.Failures))
	for _, failure := range e.Failures {
		var b strings.Builder
		b.WriteString(failure.Changeset)
		for _, msg := range failure.Messages {
			b.WriteString("\n  ")
			b.WriteString(msg)
		}
		blocks = append(blocks, b.String())
	}
	return strings.Join(blocks, "\n")
}
