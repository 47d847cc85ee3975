package changeset

import (
	"errors"
	"fmt"
)

// Parse failures. They are wrapped in a *ParseError carrying the file and
// changeset name.
var (
	// ErrMissingHeader indicates content that does not start with --migration
	ErrMissingHeader = errors.New("changeset file must start with --migration")

	// ErrEmptyChangeset indicates a changeset whose script is blank
	ErrEmptyChangeset = errors.New("changeset is empty")

	// ErrDuplicateChangeset indicates two changesets with the same name in one file
	ErrDuplicateChangeset = errors.New("duplicate changeset")

	// ErrInvalidExecutionType indicates a type: token other than once, always or change
	ErrInvalidExecutionType = errors.New("invalid execution type")
)

// ParseError wraps a parse failure with its location
type ParseError struct {
	File string
	Name string
	Err  error
}

// Error implements the error interface
func (e *ParseError) Error() string {
	switch {
	case errors.Is(e.Err, ErrMissingHeader):
		return fmt.Sprintf("%s: %v", e.File, e.Err)
	case errors.Is(e.Err, ErrDuplicateChangeset):
		return fmt.Sprintf("duplicate changeset '%s' already defined in %s", e.Name, e.File)
	case e.Name != "":
		return fmt.Sprintf("changeset '%s:%s': %v", e.File, e.Name, e.Err)
	default:
		return fmt.Sprintf("changeset '%s': %v", e.File, e.Err)
	}
}

// Unwrap returns the underlying error
func (e *ParseError) Unwrap() error {
	return e.Err
}
