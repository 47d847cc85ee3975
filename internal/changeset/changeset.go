// Package changeset defines changesets, the unit of work applied by a
// migration, and the parser for changeset files.
//
// A changeset file starts with the marker line "--migration" and contains
// any number of blocks introduced by a "--changeset" header:
//
//	--migration
//	--changeset create users type:once context:dev,test
//	create table users (id serial primary key);
//
// The header holds the changeset name followed by optional type: and
// context: tokens. The block body up to the next header is the script.
package changeset

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"slices"

	"github.com/socsieng/pg-migrations/internal/util"
)

// ExecutionType controls when a changeset is re-applied
type ExecutionType string

const (
	// Once changesets run a single time; later content changes are reported as drift
	Once ExecutionType = "once"
	// Always changesets run on every migration
	Always ExecutionType = "always"
	// Change changesets run again whenever their content hash changes
	Change ExecutionType = "change"
)

// Valid reports whether t is one of the known execution types
func (t ExecutionType) Valid() bool {
	switch t {
	case Once, Always, Change:
		return true
	}
	return false
}

// Changeset is a named block of SQL from a changeset file
type Changeset struct {
	File          string
	Name          string
	ExecutionType ExecutionType
	Context       string // comma separated labels, empty when absent
	Script        string
	Hash          string
}

// New builds a changeset and computes the hash of its script
func New(file, name string, executionType ExecutionType, context, script string) *Changeset {
	if executionType == "" {
		executionType = Once
	}
	return &Changeset{
		File:          file,
		Name:          name,
		ExecutionType: executionType,
		Context:       context,
		Script:        script,
		Hash:          ComputeHash(script),
	}
}

// ComputeHash returns the hex SHA-1 digest of a script. It is used only to
// detect content changes.
func ComputeHash(script string) string {
	sum := sha1.Sum([]byte(script))
	return hex.EncodeToString(sum[:])
}

// FormatName returns file:name, or just the file for unnamed changesets
func (c *Changeset) FormatName() string {
	if c.Name == "" {
		return c.File
	}
	return fmt.Sprintf("%s:%s", c.File, c.Name)
}

// Contexts returns the context labels declared by the changeset
func (c *Changeset) Contexts() []string {
	return util.SplitList(c.Context)
}

// MatchesContexts reports whether the changeset should run for the requested
// contexts. Changesets without a context always match, as does an empty request.
func (c *Changeset) MatchesContexts(requested []string) bool {
	if len(requested) == 0 {
		return true
	}
	declared := c.Contexts()
	if len(declared) == 0 {
		return true
	}
	for _, label := range declared {
		if slices.Contains(requested, label) {
			return true
		}
	}
	return false
}

// Validation is the outcome of checking a changeset against recorded history
type Validation struct {
	ShouldExecute bool
	Messages      []string
}

// Valid reports whether validation produced no messages
func (v Validation) Valid() bool {
	return len(v.Messages) == 0
}
