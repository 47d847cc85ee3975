package util

import "errors"

// Sentinel errors shared by the command line and the internal packages
var (
	// ErrNotFound indicates a required resource was not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidConfig indicates invalid configuration
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrMissingArgument indicates a required argument or flag was not supplied
	ErrMissingArgument = errors.New("missing required argument")

	// ErrUnsupportedDriver indicates a connection string for a database we cannot talk to
	ErrUnsupportedDriver = errors.New("unsupported database driver")
)
