package project

import (
	"errors"
	"fmt"
)

// Standard errors returned by the project package.
var (
	// ErrNotLoaded indicates the project content has not been loaded.
	ErrNotLoaded = errors.New("project not loaded")

	// ErrClosed indicates the project was closed.
	ErrClosed = errors.New("project closed")

	// ErrAlreadyWatching indicates Watch is already running.
	ErrAlreadyWatching = errors.New("project already watched")

	// ErrNoProjectDir indicates the options name no project directory.
	ErrNoProjectDir = errors.New("no project directory")
)

// ProjectError represents an error related to a project operation.
type ProjectError struct {
	Op  string // Operation that failed (open, load, save, reload, watch)
	Dir string // Project directory
	Err error  // Underlying error
}

// Error implements the error interface.
func (e *ProjectError) Error() string {
	return fmt.Sprintf("%s project %s: %v", e.Op, e.Dir, e.Err)
}

// Unwrap returns the underlying error.
func (e *ProjectError) Unwrap() error {
	return e.Err
}

// IsNotLoaded returns true if the error indicates the project is not loaded.
func IsNotLoaded(err error) bool {
	return errors.Is(err, ErrNotLoaded)
}
