package jps

import (
	"errors"
	"fmt"

	"github.com/dshills/jpsmodel/internal/workspace/fileurl"
)

// Standard errors returned by the jps package.
var (
	// ErrMalformedXML indicates a configuration file could not be parsed.
	ErrMalformedXML = errors.New("malformed xml")

	// ErrMissingAttribute indicates a required attribute is absent.
	ErrMissingAttribute = errors.New("missing attribute")

	// ErrUnknownDirectory indicates no directory factory claims a source.
	ErrUnknownDirectory = errors.New("no serializer factory for directory")

	// ErrNoModuleList indicates a module cannot be routed to a module list.
	ErrNoModuleList = errors.New("no module list serializer")
)

// FileError represents an error associated with a configuration file.
type FileError struct {
	Op  string      // Operation that failed (read, parse, write)
	URL fileurl.URL // File URL
	Err error       // Underlying error
}

// Error implements the error interface.
func (e *FileError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

// Unwrap returns the underlying error.
func (e *FileError) Unwrap() error {
	return e.Err
}

// NewFileError creates a new FileError.
func NewFileError(op string, url fileurl.URL, err error) *FileError {
	return &FileError{Op: op, URL: url, Err: err}
}

// IsMalformed returns true if err was caused by unparsable XML.
func IsMalformed(err error) bool {
	return errors.Is(err, ErrMalformedXML)
}

// errorCollector keeps the errors of independent load sections so one bad
// section does not prevent the rest of a file from loading.
type errorCollector struct {
	errs []error
}

func (c *errorCollector) add(err error) {
	if err != nil {
		c.errs = append(c.errs, err)
	}
}

// first returns the first collected error, or nil.
func (c *errorCollector) first() error {
	if len(c.errs) == 0 {
		return nil
	}
	return c.errs[0]
}
