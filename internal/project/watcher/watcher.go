// Package watcher reports changes to the configuration files of a JPS
// project.
//
// A Watcher emits raw per-path events for a set of watched files and
// directories. A Batcher coalesces these events over a quiet period into
// batches of added, changed and removed paths, the unit consumed by an
// incremental project reload.
package watcher

import (
	"errors"
	"time"

	"github.com/sirupsen/logrus"
)

// Common errors returned by watcher operations.
var (
	ErrWatcherClosed   = errors.New("watcher is closed")
	ErrAlreadyWatching = errors.New("path is already being watched")
	ErrNotWatching     = errors.New("path is not being watched")
)

// Op represents the type of file system operation.
type Op uint32

const (
	// OpCreate indicates a file or directory was created.
	OpCreate Op = 1 << iota
	// OpWrite indicates a file was written to.
	OpWrite
	// OpRemove indicates a file or directory was removed.
	OpRemove
	// OpRename indicates a file or directory was renamed away.
	OpRename
)

// String returns a human-readable representation of the operation.
func (op Op) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpWrite:
		return "WRITE"
	case OpRemove:
		return "REMOVE"
	case OpRename:
		return "RENAME"
	default:
		return "UNKNOWN"
	}
}

// Has returns true if the operation includes the given op.
func (op Op) Has(o Op) bool {
	return op&o == o
}

// Event represents a file system change event.
type Event struct {
	// Path is the absolute path of the affected file or directory.
	Path string

	// Op is the operation that occurred.
	Op Op

	// IsDir reports whether the path was a directory when the event was
	// observed. Unknown for removals.
	IsDir bool

	// Timestamp is when the event occurred.
	Timestamp time.Time
}

// Watcher monitors a set of files and directories.
type Watcher interface {
	// Watch starts watching a file or a directory. The path does not need
	// to exist yet; its creation is reported.
	Watch(path string) error

	// Unwatch stops watching a path.
	Unwatch(path string) error

	// Events returns the channel of change events. It is closed by Close.
	Events() <-chan Event

	// Errors returns the channel of watcher errors. It is closed by Close.
	Errors() <-chan error

	// Close stops the watcher and releases resources.
	Close() error

	// WatchedPaths returns the watched paths, sorted.
	WatchedPaths() []string
}

// Config holds watcher configuration options.
type Config struct {
	// Debounce is the quiet period a Batcher waits for before emitting a
	// batch. Default: 200ms
	Debounce time.Duration

	// BufferSize is the size of the event and error channels.
	// Default: 100
	BufferSize int

	// IgnorePatterns are glob patterns of paths to ignore, in addition to
	// DefaultIgnorePatterns.
	IgnorePatterns []string

	Logger *logrus.Logger
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Debounce:   200 * time.Millisecond,
		BufferSize: 100,
	}
}

// Option configures a watcher.
type Option func(*Config)

// WithDebounce sets the batching quiet period.
func WithDebounce(d time.Duration) Option {
	return func(c *Config) {
		c.Debounce = d
	}
}

// WithBufferSize sets the channel buffer size.
func WithBufferSize(size int) Option {
	return func(c *Config) {
		c.BufferSize = size
	}
}

// WithIgnorePatterns adds ignore patterns.
func WithIgnorePatterns(patterns ...string) Option {
	return func(c *Config) {
		c.IgnorePatterns = append(c.IgnorePatterns, patterns...)
	}
}

// WithLogger sets the logger.
func WithLogger(log *logrus.Logger) Option {
	return func(c *Config) {
		c.Logger = log
	}
}

func newConfig(opts []Option) Config {
	config := DefaultConfig()
	for _, opt := range opts {
		opt(&config)
	}
	if config.BufferSize <= 0 {
		config.BufferSize = 100
	}
	if config.Debounce <= 0 {
		config.Debounce = 200 * time.Millisecond
	}
	if config.Logger == nil {
		config.Logger = logrus.New()
	}
	return config
}
