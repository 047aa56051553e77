package watcher

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// FSNotifyWatcher implements Watcher using fsnotify.
//
// fsnotify watches directories, so a watched file is observed through its
// parent and a path that does not exist yet through its nearest existing
// ancestor. The set of observed directories follows creations and
// removals.
type FSNotifyWatcher struct {
	mu sync.Mutex

	watcher *fsnotify.Watcher
	config  Config
	log     *logrus.Logger
	ignore  *IgnorePatterns

	// targets are the paths passed to Watch.
	targets map[string]bool
	// dirs are the directories registered with fsnotify.
	dirs map[string]bool

	events chan Event
	errors chan error

	closed   bool
	closeCh  chan struct{}
	closedWg sync.WaitGroup
}

// NewFSNotifyWatcher creates a new fsnotify-based watcher.
func NewFSNotifyWatcher(opts ...Option) (*FSNotifyWatcher, error) {
	config := newConfig(opts)

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &FSNotifyWatcher{
		watcher: fsw,
		config:  config,
		log:     config.Logger,
		ignore:  NewIgnorePatterns(append(append([]string(nil), DefaultIgnorePatterns...), config.IgnorePatterns...)...),
		targets: make(map[string]bool),
		dirs:    make(map[string]bool),
		events:  make(chan Event, config.BufferSize),
		errors:  make(chan error, config.BufferSize),
		closeCh: make(chan struct{}),
	}

	w.closedWg.Add(1)
	go w.processLoop()

	return w, nil
}

// Watch starts watching a path.
func (w *FSNotifyWatcher) Watch(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrWatcherClosed
	}
	if w.targets[absPath] {
		return ErrAlreadyWatching
	}
	w.targets[absPath] = true
	return w.syncLocked()
}

// Unwatch stops watching a path.
func (w *FSNotifyWatcher) Unwatch(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrWatcherClosed
	}
	if !w.targets[absPath] {
		return ErrNotWatching
	}
	delete(w.targets, absPath)
	return w.syncLocked()
}

// Events returns the event channel.
func (w *FSNotifyWatcher) Events() <-chan Event {
	return w.events
}

// Errors returns the error channel.
func (w *FSNotifyWatcher) Errors() <-chan error {
	return w.errors
}

// Close stops the watcher.
func (w *FSNotifyWatcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.closeCh)
	w.mu.Unlock()

	w.closedWg.Wait()

	close(w.events)
	close(w.errors)

	return w.watcher.Close()
}

// WatchedPaths returns all watched paths.
func (w *FSNotifyWatcher) WatchedPaths() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	paths := make([]string, 0, len(w.targets))
	for p := range w.targets {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// observedDir returns the directory through which target is observed.
func observedDir(target string) string {
	if info, err := os.Stat(target); err == nil && info.IsDir() {
		return target
	}
	dir := filepath.Dir(target)
	for {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return dir
		}
		dir = parent
	}
}

// syncLocked registers the directories the targets need and drops the
// ones no target needs any more. Callers hold mu.
func (w *FSNotifyWatcher) syncLocked() error {
	want := make(map[string]bool, len(w.targets))
	for t := range w.targets {
		want[observedDir(t)] = true
	}

	var firstErr error
	for dir := range want {
		if w.dirs[dir] {
			continue
		}
		if err := w.watcher.Add(dir); err != nil {
			w.log.WithFields(logrus.Fields{"dir": dir}).WithError(err).Warn("cannot watch directory")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		w.dirs[dir] = true
	}
	for dir := range w.dirs {
		if want[dir] {
			continue
		}
		// The directory may be gone already.
		_ = w.watcher.Remove(dir)
		delete(w.dirs, dir)
	}
	return firstErr
}

func isUnder(path, dir string) bool {
	return strings.HasPrefix(path, dir+string(filepath.Separator))
}

// relevantLocked reports whether an event on path concerns a target: the
// target itself, a file inside a target directory or a directory on the
// way to a target.
func (w *FSNotifyWatcher) relevantLocked(path string) bool {
	for t := range w.targets {
		if path == t || isUnder(path, t) || isUnder(t, path) {
			return true
		}
	}
	return false
}

// processLoop handles incoming fsnotify events.
func (w *FSNotifyWatcher) processLoop() {
	defer w.closedWg.Done()

	for {
		select {
		case <-w.closeCh:
			return

		case fsEvent, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleFSEvent(fsEvent)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.sendError(err)
		}
	}
}

// handleFSEvent converts and dispatches an fsnotify event.
func (w *FSNotifyWatcher) handleFSEvent(fsEvent fsnotify.Event) {
	op := convertOp(fsEvent.Op)
	if op == 0 {
		return
	}
	if w.ignore.Match(fsEvent.Name) {
		return
	}

	w.mu.Lock()
	if w.closed || !w.relevantLocked(fsEvent.Name) {
		w.mu.Unlock()
		return
	}
	event := Event{Path: fsEvent.Name, Op: op, Timestamp: time.Now()}
	if op.Has(OpCreate) {
		if info, err := os.Stat(fsEvent.Name); err == nil {
			event.IsDir = info.IsDir()
		}
	}
	if op.Has(OpCreate) || op.Has(OpRemove) || op.Has(OpRename) {
		if err := w.syncLocked(); err != nil {
			w.sendError(err)
		}
	}
	w.mu.Unlock()

	w.sendEvent(event)
}

// convertOp converts fsnotify.Op to watcher.Op. Permission changes are
// dropped.
func convertOp(fsOp fsnotify.Op) Op {
	var op Op
	if fsOp.Has(fsnotify.Create) {
		op |= OpCreate
	}
	if fsOp.Has(fsnotify.Write) {
		op |= OpWrite
	}
	if fsOp.Has(fsnotify.Remove) {
		op |= OpRemove
	}
	if fsOp.Has(fsnotify.Rename) {
		op |= OpRename
	}
	return op
}

// sendEvent sends an event to the output channel.
func (w *FSNotifyWatcher) sendEvent(event Event) {
	select {
	case w.events <- event:
	case <-w.closeCh:
	default:
		w.log.WithFields(logrus.Fields{"path": event.Path}).Warn("event channel full, dropping event")
	}
}

// sendError sends an error to the output channel.
func (w *FSNotifyWatcher) sendError(err error) {
	select {
	case w.errors <- err:
	default:
		w.log.WithError(err).Warn("error channel full, dropping error")
	}
}

// Ensure FSNotifyWatcher implements Watcher.
var _ Watcher = (*FSNotifyWatcher)(nil)
