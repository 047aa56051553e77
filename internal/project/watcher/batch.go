package watcher

import (
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Batch is a set of coalesced changes. A path appears in at most one list.
type Batch struct {
	Added   []string
	Changed []string
	Removed []string
}

// IsEmpty reports whether the batch holds no changes.
func (b Batch) IsEmpty() bool {
	return len(b.Added) == 0 && len(b.Changed) == 0 && len(b.Removed) == 0
}

type change int

const (
	changeNone change = iota
	changeAdded
	changeChanged
	changeRemoved
)

// merge folds op into the change already pending for a path. A path that
// was added and then removed within a batch disappears from it; a path
// removed and then created again is reported as changed.
func merge(prev change, op Op) change {
	c := prev
	if op.Has(OpCreate) {
		switch c {
		case changeNone:
			c = changeAdded
		case changeRemoved:
			c = changeChanged
		}
	}
	if op.Has(OpWrite) && c == changeNone {
		c = changeChanged
	}
	if op.Has(OpRemove) || op.Has(OpRename) {
		switch c {
		case changeAdded:
			c = changeNone
		default:
			c = changeRemoved
		}
	}
	return c
}

// Batcher groups the events of a Watcher into batches. A batch is emitted
// once no event has arrived for the configured quiet period.
type Batcher struct {
	inner Watcher
	delay time.Duration
	log   *logrus.Logger

	mu      sync.Mutex
	pending map[string]change
	closed  bool

	batches  chan Batch
	errors   chan error
	flushCh  chan chan struct{}
	closeCh  chan struct{}
	closedWg sync.WaitGroup
}

// NewBatcher creates a batcher reading from inner. The batcher owns inner
// and closes it on Close.
func NewBatcher(inner Watcher, opts ...Option) *Batcher {
	config := newConfig(opts)
	b := &Batcher{
		inner:   inner,
		delay:   config.Debounce,
		log:     config.Logger,
		pending: make(map[string]change),
		batches: make(chan Batch, config.BufferSize),
		errors:  make(chan error, config.BufferSize),
		flushCh: make(chan chan struct{}),
		closeCh: make(chan struct{}),
	}

	b.closedWg.Add(1)
	go b.processLoop()

	return b
}

// Batches returns the batch channel. It is closed by Close.
func (b *Batcher) Batches() <-chan Batch {
	return b.batches
}

// Errors returns the error channel. It is closed by Close.
func (b *Batcher) Errors() <-chan error {
	return b.errors
}

// Watch starts watching a path.
func (b *Batcher) Watch(path string) error {
	return b.inner.Watch(path)
}

// Unwatch stops watching a path.
func (b *Batcher) Unwatch(path string) error {
	return b.inner.Unwatch(path)
}

// Close stops the batcher and the inner watcher. Pending changes are
// discarded.
func (b *Batcher) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	close(b.closeCh)
	b.mu.Unlock()

	b.closedWg.Wait()

	close(b.batches)
	close(b.errors)

	return b.inner.Close()
}

// Flush emits the pending changes immediately.
func (b *Batcher) Flush() {
	reply := make(chan struct{})
	select {
	case b.flushCh <- reply:
	case <-b.closeCh:
		return
	}
	select {
	case <-reply:
	case <-b.closeCh:
	}
}

// PendingCount returns the number of paths waiting for the next batch.
func (b *Batcher) PendingCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

func (b *Batcher) processLoop() {
	defer b.closedWg.Done()

	timer := time.NewTimer(b.delay)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-b.closeCh:
			return

		case event, ok := <-b.inner.Events():
			if !ok {
				b.emit()
				return
			}
			b.add(event)
			resetTimer(timer, b.delay)

		case err, ok := <-b.inner.Errors():
			if !ok {
				b.emit()
				return
			}
			b.forwardError(err)

		case <-timer.C:
			b.emit()

		case reply := <-b.flushCh:
			resetTimer(timer, 0)
			b.emit()
			close(reply)
		}
	}
}

// resetTimer restarts t with d, or stops it when d is zero.
func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	if d > 0 {
		t.Reset(d)
	}
}

func (b *Batcher) add(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	c := merge(b.pending[event.Path], event.Op)
	if c == changeNone {
		delete(b.pending, event.Path)
		return
	}
	b.pending[event.Path] = c
}

// emit sends the pending changes as one batch.
func (b *Batcher) emit() {
	b.mu.Lock()
	var batch Batch
	for path, c := range b.pending {
		switch c {
		case changeAdded:
			batch.Added = append(batch.Added, path)
		case changeChanged:
			batch.Changed = append(batch.Changed, path)
		case changeRemoved:
			batch.Removed = append(batch.Removed, path)
		}
	}
	b.pending = make(map[string]change)
	b.mu.Unlock()

	if batch.IsEmpty() {
		return
	}
	sort.Strings(batch.Added)
	sort.Strings(batch.Changed)
	sort.Strings(batch.Removed)

	b.log.WithFields(logrus.Fields{
		"added":   len(batch.Added),
		"changed": len(batch.Changed),
		"removed": len(batch.Removed),
	}).Debug("file change batch")

	select {
	case b.batches <- batch:
	case <-b.closeCh:
	}
}

func (b *Batcher) forwardError(err error) {
	select {
	case b.errors <- err:
	case <-b.closeCh:
	default:
		b.log.WithError(err).Warn("error channel full, dropping error")
	}
}
