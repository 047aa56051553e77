package project

import (
	"context"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/dshills/jpsmodel/internal/jps"
	"github.com/dshills/jpsmodel/internal/project/watcher"
	"github.com/dshills/jpsmodel/internal/workspace/fileurl"
)

// Watch reloads configuration files as they change on disk until ctx is
// cancelled. It requires a project on the OS file system.
func (p *Project) Watch(ctx context.Context) error {
	w, err := watcher.NewFSNotifyWatcher(watcher.WithLogger(p.log))
	if err != nil {
		return p.wrap("watch", err)
	}
	return p.WatchWith(ctx, w)
}

// WatchWith is Watch with a caller-provided watcher. The project closes w.
func (p *Project) WatchWith(ctx context.Context, w watcher.Watcher) error {
	p.mu.Lock()
	switch {
	case p.closed:
		p.mu.Unlock()
		w.Close()
		return ErrClosed
	case !p.loaded:
		p.mu.Unlock()
		w.Close()
		return ErrNotLoaded
	case p.watching:
		p.mu.Unlock()
		w.Close()
		return ErrAlreadyWatching
	}
	p.watching = true
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.watching = false
		p.mu.Unlock()
	}()

	b := watcher.NewBatcher(w, watcher.WithDebounce(p.opts.Debounce), watcher.WithLogger(p.log))
	defer b.Close()

	watched := make(map[string]bool)
	p.syncWatched(b, watched)
	p.log.WithFields(logrus.Fields{"paths": len(watched)}).Info("watching project files")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case batch, ok := <-b.Batches():
			if !ok {
				return nil
			}
			if _, err := p.Reload(ctx, changedFiles(batch)); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				p.log.WithError(err).Error("reload failed")
			}
			// Reloads register and drop serializers.
			p.syncWatched(b, watched)

		case err, ok := <-b.Errors():
			if !ok {
				return nil
			}
			p.log.WithError(err).Warn("watcher error")
		}
	}
}

// syncWatched makes b watch exactly the paths the serializers need.
func (p *Project) syncWatched(b *watcher.Batcher, watched map[string]bool) {
	want := make(map[string]bool)
	for _, u := range p.jps.Serializers.WatchedPaths() {
		want[filepath.FromSlash(u.Path())] = true
	}
	for path := range want {
		if watched[path] {
			continue
		}
		if err := b.Watch(path); err != nil && err != watcher.ErrAlreadyWatching {
			p.log.WithFields(logrus.Fields{"path": path}).WithError(err).Warn("cannot watch path")
			continue
		}
		watched[path] = true
	}
	for path := range watched {
		if want[path] {
			continue
		}
		if err := b.Unwatch(path); err != nil && err != watcher.ErrNotWatching {
			p.log.WithFields(logrus.Fields{"path": path}).WithError(err).Debug("cannot unwatch path")
		}
		delete(watched, path)
	}
}

// changedFiles converts a batch of OS paths into file URLs.
func changedFiles(b watcher.Batch) jps.ChangedFiles {
	convert := func(paths []string) []fileurl.URL {
		if len(paths) == 0 {
			return nil
		}
		urls := make([]fileurl.URL, len(paths))
		for i, p := range paths {
			urls[i] = fileurl.FromPath(filepath.ToSlash(p))
		}
		return urls
	}
	return jps.ChangedFiles{
		Added:   convert(b.Added),
		Changed: convert(b.Changed),
		Removed: convert(b.Removed),
	}
}
