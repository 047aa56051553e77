package project

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dshills/jpsmodel/internal/jps"
	"github.com/dshills/jpsmodel/internal/jps/sourcecache"
	"github.com/dshills/jpsmodel/internal/project/graph"
	"github.com/dshills/jpsmodel/internal/project/vfs"
	"github.com/dshills/jpsmodel/internal/workspace/entity"
	"github.com/dshills/jpsmodel/internal/workspace/fileurl"
	"github.com/dshills/jpsmodel/internal/workspace/storage"
)

// Options configures a Project.
type Options struct {
	// FS is the file system holding the project. Default: vfs.NewOSFS()
	FS vfs.FS

	Layout jps.Layout

	// Macros are extra path macros such as MAVEN_REPOSITORY.
	Macros map[string]string

	// ExternalStorage overrides the flag read from misc.xml.
	ExternalStorage *bool

	// UnloadedModules are kept out of the main storage.
	UnloadedModules []string

	// MaxConcurrency bounds parallel file loads.
	MaxConcurrency int

	// Cache persists directory file ids. Nil disables persistence.
	Cache *sourcecache.Config

	// Debounce is the quiet period Watch waits for before reloading.
	// Default: 200ms
	Debounce time.Duration

	Logger *logrus.Logger
}

// LoadReport summarizes a load.
type LoadReport struct {
	Modules   int
	Libraries int
	Artifacts int
	Facets    int
	Sdks      int
	Unloaded  int

	// Stale are sources rewritten by the next Save because duplicates
	// were dropped from them.
	Stale int

	// Err is the first per-file failure. Every other file was loaded.
	Err error
}

// ReloadEvent describes a reload applied to the project.
type ReloadEvent struct {
	Change         jps.ChangedFiles
	ChangedSources []entity.Source
	Err            error
	Timestamp      time.Time
}

// Project is an opened project directory.
type Project struct {
	mu sync.RWMutex

	opts  Options
	log   *logrus.Logger
	jps   *jps.Project
	cache *sourcecache.Cache

	builder   *storage.Builder
	unloaded  *storage.Builder
	orphanage *storage.Builder
	loaded    bool
	closed    bool
	watching  bool

	// known are the sources present at the last load, reload or save.
	// Saving also visits them so files of deleted entities get cleared.
	known map[entity.Source]struct{}
	// stale are sources to rewrite on the next save.
	stale map[entity.Source]struct{}

	reloadHandlers []func(ReloadEvent)
}

// Open wires the serializers of the project at opts.Layout. Only misc.xml
// and the module lists are read; call Load for the rest.
func Open(ctx context.Context, opts Options) (*Project, error) {
	if opts.Layout.ProjectDir.IsEmpty() {
		return nil, ErrNoProjectDir
	}
	if opts.FS == nil {
		opts.FS = vfs.NewOSFS()
	}
	if opts.Logger == nil {
		opts.Logger = logrus.New()
	}
	if opts.Debounce <= 0 {
		opts.Debounce = 200 * time.Millisecond
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p := &Project{
		opts:  opts,
		log:   opts.Logger,
		known: make(map[entity.Source]struct{}),
		stale: make(map[entity.Source]struct{}),
	}
	dir := opts.Layout.ProjectDir.Path()

	sc := jps.NewSerializationContext(opts.Logger)
	if opts.Cache != nil {
		cfg := *opts.Cache
		if cfg.Logger == nil {
			cfg.Logger = opts.Logger
		}
		cache, err := sourcecache.Open(cfg)
		if err != nil {
			return nil, &ProjectError{Op: "open", Dir: dir, Err: err}
		}
		// Ids must be bound before any serializer asks for one.
		if err := cache.Seed(opts.Layout.ProjectDir, sc.SourceNames); err != nil {
			cache.Close()
			return nil, &ProjectError{Op: "open", Dir: dir, Err: err}
		}
		p.cache = cache
	}

	jp, err := jps.OpenProjectWithContext(opts.FS, jps.Options{
		Layout:          opts.Layout,
		Macros:          opts.Macros,
		ExternalStorage: opts.ExternalStorage,
		UnloadedModules: opts.UnloadedModules,
		MaxConcurrency:  opts.MaxConcurrency,
		Logger:          opts.Logger,
	}, sc)
	if err != nil {
		if p.cache != nil {
			p.cache.Close()
		}
		return nil, &ProjectError{Op: "open", Dir: dir, Err: err}
	}
	p.jps = jp

	p.log.WithFields(logrus.Fields{
		"project":     dir,
		"serializers": len(jp.Serializers.Serializers()),
	}).Debug("project opened")
	return p, nil
}

// Close releases the source-name cache. The project cannot be used
// afterwards.
func (p *Project) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	if p.cache != nil {
		return p.cache.Close()
	}
	return nil
}

// Layout returns the project layout.
func (p *Project) Layout() jps.Layout {
	return p.jps.Layout
}

// Serializers returns the serializer registry.
func (p *Project) Serializers() *jps.ProjectSerializers {
	return p.jps.Serializers
}

// Load reads every configuration file into fresh storages, replacing
// previously loaded content. A file that fails to load does not fail the
// load; it is reported in LoadReport.Err.
func (p *Project) Load(ctx context.Context) (LoadReport, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return LoadReport{}, ErrClosed
	}

	builder := storage.NewBuilder()
	unloaded := storage.NewBuilder()
	orphanage := storage.NewBuilder()
	res, err := p.jps.Serializers.LoadAll(ctx, p.jps.Content, builder, unloaded, orphanage)
	if err != nil {
		return LoadReport{}, p.wrap("load", err)
	}
	storage.AdoptOrphans(builder, orphanage)
	storage.AdoptOrphans(unloaded, orphanage)

	p.builder, p.unloaded, p.orphanage = builder, unloaded, orphanage
	p.loaded = true
	p.stale = make(map[entity.Source]struct{})
	for _, s := range res.SourcesToUpdate {
		p.stale[s] = struct{}{}
	}
	p.rememberSourcesLocked()

	report := LoadReport{
		Modules:   len(storage.All[*entity.Module](builder)),
		Libraries: len(storage.All[*entity.Library](builder)),
		Artifacts: len(storage.All[*entity.Artifact](builder)),
		Facets:    len(storage.All[*entity.Facet](builder)),
		Sdks:      len(storage.All[*entity.Sdk](builder)),
		Unloaded:  len(storage.All[*entity.Module](unloaded)),
		Stale:     len(res.SourcesToUpdate),
		Err:       res.Err,
	}
	entry := p.log.WithFields(logrus.Fields{
		"project":   p.jps.Layout.ProjectDir.Path(),
		"modules":   report.Modules,
		"libraries": report.Libraries,
		"artifacts": report.Artifacts,
	})
	if res.Err != nil {
		entry.WithError(res.Err).Warn("project loaded with errors")
	} else {
		entry.Info("project loaded")
	}
	return report, nil
}

// Snapshot returns an immutable copy of the loaded entities.
func (p *Project) Snapshot() (*storage.Snapshot, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.loaded {
		return nil, ErrNotLoaded
	}
	return p.builder.ToSnapshot(), nil
}

// UnloadedSnapshot returns an immutable copy of the unloaded modules.
func (p *Project) UnloadedSnapshot() (*storage.Snapshot, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.loaded {
		return nil, ErrNotLoaded
	}
	return p.unloaded.ToSnapshot(), nil
}

// Update runs fn on the main storage. The changes are written by the next
// Save.
func (p *Project) Update(fn func(b *storage.Builder) error) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	if !p.loaded {
		return ErrNotLoaded
	}
	return fn(p.builder)
}

// Save writes every loaded source back to disk and returns the files
// written or deleted. Sources that disappeared since the last save have
// their files cleared.
func (p *Project) Save(ctx context.Context) ([]fileurl.URL, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrClosed
	}
	if !p.loaded {
		return nil, ErrNotLoaded
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	affected := p.affectedSourcesLocked()
	if err := p.jps.Serializers.SaveEntities(p.builder, p.unloaded, affected, p.jps.Content); err != nil {
		return nil, p.wrap("save", err)
	}
	touched, err := p.jps.Content.Flush()
	if err != nil {
		return touched, p.wrap("save", err)
	}
	if p.cache != nil {
		if err := p.cache.Store(p.jps.Layout.ProjectDir, p.jps.Context.SourceNames); err != nil {
			p.log.WithError(err).Warn("cannot persist source names")
		}
	}

	p.stale = make(map[entity.Source]struct{})
	p.rememberSourcesLocked()

	p.log.WithFields(logrus.Fields{
		"sources": len(affected),
		"files":   len(touched),
	}).Info("project saved")
	return touched, nil
}

// affectedSourcesLocked returns the current, known and stale sources in a
// stable order.
func (p *Project) affectedSourcesLocked() []entity.Source {
	set := make(map[entity.Source]struct{}, len(p.known))
	for s := range p.known {
		set[s] = struct{}{}
	}
	for s := range p.stale {
		set[s] = struct{}{}
	}
	for _, s := range p.builder.Sources() {
		set[s] = struct{}{}
	}
	for _, s := range p.unloaded.Sources() {
		set[s] = struct{}{}
	}
	return sortedSources(set)
}

func (p *Project) rememberSourcesLocked() {
	p.known = make(map[entity.Source]struct{})
	for _, s := range p.builder.Sources() {
		p.known[s] = struct{}{}
	}
	for _, s := range p.unloaded.Sources() {
		p.known[s] = struct{}{}
	}
}

// Reload re-reads the files of a batch of changes and merges the result
// into the loaded storages.
func (p *Project) Reload(ctx context.Context, change jps.ChangedFiles) (ReloadEvent, error) {
	p.mu.Lock()

	if p.closed {
		p.mu.Unlock()
		return ReloadEvent{}, ErrClosed
	}
	if !p.loaded {
		p.mu.Unlock()
		return ReloadEvent{}, ErrNotLoaded
	}

	urls := make([]fileurl.URL, 0, len(change.Added)+len(change.Changed)+len(change.Removed))
	urls = append(urls, change.Added...)
	urls = append(urls, change.Changed...)
	urls = append(urls, change.Removed...)
	p.jps.Content.Invalidate(urls...)

	res, err := p.jps.Serializers.ReloadFromChangedFiles(ctx, change, p.jps.Content)
	if err != nil {
		p.mu.Unlock()
		return ReloadEvent{}, p.wrap("reload", err)
	}
	jps.ApplyReload(res, p.builder, p.unloaded, p.orphanage)
	for s := range res.ChangedSources {
		delete(p.stale, s)
	}
	p.rememberSourcesLocked()

	event := ReloadEvent{
		Change:         change,
		ChangedSources: sortedSources(res.ChangedSources),
		Err:            res.Err,
		Timestamp:      time.Now(),
	}
	handlers := append(([]func(ReloadEvent))(nil), p.reloadHandlers...)
	p.mu.Unlock()

	entry := p.log.WithFields(logrus.Fields{
		"added":   len(change.Added),
		"changed": len(change.Changed),
		"removed": len(change.Removed),
		"sources": len(event.ChangedSources),
	})
	if res.Err != nil {
		entry.WithError(res.Err).Warn("reloaded with errors")
	} else {
		entry.Debug("reloaded changed files")
	}

	for _, h := range handlers {
		h(event)
	}
	return event, nil
}

// NewDirectorySource returns a source for a new entity stored in its own
// file under dir, such as a library in .idea/libraries.
func (p *Project) NewDirectorySource(dir fileurl.URL) entity.DirectorySource {
	return entity.DirectorySource{
		Directory:  dir,
		FileNameID: jps.NewFileNameID(),
		Project:    p.jps.Context.Project,
	}
}

// NewModuleSource returns the source of a new module named name, stored
// in name.iml in the project directory.
func (p *Project) NewModuleSource(name string) (entity.FileSource, error) {
	u, ok := p.jps.Serializers.NewModuleFileURL(name)
	if !ok {
		return entity.FileSource{}, p.wrap("new module", jps.ErrNoModuleList)
	}
	return entity.FileSource{File: u, Project: p.jps.Context.Project}, nil
}

// OnReload registers a handler called after every applied reload.
func (p *Project) OnReload(handler func(ReloadEvent)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reloadHandlers = append(p.reloadHandlers, handler)
}

// Graph builds the dependency graph of the loaded modules.
func (p *Project) Graph() (*graph.MemGraph, error) {
	snap, err := p.Snapshot()
	if err != nil {
		return nil, err
	}
	return graph.NewBuilder(p.log).Build(snap), nil
}

func (p *Project) wrap(op string, err error) error {
	return &ProjectError{Op: op, Dir: p.jps.Layout.ProjectDir.Path(), Err: err}
}

func sortedSources(set map[entity.Source]struct{}) []entity.Source {
	out := make([]entity.Source, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return sourceKey(out[i]) < sourceKey(out[j])
	})
	return out
}

func sourceKey(s entity.Source) string {
	if d, ok := s.(entity.DirectorySource); ok {
		return fmt.Sprintf("%s#%d", d.Directory, d.FileNameID)
	}
	return fmt.Sprintf("%s|%T", s.VirtualFileURL(), s)
}
