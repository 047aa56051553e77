package jps

import (
	"errors"
	"runtime"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/dshills/jpsmodel/internal/project/vfs"
	"github.com/dshills/jpsmodel/internal/workspace/entity"
	"github.com/dshills/jpsmodel/internal/workspace/fileurl"
)

// Config lists the storages handled by a ProjectSerializers.
type Config struct {
	// DirectoryFactories are scanned for one-entity-per-file storages.
	DirectoryFactories []DirectorySerializerFactory
	// ModuleLists enumerate module files. At most one internal and one
	// external list are expected.
	ModuleLists []ModuleListSerializer
	// FileSerializers are fixed files such as misc.xml.
	FileSerializers []FileEntitiesSerializer
	// MaxConcurrency bounds parallel file loads. Zero uses GOMAXPROCS.
	MaxConcurrency int
}

// ProjectSerializers owns the mapping from configuration files to their
// serializers and drives bulk load, incremental reload and save.
//
// The bookkeeping maps are guarded by mu, which is never held across file
// I/O or storage mutation.
type ProjectSerializers struct {
	sc          *SerializationContext
	fs          vfs.FS
	log         *logrus.Logger
	factories   []DirectorySerializerFactory
	moduleLists []ModuleListSerializer
	maxConc     int

	mu           sync.Mutex
	order        []FileEntitiesSerializer
	byURL        map[fileurl.URL][]FileEntitiesSerializer
	factoryOf    map[FileEntitiesSerializer]DirectorySerializerFactory
	moduleListOf map[FileEntitiesSerializer]ModuleListSerializer
	modulePaths  map[ModuleListSerializer][]ModulePath
	// externalByKind holds the fixed external storage file of each main
	// entity kind that has one.
	externalByKind map[entity.Kind]FileEntitiesSerializer
}

// NewProjectSerializers scans the directory factories, reads the module
// lists and registers a serializer per discovered file. A module list that
// fails to load is reported in the returned error; the serializers of the
// other storages are still registered.
func NewProjectSerializers(sc *SerializationContext, fsys vfs.FS, reader FileContentReader, cfg Config) (*ProjectSerializers, error) {
	maxConc := cfg.MaxConcurrency
	if maxConc <= 0 {
		maxConc = runtime.GOMAXPROCS(0)
	}
	p := &ProjectSerializers{
		sc:             sc,
		fs:             fsys,
		log:            sc.logger(),
		factories:      cfg.DirectoryFactories,
		moduleLists:    cfg.ModuleLists,
		maxConc:        maxConc,
		byURL:          make(map[fileurl.URL][]FileEntitiesSerializer),
		factoryOf:      make(map[FileEntitiesSerializer]DirectorySerializerFactory),
		moduleListOf:   make(map[FileEntitiesSerializer]ModuleListSerializer),
		modulePaths:    make(map[ModuleListSerializer][]ModulePath),
		externalByKind: make(map[entity.Kind]FileEntitiesSerializer),
	}

	for _, f := range cfg.DirectoryFactories {
		for _, fi := range vfs.ListFiles(fsys, f.DirectoryURL().Path(), ".xml") {
			p.register(p.newDirectorySerializer(f, f.DirectoryURL().Append(fi.Name())), f, nil)
		}
	}

	var errs []error
	for _, l := range cfg.ModuleLists {
		paths, err := l.LoadFileList(reader)
		if err != nil {
			errs = append(errs, err)
		}
		p.modulePaths[l] = paths
		for _, mp := range paths {
			p.register(l.CreateSerializer(mp), nil, l)
		}
	}

	for _, s := range cfg.FileSerializers {
		p.register(s, nil, nil)
		if s.IsExternalStorage() {
			p.externalByKind[s.MainEntityKind()] = s
		}
	}

	p.log.WithFields(logrus.Fields{"serializers": len(p.order)}).Debug("project serializers created")
	return p, errors.Join(errs...)
}

func (p *ProjectSerializers) newDirectorySerializer(f DirectorySerializerFactory, fileURL fileurl.URL) FileEntitiesSerializer {
	dir := f.DirectoryURL()
	id := p.sc.SourceNames.SourceFor(dir, fileURL.FileName())
	return f.CreateSerializer(fileURL, entity.DirectorySource{Directory: dir, FileNameID: id, Project: p.sc.Project})
}

// register records s. Callers outside the constructor hold mu.
func (p *ProjectSerializers) register(s FileEntitiesSerializer, f DirectorySerializerFactory, l ModuleListSerializer) {
	p.order = append(p.order, s)
	p.byURL[s.FileURL()] = append(p.byURL[s.FileURL()], s)
	if f != nil {
		p.factoryOf[s] = f
	}
	if l != nil {
		p.moduleListOf[s] = l
	}
}

// unregister forgets s. Callers hold mu.
func (p *ProjectSerializers) unregister(s FileEntitiesSerializer) {
	for i, other := range p.order {
		if other == s {
			p.order = append(p.order[:i:i], p.order[i+1:]...)
			break
		}
	}
	url := s.FileURL()
	list := p.byURL[url]
	for i, other := range list {
		if other == s {
			list = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(p.byURL, url)
	} else {
		p.byURL[url] = list
	}
	delete(p.factoryOf, s)
	delete(p.moduleListOf, s)
}

// Serializers returns the registered serializers in registration order.
func (p *ProjectSerializers) Serializers() []FileEntitiesSerializer {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]FileEntitiesSerializer(nil), p.order...)
}

// ModuleListSerializers returns the module lists.
func (p *ProjectSerializers) ModuleListSerializers() []ModuleListSerializer {
	return append([]ModuleListSerializer(nil), p.moduleLists...)
}

// SerializersFor returns the serializers bound to fileURL.
func (p *ProjectSerializers) SerializersFor(fileURL fileurl.URL) []FileEntitiesSerializer {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]FileEntitiesSerializer(nil), p.byURL[fileURL]...)
}

// FindModuleSerializer returns the internal serializer of the named module,
// falling back to the external one.
func (p *ProjectSerializers) FindModuleSerializer(moduleName string) (FileEntitiesSerializer, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var external FileEntitiesSerializer
	for _, s := range p.order {
		ms, ok := s.(*ModuleImlSerializer)
		if !ok || ms.ModuleName() != moduleName {
			continue
		}
		if !ms.IsExternalStorage() {
			return ms, true
		}
		external = ms
	}
	return external, external != nil
}

// NewModuleFileURL returns where the project-level module list places the
// .iml of a new module.
func (p *ProjectSerializers) NewModuleFileURL(moduleName string) (fileurl.URL, bool) {
	l, ok := p.moduleList(false)
	if !ok {
		return fileurl.Empty, false
	}
	return l.ModuleFileURL(moduleName), true
}

// WatchedPaths returns the directories and files whose changes affect the
// loaded entities, sorted.
func (p *ProjectSerializers) WatchedPaths() []fileurl.URL {
	p.mu.Lock()
	defer p.mu.Unlock()
	seen := make(map[fileurl.URL]bool)
	for _, f := range p.factories {
		seen[f.DirectoryURL()] = true
	}
	for _, l := range p.moduleLists {
		seen[l.FileURL()] = true
	}
	for u := range p.byURL {
		seen[u] = true
	}
	out := make([]fileurl.URL, 0, len(seen))
	for u := range seen {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// bySourceLocked returns the serializers whose internal source is src.
func (p *ProjectSerializers) bySourceLocked(src entity.Source) []FileEntitiesSerializer {
	var out []FileEntitiesSerializer
	for _, s := range p.order {
		if s.InternalEntitySource() == src {
			out = append(out, s)
		}
	}
	return out
}

func (p *ProjectSerializers) factoryFor(dir fileurl.URL) (DirectorySerializerFactory, bool) {
	for _, f := range p.factories {
		if f.DirectoryURL() == dir {
			return f, true
		}
	}
	return nil, false
}

func (p *ProjectSerializers) moduleList(external bool) (ModuleListSerializer, bool) {
	for _, l := range p.moduleLists {
		if l.IsExternalStorage() == external {
			return l, true
		}
	}
	return nil, false
}

// claimants returns how many registered serializers write fileURL.
func (p *ProjectSerializers) claimants(fileURL fileurl.URL) int {
	return len(p.byURL[fileURL])
}
