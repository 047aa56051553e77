package jps

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/dshills/jpsmodel/internal/project/vfs"
	"github.com/dshills/jpsmodel/internal/workspace/entity"
	"github.com/dshills/jpsmodel/internal/workspace/fileurl"
	"github.com/dshills/jpsmodel/internal/workspace/storage"
)

// ChangedFiles is a batch of file system events. A URL may name a file or
// a directory.
type ChangedFiles struct {
	Added   []fileurl.URL
	Changed []fileurl.URL
	Removed []fileurl.URL
}

// IsEmpty reports whether the batch holds no events.
func (c ChangedFiles) IsEmpty() bool {
	return len(c.Added) == 0 && len(c.Changed) == 0 && len(c.Removed) == 0
}

// ReloadResult holds the entities reloaded from changed files.
//
// Every entity of the target storage whose internal source is in
// ChangedSources is to be replaced by the matching entities of Builder.
// The sources of deleted files are included with no entities left.
type ReloadResult struct {
	ChangedSources map[entity.Source]struct{}
	Builder        *storage.Builder
	Orphanage      *storage.Builder
	Unloaded       *storage.Builder
	Err            error
}

// ReloadFromChangedFiles updates the serializer registry for a batch of
// file events and reloads the affected files. The caller invalidates the
// cached content of the changed files before calling.
//
// Only files with a serializer, files appearing in a directory-based
// storage and module lists are considered; other events are ignored.
func (p *ProjectSerializers) ReloadFromChangedFiles(ctx context.Context, change ChangedFiles, reader FileContentReader) (ReloadResult, error) {
	res := ReloadResult{
		ChangedSources: make(map[entity.Source]struct{}),
		Builder:        storage.NewBuilder(),
		Orphanage:      storage.NewBuilder(),
		Unloaded:       storage.NewBuilder(),
	}

	p.mu.Lock()
	affected := p.planReload(change, reader, res.ChangedSources)
	p.mu.Unlock()

	var order []string
	for _, s := range affected {
		if err := ctx.Err(); err != nil {
			return ReloadResult{}, err
		}
		res.ChangedSources[s.InternalEntitySource()] = struct{}{}
		lr := s.LoadEntities(reader, p.sc.reporter())
		if lr.Err != nil {
			p.log.WithFields(logrus.Fields{"file": s.FileURL().String()}).WithError(lr.Err).Warn("failed to reload file")
			if res.Err == nil {
				res.Err = lr.Err
			}
		}
		order = append(order, extractArtifactsOrder(lr.Builder)...)
		target := res.Builder
		if lr.Unloaded {
			target = res.Unloaded
		}
		squash(target, lr.Builder)
		squash(res.Orphanage, lr.Orphanage)
	}
	mergeArtifactsOrder(res.Builder, order)

	p.log.WithFields(logrus.Fields{
		"files":   len(affected),
		"sources": len(res.ChangedSources),
	}).Debug("reloaded changed files")
	return res, nil
}

type serializerSet struct {
	list []FileEntitiesSerializer
	seen map[FileEntitiesSerializer]bool
}

func (s *serializerSet) add(ser FileEntitiesSerializer) {
	if s.seen == nil {
		s.seen = make(map[FileEntitiesSerializer]bool)
	}
	if !s.seen[ser] {
		s.seen[ser] = true
		s.list = append(s.list, ser)
	}
}

// planReload updates the registry and returns the serializers to reload.
// Sources of serializers dropped from the registry are added to obsolete.
// Callers hold mu.
func (p *ProjectSerializers) planReload(change ChangedFiles, reader FileContentReader, obsolete map[entity.Source]struct{}) []FileEntitiesSerializer {
	var set serializerSet
	lists := make(map[ModuleListSerializer]bool)
	isList := func(u fileurl.URL) bool {
		for _, l := range p.moduleLists {
			if l.FileURL() == u {
				lists[l] = true
				return true
			}
		}
		return false
	}

	for _, u := range p.expandDirectories(append(append([]fileurl.URL(nil), change.Added...), change.Changed...)) {
		if isList(u) {
			continue
		}
		if sers := p.byURL[u]; len(sers) > 0 {
			for _, s := range sers {
				set.add(s)
			}
			continue
		}
		if f, ok := p.factoryFor(u.Parent()); ok && strings.HasSuffix(u.FileName(), ".xml") {
			s := p.newDirectorySerializer(f, u)
			p.register(s, f, nil)
			set.add(s)
		}
	}

	drop := func(s FileEntitiesSerializer) {
		p.unregister(s)
		obsolete[s.InternalEntitySource()] = struct{}{}
	}
	for _, u := range change.Removed {
		if isList(u) {
			continue
		}
		for _, s := range append([]FileEntitiesSerializer(nil), p.order...) {
			if s.FileURL() != u && !s.FileURL().IsUnder(u) {
				continue
			}
			if _, isDirectory := p.factoryOf[s]; isDirectory {
				drop(s)
				continue
			}
			// Fixed files and still listed modules reload as empty.
			set.add(s)
		}
	}

	for _, l := range p.moduleLists {
		if lists[l] {
			p.diffModuleList(l, reader, &set, drop)
		}
	}

	// Both halves of a split file reload together.
	for _, s := range append([]FileEntitiesSerializer(nil), set.list...) {
		for _, sibling := range p.bySourceLocked(s.InternalEntitySource()) {
			set.add(sibling)
		}
	}

	out := set.list[:0:0]
	for _, s := range set.list {
		if p.claimants(s.FileURL()) > 0 {
			out = append(out, s)
		}
	}
	return out
}

// expandDirectories replaces directory URLs by the storage files they
// contain.
func (p *ProjectSerializers) expandDirectories(urls []fileurl.URL) []fileurl.URL {
	var out []fileurl.URL
	for _, u := range urls {
		if !p.fs.IsDir(u.Path()) {
			out = append(out, u)
			continue
		}
		for _, f := range p.factories {
			dir := f.DirectoryURL()
			if !dir.IsUnder(u) {
				continue
			}
			for _, fi := range vfs.ListFiles(p.fs, dir.Path(), ".xml") {
				out = append(out, dir.Append(fi.Name()))
			}
		}
		for _, l := range p.moduleLists {
			if l.FileURL().IsUnder(u) {
				out = append(out, l.FileURL())
			}
		}
	}
	return out
}

// diffModuleList rereads a module list and registers serializers for new
// entries. Serializers of vanished entries are dropped; an entry whose
// group changed gets a fresh serializer.
func (p *ProjectSerializers) diffModuleList(l ModuleListSerializer, reader FileContentReader, set *serializerSet, drop func(FileEntitiesSerializer)) {
	paths, err := l.LoadFileList(reader)
	if err != nil {
		p.log.WithFields(logrus.Fields{"file": l.FileURL().String()}).WithError(err).Warn("failed to reload module list")
	}
	next := make(map[fileurl.URL]ModulePath, len(paths))
	for _, mp := range paths {
		next[mp.File] = mp
	}
	for _, s := range append([]FileEntitiesSerializer(nil), p.order...) {
		if p.moduleListOf[s] != l {
			continue
		}
		ms, ok := s.(modulePathSerializer)
		if !ok {
			continue
		}
		mp, listed := next[ms.ModulePath().File]
		if listed && mp.Group == ms.ModulePath().Group {
			continue
		}
		drop(s)
	}
	for _, mp := range paths {
		if p.hasModuleSerializer(l, mp.File) {
			continue
		}
		s := l.CreateSerializer(mp)
		p.register(s, nil, l)
		set.add(s)
	}
	p.modulePaths[l] = paths
}

func (p *ProjectSerializers) hasModuleSerializer(l ModuleListSerializer, file fileurl.URL) bool {
	for s, owner := range p.moduleListOf {
		if ms, ok := s.(modulePathSerializer); ok && owner == l && ms.ModulePath().File == file {
			return true
		}
	}
	return false
}

// ApplyReload merges a reload result into the project storages. Orphans
// loaded by the reload and those already waiting in orphanage are adopted
// by owners present after the merge. unloaded may be nil.
func ApplyReload(res ReloadResult, target, unloaded, orphanage *storage.Builder) {
	changed := storage.SourceIn(res.ChangedSources)
	internalChanged := func(s entity.Source) bool { return changed(entity.InternalSource(s)) }

	storage.AdoptOrphans(res.Builder, res.Orphanage)

	prev := target.SetConsistencyChecks(false)
	target.ReplaceBySource(internalChanged, res.Builder)
	target.SetConsistencyChecks(prev)

	// Orphans from changed files are replaced by the reloaded ones.
	for _, id := range orphanage.BySource(internalChanged) {
		orphanage.Remove(id)
	}
	for _, id := range orphanage.Roots() {
		e, _ := orphanage.Entity(id)
		if _, placeholder := e.EntitySource().(entity.OrphanageSource); placeholder && len(orphanage.Children(id)) == 0 {
			orphanage.Remove(id)
		}
	}
	squash(orphanage, res.Orphanage)
	storage.AdoptOrphans(target, orphanage)

	mergeArtifactsOrder(target, extractArtifactsOrder(res.Builder))

	if unloaded != nil {
		prev := unloaded.SetConsistencyChecks(false)
		unloaded.ReplaceBySource(internalChanged, res.Unloaded)
		unloaded.SetConsistencyChecks(prev)
		storage.AdoptOrphans(unloaded, orphanage)
	}
}
