package jps

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/dshills/jpsmodel/internal/workspace/entity"
	"github.com/dshills/jpsmodel/internal/workspace/fileurl"
	"github.com/dshills/jpsmodel/internal/workspace/storage"
)

type saveOp struct {
	ser    FileEntitiesSerializer
	ids    []storage.ID
	reader storage.Reader
}

type obsoleteOp struct {
	ser        FileEntitiesSerializer
	deleteFile bool
}

type savePlan struct {
	saves         []saveOp
	obsolete      []obsoleteOp
	deletes       []fileurl.URL
	moduleTouched bool
	errs          []error
}

// SaveEntities writes the entities of the affected sources to their
// files. Every source sharing an internal file with an affected source is
// saved too, since both halves live in one file. unloaded may be nil.
//
// Sources without remaining entities have their files cleared; the file
// is removed when it belongs to the external storage and no other
// serializer writes it. Directory-based entities whose name no longer
// matches their file are moved to a new file. Module lists are rewritten
// when a module serializer was saved, added or dropped.
func (p *ProjectSerializers) SaveEntities(r, unloaded storage.Reader, affected []entity.Source, writer FileContentWriter) error {
	p.mu.Lock()
	plan := p.planSave(r, unloaded, affected)
	p.mu.Unlock()

	for _, op := range plan.obsolete {
		op.ser.DeleteObsoleteFile(writer)
		if op.deleteFile {
			writer.DeleteFile(op.ser.FileURL())
		}
		p.log.WithFields(logrus.Fields{"file": op.ser.FileURL().String()}).Debug("cleared obsolete file")
	}
	for _, u := range plan.deletes {
		writer.DeleteFile(u)
	}
	for _, op := range plan.saves {
		if err := op.ser.SaveEntities(op.ids, op.reader, writer); err != nil {
			plan.errs = append(plan.errs, NewFileError("save", op.ser.FileURL(), err))
		}
	}

	if plan.moduleTouched {
		p.mu.Lock()
		lists := p.moduleListPathsLocked(r, unloaded)
		p.mu.Unlock()
		for _, l := range p.moduleLists {
			l.SaveModuleList(lists[l], writer)
		}
	}
	return errors.Join(plan.errs...)
}

func savedSource(s entity.Source) bool {
	switch s.(type) {
	case nil, entity.NonPersistentSource, entity.OrphanageSource:
		return false
	}
	return true
}

// planSave resolves the serializers of every affected source. Callers
// hold mu.
func (p *ProjectSerializers) planSave(r, unloaded storage.Reader, affected []entity.Source) *savePlan {
	plan := &savePlan{}
	done := make(map[entity.Source]bool)
	var queue []entity.Source
	enqueue := func(s entity.Source) {
		if !savedSource(s) {
			return
		}
		internal := entity.InternalSource(s)
		if !savedSource(internal) || done[internal] {
			return
		}
		done[internal] = true
		queue = append(queue, internal)
	}
	for _, s := range affected {
		enqueue(s)
	}
	sort.SliceStable(queue, func(i, j int) bool {
		return queue[i].VirtualFileURL() < queue[j].VirtualFileURL()
	})

	extra := make(map[FileEntitiesSerializer][]storage.ID)
	saveIndex := make(map[FileEntitiesSerializer]int)
	for len(queue) > 0 {
		internal := queue[0]
		queue = queue[1:]

		sers := p.ensureSerializers(r, unloaded, internal, plan)
		for _, s := range sers {
			if _, isModule := s.(*ModuleImlSerializer); isModule {
				plan.moduleTouched = true
			}
			rd, ids := p.mainsFor(r, unloaded, s)

			if _, isModule := s.(*ModuleImlSerializer); !isModule && !s.IsExternalStorage() && rd == r {
				if ext := p.externalByKind[s.MainEntityKind()]; ext != nil {
					if moved := collectMains(r, s, entity.IsStoredExternally); len(moved) > 0 {
						extra[ext] = append(extra[ext], moved...)
						enqueue(ext.InternalEntitySource())
					}
				}
			}

			if len(ids) == 0 && len(extra[s]) == 0 {
				p.markObsolete(s, plan)
				continue
			}
			ids = append(ids, extra[s]...)
			delete(extra, s)
			s = p.retarget(s, rd, ids, plan)
			saveIndex[s] = len(plan.saves)
			plan.saves = append(plan.saves, saveOp{ser: s, ids: sortedIDs(ids), reader: rd})
		}
	}
	for ext, ids := range extra {
		if i, ok := saveIndex[ext]; ok && plan.saves[i].reader == r {
			plan.saves[i].ids = sortedIDs(append(plan.saves[i].ids, ids...))
			continue
		}
		plan.saves = append(plan.saves, saveOp{ser: ext, ids: sortedIDs(ids), reader: r})
	}
	return plan
}

func sortedIDs(ids []storage.ID) []storage.ID {
	seen := make(map[storage.ID]bool, len(ids))
	out := make([]storage.ID, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// accepts reports whether s stores a main entity with source src.
func accepts(s FileEntitiesSerializer, src entity.Source) bool {
	if s.IsExternalStorage() {
		return entity.IsStoredExternally(src)
	}
	if _, isModule := s.(*ModuleImlSerializer); isModule {
		// The internal .iml keeps the local part of externally stored
		// modules too.
		return true
	}
	return !entity.IsStoredExternally(src)
}

// mainsFor returns the main entities written by s, looking in r first and
// in unloaded when r has none.
func (p *ProjectSerializers) mainsFor(r, unloaded storage.Reader, s FileEntitiesSerializer) (storage.Reader, []storage.ID) {
	if ids := mainEntities(r, s); len(ids) > 0 || unloaded == nil {
		return r, ids
	}
	if ids := mainEntities(unloaded, s); len(ids) > 0 {
		return unloaded, ids
	}
	return r, nil
}

func mainEntities(r storage.Reader, s FileEntitiesSerializer) []storage.ID {
	return collectMains(r, s, func(src entity.Source) bool { return accepts(s, src) })
}

// collectMains returns the main entities sharing the internal source of s
// whose own source satisfies keep.
func collectMains(r storage.Reader, s FileEntitiesSerializer, keep func(entity.Source) bool) []storage.ID {
	internal := s.InternalEntitySource()
	kind := s.MainEntityKind()
	var out []storage.ID
	for _, id := range r.BySource(func(src entity.Source) bool { return entity.InternalSource(src) == internal }) {
		main, ok := mainEntityOf(r, id, kind)
		if !ok {
			continue
		}
		e, _ := r.Entity(main)
		if lib, isLib := e.(*entity.Library); isLib && lib.Table.IsModuleLevel() {
			continue
		}
		if entity.InternalSource(e.EntitySource()) != internal || !keep(e.EntitySource()) {
			continue
		}
		out = append(out, main)
	}
	return sortedIDs(out)
}

// mainEntityOf returns id or its closest ancestor of the given kind.
func mainEntityOf(r storage.Reader, id storage.ID, kind entity.Kind) (storage.ID, bool) {
	for {
		e, ok := r.Entity(id)
		if !ok {
			return storage.Invalid, false
		}
		if e.Kind() == kind {
			return id, true
		}
		parent, ok := r.Parent(id)
		if !ok {
			return storage.Invalid, false
		}
		id = parent
	}
}

func storedExternallyUnder(r storage.Reader, internal entity.Source) (needInternal, needExternal bool) {
	if r == nil {
		return false, false
	}
	for _, id := range r.BySource(func(src entity.Source) bool { return entity.InternalSource(src) == internal }) {
		e, _ := r.Entity(id)
		if entity.IsStoredExternally(e.EntitySource()) {
			needExternal = true
		} else {
			needInternal = true
		}
	}
	return needInternal, needExternal
}

// ensureSerializers returns the serializers of an internal source,
// creating the ones new entities need.
func (p *ProjectSerializers) ensureSerializers(r, unloaded storage.Reader, internal entity.Source, plan *savePlan) []FileEntitiesSerializer {
	sers := p.bySourceLocked(internal)

	switch src := internal.(type) {
	case entity.DirectorySource:
		if len(sers) > 0 {
			return sers
		}
		f, ok := p.factoryFor(src.Directory)
		if !ok {
			plan.errs = append(plan.errs, fmt.Errorf("%w: %s", ErrUnknownDirectory, src.Directory))
			return nil
		}
		candidate := f.CreateSerializer(src.Directory, src)
		rd, ids := p.mainsFor(r, unloaded, candidate)
		if len(ids) == 0 {
			// Imported entities may still need routing to the external
			// storage.
			return []FileEntitiesSerializer{candidate}
		}
		e, _ := rd.Entity(ids[0])
		name := f.FileNameFor(e)
		s := f.CreateSerializer(src.Directory.Append(name), src)
		p.sc.SourceNames.Bind(src.Directory, name, src.FileNameID)
		p.register(s, f, nil)
		return []FileEntitiesSerializer{s}

	case entity.FileSource:
		if !strings.HasSuffix(src.File.Path(), ".iml") {
			return sers
		}
		needInternal, needExternal := storedExternallyUnder(r, internal)
		if ni, ne := storedExternallyUnder(unloaded, internal); ni || ne {
			needInternal = needInternal || ni
			needExternal = needExternal || ne
		}
		var hasInternal, hasExternal bool
		path := ModulePath{File: src.File}
		for _, s := range sers {
			if ms, ok := s.(*ModuleImlSerializer); ok {
				path = ms.ModulePath()
			}
			if s.IsExternalStorage() {
				hasExternal = true
			} else {
				hasInternal = true
			}
		}
		if group, ok := moduleGroup(r, unloaded, src.File.NameWithoutExtension()); ok {
			path.Group = group
		}
		create := func(external bool) {
			l, ok := p.moduleList(external)
			if !ok {
				plan.errs = append(plan.errs, fmt.Errorf("%w for %s", ErrNoModuleList, src.File))
				return
			}
			s := l.CreateSerializer(path)
			p.register(s, nil, l)
			sers = append(sers, s)
			plan.moduleTouched = true
		}
		if needInternal && !hasInternal {
			create(false)
		}
		if needExternal && !hasExternal && p.sc.ExternalStorageEnabled {
			create(true)
		}
		return sers
	}

	if len(sers) == 0 {
		p.log.WithFields(logrus.Fields{"file": internal.VirtualFileURL().String()}).Warn("no serializer for entity source")
	}
	return sers
}

func (p *ProjectSerializers) markObsolete(s FileEntitiesSerializer, plan *savePlan) {
	if p.claimants(s.FileURL()) == 0 {
		return
	}
	sole := p.claimants(s.FileURL()) <= 1
	_, isModule := s.(*ModuleImlSerializer)
	_, isDirectory := p.factoryOf[s]
	if isModule {
		plan.moduleTouched = true
	}
	if isModule || isDirectory {
		p.unregister(s)
	}
	plan.obsolete = append(plan.obsolete, obsoleteOp{ser: s, deleteFile: s.IsExternalStorage() && sole})
}

// retarget moves a serializer to the file its entity name maps to.
// Callers hold mu.
func (p *ProjectSerializers) retarget(s FileEntitiesSerializer, r storage.Reader, ids []storage.ID, plan *savePlan) FileEntitiesSerializer {
	if ms, ok := s.(*ModuleImlSerializer); ok {
		return p.retargetModule(ms, r, ids, plan)
	}
	f, ok := p.factoryOf[s]
	if !ok {
		return s
	}
	src, ok := s.InternalEntitySource().(entity.DirectorySource)
	if !ok {
		return s
	}
	e, _ := r.Entity(ids[0])
	name := f.FileNameFor(e)
	if name == "" || name == s.FileURL().FileName() {
		return s
	}
	newURL := f.DirectoryURL().Append(name)
	if p.claimants(newURL) > 0 {
		p.log.WithFields(logrus.Fields{"file": newURL.String()}).Warn("target file already in use, keeping the old name")
		return s
	}
	oldURL := s.FileURL()
	p.unregister(s)
	moved := f.CreateSerializer(newURL, src)
	p.register(moved, f, nil)
	p.sc.SourceNames.Bind(f.DirectoryURL(), name, src.FileNameID)
	if p.claimants(oldURL) == 0 {
		plan.deletes = append(plan.deletes, oldURL)
	}
	p.log.WithFields(logrus.Fields{"from": oldURL.String(), "to": newURL.String()}).Debug("moved entity file")
	return moved
}

// retargetModule renames the files of a module whose name no longer
// matches its .iml. The module list is rewritten by the caller. Callers
// hold mu.
func (p *ProjectSerializers) retargetModule(s *ModuleImlSerializer, r storage.Reader, ids []storage.ID, plan *savePlan) FileEntitiesSerializer {
	mod, ok := storage.Get[*entity.Module](r, ids[0])
	if !ok || mod.Name == "" || mod.Name == s.ModuleName() {
		return s
	}
	moved := s.renamed(mod.Name)
	if p.claimants(moved.FileURL()) > 0 {
		p.log.WithFields(logrus.Fields{"module": mod.Name, "file": moved.FileURL().String()}).Warn("target module file already in use, keeping the old name")
		return s
	}
	l := p.moduleListOf[s]
	oldURL := s.FileURL()
	p.unregister(s)
	p.register(moved, nil, l)
	if p.claimants(oldURL) == 0 {
		plan.deletes = append(plan.deletes, oldURL)
	}
	plan.moduleTouched = true
	p.log.WithFields(logrus.Fields{"from": oldURL.String(), "to": moved.FileURL().String()}).Debug("renamed module file")
	return moved
}

func moduleGroup(r, unloaded storage.Reader, name string) (string, bool) {
	for _, rd := range []storage.Reader{r, unloaded} {
		if rd == nil {
			continue
		}
		m, ok := rd.Resolve(entity.ModuleID{Name: name})
		if !ok {
			continue
		}
		if g, ok := storage.ChildOf[*entity.ModuleGroupPath](rd, m); ok {
			return strings.Join(g.Entity.Path, "/"), true
		}
		return "", true
	}
	return "", false
}

// moduleListPathsLocked collects the entries of every module list from
// the registered module serializers.
func (p *ProjectSerializers) moduleListPathsLocked(r, unloaded storage.Reader) map[ModuleListSerializer][]ModulePath {
	out := make(map[ModuleListSerializer][]ModulePath, len(p.moduleLists))
	for _, s := range p.order {
		l, ok := p.moduleListOf[s]
		if !ok {
			continue
		}
		ms, ok := s.(modulePathSerializer)
		if !ok {
			continue
		}
		path := ms.ModulePath()
		if group, ok := moduleGroup(r, unloaded, path.File.NameWithoutExtension()); ok {
			path.Group = group
		}
		out[l] = append(out[l], path)
	}
	for _, l := range p.moduleLists {
		p.modulePaths[l] = out[l]
	}
	return out
}
