package jps

import (
	"context"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/jpsmodel/internal/workspace/entity"
	"github.com/dshills/jpsmodel/internal/workspace/storage"
)

// LoadAllResult reports the outcome of LoadAll.
type LoadAllResult struct {
	// SourcesToUpdate are the sources of duplicates dropped during the
	// load. Saving them rewrites or removes the stale copies.
	SourcesToUpdate []entity.Source
	// Err is the first per-file failure. Entities of every other file are
	// loaded regardless.
	Err error
}

// LoadAll loads every registered serializer concurrently, drops entities
// duplicated across files and merges the rest into builder. Modules marked
// unloaded go to unloaded and entities waiting for an owner go to
// orphanage; either may be nil to merge into builder.
//
// The returned error is only set when the load was cancelled through ctx.
func (p *ProjectSerializers) LoadAll(ctx context.Context, reader FileContentReader, builder, unloaded, orphanage *storage.Builder) (LoadAllResult, error) {
	sers := p.Serializers()
	results := make([]LoadResult, len(sers))
	reporter := p.sc.reporter()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.maxConc)
	for i, s := range sers {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = s.LoadEntities(reader, reporter)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return LoadAllResult{}, err
	}

	var out LoadAllResult
	out.SourcesToUpdate = p.deduplicate(sers, results)

	if unloaded == nil {
		unloaded = builder
	}
	if orphanage == nil {
		orphanage = builder
	}
	var order []string
	for i, res := range results {
		if res.Err != nil {
			p.log.WithFields(logrus.Fields{"file": sers[i].FileURL().String()}).WithError(res.Err).Warn("failed to load file")
			if out.Err == nil {
				out.Err = res.Err
			}
		}
		order = append(order, extractArtifactsOrder(res.Builder)...)
		target := builder
		if res.Unloaded {
			target = unloaded
		}
		squash(target, res.Builder)
		squash(orphanage, res.Orphanage)
	}
	mergeArtifactsOrder(builder, order)

	if err := builder.Check(); err != nil {
		p.log.WithError(err).Warn("loaded storage is inconsistent")
	}
	p.log.WithFields(logrus.Fields{"files": len(sers), "entities": builder.Len()}).Info("project loaded")
	return out, nil
}

// squash merges from into target with consistency checks disabled.
func squash(target, from *storage.Builder) {
	if from == nil || from.Len() == 0 {
		return
	}
	prev := target.SetConsistencyChecks(false)
	defer target.SetConsistencyChecks(prev)
	_, _ = target.ApplyChangesFrom(from)
}

// extractArtifactsOrder removes the ArtifactsOrder entities of b and
// returns their names in order.
func extractArtifactsOrder(b *storage.Builder) []string {
	var names []string
	for _, ref := range storage.All[*entity.ArtifactsOrder](b) {
		names = append(names, ref.Entity.Order...)
		b.Remove(ref.ID)
	}
	return names
}

// mergeArtifactsOrder appends names not yet listed to the single
// ArtifactsOrder of target, creating it when needed.
func mergeArtifactsOrder(target *storage.Builder, names []string) {
	if len(names) == 0 {
		return
	}
	existing := storage.All[*entity.ArtifactsOrder](target)
	if len(existing) == 0 {
		target.Add(&entity.ArtifactsOrder{Order: uniqueNames(nil, names), Source: entity.NonPersistentSource{}})
		return
	}
	first := existing[0]
	merged := uniqueNames(first.Entity.Order, names)
	for _, extra := range existing[1:] {
		merged = uniqueNames(merged, extra.Entity.Order)
		target.Remove(extra.ID)
	}
	target.Modify(first.ID, &entity.ArtifactsOrder{Order: merged, Source: first.Entity.Source})
}

func uniqueNames(base, add []string) []string {
	out := append([]string(nil), base...)
	seen := make(map[string]bool, len(out)+len(add))
	for _, n := range out {
		seen[n] = true
	}
	for _, n := range add {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}

type candidate struct {
	result int
	id     storage.ID
	source entity.Source
}

// deduplicate keeps one entity per symbolic id across the per-file
// builders and returns the sources of the removed copies.
//
// Modules prefer the copy of the only external serializer among the
// candidates, otherwise the last one. Libraries and artifacts prefer the
// copy stored under its canonical file name, otherwise the first one.
func (p *ProjectSerializers) deduplicate(sers []FileEntitiesSerializer, results []LoadResult) []entity.Source {
	var dropped []entity.Source

	modules := make(map[entity.SymbolicID][]candidate)
	var moduleIDs []entity.SymbolicID
	for i, res := range results {
		for _, ref := range storage.All[*entity.Module](res.Builder) {
			sid := ref.Entity.SymbolicID()
			if _, seen := modules[sid]; !seen {
				moduleIDs = append(moduleIDs, sid)
			}
			modules[sid] = append(modules[sid], candidate{result: i, id: ref.ID, source: ref.Entity.Source})
		}
	}
	for _, sid := range moduleIDs {
		cands := modules[sid]
		if len(cands) < 2 {
			continue
		}
		winner := len(cands) - 1
		external := -1
		externalCount := 0
		for i, c := range cands {
			if sers[c.result].IsExternalStorage() {
				external = i
				externalCount++
			}
		}
		if externalCount == 1 {
			winner = external
		} else {
			p.log.WithFields(logrus.Fields{"module": sid.Presentable(), "copies": len(cands)}).Warn("ambiguous duplicate module, keeping the last copy")
		}
		for i, c := range cands {
			if i == winner {
				continue
			}
			b := results[c.result].Builder
			name := sid.(entity.ModuleID).Name
			for _, lib := range storage.All[*entity.Library](b) {
				if lib.Entity.Table == entity.ModuleLibraryTable(name) {
					b.Remove(lib.ID)
				}
			}
			b.Remove(c.id)
			dropped = append(dropped, c.source)
			p.log.WithFields(logrus.Fields{"module": name, "file": sers[c.result].FileURL().String()}).Info("dropped duplicate module")
		}
	}

	dropped = append(dropped, p.dedupNamed(sers, results, func(b *storage.Builder) []storage.Ref[entity.WithSymbolicID] {
		var out []storage.Ref[entity.WithSymbolicID]
		for _, ref := range storage.All[*entity.Library](b) {
			if !ref.Entity.Table.IsModuleLevel() {
				out = append(out, storage.Ref[entity.WithSymbolicID]{ID: ref.ID, Entity: ref.Entity})
			}
		}
		return out
	})...)
	dropped = append(dropped, p.dedupNamed(sers, results, func(b *storage.Builder) []storage.Ref[entity.WithSymbolicID] {
		var out []storage.Ref[entity.WithSymbolicID]
		for _, ref := range storage.All[*entity.Artifact](b) {
			out = append(out, storage.Ref[entity.WithSymbolicID]{ID: ref.ID, Entity: ref.Entity})
		}
		return out
	})...)
	return dropped
}

func (p *ProjectSerializers) dedupNamed(sers []FileEntitiesSerializer, results []LoadResult, list func(*storage.Builder) []storage.Ref[entity.WithSymbolicID]) []entity.Source {
	groups := make(map[entity.SymbolicID][]candidate)
	var ids []entity.SymbolicID
	byCandidate := make(map[candidate]entity.Entity)
	for i, res := range results {
		for _, ref := range list(res.Builder) {
			sid := ref.Entity.SymbolicID()
			if _, seen := groups[sid]; !seen {
				ids = append(ids, sid)
			}
			c := candidate{result: i, id: ref.ID, source: ref.Entity.EntitySource()}
			groups[sid] = append(groups[sid], c)
			byCandidate[c] = ref.Entity
		}
	}

	var dropped []entity.Source
	for _, sid := range ids {
		cands := groups[sid]
		if len(cands) < 2 {
			continue
		}
		winner := -1
		for i, c := range cands {
			if p.isCanonicalFile(sers[c.result], byCandidate[c]) {
				winner = i
				break
			}
		}
		if winner < 0 {
			winner = 0
			p.log.WithFields(logrus.Fields{"entity": sid.Presentable(), "copies": len(cands)}).Warn("ambiguous duplicate, keeping the first copy")
		}
		for i, c := range cands {
			if i == winner {
				continue
			}
			results[c.result].Builder.Remove(c.id)
			dropped = append(dropped, c.source)
			p.log.WithFields(logrus.Fields{"entity": sid.Presentable(), "file": sers[c.result].FileURL().String()}).Info("dropped duplicate entity")
		}
	}
	return dropped
}

func (p *ProjectSerializers) isCanonicalFile(s FileEntitiesSerializer, e entity.Entity) bool {
	p.mu.Lock()
	f, ok := p.factoryOf[s]
	p.mu.Unlock()
	return ok && s.FileURL().FileName() == f.FileNameFor(e)
}
