package storage

import "github.com/dshills/jpsmodel/internal/workspace/entity"

// AdoptOrphans moves orphans whose owner now exists in target under that
// owner. Adopted orphans and their emptied placeholders are removed from
// orphanage. It returns the number of adopted subtrees.
func AdoptOrphans(target, orphanage *Builder) int {
	adopted := 0
	for _, placeholderID := range orphanage.Roots() {
		placeholder, _ := orphanage.Entity(placeholderID)
		if _, ok := placeholder.EntitySource().(entity.OrphanageSource); !ok {
			continue
		}
		sym, ok := placeholder.(entity.WithSymbolicID)
		if !ok {
			continue
		}
		ownerID, ok := target.Resolve(sym.SymbolicID())
		if !ok {
			continue
		}
		for _, child := range orphanage.Children(placeholderID) {
			target.copySubtree(orphanage, child, ownerID, make(map[ID]ID))
			adopted++
		}
		orphanage.Remove(placeholderID)
	}
	return adopted
}
