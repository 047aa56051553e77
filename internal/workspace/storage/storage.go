// Package storage implements an arena-style store for workspace entities.
//
// Entities are addressed by an opaque ID. Parent/child edges, symbolic-id
// lookups and source lookups are kept in side tables, so entity values never
// reference each other directly. A Builder is the mutable form; a Snapshot is
// an immutable copy taken from a Builder.
//
// Every child has exactly one parent. Moving an entity with Reparent
// detaches it from its previous parent. Removing an entity removes its
// whole subtree.
package storage

import (
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/dshills/jpsmodel/internal/workspace/entity"
)

// ID addresses an entity inside one storage. IDs are never reused within a
// storage and increase with insertion order. The zero ID is invalid.
type ID uint64

// Invalid is the zero ID.
const Invalid ID = 0

// Errors reported by consistency checks.
var (
	ErrDuplicateSymbolicID = errors.New("duplicate symbolic id")
	ErrDanglingParent      = errors.New("child references missing parent")
	ErrLeafWithChildren    = errors.New("leaf packaging element owns children")
	ErrMultipleRoots       = errors.New("artifact owns more than one root element")
	ErrMultipleOrders      = errors.New("more than one artifacts order entity")
)

// Reader is the read side shared by Builder and Snapshot.
type Reader interface {
	// Entity returns the entity stored under id.
	Entity(id ID) (entity.Entity, bool)
	// Parent returns the owner of id.
	Parent(id ID) (ID, bool)
	// Children returns the ordered children of id.
	Children(id ID) []ID
	// IDs returns all ids in insertion order.
	IDs() []ID
	// Resolve finds the entity with the given symbolic id.
	Resolve(sid entity.SymbolicID) (ID, bool)
	// BySource returns ids of entities whose source satisfies pred, in
	// insertion order.
	BySource(pred func(entity.Source) bool) []ID
	// Sources returns all distinct sources.
	Sources() []entity.Source
	// Len returns the number of entities.
	Len() int
}

type node struct {
	entity   entity.Entity
	parent   ID
	children []ID
}

// Builder is a mutable entity storage.
//
// A Builder is not safe for concurrent use. Concurrent loaders each fill a
// private Builder and merge them sequentially.
type Builder struct {
	storageID uuid.UUID
	next      ID
	nodes     map[ID]*node
	symbolic  map[entity.SymbolicID][]ID
	bySource  map[entity.Source]map[ID]struct{}
	checks    bool
}

// NewBuilder creates an empty builder with consistency checks enabled.
func NewBuilder() *Builder {
	return &Builder{
		storageID: uuid.New(),
		nodes:     make(map[ID]*node),
		symbolic:  make(map[entity.SymbolicID][]ID),
		bySource:  make(map[entity.Source]map[ID]struct{}),
		checks:    true,
	}
}

// Ensure Builder implements Reader.
var _ Reader = (*Builder)(nil)

// StorageID returns the identity of the builder.
func (b *Builder) StorageID() uuid.UUID { return b.storageID }

// SetConsistencyChecks toggles the invariant check run by ApplyChangesFrom.
// It returns the previous setting.
func (b *Builder) SetConsistencyChecks(enabled bool) bool {
	prev := b.checks
	b.checks = enabled
	return prev
}

// Add inserts a root entity.
func (b *Builder) Add(e entity.Entity) ID {
	return b.insert(Invalid, e)
}

// AddChild inserts e as the last child of parent.
func (b *Builder) AddChild(parent ID, e entity.Entity) ID {
	p, ok := b.nodes[parent]
	if !ok {
		panic(fmt.Sprintf("storage: parent %d does not exist", parent))
	}
	id := b.insert(parent, e)
	p.children = append(p.children, id)
	return id
}

func (b *Builder) insert(parent ID, e entity.Entity) ID {
	if e == nil {
		panic("storage: nil entity")
	}
	b.next++
	id := b.next
	b.nodes[id] = &node{entity: e, parent: parent}
	b.index(id, e)
	return id
}

func (b *Builder) index(id ID, e entity.Entity) {
	if s, ok := e.(entity.WithSymbolicID); ok {
		sid := s.SymbolicID()
		b.symbolic[sid] = append(b.symbolic[sid], id)
	}
	src := e.EntitySource()
	set, ok := b.bySource[src]
	if !ok {
		set = make(map[ID]struct{})
		b.bySource[src] = set
	}
	set[id] = struct{}{}
}

func (b *Builder) unindex(id ID, e entity.Entity) {
	if s, ok := e.(entity.WithSymbolicID); ok {
		sid := s.SymbolicID()
		ids := b.symbolic[sid]
		for i, other := range ids {
			if other == id {
				ids = append(ids[:i:i], ids[i+1:]...)
				break
			}
		}
		if len(ids) == 0 {
			delete(b.symbolic, sid)
		} else {
			b.symbolic[sid] = ids
		}
	}
	src := e.EntitySource()
	if set, ok := b.bySource[src]; ok {
		delete(set, id)
		if len(set) == 0 {
			delete(b.bySource, src)
		}
	}
}

// Modify replaces the entity stored under id. The replacement must be of
// the same kind.
func (b *Builder) Modify(id ID, e entity.Entity) {
	n, ok := b.nodes[id]
	if !ok {
		panic(fmt.Sprintf("storage: entity %d does not exist", id))
	}
	if n.entity.Kind() != e.Kind() {
		panic(fmt.Sprintf("storage: cannot replace %s with %s", n.entity.Kind(), e.Kind()))
	}
	b.unindex(id, n.entity)
	n.entity = e
	b.index(id, e)
}

// Remove deletes id and its subtree. Removing a missing id is a no-op.
func (b *Builder) Remove(id ID) {
	n, ok := b.nodes[id]
	if !ok {
		return
	}
	if n.parent != Invalid {
		if p, ok := b.nodes[n.parent]; ok {
			p.children = removeID(p.children, id)
		}
	}
	b.removeSubtree(id)
}

func (b *Builder) removeSubtree(id ID) {
	n := b.nodes[id]
	for _, c := range n.children {
		b.removeSubtree(c)
	}
	b.unindex(id, n.entity)
	delete(b.nodes, id)
}

// Reparent moves child under newParent, detaching it from its old owner.
func (b *Builder) Reparent(child, newParent ID) {
	n, ok := b.nodes[child]
	if !ok {
		panic(fmt.Sprintf("storage: entity %d does not exist", child))
	}
	p, ok := b.nodes[newParent]
	if !ok {
		panic(fmt.Sprintf("storage: parent %d does not exist", newParent))
	}
	if n.parent != Invalid {
		if old, ok := b.nodes[n.parent]; ok {
			old.children = removeID(old.children, child)
		}
	}
	n.parent = newParent
	p.children = append(p.children, child)
}

// Entity implements Reader.
func (b *Builder) Entity(id ID) (entity.Entity, bool) {
	n, ok := b.nodes[id]
	if !ok {
		return nil, false
	}
	return n.entity, true
}

// Parent implements Reader.
func (b *Builder) Parent(id ID) (ID, bool) {
	n, ok := b.nodes[id]
	if !ok || n.parent == Invalid {
		return Invalid, false
	}
	return n.parent, true
}

// Children implements Reader.
func (b *Builder) Children(id ID) []ID {
	n, ok := b.nodes[id]
	if !ok {
		return nil
	}
	out := make([]ID, len(n.children))
	copy(out, n.children)
	return out
}

// IDs implements Reader.
func (b *Builder) IDs() []ID {
	ids := make([]ID, 0, len(b.nodes))
	for id := range b.nodes {
		ids = append(ids, id)
	}
	sortIDs(ids)
	return ids
}

// Roots returns the ids of entities without a parent, in insertion order.
func (b *Builder) Roots() []ID {
	var ids []ID
	for id, n := range b.nodes {
		if n.parent == Invalid {
			ids = append(ids, id)
		}
	}
	sortIDs(ids)
	return ids
}

// Resolve implements Reader. When several entities share the id (possible
// while checks are disabled) the oldest wins.
func (b *Builder) Resolve(sid entity.SymbolicID) (ID, bool) {
	ids := b.symbolic[sid]
	if len(ids) == 0 {
		return Invalid, false
	}
	best := ids[0]
	for _, id := range ids[1:] {
		if id < best {
			best = id
		}
	}
	return best, true
}

// BySource implements Reader.
func (b *Builder) BySource(pred func(entity.Source) bool) []ID {
	var ids []ID
	for src, set := range b.bySource {
		if !pred(src) {
			continue
		}
		for id := range set {
			ids = append(ids, id)
		}
	}
	sortIDs(ids)
	return ids
}

// Sources implements Reader.
func (b *Builder) Sources() []entity.Source {
	out := make([]entity.Source, 0, len(b.bySource))
	for src := range b.bySource {
		out = append(out, src)
	}
	return out
}

// Len implements Reader.
func (b *Builder) Len() int { return len(b.nodes) }

// ApplyChangesFrom copies every entity of other into b, keeping the tree
// shape and child order. It returns the mapping from other's ids to the new
// ids. When checks are enabled the merged builder is validated afterwards.
func (b *Builder) ApplyChangesFrom(other Reader) (map[ID]ID, error) {
	if ob, ok := other.(*Builder); ok && ob.storageID == b.storageID {
		panic("storage: cannot apply a builder to itself")
	}
	mapping := make(map[ID]ID)
	for _, id := range other.IDs() {
		if _, hasParent := other.Parent(id); hasParent {
			continue
		}
		b.copySubtree(other, id, Invalid, mapping)
	}
	if b.checks {
		return mapping, b.Check()
	}
	return mapping, nil
}

func (b *Builder) copySubtree(from Reader, id, parent ID, mapping map[ID]ID) {
	e, _ := from.Entity(id)
	var newID ID
	if parent == Invalid {
		newID = b.Add(e)
	} else {
		newID = b.AddChild(parent, e)
	}
	mapping[id] = newID
	for _, c := range from.Children(id) {
		b.copySubtree(from, c, newID, mapping)
	}
}

// ReplaceBySource removes every entity of b whose source matches pred and
// copies in the matching entities of other. A matching entity whose parent
// does not match is attached to the entity of b that has the same symbolic
// id as that parent; it is skipped when no such entity exists. The number
// of skipped entities is returned.
func (b *Builder) ReplaceBySource(pred func(entity.Source) bool, other Reader) int {
	// Children owned by a replaced entity but loaded from another source
	// survive the replacement and move to the new owner.
	type detached struct {
		owner entity.SymbolicID
		child ID
	}
	var keep []detached
	for _, id := range b.BySource(pred) {
		n, ok := b.nodes[id]
		if !ok {
			continue
		}
		if s, ok := n.entity.(entity.WithSymbolicID); ok {
			var owned []ID
			for _, c := range n.children {
				if pred(b.nodes[c].entity.EntitySource()) {
					owned = append(owned, c)
					continue
				}
				b.nodes[c].parent = Invalid
				keep = append(keep, detached{owner: s.SymbolicID(), child: c})
			}
			n.children = owned
		}
		b.Remove(id)
	}
	mapping := make(map[ID]ID)
	skipped := 0
	for _, id := range other.BySource(pred) {
		if _, done := mapping[id]; done {
			continue
		}
		parent, hasParent := other.Parent(id)
		if hasParent {
			if _, parentCopied := mapping[parent]; parentCopied {
				continue
			}
			if pe, ok := other.Entity(parent); ok && pred(pe.EntitySource()) {
				continue
			}
			target, ok := resolveLike(b, other, parent)
			if !ok {
				skipped++
				continue
			}
			b.copyMatching(other, id, target, pred, mapping)
			continue
		}
		b.copyMatching(other, id, Invalid, pred, mapping)
	}
	for _, k := range keep {
		if _, ok := b.nodes[k.child]; !ok {
			continue
		}
		if owner, ok := b.Resolve(k.owner); ok {
			b.Reparent(k.child, owner)
		} else {
			b.Remove(k.child)
			skipped++
		}
	}
	return skipped
}

func (b *Builder) copyMatching(from Reader, id, parent ID, pred func(entity.Source) bool, mapping map[ID]ID) {
	e, _ := from.Entity(id)
	var newID ID
	if parent == Invalid {
		newID = b.Add(e)
	} else {
		newID = b.AddChild(parent, e)
	}
	mapping[id] = newID
	for _, c := range from.Children(id) {
		ce, _ := from.Entity(c)
		if pred(ce.EntitySource()) {
			b.copyMatching(from, c, newID, pred, mapping)
		}
	}
}

func resolveLike(target, from Reader, id ID) (ID, bool) {
	e, ok := from.Entity(id)
	if !ok {
		return Invalid, false
	}
	s, ok := e.(entity.WithSymbolicID)
	if !ok {
		return Invalid, false
	}
	return target.Resolve(s.SymbolicID())
}

// Check validates the storage invariants and returns all violations.
func (b *Builder) Check() error {
	var errs []error
	for sid, ids := range b.symbolic {
		if len(ids) > 1 {
			errs = append(errs, fmt.Errorf("%w: %s", ErrDuplicateSymbolicID, sid.Presentable()))
		}
	}
	orders := 0
	for id, n := range b.nodes {
		if n.parent != Invalid {
			if _, ok := b.nodes[n.parent]; !ok {
				errs = append(errs, fmt.Errorf("%w: %d", ErrDanglingParent, id))
			}
		}
		switch e := n.entity.(type) {
		case entity.PackagingElement:
			if !entity.IsComposite(e) && len(n.children) > 0 {
				errs = append(errs, fmt.Errorf("%w: %s", ErrLeafWithChildren, e.TypeID()))
			}
		case *entity.Artifact:
			roots := 0
			for _, c := range n.children {
				if _, ok := b.nodes[c].entity.(entity.PackagingElement); ok {
					roots++
				}
			}
			if roots > 1 {
				errs = append(errs, fmt.Errorf("%w: %s", ErrMultipleRoots, e.Name))
			}
		case *entity.ArtifactsOrder:
			orders++
		}
	}
	if orders > 1 {
		errs = append(errs, ErrMultipleOrders)
	}
	return errors.Join(errs...)
}

// ToSnapshot returns an immutable copy of b.
func (b *Builder) ToSnapshot() *Snapshot {
	return &Snapshot{b: b.clone(b.storageID)}
}

// Clone returns an independent copy with a new storage identity.
func (b *Builder) Clone() *Builder {
	return b.clone(uuid.New())
}

func (b *Builder) clone(id uuid.UUID) *Builder {
	c := &Builder{
		storageID: id,
		next:      b.next,
		nodes:     make(map[ID]*node, len(b.nodes)),
		symbolic:  make(map[entity.SymbolicID][]ID, len(b.symbolic)),
		bySource:  make(map[entity.Source]map[ID]struct{}, len(b.bySource)),
		checks:    b.checks,
	}
	for id, n := range b.nodes {
		children := make([]ID, len(n.children))
		copy(children, n.children)
		c.nodes[id] = &node{entity: n.entity, parent: n.parent, children: children}
	}
	for sid, ids := range b.symbolic {
		c.symbolic[sid] = append([]ID(nil), ids...)
	}
	for src, set := range b.bySource {
		cs := make(map[ID]struct{}, len(set))
		for id := range set {
			cs[id] = struct{}{}
		}
		c.bySource[src] = cs
	}
	return c
}

func removeID(ids []ID, id ID) []ID {
	for i, other := range ids {
		if other == id {
			return append(ids[:i:i], ids[i+1:]...)
		}
	}
	return ids
}

func sortIDs(ids []ID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}
