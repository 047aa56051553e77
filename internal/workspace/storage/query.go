package storage

import "github.com/dshills/jpsmodel/internal/workspace/entity"

// Ref pairs an entity with its id.
type Ref[T entity.Entity] struct {
	ID     ID
	Entity T
}

// All returns every entity of type T in insertion order.
func All[T entity.Entity](r Reader) []Ref[T] {
	var out []Ref[T]
	for _, id := range r.IDs() {
		e, _ := r.Entity(id)
		if v, ok := e.(T); ok {
			out = append(out, Ref[T]{ID: id, Entity: v})
		}
	}
	return out
}

// Get returns the entity under id if it has type T.
func Get[T entity.Entity](r Reader, id ID) (T, bool) {
	var zero T
	e, ok := r.Entity(id)
	if !ok {
		return zero, false
	}
	v, ok := e.(T)
	return v, ok
}

// ChildrenOf returns the children of parent that have type T, in order.
func ChildrenOf[T entity.Entity](r Reader, parent ID) []Ref[T] {
	var out []Ref[T]
	for _, id := range r.Children(parent) {
		e, _ := r.Entity(id)
		if v, ok := e.(T); ok {
			out = append(out, Ref[T]{ID: id, Entity: v})
		}
	}
	return out
}

// ChildOf returns the first child of parent with type T.
func ChildOf[T entity.Entity](r Reader, parent ID) (Ref[T], bool) {
	for _, id := range r.Children(parent) {
		e, _ := r.Entity(id)
		if v, ok := e.(T); ok {
			return Ref[T]{ID: id, Entity: v}, true
		}
	}
	return Ref[T]{}, false
}

// ResolveAs resolves sid and asserts the entity type.
func ResolveAs[T entity.Entity](r Reader, sid entity.SymbolicID) (Ref[T], bool) {
	id, ok := r.Resolve(sid)
	if !ok {
		return Ref[T]{}, false
	}
	v, ok := Get[T](r, id)
	if !ok {
		return Ref[T]{}, false
	}
	return Ref[T]{ID: id, Entity: v}, true
}

// AncestorOf walks up from id and returns the first ancestor of type T.
func AncestorOf[T entity.Entity](r Reader, id ID) (Ref[T], bool) {
	for {
		parent, ok := r.Parent(id)
		if !ok {
			return Ref[T]{}, false
		}
		if v, ok := Get[T](r, parent); ok {
			return Ref[T]{ID: parent, Entity: v}, true
		}
		id = parent
	}
}

// SourceEquals returns a predicate matching exactly s.
func SourceEquals(s entity.Source) func(entity.Source) bool {
	return func(other entity.Source) bool { return other == s }
}

// SourceIn returns a predicate matching any source in set.
func SourceIn(set map[entity.Source]struct{}) func(entity.Source) bool {
	return func(other entity.Source) bool {
		_, ok := set[other]
		return ok
	}
}

// Subtree returns id followed by all its descendants in depth-first order.
func Subtree(r Reader, id ID) []ID {
	out := []ID{id}
	for _, c := range r.Children(id) {
		out = append(out, Subtree(r, c)...)
	}
	return out
}
