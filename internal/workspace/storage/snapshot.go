package storage

import (
	"github.com/google/uuid"

	"github.com/dshills/jpsmodel/internal/workspace/entity"
)

// Snapshot is an immutable entity storage.
type Snapshot struct {
	b *Builder
}

// Ensure Snapshot implements Reader.
var _ Reader = (*Snapshot)(nil)

// StorageID returns the identity of the builder the snapshot was taken from.
func (s *Snapshot) StorageID() uuid.UUID { return s.b.storageID }

// ToBuilder returns a mutable copy of the snapshot.
func (s *Snapshot) ToBuilder() *Builder { return s.b.Clone() }

// Entity implements Reader.
func (s *Snapshot) Entity(id ID) (entity.Entity, bool) { return s.b.Entity(id) }

// Parent implements Reader.
func (s *Snapshot) Parent(id ID) (ID, bool) { return s.b.Parent(id) }

// Children implements Reader.
func (s *Snapshot) Children(id ID) []ID { return s.b.Children(id) }

// IDs implements Reader.
func (s *Snapshot) IDs() []ID { return s.b.IDs() }

// Resolve implements Reader.
func (s *Snapshot) Resolve(sid entity.SymbolicID) (ID, bool) { return s.b.Resolve(sid) }

// BySource implements Reader.
func (s *Snapshot) BySource(pred func(entity.Source) bool) []ID { return s.b.BySource(pred) }

// Sources implements Reader.
func (s *Snapshot) Sources() []entity.Source { return s.b.Sources() }

// Len implements Reader.
func (s *Snapshot) Len() int { return s.b.Len() }
