// Package entity defines the typed nodes of the workspace graph.
//
// Entities are immutable values. They are inserted into a storage.Builder,
// which owns the parent/child edges and symbolic-id indices; to change an
// entity a caller builds a replacement value and swaps it in through the
// builder. Nothing in this package holds a pointer to a parent or child.
//
// # Identity
//
// Entities that can be referenced from elsewhere implement WithSymbolicID.
// Symbolic ids are comparable values, so they double as map keys and as
// soft references: a ModuleDependency stores a ModuleID and the target is
// resolved lazily, tolerating dangling references.
//
// # Provenance
//
// Every entity carries a Source describing the file it was loaded from (or
// will be written to). The serializers route saves and deletions through
// this tag.
package entity

// Kind names an entity type. Kinds are used to group entities by serializer
// and for diagnostics.
type Kind string

// Entity kinds.
const (
	KindModule                      Kind = "module"
	KindModuleCustomImlData         Kind = "module-custom-iml-data"
	KindExternalSystemModuleOptions Kind = "external-system-module-options"
	KindModuleGroupPath             Kind = "module-group-path"
	KindJavaModuleSettings          Kind = "java-module-settings"
	KindContentRoot                 Kind = "content-root"
	KindSourceRoot                  Kind = "source-root"
	KindJavaSourceRootProperties    Kind = "java-source-root-properties"
	KindJavaResourceRootProperties  Kind = "java-resource-root-properties"
	KindCustomSourceRootProperties  Kind = "custom-source-root-properties"
	KindSourceRootOrder             Kind = "source-root-order"
	KindExcludeURL                  Kind = "exclude-url"
	KindExcludeURLOrder             Kind = "exclude-url-order"
	KindLibrary                     Kind = "library"
	KindLibraryProperties           Kind = "library-properties"
	KindArtifact                    Kind = "artifact"
	KindArtifactProperties          Kind = "artifact-properties"
	KindArtifactsOrder              Kind = "artifacts-order"
	KindPackagingElement            Kind = "packaging-element"
	KindFacet                       Kind = "facet"
	KindSdk                         Kind = "sdk"
	KindProjectSettings             Kind = "project-settings"
)

// Entity is a node in the workspace graph.
type Entity interface {
	// EntitySource returns where the entity came from.
	EntitySource() Source
	// Kind returns the entity type.
	Kind() Kind
}

// WithSymbolicID is implemented by entities addressable by a domain key.
type WithSymbolicID interface {
	Entity
	SymbolicID() SymbolicID
}

// SymbolicID is a comparable domain key such as a module name.
type SymbolicID interface {
	// Presentable returns a human readable form for diagnostics.
	Presentable() string
	symbolicID()
}

// WithSource returns a copy of e with its source replaced. It is used when
// the orchestrator re-homes an entity, for example after dedup.
func WithSource(e Entity, s Source) Entity {
	switch v := e.(type) {
	case *Module:
		c := *v
		c.Source = s
		return &c
	case *Library:
		c := *v
		c.Source = s
		return &c
	case *Artifact:
		c := *v
		c.Source = s
		return &c
	case *Facet:
		c := *v
		c.Source = s
		return &c
	case *Sdk:
		c := *v
		c.Source = s
		return &c
	}
	panic("entity: WithSource not supported for " + string(e.Kind()))
}
