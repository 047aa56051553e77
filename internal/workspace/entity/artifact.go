package entity

import "github.com/dshills/jpsmodel/internal/workspace/fileurl"

// ArtifactID identifies an artifact by name.
type ArtifactID struct {
	Name string
}

// Presentable implements SymbolicID.
func (id ArtifactID) Presentable() string { return id.Name }

func (ArtifactID) symbolicID() {}

// Artifact is a build output assembled from a tree of packaging elements.
// The tree root is the artifact's only PackagingElement child.
type Artifact struct {
	Name                  string
	ArtifactType          string
	IncludeInProjectBuild bool
	OutputURL             fileurl.URL
	Source                Source
}

// EntitySource implements Entity.
func (a *Artifact) EntitySource() Source { return a.Source }

// Kind implements Entity.
func (a *Artifact) Kind() Kind { return KindArtifact }

// SymbolicID implements WithSymbolicID.
func (a *Artifact) SymbolicID() SymbolicID { return ArtifactID{Name: a.Name} }

// ArtifactProperties holds provider-specific artifact options.
type ArtifactProperties struct {
	ProviderType  string
	PropertiesXML string
	Source        Source
}

// EntitySource implements Entity.
func (e *ArtifactProperties) EntitySource() Source { return e.Source }

// Kind implements Entity.
func (e *ArtifactProperties) Kind() Kind { return KindArtifactProperties }

// ArtifactsOrder remembers the declaration order of artifacts. At most one
// exists per storage.
type ArtifactsOrder struct {
	Order  []string
	Source Source
}

// EntitySource implements Entity.
func (e *ArtifactsOrder) EntitySource() Source { return e.Source }

// Kind implements Entity.
func (e *ArtifactsOrder) Kind() Kind { return KindArtifactsOrder }
