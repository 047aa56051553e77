package entity

import "github.com/dshills/jpsmodel/internal/workspace/fileurl"

// FacetID identifies a facet inside its module.
type FacetID struct {
	Name   string
	Type   string
	Module ModuleID
}

// Presentable implements SymbolicID.
func (id FacetID) Presentable() string { return id.Module.Name + "/" + id.Type + ":" + id.Name }

func (FacetID) symbolicID() {}

// Facet is a typed, module-scoped configuration blob. Facets nested under
// an underlying facet form a forest per module.
type Facet struct {
	Name             string
	Module           ModuleID
	FacetType        string
	ConfigurationXML string
	Underlying       *FacetID
	Source           Source
}

// EntitySource implements Entity.
func (f *Facet) EntitySource() Source { return f.Source }

// Kind implements Entity.
func (f *Facet) Kind() Kind { return KindFacet }

// SymbolicID implements WithSymbolicID.
func (f *Facet) SymbolicID() SymbolicID { return f.ID() }

// ID returns the typed symbolic id.
func (f *Facet) ID() FacetID { return FacetID{Name: f.Name, Type: f.FacetType, Module: f.Module} }

// SdkID identifies an SDK.
type SdkID struct {
	Name string
	Type string
}

// Presentable implements SymbolicID.
func (id SdkID) Presentable() string { return id.Name }

func (SdkID) symbolicID() {}

// SdkRoot is one typed root of an SDK.
type SdkRoot struct {
	URL  fileurl.URL
	Type string
}

// Sdk is a global SDK definition from jdk.table.xml.
type Sdk struct {
	Name           string
	Type           string
	Version        string
	HomePath       fileurl.URL
	Roots          []SdkRoot
	AdditionalData string
	Source         Source
}

// EntitySource implements Entity.
func (s *Sdk) EntitySource() Source { return s.Source }

// Kind implements Entity.
func (s *Sdk) Kind() Kind { return KindSdk }

// SymbolicID implements WithSymbolicID.
func (s *Sdk) SymbolicID() SymbolicID { return SdkID{Name: s.Name, Type: s.Type} }

// ProjectSettings holds project-wide settings from misc.xml.
type ProjectSettings struct {
	ProjectSdk    *SdkID
	LanguageLevel string
	// RootManagerXML keeps the remaining ProjectRootManager content.
	RootManagerXML string
	Source         Source
}

// EntitySource implements Entity.
func (e *ProjectSettings) EntitySource() Source { return e.Source }

// Kind implements Entity.
func (e *ProjectSettings) Kind() Kind { return KindProjectSettings }
