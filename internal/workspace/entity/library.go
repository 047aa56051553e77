package entity

import "github.com/dshills/jpsmodel/internal/workspace/fileurl"

// Library table levels.
const (
	LibraryLevelProject     = "project"
	LibraryLevelApplication = "application"
	LibraryLevelModule      = "module"
)

// LibraryTableID identifies the table a library is registered in. Module
// tables carry the owning module name.
type LibraryTableID struct {
	Level  string
	Module string
}

// ProjectLibraryTable is the project-level table.
var ProjectLibraryTable = LibraryTableID{Level: LibraryLevelProject}

// ApplicationLibraryTable is the global table.
var ApplicationLibraryTable = LibraryTableID{Level: LibraryLevelApplication}

// ModuleLibraryTable returns the table of module-level libraries of module.
func ModuleLibraryTable(module string) LibraryTableID {
	return LibraryTableID{Level: LibraryLevelModule, Module: module}
}

// LibraryTableFromLevel maps an XML "level" attribute onto a table id.
func LibraryTableFromLevel(level string) LibraryTableID {
	switch level {
	case LibraryLevelProject, "":
		return ProjectLibraryTable
	case LibraryLevelApplication:
		return ApplicationLibraryTable
	}
	return LibraryTableID{Level: level}
}

// IsModuleLevel reports whether the table belongs to a module.
func (t LibraryTableID) IsModuleLevel() bool { return t.Level == LibraryLevelModule }

// LibraryID identifies a library inside its table.
type LibraryID struct {
	Name  string
	Table LibraryTableID
}

// Presentable implements SymbolicID.
func (id LibraryID) Presentable() string {
	if id.Table.IsModuleLevel() {
		return id.Table.Module + "/" + id.Name
	}
	return id.Table.Level + ":" + id.Name
}

func (LibraryID) symbolicID() {}

// LibraryRootType names a group of library roots ("CLASSES", "SOURCES", ...).
type LibraryRootType string

// Standard root types. These three are always written, even when empty.
const (
	RootTypeClasses LibraryRootType = "CLASSES"
	RootTypeSources LibraryRootType = "SOURCES"
	RootTypeJavadoc LibraryRootType = "JAVADOC"
)

// InclusionOptions controls how a library root is expanded.
type InclusionOptions int

const (
	// RootItself uses the root as is.
	RootItself InclusionOptions = iota
	// ArchivesUnderRoot includes the archives directly under the root.
	ArchivesUnderRoot
	// ArchivesUnderRootRecursively includes archives at any depth.
	ArchivesUnderRootRecursively
)

// LibraryRoot is one root of a library.
type LibraryRoot struct {
	URL       fileurl.URL
	Type      LibraryRootType
	Inclusion InclusionOptions
}

// Library is a set of typed roots registered in a library table.
type Library struct {
	Name   string
	Table  LibraryTableID
	Roots  []LibraryRoot
	Source Source

	// AutoNamed marks a module library whose name was generated on load
	// because the file gave none. Its name is not written back.
	AutoNamed bool
}

// EntitySource implements Entity.
func (l *Library) EntitySource() Source { return l.Source }

// Kind implements Entity.
func (l *Library) Kind() Kind { return KindLibrary }

// SymbolicID implements WithSymbolicID.
func (l *Library) SymbolicID() SymbolicID { return l.ID() }

// ID returns the typed symbolic id.
func (l *Library) ID() LibraryID { return LibraryID{Name: l.Name, Table: l.Table} }

// LibraryProperties holds the type and opaque properties of a typed library
// (for example a Maven "repository" library).
type LibraryProperties struct {
	LibraryType   string
	PropertiesXML string
	Source        Source
}

// EntitySource implements Entity.
func (e *LibraryProperties) EntitySource() Source { return e.Source }

// Kind implements Entity.
func (e *LibraryProperties) Kind() Kind { return KindLibraryProperties }
