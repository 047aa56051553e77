package entity

import "github.com/dshills/jpsmodel/internal/workspace/fileurl"

// ModuleID identifies a module by name.
type ModuleID struct {
	Name string
}

// Presentable implements SymbolicID.
func (id ModuleID) Presentable() string { return id.Name }

func (ModuleID) symbolicID() {}

// DependencyScope is the classpath scope of a dependency.
type DependencyScope string

// Dependency scopes. Compile is the default and is not written out.
const (
	ScopeCompile  DependencyScope = "COMPILE"
	ScopeTest     DependencyScope = "TEST"
	ScopeRuntime  DependencyScope = "RUNTIME"
	ScopeProvided DependencyScope = "PROVIDED"
)

// Dependency is one entry of a module's ordered dependency list.
//
// The set of implementations is closed: ModuleSourceDependency,
// InheritedSdkDependency, SdkDependency, LibraryDependency and
// ModuleDependency.
type Dependency interface {
	dependency()
}

// ModuleSourceDependency is the module's own sources.
type ModuleSourceDependency struct{}

// InheritedSdkDependency is the project SDK.
type InheritedSdkDependency struct{}

// SdkDependency is an explicitly named SDK.
type SdkDependency struct {
	Sdk SdkID
}

// LibraryDependency references a project, application or module library.
type LibraryDependency struct {
	Library  LibraryID
	Exported bool
	Scope    DependencyScope
}

// ModuleDependency references another module.
type ModuleDependency struct {
	Module           ModuleID
	Exported         bool
	Scope            DependencyScope
	ProductionOnTest bool
}

func (ModuleSourceDependency) dependency() {}
func (InheritedSdkDependency) dependency() {}
func (SdkDependency) dependency()          {}
func (LibraryDependency) dependency()      {}
func (ModuleDependency) dependency()       {}

// Module is a project module.
type Module struct {
	Name         string
	Type         string
	Dependencies []Dependency
	Source       Source
}

// EntitySource implements Entity.
func (m *Module) EntitySource() Source { return m.Source }

// Kind implements Entity.
func (m *Module) Kind() Kind { return KindModule }

// SymbolicID implements WithSymbolicID.
func (m *Module) SymbolicID() SymbolicID { return ModuleID{Name: m.Name} }

// ModuleCustomImlData keeps module data without a dedicated entity:
// unknown <module> tag attributes and unknown root-manager content.
type ModuleCustomImlData struct {
	// RootManagerTagCustomData is the XML of a <component> tag holding
	// attributes and children of NewModuleRootManager not mapped elsewhere.
	RootManagerTagCustomData string
	CustomModuleOptions      map[string]string
	Source                   Source
}

// EntitySource implements Entity.
func (e *ModuleCustomImlData) EntitySource() Source { return e.Source }

// Kind implements Entity.
func (e *ModuleCustomImlData) Kind() Kind { return KindModuleCustomImlData }

// ExternalSystemModuleOptions records the build system a module was
// imported from.
type ExternalSystemModuleOptions struct {
	ExternalSystem              string
	ExternalSystemModuleVersion string
	LinkedProjectPath           string
	LinkedProjectID             string
	RootProjectPath             string
	ExternalSystemModuleGroup   string
	ExternalSystemModuleType    string
	Source                      Source
}

// EntitySource implements Entity.
func (e *ExternalSystemModuleOptions) EntitySource() Source { return e.Source }

// Kind implements Entity.
func (e *ExternalSystemModuleOptions) Kind() Kind { return KindExternalSystemModuleOptions }

// IsEmpty reports whether no option is set.
func (e *ExternalSystemModuleOptions) IsEmpty() bool {
	return e.ExternalSystem == "" && e.ExternalSystemModuleVersion == "" &&
		e.LinkedProjectPath == "" && e.LinkedProjectID == "" &&
		e.RootProjectPath == "" && e.ExternalSystemModuleGroup == "" &&
		e.ExternalSystemModuleType == ""
}

// ModuleGroupPath is the module's group from modules.xml.
type ModuleGroupPath struct {
	Path   []string
	Source Source
}

// EntitySource implements Entity.
func (e *ModuleGroupPath) EntitySource() Source { return e.Source }

// Kind implements Entity.
func (e *ModuleGroupPath) Kind() Kind { return KindModuleGroupPath }

// JavaModuleSettings holds compiler output settings.
type JavaModuleSettings struct {
	InheritedCompilerOutput bool
	ExcludeOutput           bool
	CompilerOutput          fileurl.URL
	CompilerOutputForTests  fileurl.URL
	LanguageLevelID         string
	Source                  Source
}

// EntitySource implements Entity.
func (e *JavaModuleSettings) EntitySource() Source { return e.Source }

// Kind implements Entity.
func (e *JavaModuleSettings) Kind() Kind { return KindJavaModuleSettings }

// ContentRoot is a directory tree owned by a module.
type ContentRoot struct {
	URL             fileurl.URL
	ExcludePatterns []string
	Source          Source
}

// EntitySource implements Entity.
func (e *ContentRoot) EntitySource() Source { return e.Source }

// Kind implements Entity.
func (e *ContentRoot) Kind() Kind { return KindContentRoot }

// Source root types known to the Java serializers.
const (
	RootTypeJavaSource       = "java-source"
	RootTypeJavaTest         = "java-test"
	RootTypeJavaResource     = "java-resource"
	RootTypeJavaTestResource = "java-test-resource"
)

// SourceRoot is a source folder inside a content root.
type SourceRoot struct {
	URL      fileurl.URL
	RootType string
	Source   Source
}

// EntitySource implements Entity.
func (e *SourceRoot) EntitySource() Source { return e.Source }

// Kind implements Entity.
func (e *SourceRoot) Kind() Kind { return KindSourceRoot }

// JavaSourceRootProperties is attached to java-source and java-test roots.
type JavaSourceRootProperties struct {
	Generated     bool
	PackagePrefix string
	Source        Source
}

// EntitySource implements Entity.
func (e *JavaSourceRootProperties) EntitySource() Source { return e.Source }

// Kind implements Entity.
func (e *JavaSourceRootProperties) Kind() Kind { return KindJavaSourceRootProperties }

// JavaResourceRootProperties is attached to resource roots.
type JavaResourceRootProperties struct {
	Generated          bool
	RelativeOutputPath string
	Source             Source
}

// EntitySource implements Entity.
func (e *JavaResourceRootProperties) EntitySource() Source { return e.Source }

// Kind implements Entity.
func (e *JavaResourceRootProperties) Kind() Kind { return KindJavaResourceRootProperties }

// CustomSourceRootProperties keeps the XML of a sourceFolder tag whose type
// no serializer understands.
type CustomSourceRootProperties struct {
	PropertiesXML string
	Source        Source
}

// EntitySource implements Entity.
func (e *CustomSourceRootProperties) EntitySource() Source { return e.Source }

// Kind implements Entity.
func (e *CustomSourceRootProperties) Kind() Kind { return KindCustomSourceRootProperties }

// SourceRootOrder remembers the declaration order of source roots inside a
// content root.
type SourceRootOrder struct {
	Order  []fileurl.URL
	Source Source
}

// EntitySource implements Entity.
func (e *SourceRootOrder) EntitySource() Source { return e.Source }

// Kind implements Entity.
func (e *SourceRootOrder) Kind() Kind { return KindSourceRootOrder }

// ExcludeURL is an excluded directory of a content root or library.
type ExcludeURL struct {
	URL    fileurl.URL
	Source Source
}

// EntitySource implements Entity.
func (e *ExcludeURL) EntitySource() Source { return e.Source }

// Kind implements Entity.
func (e *ExcludeURL) Kind() Kind { return KindExcludeURL }

// ExcludeURLOrder remembers the declaration order of excluded folders when
// a content root has more than one.
type ExcludeURLOrder struct {
	Order  []fileurl.URL
	Source Source
}

// EntitySource implements Entity.
func (e *ExcludeURLOrder) EntitySource() Source { return e.Source }

// Kind implements Entity.
func (e *ExcludeURLOrder) Kind() Kind { return KindExcludeURLOrder }
