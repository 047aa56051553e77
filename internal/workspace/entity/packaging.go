package entity

// Packaging element type ids as written in the "id" attribute.
const (
	ElementRoot             = "root"
	ElementDirectory        = "directory"
	ElementArchive          = "archive"
	ElementDirectoryCopy    = "dir-copy"
	ElementFileCopy         = "file-copy"
	ElementExtractedDir     = "extracted-dir"
	ElementArtifactOutput   = "artifact"
	ElementModuleOutput     = "module-output"
	ElementModuleTestOutput = "module-test-output"
	ElementModuleSource     = "module-source"
	ElementLibraryFiles     = "library"
)

// PackagingElement is a node of an artifact's output tree.
//
// The variants are closed. Composite variants (ArtifactRootElement,
// DirectoryElement, ArchiveElement) own ordered children in the storage;
// all other variants are leaves. CustomElement carries the verbatim XML of
// element kinds no serializer understands.
type PackagingElement interface {
	Entity
	// TypeID returns the "id" attribute value of the element.
	TypeID() string
	packagingElement()
}

// IsComposite reports whether e may own child elements.
func IsComposite(e PackagingElement) bool {
	switch e.(type) {
	case *ArtifactRootElement, *DirectoryElement, *ArchiveElement:
		return true
	}
	return false
}

// ArtifactRootElement is the root of a directory artifact.
type ArtifactRootElement struct {
	Source Source
}

// DirectoryElement creates a directory in the output.
type DirectoryElement struct {
	DirectoryName string
	Source        Source
}

// ArchiveElement creates an archive in the output.
type ArchiveElement struct {
	FileName string
	Source   Source
}

// DirectoryCopyElement copies a directory.
type DirectoryCopyElement struct {
	FilePath string
	Source   Source
}

// FileCopyElement copies a single file, optionally renaming it.
type FileCopyElement struct {
	FilePath              string
	RenamedOutputFileName string
	Source                Source
}

// ExtractedDirectoryElement extracts a directory from an archive.
type ExtractedDirectoryElement struct {
	FilePath      string
	PathInArchive string
	Source        Source
}

// ArtifactOutputElement includes another artifact's output. A nil Artifact
// is a dangling reference.
type ArtifactOutputElement struct {
	Artifact *ArtifactID
	Source   Source
}

// ModuleOutputElement includes a module's production output.
type ModuleOutputElement struct {
	Module *ModuleID
	Source Source
}

// ModuleTestOutputElement includes a module's test output.
type ModuleTestOutputElement struct {
	Module *ModuleID
	Source Source
}

// ModuleSourceElement includes a module's sources.
type ModuleSourceElement struct {
	Module *ModuleID
	Source Source
}

// LibraryFilesElement includes the files of a library.
type LibraryFilesElement struct {
	Library *LibraryID
	Source  Source
}

// CustomElement is an element kind contributed by a plugin. ElementXML is
// the original tag, children included.
type CustomElement struct {
	ElementTypeID string
	ElementXML    string
	Source        Source
}

func (*ArtifactRootElement) TypeID() string       { return ElementRoot }
func (*DirectoryElement) TypeID() string          { return ElementDirectory }
func (*ArchiveElement) TypeID() string            { return ElementArchive }
func (*DirectoryCopyElement) TypeID() string      { return ElementDirectoryCopy }
func (*FileCopyElement) TypeID() string           { return ElementFileCopy }
func (*ExtractedDirectoryElement) TypeID() string { return ElementExtractedDir }
func (*ArtifactOutputElement) TypeID() string     { return ElementArtifactOutput }
func (*ModuleOutputElement) TypeID() string       { return ElementModuleOutput }
func (*ModuleTestOutputElement) TypeID() string   { return ElementModuleTestOutput }
func (*ModuleSourceElement) TypeID() string       { return ElementModuleSource }
func (*LibraryFilesElement) TypeID() string       { return ElementLibraryFiles }
func (e *CustomElement) TypeID() string           { return e.ElementTypeID }

func (e *ArtifactRootElement) EntitySource() Source       { return e.Source }
func (e *DirectoryElement) EntitySource() Source          { return e.Source }
func (e *ArchiveElement) EntitySource() Source            { return e.Source }
func (e *DirectoryCopyElement) EntitySource() Source      { return e.Source }
func (e *FileCopyElement) EntitySource() Source           { return e.Source }
func (e *ExtractedDirectoryElement) EntitySource() Source { return e.Source }
func (e *ArtifactOutputElement) EntitySource() Source     { return e.Source }
func (e *ModuleOutputElement) EntitySource() Source       { return e.Source }
func (e *ModuleTestOutputElement) EntitySource() Source   { return e.Source }
func (e *ModuleSourceElement) EntitySource() Source       { return e.Source }
func (e *LibraryFilesElement) EntitySource() Source       { return e.Source }
func (e *CustomElement) EntitySource() Source             { return e.Source }

func (*ArtifactRootElement) Kind() Kind       { return KindPackagingElement }
func (*DirectoryElement) Kind() Kind          { return KindPackagingElement }
func (*ArchiveElement) Kind() Kind            { return KindPackagingElement }
func (*DirectoryCopyElement) Kind() Kind      { return KindPackagingElement }
func (*FileCopyElement) Kind() Kind           { return KindPackagingElement }
func (*ExtractedDirectoryElement) Kind() Kind { return KindPackagingElement }
func (*ArtifactOutputElement) Kind() Kind     { return KindPackagingElement }
func (*ModuleOutputElement) Kind() Kind       { return KindPackagingElement }
func (*ModuleTestOutputElement) Kind() Kind   { return KindPackagingElement }
func (*ModuleSourceElement) Kind() Kind       { return KindPackagingElement }
func (*LibraryFilesElement) Kind() Kind       { return KindPackagingElement }
func (*CustomElement) Kind() Kind             { return KindPackagingElement }

func (*ArtifactRootElement) packagingElement()       {}
func (*DirectoryElement) packagingElement()          {}
func (*ArchiveElement) packagingElement()            {}
func (*DirectoryCopyElement) packagingElement()      {}
func (*FileCopyElement) packagingElement()           {}
func (*ExtractedDirectoryElement) packagingElement() {}
func (*ArtifactOutputElement) packagingElement()     {}
func (*ModuleOutputElement) packagingElement()       {}
func (*ModuleTestOutputElement) packagingElement()   {}
func (*ModuleSourceElement) packagingElement()       {}
func (*LibraryFilesElement) packagingElement()       {}
func (*CustomElement) packagingElement()             {}
