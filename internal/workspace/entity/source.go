package entity

import "github.com/dshills/jpsmodel/internal/workspace/fileurl"

// Source records where an entity came from. All implementations are
// comparable and may be used as map keys.
type Source interface {
	// VirtualFileURL returns the file or directory the source refers to,
	// or fileurl.Empty for sources without a location.
	VirtualFileURL() fileurl.URL
	source()
}

// ProjectLocation identifies the project a project-level source belongs to.
type ProjectLocation struct {
	// BaseDir is the project directory (the parent of .idea).
	BaseDir fileurl.URL
}

// FileSource is a project file that holds exactly the entities loaded from
// it, such as a module .iml file or misc.xml.
type FileSource struct {
	File    fileurl.URL
	Project ProjectLocation
}

// VirtualFileURL implements Source.
func (s FileSource) VirtualFileURL() fileurl.URL { return s.File }

func (FileSource) source() {}

// DirectorySource is one file inside a directory-based storage such as
// .idea/libraries. The concrete file name is kept in a side table keyed by
// FileNameID so that renaming the entity can move it to a new file without
// changing its source.
type DirectorySource struct {
	Directory  fileurl.URL
	FileNameID int
	Project    ProjectLocation
}

// VirtualFileURL implements Source.
func (s DirectorySource) VirtualFileURL() fileurl.URL { return s.Directory }

func (DirectorySource) source() {}

// ImportedSource marks an entity imported from an external build system.
// Internal is the project file the entity is paired with; when
// StoredExternally is set the entity itself lives in the external storage.
type ImportedSource struct {
	Internal         Source
	ExternalSystemID string
	StoredExternally bool
}

// VirtualFileURL implements Source.
func (s ImportedSource) VirtualFileURL() fileurl.URL {
	if s.Internal == nil {
		return fileurl.Empty
	}
	return s.Internal.VirtualFileURL()
}

func (ImportedSource) source() {}

// GlobalSource is an application-level file such as jdk.table.xml.
type GlobalSource struct {
	File fileurl.URL
}

// VirtualFileURL implements Source.
func (s GlobalSource) VirtualFileURL() fileurl.URL { return s.File }

func (GlobalSource) source() {}

// NonPersistentSource marks entities that are never written to disk.
type NonPersistentSource struct{}

// VirtualFileURL implements Source.
func (NonPersistentSource) VirtualFileURL() fileurl.URL { return fileurl.Empty }

func (NonPersistentSource) source() {}

// InternalSource returns the project file source behind s, unwrapping
// ImportedSource.
func InternalSource(s Source) Source {
	if imp, ok := s.(ImportedSource); ok {
		return imp.Internal
	}
	return s
}

// IsStoredExternally reports whether s is an imported source kept in the
// external storage.
func IsStoredExternally(s Source) bool {
	imp, ok := s.(ImportedSource)
	return ok && imp.StoredExternally
}

// ExternalSystemID returns the external system id of an imported source.
func ExternalSystemID(s Source) string {
	if imp, ok := s.(ImportedSource); ok {
		return imp.ExternalSystemID
	}
	return ""
}

// Imported wraps internal into an ImportedSource when externalSystemID is
// set, returning internal unchanged otherwise.
func Imported(internal Source, externalSystemID string, storedExternally bool) Source {
	if externalSystemID == "" {
		return internal
	}
	return ImportedSource{
		Internal:         internal,
		ExternalSystemID: externalSystemID,
		StoredExternally: storedExternally,
	}
}

// OrphanageSource marks placeholder owners kept in an orphanage storage. A
// placeholder only carries the symbolic id of its real owner; its children
// wait there until that owner is loaded.
type OrphanageSource struct{}

// VirtualFileURL implements Source.
func (OrphanageSource) VirtualFileURL() fileurl.URL { return fileurl.Empty }

func (OrphanageSource) source() {}
