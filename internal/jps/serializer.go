package jps

import (
	"github.com/dshills/jpsmodel/internal/workspace/entity"
	"github.com/dshills/jpsmodel/internal/workspace/fileurl"
	"github.com/dshills/jpsmodel/internal/workspace/storage"
)

// LoadResult is the outcome of loading one file.
//
// Builder holds the loaded entities. Orphanage holds entities whose owner
// lives in another file and has not been loaded into Builder. Err reports
// a failure scoped to the file; entities loaded before the failure are
// kept. Unloaded marks a module that belongs to the unloaded storage.
type LoadResult struct {
	Builder   *storage.Builder
	Orphanage *storage.Builder
	Err       error
	Unloaded  bool
}

func newLoadResult() LoadResult {
	return LoadResult{Builder: storage.NewBuilder(), Orphanage: storage.NewBuilder()}
}

// FileEntitiesSerializer maps one configuration file onto entities.
type FileEntitiesSerializer interface {
	// InternalEntitySource is the source of entities stored internally.
	// Entities imported from an external system wrap it in an
	// ImportedSource.
	InternalEntitySource() entity.Source
	// FileURL is the file read and written by the serializer.
	FileURL() fileurl.URL
	// MainEntityKind is the kind of the top-level entities of the file.
	MainEntityKind() entity.Kind
	// IsExternalStorage reports whether the file is in the external
	// storage.
	IsExternalStorage() bool
	// LoadEntities reads the file.
	LoadEntities(reader FileContentReader, reporter ErrorReporter) LoadResult
	// SaveEntities writes the given main entities (and what they own)
	// to the file.
	SaveEntities(mainEntities []storage.ID, r storage.Reader, writer FileContentWriter) error
	// DeleteObsoleteFile clears the file contents owned by the serializer.
	DeleteObsoleteFile(writer FileContentWriter)
}

// DirectorySerializerFactory creates serializers for the files of a
// directory-based storage such as .idea/libraries.
type DirectorySerializerFactory interface {
	// DirectoryURL is the storage directory.
	DirectoryURL() fileurl.URL
	// MainEntityKind is the kind of entity stored in each file.
	MainEntityKind() entity.Kind
	// CreateSerializer creates the serializer of one file.
	CreateSerializer(fileURL fileurl.URL, source entity.DirectorySource) FileEntitiesSerializer
	// FileNameFor returns the base file name an entity is stored under.
	FileNameFor(e entity.Entity) string
}

// ModulePath is one entry of a module list.
type ModulePath struct {
	File  fileurl.URL
	Group string
}

// ModuleListSerializer reads and writes a modules.xml file.
type ModuleListSerializer interface {
	// FileURL is the module list file.
	FileURL() fileurl.URL
	// IsExternalStorage reports whether the list is in the external
	// storage.
	IsExternalStorage() bool
	// LoadFileList returns the listed module files.
	LoadFileList(reader FileContentReader) ([]ModulePath, error)
	// CreateSerializer returns the serializer for a listed module.
	CreateSerializer(path ModulePath) FileEntitiesSerializer
	// SaveModuleList writes the list.
	SaveModuleList(paths []ModulePath, writer FileContentWriter)
	// ModuleFileURL returns the .iml location for a new module.
	ModuleFileURL(moduleName string) fileurl.URL
}

// modulePathSerializer is implemented by module serializers.
type modulePathSerializer interface {
	FileEntitiesSerializer
	ModulePath() ModulePath
}
