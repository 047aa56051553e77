package jps

import (
	"os"
	"path"

	"github.com/sirupsen/logrus"

	"github.com/dshills/jpsmodel/internal/project/vfs"
	"github.com/dshills/jpsmodel/internal/workspace/entity"
	"github.com/dshills/jpsmodel/internal/workspace/fileurl"
)

// Standard locations below the .idea directory.
const (
	IdeaDirName       = ".idea"
	ModulesFileName   = "modules.xml"
	MiscFileName      = "misc.xml"
	LibrariesDirName  = "libraries"
	ArtifactsDirName  = "artifacts"
	SdkTableFileName  = "jdk.table.xml"
	GlobalLibraryFile = "applicationLibraries.xml"
)

// Layout locates the configuration files of a directory-based project.
type Layout struct {
	// ProjectDir is the directory containing .idea.
	ProjectDir fileurl.URL
	// ExternalStorageRoot holds the imported configuration. Empty disables
	// the external storage.
	ExternalStorageRoot fileurl.URL
	// GlobalOptionsDir holds jdk.table.xml and applicationLibraries.xml.
	// Empty skips global entities.
	GlobalOptionsDir fileurl.URL
}

// IdeaDir returns the .idea directory.
func (l Layout) IdeaDir() fileurl.URL { return l.ProjectDir.Append(IdeaDirName) }

// ModulesFile returns .idea/modules.xml.
func (l Layout) ModulesFile() fileurl.URL { return l.IdeaDir().Append(ModulesFileName) }

// MiscFile returns .idea/misc.xml.
func (l Layout) MiscFile() fileurl.URL { return l.IdeaDir().Append(MiscFileName) }

// LibrariesDir returns .idea/libraries.
func (l Layout) LibrariesDir() fileurl.URL { return l.IdeaDir().Append(LibrariesDirName) }

// ArtifactsDir returns .idea/artifacts.
func (l Layout) ArtifactsDir() fileurl.URL { return l.IdeaDir().Append(ArtifactsDirName) }

// ExternalModulesFile returns the external module list.
func (l Layout) ExternalModulesFile() fileurl.URL {
	return l.ExternalStorageRoot.Append(path.Join("project", ModulesFileName))
}

// ExternalModulesDir returns the directory of external module files.
func (l Layout) ExternalModulesDir() fileurl.URL { return l.ExternalStorageRoot.Append("modules") }

// ExternalLibrariesFile returns the external library table.
func (l Layout) ExternalLibrariesFile() fileurl.URL {
	return l.ExternalStorageRoot.Append(path.Join("project", "libraries.xml"))
}

// ExternalArtifactsFile returns the external artifact table.
func (l Layout) ExternalArtifactsFile() fileurl.URL {
	return l.ExternalStorageRoot.Append(path.Join("project", "artifacts.xml"))
}

// Options configures OpenProject.
type Options struct {
	Layout Layout
	// Macros are extra path macros. PROJECT_DIR and USER_HOME are always
	// defined.
	Macros map[string]string
	// ExternalStorage overrides the setting read from misc.xml.
	ExternalStorage *bool
	// UnloadedModules are loaded into the unloaded storage.
	UnloadedModules []string
	// MaxConcurrency bounds parallel file loads.
	MaxConcurrency int
	Logger         *logrus.Logger
}

// Project bundles the collaborators of one opened project.
type Project struct {
	Layout      Layout
	Context     *SerializationContext
	Content     *FileContent
	Serializers *ProjectSerializers
}

// OpenProject wires the serializers of the standard project layout. The
// context is returned before loading so plugins can still be registered on
// it; nothing is read apart from misc.xml and the module lists.
func OpenProject(fsys vfs.FS, opts Options) (*Project, error) {
	return openProject(fsys, opts, nil)
}

// OpenProjectWithContext is OpenProject with a caller-provided context,
// for example one with custom serializers registered.
func OpenProjectWithContext(fsys vfs.FS, opts Options, sc *SerializationContext) (*Project, error) {
	return openProject(fsys, opts, sc)
}

func openProject(fsys vfs.FS, opts Options, sc *SerializationContext) (*Project, error) {
	layout := opts.Layout
	if sc == nil {
		sc = NewSerializationContext(opts.Logger)
	}
	log := sc.logger()
	sc.Project = entity.ProjectLocation{BaseDir: layout.ProjectDir}
	for _, name := range opts.UnloadedModules {
		sc.UnloadedModules[name] = true
	}

	macroPaths := map[string]string{MacroProjectDir: layout.ProjectDir.Path()}
	if home, err := os.UserHomeDir(); err == nil {
		macroPaths[MacroUserHome] = home
	}
	for k, v := range opts.Macros {
		macroPaths[k] = v
	}

	contentOpts := FileContentOptions{
		Macros:        NewPathMacros(macroPaths),
		ComponentDirs: []fileurl.URL{layout.LibrariesDir(), layout.ArtifactsDir()},
		Logger:        log,
	}
	if !layout.ExternalStorageRoot.IsEmpty() {
		contentOpts.ModuleDirs = []fileurl.URL{layout.ExternalModulesDir()}
	}
	if !layout.GlobalOptionsDir.IsEmpty() {
		contentOpts.ApplicationDirs = []fileurl.URL{layout.GlobalOptionsDir}
	}
	content := NewFileContent(fsys, contentOpts)

	enabled, err := ExternalStorageEnabled(content, layout.MiscFile())
	if err != nil {
		log.WithError(err).Warn("cannot read external storage setting")
	}
	if opts.ExternalStorage != nil {
		enabled = *opts.ExternalStorage
	}
	sc.ExternalStorageEnabled = enabled && !layout.ExternalStorageRoot.IsEmpty()

	cfg := Config{
		DirectoryFactories: []DirectorySerializerFactory{
			&LibrariesDirectoryFactory{Directory: layout.LibrariesDir()},
			&ArtifactsDirectoryFactory{Directory: layout.ArtifactsDir()},
		},
		ModuleLists: []ModuleListSerializer{
			NewModuleList(layout.ModulesFile(), layout.ProjectDir, sc),
		},
		FileSerializers: []FileEntitiesSerializer{
			NewProjectSettingsSerializer(layout.MiscFile(), sc.Project),
		},
		MaxConcurrency: opts.MaxConcurrency,
	}
	if sc.ExternalStorageEnabled {
		cfg.ModuleLists = append(cfg.ModuleLists,
			NewExternalModuleList(layout.ExternalModulesFile(), layout.ExternalModulesDir(), layout.ProjectDir, sc))
		cfg.FileSerializers = append(cfg.FileSerializers,
			NewExternalLibrariesSerializer(layout.ExternalLibrariesFile(), sc.Project),
			NewExternalArtifactsSerializer(layout.ExternalArtifactsFile(), sc.Project))
	}
	if !layout.GlobalOptionsDir.IsEmpty() {
		cfg.FileSerializers = append(cfg.FileSerializers,
			NewSdkTableSerializer(layout.GlobalOptionsDir.Append(SdkTableFileName)),
			NewGlobalLibrariesSerializer(layout.GlobalOptionsDir.Append(GlobalLibraryFile)))
	}

	sers, err := NewProjectSerializers(sc, fsys, content, cfg)
	log.WithFields(logrus.Fields{
		"project":          layout.ProjectDir.String(),
		"external_storage": sc.ExternalStorageEnabled,
	}).Debug("project layout opened")
	return &Project{Layout: layout, Context: sc, Content: content, Serializers: sers}, err
}
