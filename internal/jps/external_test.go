package jps

import (
	"path"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/jpsmodel/internal/workspace/entity"
	"github.com/dshills/jpsmodel/internal/workspace/fileurl"
	"github.com/dshills/jpsmodel/internal/workspace/storage"
)

const externalModulesXML = `<?xml version="1.0" encoding="UTF-8"?>
<project version="4">
  <component name="ExternalProjectModuleManager">
    <modules>
      <module fileurl="file://$PROJECT_DIR$/core.iml" filepath="$PROJECT_DIR$/core.iml" />
    </modules>
  </component>
</project>
`

const externalCoreXML = `<?xml version="1.0" encoding="UTF-8"?>
<module type="JAVA_MODULE" version="4">
  <component name="ExternalSystem" externalSystem="GRADLE" linkedProjectId="core" />
  <component name="NewModuleRootManager">
    <content url="file://$MODULE_DIR$/src">
      <sourceFolder url="file://$MODULE_DIR$/src" isTestSource="false" />
    </content>
    <orderEntry type="sourceFolder" forTests="false" />
  </component>
</module>
`

const externalLibrariesXML = `<?xml version="1.0" encoding="UTF-8"?>
<project version="4">
  <component name="libraryTable">
    <library name="Gradle: guava" external-system-id="GRADLE">
      <CLASSES>
        <root url="jar://$PROJECT_DIR$/lib/guava.jar!/" />
      </CLASSES>
      <JAVADOC />
      <SOURCES />
    </library>
    <library name="Gradle: junit" external-system-id="GRADLE">
      <CLASSES>
        <root url="jar://$PROJECT_DIR$/lib/junit.jar!/" />
      </CLASSES>
      <JAVADOC />
      <SOURCES />
    </library>
  </component>
</project>
`

func extPath(rel string) string {
	return path.Join(testExtRoot, rel)
}

func externalOptions() Options {
	return Options{Layout: Layout{ExternalStorageRoot: fileurl.FromPath(testExtRoot)}}
}

func externalFiles(files map[string]string) map[string]string {
	out := map[string]string{
		".idea/misc.xml":                 externalStorageMisc,
		".idea/modules.xml":              modulesXML,
		extPath("project/modules.xml"):   externalModulesXML,
		extPath("modules/core.xml"):      externalCoreXML,
		extPath("project/libraries.xml"): externalLibrariesXML,
	}
	for k, v := range files {
		out[k] = v
	}
	return out
}

func TestExternalStorageEnabledByMisc(t *testing.T) {
	l := openTestProject(t, newProjectFS(t, externalFiles(nil)), externalOptions())
	assert.True(t, l.project.Context.ExternalStorageEnabled)

	off := false
	opts := externalOptions()
	opts.ExternalStorage = &off
	l = openTestProject(t, newProjectFS(t, externalFiles(nil)), opts)
	assert.False(t, l.project.Context.ExternalStorageEnabled)

	// Without a storage root the setting has no effect.
	l = openTestProject(t, newProjectFS(t, externalFiles(nil)), Options{})
	assert.False(t, l.project.Context.ExternalStorageEnabled)
}

func TestDuplicateModulePrefersExternalCopy(t *testing.T) {
	fsys := newProjectFS(t, externalFiles(map[string]string{"core.iml": minimalIml}))
	l := loadProject(t, fsys, externalOptions())
	require.NoError(t, l.result.Err)

	modules := storage.All[*entity.Module](l.builder)
	require.Len(t, modules, 1)
	mod := modules[0].Entity
	assert.True(t, entity.IsStoredExternally(mod.Source))
	assert.Equal(t, "GRADLE", entity.ExternalSystemID(mod.Source))

	internal := entity.FileSource{File: projectURL("core.iml"), Project: l.project.Context.Project}
	assert.Equal(t, []entity.Source{internal}, l.result.SourcesToUpdate)

	opts, ok := storage.ChildOf[*entity.ExternalSystemModuleOptions](l.builder, modules[0].ID)
	require.True(t, ok)
	assert.Equal(t, "core", opts.Entity.LinkedProjectID)
}

func TestExternalModuleKeepsLocalContentRoots(t *testing.T) {
	localIml := `<?xml version="1.0" encoding="UTF-8"?>
<module external.system.id="GRADLE" version="4">
  <component name="NewModuleRootManager">
    <content url="file://$MODULE_DIR$/extra" />
  </component>
</module>
`
	fsys := newProjectFS(t, externalFiles(map[string]string{"core.iml": localIml}))
	l := loadProject(t, fsys, externalOptions())
	require.NoError(t, l.result.Err)
	assert.Empty(t, l.result.SourcesToUpdate)

	mod := moduleNamed(t, l.builder, "core")
	roots := storage.ChildrenOf[*entity.ContentRoot](l.builder, mod.ID)
	require.Len(t, roots, 2)
	byURL := map[fileurl.URL]entity.Source{}
	for _, cr := range roots {
		byURL[cr.Entity.URL] = cr.Entity.Source
	}
	assert.True(t, entity.IsStoredExternally(byURL[projectURL("src")]))
	assert.Equal(t, entity.FileSource{File: projectURL("core.iml"), Project: l.project.Context.Project}, byURL[projectURL("extra")])
	assert.Empty(t, l.orphanage.IDs(), "adopted orphans leave the orphanage")

	l.saveAll(t)
	iml := readProjectFile(t, fsys, "core.iml")
	assert.Contains(t, iml, `<module external.system.id="GRADLE" version="4">`)
	assert.Contains(t, iml, `<content url="file://$MODULE_DIR$/extra"/>`)
	assert.NotContains(t, iml, "$MODULE_DIR$/src")

	ext := readProjectFile(t, fsys, extPath("modules/core.xml"))
	assert.Contains(t, ext, `<content url="file://$MODULE_DIR$/src">`)
	assert.NotContains(t, ext, "extra")

	before := describe(l.builder)
	reloaded := loadProject(t, fsys, externalOptions())
	assert.Equal(t, before, describe(reloaded.builder))
}

func TestObsoleteExternalFileIsDeleted(t *testing.T) {
	fsys := newProjectFS(t, externalFiles(nil))
	l := loadProject(t, fsys, externalOptions())
	libsFile := extPath("project/libraries.xml")

	guava, ok := storage.ResolveAs[*entity.Library](l.builder, entity.LibraryID{Name: "Gradle: guava", Table: entity.ProjectLibraryTable})
	require.True(t, ok)
	src := guava.Entity.Source
	assert.True(t, entity.IsStoredExternally(src))

	l.builder.Remove(guava.ID)
	l.save(t, src)
	content := readProjectFile(t, fsys, libsFile)
	assert.NotContains(t, content, "guava")
	assert.Contains(t, content, `<library name="Gradle: junit" external-system-id="GRADLE">`)

	junit, ok := storage.ResolveAs[*entity.Library](l.builder, entity.LibraryID{Name: "Gradle: junit", Table: entity.ProjectLibraryTable})
	require.True(t, ok)
	l.builder.Remove(junit.ID)
	touched := l.save(t, junit.Entity.Source)
	assert.Equal(t, []string{libsFile}, urlPaths(touched))
	assert.False(t, fsys.Exists(libsFile))
}

func TestImportedLibraryIsRoutedToExternalStorage(t *testing.T) {
	fsys := newProjectFS(t, externalFiles(nil))
	l := loadProject(t, fsys, externalOptions())

	dirSource := entity.DirectorySource{
		Directory:  l.project.Layout.LibrariesDir(),
		FileNameID: nextFileNameID(),
		Project:    l.project.Context.Project,
	}
	src := entity.ImportedSource{Internal: dirSource, ExternalSystemID: "GRADLE", StoredExternally: true}
	l.builder.Add(&entity.Library{
		Name:   "Gradle: okio",
		Table:  entity.ProjectLibraryTable,
		Roots:  []entity.LibraryRoot{{URL: fileurl.Parse("jar:///work/app/lib/okio.jar!/"), Type: entity.RootTypeClasses}},
		Source: src,
	})

	touched := l.save(t, src)
	assert.Equal(t, []string{extPath("project/libraries.xml")}, urlPaths(touched))
	assert.Contains(t, readProjectFile(t, fsys, extPath("project/libraries.xml")), `<library name="Gradle: okio" external-system-id="GRADLE">`)
	assert.False(t, fsys.Exists(projectPath(".idea/libraries/Gradle__okio.xml")))

	reloaded := loadProject(t, fsys, externalOptions())
	lib, ok := storage.ResolveAs[*entity.Library](reloaded.builder, entity.LibraryID{Name: "Gradle: okio", Table: entity.ProjectLibraryTable})
	require.True(t, ok)
	assert.Equal(t, "GRADLE", entity.ExternalSystemID(lib.Entity.Source))
}

func TestExternalArtifactsKeepPersistedOrder(t *testing.T) {
	artifacts := `<?xml version="1.0" encoding="UTF-8"?>
<project version="4">
  <component name="ArtifactManager">
    <artifact name="zeta" external-system-id="GRADLE">
      <root id="root" />
    </artifact>
    <artifact name="alpha" external-system-id="GRADLE">
      <root id="root" />
    </artifact>
  </component>
</project>
`
	fsys := newProjectFS(t, externalFiles(map[string]string{extPath("project/artifacts.xml"): artifacts}))
	l := loadProject(t, fsys, externalOptions())

	orders := storage.All[*entity.ArtifactsOrder](l.builder)
	require.Len(t, orders, 1)
	assert.Equal(t, []string{"zeta", "alpha"}, orders[0].Entity.Order)

	internal := entity.FileSource{File: fileurl.FromPath(extPath("project/artifacts.xml")), Project: l.project.Context.Project}
	src := entity.ImportedSource{Internal: internal, ExternalSystemID: "GRADLE", StoredExternally: true}
	for _, name := range []string{"middle", "beta"} {
		id := l.builder.Add(&entity.Artifact{Name: name, ArtifactType: plainArtifactType, Source: src})
		l.builder.AddChild(id, &entity.ArtifactRootElement{Source: src})
	}
	l.save(t, src)

	reloaded := loadProject(t, fsys, externalOptions())
	orders = storage.All[*entity.ArtifactsOrder](reloaded.builder)
	require.Len(t, orders, 1)
	assert.Equal(t, []string{"zeta", "alpha", "beta", "middle"}, orders[0].Entity.Order)
}
