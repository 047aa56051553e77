package jps

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/jpsmodel/internal/workspace/entity"
	"github.com/dshills/jpsmodel/internal/workspace/fileurl"
	"github.com/dshills/jpsmodel/internal/workspace/storage"
)

func (l *loadedProject) reload(t *testing.T, change ChangedFiles) ReloadResult {
	t.Helper()
	var urls []fileurl.URL
	urls = append(urls, change.Added...)
	urls = append(urls, change.Changed...)
	urls = append(urls, change.Removed...)
	l.project.Content.Invalidate(urls...)

	res, err := l.project.Serializers.ReloadFromChangedFiles(context.Background(), change, l.project.Content)
	require.NoError(t, err)
	ApplyReload(res, l.builder, l.unloaded, l.orphanage)
	return res
}

func libraryNames(r storage.Reader) []string {
	var out []string
	for _, ref := range storage.All[*entity.Library](r) {
		if !ref.Entity.Table.IsModuleLevel() {
			out = append(out, ref.Entity.Name)
		}
	}
	return out
}

func TestReloadRemovedLibraryFile(t *testing.T) {
	fsys := newProjectFS(t, map[string]string{
		".idea/libraries/a.xml": libraryXML("a", "a.jar"),
		".idea/libraries/b.xml": libraryXML("b", "b.jar"),
		".idea/modules.xml":     modulesXML,
		"core.iml":              minimalIml,
	})
	l := loadProject(t, fsys, Options{})
	b := projectLibrary(t, l.builder, "b")

	require.NoError(t, fsys.Remove(projectPath(".idea/libraries/b.xml")))
	res := l.reload(t, ChangedFiles{Removed: []fileurl.URL{projectURL(".idea/libraries/b.xml")}})

	assert.Equal(t, map[entity.Source]struct{}{b.Entity.Source: {}}, res.ChangedSources)
	assert.Equal(t, []string{"a"}, libraryNames(l.builder))
	moduleNamed(t, l.builder, "core")
	assert.Empty(t, l.project.Serializers.SerializersFor(projectURL(".idea/libraries/b.xml")))
}

func TestReloadPicksUpNewLibraryFile(t *testing.T) {
	fsys := newProjectFS(t, map[string]string{".idea/libraries/a.xml": libraryXML("a", "a.jar")})
	l := loadProject(t, fsys, Options{})

	require.NoError(t, fsys.WriteFile(projectPath(".idea/libraries/c.xml"), []byte(libraryXML("c", "c.jar"))))
	res := l.reload(t, ChangedFiles{Added: []fileurl.URL{projectURL(".idea/libraries/c.xml")}})

	assert.Len(t, res.ChangedSources, 1)
	assert.ElementsMatch(t, []string{"a", "c"}, libraryNames(l.builder))
	assert.Len(t, l.project.Serializers.SerializersFor(projectURL(".idea/libraries/c.xml")), 1)

	// Files outside any storage are ignored.
	require.NoError(t, fsys.WriteFile(projectPath(".idea/workspace.xml"), []byte("<project/>")))
	res = l.reload(t, ChangedFiles{Added: []fileurl.URL{projectURL(".idea/workspace.xml")}})
	assert.Empty(t, res.ChangedSources)
}

func TestReloadAddedDirectory(t *testing.T) {
	fsys := newProjectFS(t, nil)
	l := loadProject(t, fsys, Options{})

	require.NoError(t, fsys.WriteFile(projectPath(".idea/libraries/a.xml"), []byte(libraryXML("a", "a.jar"))))
	require.NoError(t, fsys.WriteFile(projectPath(".idea/libraries/b.xml"), []byte(libraryXML("b", "b.jar"))))
	l.reload(t, ChangedFiles{Added: []fileurl.URL{projectURL(".idea")}})

	assert.ElementsMatch(t, []string{"a", "b"}, libraryNames(l.builder))
}

func TestReloadChangedLibraryKeepsSource(t *testing.T) {
	fsys := newProjectFS(t, map[string]string{".idea/libraries/a.xml": libraryXML("a", "a.jar")})
	l := loadProject(t, fsys, Options{})
	before := projectLibrary(t, l.builder, "a")

	require.NoError(t, fsys.WriteFile(projectPath(".idea/libraries/a.xml"), []byte(libraryXML("a", "a2.jar"))))
	l.reload(t, ChangedFiles{Changed: []fileurl.URL{projectURL(".idea/libraries/a.xml")}})

	after := projectLibrary(t, l.builder, "a")
	assert.Equal(t, before.Entity.Source, after.Entity.Source)
	assert.Equal(t, fileurl.Parse("jar:///work/app/lib/a2.jar!/"), after.Entity.Roots[0].URL)
	assert.Len(t, storage.All[*entity.Library](l.builder), 1)
}

func TestReloadModuleListAddsModule(t *testing.T) {
	fsys := newProjectFS(t, map[string]string{
		".idea/modules.xml": modulesXML,
		"core.iml":          minimalIml,
	})
	l := loadProject(t, fsys, Options{})
	core := moduleNamed(t, l.builder, "core")

	require.NoError(t, fsys.WriteFile(projectPath("api/api.iml"), []byte(minimalIml)))
	require.NoError(t, fsys.WriteFile(projectPath(".idea/modules.xml"), []byte(`<?xml version="1.0" encoding="UTF-8"?>
<project version="4">
  <component name="ProjectModuleManager">
    <modules>
      <module fileurl="file://$PROJECT_DIR$/api/api.iml" filepath="$PROJECT_DIR$/api/api.iml" group="libs" />
      <module fileurl="file://$PROJECT_DIR$/core.iml" filepath="$PROJECT_DIR$/core.iml" />
    </modules>
  </component>
</project>
`)))
	res := l.reload(t, ChangedFiles{Changed: []fileurl.URL{projectURL(".idea/modules.xml")}})

	api := entity.FileSource{File: projectURL("api/api.iml"), Project: l.project.Context.Project}
	assert.Equal(t, map[entity.Source]struct{}{api: {}}, res.ChangedSources)

	mod := moduleNamed(t, l.builder, "api")
	group, ok := storage.ChildOf[*entity.ModuleGroupPath](l.builder, mod.ID)
	require.True(t, ok)
	assert.Equal(t, []string{"libs"}, group.Entity.Path)
	assert.Equal(t, core.ID, moduleNamed(t, l.builder, "core").ID, "unchanged module is kept")

	s, ok := l.project.Serializers.FindModuleSerializer("api")
	require.True(t, ok)
	assert.Equal(t, projectURL("api/api.iml"), s.FileURL())
}

func TestReloadModuleListDropsModule(t *testing.T) {
	fsys := newProjectFS(t, map[string]string{
		".idea/modules.xml": modulesXML,
		"core.iml":          minimalIml,
	})
	l := loadProject(t, fsys, Options{})

	require.NoError(t, fsys.WriteFile(projectPath(".idea/modules.xml"), []byte(`<project version="4">
  <component name="ProjectModuleManager">
    <modules/>
  </component>
</project>
`)))
	l.reload(t, ChangedFiles{Changed: []fileurl.URL{projectURL(".idea/modules.xml")}})

	assert.Empty(t, storage.All[*entity.Module](l.builder))
	_, ok := l.project.Serializers.FindModuleSerializer("core")
	assert.False(t, ok)
}

func TestReloadRemovedModuleFile(t *testing.T) {
	fsys := newProjectFS(t, map[string]string{
		".idea/modules.xml": modulesXML,
		"core.iml":          minimalIml,
	})
	l := loadProject(t, fsys, Options{})

	require.NoError(t, fsys.Remove(projectPath("core.iml")))
	l.reload(t, ChangedFiles{Removed: []fileurl.URL{projectURL("core.iml")}})

	// The module is still listed, so it reloads without content.
	mod := moduleNamed(t, l.builder, "core")
	assert.Empty(t, storage.ChildrenOf[*entity.ContentRoot](l.builder, mod.ID))
	assert.Equal(t, []entity.Dependency{entity.ModuleSourceDependency{}}, mod.Entity.Dependencies)
	_, ok := l.project.Serializers.FindModuleSerializer("core")
	assert.True(t, ok)
}

func TestReloadAdoptsLocalContentRootsOfNewExternalModule(t *testing.T) {
	localIml := `<module external.system.id="GRADLE" version="4">
  <component name="NewModuleRootManager">
    <content url="file://$MODULE_DIR$/extra" />
  </component>
</module>
`
	emptyList := `<project version="4">
  <component name="ExternalProjectModuleManager">
    <modules/>
  </component>
</project>
`
	files := externalFiles(map[string]string{
		"core.iml":                     localIml,
		extPath("project/modules.xml"): emptyList,
	})
	delete(files, extPath("modules/core.xml"))
	fsys := newProjectFS(t, files)
	l := loadProject(t, fsys, externalOptions())
	assert.Empty(t, storage.All[*entity.Module](l.builder))
	assert.NotEmpty(t, l.orphanage.IDs(), "content roots wait for their module")

	require.NoError(t, fsys.WriteFile(extPath("modules/core.xml"), []byte(externalCoreXML)))
	require.NoError(t, fsys.WriteFile(extPath("project/modules.xml"), []byte(externalModulesXML)))
	l.reload(t, ChangedFiles{
		Added:   []fileurl.URL{fileurl.FromPath(extPath("modules/core.xml"))},
		Changed: []fileurl.URL{fileurl.FromPath(extPath("project/modules.xml"))},
	})

	mod := moduleNamed(t, l.builder, "core")
	assert.Len(t, storage.ChildrenOf[*entity.ContentRoot](l.builder, mod.ID), 2)
	assert.Empty(t, l.orphanage.IDs())
}

func TestReloadHonoursCancellation(t *testing.T) {
	fsys := newProjectFS(t, map[string]string{".idea/libraries/a.xml": libraryXML("a", "a.jar")})
	l := loadProject(t, fsys, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := l.project.Serializers.ReloadFromChangedFiles(ctx, ChangedFiles{
		Changed: []fileurl.URL{projectURL(".idea/libraries/a.xml")},
	}, l.project.Content)
	assert.ErrorIs(t, err, context.Canceled)
}
