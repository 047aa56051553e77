package jps

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/jpsmodel/internal/workspace/fileurl"
)

func TestWatchedPaths(t *testing.T) {
	fsys := newProjectFS(t, map[string]string{
		".idea/libraries/a.xml": libraryXML("a", "a.jar"),
		".idea/modules.xml":     modulesXML,
		"core.iml":              minimalIml,
	})
	l := openTestProject(t, fsys, Options{})

	want := []fileurl.URL{
		projectURL(".idea/artifacts"),
		projectURL(".idea/libraries"),
		projectURL(".idea/libraries/a.xml"),
		projectURL(".idea/misc.xml"),
		projectURL(".idea/modules.xml"),
		projectURL("core.iml"),
	}
	assert.Equal(t, want, l.project.Serializers.WatchedPaths())
}

func TestFindModuleSerializerPrefersInternalFile(t *testing.T) {
	l := openTestProject(t, newProjectFS(t, externalFiles(map[string]string{"core.iml": minimalIml})), externalOptions())

	s, ok := l.project.Serializers.FindModuleSerializer("core")
	require.True(t, ok)
	assert.Equal(t, projectURL("core.iml"), s.FileURL())
	assert.False(t, s.IsExternalStorage())

	_, ok = l.project.Serializers.FindModuleSerializer("missing")
	assert.False(t, ok)
}

func TestFindModuleSerializerFallsBackToExternal(t *testing.T) {
	files := externalFiles(nil)
	files[".idea/modules.xml"] = `<project version="4">
  <component name="ProjectModuleManager">
    <modules/>
  </component>
</project>
`
	l := openTestProject(t, newProjectFS(t, files), externalOptions())

	s, ok := l.project.Serializers.FindModuleSerializer("core")
	require.True(t, ok)
	assert.True(t, s.IsExternalStorage())
	assert.Equal(t, fileurl.FromPath(extPath("modules/core.xml")), s.FileURL())
}

func TestMissingModuleListIsEmpty(t *testing.T) {
	l := loadProject(t, newProjectFS(t, nil), Options{})
	require.NoError(t, l.result.Err)
	paths, err := l.project.Serializers.ModuleListSerializers()[0].LoadFileList(l.project.Content)
	require.NoError(t, err)
	assert.Empty(t, paths)
}
