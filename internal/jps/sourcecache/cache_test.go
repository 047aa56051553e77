package sourcecache

import (
	"context"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/jpsmodel/internal/jps"
	"github.com/dshills/jpsmodel/internal/project/vfs"
	"github.com/dshills/jpsmodel/internal/workspace/entity"
	"github.com/dshills/jpsmodel/internal/workspace/fileurl"
	"github.com/dshills/jpsmodel/internal/workspace/storage"
)

const libraryFile = `<component name="libraryTable">
  <library name="guava">
    <CLASSES>
      <root url="jar://$PROJECT_DIR$/lib/guava.jar!/"/>
    </CLASSES>
    <JAVADOC/>
    <SOURCES/>
  </library>
</component>
`

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func openCache(t *testing.T, dir string) *Cache {
	t.Helper()
	c, err := Open(Config{Dir: dir, Logger: quietLogger()})
	require.NoError(t, err)
	return c
}

func TestSaveAndLoad(t *testing.T) {
	c := openCache(t, "")
	defer c.Close()

	project := fileurl.FromPath("/work/app")
	libs := fileurl.FromPath("/work/app/.idea/libraries")
	entries := []jps.SourceName{
		{Directory: libs, FileName: "a.xml", FileNameID: 7},
		{Directory: libs, FileName: "b.xml", FileNameID: 9},
	}
	require.NoError(t, c.Save(project, entries))

	got, err := c.Load(project)
	require.NoError(t, err)
	assert.ElementsMatch(t, entries, got)

	// Saving replaces the previous entries.
	require.NoError(t, c.Save(project, entries[1:]))
	got, err = c.Load(project)
	require.NoError(t, err)
	assert.Equal(t, entries[1:], got)

	other, err := c.Load(fileurl.FromPath("/work/other"))
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestClosedCache(t *testing.T) {
	c := openCache(t, "")
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	_, err := c.Load(fileurl.FromPath("/work/app"))
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, c.Save(fileurl.FromPath("/work/app"), nil), ErrClosed)
}

func loadLibrarySource(t *testing.T, c *Cache, fsys vfs.FS) entity.DirectorySource {
	t.Helper()
	projectDir := fileurl.FromPath("/work/app")
	sc := jps.NewSerializationContext(quietLogger())
	require.NoError(t, c.Seed(projectDir, sc.SourceNames))

	p, err := jps.OpenProjectWithContext(fsys, jps.Options{
		Layout: jps.Layout{ProjectDir: projectDir},
		Logger: quietLogger(),
	}, sc)
	require.NoError(t, err)

	b := storage.NewBuilder()
	_, err = p.Serializers.LoadAll(context.Background(), p.Content, b, storage.NewBuilder(), storage.NewBuilder())
	require.NoError(t, err)
	libs := storage.All[*entity.Library](b)
	require.Len(t, libs, 1)
	require.NoError(t, c.Store(projectDir, sc.SourceNames))

	src, ok := libs[0].Entity.Source.(entity.DirectorySource)
	require.True(t, ok)
	return src
}

func TestIDsPersistAcrossSessions(t *testing.T) {
	dir := t.TempDir()
	fsys := vfs.NewMemFS()
	require.NoError(t, fsys.AddFile("/work/app/.idea/libraries/guava.xml", libraryFile))

	c := openCache(t, dir)
	first := loadLibrarySource(t, c, fsys)
	require.NoError(t, c.Close())

	// A fresh table without the cache gets a new id.
	fresh := jps.NewFileInDirectorySourceNames()
	assert.NotEqual(t, first.FileNameID, fresh.SourceFor(first.Directory, "guava.xml"))

	c = openCache(t, dir)
	defer c.Close()
	second := loadLibrarySource(t, c, fsys)
	assert.Equal(t, first, second)
}
