package jps

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"reflect"
	"sort"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/dshills/jpsmodel/internal/project/vfs"
	"github.com/dshills/jpsmodel/internal/workspace/entity"
	"github.com/dshills/jpsmodel/internal/workspace/fileurl"
	"github.com/dshills/jpsmodel/internal/workspace/storage"
)

const (
	testProjectDir = "/work/app"
	testExtRoot    = "/cache/ext"
)

const modulesXML = `<?xml version="1.0" encoding="UTF-8"?>
<project version="4">
  <component name="ProjectModuleManager">
    <modules>
      <module fileurl="file://$PROJECT_DIR$/core.iml" filepath="$PROJECT_DIR$/core.iml" />
    </modules>
  </component>
</project>
`

const minimalIml = `<?xml version="1.0" encoding="UTF-8"?>
<module type="JAVA_MODULE" version="4">
  <component name="NewModuleRootManager">
    <content url="file://$MODULE_DIR$/src">
      <sourceFolder url="file://$MODULE_DIR$/src" isTestSource="false" />
    </content>
  </component>
</module>
`

const externalStorageMisc = `<?xml version="1.0" encoding="UTF-8"?>
<project version="4">
  <component name="ExternalStorageConfigurationManager" enabled="true" />
</project>
`

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func projectPath(rel string) string {
	if path.IsAbs(rel) {
		return rel
	}
	return path.Join(testProjectDir, rel)
}

func projectURL(rel string) fileurl.URL {
	return fileurl.FromPath(projectPath(rel))
}

// newProjectFS creates a MemFS with files relative to the project
// directory. Absolute names are used as is.
func newProjectFS(t *testing.T, files map[string]string) *vfs.MemFS {
	t.Helper()
	fsys := vfs.NewMemFS()
	for name, content := range files {
		require.NoError(t, fsys.AddFile(projectPath(name), content))
	}
	return fsys
}

func readProjectFile(t *testing.T, fsys vfs.FS, rel string) string {
	t.Helper()
	data, err := fsys.ReadFile(projectPath(rel))
	require.NoError(t, err)
	return string(data)
}

type loadedProject struct {
	fs        vfs.FS
	project   *Project
	builder   *storage.Builder
	unloaded  *storage.Builder
	orphanage *storage.Builder
	result    LoadAllResult
}

func testOptions(opts Options) Options {
	if opts.Layout.ProjectDir.IsEmpty() {
		opts.Layout.ProjectDir = fileurl.FromPath(testProjectDir)
	}
	if opts.Logger == nil {
		opts.Logger = quietLogger()
	}
	return opts
}

func openTestProject(t *testing.T, fsys vfs.FS, opts Options) *loadedProject {
	t.Helper()
	p, err := OpenProject(fsys, testOptions(opts))
	require.NoError(t, err)
	return &loadedProject{fs: fsys, project: p}
}

func loadProject(t *testing.T, fsys vfs.FS, opts Options) *loadedProject {
	t.Helper()
	l := openTestProject(t, fsys, opts)
	l.load(t)
	return l
}

func (l *loadedProject) load(t *testing.T) {
	t.Helper()
	l.builder = storage.NewBuilder()
	l.unloaded = storage.NewBuilder()
	l.orphanage = storage.NewBuilder()
	res, err := l.project.Serializers.LoadAll(context.Background(), l.project.Content, l.builder, l.unloaded, l.orphanage)
	require.NoError(t, err)
	storage.AdoptOrphans(l.builder, l.orphanage)
	l.result = res
}

// save writes the given sources and flushes the file content.
func (l *loadedProject) save(t *testing.T, sources ...entity.Source) []fileurl.URL {
	t.Helper()
	require.NoError(t, l.project.Serializers.SaveEntities(l.builder, l.unloaded, sources, l.project.Content))
	touched, err := l.project.Content.Flush()
	require.NoError(t, err)
	return touched
}

func (l *loadedProject) saveAll(t *testing.T) []fileurl.URL {
	t.Helper()
	return l.save(t, append(l.builder.Sources(), l.unloaded.Sources()...)...)
}

func moduleNamed(t *testing.T, r storage.Reader, name string) storage.Ref[*entity.Module] {
	t.Helper()
	ref, ok := storage.ResolveAs[*entity.Module](r, entity.ModuleID{Name: name})
	require.True(t, ok, "module %s not found", name)
	return ref
}

// describe renders every entity with its ancestor chain, ignoring sources,
// so trees loaded by different serializer instances compare equal.
func describe(r storage.Reader) []string {
	var out []string
	var walk func(id storage.ID, prefix string)
	walk = func(id storage.ID, prefix string) {
		e, _ := r.Entity(id)
		line := prefix + "/" + entityString(e)
		out = append(out, line)
		for _, c := range r.Children(id) {
			walk(c, line)
		}
	}
	for _, id := range r.IDs() {
		if _, hasParent := r.Parent(id); !hasParent {
			walk(id, "")
		}
	}
	sort.Strings(out)
	return out
}

func entityString(e entity.Entity) string {
	v := reflect.ValueOf(e).Elem()
	c := reflect.New(v.Type()).Elem()
	c.Set(v)
	if f := c.FieldByName("Source"); f.IsValid() && f.CanSet() {
		f.Set(reflect.Zero(f.Type()))
	}
	data, _ := json.Marshal(c.Interface())
	s := fmt.Sprintf("%T%s", e, data)
	if m, ok := e.(*entity.Module); ok {
		for _, d := range m.Dependencies {
			s += fmt.Sprintf(" %T", d)
		}
	}
	return s
}

func urlPaths(urls []fileurl.URL) []string {
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		out = append(out, u.Path())
	}
	return out
}
