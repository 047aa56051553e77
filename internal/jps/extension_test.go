package jps

import (
	"testing"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/jpsmodel/internal/project/vfs"
	"github.com/dshills/jpsmodel/internal/workspace/entity"
	"github.com/dshills/jpsmodel/internal/workspace/fileurl"
	"github.com/dshills/jpsmodel/internal/workspace/storage"
)

type reportedError struct {
	message string
	file    fileurl.URL
}

func openProjectWith(t *testing.T, fsys vfs.FS, sc *SerializationContext) *loadedProject {
	t.Helper()
	p, err := OpenProjectWithContext(fsys, testOptions(Options{}), sc)
	require.NoError(t, err)
	l := &loadedProject{fs: fsys, project: p}
	l.load(t)
	return l
}

func collectingContext() (*SerializationContext, *[]reportedError) {
	sc := NewSerializationContext(quietLogger())
	var reported []reportedError
	sc.ErrorReporter = ErrorReporterFunc(func(message string, file fileurl.URL) {
		reported = append(reported, reportedError{message, file})
	})
	return sc, &reported
}

const classpathIml = `<?xml version="1.0" encoding="UTF-8"?>
<module classpath="eclipse" type="JAVA_MODULE" version="4">
  <component name="NewModuleRootManager">
    <content url="file://$MODULE_DIR$/src" />
    <orderEntry type="sourceFolder" forTests="false" />
  </component>
</module>
`

// fakeRoots replaces the root manager with a single fixed content root.
type fakeRoots struct {
	id    string
	saved int
}

func (f *fakeRoots) ID() string { return f.id }

func (f *fakeRoots) LoadRoots(b *storage.Builder, moduleID storage.ID, source entity.Source, imlFile fileurl.URL, _ FileContentReader, _ ErrorReporter) error {
	b.AddChild(moduleID, &entity.ContentRoot{URL: fileurl.FromPath(projectPath("eclipse-src")), Source: source})
	return nil
}

func (f *fakeRoots) SaveRoots(storage.Reader, storage.ID, fileurl.URL, FileContentWriter) error {
	f.saved++
	return nil
}

func contentRootURLs(r storage.Reader, moduleID storage.ID) []fileurl.URL {
	var out []fileurl.URL
	for _, cr := range storage.ChildrenOf[*entity.ContentRoot](r, moduleID) {
		out = append(out, cr.Entity.URL)
	}
	return out
}

func TestUnknownClasspathProviderIsReported(t *testing.T) {
	sc, reported := collectingContext()
	fsys := newProjectFS(t, map[string]string{".idea/modules.xml": modulesXML, "core.iml": classpathIml})
	l := openProjectWith(t, fsys, sc)

	require.Len(t, *reported, 1)
	assert.Equal(t, "Classpath storage provider eclipse not found", (*reported)[0].message)
	assert.Equal(t, projectURL("core.iml"), (*reported)[0].file)

	// Loading falls back to the root manager.
	core := moduleNamed(t, l.builder, "core")
	assert.Equal(t, []fileurl.URL{projectURL("src")}, contentRootURLs(l.builder, core.ID))
}

func TestClasspathProviderReplacesRootManager(t *testing.T) {
	sc, reported := collectingContext()
	roots := &fakeRoots{id: "eclipse"}
	sc.RegisterModuleRootsSerializer(roots)
	fsys := newProjectFS(t, map[string]string{".idea/modules.xml": modulesXML, "core.iml": classpathIml})
	l := openProjectWith(t, fsys, sc)

	assert.Empty(t, *reported)
	core := moduleNamed(t, l.builder, "core")
	assert.Equal(t, []fileurl.URL{projectURL("eclipse-src")}, contentRootURLs(l.builder, core.ID))

	l.saveAll(t)
	assert.Equal(t, 1, roots.saved)
	assert.Contains(t, readProjectFile(t, fsys, "core.iml"), `classpath="eclipse"`)
}

const pluginIml = `<?xml version="1.0" encoding="UTF-8"?>
<module type="JAVA_MODULE" version="4">
  <component name="FacetManager">
    <facet type="spring" name="Spring">
      <configuration />
    </facet>
    <facet type="web" name="Web">
      <configuration />
    </facet>
  </component>
  <component name="NewModuleRootManager">
    <orderEntry type="sourceFolder" forTests="false" />
  </component>
  <component name="TestModuleComponent" value="loaded" />
</module>
`

// fakeFacets claims one facet type and writes back a fixed facet.
type fakeFacets struct {
	loaded []string
}

func (f *fakeFacets) FacetType() string { return "spring" }

func (f *fakeFacets) LoadFacet(_ *storage.Builder, _ storage.ID, state FacetState, _ *entity.FacetID, _ entity.Source) error {
	f.loaded = append(f.loaded, state.Name)
	return nil
}

func (f *fakeFacets) SaveFacets(storage.Reader, storage.ID, func(entity.Source) bool) []FacetState {
	return []FacetState{{Name: "Spring", FacetType: "spring"}}
}

// fakeComponent records the value attribute of its component.
type fakeComponent struct {
	loaded string
}

func (f *fakeComponent) ComponentName() string { return "TestModuleComponent" }

func (f *fakeComponent) LoadComponent(_ *storage.Builder, _ storage.ID, component *etree.Element, _ entity.Source) error {
	f.loaded = component.SelectAttrValue("value", "")
	return nil
}

func (f *fakeComponent) SaveComponent(storage.Reader, storage.ID) *etree.Element {
	el := etree.NewElement("component")
	el.CreateAttr("value", "saved")
	return el
}

func TestCustomFacetAndComponentSerializers(t *testing.T) {
	sc := NewSerializationContext(quietLogger())
	facets := &fakeFacets{}
	component := &fakeComponent{}
	sc.RegisterFacetSerializer(facets)
	sc.RegisterModuleComponentSerializer(component)

	fsys := newProjectFS(t, map[string]string{".idea/modules.xml": modulesXML, "core.iml": pluginIml})
	l := openProjectWith(t, fsys, sc)

	assert.Equal(t, []string{"Spring"}, facets.loaded)
	assert.Equal(t, "loaded", component.loaded)

	// Only the unclaimed facet becomes a generic entity.
	var types []string
	for _, ref := range storage.All[*entity.Facet](l.builder) {
		types = append(types, ref.Entity.FacetType)
	}
	assert.Equal(t, []string{"web"}, types)

	l.saveAll(t)
	iml := readProjectFile(t, fsys, "core.iml")
	assert.Contains(t, iml, `<facet type="web" name="Web">`)
	assert.Contains(t, iml, `<facet type="spring" name="Spring"`)
	assert.Contains(t, iml, `<component name="TestModuleComponent" value="saved"/>`)
}
