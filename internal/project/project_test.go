package project

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dshills/jpsmodel/internal/config"
	"github.com/dshills/jpsmodel/internal/jps"
	"github.com/dshills/jpsmodel/internal/jps/sourcecache"
	"github.com/dshills/jpsmodel/internal/project/graph"
	"github.com/dshills/jpsmodel/internal/project/vfs"
	"github.com/dshills/jpsmodel/internal/project/watcher"
	"github.com/dshills/jpsmodel/internal/workspace/entity"
	"github.com/dshills/jpsmodel/internal/workspace/fileurl"
	"github.com/dshills/jpsmodel/internal/workspace/storage"
)

const projectDir = "/work/app"

const modulesXML = `<?xml version="1.0" encoding="UTF-8"?>
<project version="4">
  <component name="ProjectModuleManager">
    <modules>
      <module fileurl="file://$PROJECT_DIR$/core.iml" filepath="$PROJECT_DIR$/core.iml" />
    </modules>
  </component>
</project>
`

const coreIml = `<?xml version="1.0" encoding="UTF-8"?>
<module type="JAVA_MODULE" version="4">
  <component name="NewModuleRootManager">
    <content url="file://$MODULE_DIR$/src">
      <sourceFolder url="file://$MODULE_DIR$/src" isTestSource="false" />
    </content>
    <orderEntry type="sourceFolder" forTests="false" />
    <orderEntry type="library" name="junit" level="project" scope="TEST" />
  </component>
</module>
`

func libraryXML(name, jar string) string {
	return `<component name="libraryTable">
  <library name="` + name + `">
    <CLASSES>
      <root url="jar://$PROJECT_DIR$/lib/` + jar + `!/"/>
    </CLASSES>
    <JAVADOC/>
    <SOURCES/>
  </library>
</component>
`
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newTestFS(t *testing.T) *vfs.MemFS {
	t.Helper()
	fsys := vfs.NewMemFS()
	files := map[string]string{
		".idea/modules.xml":         modulesXML,
		"core.iml":                  coreIml,
		".idea/libraries/junit.xml": libraryXML("junit", "junit.jar"),
	}
	for name, content := range files {
		if err := fsys.AddFile(projectDir+"/"+name, content); err != nil {
			t.Fatalf("AddFile(%s) error = %v", name, err)
		}
	}
	return fsys
}

func testOptions(fsys vfs.FS) Options {
	return Options{
		FS:       fsys,
		Layout:   jps.Layout{ProjectDir: fileurl.FromPath(projectDir)},
		Debounce: 10 * time.Millisecond,
		Logger:   quietLogger(),
	}
}

func openTestProject(t *testing.T, opts Options) *Project {
	t.Helper()
	p, err := Open(context.Background(), opts)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { p.Close() })
	return p
}

func loadTestProject(t *testing.T, opts Options) *Project {
	t.Helper()
	p := openTestProject(t, opts)
	if _, err := p.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return p
}

func libraryNames(t *testing.T, p *Project) []string {
	t.Helper()
	snap, err := p.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	var names []string
	for _, ref := range storage.All[*entity.Library](snap) {
		if !ref.Entity.Table.IsModuleLevel() {
			names = append(names, ref.Entity.Name)
		}
	}
	return names
}

func TestOpen_NoProjectDir(t *testing.T) {
	_, err := Open(context.Background(), Options{FS: vfs.NewMemFS(), Logger: quietLogger()})
	if !errors.Is(err, ErrNoProjectDir) {
		t.Errorf("Open() error = %v, want ErrNoProjectDir", err)
	}
}

func TestOpen_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Open(ctx, testOptions(newTestFS(t)))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Open() error = %v, want context.Canceled", err)
	}
}

func TestProject_NotLoaded(t *testing.T) {
	p := openTestProject(t, testOptions(newTestFS(t)))

	if _, err := p.Snapshot(); !IsNotLoaded(err) {
		t.Errorf("Snapshot() error = %v, want ErrNotLoaded", err)
	}
	if _, err := p.Save(context.Background()); !IsNotLoaded(err) {
		t.Errorf("Save() error = %v, want ErrNotLoaded", err)
	}
	if _, err := p.Reload(context.Background(), jps.ChangedFiles{}); !IsNotLoaded(err) {
		t.Errorf("Reload() error = %v, want ErrNotLoaded", err)
	}
	if err := p.Update(func(*storage.Builder) error { return nil }); !IsNotLoaded(err) {
		t.Errorf("Update() error = %v, want ErrNotLoaded", err)
	}
	if _, err := p.Graph(); !IsNotLoaded(err) {
		t.Errorf("Graph() error = %v, want ErrNotLoaded", err)
	}
}

func TestProject_Closed(t *testing.T) {
	p := openTestProject(t, testOptions(newTestFS(t)))
	if err := p.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if _, err := p.Load(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("Load() error = %v, want ErrClosed", err)
	}
}

func TestProject_Load(t *testing.T) {
	p := openTestProject(t, testOptions(newTestFS(t)))

	report, err := p.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if report.Modules != 1 {
		t.Errorf("Modules = %d, want 1", report.Modules)
	}
	if report.Libraries != 1 {
		t.Errorf("Libraries = %d, want 1", report.Libraries)
	}
	if report.Err != nil {
		t.Errorf("report.Err = %v", report.Err)
	}

	unloaded, err := p.UnloadedSnapshot()
	if err != nil {
		t.Fatalf("UnloadedSnapshot() error = %v", err)
	}
	if n := len(storage.All[*entity.Module](unloaded)); n != 0 {
		t.Errorf("unloaded modules = %d, want 0", n)
	}
}

func TestProject_LoadUnloadedModule(t *testing.T) {
	opts := testOptions(newTestFS(t))
	opts.UnloadedModules = []string{"core"}
	p := openTestProject(t, opts)

	report, err := p.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if report.Modules != 0 || report.Unloaded != 1 {
		t.Errorf("Modules = %d, Unloaded = %d, want 0 and 1", report.Modules, report.Unloaded)
	}
}

func TestProject_LoadReportsBrokenFile(t *testing.T) {
	fsys := newTestFS(t)
	if err := fsys.AddFile(projectDir+"/.idea/libraries/broken.xml", "<component"); err != nil {
		t.Fatal(err)
	}
	p := openTestProject(t, testOptions(fsys))

	report, err := p.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if report.Err == nil {
		t.Error("report.Err = nil, want the parse failure")
	}
	if report.Libraries != 1 {
		t.Errorf("Libraries = %d, want 1", report.Libraries)
	}
}

func TestProject_SaveRemovedLibrary(t *testing.T) {
	fsys := newTestFS(t)
	p := loadTestProject(t, testOptions(fsys))

	err := p.Update(func(b *storage.Builder) error {
		for _, ref := range storage.All[*entity.Library](b) {
			if ref.Entity.Name == "junit" {
				b.Remove(ref.ID)
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	touched, err := p.Save(context.Background())
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	junit := fileurl.FromPath(projectDir + "/.idea/libraries/junit.xml")
	found := false
	for _, u := range touched {
		if u == junit {
			found = true
		}
	}
	if !found {
		t.Errorf("Save() touched = %v, want %s", touched, junit)
	}
	if fsys.Exists(junit.Path()) {
		t.Error("library file still exists after save")
	}

	// Nothing changed since the last save.
	touched, err = p.Save(context.Background())
	if err != nil {
		t.Fatalf("second Save() error = %v", err)
	}
	if len(touched) != 0 {
		t.Errorf("second Save() touched = %v, want none", touched)
	}
}

func TestProject_SaveNewLibrary(t *testing.T) {
	fsys := newTestFS(t)
	p := loadTestProject(t, testOptions(fsys))

	src := p.NewDirectorySource(p.Layout().LibrariesDir())
	err := p.Update(func(b *storage.Builder) error {
		b.Add(&entity.Library{
			Name:   "guava",
			Table:  entity.ProjectLibraryTable,
			Source: src,
		})
		return nil
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if _, err := p.Save(context.Background()); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	data, err := fsys.ReadFile(projectDir + "/.idea/libraries/guava.xml")
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(data), `<library name="guava">`) {
		t.Errorf("guava.xml = %s", data)
	}
}

func TestProject_Reload(t *testing.T) {
	fsys := newTestFS(t)
	p := loadTestProject(t, testOptions(fsys))

	var events []ReloadEvent
	p.OnReload(func(e ReloadEvent) { events = append(events, e) })

	added := fileurl.FromPath(projectDir + "/.idea/libraries/guava.xml")
	if err := fsys.WriteFile(added.Path(), []byte(libraryXML("guava", "guava.jar"))); err != nil {
		t.Fatal(err)
	}
	event, err := p.Reload(context.Background(), jps.ChangedFiles{Added: []fileurl.URL{added}})
	if err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if len(event.ChangedSources) != 1 {
		t.Errorf("ChangedSources = %v, want one source", event.ChangedSources)
	}
	if got := libraryNames(t, p); len(got) != 2 {
		t.Errorf("libraries = %v, want junit and guava", got)
	}

	removed := fileurl.FromPath(projectDir + "/.idea/libraries/junit.xml")
	if err := fsys.Remove(removed.Path()); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Reload(context.Background(), jps.ChangedFiles{Removed: []fileurl.URL{removed}}); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if got := libraryNames(t, p); len(got) != 1 || got[0] != "guava" {
		t.Errorf("libraries = %v, want [guava]", got)
	}

	if len(events) != 2 {
		t.Fatalf("handler called %d times, want 2", len(events))
	}
	if events[1].Timestamp.IsZero() {
		t.Error("event timestamp not set")
	}
}

func TestProject_Graph(t *testing.T) {
	p := loadTestProject(t, testOptions(newTestFS(t)))

	g, err := p.Graph()
	if err != nil {
		t.Fatalf("Graph() error = %v", err)
	}
	deps := g.Dependencies(graph.ModuleNodeID("core"))
	if len(deps) != 1 {
		t.Fatalf("Dependencies(core) = %v, want one library", deps)
	}
	want := graph.LibraryNodeID(entity.LibraryID{Name: "junit", Table: entity.ProjectLibraryTable})
	if deps[0].ID != want {
		t.Errorf("dependency = %s, want %s", deps[0].ID, want)
	}
}

func TestProject_CachePersistsSourceNames(t *testing.T) {
	fsys := newTestFS(t)
	opts := testOptions(fsys)
	opts.Cache = &sourcecache.Config{Dir: t.TempDir()}

	junitSource := func() entity.Source {
		p, err := Open(context.Background(), opts)
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		defer p.Close()
		if _, err := p.Load(context.Background()); err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if _, err := p.Save(context.Background()); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		snap, _ := p.Snapshot()
		libs := storage.All[*entity.Library](snap)
		if len(libs) != 1 {
			t.Fatalf("libraries = %d, want 1", len(libs))
		}
		return libs[0].Entity.Source
	}

	first := junitSource()
	second := junitSource()
	if first != second {
		t.Errorf("source after reopen = %v, want %v", second, first)
	}
}

// mockWatcher feeds events to a Batcher by hand.
type mockWatcher struct {
	mu      sync.Mutex
	watched map[string]bool
	events  chan watcher.Event
	errors  chan error
	once    sync.Once
}

func newMockWatcher() *mockWatcher {
	return &mockWatcher{
		watched: make(map[string]bool),
		events:  make(chan watcher.Event, 10),
		errors:  make(chan error, 10),
	}
}

func (m *mockWatcher) Watch(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.watched[path] = true
	return nil
}

func (m *mockWatcher) Unwatch(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.watched, path)
	return nil
}

func (m *mockWatcher) Events() <-chan watcher.Event { return m.events }
func (m *mockWatcher) Errors() <-chan error         { return m.errors }

func (m *mockWatcher) Close() error {
	m.once.Do(func() {
		close(m.events)
		close(m.errors)
	})
	return nil
}

func (m *mockWatcher) WatchedPaths() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	paths := make([]string, 0, len(m.watched))
	for p := range m.watched {
		paths = append(paths, p)
	}
	return paths
}

func (m *mockWatcher) isWatching(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.watched[path]
}

func TestProject_WatchWith(t *testing.T) {
	fsys := newTestFS(t)
	p := loadTestProject(t, testOptions(fsys))

	reloaded := make(chan ReloadEvent, 1)
	p.OnReload(func(e ReloadEvent) { reloaded <- e })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := newMockWatcher()
	done := make(chan error, 1)
	go func() { done <- p.WatchWith(ctx, w) }()

	libs := projectDir + "/.idea/libraries"
	deadline := time.Now().Add(2 * time.Second)
	for !w.isWatching(libs) {
		if time.Now().After(deadline) {
			t.Fatalf("watched paths = %v, want %s", w.WatchedPaths(), libs)
		}
		time.Sleep(5 * time.Millisecond)
	}

	path := libs + "/guava.xml"
	if err := fsys.WriteFile(path, []byte(libraryXML("guava", "guava.jar"))); err != nil {
		t.Fatal(err)
	}
	w.events <- watcher.Event{Path: path, Op: watcher.OpCreate, Timestamp: time.Now()}
	w.events <- watcher.Event{Path: path, Op: watcher.OpWrite, Timestamp: time.Now()}

	select {
	case e := <-reloaded:
		if len(e.Change.Added) != 1 || e.Change.Added[0] != fileurl.FromPath(path) {
			t.Errorf("Change.Added = %v, want [%s]", e.Change.Added, path)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no reload after file change")
	}
	if got := libraryNames(t, p); len(got) != 2 {
		t.Errorf("libraries = %v, want junit and guava", got)
	}

	// The new library file is watched once its serializer exists.
	deadline = time.Now().Add(2 * time.Second)
	for !w.isWatching(path) {
		if time.Now().After(deadline) {
			t.Fatalf("watched paths = %v, want %s", w.WatchedPaths(), path)
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := p.WatchWith(ctx, newMockWatcher()); !errors.Is(err, ErrAlreadyWatching) {
		t.Errorf("second WatchWith() error = %v, want ErrAlreadyWatching", err)
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("WatchWith() error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("WatchWith did not return after cancel")
	}
}

func TestChangedFiles(t *testing.T) {
	got := changedFiles(watcher.Batch{
		Added:   []string{"/work/app/.idea/libraries/a.xml"},
		Removed: []string{"/work/app/core.iml"},
	})
	if len(got.Added) != 1 || got.Added[0] != fileurl.FromPath("/work/app/.idea/libraries/a.xml") {
		t.Errorf("Added = %v", got.Added)
	}
	if got.Changed != nil {
		t.Errorf("Changed = %v, want nil", got.Changed)
	}
	if len(got.Removed) != 1 || got.Removed[0] != fileurl.FromPath("/work/app/core.iml") {
		t.Errorf("Removed = %v", got.Removed)
	}
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.New(config.WithEnvPrefix("JPSCTLTEST_"))
	cfg.Set("project_dir", "/work/app")
	cfg.Set("global.options_dir", "/home/dev/.config/idea/options")
	cfg.Set("path_macros", map[string]any{"MAVEN_REPOSITORY": "/home/dev/.m2"})
	cfg.Set("unloaded_modules", []any{"legacy"})
	cfg.Set("watch.debounce", "50ms")
	cfg.Set("cache.dir", "/var/cache/jpsctl")

	opts, err := OptionsFromConfig(cfg, quietLogger())
	if err != nil {
		t.Fatalf("OptionsFromConfig() error = %v", err)
	}
	if opts.Layout.ProjectDir != fileurl.FromPath("/work/app") {
		t.Errorf("ProjectDir = %s", opts.Layout.ProjectDir)
	}
	if opts.Layout.GlobalOptionsDir != fileurl.FromPath("/home/dev/.config/idea/options") {
		t.Errorf("GlobalOptionsDir = %s", opts.Layout.GlobalOptionsDir)
	}
	if !opts.Layout.ExternalStorageRoot.IsEmpty() {
		t.Errorf("ExternalStorageRoot = %s, want empty", opts.Layout.ExternalStorageRoot)
	}
	if opts.Macros["MAVEN_REPOSITORY"] != "/home/dev/.m2" {
		t.Errorf("Macros = %v", opts.Macros)
	}
	if len(opts.UnloadedModules) != 1 || opts.UnloadedModules[0] != "legacy" {
		t.Errorf("UnloadedModules = %v", opts.UnloadedModules)
	}
	if opts.Debounce != 50*time.Millisecond {
		t.Errorf("Debounce = %v", opts.Debounce)
	}
	if opts.Cache == nil || opts.Cache.Dir != "/var/cache/jpsctl" {
		t.Errorf("Cache = %+v", opts.Cache)
	}

	cfg.Set("cache.enabled", false)
	opts, err = OptionsFromConfig(cfg, quietLogger())
	if err != nil {
		t.Fatalf("OptionsFromConfig() error = %v", err)
	}
	if opts.Cache != nil {
		t.Errorf("Cache = %+v, want nil when disabled", opts.Cache)
	}
}
