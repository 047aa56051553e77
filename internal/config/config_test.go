package config

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dshills/jpsmodel/internal/project/vfs"
)

const testPrefix = "JPSCTLTEST_"

func newTestConfig(t *testing.T, fsys *vfs.MemFS, opts ...Option) *Config {
	t.Helper()
	base := []Option{
		WithFileSystem(fsys),
		WithUserConfigDir("/home/u/.config/jpsctl"),
		WithEnvPrefix(testPrefix),
	}
	c := New(append(base, opts...)...)
	if err := c.Load(context.Background()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	return c
}

func TestConfig_Defaults(t *testing.T) {
	c := newTestConfig(t, vfs.NewMemFS())

	p := c.Project()
	if p.Dir != "." {
		t.Errorf("Project().Dir = %q, want '.'", p.Dir)
	}
	if p.ExternalStorageEnabled != nil {
		t.Errorf("ExternalStorageEnabled = %v, want nil", *p.ExternalStorageEnabled)
	}
	if len(p.PathMacros) != 0 {
		t.Errorf("PathMacros = %v, want empty", p.PathMacros)
	}

	if l := c.Logging(); l.Level != "info" || l.Format != "text" {
		t.Errorf("Logging() = %+v", l)
	}
	if cache := c.Cache(); !cache.Enabled || cache.Dir != "" {
		t.Errorf("Cache() = %+v", cache)
	}
	if w := c.Watch(); w.Debounce != 200*time.Millisecond {
		t.Errorf("Watch().Debounce = %v", w.Debounce)
	}
	if err := c.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
	if got := c.WhichLayer("log.level"); got != "defaults" {
		t.Errorf("WhichLayer(log.level) = %q", got)
	}
}

func TestConfig_LayerPrecedence(t *testing.T) {
	fsys := vfs.NewMemFS()
	fsys.AddFile("/home/u/.config/jpsctl/config.toml", `
[log]
level = "debug"
format = "json"

[path_macros]
MAVEN_REPOSITORY = "/home/u/.m2/repository"
`)
	fsys.AddFile("/work/app/jpsctl.yaml", `
project_dir: /work/app
external_storage_enabled: true
log:
  level: warn
path_macros:
  SHARED: /opt/shared
watch:
  debounce: 1s
`)
	t.Setenv(testPrefix+"CACHE_DIR", "/tmp/cache")
	t.Setenv(testPrefix+"LOG_FORMAT", "text")

	c := newTestConfig(t, fsys, WithProjectDir("/work/app"))
	c.Set("max_concurrency", 3)

	p := c.Project()
	if p.Dir != "/work/app" {
		t.Errorf("Dir = %q", p.Dir)
	}
	if p.ExternalStorageEnabled == nil || !*p.ExternalStorageEnabled {
		t.Error("ExternalStorageEnabled should be true")
	}
	if p.PathMacros["MAVEN_REPOSITORY"] != "/home/u/.m2/repository" || p.PathMacros["SHARED"] != "/opt/shared" {
		t.Errorf("PathMacros = %v, want both layers merged", p.PathMacros)
	}
	if p.MaxConcurrency != 3 {
		t.Errorf("MaxConcurrency = %d, want 3", p.MaxConcurrency)
	}

	if l := c.Logging(); l.Level != "warn" || l.Format != "text" {
		t.Errorf("Logging() = %+v, want project level and env format", l)
	}
	if got := c.Cache().Dir; got != "/tmp/cache" {
		t.Errorf("Cache().Dir = %q", got)
	}
	if got := c.Watch().Debounce; got != time.Second {
		t.Errorf("Watch().Debounce = %v", got)
	}

	if got := c.WhichLayer("log.level"); got != "project (/work/app/jpsctl.yaml)" {
		t.Errorf("WhichLayer(log.level) = %q", got)
	}
	if got := c.WhichLayer("max_concurrency"); got != "arguments" {
		t.Errorf("WhichLayer(max_concurrency) = %q", got)
	}
}

func TestConfig_ExplicitFile(t *testing.T) {
	fsys := vfs.NewMemFS()
	fsys.AddFile("/etc/jps.toml", `project_dir = "/srv/app"`)
	fsys.AddFile("/work/app/jpsctl.toml", `project_dir = "/ignored"`)

	c := newTestConfig(t, fsys, WithProjectDir("/work/app"), WithConfigFile("/etc/jps.toml"))
	if got := c.Project().Dir; got != "/srv/app" {
		t.Errorf("Dir = %q, want the explicit file", got)
	}

	missing := New(WithFileSystem(fsys), WithUserConfigDir(""), WithEnvPrefix(testPrefix), WithConfigFile("/etc/none.toml"))
	if err := missing.Load(context.Background()); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Load with missing explicit file = %v, want ErrNotExist", err)
	}
}

func TestConfig_ParseErrorFails(t *testing.T) {
	fsys := vfs.NewMemFS()
	fsys.AddFile("/work/app/jpsctl.toml", "log = [")

	c := New(WithFileSystem(fsys), WithUserConfigDir(""), WithEnvPrefix(testPrefix), WithProjectDir("/work/app"))
	if err := c.Load(context.Background()); err == nil {
		t.Error("Load should fail on a malformed file")
	}
}

func TestConfig_LoadCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := New(WithFileSystem(vfs.NewMemFS()), WithEnvPrefix(testPrefix))
	if err := c.Load(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Load = %v, want context.Canceled", err)
	}
}

func TestConfig_TypedGetters(t *testing.T) {
	fsys := vfs.NewMemFS()
	fsys.AddFile("/work/jpsctl.toml", `
max_concurrency = "many"
unloaded_modules = ["legacy", "docs"]
external_storage_enabled = "yes please"

[watch]
debounce = 250

[log]
level = "loud"
`)
	c := newTestConfig(t, fsys, WithProjectDir("/work"))

	if _, err := c.GetInt("max_concurrency"); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("GetInt = %v, want ErrTypeMismatch", err)
	}
	if got := c.Project().MaxConcurrency; got != 0 {
		t.Errorf("MaxConcurrency = %d, want the default", got)
	}
	if got := c.Project().UnloadedModules; len(got) != 2 || got[0] != "legacy" {
		t.Errorf("UnloadedModules = %v", got)
	}
	if d, err := c.GetDuration("watch.debounce"); err != nil || d != 250*time.Millisecond {
		t.Errorf("GetDuration = %v, %v; want 250ms", d, err)
	}
	if _, err := c.GetString("no.such.key"); !errors.Is(err, ErrSettingNotFound) {
		t.Errorf("GetString(missing) = %v", err)
	}

	err := c.Validate()
	if err == nil {
		t.Fatal("Validate() should report problems")
	}
	for _, want := range []string{"max_concurrency", "external_storage_enabled", "log.level"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Validate() = %v, missing %s", err, want)
		}
	}
}

func TestLoggingConfig_NewLogger(t *testing.T) {
	var buf bytes.Buffer
	log, err := LoggingConfig{Level: "debug", Format: "json"}.NewLoggerTo(&buf)
	if err != nil {
		t.Fatalf("NewLoggerTo error = %v", err)
	}
	if log.GetLevel() != logrus.DebugLevel {
		t.Errorf("level = %v", log.GetLevel())
	}
	log.WithField("module", "core").Debug("loaded")
	if !strings.Contains(buf.String(), `"module":"core"`) {
		t.Errorf("output = %q, want JSON fields", buf.String())
	}

	if _, err := (LoggingConfig{Level: "chatty"}).NewLogger(); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("NewLogger(bad level) = %v, want ErrInvalidValue", err)
	}
	if _, err := (LoggingConfig{Level: "info", Format: "xml"}).NewLogger(); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("NewLogger(bad format) = %v, want ErrInvalidValue", err)
	}
}
