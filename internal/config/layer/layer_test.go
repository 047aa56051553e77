package layer

import "testing"

func TestNewLayer(t *testing.T) {
	l := NewLayer(SourceProject, nil)

	if l.Name != "project" {
		t.Errorf("Name = %q, want 'project'", l.Name)
	}
	if l.Priority != SourceProject.Priority() {
		t.Errorf("Priority = %d, want %d", l.Priority, SourceProject.Priority())
	}
	if l.Data == nil {
		t.Error("Data should be initialized")
	}
}

func TestSource_Priority(t *testing.T) {
	order := []Source{SourceBuiltin, SourceUser, SourceProject, SourceEnv, SourceArgs}
	for i := 1; i < len(order); i++ {
		if order[i-1].Priority() >= order[i].Priority() {
			t.Errorf("%v priority should be below %v", order[i-1], order[i])
		}
	}
	if Source(99).String() != "unknown" {
		t.Errorf("String() = %q, want 'unknown'", Source(99).String())
	}
}

func TestLayer_Clone(t *testing.T) {
	original := NewLayer(SourceUser, map[string]any{
		"log":         map[string]any{"level": "info"},
		"unloaded":    []any{"a", "b"},
		"project_dir": "/work",
	})
	original.Path = "/home/u/.config/jpsctl/config.toml"

	cloned := original.Clone()
	if cloned.Path != original.Path || cloned.Source != original.Source {
		t.Errorf("Clone() = %+v", cloned)
	}

	original.Data["log"].(map[string]any)["level"] = "debug"
	original.Data["unloaded"].([]any)[0] = "z"

	if cloned.Data["log"].(map[string]any)["level"] != "info" {
		t.Error("nested map should be copied")
	}
	if cloned.Data["unloaded"].([]any)[0] != "a" {
		t.Error("slice should be copied")
	}
}

func TestDeepMerge(t *testing.T) {
	dst := map[string]any{
		"log":         map[string]any{"level": "info", "format": "text"},
		"project_dir": "/a",
	}
	src := map[string]any{
		"log":         map[string]any{"level": "debug"},
		"project_dir": "/b",
		"cache":       map[string]any{"dir": "/c"},
	}

	got := DeepMerge(dst, src)

	if v, _ := GetByPath(got, "log.level"); v != "debug" {
		t.Errorf("log.level = %v, want 'debug'", v)
	}
	if v, _ := GetByPath(got, "log.format"); v != "text" {
		t.Errorf("log.format = %v, want 'text'", v)
	}
	if got["project_dir"] != "/b" {
		t.Errorf("project_dir = %v, want '/b'", got["project_dir"])
	}

	src["cache"].(map[string]any)["dir"] = "/changed"
	if v, _ := GetByPath(got, "cache.dir"); v != "/c" {
		t.Error("merged values should not alias src")
	}
}

func TestSetByPath(t *testing.T) {
	data := map[string]any{"log": "flat"}
	SetByPath(data, "log.level", "warn")
	SetByPath(data, "project_dir", "/p")

	if v, ok := GetByPath(data, "log.level"); !ok || v != "warn" {
		t.Errorf("log.level = %v, %v", v, ok)
	}
	if v, ok := GetByPath(data, "project_dir"); !ok || v != "/p" {
		t.Errorf("project_dir = %v, %v", v, ok)
	}
	if _, ok := GetByPath(data, "project_dir.x"); ok {
		t.Error("path through a scalar should not resolve")
	}
}

func TestManager_Precedence(t *testing.T) {
	m := NewManager()
	m.AddLayer(NewLayer(SourceEnv, map[string]any{
		"log": map[string]any{"level": "warn"},
	}))
	m.AddLayer(NewLayer(SourceBuiltin, map[string]any{
		"log":         map[string]any{"level": "info", "format": "text"},
		"path_macros": map[string]any{"A": "/a"},
	}))
	m.AddLayer(NewLayer(SourceProject, map[string]any{
		"log":         map[string]any{"format": "json"},
		"path_macros": map[string]any{"B": "/b"},
	}))

	val, layer, ok := m.Get("log.level")
	if !ok || val != "warn" || layer.Source != SourceEnv {
		t.Errorf("Get(log.level) = %v, %v, %v", val, layer, ok)
	}
	val, layer, ok = m.Get("log.format")
	if !ok || val != "json" || layer.Source != SourceProject {
		t.Errorf("Get(log.format) = %v, %v, %v", val, layer, ok)
	}

	macros, ok := m.GetEffectiveValue("path_macros")
	if !ok || len(macros.(map[string]any)) != 2 {
		t.Errorf("GetEffectiveValue(path_macros) = %v, want merged map", macros)
	}

	layers := m.Layers()
	if len(layers) != 3 || layers[0].Source != SourceBuiltin || layers[2].Source != SourceEnv {
		t.Errorf("Layers() not sorted by priority")
	}
}

func TestManager_AddLayerReplaces(t *testing.T) {
	m := NewManager()
	m.AddLayer(NewLayer(SourceProject, map[string]any{"project_dir": "/old"}))
	if v, _ := m.GetEffectiveValue("project_dir"); v != "/old" {
		t.Fatalf("project_dir = %v", v)
	}

	m.AddLayer(NewLayer(SourceProject, map[string]any{"project_dir": "/new"}))
	if len(m.Layers()) != 1 {
		t.Errorf("len(Layers()) = %d, want 1", len(m.Layers()))
	}
	if v, _ := m.GetEffectiveValue("project_dir"); v != "/new" {
		t.Errorf("project_dir = %v, want '/new' after replacing the layer", v)
	}
}

func TestManager_Set(t *testing.T) {
	m := NewManager()
	m.AddLayer(NewLayer(SourceBuiltin, map[string]any{"cache": map[string]any{"dir": ""}}))

	m.Set(SourceArgs, "cache.dir", "/flag")
	if v, _ := m.GetEffectiveValue("cache.dir"); v != "/flag" {
		t.Errorf("cache.dir = %v, want '/flag'", v)
	}

	m.Set(SourceArgs, "project_dir", "/p")
	if len(m.Layers()) != 2 {
		t.Errorf("Set should reuse the arguments layer")
	}

	merged := m.Merge()
	merged["project_dir"] = "/mutated"
	if v, _ := m.GetEffectiveValue("project_dir"); v != "/p" {
		t.Error("Merge() should return a copy")
	}
}
