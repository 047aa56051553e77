package graph

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/dshills/jpsmodel/internal/workspace/entity"
)

func nodeIDs(nodes []Node) []NodeID {
	ids := make([]NodeID, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID
	}
	return ids
}

func equalIDs(a, b []NodeID) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// newModuleGraph builds a graph of modules with the given dependencies.
func newModuleGraph(t *testing.T, deps map[string][]string) *MemGraph {
	t.Helper()
	g := New()
	for name := range deps {
		if err := g.AddNode(NewModuleNode(name, "")); err != nil {
			t.Fatalf("AddNode(%s) error = %v", name, err)
		}
	}
	for name, targets := range deps {
		for _, to := range targets {
			if err := g.AddEdge(NewDependsOnEdge(ModuleNodeID(name), ModuleNodeID(to), "", false)); err != nil {
				t.Fatalf("AddEdge(%s -> %s) error = %v", name, to, err)
			}
		}
	}
	return g
}

func TestMemGraph_AddNode(t *testing.T) {
	g := New()
	if err := g.AddNode(Node{}); err != ErrInvalidNodeID {
		t.Errorf("AddNode(empty) error = %v, want ErrInvalidNodeID", err)
	}
	if err := g.AddNode(NewModuleNode("core", "/p/core.iml")); err != nil {
		t.Fatalf("AddNode error = %v", err)
	}
	if err := g.AddNode(NewModuleNode("core", "")); err != ErrNodeExists {
		t.Errorf("AddNode(duplicate) error = %v, want ErrNodeExists", err)
	}

	n, ok := g.GetNode(ModuleNodeID("core"))
	if !ok || n.Path != "/p/core.iml" || n.Type != NodeTypeModule {
		t.Errorf("GetNode = %+v, %v", n, ok)
	}
}

func TestMemGraph_AddEdge(t *testing.T) {
	g := newModuleGraph(t, map[string][]string{"app": nil, "core": nil})
	app, core := ModuleNodeID("app"), ModuleNodeID("core")

	if err := g.AddEdge(Edge{From: app}); err != ErrInvalidEdge {
		t.Errorf("AddEdge(invalid) error = %v, want ErrInvalidEdge", err)
	}
	if err := g.AddEdge(NewDependsOnEdge(app, "module:missing", "", false)); err != ErrNodeNotFound {
		t.Errorf("AddEdge(missing) error = %v, want ErrNodeNotFound", err)
	}
	if err := g.AddEdge(NewDependsOnEdge(app, core, "TEST", false)); err != nil {
		t.Fatalf("AddEdge error = %v", err)
	}
	if err := g.AddEdge(NewDependsOnEdge(app, core, "", true)); err != ErrEdgeExists {
		t.Errorf("AddEdge(duplicate) error = %v, want ErrEdgeExists", err)
	}

	edges := g.GetEdges(app)
	if len(edges) != 1 || edges[0].Scope != "TEST" {
		t.Errorf("GetEdges = %+v", edges)
	}
	if g.EdgeCount() != 1 {
		t.Errorf("EdgeCount() = %d, want 1", g.EdgeCount())
	}
}

func TestMemGraph_DependenciesAndDependents(t *testing.T) {
	g := newModuleGraph(t, map[string][]string{
		"app":  {"web", "core"},
		"web":  {"core"},
		"core": nil,
	})

	if got := nodeIDs(g.Dependencies(ModuleNodeID("app"))); !equalIDs(got, []NodeID{"module:web", "module:core"}) {
		t.Errorf("Dependencies(app) = %v, want dependency order", got)
	}
	if got := nodeIDs(g.Dependents(ModuleNodeID("core"))); !equalIDs(got, []NodeID{"module:app", "module:web"}) {
		t.Errorf("Dependents(core) = %v", got)
	}
	if got := nodeIDs(g.TransitiveDependencies(ModuleNodeID("web"))); !equalIDs(got, []NodeID{"module:core"}) {
		t.Errorf("TransitiveDependencies(web) = %v", got)
	}
}

func TestMemGraph_FindPath(t *testing.T) {
	g := newModuleGraph(t, map[string][]string{
		"app":  {"web", "core"},
		"web":  {"util"},
		"core": {"util"},
		"util": nil,
	})

	path := nodeIDs(g.FindPath(ModuleNodeID("app"), ModuleNodeID("util")))
	if !equalIDs(path, []NodeID{"module:app", "module:web", "module:util"}) {
		t.Errorf("FindPath = %v", path)
	}
	if got := g.FindPath(ModuleNodeID("util"), ModuleNodeID("app")); got != nil {
		t.Errorf("FindPath(reverse) = %v, want nil", got)
	}
	if got := nodeIDs(g.FindPath(ModuleNodeID("app"), ModuleNodeID("app"))); !equalIDs(got, []NodeID{"module:app"}) {
		t.Errorf("FindPath(self) = %v", got)
	}
}

func TestMemGraph_FindCycles(t *testing.T) {
	g := newModuleGraph(t, map[string][]string{
		"a":    {"b"},
		"b":    {"c"},
		"c":    {"a"},
		"self": {"self"},
		"d":    {"a"},
	})

	cycles := g.FindCycles()
	if len(cycles) != 2 {
		t.Fatalf("FindCycles() = %v, want 2 cycles", cycles)
	}
	if got := nodeIDs(cycles[0]); !equalIDs(got, []NodeID{"module:a", "module:b", "module:c"}) {
		t.Errorf("cycles[0] = %v", got)
	}
	if got := nodeIDs(cycles[1]); !equalIDs(got, []NodeID{"module:self"}) {
		t.Errorf("cycles[1] = %v", got)
	}

	if _, err := g.TopologicalOrder(); !errors.Is(err, ErrCycleDetected) {
		t.Errorf("TopologicalOrder error = %v, want ErrCycleDetected", err)
	}
}

func TestMemGraph_LibraryEdgesDoNotFormCycles(t *testing.T) {
	g := newModuleGraph(t, map[string][]string{"core": nil})
	lib := Node{ID: "library:project:junit", Type: NodeTypeLibrary, Name: "junit"}
	if err := g.AddNode(lib); err != nil {
		t.Fatal(err)
	}
	if err := g.AddEdge(NewDependsOnEdge(ModuleNodeID("core"), lib.ID, "", false)); err != nil {
		t.Fatal(err)
	}
	if cycles := g.FindCycles(); len(cycles) != 0 {
		t.Errorf("FindCycles() = %v, want none", cycles)
	}
}

func TestMemGraph_TopologicalOrder(t *testing.T) {
	g := newModuleGraph(t, map[string][]string{
		"app":  {"web", "core"},
		"web":  {"core", "util"},
		"core": {"util"},
		"util": nil,
		"docs": nil,
	})

	order, err := g.TopologicalOrder()
	if err != nil {
		t.Fatalf("TopologicalOrder error = %v", err)
	}
	want := []NodeID{"module:docs", "module:util", "module:core", "module:web", "module:app"}
	if got := nodeIDs(order); !equalIDs(got, want) {
		t.Errorf("TopologicalOrder = %v, want %v", got, want)
	}
}

func TestMemGraph_Save(t *testing.T) {
	g := newModuleGraph(t, map[string][]string{"app": {"core"}, "core": nil})
	if err := g.AddNode(NewSdkNode(entity.SdkID{Name: "17", Type: "JavaSDK"})); err != nil {
		t.Fatalf("AddNode error = %v", err)
	}

	var buf bytes.Buffer
	if err := g.Save(&buf); err != nil {
		t.Fatalf("Save error = %v", err)
	}

	var data Data
	if err := json.Unmarshal(buf.Bytes(), &data); err != nil {
		t.Fatalf("Unmarshal error = %v", err)
	}
	if got := nodeIDs(data.Nodes); !equalIDs(got, []NodeID{"module:app", "module:core", SdkNodeID(entity.SdkID{Name: "17", Type: "JavaSDK"})}) {
		t.Errorf("saved nodes = %v", got)
	}
	if len(data.Edges) != 1 || data.Edges[0].From != ModuleNodeID("app") || data.Edges[0].To != ModuleNodeID("core") {
		t.Errorf("saved edges = %+v", data.Edges)
	}
}

func TestMemGraph_FindNodesByType(t *testing.T) {
	g := newModuleGraph(t, map[string][]string{"app": nil})
	junit := entity.LibraryID{Name: "junit", Table: entity.ProjectLibraryTable}
	if err := g.AddNode(NewLibraryNode(junit)); err != nil {
		t.Fatalf("AddNode error = %v", err)
	}

	if got := nodeIDs(g.FindNodesByType(NodeTypeLibrary)); !equalIDs(got, []NodeID{LibraryNodeID(junit)}) {
		t.Errorf("FindNodesByType(library) = %v", got)
	}
	if got := g.FindNodesByType(NodeTypeSdk); len(got) != 0 {
		t.Errorf("FindNodesByType(sdk) = %v, want none", got)
	}
}

func TestTypeStrings(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{NodeTypeModule.String(), "module"},
		{NodeTypeLibrary.String(), "library"},
		{NodeTypeSdk.String(), "sdk"},
		{NodeType(42).String(), "unknown"},
		{EdgeTypeDependsOn.String(), "depends_on"},
		{EdgeTypeUsesSdk.String(), "uses_sdk"},
		{EdgeType(42).String(), "unknown"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("String() = %q, want %q", tt.got, tt.want)
		}
	}
}
