package graph

import (
	"github.com/sirupsen/logrus"

	"github.com/dshills/jpsmodel/internal/workspace/entity"
	"github.com/dshills/jpsmodel/internal/workspace/storage"
)

// Builder derives a graph from an entity storage.
type Builder struct {
	log *logrus.Logger
}

// NewBuilder creates a builder. A nil logger defaults to logrus.New().
func NewBuilder(log *logrus.Logger) *Builder {
	if log == nil {
		log = logrus.New()
	}
	return &Builder{log: log}
}

// Build creates a graph of every module, library and SDK in r. References
// to entities absent from r become nodes marked Missing.
func (b *Builder) Build(r storage.Reader) *MemGraph {
	g := New()

	for _, ref := range storage.All[*entity.Library](r) {
		_ = g.AddNode(NewLibraryNode(ref.Entity.ID()))
	}
	for _, ref := range storage.All[*entity.Sdk](r) {
		_ = g.AddNode(NewSdkNode(entity.SdkID{Name: ref.Entity.Name, Type: ref.Entity.Type}))
	}
	modules := storage.All[*entity.Module](r)
	for _, ref := range modules {
		_ = g.AddNode(NewModuleNode(ref.Entity.Name, modulePath(ref.Entity.Source)))
	}

	var projectSdk *entity.SdkID
	if settings := storage.All[*entity.ProjectSettings](r); len(settings) > 0 {
		projectSdk = settings[0].Entity.ProjectSdk
	}

	missing := 0
	ensure := func(n Node) NodeID {
		if _, ok := g.GetNode(n.ID); !ok {
			n.Missing = true
			_ = g.AddNode(n)
			missing++
		}
		return n.ID
	}

	for _, ref := range modules {
		from := ModuleNodeID(ref.Entity.Name)
		for _, dep := range ref.Entity.Dependencies {
			var edge Edge
			switch d := dep.(type) {
			case entity.ModuleDependency:
				to := ensure(NewModuleNode(d.Module.Name, ""))
				edge = NewDependsOnEdge(from, to, d.Scope, d.Exported)
			case entity.LibraryDependency:
				to := ensure(NewLibraryNode(d.Library))
				edge = NewDependsOnEdge(from, to, d.Scope, d.Exported)
			case entity.SdkDependency:
				edge = Edge{From: from, To: ensure(NewSdkNode(d.Sdk)), Type: EdgeTypeUsesSdk}
			case entity.InheritedSdkDependency:
				if projectSdk == nil {
					continue
				}
				edge = Edge{From: from, To: ensure(NewSdkNode(*projectSdk)), Type: EdgeTypeUsesSdk}
			default:
				continue
			}
			// Duplicate entries keep the first edge.
			_ = g.AddEdge(edge)
		}
	}

	b.log.WithFields(logrus.Fields{
		"nodes":   g.NodeCount(),
		"edges":   g.EdgeCount(),
		"missing": missing,
	}).Debug("dependency graph built")
	return g
}

func modulePath(src entity.Source) string {
	if fs, ok := entity.InternalSource(src).(entity.FileSource); ok {
		return fs.File.Path()
	}
	return ""
}
