package graph

import "github.com/dshills/jpsmodel/internal/workspace/entity"

// EdgeType indicates the relationship type between nodes.
type EdgeType int

const (
	// EdgeTypeDependsOn indicates a module depends on a module or library.
	EdgeTypeDependsOn EdgeType = iota
	// EdgeTypeUsesSdk indicates a module is compiled against an SDK.
	EdgeTypeUsesSdk
)

// String returns the string representation of an EdgeType.
func (t EdgeType) String() string {
	switch t {
	case EdgeTypeDependsOn:
		return "depends_on"
	case EdgeTypeUsesSdk:
		return "uses_sdk"
	default:
		return "unknown"
	}
}

// Edge is one dependency of a module.
type Edge struct {
	From     NodeID                 `json:"from" yaml:"from"`
	To       NodeID                 `json:"to" yaml:"to"`
	Type     EdgeType               `json:"type" yaml:"type"`
	Scope    entity.DependencyScope `json:"scope,omitempty" yaml:"scope,omitempty"`
	Exported bool                   `json:"exported,omitempty" yaml:"exported,omitempty"`
}

// NewDependsOnEdge creates a dependency edge.
func NewDependsOnEdge(from, to NodeID, scope entity.DependencyScope, exported bool) Edge {
	return Edge{From: from, To: to, Type: EdgeTypeDependsOn, Scope: scope, Exported: exported}
}

// IsValid returns true if the edge has valid from and to IDs.
func (e Edge) IsValid() bool {
	return e.From != "" && e.To != ""
}
