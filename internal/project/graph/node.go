package graph

import "github.com/dshills/jpsmodel/internal/workspace/entity"

// NodeID uniquely identifies a node in the graph.
type NodeID string

// NodeType indicates the kind of node.
type NodeType int

const (
	// NodeTypeModule represents a project module.
	NodeTypeModule NodeType = iota
	// NodeTypeLibrary represents a project, application or module library.
	NodeTypeLibrary
	// NodeTypeSdk represents an explicitly referenced SDK.
	NodeTypeSdk
)

// String returns the string representation of a NodeType.
func (t NodeType) String() string {
	switch t {
	case NodeTypeModule:
		return "module"
	case NodeTypeLibrary:
		return "library"
	case NodeTypeSdk:
		return "sdk"
	default:
		return "unknown"
	}
}

// Node is a module, library or SDK.
type Node struct {
	ID   NodeID   `json:"id" yaml:"id"`
	Type NodeType `json:"type" yaml:"type"`
	Name string   `json:"name" yaml:"name"`
	// Path is the module file, empty for other nodes.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
	// Level is the library table level.
	Level string `json:"level,omitempty" yaml:"level,omitempty"`
	// Missing is set for referenced entities absent from the storage.
	Missing bool `json:"missing,omitempty" yaml:"missing,omitempty"`
}

// ModuleNodeID returns the id of the node of a module.
func ModuleNodeID(name string) NodeID {
	return NodeID("module:" + name)
}

// LibraryNodeID returns the id of the node of a library.
func LibraryNodeID(id entity.LibraryID) NodeID {
	return NodeID("library:" + id.Presentable())
}

// SdkNodeID returns the id of the node of an SDK.
func SdkNodeID(id entity.SdkID) NodeID {
	return NodeID("sdk:" + id.Type + ":" + id.Name)
}

// NewModuleNode creates a module node.
func NewModuleNode(name, path string) Node {
	return Node{ID: ModuleNodeID(name), Type: NodeTypeModule, Name: name, Path: path}
}

// NewLibraryNode creates a library node.
func NewLibraryNode(id entity.LibraryID) Node {
	return Node{ID: LibraryNodeID(id), Type: NodeTypeLibrary, Name: id.Name, Level: id.Table.Level}
}

// NewSdkNode creates an SDK node.
func NewSdkNode(id entity.SdkID) Node {
	return Node{ID: SdkNodeID(id), Type: NodeTypeSdk, Name: id.Name}
}

// IsModule returns true if the node is a module.
func (n Node) IsModule() bool {
	return n.Type == NodeTypeModule
}
