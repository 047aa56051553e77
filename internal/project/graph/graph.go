// Package graph provides the dependency graph of a loaded project.
// Modules, libraries and SDKs are nodes; the entries of a module's
// dependency list are edges.
package graph

import (
	"encoding/json"
	"errors"
	"io"
	"sort"
	"sync"
)

var (
	// ErrInvalidNodeID is returned when a node has no id.
	ErrInvalidNodeID = errors.New("graph node without id")
	// ErrNodeNotFound is returned when an edge names an unknown node.
	ErrNodeNotFound = errors.New("graph node not found")
	// ErrNodeExists is returned when a module, library or SDK is added
	// twice.
	ErrNodeExists = errors.New("graph node already added")
	// ErrInvalidEdge is returned for a dependency without both ends.
	ErrInvalidEdge = errors.New("dependency edge without both ends")
	// ErrEdgeExists is returned when a module lists the same dependency
	// twice.
	ErrEdgeExists = errors.New("duplicate dependency edge")
	// ErrCycleDetected is returned when modules depend on each other.
	ErrCycleDetected = errors.New("module dependency cycle")
)

// MemGraph is an in-memory dependency graph. It is safe for concurrent
// use.
type MemGraph struct {
	mu sync.RWMutex

	nodes map[NodeID]Node

	outEdges map[NodeID][]Edge
	inEdges  map[NodeID][]Edge
}

// New creates a new in-memory graph.
func New() *MemGraph {
	return &MemGraph{
		nodes:    make(map[NodeID]Node),
		outEdges: make(map[NodeID][]Edge),
		inEdges:  make(map[NodeID][]Edge),
	}
}

// AddNode adds a node to the graph.
func (g *MemGraph) AddNode(node Node) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if node.ID == "" {
		return ErrInvalidNodeID
	}
	if _, exists := g.nodes[node.ID]; exists {
		return ErrNodeExists
	}
	g.nodes[node.ID] = node
	return nil
}

// GetNode returns a node by ID.
func (g *MemGraph) GetNode(id NodeID) (Node, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	node, exists := g.nodes[id]
	return node, exists
}

// NodeCount returns the number of nodes in the graph.
func (g *MemGraph) NodeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// AllNodes returns all nodes sorted by id.
func (g *MemGraph) AllNodes() []Node {
	g.mu.RLock()
	defer g.mu.RUnlock()

	nodes := make([]Node, 0, len(g.nodes))
	for _, node := range g.nodes {
		nodes = append(nodes, node)
	}
	sortNodes(nodes)
	return nodes
}

func sortNodes(nodes []Node) {
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
}

// AddEdge adds an edge between two existing nodes. A second edge of the
// same type between the same nodes is rejected with ErrEdgeExists.
func (g *MemGraph) AddEdge(edge Edge) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !edge.IsValid() {
		return ErrInvalidEdge
	}
	if _, exists := g.nodes[edge.From]; !exists {
		return ErrNodeNotFound
	}
	if _, exists := g.nodes[edge.To]; !exists {
		return ErrNodeNotFound
	}
	for _, e := range g.outEdges[edge.From] {
		if e.To == edge.To && e.Type == edge.Type {
			return ErrEdgeExists
		}
	}

	g.outEdges[edge.From] = append(g.outEdges[edge.From], edge)
	g.inEdges[edge.To] = append(g.inEdges[edge.To], edge)
	return nil
}

// GetEdges returns the outgoing edges of a node in insertion order.
func (g *MemGraph) GetEdges(from NodeID) []Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]Edge(nil), g.outEdges[from]...)
}

// EdgeCount returns the total number of edges in the graph.
func (g *MemGraph) EdgeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	count := 0
	for _, edges := range g.outEdges {
		count += len(edges)
	}
	return count
}

// Dependencies returns the nodes a node depends on, in dependency order.
func (g *MemGraph) Dependencies(id NodeID) []Node {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var deps []Node
	for _, edge := range g.outEdges[id] {
		if node, exists := g.nodes[edge.To]; exists {
			deps = append(deps, node)
		}
	}
	return deps
}

// Dependents returns the nodes that depend on a node, sorted by id.
func (g *MemGraph) Dependents(id NodeID) []Node {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var deps []Node
	for _, edge := range g.inEdges[id] {
		if node, exists := g.nodes[edge.From]; exists {
			deps = append(deps, node)
		}
	}
	sortNodes(deps)
	return deps
}

// FindNodesByType returns all nodes of a given type, sorted by id.
func (g *MemGraph) FindNodesByType(nodeType NodeType) []Node {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var nodes []Node
	for _, node := range g.nodes {
		if node.Type == nodeType {
			nodes = append(nodes, node)
		}
	}
	sortNodes(nodes)
	return nodes
}

// FindPath finds the shortest dependency path between two nodes using
// BFS. Returns nil if no path exists.
func (g *MemGraph) FindPath(from, to NodeID) []Node {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if _, exists := g.nodes[from]; !exists {
		return nil
	}
	if from == to {
		return []Node{g.nodes[from]}
	}

	parent := map[NodeID]NodeID{from: ""}
	queue := []NodeID{from}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, edge := range g.outEdges[current] {
			if _, visited := parent[edge.To]; visited {
				continue
			}
			parent[edge.To] = current
			if edge.To == to {
				var path []Node
				for id := to; id != from; id = parent[id] {
					path = append(path, g.nodes[id])
				}
				path = append(path, g.nodes[from])
				for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
					path[i], path[j] = path[j], path[i]
				}
				return path
			}
			queue = append(queue, edge.To)
		}
	}
	return nil
}

// Data is the JSON form of a graph printed by jpsctl deps -json.
type Data struct {
	Nodes []Node `json:"nodes" yaml:"nodes"`
	Edges []Edge `json:"edges" yaml:"edges"`
}

// Export returns the nodes sorted by id and the edges grouped by source
// node in dependency order.
func (g *MemGraph) Export() Data {
	nodes := g.AllNodes()

	g.mu.RLock()
	defer g.mu.RUnlock()
	data := Data{Nodes: nodes, Edges: make([]Edge, 0)}
	for _, n := range nodes {
		data.Edges = append(data.Edges, g.outEdges[n.ID]...)
	}
	return data
}

// Save writes the graph as indented JSON.
func (g *MemGraph) Save(w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(g.Export())
}
