package graph

import (
	"fmt"
	"sort"
	"strings"
)

// moduleEdges returns the module-to-module dependency targets of id.
// Callers hold mu.
func (g *MemGraph) moduleEdges(id NodeID) []NodeID {
	var out []NodeID
	for _, e := range g.outEdges[id] {
		if e.Type != EdgeTypeDependsOn {
			continue
		}
		if n, ok := g.nodes[e.To]; ok && n.IsModule() {
			out = append(out, e.To)
		}
	}
	return out
}

func (g *MemGraph) moduleIDs() []NodeID {
	var ids []NodeID
	for id, n := range g.nodes {
		if n.IsModule() {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// FindCycles returns the groups of modules that depend on each other,
// directly or transitively. A module depending on itself is a cycle of
// one. Each cycle is sorted by id, and cycles are ordered by their first
// node.
func (g *MemGraph) FindCycles() [][]Node {
	g.mu.RLock()
	defer g.mu.RUnlock()

	// Tarjan's strongly connected components.
	index := 0
	indices := make(map[NodeID]int)
	lowlink := make(map[NodeID]int)
	onStack := make(map[NodeID]bool)
	var stack []NodeID
	var cycles [][]Node

	var connect func(v NodeID)
	connect = func(v NodeID) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		selfLoop := false
		for _, w := range g.moduleEdges(v) {
			if w == v {
				selfLoop = true
			}
			if _, seen := indices[w]; !seen {
				connect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] != indices[v] {
			return
		}
		var component []Node
		for {
			w := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			onStack[w] = false
			component = append(component, g.nodes[w])
			if w == v {
				break
			}
		}
		if len(component) > 1 || selfLoop {
			sortNodes(component)
			cycles = append(cycles, component)
		}
	}

	for _, id := range g.moduleIDs() {
		if _, seen := indices[id]; !seen {
			connect(id)
		}
	}

	sort.Slice(cycles, func(i, j int) bool { return cycles[i][0].ID < cycles[j][0].ID })
	return cycles
}

// TopologicalOrder returns the modules ordered so that every module comes
// after the modules it depends on. Ties are broken by id. If modules
// depend on each other the error wraps ErrCycleDetected and names them.
func (g *MemGraph) TopologicalOrder() ([]Node, error) {
	if cycles := g.FindCycles(); len(cycles) > 0 {
		names := make([]string, len(cycles[0]))
		for i, n := range cycles[0] {
			names[i] = n.Name
		}
		return nil, fmt.Errorf("%w: %s", ErrCycleDetected, strings.Join(names, ", "))
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	ids := g.moduleIDs()
	pending := make(map[NodeID]int, len(ids))
	dependents := make(map[NodeID][]NodeID)
	for _, id := range ids {
		seen := make(map[NodeID]bool)
		for _, dep := range g.moduleEdges(id) {
			if seen[dep] {
				continue
			}
			seen[dep] = true
			pending[id]++
			dependents[dep] = append(dependents[dep], id)
		}
	}

	var ready []NodeID
	for _, id := range ids {
		if pending[id] == 0 {
			ready = append(ready, id)
		}
	}

	order := make([]Node, 0, len(ids))
	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool { return ready[i] < ready[j] })
		id := ready[0]
		ready = ready[1:]
		order = append(order, g.nodes[id])
		for _, d := range dependents[id] {
			pending[d]--
			if pending[d] == 0 {
				ready = append(ready, d)
			}
		}
	}
	return order, nil
}

// TransitiveDependencies returns every node reachable from id, sorted by
// id.
func (g *MemGraph) TransitiveDependencies(id NodeID) []Node {
	g.mu.RLock()
	defer g.mu.RUnlock()

	visited := map[NodeID]bool{id: true}
	queue := []NodeID{id}
	var out []Node
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, e := range g.outEdges[current] {
			if visited[e.To] {
				continue
			}
			visited[e.To] = true
			if n, ok := g.nodes[e.To]; ok {
				out = append(out, n)
			}
			queue = append(queue, e.To)
		}
	}
	sortNodes(out)
	return out
}
