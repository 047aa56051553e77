package layer

import (
	"sort"
	"sync"
)

// Manager manages configuration layers and provides merged access.
type Manager struct {
	mu     sync.RWMutex
	layers []*Layer       // Sorted by priority (ascending)
	merged map[string]any // Cached merged result, nil when stale
}

// NewManager creates a new layer manager.
func NewManager() *Manager {
	return &Manager{}
}

// AddLayer adds a layer, replacing a layer of the same name.
func (m *Manager) AddLayer(layer *Layer) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, l := range m.layers {
		if l.Name == layer.Name {
			m.layers = append(m.layers[:i], m.layers[i+1:]...)
			break
		}
	}
	m.layers = append(m.layers, layer)
	sort.SliceStable(m.layers, func(i, j int) bool {
		return m.layers[i].Priority < m.layers[j].Priority
	})
	m.merged = nil
}

// Layers returns the layers sorted by priority.
func (m *Manager) Layers() []*Layer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*Layer(nil), m.layers...)
}

// Merge combines all layers into a single configuration map. The result
// is a copy owned by the caller.
func (m *Manager) Merge() map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneMap(m.mergedLocked())
}

func (m *Manager) mergedLocked() map[string]any {
	if m.merged == nil {
		result := make(map[string]any)
		for _, layer := range m.layers {
			result = DeepMerge(result, layer.Data)
		}
		m.merged = result
	}
	return m.merged
}

// Get returns the effective value for a setting path and the layer that
// provides it.
func (m *Manager) Get(path string) (any, *Layer, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := len(m.layers) - 1; i >= 0; i-- {
		layer := m.layers[i]
		if val, ok := GetByPath(layer.Data, path); ok {
			if _, isMap := val.(map[string]any); !isMap {
				return val, layer, true
			}
		}
	}
	return nil, nil, false
}

// GetEffectiveValue returns the merged value for a setting path. Maps are
// merged across layers.
func (m *Manager) GetEffectiveValue(path string) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	val, ok := GetByPath(m.mergedLocked(), path)
	return cloneValue(val), ok
}

// Set sets a value in the layer of source, creating the layer if needed.
func (m *Manager) Set(source Source, path string, value any) {
	m.mu.Lock()
	var target *Layer
	for _, l := range m.layers {
		if l.Source == source {
			target = l
			break
		}
	}
	if target != nil {
		SetByPath(target.Data, path, value)
		m.merged = nil
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	target = NewLayer(source, nil)
	SetByPath(target.Data, path, value)
	m.AddLayer(target)
}
