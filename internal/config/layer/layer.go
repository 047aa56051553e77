// Package layer merges configuration from several sources by priority.
// Higher priority layers override values from lower priority layers.
package layer

// Layer is one configuration source.
type Layer struct {
	// Name identifies the layer, e.g. "defaults" or "project".
	Name string

	// Priority determines merge order (higher overrides lower).
	Priority int

	Source Source

	// Path is the file the layer was loaded from, if any.
	Path string

	// Data holds the configuration values as a nested map.
	Data map[string]any
}

// NewLayer creates a layer with the standard name and priority of source.
func NewLayer(source Source, data map[string]any) *Layer {
	if data == nil {
		data = make(map[string]any)
	}
	return &Layer{
		Name:     source.String(),
		Priority: source.Priority(),
		Source:   source,
		Data:     data,
	}
}

// Clone creates a deep copy of the layer.
func (l *Layer) Clone() *Layer {
	c := *l
	c.Data = cloneMap(l.Data)
	return &c
}

// Source indicates where a configuration layer came from.
type Source uint8

const (
	// SourceBuiltin holds the built-in defaults.
	SourceBuiltin Source = iota
	// SourceUser is the user config file (~/.config/jpsctl/).
	SourceUser
	// SourceProject is the config file next to the project (.jpsctl.*).
	SourceProject
	// SourceEnv holds JPSCTL_* environment variables.
	SourceEnv
	// SourceArgs holds command-line flags.
	SourceArgs
)

// String returns the standard layer name of the source.
func (s Source) String() string {
	switch s {
	case SourceBuiltin:
		return "defaults"
	case SourceUser:
		return "user"
	case SourceProject:
		return "project"
	case SourceEnv:
		return "environment"
	case SourceArgs:
		return "arguments"
	default:
		return "unknown"
	}
}

// Priority returns the standard priority of the source.
func (s Source) Priority() int {
	switch s {
	case SourceUser:
		return 100
	case SourceProject:
		return 200
	case SourceEnv:
		return 500
	case SourceArgs:
		return 600
	default:
		return 0
	}
}

func cloneMap(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}
	dst := make(map[string]any, len(src))
	for key, val := range src {
		dst[key] = cloneValue(val)
	}
	return dst
}

func cloneValue(val any) any {
	switch v := val.(type) {
	case map[string]any:
		return cloneMap(v)
	case []any:
		dst := make([]any, len(v))
		for i, item := range v {
			dst[i] = cloneValue(item)
		}
		return dst
	default:
		return val
	}
}
