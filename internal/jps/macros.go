package jps

import (
	"sort"
	"strings"

	"github.com/beevik/etree"
)

// Well-known path macros.
const (
	MacroProjectDir      = "PROJECT_DIR"
	MacroModuleDir       = "MODULE_DIR"
	MacroUserHome        = "USER_HOME"
	MacroMavenRepository = "MAVEN_REPOSITORY"
)

type macro struct {
	name string
	path string
}

// PathMacros expands and collapses $NAME$ path macros in attribute values
// and text. Collapsing prefers the longest matching path, so $MODULE_DIR$
// wins over $PROJECT_DIR$ for a module inside the project directory.
type PathMacros struct {
	macros []macro
}

// NewPathMacros creates macros for the given named paths. Empty paths are
// ignored.
func NewPathMacros(paths map[string]string) *PathMacros {
	m := &PathMacros{}
	for name, p := range paths {
		m.set(name, p)
	}
	return m
}

func (m *PathMacros) set(name, p string) {
	p = strings.TrimSuffix(strings.ReplaceAll(p, "\\", "/"), "/")
	if p == "" {
		return
	}
	for i := range m.macros {
		if m.macros[i].name == name {
			m.macros[i].path = p
			m.sort()
			return
		}
	}
	m.macros = append(m.macros, macro{name: name, path: p})
	m.sort()
}

func (m *PathMacros) sort() {
	sort.SliceStable(m.macros, func(i, j int) bool {
		if len(m.macros[i].path) != len(m.macros[j].path) {
			return len(m.macros[i].path) > len(m.macros[j].path)
		}
		// MODULE_DIR before PROJECT_DIR for the same directory.
		return m.macros[i].name < m.macros[j].name
	})
}

// With returns a copy of m with name bound to p.
func (m *PathMacros) With(name, p string) *PathMacros {
	c := &PathMacros{macros: append([]macro(nil), m.macros...)}
	c.set(name, p)
	return c
}

// Path returns the path bound to name.
func (m *PathMacros) Path(name string) (string, bool) {
	for _, mc := range m.macros {
		if mc.name == name {
			return mc.path, true
		}
	}
	return "", false
}

// Expand replaces every known $NAME$ occurrence in s. Unknown macros are
// left untouched.
func (m *PathMacros) Expand(s string) string {
	if !strings.Contains(s, "$") {
		return s
	}
	for _, mc := range m.macros {
		s = strings.ReplaceAll(s, "$"+mc.name+"$", mc.path)
	}
	return s
}

// Collapse replaces the longest known path prefix in s with its macro.
// Only path prefixes directly after an optional URL scheme are collapsed.
func (m *PathMacros) Collapse(s string) string {
	prefix, rest := "", s
	if i := strings.Index(s, "://"); i >= 0 {
		prefix, rest = s[:i+3], s[i+3:]
	}
	for _, mc := range m.macros {
		if !hasPathPrefix(rest, mc.path) {
			continue
		}
		return prefix + "$" + mc.name + "$" + rest[len(mc.path):]
	}
	return s
}

func hasPathPrefix(s, dir string) bool {
	if !strings.HasPrefix(s, dir) {
		return false
	}
	if len(s) == len(dir) {
		return true
	}
	switch s[len(dir)] {
	case '/', '!':
		return true
	}
	return false
}

// expandElement rewrites every attribute and text value below el.
func expandElement(el *etree.Element, fn func(string) string) {
	for i := range el.Attr {
		el.Attr[i].Value = fn(el.Attr[i].Value)
	}
	for _, tok := range el.Child {
		switch t := tok.(type) {
		case *etree.Element:
			expandElement(t, fn)
		case *etree.CharData:
			if !isBlank(t.Data) {
				t.Data = fn(t.Data)
			}
		}
	}
}
