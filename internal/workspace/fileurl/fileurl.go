// Package fileurl provides scheme-qualified file URLs as stored in project
// configuration files.
//
// A URL is either a plain file URL ("file:///abs/path") or an archive URL
// pointing inside a jar ("jar:///abs/lib.jar!/"). URLs are kept as strings so
// they can be used directly as map keys and compared cheaply.
package fileurl

import (
	stdpath "path"
	"strings"
)

// Schemes understood by this package.
const (
	SchemeFile = "file"
	SchemeJar  = "jar"

	// JarSeparator separates the archive path from the path inside it.
	JarSeparator = "!/"
)

// URL is a scheme-qualified file location.
type URL string

// Empty is the zero URL.
const Empty URL = ""

// FromPath creates a file URL for an absolute slash-separated path.
func FromPath(p string) URL {
	return URL(SchemeFile + "://" + cleanPath(p))
}

// JarFromPath creates an archive root URL for the archive at p.
func JarFromPath(p string) URL {
	return URL(SchemeJar + "://" + cleanPath(p) + JarSeparator)
}

// Parse accepts either a URL or a bare path and returns a URL.
func Parse(s string) URL {
	if strings.Contains(s, "://") {
		return URL(s)
	}
	return FromPath(s)
}

// String implements fmt.Stringer.
func (u URL) String() string { return string(u) }

// IsEmpty reports whether u is the zero URL.
func (u URL) IsEmpty() bool { return u == "" }

// Scheme returns the URL scheme, or "" when u has none.
func (u URL) Scheme() string {
	s := string(u)
	if i := strings.Index(s, "://"); i >= 0 {
		return s[:i]
	}
	return ""
}

// Path returns the path component without scheme. For jar URLs the
// trailing "!/" separator is dropped so the result names the archive.
func (u URL) Path() string {
	s := string(u)
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	s = strings.TrimSuffix(s, JarSeparator)
	return s
}

// FileName returns the last path element.
func (u URL) FileName() string {
	p := u.Path()
	if p == "" || p == "/" {
		return ""
	}
	return stdpath.Base(p)
}

// NameWithoutExtension returns FileName without its extension.
func (u URL) NameWithoutExtension() string {
	name := u.FileName()
	if ext := stdpath.Ext(name); ext != "" {
		return strings.TrimSuffix(name, ext)
	}
	return name
}

// Parent returns the URL of the containing directory. Archive URLs resolve
// to the directory that contains the archive.
func (u URL) Parent() URL {
	p := u.Path()
	if p == "" || p == "/" {
		return Empty
	}
	return FromPath(stdpath.Dir(p))
}

// Append returns the URL of a child path below u.
func (u URL) Append(rel string) URL {
	if rel == "" {
		return u
	}
	if u.Scheme() == SchemeJar {
		return URL(string(u) + strings.TrimPrefix(rel, "/"))
	}
	return FromPath(stdpath.Join(u.Path(), rel))
}

// IsUnder reports whether u equals dir or lies below it.
func (u URL) IsUnder(dir URL) bool {
	p, d := u.Path(), dir.Path()
	if d == "" {
		return false
	}
	if p == d {
		return true
	}
	return strings.HasPrefix(p, strings.TrimSuffix(d, "/")+"/")
}

// Sibling returns a URL with the same parent and a different file name.
func (u URL) Sibling(name string) URL {
	return u.Parent().Append(name)
}

func cleanPath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	if p == "" {
		return ""
	}
	cleaned := stdpath.Clean(p)
	if cleaned == "." {
		return ""
	}
	return cleaned
}
