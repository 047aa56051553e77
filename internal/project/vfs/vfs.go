// Package vfs provides the file system abstraction behind project
// configuration storage.
//
// Serializers never touch the disk directly: the FS interface allows
// swapping the OS file system for an in-memory one in tests and lets the
// watcher and the writer share one view of the project directory.
package vfs

import (
	"io/fs"
	"time"
)

// FS is the file system used to read and write configuration files.
// Paths are absolute and slash-separated.
type FS interface {
	// ReadFile reads the entire file content.
	ReadFile(path string) ([]byte, error)

	// WriteFile replaces the content of a file, creating parent
	// directories as needed.
	WriteFile(path string, data []byte) error

	// Remove removes a file or empty directory. Removing a missing path
	// is not an error.
	Remove(path string) error

	// Stat returns file information.
	Stat(path string) (FileInfo, error)

	// ReadDir returns the entries of a directory sorted by name.
	ReadDir(path string) ([]FileInfo, error)

	// Exists returns true if the path exists.
	Exists(path string) bool

	// IsDir returns true if the path is a directory.
	IsDir(path string) bool
}

// FileInfo describes a file or directory.
type FileInfo struct {
	path    string
	name    string
	size    int64
	mode    fs.FileMode
	modTime time.Time
	isDir   bool
}

// NewFileInfo creates a FileInfo from the given parameters.
func NewFileInfo(path, name string, size int64, mode fs.FileMode, modTime time.Time, isDir bool) FileInfo {
	return FileInfo{
		path:    path,
		name:    name,
		size:    size,
		mode:    mode,
		modTime: modTime,
		isDir:   isDir,
	}
}

// Path returns the full path.
func (fi FileInfo) Path() string { return fi.path }

// Name returns the base name.
func (fi FileInfo) Name() string { return fi.name }

// Size returns the file size in bytes.
func (fi FileInfo) Size() int64 { return fi.size }

// Mode returns the file mode.
func (fi FileInfo) Mode() fs.FileMode { return fi.mode }

// ModTime returns the modification time.
func (fi FileInfo) ModTime() time.Time { return fi.modTime }

// IsDir returns true if this is a directory.
func (fi FileInfo) IsDir() bool { return fi.isDir }

// ListFiles returns the regular files directly inside dir whose name ends
// with ext. A missing directory yields no files.
func ListFiles(fsys FS, dir, ext string) []FileInfo {
	entries, err := fsys.ReadDir(dir)
	if err != nil {
		return nil
	}
	var out []FileInfo
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if ext != "" && !hasExt(e.Name(), ext) {
			continue
		}
		out = append(out, e)
	}
	return out
}

func hasExt(name, ext string) bool {
	return len(name) > len(ext) && name[len(name)-len(ext):] == ext
}
