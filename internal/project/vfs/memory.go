package vfs

import (
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"
)

// MemFS implements FS in memory. It is used by tests and by dry-run
// saves.
//
// MemFS is safe for concurrent use.
type MemFS struct {
	mu     sync.RWMutex
	nodes  map[string]*memNode
	writes int
}

// memNode is either a directory (data is nil, dir is true) or a file.
type memNode struct {
	dir     bool
	data    []byte
	modTime time.Time
}

func (n *memNode) info(p string) FileInfo {
	if n.dir {
		return NewFileInfo(p, path.Base(p), 0, fs.ModeDir|0755, n.modTime, true)
	}
	return NewFileInfo(p, path.Base(p), int64(len(n.data)), 0644, n.modTime, false)
}

// NewMemFS creates an empty in-memory file system with only the root
// directory.
func NewMemFS() *MemFS {
	return &MemFS{nodes: map[string]*memNode{"/": {dir: true}}}
}

var _ FS = (*MemFS)(nil)

func (m *MemFS) ReadFile(filePath string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	filePath = cleanPath(filePath)
	n, ok := m.nodes[filePath]
	switch {
	case !ok:
		return nil, &fs.PathError{Op: "read", Path: filePath, Err: fs.ErrNotExist}
	case n.dir:
		return nil, &fs.PathError{Op: "read", Path: filePath, Err: syscall.EISDIR}
	}
	return append([]byte(nil), n.data...), nil
}

// WriteFile stores a copy of data and creates missing parent directories.
func (m *MemFS) WriteFile(filePath string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	filePath = cleanPath(filePath)
	if n, ok := m.nodes[filePath]; ok && n.dir {
		return &fs.PathError{Op: "write", Path: filePath, Err: syscall.EISDIR}
	}
	var missing []string
	for dir := path.Dir(filePath); dir != "/"; dir = path.Dir(dir) {
		n, ok := m.nodes[dir]
		if !ok {
			missing = append(missing, dir)
			continue
		}
		if !n.dir {
			return &fs.PathError{Op: "mkdir", Path: dir, Err: syscall.ENOTDIR}
		}
	}
	now := time.Now()
	for _, dir := range missing {
		m.nodes[dir] = &memNode{dir: true, modTime: now}
	}
	m.nodes[filePath] = &memNode{data: append([]byte{}, data...), modTime: now}
	m.writes++
	return nil
}

// Remove deletes a file or an empty directory. Missing paths are ignored.
func (m *MemFS) Remove(filePath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	filePath = cleanPath(filePath)
	n, ok := m.nodes[filePath]
	if !ok {
		return nil
	}
	if n.dir && len(m.children(filePath)) > 0 {
		return &fs.PathError{Op: "remove", Path: filePath, Err: syscall.ENOTEMPTY}
	}
	delete(m.nodes, filePath)
	return nil
}

func (m *MemFS) Stat(filePath string) (FileInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	filePath = cleanPath(filePath)
	n, ok := m.nodes[filePath]
	if !ok {
		return FileInfo{}, &fs.PathError{Op: "stat", Path: filePath, Err: fs.ErrNotExist}
	}
	return n.info(filePath), nil
}

func (m *MemFS) ReadDir(dirPath string) ([]FileInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	dirPath = cleanPath(dirPath)
	n, ok := m.nodes[dirPath]
	switch {
	case !ok:
		return nil, &fs.PathError{Op: "readdir", Path: dirPath, Err: fs.ErrNotExist}
	case !n.dir:
		return nil, &fs.PathError{Op: "readdir", Path: dirPath, Err: syscall.ENOTDIR}
	}

	children := m.children(dirPath)
	sort.Strings(children)
	entries := make([]FileInfo, len(children))
	for i, p := range children {
		entries[i] = m.nodes[p].info(p)
	}
	return entries, nil
}

// children lists the paths directly inside dir. The caller holds the lock.
func (m *MemFS) children(dir string) []string {
	var out []string
	for p := range m.nodes {
		if p != "/" && p != dir && path.Dir(p) == dir {
			out = append(out, p)
		}
	}
	return out
}

func (m *MemFS) Exists(filePath string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.nodes[cleanPath(filePath)]
	return ok
}

func (m *MemFS) IsDir(filePath string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.nodes[cleanPath(filePath)]
	return ok && n.dir
}

// AddFile seeds a file during test setup.
func (m *MemFS) AddFile(filePath string, content string) error {
	return m.WriteFile(filePath, []byte(content))
}

// Files returns the sorted paths of all regular files.
func (m *MemFS) Files() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var files []string
	for p, n := range m.nodes {
		if !n.dir {
			files = append(files, p)
		}
	}
	sort.Strings(files)
	return files
}

// Writes returns the number of WriteFile calls that succeeded.
func (m *MemFS) Writes() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.writes
}

// cleanPath turns p into an absolute slash-separated path.
func cleanPath(p string) string {
	p = path.Clean(strings.ReplaceAll(p, "\\", "/"))
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}
