package jps

import (
	"sync"
	"sync/atomic"
	"unicode"

	"github.com/dshills/jpsmodel/internal/workspace/fileurl"
)

// fileNameIDs allocates process-wide unique DirectorySource ids.
var fileNameIDs atomic.Int64

func nextFileNameID() int {
	return int(fileNameIDs.Add(1))
}

// NewFileNameID returns an id for the DirectorySource of a new entity. The
// file name is chosen when the entity is first saved.
func NewFileNameID() int {
	return nextFileNameID()
}

// reserveFileNameIDs makes sure future ids are greater than max.
func reserveFileNameIDs(max int) {
	for {
		cur := fileNameIDs.Load()
		if cur >= int64(max) || fileNameIDs.CompareAndSwap(cur, int64(max)) {
			return
		}
	}
}

// SourceName is one persisted directory source binding.
type SourceName struct {
	Directory  fileurl.URL
	FileName   string
	FileNameID int
}

type dirAndName struct {
	dir  fileurl.URL
	name string
}

// FileInDirectorySourceNames remembers which file a DirectorySource was
// loaded from, so reloading the same file yields an equal source and a
// renamed entity can be moved to a new file.
type FileInDirectorySourceNames struct {
	mu     sync.Mutex
	byName map[dirAndName]int
	byID   map[int]dirAndName
}

// NewFileInDirectorySourceNames creates an empty table.
func NewFileInDirectorySourceNames() *FileInDirectorySourceNames {
	return &FileInDirectorySourceNames{
		byName: make(map[dirAndName]int),
		byID:   make(map[int]dirAndName),
	}
}

// SourceFor returns the file name id bound to dir/fileName, allocating one
// on first use.
func (n *FileInDirectorySourceNames) SourceFor(dir fileurl.URL, fileName string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	key := dirAndName{dir: dir, name: fileName}
	if id, ok := n.byName[key]; ok {
		return id
	}
	id := nextFileNameID()
	n.byName[key] = id
	n.byID[id] = key
	return id
}

// Bind records that id now refers to dir/fileName.
func (n *FileInDirectorySourceNames) Bind(dir fileurl.URL, fileName string, id int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if old, ok := n.byID[id]; ok {
		delete(n.byName, old)
	}
	key := dirAndName{dir: dir, name: fileName}
	n.byName[key] = id
	n.byID[id] = key
	reserveFileNameIDs(id)
}

// FileName returns the file name bound to id.
func (n *FileInDirectorySourceNames) FileName(id int) (string, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	key, ok := n.byID[id]
	return key.name, ok
}

// Entries returns all bindings.
func (n *FileInDirectorySourceNames) Entries() []SourceName {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]SourceName, 0, len(n.byID))
	for id, key := range n.byID {
		out = append(out, SourceName{Directory: key.dir, FileName: key.name, FileNameID: id})
	}
	return out
}

// SanitizeFileName maps an entity name onto the base name of its file in a
// directory-based storage. Letters, digits, '_' and '-' are kept; every
// other character becomes '_'.
func SanitizeFileName(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-' {
			out = append(out, r)
			continue
		}
		out = append(out, '_')
	}
	return string(out)
}
