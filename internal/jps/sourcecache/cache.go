// Package sourcecache persists the binding between directory-based storage
// files and the ids of their DirectorySource, so entities loaded in a new
// session keep the sources they had in the previous one.
package sourcecache

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"

	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"github.com/dshills/jpsmodel/internal/jps"
	"github.com/dshills/jpsmodel/internal/workspace/fileurl"
)

const keyPrefix = "names/"

// ErrClosed is returned by operations on a closed cache.
var ErrClosed = errors.New("source cache closed")

// Config configures a Cache.
type Config struct {
	// Dir is the badger directory. Empty keeps the cache in memory.
	Dir    string
	Logger *logrus.Logger
}

// Cache stores FileInDirectorySourceNames entries per project.
type Cache struct {
	db  *badger.DB
	log *logrus.Logger
}

// Open opens or creates the cache.
func Open(cfg Config) (*Cache, error) {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}

	opts := badger.DefaultOptions(cfg.Dir)
	if cfg.Dir == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil
	opts.SyncWrites = false

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open source cache: %w", err)
	}
	cfg.Logger.WithFields(logrus.Fields{"dir": cfg.Dir}).Debug("source cache opened")
	return &Cache{db: db, log: cfg.Logger}, nil
}

// Close releases the underlying database.
func (c *Cache) Close() error {
	if c.db == nil {
		return nil
	}
	err := c.db.Close()
	c.db = nil
	return err
}

func projectPrefix(project fileurl.URL) []byte {
	return []byte(keyPrefix + string(project) + "\x00")
}

func entryKey(project fileurl.URL, e jps.SourceName) []byte {
	key := projectPrefix(project)
	key = append(key, e.Directory...)
	key = append(key, 0)
	return append(key, e.FileName...)
}

func parseKey(prefix, key []byte) (fileurl.URL, string, bool) {
	rest := bytes.TrimPrefix(key, prefix)
	dir, name, ok := bytes.Cut(rest, []byte{0})
	if !ok {
		return "", "", false
	}
	return fileurl.URL(dir), string(name), true
}

// Save replaces the entries stored for project.
func (c *Cache) Save(project fileurl.URL, entries []jps.SourceName) error {
	if c.db == nil {
		return ErrClosed
	}
	prefix := projectPrefix(project)
	err := c.db.Update(func(txn *badger.Txn) error {
		var stale [][]byte
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			stale = append(stale, it.Item().KeyCopy(nil))
		}
		it.Close()

		for _, k := range stale {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		for _, e := range entries {
			if err := txn.Set(entryKey(project, e), []byte(strconv.Itoa(e.FileNameID))); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save source names: %w", err)
	}
	c.log.WithFields(logrus.Fields{"project": project.String(), "entries": len(entries)}).Debug("source names saved")
	return nil
}

// Load returns the entries stored for project. Malformed records are
// skipped.
func (c *Cache) Load(project fileurl.URL) ([]jps.SourceName, error) {
	if c.db == nil {
		return nil, ErrClosed
	}
	prefix := projectPrefix(project)
	var out []jps.SourceName
	err := c.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			dir, name, ok := parseKey(prefix, item.Key())
			v, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			id, convErr := strconv.Atoi(string(v))
			if !ok || convErr != nil || id <= 0 {
				c.log.WithFields(logrus.Fields{"key": string(item.Key())}).Warn("skipping malformed source name record")
				continue
			}
			out = append(out, jps.SourceName{Directory: dir, FileName: name, FileNameID: id})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load source names: %w", err)
	}
	return out, nil
}

// Seed binds the stored entries of project into names. Seeding must happen
// before the project's serializers are created.
func (c *Cache) Seed(project fileurl.URL, names *jps.FileInDirectorySourceNames) error {
	entries, err := c.Load(project)
	if err != nil {
		return err
	}
	for _, e := range entries {
		names.Bind(e.Directory, e.FileName, e.FileNameID)
	}
	return nil
}

// Store writes the current entries of names for project.
func (c *Cache) Store(project fileurl.URL, names *jps.FileInDirectorySourceNames) error {
	return c.Save(project, names.Entries())
}
