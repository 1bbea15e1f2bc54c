// Package cache holds small static file contents in a bounded LRU keyed by
// canonical path. Entries are validated against the file's mtime on every
// lookup, so a rewritten file is a miss rather than a stale hit.
package cache

import (
	"container/list"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Entry is one cached file.
type Entry struct {
	Content []byte
	ModTime time.Time
}

// FileCache is an LRU of path -> Entry. One mutex guards the map and the
// recency list; both always hold exactly the same key set.
type FileCache struct {
	log        zerolog.Logger
	mu         sync.Mutex
	entries    map[string]*cacheEntry
	lru        *list.List // front = most recently used; values are keys
	maxEntries int
}

type cacheEntry struct {
	data Entry
	elem *list.Element
}

// DefaultMaxEntries bounds the cache when no size is configured.
const DefaultMaxEntries = 100

// NewFileCache creates a cache bounded to maxEntries (DefaultMaxEntries
// when maxEntries is not positive).
func NewFileCache(maxEntries int, log zerolog.Logger) *FileCache {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &FileCache{
		log:        log,
		entries:    make(map[string]*cacheEntry),
		lru:        list.New(),
		maxEntries: maxEntries,
	}
}

// Get returns the entry for path only when it is present and its stored
// mtime equals modTime; a hit moves the key to the front of the LRU.
func (fc *FileCache) Get(path string, modTime time.Time) (Entry, bool) {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	ce, ok := fc.entries[path]
	if !ok || !ce.data.ModTime.Equal(modTime) {
		fc.log.Debug().Str("path", path).Msg("cache miss (not found or stale)")
		return Entry{}, false
	}

	fc.lru.MoveToFront(ce.elem)
	fc.log.Debug().Str("path", path).Int("size", len(ce.data.Content)).Msg("cache hit")
	return ce.data, true
}

// Put replaces any existing entry for path, inserts it at the front, then
// evicts from the tail while the cache exceeds its bound. Empty content is
// rejected.
func (fc *FileCache) Put(path string, content []byte, modTime time.Time) {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	if len(content) == 0 {
		fc.log.Error().Str("path", path).Msg("refusing to cache empty content")
		return
	}

	if ce, ok := fc.entries[path]; ok {
		fc.lru.Remove(ce.elem)
		delete(fc.entries, path)
	}

	elem := fc.lru.PushFront(path)
	fc.entries[path] = &cacheEntry{
		data: Entry{Content: content, ModTime: modTime},
		elem: elem,
	}
	fc.log.Debug().Str("path", path).Int("size", len(content)).Msg("cache updated")

	for len(fc.entries) > fc.maxEntries {
		oldest := fc.lru.Back()
		if oldest == nil {
			break
		}
		key := oldest.Value.(string)
		fc.lru.Remove(oldest)
		delete(fc.entries, key)
		fc.log.Debug().Str("path", key).Msg("evicted cache entry")
	}
}

// Len returns the number of cached entries.
func (fc *FileCache) Len() int {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return len(fc.entries)
}
