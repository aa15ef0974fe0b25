// Package cache memoizes file and directory reads keyed by path and
// modification time.
package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Key identifies one version of a filesystem entry. A changed mtime yields
// a different key; existing entries are never updated in place.
type Key struct {
	Path    string
	ModTime int64 // UnixNano
}

// Loader produces the cached value for a path.
type Loader func(path string) (string, error)

// Stats reports cache effectiveness.
type Stats struct {
	Hits   int
	Misses int
	Len    int
}

// PathCache is a bounded LRU of loaded contents keyed by (path, mtime).
// Superseded versions are not removed eagerly; they age out through LRU
// eviction.
type PathCache struct {
	entries *lru.Cache[Key, string]

	mu     sync.Mutex
	hits   int
	misses int
}

// New creates a PathCache holding at most capacity entries.
func New(capacity int) (*PathCache, error) {
	entries, err := lru.New[Key, string](capacity)
	if err != nil {
		return nil, fmt.Errorf("create path cache: %w", err)
	}
	return &PathCache{entries: entries}, nil
}

// GetOrLoad returns the cached value for path when its mtime is unchanged,
// otherwise it calls loader and caches the result under the fresh key.
// Loader errors are returned and nothing is cached.
func (c *PathCache) GetOrLoad(path string, loader Loader) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", err
	}

	key := Key{Path: abs, ModTime: info.ModTime().UnixNano()}
	if v, ok := c.entries.Get(key); ok {
		c.count(true)
		return v, nil
	}
	c.count(false)

	v, err := loader(abs)
	if err != nil {
		return "", err
	}
	c.entries.Add(key, v)
	return v, nil
}

// Contains reports whether path is cached at the given mtime.
func (c *PathCache) Contains(path string, modTime time.Time) bool {
	return c.entries.Contains(Key{Path: path, ModTime: modTime.UnixNano()})
}

// Purge drops every entry.
func (c *PathCache) Purge() {
	c.entries.Purge()
}

// Stats returns hit/miss counters and the current size.
func (c *PathCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{Hits: c.hits, Misses: c.misses, Len: c.entries.Len()}
}

func (c *PathCache) count(hit bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if hit {
		c.hits++
	} else {
		c.misses++
	}
}
