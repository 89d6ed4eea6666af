package kymfile

import (
	"sort"
	"sync"
)

// Cache keeps opened Files keyed by path so repeated requests reuse the
// decoded image and its analysis.
//
// Cache is safe for concurrent use by multiple goroutines.
//
// # Memory Management
//
// Files remain in memory until removed via Evict or Clear. A 30000 line
// kymograph is a few megabytes of samples plus its series.
type Cache struct {
	mu    sync.RWMutex
	files map[string]*File
	opts  OpenOptions
}

// NewCache creates an empty cache. opts is used for every Open.
func NewCache(opts OpenOptions) *Cache {
	return &Cache{
		files: make(map[string]*File),
		opts:  opts,
	}
}

// Load returns the cached File for path, opening it on first use.
//
// The File is cached under the exact path string given. Different spellings
// of the same path produce separate entries.
func (c *Cache) Load(path string) (*File, error) {
	c.mu.RLock()
	if f, ok := c.files[path]; ok {
		c.mu.RUnlock()
		return f, nil
	}
	c.mu.RUnlock()

	f, err := Open(path, c.opts)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.files[path]; ok {
		return existing, nil
	}
	c.files[path] = f
	return f, nil
}

// Get returns the cached File for path without opening it.
func (c *Cache) Get(path string) (*File, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	f, ok := c.files[path]
	return f, ok
}

// Paths returns the cached paths in sorted order.
func (c *Cache) Paths() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	paths := make([]string, 0, len(c.files))
	for p := range c.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Clear removes all Files from the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.files = make(map[string]*File)
	c.mu.Unlock()
}

// Evict removes the File for path. It does nothing if path is not cached.
func (c *Cache) Evict(path string) {
	c.mu.Lock()
	delete(c.files, path)
	c.mu.Unlock()
}
