package photometry

import (
	"slices"
	"sync"

	"github.com/ilo21/fpexplorer/photometry/config"
	"golang.org/x/exp/maps"
)

// CacheKey identifies a prepared subject by everything that shapes it
type CacheKey struct {
	Subject       string
	Streams       [2]string // signal, control
	Trim          config.TrimSpec
	Downsample    int
	Normalization config.NormalizationSpec
}

// PreparedSubject is a subject's trimmed, downsampled and normalized data
type PreparedSubject struct {
	Subject     string               `json:"subject"`
	Trimmed     TimeSeries           `json:"trimmed"`
	Downsampled TimeSeries           `json:"downsampled"`
	Normalized  *NormalizationResult `json:"normalized"`
}

type cacheEntry struct {
	once  sync.Once
	value *PreparedSubject
	err   error
}

// Cache memoizes prepared subjects for a session. Each key is built at most
// once at a time; concurrent callers of the same key wait for that build.
// Failed builds are not kept.
type Cache struct {
	mu      sync.Mutex
	entries map[CacheKey]*cacheEntry
}

// NewCache creates an empty cache
func NewCache() *Cache {
	return &Cache{entries: make(map[CacheKey]*cacheEntry)}
}

// GetOrBuild returns the cached value for key, calling build on a miss
func (c *Cache) GetOrBuild(key CacheKey, build func() (*PreparedSubject, error)) (*PreparedSubject, error) {
	c.mu.Lock()
	entry, ok := c.entries[key]
	if !ok {
		entry = &cacheEntry{}
		c.entries[key] = entry
	}
	c.mu.Unlock()

	entry.once.Do(func() {
		entry.value, entry.err = build()
	})

	if entry.err != nil {
		c.mu.Lock()
		if c.entries[key] == entry {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, entry.err
	}
	return entry.value, nil
}

// Subjects lists the subjects with at least one cached entry, sorted
func (c *Cache) Subjects() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	subjects := make(map[string]struct{})
	for key := range c.entries {
		subjects[key.Subject] = struct{}{}
	}
	names := maps.Keys(subjects)
	slices.Sort(names)
	return names
}

// Invalidate drops every entry of subject
func (c *Cache) Invalidate(subject string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	maps.DeleteFunc(c.entries, func(key CacheKey, _ *cacheEntry) bool {
		return key.Subject == subject
	})
}

// Len returns the number of cached entries
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
