package manifest

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/fyrsmithlabs/pkgforge/internal/graph"
)

// DefaultCacheSize bounds the number of memoized lookups.
const DefaultCacheSize = 1024

// CachedLookup memoizes successful lookups from a slower source such as a
// remote registry index. Failures are not cached.
type CachedLookup struct {
	source graph.Lookup
	cache  *lru.Cache[string, graph.Package]
}

// NewCachedLookup wraps source with an LRU cache of the given size.
func NewCachedLookup(source graph.Lookup, size int) (*CachedLookup, error) {
	if source == nil {
		return nil, fmt.Errorf("manifest: lookup source is required")
	}
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, graph.Package](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create lookup cache: %w", err)
	}
	return &CachedLookup{source: source, cache: cache}, nil
}

// Lookup implements graph.Lookup.
func (c *CachedLookup) Lookup(name string) (graph.Package, error) {
	if p, ok := c.cache.Get(name); ok {
		return clonePackage(p), nil
	}
	p, err := c.source.Lookup(name)
	if err != nil {
		return graph.Package{}, err
	}
	c.cache.Add(name, clonePackage(p))
	return p, nil
}

// Len returns the number of cached entries.
func (c *CachedLookup) Len() int {
	return c.cache.Len()
}

func clonePackage(p graph.Package) graph.Package {
	p.Dependencies = append([]string(nil), p.Dependencies...)
	return p
}
