package daf

import (
	"sync"

	"github.com/tanaylab/daf-go/backend"
	"github.com/tanaylab/daf-go/layout"
)

// cacheKind tags which artifact a cacheKey addresses.
type cacheKind int

const (
	cacheKindMatrixRelayout cacheKind = iota
	cacheKindAxisIndex
)

// cacheKey is a structured key: kind + (axis[,axis2], name, layout)
// plus the version counters of everything the cached artifact depends on.
// A stale entry (current versions no longer matching) is simply never
// looked up again and is overwritten the next time it's recomputed; an
// eager sweep isn't needed because every read path recomputes the key from
// current versions before consulting the map.
type cacheKey struct {
	kind         cacheKind
	rows, cols   string
	name         string
	major        layout.MajorAxis
	axisVersion1 uint64
	axisVersion2 uint64
	propVersion  uint64
}

// cache is the single concurrent map each store owns. Multiple
// readers may consult it under the store's shared read lock, so it carries
// its own mutex rather than relying solely on the store's coarser lock.
type cache struct {
	mu      sync.Mutex
	entries map[cacheKey]any

	// totalBytes tracks the approximate footprint of cached artifacts;
	// budgetBytes > 0 caps it, evicting entries on put until under budget.
	totalBytes  int
	budgetBytes int
}

func newCache() *cache {
	return &cache{entries: make(map[cacheKey]any)}
}

// entrySize approximates a cached artifact's footprint for the budget.
func entrySize(v any) int {
	switch artifact := v.(type) {
	case backend.MatrixData:
		return artifact.Matrix.ComputeSize()
	case backend.VectorData:
		return artifact.ComputeSize()
	case map[string]int: // axis-name-to-index dictionary
		size := 0
		for name := range artifact {
			size += len(name) + 8
		}
		return size
	default:
		return 64
	}
}

// drop removes one entry, keeping the byte accounting in sync; callers
// must hold c.mu.
func (c *cache) drop(k cacheKey) {
	if old, ok := c.entries[k]; ok {
		c.totalBytes -= entrySize(old)
		delete(c.entries, k)
	}
}

func (c *cache) get(key cacheKey) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[key]
	return v, ok
}

func (c *cache) put(key cacheKey, v any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if old, ok := c.entries[key]; ok {
		c.totalBytes -= entrySize(old)
	}
	c.entries[key] = v
	c.totalBytes += entrySize(v)
	if c.budgetBytes <= 0 {
		return
	}
	for k, e := range c.entries {
		if c.totalBytes <= c.budgetBytes {
			break
		}
		if k == key {
			continue // never evict the artifact being published
		}
		c.totalBytes -= entrySize(e)
		delete(c.entries, k)
	}
}

// invalidateAxis drops every entry that mentions axis, since its version
// counter just changed and any key computed from the old version is simply
// unreachable going forward; entries are also dropped eagerly here so a
// long-lived store doesn't accumulate unreachable relayouts of a deleted
// axis.
func (c *cache) invalidateAxis(axis string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		if k.rows == axis || k.cols == axis {
			c.drop(k)
		}
	}
}

func (c *cache) invalidateScalar(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		if k.kind == cacheKindAxisIndex && k.name == name {
			c.drop(k)
		}
	}
}

func (c *cache) invalidateVector(axis, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		if k.rows == axis && k.name == name {
			c.drop(k)
		}
	}
}

// invalidateMatrix drops both orientations of a logical matrix: an
// auto-relayout requested under (cols, rows) is cached under that flipped
// key, and a write under (rows, cols) makes it stale too.
func (c *cache) invalidateMatrix(rows, cols, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		if k.name != name {
			continue
		}
		if (k.rows == rows && k.cols == cols) || (k.rows == cols && k.cols == rows) {
			c.drop(k)
		}
	}
}
