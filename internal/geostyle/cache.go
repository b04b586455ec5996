package geostyle

import (
	"container/list"
	"sync"
	"time"
)

// Revision fingerprints the files a layer is rendered from. A cached layer is
// only valid for the revision it was rendered at.
type Revision string

// LayerCache holds encoded styled layers by name, evicting the least recently
// used layer once full. Entries expire after the TTL or as soon as the layer's
// revision moves on.
type LayerCache struct {
	mu     sync.Mutex
	lru    *list.List // front is most recently used
	byName map[string]*list.Element
	limit  int
	ttl    time.Duration
	now    func() time.Time

	hits, misses, stale int64
}

type renderedLayer struct {
	name       string
	rev        Revision
	data       []byte
	renderedAt time.Time
}

// CacheStats reports cache occupancy and effectiveness.
type CacheStats struct {
	Entries    int     `json:"entries"`
	MaxEntries int     `json:"max_entries"`
	Hits       int64   `json:"hits"`
	Misses     int64   `json:"misses"`
	Stale      int64   `json:"stale"`
	HitRate    float64 `json:"hit_rate"`
}

// NewLayerCache creates a LayerCache holding at most maxEntries layers.
func NewLayerCache(maxEntries int, ttl time.Duration) *LayerCache {
	return &LayerCache{
		lru:    list.New(),
		byName: make(map[string]*list.Element),
		limit:  max(maxEntries, 1),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Get returns the layer rendered at rev, or nil when it is absent, expired or
// was rendered from older files.
func (c *LayerCache) Get(layer string, rev Revision) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.byName[layer]
	if !ok {
		c.misses++
		return nil
	}

	entry := el.Value.(*renderedLayer)
	switch {
	case entry.rev != rev:
		c.stale++
		c.drop(el)
	case c.now().Sub(entry.renderedAt) > c.ttl:
		c.drop(el)
	default:
		c.lru.MoveToFront(el)
		c.hits++
		return entry.data
	}

	c.misses++
	return nil
}

// Put stores the layer rendered at rev, replacing any earlier rendering.
func (c *LayerCache) Put(layer string, rev Revision, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry := &renderedLayer{name: layer, rev: rev, data: data, renderedAt: c.now()}
	if el, ok := c.byName[layer]; ok {
		el.Value = entry
		c.lru.MoveToFront(el)
		return
	}

	for c.lru.Len() >= c.limit {
		c.drop(c.lru.Back())
	}
	c.byName[layer] = c.lru.PushFront(entry)
}

// Invalidate drops a cached layer.
func (c *LayerCache) Invalidate(layer string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.byName[layer]; ok {
		c.drop(el)
	}
}

// Stats returns cache statistics.
func (c *LayerCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := CacheStats{
		Entries:    c.lru.Len(),
		MaxEntries: c.limit,
		Hits:       c.hits,
		Misses:     c.misses,
		Stale:      c.stale,
	}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	return s
}

func (c *LayerCache) drop(el *list.Element) {
	c.lru.Remove(el)
	delete(c.byName, el.Value.(*renderedLayer).name)
}
