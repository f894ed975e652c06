package history

import "sync"

// memoryCache is the per-segment in-memory view of processed ids. Single
// writer per segment is the expected discipline, but the mutex keeps
// concurrent segments safe.
type memoryCache struct {
	mu       sync.Mutex
	segments map[string]map[string]struct{}
}

func newMemoryCache() *memoryCache {
	return &memoryCache{segments: make(map[string]map[string]struct{})}
}

func (c *memoryCache) add(segment string, ids []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	set, ok := c.segments[segment]
	if !ok {
		set = make(map[string]struct{}, len(ids))
		c.segments[segment] = set
	}
	for _, id := range ids {
		set[id] = struct{}{}
	}
}

func (c *memoryCache) snapshot(segment string) map[string]struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]struct{}, len(c.segments[segment]))
	for id := range c.segments[segment] {
		out[id] = struct{}{}
	}
	return out
}

func (c *memoryCache) clear(segment string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.segments, segment)
}
