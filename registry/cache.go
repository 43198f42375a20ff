package registry

import (
	"sync"

	"mini-rpc/message"
)

// discoveryCache is the per-consumer, per-serviceKey discovery cache
// shared by every backing store implementation. A key either holds a
// definite (possibly empty) list or is absent entirely; it is invalidated
// whole on any watched-node change, trading fine-grained recomputation for
// a simple consistency story: discovery always sees a snapshot at most one
// change-event old.
type discoveryCache struct {
	mu      sync.RWMutex
	entries map[string][]message.ServiceMetaInfo
}

func newDiscoveryCache() *discoveryCache {
	return &discoveryCache{entries: make(map[string][]message.ServiceMetaInfo)}
}

// get returns the cached list for serviceKey and whether an entry exists.
func (c *discoveryCache) get(serviceKey string) ([]message.ServiceMetaInfo, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	list, ok := c.entries[serviceKey]
	return list, ok
}

// set populates the cache entry for serviceKey.
func (c *discoveryCache) set(serviceKey string, list []message.ServiceMetaInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[serviceKey] = list
}

// invalidateAll clears every cache entry. Called on any watched-node
// change, since the reference design re-fetches the full list on any
// event rather than reconciling individual keys.
func (c *discoveryCache) invalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string][]message.ServiceMetaInfo)
}
