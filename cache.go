package flyweight

import (
	"sync"
)

// instanceCache provides thread-safe storage for committed instances.
// Writers must also hold the owning registry's mutex so that entries and
// claims change together; readers only need the cache's own lock.
type instanceCache struct {
	instances map[instanceKey]any
	mu        sync.RWMutex
}

// newInstanceCache creates a new instance cache
func newInstanceCache() *instanceCache {
	return &instanceCache{
		instances: make(map[instanceKey]any),
	}
}

// get retrieves an instance from the cache
func (c *instanceCache) get(key instanceKey) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	instance, ok := c.instances[key]
	return instance, ok
}

// insert stores an instance, refusing to overwrite an existing one.
func (c *instanceCache) insert(key instanceKey, instance any) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.instances[key]; exists {
		return false
	}
	c.instances[key] = instance
	return true
}

// delete removes an instance from the cache and returns it.
func (c *instanceCache) delete(key instanceKey) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	instance, ok := c.instances[key]
	if ok {
		delete(c.instances, key)
	}
	return instance, ok
}

// clear removes all instances from the cache
func (c *instanceCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.instances = make(map[instanceKey]any)
}

// len returns the number of cached instances.
func (c *instanceCache) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.instances)
}

// keys returns the cached keys in no particular order.
func (c *instanceCache) keys() []instanceKey {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys := make([]instanceKey, 0, len(c.instances))
	for k := range c.instances {
		keys = append(keys, k)
	}
	return keys
}
