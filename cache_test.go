package flyweight

import (
	"sync"
	"testing"
)

// TestNewInstanceCache tests the newInstanceCache function
func TestNewInstanceCache(t *testing.T) {
	cache := newInstanceCache()

	if cache == nil {
		t.Fatal("newInstanceCache() returned nil")
	}

	if cache.instances == nil {
		t.Error("instances map not initialized")
	}

	if cache.len() != 0 {
		t.Errorf("Expected empty cache, got %d items", cache.len())
	}
}

// TestInstanceCache_Get tests the get method
func TestInstanceCache_Get(t *testing.T) {
	cache := newInstanceCache()

	// Test getting non-existent key
	key := instanceKey{Type: fracType, Key: TFracKey{1, 2}}
	_, exists := cache.get(key)
	if exists {
		t.Error("Expected false for non-existent key")
	}

	// Add an instance and test get
	f := &TFrac{Num: 1, Den: 2}
	if !cache.insert(key, f) {
		t.Fatal("insert refused an empty slot")
	}

	retrieved, exists := cache.get(key)
	if !exists {
		t.Error("Expected true for existing key")
	}

	if retrieved != f {
		t.Error("Retrieved instance doesn't match stored instance")
	}
}

// TestInstanceCache_Insert tests that insert never overwrites
func TestInstanceCache_Insert(t *testing.T) {
	cache := newInstanceCache()

	key := instanceKey{Type: fracType, Key: TFracKey{1, 2}}
	first := &TFrac{Num: 1, Den: 2}
	second := &TFrac{Num: 1, Den: 2}

	if !cache.insert(key, first) {
		t.Fatal("first insert refused")
	}
	if cache.insert(key, second) {
		t.Error("second insert overwrote an existing instance")
	}

	retrieved, _ := cache.get(key)
	if retrieved != first {
		t.Error("Expected the first instance to survive")
	}

	// Same key value under a different type is a different identity.
	other := instanceKey{Type: namedType, Key: TFracKey{1, 2}}
	if !cache.insert(other, &TNamedFrac{}) {
		t.Error("insert refused a distinct type")
	}
	if cache.len() != 2 {
		t.Errorf("Expected 2 instances, got %d", cache.len())
	}
}

// TestInstanceCache_Delete tests the delete method
func TestInstanceCache_Delete(t *testing.T) {
	cache := newInstanceCache()

	key := instanceKey{Type: fracType, Key: TFracKey{3, 4}}
	f := &TFrac{Num: 3, Den: 4}
	cache.insert(key, f)

	removed, ok := cache.delete(key)
	if !ok || removed != f {
		t.Error("delete did not return the stored instance")
	}

	if _, ok := cache.delete(key); ok {
		t.Error("Expected second delete to report nothing removed")
	}

	if cache.len() != 0 {
		t.Errorf("Expected empty cache, got %d items", cache.len())
	}
}

// TestInstanceCache_ClearAndKeys tests clear and keys
func TestInstanceCache_ClearAndKeys(t *testing.T) {
	cache := newInstanceCache()

	for i := 1; i <= 3; i++ {
		cache.insert(instanceKey{Type: fracType, Key: TFracKey{i, 7}}, &TFrac{Num: i, Den: 7})
	}

	if got := len(cache.keys()); got != 3 {
		t.Errorf("Expected 3 keys, got %d", got)
	}

	cache.clear()

	if cache.len() != 0 {
		t.Errorf("Expected empty cache after clear, got %d items", cache.len())
	}
	if got := len(cache.keys()); got != 0 {
		t.Errorf("Expected no keys after clear, got %d", got)
	}
}

// TestInstanceCache_Concurrent tests concurrent access to the cache
func TestInstanceCache_Concurrent(t *testing.T) {
	cache := newInstanceCache()

	var wg sync.WaitGroup
	var mu sync.Mutex
	inserted := 0

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := instanceKey{Type: fracType, Key: TFracKey{i % 5, 9}}
			if cache.insert(key, &TFrac{Num: i % 5, Den: 9}) {
				mu.Lock()
				inserted++
				mu.Unlock()
			}
			cache.get(key)
			cache.keys()
		}(i)
	}

	wg.Wait()

	if inserted != 5 {
		t.Errorf("Expected exactly 5 successful inserts, got %d", inserted)
	}
	if cache.len() != 5 {
		t.Errorf("Expected 5 instances, got %d", cache.len())
	}
}
