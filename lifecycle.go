package flyweight

import (
	"context"
	"fmt"
	"sync"
)

// tracked is a disposable instance and the pair it was committed under.
type tracked struct {
	key        instanceKey
	disposable DisposableWithContext
}

// lifecycleManager tracks disposable instances in commit order.
type lifecycleManager struct {
	disposables []tracked
	mu          sync.Mutex
}

// newLifecycleManager creates a new lifecycle manager
func newLifecycleManager() *lifecycleManager {
	return &lifecycleManager{
		disposables: make([]tracked, 0),
	}
}

// track records instance if it is disposable.
func (m *lifecycleManager) track(key instanceKey, instance any) {
	d, ok := asDisposable(instance)
	if !ok {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.disposables = append(m.disposables, tracked{key: key, disposable: d})
}

// untrack forgets the instance committed under key, without disposing it.
func (m *lifecycleManager) untrack(key instanceKey) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := len(m.disposables) - 1; i >= 0; i-- {
		if m.disposables[i].key == key {
			m.disposables = append(m.disposables[:i], m.disposables[i+1:]...)
			return
		}
	}
}

// dispose disposes all tracked instances in reverse order
func (m *lifecycleManager) dispose(ctx context.Context) error {
	m.mu.Lock()
	disposables := m.disposables
	m.disposables = nil
	m.mu.Unlock()

	var errs []error

	// Dispose in reverse order (LIFO)
	for i := len(disposables) - 1; i >= 0; i-- {
		if err := disposables[i].disposable.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", disposables[i].key, err))
		}
	}

	if len(errs) > 0 {
		return DisposalError{Errors: errs}
	}

	return nil
}
