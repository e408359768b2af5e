package reg

import (
	"sync"
)

// Registry is a mutex-guarded map. The zero value is not usable, see New.
type Registry[K comparable, V any] struct {
	mu       sync.RWMutex
	instance map[K]V
}

func New[K comparable, V any]() *Registry[K, V] {
	return &Registry[K, V]{instance: map[K]V{}}
}

// Get returns the stored value, storing defaults first when the key is absent.
func (r *Registry[K, V]) Get(key K, defaults V) V {
	r.mu.RLock()
	v, ok := r.instance[key]
	r.mu.RUnlock()
	if ok {
		return v
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.instance[key]; ok {
		return v
	}
	r.instance[key] = defaults
	return defaults
}

func (r *Registry[K, V]) Lookup(key K) (V, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.instance[key]
	return v, ok
}

func (r *Registry[K, V]) Set(key K, value V) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.instance[key] = value
}

func (r *Registry[K, V]) Delete(key K) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.instance, key)
}

func (r *Registry[K, V]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.instance)
}
