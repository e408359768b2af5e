package reg

import "sync"

type keyedEntry struct {
	mu   sync.Mutex
	refs int
}

// KeyedMutex hands out one lock per key. Entries are dropped once nobody
// holds or waits for them.
type KeyedMutex[K comparable] struct {
	mu      sync.Mutex
	entries map[K]*keyedEntry
}

func NewKeyedMutex[K comparable]() *KeyedMutex[K] {
	return &KeyedMutex[K]{entries: map[K]*keyedEntry{}}
}

func (k *KeyedMutex[K]) acquire(key K) *keyedEntry {
	k.mu.Lock()
	defer k.mu.Unlock()
	e, ok := k.entries[key]
	if !ok {
		e = &keyedEntry{}
		k.entries[key] = e
	}
	e.refs++
	return e
}

func (k *KeyedMutex[K]) release(key K, e *keyedEntry) {
	k.mu.Lock()
	defer k.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(k.entries, key)
	}
}

func (k *KeyedMutex[K]) Lock(key K) (unlock func()) {
	e := k.acquire(key)
	e.mu.Lock()
	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Unlock()
			k.release(key, e)
		})
	}
}

func (k *KeyedMutex[K]) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.entries)
}
