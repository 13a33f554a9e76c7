package node

import (
	"sync"
)

// MapLock serializes work per key, such as per txid or per poll. Entries are dropped once nothing
// holds or waits on them so the map stays as small as the set of keys in use.
type MapLock struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	sync.Mutex
	refs int
}

// NewMapLock returns a new MapLock.
func NewMapLock() *MapLock {
	return &MapLock{
		locks: make(map[string]*keyLock),
	}
}

// Lock blocks until key is available and returns the function that releases it.
func (m *MapLock) Lock(key string) func() {
	m.mu.Lock()
	l, exists := m.locks[key]
	if !exists {
		l = &keyLock{}
		m.locks[key] = l
	}
	l.refs++
	m.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()

		m.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(m.locks, key)
		}
		m.mu.Unlock()
	}
}

// Len returns the number of keys currently held or waited on.
func (m *MapLock) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.locks)
}
