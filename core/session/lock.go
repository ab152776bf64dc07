package session

import "sync"

// KeyLock serializes operations per session id. Entries are dropped once no
// goroutine holds or waits for them.
type KeyLock struct {
	mu    sync.Mutex
	locks map[ID]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// NewKeyLock returns an empty lock table.
func NewKeyLock() *KeyLock {
	return &KeyLock{locks: make(map[ID]*lockEntry)}
}

// Lock blocks until id is free and returns its unlock function.
func (l *KeyLock) Lock(id ID) func() {
	l.mu.Lock()
	e, ok := l.locks[id]
	if !ok {
		e = &lockEntry{}
		l.locks[id] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		l.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}

// Len returns the number of held or awaited ids.
func (l *KeyLock) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
