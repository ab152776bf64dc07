// Package store holds long-lived shared values keyed by their Go type.
package store

import (
	"reflect"
	"sync"
)

// Store keeps at most one value per concrete type. It is safe for concurrent
// use; writes are expected during setup and reads on every dispatch.
type Store struct {
	mu     sync.RWMutex
	values map[reflect.Type]any
}

// New returns an empty store.
func New() *Store {
	return &Store{values: make(map[reflect.Type]any)}
}

// Put stores v under type T, replacing any previous value of that type.
func Put[T any](s *Store, v T) {
	s.set(reflect.TypeFor[T](), v)
}

// Get returns the value stored under type T.
func Get[T any](s *Store) (T, bool) {
	var zero T
	if s == nil {
		return zero, false
	}
	s.mu.RLock()
	v, ok := s.values[reflect.TypeFor[T]()]
	s.mu.RUnlock()
	if !ok {
		return zero, false
	}
	t, _ := v.(T)
	return t, true
}

// Insert stores v under its dynamic type. Nil values are ignored.
func (s *Store) Insert(v any) {
	if v == nil {
		return
	}
	s.set(reflect.TypeOf(v), v)
}

// Len reports the number of stored values.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.values)
}

func (s *Store) set(t reflect.Type, v any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.values == nil {
		s.values = make(map[reflect.Type]any)
	}
	s.values[t] = v
}
