package session

import (
	"context"
	"sort"
	"sync"
	"time"
)

type memoryRecord struct {
	values   map[string][]byte
	accessed time.Time
}

// MemoryBackend keeps sessions in process memory.
type MemoryBackend struct {
	mu       sync.Mutex
	sessions map[ID]*memoryRecord
	now      func() time.Time
}

// NewMemoryBackend returns an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{sessions: make(map[ID]*memoryRecord), now: time.Now}
}

// WithClock replaces the time source and returns b.
func (b *MemoryBackend) WithClock(now func() time.Time) *MemoryBackend {
	b.mu.Lock()
	defer b.mu.Unlock()
	if now != nil {
		b.now = now
	}
	return b
}

// Read implements Backend.
func (b *MemoryBackend) Read(_ context.Context, id ID, key string) ([]byte, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	rec, ok := b.sessions[id]
	if !ok {
		return nil, false, nil
	}
	rec.accessed = b.now()
	v, ok := rec.values[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

// Write implements Backend.
func (b *MemoryBackend) Write(_ context.Context, id ID, key string, value []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	rec, ok := b.sessions[id]
	if !ok {
		rec = &memoryRecord{values: make(map[string][]byte)}
		b.sessions[id] = rec
	}
	rec.accessed = b.now()
	rec.values[key] = append([]byte(nil), value...)
	return nil
}

// Delete implements Backend.
func (b *MemoryBackend) Delete(_ context.Context, id ID, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if rec, ok := b.sessions[id]; ok {
		rec.accessed = b.now()
		delete(rec.values, key)
	}
	return nil
}

// Sessions implements Backend.
func (b *MemoryBackend) Sessions(context.Context) ([]ID, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ids := make([]ID, 0, len(b.sessions))
	for id := range b.sessions {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// Expire implements Backend.
func (b *MemoryBackend) Expire(_ context.Context, id ID, lifetime time.Duration) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	rec, ok := b.sessions[id]
	if !ok || b.now().Sub(rec.accessed) <= lifetime {
		return false, nil
	}
	delete(b.sessions, id)
	return true, nil
}

// Len returns the number of stored sessions.
func (b *MemoryBackend) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.sessions)
}
