// Package session stores per-conversation values in a pluggable backend and
// evicts idle sessions in the background.
//
// A session is addressed by an ID, usually "<chat_id>-<user_id>". Values are
// JSON encoded before they reach the backend. Every read, write and delete
// refreshes the session's last access time; the Collector removes sessions
// whose last access is older than the configured lifetime.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/m3rciful/botflow/core/update"
)

var (
	// ErrInvalidID reports an empty session id.
	ErrInvalidID = errors.New("session: invalid id")
	// ErrEmptyKey reports an empty record key.
	ErrEmptyKey = errors.New("session: empty key")
	// ErrManagerNotFound reports extraction without a *Manager in the store.
	ErrManagerNotFound = errors.New("session: manager not found in store")
)

// ID identifies one session.
type ID string

// NewID builds an id from a custom string.
func NewID(s string) (ID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ErrInvalidID
	}
	return ID(s), nil
}

// ChatUserID returns the id of a user inside a chat.
func ChatUserID(chatID, userID int64) ID {
	return ID(strconv.FormatInt(chatID, 10) + "-" + strconv.FormatInt(userID, 10))
}

// IDFromEvent derives the id from the event chat and sender. Events without
// either are not eligible.
func IDFromEvent(ev *update.Event) (ID, bool) {
	if ev == nil {
		return "", false
	}
	chatID, ok := ev.ChatID()
	if !ok {
		return "", false
	}
	userID, ok := ev.UserID()
	if !ok {
		return "", false
	}
	return ChatUserID(chatID, userID), true
}

func (id ID) String() string { return string(id) }

// Backend persists raw record values. Implementations must be safe for
// concurrent use and must not expire a session while an operation on it is in
// flight.
type Backend interface {
	Read(ctx context.Context, id ID, key string) ([]byte, bool, error)
	Write(ctx context.Context, id ID, key string, value []byte) error
	Delete(ctx context.Context, id ID, key string) error
	// Sessions lists stored session ids.
	Sessions(ctx context.Context) ([]ID, error)
	// Expire removes the session when it was last accessed more than
	// lifetime ago and reports whether it did.
	Expire(ctx context.Context, id ID, lifetime time.Duration) (bool, error)
}

// Manager hands out sessions backed by one backend.
type Manager struct {
	backend Backend
}

// NewManager returns a manager over b.
func NewManager(b Backend) *Manager { return &Manager{backend: b} }

// Backend returns the underlying storage.
func (m *Manager) Backend() Backend { return m.backend }

// Get returns a handle for id. It does not touch storage.
func (m *Manager) Get(id ID) *Session {
	return &Session{id: id, backend: m.backend}
}

// Session reads and writes the records of one id.
type Session struct {
	id      ID
	backend Backend
}

// ID returns the session id.
func (s *Session) ID() ID { return s.id }

// Get decodes the value stored under key into dst and reports whether it
// existed.
func (s *Session) Get(ctx context.Context, key string, dst any) (bool, error) {
	if key == "" {
		return false, ErrEmptyKey
	}
	raw, ok, err := s.backend.Read(ctx, s.id, key)
	if err != nil {
		return false, fmt.Errorf("session: read %s/%s: %w", s.id, key, err)
	}
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("session: decode %s/%s: %w", s.id, key, err)
	}
	return true, nil
}

// Set encodes v and stores it under key.
func (s *Session) Set(ctx context.Context, key string, v any) error {
	if key == "" {
		return ErrEmptyKey
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("session: encode %s/%s: %w", s.id, key, err)
	}
	if err := s.backend.Write(ctx, s.id, key, raw); err != nil {
		return fmt.Errorf("session: write %s/%s: %w", s.id, key, err)
	}
	return nil
}

// Remove deletes key. Removing a missing key is not an error.
func (s *Session) Remove(ctx context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	if err := s.backend.Delete(ctx, s.id, key); err != nil {
		return fmt.Errorf("session: delete %s/%s: %w", s.id, key, err)
	}
	return nil
}

// Value reads key as a T.
func Value[T any](ctx context.Context, s *Session, key string) (T, bool, error) {
	var v T
	ok, err := s.Get(ctx, key, &v)
	if err != nil || !ok {
		var zero T
		return zero, false, err
	}
	return v, true, nil
}
