// Package fsstore keeps sessions on the local filesystem: one directory per
// session, one file per key and an access marker whose mtime is the last
// access time.
//
// Record operations hold an advisory lock on a file in the root in shared
// mode and Expire holds it exclusively, so a sweep running in another process
// never removes a session while a read or write on it is in progress.
package fsstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"github.com/m3rciful/botflow/core/session"
)

const (
	sessionPrefix = "s-"
	keyPrefix     = "k-"
	accessMarker  = ".accessed"
	rootLock      = ".lock"

	lockRetry = 5 * time.Millisecond
)

// Backend is a session.Backend rooted at a directory.
type Backend struct {
	root     string
	lockPath string
	locks    *session.KeyLock
	now      func() time.Time
}

// Option configures a Backend.
type Option func(*Backend)

// WithClock replaces the time used for access markers.
func WithClock(now func() time.Time) Option {
	return func(b *Backend) {
		if now != nil {
			b.now = now
		}
	}
}

// New creates root when needed and returns a backend over it.
func New(root string, opts ...Option) (*Backend, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("fsstore: empty root directory")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("fsstore: create root: %w", err)
	}
	b := &Backend{
		root:     root,
		lockPath: filepath.Join(root, rootLock),
		locks:    session.NewKeyLock(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// lock serializes in-process work on id, then takes the root file lock.
// Each call opens its own descriptor so shared holders in one process do not
// release each other.
func (b *Backend) lock(ctx context.Context, id session.ID, exclusive bool) (func(), error) {
	unlock := b.locks.Lock(id)
	fl := flock.New(b.lockPath)
	var err error
	if exclusive {
		_, err = fl.TryLockContext(ctx, lockRetry)
	} else {
		_, err = fl.TryRLockContext(ctx, lockRetry)
	}
	if err != nil {
		unlock()
		return nil, fmt.Errorf("fsstore: lock: %w", err)
	}
	return func() {
		_ = fl.Unlock()
		unlock()
	}, nil
}

func (b *Backend) dir(id session.ID) string {
	return filepath.Join(b.root, sessionPrefix+url.PathEscape(id.String()))
}

func keyFile(dir, key string) string {
	return filepath.Join(dir, keyPrefix+url.PathEscape(key))
}

// touch refreshes the access marker. Callers hold the session lock.
func (b *Backend) touch(dir string) error {
	marker := filepath.Join(dir, accessMarker)
	now := b.now()
	if err := os.Chtimes(marker, now, now); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	f, err := os.OpenFile(marker, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Chtimes(marker, now, now)
}

// Read implements session.Backend.
func (b *Backend) Read(ctx context.Context, id session.ID, key string) ([]byte, bool, error) {
	unlock, err := b.lock(ctx, id, false)
	if err != nil {
		return nil, false, err
	}
	defer unlock()
	dir := b.dir(id)
	data, err := os.ReadFile(keyFile(dir, key))
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if _, statErr := os.Stat(dir); statErr == nil {
			return nil, false, b.touch(dir)
		}
		return nil, false, nil
	case err != nil:
		return nil, false, fmt.Errorf("fsstore: read: %w", err)
	}
	if err := b.touch(dir); err != nil {
		return nil, false, fmt.Errorf("fsstore: touch: %w", err)
	}
	return data, true, nil
}

// Write implements session.Backend. The value is written to a temp file and
// renamed into place.
func (b *Backend) Write(ctx context.Context, id session.ID, key string, value []byte) error {
	unlock, err := b.lock(ctx, id, false)
	if err != nil {
		return err
	}
	defer unlock()
	dir := b.dir(id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("fsstore: create session dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("fsstore: write: %w", err)
	}
	_, werr := tmp.Write(value)
	cerr := tmp.Close()
	if err := errors.Join(werr, cerr); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("fsstore: write: %w", err)
	}
	if err := os.Rename(tmp.Name(), keyFile(dir, key)); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("fsstore: write: %w", err)
	}
	if err := b.touch(dir); err != nil {
		return fmt.Errorf("fsstore: touch: %w", err)
	}
	return nil
}

// Delete implements session.Backend.
func (b *Backend) Delete(ctx context.Context, id session.ID, key string) error {
	unlock, err := b.lock(ctx, id, false)
	if err != nil {
		return err
	}
	defer unlock()
	dir := b.dir(id)
	if err := os.Remove(keyFile(dir, key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("fsstore: delete: %w", err)
	}
	if _, err := os.Stat(dir); err != nil {
		return nil
	}
	if err := b.touch(dir); err != nil {
		return fmt.Errorf("fsstore: touch: %w", err)
	}
	return nil
}

// Sessions implements session.Backend.
func (b *Backend) Sessions(context.Context) ([]session.ID, error) {
	entries, err := os.ReadDir(b.root)
	if err != nil {
		return nil, fmt.Errorf("fsstore: list: %w", err)
	}
	ids := make([]session.ID, 0, len(entries))
	for _, e := range entries {
		name, ok := strings.CutPrefix(e.Name(), sessionPrefix)
		if !e.IsDir() || !ok {
			continue
		}
		raw, err := url.PathUnescape(name)
		if err != nil {
			continue
		}
		ids = append(ids, session.ID(raw))
	}
	return ids, nil
}

// Expire implements session.Backend. It waits for in-flight operations on
// the root, including those of other processes.
func (b *Backend) Expire(ctx context.Context, id session.ID, lifetime time.Duration) (bool, error) {
	unlock, err := b.lock(ctx, id, true)
	if err != nil {
		return false, err
	}
	defer unlock()
	dir := b.dir(id)
	info, err := os.Stat(filepath.Join(dir, accessMarker))
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if _, statErr := os.Stat(dir); statErr != nil {
			return false, nil
		}
	case err != nil:
		return false, fmt.Errorf("fsstore: stat: %w", err)
	default:
		if b.now().Sub(info.ModTime()) <= lifetime {
			return false, nil
		}
	}
	if err := os.RemoveAll(dir); err != nil {
		return false, fmt.Errorf("fsstore: remove: %w", err)
	}
	return true, nil
}
