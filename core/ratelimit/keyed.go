package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/time/rate"

	"github.com/m3rciful/botflow/core/dispatch"
	"github.com/m3rciful/botflow/core/update"
)

// KeyFunc derives a bucket key from an event. Events without a key are not
// limited.
type KeyFunc[K comparable] func(ev *update.Event) (K, bool)

// ChatUser keys a bucket by chat and user.
type ChatUser struct {
	ChatID int64
	UserID int64
}

func (k ChatUser) String() string { return fmt.Sprintf("%d-%d", k.ChatID, k.UserID) }

// ChatKey keys buckets by chat id.
func ChatKey(ev *update.Event) (int64, bool) { return ev.ChatID() }

// UserKey keys buckets by user id.
func UserKey(ev *update.Event) (int64, bool) { return ev.UserID() }

// ChatUserKey keys buckets by chat and user id.
func ChatUserKey(ev *update.Event) (ChatUser, bool) {
	chatID, ok := ev.ChatID()
	if !ok {
		return ChatUser{}, false
	}
	userID, ok := ev.UserID()
	if !ok {
		return ChatUser{}, false
	}
	return ChatUser{ChatID: chatID, UserID: userID}, true
}

// Keyed is a predicate with one bucket per key. Buckets are created on first
// use and kept for the lifetime of the limiter.
type Keyed[K comparable] struct {
	quota Quota
	key   KeyFunc[K]
	opts  options

	mu      sync.Mutex
	buckets map[K]*rate.Limiter
	only    map[K]struct{}
}

// NewKeyed returns a limiter keyed by key.
func NewKeyed[K comparable](q Quota, key KeyFunc[K], opts ...Option) (*Keyed[K], error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if key == nil {
		return nil, fmt.Errorf("ratelimit: nil key func")
	}
	k := &Keyed[K]{quota: q, key: key, opts: defaultOptions(), buckets: make(map[K]*rate.Limiter)}
	for _, opt := range opts {
		opt(&k.opts)
	}
	return k, nil
}

// WithKeys restricts limiting to the listed keys; other keys pass. Call it
// before the limiter serves events.
func (k *Keyed[K]) WithKeys(keys ...K) *Keyed[K] {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.only == nil {
		k.only = make(map[K]struct{}, len(keys))
	}
	for _, key := range keys {
		k.only[key] = struct{}{}
	}
	return k
}

// Handle implements dispatch.Handler.
func (k *Keyed[K]) Handle(ctx context.Context, in *dispatch.Input) dispatch.Result {
	if in == nil || in.Event == nil {
		return dispatch.Continue()
	}
	key, ok := k.key(in.Event)
	if !ok {
		return dispatch.Continue()
	}
	b, limited := k.bucketFor(key)
	if !limited {
		return dispatch.Continue()
	}
	return take(ctx, b, &k.opts, []slog.Attr{slog.String("mode", "keyed"), slog.Any("key", key)})
}

// Len returns the number of buckets created so far.
func (k *Keyed[K]) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.buckets)
}

// Guard wraps h with the limiter.
func (k *Keyed[K]) Guard(h dispatch.Handler) dispatch.Handler { return dispatch.Guard(k, h) }

func (k *Keyed[K]) bucketFor(key K) (*rate.Limiter, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.only != nil {
		if _, ok := k.only[key]; !ok {
			return nil, false
		}
	}
	b, ok := k.buckets[key]
	if !ok {
		b = k.quota.bucket()
		k.buckets[key] = b
	}
	return b, true
}
