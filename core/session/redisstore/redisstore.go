// Package redisstore keeps sessions in Redis. Each session is a hash holding
// its records and last access time; a sorted set indexes sessions by last
// access for the collector.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/m3rciful/botflow/core/config"
	"github.com/m3rciful/botflow/core/session"
)

const (
	fieldAccessed = "a"
	fieldRecord   = "k:"

	maxWatchRetries = 8
)

// Connect opens a client from cfg and pings it.
func Connect(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("redisstore: parse url: %w", err)
	}
	if cfg.ReadTimeoutMS > 0 {
		opts.ReadTimeout = time.Duration(cfg.ReadTimeoutMS) * time.Millisecond
	}
	if cfg.WriteTimeoutMS > 0 {
		opts.WriteTimeout = time.Duration(cfg.WriteTimeoutMS) * time.Millisecond
	}
	if cfg.DialTimeoutMS > 0 {
		opts.DialTimeout = time.Duration(cfg.DialTimeoutMS) * time.Millisecond
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redisstore: ping: %w", err)
	}
	return client, nil
}

// Backend is a session.Backend on a Redis client.
type Backend struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

// Option configures a Backend.
type Option func(*Backend)

// WithPrefix namespaces every key, "botflow" by default.
func WithPrefix(prefix string) Option {
	return func(b *Backend) {
		if p := strings.TrimSpace(prefix); p != "" {
			b.prefix = p
		}
	}
}

// WithClock replaces the time used for access scores.
func WithClock(now func() time.Time) Option {
	return func(b *Backend) {
		if now != nil {
			b.now = now
		}
	}
}

// New returns a backend over client.
func New(client redis.UniversalClient, opts ...Option) *Backend {
	b := &Backend{client: client, prefix: "botflow", now: time.Now}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Backend) hashKey(id session.ID) string { return b.prefix + ":session:" + id.String() }
func (b *Backend) indexKey() string              { return b.prefix + ":sessions" }

func (b *Backend) touch(ctx context.Context, p redis.Pipeliner, id session.ID) {
	ms := b.now().UnixMilli()
	p.HSet(ctx, b.hashKey(id), fieldAccessed, ms)
	p.ZAdd(ctx, b.indexKey(), redis.Z{Score: float64(ms), Member: id.String()})
}

// Read implements session.Backend. The lookup and the touch run under WATCH
// on the session hash, so an eviction in between makes the read retry and
// find nothing.
func (b *Backend) Read(ctx context.Context, id session.ID, key string) ([]byte, bool, error) {
	hk := b.hashKey(id)
	var (
		data  []byte
		found bool
	)
	err := b.watch(ctx, hk, func(tx *redis.Tx) error {
		data, found = nil, false
		vals, err := tx.HMGet(ctx, hk, fieldAccessed, fieldRecord+key).Result()
		if err != nil {
			return err
		}
		if vals[0] == nil {
			return nil
		}
		if _, err := tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			b.touch(ctx, p, id)
			return nil
		}); err != nil {
			return err
		}
		if v, ok := vals[1].(string); ok {
			data, found = []byte(v), true
		}
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("redisstore: read: %w", err)
	}
	return data, found, nil
}

// Write implements session.Backend.
func (b *Backend) Write(ctx context.Context, id session.ID, key string, value []byte) error {
	_, err := b.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, b.hashKey(id), fieldRecord+key, value)
		b.touch(ctx, p, id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redisstore: write: %w", err)
	}
	return nil
}

// Delete implements session.Backend. A session evicted concurrently stays
// evicted.
func (b *Backend) Delete(ctx context.Context, id session.ID, key string) error {
	hk := b.hashKey(id)
	err := b.watch(ctx, hk, func(tx *redis.Tx) error {
		ok, err := tx.HExists(ctx, hk, fieldAccessed).Result()
		if err != nil || !ok {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.HDel(ctx, hk, fieldRecord+key)
			b.touch(ctx, p, id)
			return nil
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("redisstore: delete: %w", err)
	}
	return nil
}

// watch runs fn under WATCH on key, retrying while the transaction is
// aborted by a concurrent change.
func (b *Backend) watch(ctx context.Context, key string, fn func(*redis.Tx) error) error {
	var err error
	for range maxWatchRetries {
		err = b.client.Watch(ctx, fn, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return err
}

// Sessions implements session.Backend. Ids come back oldest access first.
func (b *Backend) Sessions(ctx context.Context) ([]session.ID, error) {
	members, err := b.client.ZRange(ctx, b.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redisstore: list: %w", err)
	}
	ids := make([]session.ID, 0, len(members))
	for _, m := range members {
		ids = append(ids, session.ID(m))
	}
	return ids, nil
}

// Expire implements session.Backend. The session hash is watched so a
// concurrent access aborts the eviction.
func (b *Backend) Expire(ctx context.Context, id session.ID, lifetime time.Duration) (bool, error) {
	removed := false
	hk := b.hashKey(id)
	err := b.client.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.HGet(ctx, hk, fieldAccessed).Result()
		if errors.Is(err, redis.Nil) {
			// Hash is gone; drop the stale index entry.
			return tx.ZRem(ctx, b.indexKey(), id.String()).Err()
		}
		if err != nil {
			return err
		}
		ms, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("bad access time %q: %w", raw, err)
		}
		if b.now().Sub(time.UnixMilli(ms)) <= lifetime {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Del(ctx, hk)
			p.ZRem(ctx, b.indexKey(), id.String())
			return nil
		})
		if err == nil {
			removed = true
		}
		return err
	}, hk)
	if errors.Is(err, redis.TxFailedErr) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redisstore: expire %s: %w", id, err)
	}
	return removed, nil
}
