package redisstore

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/botflow/core/config"
	"github.com/m3rciful/botflow/core/session"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newBackend(t *testing.T) (*Backend, *miniredis.Miniredis, *clock) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	clk := &clock{now: time.Unix(1_700_000_000, 0)}
	return New(client, WithPrefix("test"), WithClock(clk.Now)), mr, clk
}

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	b, mr, _ := newBackend(t)
	s := session.NewManager(b).Get("1-2")

	require.NoError(t, s.Set(ctx, "counter", 1))
	v, ok, err := session.Value[int](ctx, s, "counter")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 1, v)
	require.True(t, mr.Exists("test:session:1-2"))

	require.NoError(t, s.Remove(ctx, "counter"))
	_, ok, err = session.Value[int](ctx, s, "counter")
	require.NoError(t, err)
	require.False(t, ok)

	_, ok, err = b.Read(ctx, "missing", "counter")
	require.NoError(t, err)
	require.False(t, ok)
	require.False(t, mr.Exists("test:session:missing"), "reads do not create sessions")
	require.NoError(t, b.Delete(ctx, "missing", "counter"))

	ids, err := b.Sessions(ctx)
	require.NoError(t, err)
	require.Equal(t, []session.ID{"1-2"}, ids)
}

func TestExpire(t *testing.T) {
	ctx := context.Background()
	b, mr, clk := newBackend(t)
	m := session.NewManager(b)
	require.NoError(t, m.Get("old").Set(ctx, "counter", 1))
	clk.Advance(20 * time.Minute)
	require.NoError(t, m.Get("new").Set(ctx, "counter", 1))
	clk.Advance(20 * time.Minute)

	stats, err := session.NewCollector(b, time.Minute, 30*time.Minute).Sweep(ctx)
	require.NoError(t, err)
	require.Equal(t, session.SweepStats{Count: 2, Evicted: 1}, stats)
	require.False(t, mr.Exists("test:session:old"))

	_, ok, err := session.Value[int](ctx, m.Get("old"), "counter")
	require.NoError(t, err)
	require.False(t, ok)

	ids, err := b.Sessions(ctx)
	require.NoError(t, err)
	require.Equal(t, []session.ID{"new"}, ids)
}

func TestExpireDropsStaleIndex(t *testing.T) {
	ctx := context.Background()
	b, mr, _ := newBackend(t)
	_, err := mr.ZAdd("test:sessions", 1, "ghost")
	require.NoError(t, err)

	removed, err := b.Expire(ctx, "ghost", time.Second)
	require.NoError(t, err)
	require.False(t, removed)
	ids, err := b.Sessions(ctx)
	require.NoError(t, err)
	require.Empty(t, ids)
}

func TestConnect(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := Connect(context.Background(), config.RedisConfig{URL: "redis://" + mr.Addr(), DialTimeoutMS: 500})
	require.NoError(t, err)
	require.NoError(t, client.Close())

	_, err = Connect(context.Background(), config.RedisConfig{URL: "::bad"})
	require.Error(t, err)
}

// hookClock runs hook once, the next time the clock is read after arm.
type hookClock struct {
	now   time.Time
	hook  func()
	armed atomic.Bool
}

func (c *hookClock) Now() time.Time {
	if c.armed.CompareAndSwap(true, false) {
		c.hook()
	}
	return c.now
}

func newRacingPair(t *testing.T) (*Backend, *Backend, *miniredis.Miniredis, *hookClock) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	base := time.Unix(1_700_000_000, 0)
	clk := &hookClock{now: base}
	worker := New(client, WithPrefix("test"), WithClock(clk.Now))
	sweeper := New(client, WithPrefix("test"), WithClock(func() time.Time { return base.Add(time.Hour) }))
	return worker, sweeper, mr, clk
}

func TestReadDoesNotResurrectEvictedSession(t *testing.T) {
	ctx := context.Background()
	b, sweeper, mr, clk := newRacingPair(t)
	require.NoError(t, b.Write(ctx, "1-1", "counter", []byte("1")))

	var removed bool
	clk.hook = func() {
		var err error
		removed, err = sweeper.Expire(ctx, "1-1", time.Minute)
		require.NoError(t, err)
	}
	clk.armed.Store(true)

	data, ok, err := b.Read(ctx, "1-1", "counter")
	require.NoError(t, err)
	require.True(t, removed)
	require.False(t, ok)
	require.Nil(t, data)
	require.False(t, mr.Exists("test:session:1-1"))
	ids, err := b.Sessions(ctx)
	require.NoError(t, err)
	require.Empty(t, ids)
}

func TestDeleteDoesNotResurrectEvictedSession(t *testing.T) {
	ctx := context.Background()
	b, sweeper, mr, clk := newRacingPair(t)
	require.NoError(t, b.Write(ctx, "1-1", "counter", []byte("1")))

	var removed bool
	clk.hook = func() {
		var err error
		removed, err = sweeper.Expire(ctx, "1-1", time.Minute)
		require.NoError(t, err)
	}
	clk.armed.Store(true)

	require.NoError(t, b.Delete(ctx, "1-1", "counter"))
	require.True(t, removed)
	require.False(t, mr.Exists("test:session:1-1"))
	ids, err := b.Sessions(ctx)
	require.NoError(t, err)
	require.Empty(t, ids)
}
