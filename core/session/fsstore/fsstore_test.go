package fsstore

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/m3rciful/botflow/core/session"
)

func TestBackendRoundTrip(t *testing.T) {
	ctx := context.Background()
	b, err := New(t.TempDir())
	require.NoError(t, err)
	s := session.NewManager(b).Get("chat/1-2")

	require.NoError(t, s.Set(ctx, "counter", 1))
	v, ok, err := session.Value[int](ctx, s, "counter")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 1, v)

	require.NoError(t, s.Set(ctx, "counter", 2))
	v, _, _ = session.Value[int](ctx, s, "counter")
	require.Equal(t, 2, v)

	require.NoError(t, s.Remove(ctx, "counter"))
	_, ok, err = session.Value[int](ctx, s, "counter")
	require.NoError(t, err)
	require.False(t, ok)

	ids, err := b.Sessions(ctx)
	require.NoError(t, err)
	require.Equal(t, []session.ID{"chat/1-2"}, ids)
}

func TestBackendMissing(t *testing.T) {
	ctx := context.Background()
	b, err := New(t.TempDir())
	require.NoError(t, err)

	_, ok, err := b.Read(ctx, "nobody", "k")
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, b.Delete(ctx, "nobody", "k"))
	removed, err := b.Expire(ctx, "nobody", time.Second)
	require.NoError(t, err)
	require.False(t, removed)

	_, err = New("")
	require.Error(t, err)
}

func TestBackendExpire(t *testing.T) {
	ctx := context.Background()
	var (
		mu  sync.Mutex
		now = time.Now().Add(-time.Hour).Truncate(time.Second)
	)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	advance := func(d time.Duration) {
		mu.Lock()
		now = now.Add(d)
		mu.Unlock()
	}
	root := t.TempDir()
	b, err := New(root, WithClock(clock))
	require.NoError(t, err)
	m := session.NewManager(b)
	require.NoError(t, m.Get("a").Set(ctx, "counter", 1))

	advance(10 * time.Minute)
	require.NoError(t, m.Get("b").Set(ctx, "counter", 1))

	advance(6 * time.Minute)
	stats, err := session.NewCollector(b, time.Minute, 15*time.Minute).Sweep(ctx)
	require.NoError(t, err)
	require.Equal(t, session.SweepStats{Count: 2, Evicted: 1}, stats)

	_, ok, err := session.Value[int](ctx, m.Get("a"), "counter")
	require.NoError(t, err)
	require.False(t, ok)
	_, ok, err = session.Value[int](ctx, m.Get("b"), "counter")
	require.NoError(t, err)
	require.True(t, ok)

	ids, err := b.Sessions(ctx)
	require.NoError(t, err)
	require.Equal(t, []session.ID{"b"}, ids)
	_, err = os.Stat(filepath.Join(root, "s-a"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestBackendConcurrentWrites(t *testing.T) {
	ctx := context.Background()
	b, err := New(t.TempDir())
	require.NoError(t, err)
	s := session.NewManager(b).Get("shared")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			require.NoError(t, s.Set(ctx, "k", i))
		}(i)
	}
	wg.Wait()
	_, ok, err := session.Value[int](ctx, s, "k")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestExpireFromAnotherBackendWaitsForWrite(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	base := time.Now().Truncate(time.Second)

	var (
		mu   sync.Mutex
		now  = base.Add(-time.Hour)
		hook func()
	)
	clock := func() time.Time {
		mu.Lock()
		h := hook
		hook = nil
		cur := now
		mu.Unlock()
		if h != nil {
			h()
		}
		return cur
	}
	bot, err := New(root, WithClock(clock))
	require.NoError(t, err)
	sweeper, err := New(root, WithClock(func() time.Time { return base.Add(30 * time.Second) }))
	require.NoError(t, err)

	require.NoError(t, bot.Write(ctx, "1-1", "step", []byte("1")))

	type result struct {
		removed bool
		err     error
	}
	done := make(chan result, 1)
	mu.Lock()
	now = base
	hook = func() {
		go func() {
			removed, err := sweeper.Expire(ctx, "1-1", time.Minute)
			done <- result{removed, err}
		}()
		select {
		case res := <-done:
			t.Error("expire finished while the write was in progress")
			done <- res
		case <-time.After(50 * time.Millisecond):
		}
	}
	mu.Unlock()

	require.NoError(t, bot.Write(ctx, "1-1", "step", []byte("2")))
	res := <-done
	require.NoError(t, res.err)
	require.False(t, res.removed)

	data, ok, err := bot.Read(ctx, "1-1", "step")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("2"), data)
}

func TestLockHonorsContext(t *testing.T) {
	root := t.TempDir()
	b, err := New(root)
	require.NoError(t, err)
	unlock, err := b.lock(context.Background(), "1-1", true)
	require.NoError(t, err)
	defer unlock()

	other, err := New(root)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, _, err = other.Read(ctx, "1-1", "k")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
