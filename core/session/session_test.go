package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/m3rciful/botflow/core/dispatch"
	"github.com/m3rciful/botflow/core/session"
	"github.com/m3rciful/botflow/core/store"
	"github.com/m3rciful/botflow/core/update/updatetest"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock { return &clock{now: time.Unix(1_700_000_000, 0)} }

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

func TestIDs(t *testing.T) {
	id, ok := session.IDFromEvent(updatetest.Message(-100, 7, "x"))
	require.True(t, ok)
	require.Equal(t, session.ID("-100-7"), id)

	_, ok = session.IDFromEvent(updatetest.InlineQuery(7, "q"))
	require.False(t, ok)
	_, ok = session.IDFromEvent(updatetest.Empty())
	require.False(t, ok)

	custom, err := session.NewID(" inline:7 ")
	require.NoError(t, err)
	require.Equal(t, "inline:7", custom.String())
	_, err = session.NewID("  ")
	require.ErrorIs(t, err, session.ErrInvalidID)
}

func TestSessionRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := session.NewManager(session.NewMemoryBackend())
	s := m.Get(session.ChatUserID(1, 2))

	require.NoError(t, s.Set(ctx, "counter", 1))
	v, ok, err := session.Value[int](ctx, s, "counter")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 1, v)

	type profile struct {
		Name string `json:"name"`
		Age  int    `json:"age"`
	}
	require.NoError(t, s.Set(ctx, "profile", profile{Name: "ann", Age: 30}))
	var p profile
	ok, err = s.Get(ctx, "profile", &p)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, profile{Name: "ann", Age: 30}, p)

	require.NoError(t, s.Remove(ctx, "counter"))
	_, ok, err = session.Value[int](ctx, s, "counter")
	require.NoError(t, err)
	require.False(t, ok)

	_, ok, err = session.Value[int](ctx, m.Get("other"), "counter")
	require.NoError(t, err)
	require.False(t, ok)

	require.ErrorIs(t, s.Set(ctx, "", 1), session.ErrEmptyKey)
}

func TestDecodeErrorSurfaces(t *testing.T) {
	ctx := context.Background()
	s := session.NewManager(session.NewMemoryBackend()).Get("x")
	require.NoError(t, s.Set(ctx, "k", "text"))
	_, _, err := session.Value[int](ctx, s, "k")
	require.Error(t, err)
}

type failingBackend struct {
	session.Backend
	err error
}

func (f failingBackend) Read(context.Context, session.ID, string) ([]byte, bool, error) {
	return nil, false, f.err
}

func (f failingBackend) Expire(_ context.Context, id session.ID, lifetime time.Duration) (bool, error) {
	if id == "bad" {
		return false, f.err
	}
	return f.Backend.Expire(context.Background(), id, lifetime)
}

func TestStorageErrorsAreReturned(t *testing.T) {
	boom := errors.New("disk gone")
	s := session.NewManager(failingBackend{Backend: session.NewMemoryBackend(), err: boom}).Get("x")
	_, err := s.Get(context.Background(), "k", new(int))
	require.ErrorIs(t, err, boom)
}

func TestCollectorEvictsIdleSessions(t *testing.T) {
	ctx := context.Background()
	clk := newClock()
	backend := session.NewMemoryBackend().WithClock(clk.Now)
	m := session.NewManager(backend)
	old := m.Get("old")
	fresh := m.Get("fresh")
	collector := session.NewCollector(backend, time.Minute, time.Hour)

	require.NoError(t, old.Set(ctx, "counter", 1))
	clk.Advance(30 * time.Minute)
	require.NoError(t, fresh.Set(ctx, "counter", 2))

	stats, err := collector.Sweep(ctx)
	require.NoError(t, err)
	require.Equal(t, session.SweepStats{Count: 2}, stats)

	clk.Advance(31 * time.Minute)
	stats, err = collector.Sweep(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, stats.Evicted)

	_, ok, err := session.Value[int](ctx, old, "counter")
	require.NoError(t, err)
	require.False(t, ok)
	v, ok, err := session.Value[int](ctx, fresh, "counter")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 2, v)
}

func TestCollectorContinuesPastFailures(t *testing.T) {
	ctx := context.Background()
	clk := newClock()
	mem := session.NewMemoryBackend().WithClock(clk.Now)
	backend := failingBackend{Backend: mem, err: errors.New("locked")}
	m := session.NewManager(mem)
	require.NoError(t, m.Get("bad").Set(ctx, "k", 1))
	require.NoError(t, m.Get("good").Set(ctx, "k", 1))
	clk.Advance(2 * time.Hour)

	stats, err := session.NewCollector(backend, time.Minute, time.Hour).Sweep(ctx)
	require.NoError(t, err)
	require.Equal(t, session.SweepStats{Count: 2, Evicted: 1, Failed: 1}, stats)
	require.Equal(t, 1, mem.Len())
}

func TestCollectorStartStop(t *testing.T) {
	clk := newClock()
	backend := session.NewMemoryBackend().WithClock(clk.Now)
	require.NoError(t, session.NewManager(backend).Get("a").Set(context.Background(), "k", 1))
	clk.Advance(time.Hour)

	h := session.NewCollector(backend, 5*time.Millisecond, time.Minute).Start(context.Background())
	require.Eventually(t, func() bool { return backend.Len() == 0 }, time.Second, 5*time.Millisecond)
	h.Stop()
	select {
	case <-h.Done():
	default:
		t.Fatal("collector still running after Stop")
	}
}

func TestFromEventExtractor(t *testing.T) {
	ctx := context.Background()
	s := store.New()

	out := session.FromEvent().Extract(ctx, dispatch.NewInput(s, updatetest.Message(1, 2, "x")))
	require.ErrorIs(t, out.Err(), session.ErrManagerNotFound)

	store.Put(s, session.NewManager(session.NewMemoryBackend()))
	sess, ok := session.FromEvent().Extract(ctx, dispatch.NewInput(s, updatetest.Message(1, 2, "x"))).Value()
	require.True(t, ok)
	require.Equal(t, session.ID("1-2"), sess.ID())

	out = session.FromEvent().Extract(ctx, dispatch.NewInput(s, updatetest.InlineQuery(2, "q")))
	require.True(t, out.IsAbsent())
}

func TestKeyLockSerializes(t *testing.T) {
	l := session.NewKeyLock()
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		active  int
		overlap bool
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := l.Lock("a")
			mu.Lock()
			active++
			if active > 1 {
				overlap = true
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			active--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()
	require.False(t, overlap)
	require.Zero(t, l.Len())
}
