package store

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type counter struct{ n int }

type greeter interface{ Greet() string }

type english struct{}

func (english) Greet() string { return "hello" }

func TestPutReplacesSameType(t *testing.T) {
	s := New()
	Put(s, 1)
	Put(s, "first")
	Put(s, "second")

	n, ok := Get[int](s)
	require.True(t, ok)
	require.Equal(t, 1, n)

	str, ok := Get[string](s)
	require.True(t, ok)
	require.Equal(t, "second", str)
	require.Equal(t, 2, s.Len())
}

func TestGetMissing(t *testing.T) {
	s := New()
	_, ok := Get[*counter](s)
	require.False(t, ok)

	var nilStore *Store
	_, ok = Get[int](nilStore)
	require.False(t, ok)
}

func TestPointerAndValueAreDistinct(t *testing.T) {
	s := New()
	shared := &counter{n: 3}
	Put(s, shared)
	Put(s, counter{n: 9})

	p, ok := Get[*counter](s)
	require.True(t, ok)
	require.Same(t, shared, p)

	v, ok := Get[counter](s)
	require.True(t, ok)
	require.Equal(t, 9, v.n)
}

func TestInterfaceKey(t *testing.T) {
	s := New()
	Put[greeter](s, english{})

	g, ok := Get[greeter](s)
	require.True(t, ok)
	require.Equal(t, "hello", g.Greet())

	_, ok = Get[english](s)
	require.False(t, ok, "interface registration must not leak to the concrete type")

	s.Insert(english{})
	_, ok = Get[english](s)
	require.True(t, ok)
}

func TestConcurrentAccess(t *testing.T) {
	s := New()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			Put(s, fmt.Sprint(i))
		}(i)
		go func() {
			defer wg.Done()
			_, _ = Get[string](s)
		}()
	}
	wg.Wait()
	_, ok := Get[string](s)
	require.True(t, ok)
}
