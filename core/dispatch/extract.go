package dispatch

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/m3rciful/botflow/core/store"
)

// ErrNotInStore reports a Ref extraction of a type nobody registered.
var ErrNotInStore = errors.New("dispatch: value not found in store")

type outcomeState uint8

const (
	stateAbsent outcomeState = iota
	statePresent
	stateFailed
)

// Outcome is the three-valued result of an extraction. The zero value is
// Absent.
type Outcome[T any] struct {
	value T
	err   error
	state outcomeState
}

// Present wraps an extracted value.
func Present[T any](v T) Outcome[T] { return Outcome[T]{value: v, state: statePresent} }

// Absent reports that the input does not apply to the event.
func Absent[T any]() Outcome[T] { return Outcome[T]{state: stateAbsent} }

// Failed reports an extraction error.
func Failed[T any](err error) Outcome[T] { return Outcome[T]{err: err, state: stateFailed} }

// Value returns the extracted value and whether it is present.
func (o Outcome[T]) Value() (T, bool) { return o.value, o.state == statePresent }

// IsPresent reports a present value.
func (o Outcome[T]) IsPresent() bool { return o.state == statePresent }

// IsAbsent reports an absent value.
func (o Outcome[T]) IsAbsent() bool { return o.state == stateAbsent }

// Err returns the failure, nil unless the outcome failed.
func (o Outcome[T]) Err() error { return o.err }

// Extractor materializes a T from one dispatch input.
type Extractor[T any] interface {
	Extract(ctx context.Context, in *Input) Outcome[T]
}

// ExtractorFunc adapts a function to Extractor.
type ExtractorFunc[T any] func(ctx context.Context, in *Input) Outcome[T]

// Extract calls f.
func (f ExtractorFunc[T]) Extract(ctx context.Context, in *Input) Outcome[T] { return f(ctx, in) }

// Ref extracts the store value of type T. A missing value is a
// configuration error, so extraction fails rather than being absent.
func Ref[T any]() Extractor[T] {
	return ExtractorFunc[T](func(_ context.Context, in *Input) Outcome[T] {
		v, ok := store.Get[T](in.Store)
		if !ok {
			return Failed[T](fmt.Errorf("%w: %s", ErrNotInStore, reflect.TypeFor[T]()))
		}
		return Present(v)
	})
}

// Maybe holds an optionally extracted value.
type Maybe[T any] struct {
	Value T
	OK    bool
}

// Optional turns an Absent outcome of ex into a present empty Maybe.
func Optional[T any](ex Extractor[T]) Extractor[Maybe[T]] {
	return ExtractorFunc[Maybe[T]](func(ctx context.Context, in *Input) Outcome[Maybe[T]] {
		out := ex.Extract(ctx, in)
		switch {
		case out.IsPresent():
			return Present(Maybe[T]{Value: out.value, OK: true})
		case out.IsAbsent():
			return Present(Maybe[T]{})
		}
		return Failed[Maybe[T]](out.err)
	})
}

// Map applies fn to a present value. fn may turn it into any outcome.
func Map[T, U any](ex Extractor[T], fn func(T) Outcome[U]) Extractor[U] {
	return ExtractorFunc[U](func(ctx context.Context, in *Input) Outcome[U] {
		out := ex.Extract(ctx, in)
		switch {
		case out.IsPresent():
			return fn(out.value)
		case out.IsAbsent():
			return Absent[U]()
		}
		return Failed[U](out.err)
	})
}

// Erase drops the static type of ex so it can be used with Join.
func Erase[T any](ex Extractor[T]) Extractor[any] {
	return Map(ex, func(v T) Outcome[any] { return Present[any](v) })
}

// Join extracts every field in order. The first Absent or Failed field decides
// the outcome and later fields are not extracted.
func Join(fields ...Extractor[any]) Extractor[[]any] {
	return ExtractorFunc[[]any](func(ctx context.Context, in *Input) Outcome[[]any] {
		values := make([]any, 0, len(fields))
		for i, f := range fields {
			out := f.Extract(ctx, in)
			switch {
			case out.IsAbsent():
				return Absent[[]any]()
			case !out.IsPresent():
				return Failed[[]any](fmt.Errorf("dispatch: field %d: %w", i, out.err))
			}
			values = append(values, out.value)
		}
		return Present(values)
	})
}

// Tuple2 is the value extracted by Join2.
type Tuple2[A, B any] struct {
	A A
	B B
}

// Tuple3 is the value extracted by Join3.
type Tuple3[A, B, C any] struct {
	A A
	B B
	C C
}

// Tuple4 is the value extracted by Join4.
type Tuple4[A, B, C, D any] struct {
	A A
	B B
	C C
	D D
}

// as converts an erased value back; nil interfaces become the zero value.
func as[T any](v any) T {
	t, _ := v.(T)
	return t
}

// Join2 extracts a then b.
func Join2[A, B any](a Extractor[A], b Extractor[B]) Extractor[Tuple2[A, B]] {
	return Map(Join(Erase(a), Erase(b)), func(v []any) Outcome[Tuple2[A, B]] {
		return Present(Tuple2[A, B]{A: as[A](v[0]), B: as[B](v[1])})
	})
}

// Join3 extracts a, b then c.
func Join3[A, B, C any](a Extractor[A], b Extractor[B], c Extractor[C]) Extractor[Tuple3[A, B, C]] {
	return Map(Join(Erase(a), Erase(b), Erase(c)), func(v []any) Outcome[Tuple3[A, B, C]] {
		return Present(Tuple3[A, B, C]{A: as[A](v[0]), B: as[B](v[1]), C: as[C](v[2])})
	})
}

// Join4 extracts a, b, c then d.
func Join4[A, B, C, D any](a Extractor[A], b Extractor[B], c Extractor[C], d Extractor[D]) Extractor[Tuple4[A, B, C, D]] {
	return Map(Join(Erase(a), Erase(b), Erase(c), Erase(d)), func(v []any) Outcome[Tuple4[A, B, C, D]] {
		return Present(Tuple4[A, B, C, D]{A: as[A](v[0]), B: as[B](v[1]), C: as[C](v[2]), D: as[D](v[3])})
	})
}
