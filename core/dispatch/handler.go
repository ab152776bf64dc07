package dispatch

import "context"

// Handler processes one dispatch input.
type Handler interface {
	Handle(ctx context.Context, in *Input) Result
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, in *Input) Result

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, in *Input) Result { return f(ctx, in) }

// resolve runs ex and, when present, fn. Absent skips, Failed errors.
func resolve[T any](ctx context.Context, in *Input, ex Extractor[T], fn func(T) Result) Result {
	out := ex.Extract(ctx, in)
	switch {
	case out.IsPresent():
		return fn(out.value)
	case out.IsAbsent():
		return Skipped()
	}
	return Fail(out.err)
}

// Bind runs fn with the value extracted by ex.
func Bind[T any](ex Extractor[T], fn func(context.Context, T) Result) Handler {
	return HandlerFunc(func(ctx context.Context, in *Input) Result {
		return resolve(ctx, in, ex, func(v T) Result { return fn(ctx, v) })
	})
}

// Bind2 runs fn with two extracted values.
func Bind2[A, B any](a Extractor[A], b Extractor[B], fn func(context.Context, A, B) Result) Handler {
	return Bind(Join2(a, b), func(ctx context.Context, t Tuple2[A, B]) Result {
		return fn(ctx, t.A, t.B)
	})
}

// Bind3 runs fn with three extracted values.
func Bind3[A, B, C any](a Extractor[A], b Extractor[B], c Extractor[C], fn func(context.Context, A, B, C) Result) Handler {
	return Bind(Join3(a, b, c), func(ctx context.Context, t Tuple3[A, B, C]) Result {
		return fn(ctx, t.A, t.B, t.C)
	})
}

// Run is Bind for functions reporting only an error; nil means Continue.
func Run[T any](ex Extractor[T], fn func(context.Context, T) error) Handler {
	return Bind(ex, func(ctx context.Context, v T) Result { return Fail(fn(ctx, v)) })
}

// Run2 is Bind2 for functions reporting only an error.
func Run2[A, B any](a Extractor[A], b Extractor[B], fn func(context.Context, A, B) error) Handler {
	return Bind2(a, b, func(ctx context.Context, x A, y B) Result { return Fail(fn(ctx, x, y)) })
}
