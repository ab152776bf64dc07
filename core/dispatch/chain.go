package dispatch

import "context"

type chainMode uint8

const (
	modeAll chainMode = iota
	modeOnce
)

// Chain runs member handlers in order. It is itself a Handler.
type Chain struct {
	mode     chainMode
	handlers []Handler
}

// All runs every member until one stops or fails.
func All(handlers ...Handler) *Chain {
	return &Chain{mode: modeAll, handlers: compact(handlers)}
}

// Once runs members until the first one that did not skip.
func Once(handlers ...Handler) *Chain {
	return &Chain{mode: modeOnce, handlers: compact(handlers)}
}

// With returns a copy of c extended with handlers.
func (c *Chain) With(handlers ...Handler) *Chain {
	next := make([]Handler, 0, len(c.handlers)+len(handlers))
	next = append(next, c.handlers...)
	next = append(next, compact(handlers)...)
	return &Chain{mode: c.mode, handlers: next}
}

// Len returns the number of members.
func (c *Chain) Len() int { return len(c.handlers) }

// Handle implements Handler.
func (c *Chain) Handle(ctx context.Context, in *Input) Result {
	if c.mode == modeOnce {
		return c.once(ctx, in)
	}
	return c.all(ctx, in)
}

func (c *Chain) all(ctx context.Context, in *Input) Result {
	ran := false
	for _, h := range c.handlers {
		res := h.Handle(ctx, in)
		switch res.Kind() {
		case KindSkipped:
			continue
		case KindStop, KindError:
			return res
		}
		ran = true
	}
	if !ran {
		return Skipped()
	}
	return Continue()
}

func (c *Chain) once(ctx context.Context, in *Input) Result {
	for _, h := range c.handlers {
		if res := h.Handle(ctx, in); !res.IsSkipped() {
			return res
		}
	}
	return Skipped()
}

func compact(handlers []Handler) []Handler {
	out := make([]Handler, 0, len(handlers))
	for _, h := range handlers {
		if h != nil {
			out = append(out, h)
		}
	}
	return out
}
