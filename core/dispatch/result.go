package dispatch

import "fmt"

// Kind classifies a handler result.
type Kind uint8

const (
	// KindContinue lets the chain run the next handler.
	KindContinue Kind = iota
	// KindStop ends the chain successfully.
	KindStop
	// KindError ends the chain with an error.
	KindError
	// KindSkipped means the handler did not apply to the event.
	KindSkipped
)

func (k Kind) String() string {
	switch k {
	case KindContinue:
		return "continue"
	case KindStop:
		return "stop"
	case KindError:
		return "error"
	case KindSkipped:
		return "skipped"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Result is what a handler reports back to its chain.
type Result struct {
	kind Kind
	err  error
}

// Continue asks the chain to run the next handler.
func Continue() Result { return Result{kind: KindContinue} }

// Stop ends the chain without error.
func Stop() Result { return Result{kind: KindStop} }

// Skipped reports that the handler did not apply. Chains move on.
func Skipped() Result { return Result{kind: KindSkipped} }

// Fail ends the chain with err. A nil err is treated as Continue.
func Fail(err error) Result {
	if err == nil {
		return Continue()
	}
	return Result{kind: KindError, err: err}
}

// Kind returns the classification.
func (r Result) Kind() Kind { return r.kind }

// Err returns the error for KindError results.
func (r Result) Err() error { return r.err }

// IsContinue reports KindContinue.
func (r Result) IsContinue() bool { return r.kind == KindContinue }

// IsStop reports KindStop.
func (r Result) IsStop() bool { return r.kind == KindStop }

// IsError reports KindError.
func (r Result) IsError() bool { return r.kind == KindError }

// IsSkipped reports KindSkipped.
func (r Result) IsSkipped() bool { return r.kind == KindSkipped }

func (r Result) String() string {
	if r.kind == KindError {
		return fmt.Sprintf("error: %v", r.err)
	}
	return r.kind.String()
}
