package common

import "fmt"

// OutcomeKind identifies which branch of the pipeline a stage selected.
type OutcomeKind int

const (
	// Continue means the stage finished normally and the next stage should run.
	Continue OutcomeKind = iota

	// ShortCircuit means the stage produced the final response early.
	ShortCircuit

	// Raised means the stage failed with an error.
	Raised
)

// String returns the lowercase name of the kind.
func (k OutcomeKind) String() string {
	switch k {
	case Continue:
		return "continue"
	case ShortCircuit:
		return "short_circuit"
	case Raised:
		return "raised"
	default:
		return fmt.Sprintf("OutcomeKind(%d)", int(k))
	}
}

// Outcome is the explicit handoff value between pipeline stages.
// Exactly one of Response (ShortCircuit) or Err (Raised) is set; both are nil for Continue.
type Outcome struct {
	Kind     OutcomeKind
	Response *Response
	Err      error
}

// Next returns a Continue outcome.
func Next() Outcome {
	return Outcome{Kind: Continue}
}

// Respond returns a ShortCircuit outcome carrying resp.
func Respond(resp *Response) Outcome {
	return Outcome{Kind: ShortCircuit, Response: resp}
}

// Fail returns a Raised outcome carrying err.
func Fail(err error) Outcome {
	return Outcome{Kind: Raised, Err: err}
}

// OutcomeOf folds the (response, error) pair returned by a hook into an Outcome.
// An error wins over a response; a nil response with a nil error continues.
func OutcomeOf(resp *Response, err error) Outcome {
	if err != nil {
		return Fail(err)
	}
	if resp != nil {
		return Respond(resp)
	}
	return Next()
}

// PanicError wraps a value recovered from a panicking hook or view.
type PanicError struct {
	Value any
	Stack []byte
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap returns the panic value when it is itself an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
