package common

// HandleFunc is the main business logic of a view.
type HandleFunc func(req *Request) (*Response, error)

// View holds the lifecycle hooks of a routed handler. Only Handle is required.
//
// Before may short-circuit by returning a response or fail by returning an error.
// After may mutate the response or return a replacement; a nil response keeps the current one.
// OnException receives errors from Before and Handle and may recover them by returning a response.
// Returning a nil response with a nil error from OnException re-raises the original error.
type View struct {
	Before      func(req *Request) (*Response, error)
	Handle      HandleFunc
	After       func(req *Request, resp *Response) (*Response, error)
	OnException func(req *Request, err error) (*Response, error)
}

// Handler is implemented by class-style views.
type Handler interface {
	Handle(req *Request) (*Response, error)
}

// BeforeHook is optionally implemented by a Handler to run before Handle.
type BeforeHook interface {
	Before(req *Request) (*Response, error)
}

// AfterHook is optionally implemented by a Handler to post-process the response.
type AfterHook interface {
	After(req *Request, resp *Response) (*Response, error)
}

// ExceptionHook is optionally implemented by a Handler to recover from errors.
type ExceptionHook interface {
	OnException(req *Request, err error) (*Response, error)
}

// ViewOf builds a View from an object implementing Handler and any of the optional hook interfaces.
// The capability set is resolved once here, so dispatch never probes the object again.
func ViewOf(h Handler) View {
	v := View{Handle: h.Handle}
	if b, ok := h.(BeforeHook); ok {
		v.Before = b.Before
	}
	if a, ok := h.(AfterHook); ok {
		v.After = a.After
	}
	if e, ok := h.(ExceptionHook); ok {
		v.OnException = e.OnException
	}
	return v
}

// ViewFunc wraps a plain function as a View with no optional hooks.
func ViewFunc(fn HandleFunc) View {
	return View{Handle: fn}
}
