package common

import (
	"runtime/debug"
)

// Middleware is a participant in the global hook chain.
// Each hook is optional. Hooks of every kind run in registration order; the chain is
// re-traversed for each stage rather than nested around the handler.
type Middleware struct {
	// Name identifies the middleware in logs and errors.
	Name string

	// BeforeRoute runs before route matching. It may mutate the request, short-circuit
	// with a response or fail with an error.
	BeforeRoute func(req *Request) (*Response, error)

	// BeforeHandler runs after a route matched and before the view's own Before hook.
	BeforeHandler func(req *Request, route *Route) (*Response, error)

	// AfterHandler runs on the final response. It may mutate it or return a replacement;
	// a nil response keeps the current one.
	AfterHandler func(req *Request, resp *Response) (*Response, error)
}

// BeforeRouter is optionally implemented by struct-style middleware.
type BeforeRouter interface {
	BeforeRoute(req *Request) (*Response, error)
}

// BeforeHandlerer is optionally implemented by struct-style middleware.
type BeforeHandlerer interface {
	BeforeHandler(req *Request, route *Route) (*Response, error)
}

// AfterHandlerer is optionally implemented by struct-style middleware.
type AfterHandlerer interface {
	AfterHandler(req *Request, resp *Response) (*Response, error)
}

// MiddlewareOf builds a Middleware from an object implementing any of the hook interfaces.
func MiddlewareOf(name string, v any) Middleware {
	m := Middleware{Name: name}
	if h, ok := v.(BeforeRouter); ok {
		m.BeforeRoute = h.BeforeRoute
	}
	if h, ok := v.(BeforeHandlerer); ok {
		m.BeforeHandler = h.BeforeHandler
	}
	if h, ok := v.(AfterHandlerer); ok {
		m.AfterHandler = h.AfterHandler
	}
	return m
}

// MiddlewareChain represents an ordered chain of middleware
type MiddlewareChain []Middleware

// NewMiddlewareChain creates a new middleware chain
func NewMiddlewareChain(middlewares ...Middleware) MiddlewareChain {
	return middlewares
}

// Append adds middleware to the end of the chain
func (c MiddlewareChain) Append(middlewares ...Middleware) MiddlewareChain {
	return append(c, middlewares...)
}

// Prepend adds middleware to the beginning of the chain
func (c MiddlewareChain) Prepend(middlewares ...Middleware) MiddlewareChain {
	result := make(MiddlewareChain, len(middlewares)+len(c))
	copy(result, middlewares)
	copy(result[len(middlewares):], c)
	return result
}

// RunBeforeRoute invokes every BeforeRoute hook in order.
// The first short-circuit or error stops the stage.
func (c MiddlewareChain) RunBeforeRoute(req *Request) Outcome {
	for _, m := range c {
		if m.BeforeRoute == nil {
			continue
		}
		hook := m.BeforeRoute
		if out := OutcomeOf(Protect(func() (*Response, error) { return hook(req) })); out.Kind != Continue {
			return out
		}
	}
	return Next()
}

// RunBeforeHandler invokes every BeforeHandler hook in order with the matched route.
// The first short-circuit or error stops the stage.
func (c MiddlewareChain) RunBeforeHandler(req *Request, route *Route) Outcome {
	for _, m := range c {
		if m.BeforeHandler == nil {
			continue
		}
		hook := m.BeforeHandler
		if out := OutcomeOf(Protect(func() (*Response, error) { return hook(req, route) })); out.Kind != Continue {
			return out
		}
	}
	return Next()
}

// RunAfterHandler invokes every AfterHandler hook in order on the current response.
// A hook returning an error does not stop the stage: onError is asked for the response that
// replaces the current one, and the remaining hooks run on that replacement.
func (c MiddlewareChain) RunAfterHandler(req *Request, resp *Response, onError func(error) *Response) *Response {
	for _, m := range c {
		if m.AfterHandler == nil {
			continue
		}
		hook := m.AfterHandler
		current := resp
		next, err := Protect(func() (*Response, error) { return hook(req, current) })
		if err != nil {
			resp = onError(err)
			continue
		}
		if next != nil {
			resp = next
		}
	}
	return resp
}

// Protect calls fn and converts a panic into a *PanicError.
func Protect(fn func() (*Response, error)) (resp *Response, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			resp = nil
			err = &PanicError{Value: rec, Stack: debug.Stack()}
		}
	}()
	return fn()
}
