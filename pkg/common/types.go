// Package common provides shared types and utilities used across the SDispatch framework.
package common

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"
)

// Request is the transport-neutral request value that flows through the dispatch pipeline.
// Method and Path are read by the matcher; Params and Route are filled in by the dispatcher.
// Header, Query and Body are passed through to hooks and views untouched.
type Request struct {
	Method     string            // HTTP method, uppercase
	Path       string            // URL path used for route matching
	Params     httprouter.Params // Named captures of the matched route, in pattern order
	Route      *Route            // Matched route, nil until the dispatcher records it
	Header     http.Header       // Request headers
	Query      url.Values        // Parsed query string
	Body       io.ReadCloser     // Request body, may be nil
	RemoteAddr string            // Network address of the client as reported by the transport
	Host       string            // Host the request was sent to

	ctx context.Context
}

// NewRequest creates a Request for the given method and path.
// It is mostly useful in tests and in transports other than net/http.
func NewRequest(method, path string) *Request {
	return &Request{
		Method: strings.ToUpper(method),
		Path:   path,
		Header: make(http.Header),
		Query:  make(url.Values),
		ctx:    context.Background(),
	}
}

// NewRequestFromHTTP converts an *http.Request into a Request.
// The body is handed over as-is; the pipeline never reads it on its own.
func NewRequestFromHTTP(r *http.Request) *Request {
	return &Request{
		Method:     strings.ToUpper(r.Method),
		Path:       r.URL.Path,
		Header:     r.Header,
		Query:      r.URL.Query(),
		Body:       r.Body,
		RemoteAddr: r.RemoteAddr,
		Host:       r.Host,
		ctx:        r.Context(),
	}
}

// Context returns the request context. It is never nil.
func (r *Request) Context() context.Context {
	if r.ctx == nil {
		return context.Background()
	}
	return r.ctx
}

// WithContext replaces the request context in place.
func (r *Request) WithContext(ctx context.Context) {
	if ctx == nil {
		panic("nil context")
	}
	r.ctx = ctx
}

// WithValue stores a request-scoped value, typically from a middleware hook for later hooks or the view.
func (r *Request) WithValue(key, val any) {
	r.ctx = context.WithValue(r.Context(), key, val)
}

// Value returns a request-scoped value previously stored with WithValue.
func (r *Request) Value(key any) any {
	return r.Context().Value(key)
}

// Param returns the value of a named path parameter, or "" when absent.
func (r *Request) Param(name string) string {
	return r.Params.ByName(name)
}

// ParamInt returns a path parameter parsed as an int.
func ParamInt(r *Request, name string) (int, error) {
	return strconv.Atoi(r.Param(name))
}

// ParamFloat returns a path parameter parsed as a float64.
func ParamFloat(r *Request, name string) (float64, error) {
	return strconv.ParseFloat(r.Param(name), 64)
}

// ParamUUID returns a path parameter parsed as a UUID.
func ParamUUID(r *Request, name string) (uuid.UUID, error) {
	return uuid.Parse(r.Param(name))
}

// Response is the value produced by a view, a middleware hook or the error translator.
// Any later stage may mutate it or replace it wholesale until it is written out.
type Response struct {
	StatusCode int         // HTTP status code
	Header     http.Header // Response headers; keys are canonicalised, duplicate values are kept
	Body       []byte      // Materialised body, ignored when Stream is set
	Stream     io.Reader   // Lazy body, copied to the client without buffering
	Err        error       // Original error when the response was produced by error translation
}

// NewResponse creates a Response with the given status code and body.
func NewResponse(statusCode int, body []byte) *Response {
	return &Response{
		StatusCode: statusCode,
		Header:     make(http.Header),
		Body:       body,
	}
}

// Text creates a plain text Response.
func Text(statusCode int, body string) *Response {
	resp := NewResponse(statusCode, []byte(body))
	resp.Header.Set("Content-Type", "text/plain; charset=utf-8")
	return resp
}

// StreamResponse creates a Response whose body is produced lazily from r.
// If r also implements io.Closer it is closed once the body has been written.
func StreamResponse(statusCode int, contentType string, r io.Reader) *Response {
	resp := NewResponse(statusCode, nil)
	resp.Stream = r
	if contentType != "" {
		resp.Header.Set("Content-Type", contentType)
	}
	return resp
}

// Empty creates a Response without a body.
func Empty(statusCode int) *Response {
	return NewResponse(statusCode, nil)
}

// WriteTo writes the response to an http.ResponseWriter.
// When omitBody is set only the status line and headers are sent (HEAD requests).
func (resp *Response) WriteTo(w http.ResponseWriter, omitBody bool) (int64, error) {
	for key, values := range resp.Header {
		for _, v := range values {
			w.Header().Add(key, v)
		}
	}

	statusCode := resp.StatusCode
	if statusCode == 0 {
		statusCode = http.StatusOK
	}

	if resp.Stream != nil {
		if c, ok := resp.Stream.(io.Closer); ok {
			defer c.Close()
		}
	}

	// HEAD responses advertise the length the GET body would have
	if resp.Stream == nil && w.Header().Get("Content-Length") == "" {
		w.Header().Set("Content-Length", strconv.Itoa(len(resp.Body)))
	}
	w.WriteHeader(statusCode)

	if omitBody {
		return 0, nil
	}

	if resp.Stream == nil {
		n, err := w.Write(resp.Body)
		return int64(n), err
	}

	// Flush after every chunk so long-lived streams reach the client promptly
	if f, ok := w.(http.Flusher); ok {
		return io.Copy(flushWriter{w: w, f: f}, resp.Stream)
	}
	return io.Copy(w, resp.Stream)
}

type flushWriter struct {
	w io.Writer
	f http.Flusher
}

func (fw flushWriter) Write(p []byte) (int, error) {
	n, err := fw.w.Write(p)
	fw.f.Flush()
	return n, err
}
