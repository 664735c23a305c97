package router

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/Suhaibinator/SDispatch/pkg/common"
)

// Registration errors. They are returned at setup time and should abort startup.
var (
	// ErrEmptyMethodSet is returned when a route is registered without any HTTP method.
	ErrEmptyMethodSet = errors.New("route has an empty method set")

	// ErrNilHandler is returned when a route's view has no Handle function.
	ErrNilHandler = errors.New("route view has no handler")

	// ErrDuplicateRouteName is returned when two routes are registered under the same name.
	ErrDuplicateRouteName = errors.New("duplicate route name")

	// ErrTableFrozen is returned when registering after the router started serving.
	ErrTableFrozen = errors.New("route table is frozen: registration must finish before serving")

	// ErrAmbiguousPattern is returned when a route sets both Path and Pattern.
	ErrAmbiguousPattern = errors.New("route sets both Path and Pattern")
)

// ErrNilResponse is raised when a view's handler returns neither a response nor an error.
var ErrNilResponse = errors.New("handler returned no response")

// InvalidPatternError is returned when a route pattern or path template does not compile.
type InvalidPatternError struct {
	Pattern string
	Err     error
}

// Error implements the error interface.
func (e *InvalidPatternError) Error() string {
	return fmt.Sprintf("invalid route pattern %q: %v", e.Pattern, e.Err)
}

// Unwrap returns the underlying compile error.
func (e *InvalidPatternError) Unwrap() error {
	return e.Err
}

// Stage names the lifecycle stage an error came from.
type Stage string

// Lifecycle stages, in pipeline order.
const (
	StageBeforeRoute   Stage = "before_route"
	StageBeforeHandler Stage = "before_handler"
	StageBefore        Stage = "before"
	StageHandler       Stage = "handler"
	StageAfter         Stage = "after"
	StageOnException   Stage = "on_exception"
	StageAfterHandler  Stage = "after_handler"
	StageDispatch      Stage = "dispatch"
)

// HandlerError wraps an error raised by a hook or view together with the stage that raised it.
type HandlerError struct {
	Stage Stage
	Route *common.Route // nil for errors raised before a route matched
	Err   error
}

// Error implements the error interface.
func (e *HandlerError) Error() string {
	if e.Route != nil {
		return fmt.Sprintf("%s %s: %v", e.Stage, e.Route.Pattern, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

// Unwrap returns the wrapped error.
func (e *HandlerError) Unwrap() error {
	return e.Err
}

// wrapStage tags err with a stage unless it already carries one.
func wrapStage(stage Stage, route *common.Route, err error) error {
	var he *HandlerError
	if errors.As(err, &he) {
		return err
	}
	return &HandlerError{Stage: stage, Route: route, Err: err}
}

// HTTPError represents an HTTP error with a status code and message.
// It can be returned from views and hooks to choose the exact error response sent to clients.
type HTTPError struct {
	StatusCode int         // HTTP status code (e.g., 400, 404, 500)
	Code       string      // Machine-readable error code, e.g. "NOT_FOUND"
	Message    string      // Error message to be sent in the response body
	Header     http.Header // Extra headers for the error response
	Err        error       // Underlying cause, logged but never sent to clients
}

// Error implements the error interface.
// It returns a string representation of the HTTP error in the format "status: message".
func (e *HTTPError) Error() string {
	return fmt.Sprintf("%d: %s", e.StatusCode, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *HTTPError) Unwrap() error {
	return e.Err
}

// NewHTTPError creates a new HTTPError with the specified status code and message.
// The error code defaults to a name derived from the status text.
func NewHTTPError(statusCode int, message string) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		Code:       codeForStatus(statusCode),
		Message:    message,
	}
}

// codeForStatus turns "Not Found" into "NOT_FOUND".
func codeForStatus(statusCode int) string {
	text := http.StatusText(statusCode)
	if text == "" {
		return "HTTP_ERROR"
	}
	code := make([]byte, 0, len(text))
	for i := 0; i < len(text); i++ {
		c := text[i]
		switch {
		case c >= 'a' && c <= 'z':
			code = append(code, c-'a'+'A')
		case c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			code = append(code, c)
		default:
			code = append(code, '_')
		}
	}
	return string(code)
}

// errorBody is the JSON document sent for every error response.
type errorBody struct {
	Code    string        `json:"code"`
	Error   string        `json:"error"`
	Details *errorDetails `json:"details,omitempty"`
}

type errorDetails struct {
	Exception string `json:"exception"`
	Stage     string `json:"stage,omitempty"`
}

// errorResponse translates err into a response. HTTPErrors keep their status and message;
// everything else becomes a generic 500. With debug set the underlying error is exposed.
func errorResponse(err error, debug bool) *common.Response {
	status := http.StatusInternalServerError
	body := errorBody{
		Code:  "INTERNAL_SERVER_ERROR",
		Error: "Internal Server Error",
	}

	var httpErr *HTTPError
	var maxBytesErr *http.MaxBytesError
	switch {
	case errors.As(err, &httpErr):
		status = httpErr.StatusCode
		body.Code = httpErr.Code
		if body.Code == "" {
			body.Code = codeForStatus(status)
		}
		body.Error = httpErr.Message
	case errors.As(err, &maxBytesErr):
		status = http.StatusRequestEntityTooLarge
		body.Code = "BODY_TOO_LARGE"
		body.Error = "Request body too large"
	}

	if debug {
		body.Details = &errorDetails{Exception: err.Error()}
		var he *HandlerError
		if errors.As(err, &he) {
			body.Details.Stage = string(he.Stage)
		}
	}

	resp := jsonResponse(status, body)
	if httpErr != nil {
		for key, values := range httpErr.Header {
			for _, v := range values {
				resp.Header.Add(key, v)
			}
		}
	}
	resp.Err = err
	return resp
}

// jsonResponse marshals v into a JSON response. The body types used here always marshal.
func jsonResponse(status int, v any) *common.Response {
	data, _ := json.Marshal(v)
	resp := common.NewResponse(status, data)
	resp.Header.Set("Content-Type", "application/json")
	return resp
}
