// Package middleware provides ready-made hook middlewares for the SDispatch router.
package middleware

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/Suhaibinator/SDispatch/pkg/common"
	"go.uber.org/zap"
)

// Use the Middleware type from the common package
type Middleware = common.Middleware

// contextKey is a type for context keys
type contextKey string

const (
	startTimeKey     contextKey = "start_time"
	timeoutCancelKey contextKey = "timeout_cancel"
)

// Logging is a middleware that logs requests.
// It records the start time in before_route and logs the final response in after_handler,
// so requests answered by a short-circuit or an error response are logged too.
func Logging(logger *zap.Logger) Middleware {
	return Middleware{
		Name: "logging",
		BeforeRoute: func(req *common.Request) (*common.Response, error) {
			req.WithValue(startTimeKey, time.Now())
			return nil, nil
		},
		AfterHandler: func(req *common.Request, resp *common.Response) (*common.Response, error) {
			var duration time.Duration
			if start, ok := req.Value(startTimeKey).(time.Time); ok {
				duration = time.Since(start)
			}

			fields := []zap.Field{
				zap.String("method", req.Method),
				zap.String("path", req.Path),
				zap.Int("status", resp.StatusCode),
				zap.Duration("duration", duration),
			}
			if traceID := GetTraceID(req); traceID != "" {
				fields = append([]zap.Field{zap.String("trace_id", traceID)}, fields...)
			}
			if req.Route != nil {
				fields = append(fields, zap.String("route", req.Route.Pattern))
			}

			// Use appropriate log level based on status code and duration
			switch {
			case resp.StatusCode >= 500:
				// Server errors at Error level
				logger.Error("Server error", append(fields, zap.String("remote_addr", req.RemoteAddr))...)
			case resp.StatusCode >= 400:
				// Client errors at Warn level
				logger.Warn("Client error", fields...)
			case duration > 1*time.Second:
				// Slow requests at Warn level
				logger.Warn("Slow request", fields...)
			default:
				// Normal requests at Debug level to avoid log spam
				logger.Debug("Request", fields...)
			}
			return nil, nil
		},
	}
}

// MaxBodySize is a middleware that limits the size of the request body.
// Reading past the limit fails with *http.MaxBytesError, which the router answers with 413.
func MaxBodySize(maxSize int64) Middleware {
	return Middleware{
		Name: "max_body_size",
		BeforeRoute: func(req *common.Request) (*common.Response, error) {
			if req.Body != nil {
				req.Body = http.MaxBytesReader(nil, req.Body, maxSize)
			}
			return nil, nil
		},
	}
}

// Timeout is a middleware that sets a deadline on the request context.
// Views and hooks observe it through req.Context(). The context is released in after_handler,
// or once a lazy body has been written when the response streams.
func Timeout(timeout time.Duration) Middleware {
	return Middleware{
		Name: "timeout",
		BeforeRoute: func(req *common.Request) (*common.Response, error) {
			ctx, cancel := context.WithTimeout(req.Context(), timeout)
			req.WithContext(ctx)
			req.WithValue(timeoutCancelKey, cancel)
			return nil, nil
		},
		AfterHandler: func(req *common.Request, resp *common.Response) (*common.Response, error) {
			cancel, ok := req.Value(timeoutCancelKey).(context.CancelFunc)
			if !ok {
				return nil, nil
			}
			if resp != nil && resp.Stream != nil {
				resp.Stream = &cancelOnClose{Reader: resp.Stream, cancel: cancel}
				return nil, nil
			}
			cancel()
			return nil, nil
		},
	}
}

// cancelOnClose releases a context once the stream it wraps has been written and closed.
type cancelOnClose struct {
	io.Reader
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	defer c.cancel()
	if closer, ok := c.Reader.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// errorBody mirrors the router's error document so responses produced by middleware look the same.
type errorBody struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

// jsonError creates a JSON error response.
func jsonError(status int, code, message string) *common.Response {
	data, _ := json.Marshal(errorBody{Code: code, Error: message})
	resp := common.NewResponse(status, data)
	resp.Header.Set("Content-Type", "application/json")
	return resp
}
