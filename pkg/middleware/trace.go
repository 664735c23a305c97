package middleware

import (
	"context"

	"github.com/Suhaibinator/SDispatch/pkg/common"
	"github.com/google/uuid"
)

// TraceIDHeader is the header used to accept and echo trace IDs.
const TraceIDHeader = "X-Trace-ID"

// TraceIDKey is the key used to store the trace ID in the request context
type traceIDKey struct{}

var TraceIDKey = traceIDKey{}

// TraceMiddleware creates a middleware that assigns a unique trace ID to each request
// and adds it to the request context. An incoming X-Trace-ID header is reused when it is a
// valid UUID. The trace ID is echoed on every response, including error responses.
func TraceMiddleware() Middleware {
	return Middleware{
		Name: "trace",
		BeforeRoute: func(req *common.Request) (*common.Response, error) {
			traceID := req.Header.Get(TraceIDHeader)
			if _, err := uuid.Parse(traceID); err != nil {
				// Generate a unique trace ID
				traceID = uuid.New().String()
			}
			req.WithValue(TraceIDKey, traceID)
			return nil, nil
		},
		AfterHandler: func(req *common.Request, resp *common.Response) (*common.Response, error) {
			if traceID := GetTraceID(req); traceID != "" {
				resp.Header.Set(TraceIDHeader, traceID)
			}
			return nil, nil
		},
	}
}

// GetTraceID extracts the trace ID from the request context.
// Returns an empty string if no trace ID is found.
func GetTraceID(req *common.Request) string {
	return GetTraceIDFromContext(req.Context())
}

// GetTraceIDFromContext extracts the trace ID from a context.
// Returns an empty string if no trace ID is found.
func GetTraceIDFromContext(ctx context.Context) string {
	if traceID, ok := ctx.Value(TraceIDKey).(string); ok {
		return traceID
	}
	return ""
}
