// Package router provides a regular-expression request dispatcher with a flat middleware chain
// and a per-route view lifecycle.
package router

import (
	"github.com/Suhaibinator/SDispatch/pkg/common"
	"github.com/Suhaibinator/SDispatch/pkg/metrics"
	"go.uber.org/zap"
)

// AuthLevel defines the authentication level for a route.
// Authentication middleware reads it from the matched route in its before_handler hook.
type AuthLevel = common.AuthLevel

const (
	// NoAuth indicates that no authentication is required for the route.
	NoAuth = common.NoAuth

	// AuthOptional indicates that authentication is optional for the route.
	// If credentials are provided and valid the user is added to the request context,
	// otherwise the request still proceeds.
	AuthOptional = common.AuthOptional

	// AuthRequired indicates that authentication is required for the route.
	// If authentication fails, the request is rejected with a 401 Unauthorized response.
	AuthRequired = common.AuthRequired
)

// RouterConfig defines the global configuration for the router.
// It is consumed once by NewRouter; the resulting dispatcher is immutable after setup.
type RouterConfig struct {
	Logger              *zap.Logger         // Logger for all router operations
	Middlewares         []common.Middleware // Global middlewares, run in this order for every stage
	SubRouters          []SubRouterConfig   // Sub-routers with their own path prefix
	Routes              []RouteConfigBase   // Top-level routes, registered after the sub-routers
	ParamTypes          map[string]string   // Extra placeholder types for path templates
	Metrics             *metrics.Collector  // Prometheus collector fed around each dispatch (optional)
	EnableTraceID       bool                // Add the trace ID to router log lines
	Debug               bool                // Expose underlying error details in error responses
	DisableHeadFallback bool                // Do not serve HEAD from routes that only declare GET
}

// SubRouterConfig defines configuration for a group of routes with a common path prefix.
type SubRouterConfig struct {
	PathPrefix string            // Common path prefix for all routes in this sub-router
	AuthLevel  *AuthLevel        // Override the auth level of every route in this sub-router
	Routes     []RouteConfigBase // Routes in this sub-router
}

// RouteConfigBase defines the configuration of a single route.
// Exactly one of Path (a template such as "/users/<id:int>") or Pattern (a raw regular expression)
// must be set. Both are matched against the whole request path.
type RouteConfigBase struct {
	Name      string         // Unique route name (optional)
	Path      string         // Path template compiled with the router's parameter types
	Pattern   string         // Raw regular expression; named groups become path parameters
	Methods   []string       // HTTP methods this route handles
	View      common.View    // Lifecycle hooks; View.Handle is required
	AuthLevel AuthLevel      // Authentication level for this route
	Meta      map[string]any // Arbitrary metadata visible to before_handler hooks
}

// RouteConfig defines a route with generic request and response types.
// The router decodes the request with Codec, calls Handler and encodes its result.
type RouteConfig[T any, U any] struct {
	Name          string                                                         // Unique route name (optional)
	Path          string                                                         // Path template
	Pattern       string                                                         // Raw regular expression
	Methods       []string                                                       // HTTP methods this route handles
	AuthLevel     AuthLevel                                                      // Authentication level for this route
	Meta          map[string]any                                                 // Arbitrary route metadata
	Codec         Codec[T, U]                                                    // Codec for decoding requests and encoding responses
	Handler       GenericHandler[T, U]                                           // Generic handler function
	SuccessStatus int                                                            // Status for successful responses, 200 when zero
	OnException   func(req *common.Request, err error) (*common.Response, error) // Optional error recovery hook
}

// GenericHandler defines a handler function with generic request and response types.
// It receives the request and the decoded body, and returns a typed response object or an error.
type GenericHandler[T any, U any] func(req *common.Request, data T) (U, error)

// Codec defines an interface for decoding request data and encoding response data.
// The codec package provides JSON and Protocol Buffers implementations.
type Codec[T any, U any] interface {
	// Decode reads and deserializes the request body into a value of type T.
	Decode(req *common.Request) (T, error)

	// Encode serializes resp into a response with the given status code and a matching
	// Content-Type header.
	Encode(status int, resp U) (*common.Response, error)
}
