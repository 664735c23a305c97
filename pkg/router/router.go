package router

import (
	"context"
	"errors"
	"iter"
	"maps"
	"net/http"
	"regexp"
	"runtime/debug"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/Suhaibinator/SDispatch/pkg/common"
	"github.com/Suhaibinator/SDispatch/pkg/metrics"
	"github.com/Suhaibinator/SDispatch/pkg/middleware"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Disposition is the single final classification of a dispatched request.
type Disposition int

const (
	// DispositionDispatched means the matched view produced the response. This includes a view
	// whose Before hook answered early and one whose OnException recovered an error.
	DispositionDispatched Disposition = iota

	// DispositionNotFound means no route matched the path.
	DispositionNotFound

	// DispositionMethodNotAllowed means a route matched the path but not the method.
	DispositionMethodNotAllowed

	// DispositionShortCircuited means a before_route or before_handler middleware hook answered early.
	DispositionShortCircuited

	// DispositionFailed means an unrecovered error was translated into the response.
	DispositionFailed
)

// String returns the label used in logs and metrics.
func (d Disposition) String() string {
	switch d {
	case DispositionDispatched:
		return "dispatched"
	case DispositionNotFound:
		return "not_found"
	case DispositionMethodNotAllowed:
		return "method_not_allowed"
	case DispositionShortCircuited:
		return "short_circuited"
	case DispositionFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result is the outcome of Dispatch. Response is never nil.
type Result struct {
	Response    *common.Response
	Disposition Disposition
	Route       *common.Route // Matched route, nil when none was selected
	Err         error         // Unrecovered errors, combined with multierr when more than one
}

// Router is the dispatcher. It owns the route table and the middleware chain, and implements
// http.Handler through a thin adapter around Dispatch.
type Router struct {
	config     RouterConfig
	table      *Table
	matcher    *Matcher
	chain      common.MiddlewareChain
	logger     *zap.Logger
	metrics    *metrics.Collector
	wg         sync.WaitGroup
	shutdown   bool
	shutdownMu sync.RWMutex
}

// NewRouter creates a new Router with the given configuration.
// It registers the configured parameter types, sub-routers and routes, and returns every
// registration failure combined into one error.
func NewRouter(config RouterConfig) (*Router, error) {
	// Set up the logger
	logger := config.Logger
	if logger == nil {
		var err error
		logger, err = zap.NewProduction()
		if err != nil {
			// Fallback to a no-op logger if we can't create a production logger
			logger = zap.NewNop()
		}
	}

	r := &Router{
		config:  config,
		table:   NewTable(),
		chain:   common.NewMiddlewareChain(config.Middlewares...),
		logger:  logger,
		metrics: config.Metrics,
	}
	r.matcher = NewMatcher(r.table, !config.DisableHeadFallback)

	// Parameter types must exist before any template referencing them is compiled
	var errs error
	for _, name := range slices.Sorted(maps.Keys(config.ParamTypes)) {
		errs = multierr.Append(errs, r.table.AddParamType(name, config.ParamTypes[name], true))
	}
	if errs != nil {
		return nil, errs
	}

	for _, sr := range config.SubRouters {
		errs = multierr.Append(errs, r.RegisterSubRouter(sr))
	}
	errs = multierr.Append(errs, r.RegisterAll(config.Routes...))
	if errs != nil {
		return nil, errs
	}

	return r, nil
}

// RegisterRoute registers a route with the router.
// For generic routes with type parameters, use the RegisterGenericRoute function instead.
func (r *Router) RegisterRoute(route RouteConfigBase) error {
	_, err := r.table.Add(route)
	return err
}

// RegisterAll registers routes in order and returns all failures combined.
func (r *Router) RegisterAll(routes ...RouteConfigBase) error {
	var errs error
	for _, route := range routes {
		errs = multierr.Append(errs, r.RegisterRoute(route))
	}
	return errs
}

// RegisterSubRouter registers all routes of a sub-router.
// It applies the sub-router's path prefix to every route: templates are joined, raw patterns
// are grouped behind the quoted prefix so every alternative stays under it.
func (r *Router) RegisterSubRouter(sr SubRouterConfig) error {
	var errs error
	for _, route := range sr.Routes {
		switch {
		case route.Path != "":
			route.Path = joinPath(sr.PathPrefix, route.Path)
		case route.Pattern != "":
			route.Pattern = regexp.QuoteMeta(strings.TrimSuffix(sr.PathPrefix, "/")) + "(?:" + strings.TrimPrefix(route.Pattern, "^") + ")"
		}
		if sr.AuthLevel != nil {
			route.AuthLevel = *sr.AuthLevel
		}
		errs = multierr.Append(errs, r.RegisterRoute(route))
	}
	return errs
}

func joinPath(prefix, path string) string {
	return strings.TrimSuffix(prefix, "/") + "/" + strings.TrimPrefix(path, "/")
}

// AddParamType registers a placeholder type for path templates of routes registered afterwards.
func (r *Router) AddParamType(name, pattern string) error {
	return r.table.AddParamType(name, pattern, false)
}

// Routes returns the registered routes in match priority order.
func (r *Router) Routes() iter.Seq[*common.Route] {
	return r.table.All()
}

// Lookup returns the route registered under name.
func (r *Router) Lookup(name string) (*common.Route, bool) {
	return r.table.Lookup(name)
}

// Dispatch runs a request through the pipeline and always returns a response:
// before_route, match, before_handler, the view lifecycle and finally after_handler.
// The first call freezes the route table.
func (r *Router) Dispatch(req *common.Request) Result {
	r.table.Freeze()

	start := time.Now()
	if r.metrics != nil {
		done := r.metrics.Begin()
		defer done()
	}

	res := r.dispatch(req)

	if r.metrics != nil {
		r.metrics.Observe(req.Method, routeLabel(res.Route), res.Disposition.String(), res.Response.StatusCode, time.Since(start))
	}
	return res
}

func (r *Router) dispatch(req *common.Request) (res Result) {
	defer func() {
		if rec := recover(); rec != nil {
			err := wrapStage(StageDispatch, req.Route, &common.PanicError{Value: rec, Stack: debug.Stack()})
			res = r.fail(req, err)
		}
	}()

	out := r.chain.RunBeforeRoute(req)
	switch out.Kind {
	case common.ShortCircuit:
		res = Result{Response: out.Response, Disposition: DispositionShortCircuited}
	case common.Raised:
		res = r.fail(req, wrapStage(StageBeforeRoute, nil, out.Err))
	default:
		res = r.route(req)
	}

	res.Response = r.chain.RunAfterHandler(req, res.Response, func(err error) *common.Response {
		failed := r.fail(req, wrapStage(StageAfterHandler, req.Route, err))
		res.Disposition = DispositionFailed
		res.Err = multierr.Append(res.Err, failed.Err)
		return failed.Response
	})
	res.Route = req.Route
	return res
}

// route matches the request and runs before_handler and the view lifecycle.
func (r *Router) route(req *common.Request) Result {
	match := r.matcher.Match(req.Path, req.Method)
	switch match.Kind {
	case NotFound:
		return Result{
			Response:    jsonResponse(http.StatusNotFound, errorBody{Code: "NOT_FOUND", Error: "Route not found."}),
			Disposition: DispositionNotFound,
		}
	case MethodNotAllowed:
		resp := jsonResponse(http.StatusMethodNotAllowed, errorBody{Code: "METHOD_NOT_ALLOWED", Error: "Method not allowed."})
		resp.Header.Set("Allow", strings.Join(match.Allowed, ", "))
		return Result{Response: resp, Disposition: DispositionMethodNotAllowed}
	}

	req.Route = match.Route
	req.Params = match.Params

	out := r.chain.RunBeforeHandler(req, match.Route)
	switch out.Kind {
	case common.ShortCircuit:
		return Result{Response: out.Response, Disposition: DispositionShortCircuited}
	case common.Raised:
		return r.fail(req, wrapStage(StageBeforeHandler, match.Route, out.Err))
	}

	out = runView(req, match.Route)
	if out.Kind == common.Raised {
		return r.fail(req, out.Err)
	}
	return Result{Response: out.Response, Disposition: DispositionDispatched}
}

// fail logs an unrecovered error and translates it into an error response.
func (r *Router) fail(req *common.Request, err error) Result {
	resp := errorResponse(err, r.config.Debug)

	fields := []zap.Field{
		zap.Error(err),
		zap.String("method", req.Method),
		zap.String("path", req.Path),
		zap.Int("status", resp.StatusCode),
	}
	stage := string(StageDispatch)
	var he *HandlerError
	if errors.As(err, &he) {
		stage = string(he.Stage)
	}
	fields = append(fields, zap.String("stage", stage))
	if req.Route != nil {
		fields = append(fields, zap.String("route", req.Route.Pattern))
	}
	var pe *common.PanicError
	if errors.As(err, &pe) {
		fields = append(fields, zap.ByteString("stack", pe.Stack))
	}

	// Add trace ID if enabled and present
	if traceID := middleware.GetTraceID(req); r.config.EnableTraceID && traceID != "" {
		fields = append([]zap.Field{zap.String("trace_id", traceID)}, fields...)
	}

	if resp.StatusCode >= 500 {
		r.logger.Error("Unhandled error", fields...)
	} else {
		r.logger.Warn("Request failed", fields...)
	}

	if r.metrics != nil {
		r.metrics.ObserveError(stage)
	}

	return Result{Response: resp, Disposition: DispositionFailed, Err: err}
}

func routeLabel(route *common.Route) string {
	if route == nil {
		return ""
	}
	if route.Name != "" {
		return route.Name
	}
	return route.Pattern
}

// ServeHTTP implements the http.Handler interface.
// It converts the request, dispatches it and writes the response, omitting the body for HEAD.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	// First add to the wait group before checking shutdown status
	r.wg.Add(1)
	defer r.wg.Done()

	r.shutdownMu.RLock()
	isShutdown := r.shutdown
	r.shutdownMu.RUnlock()

	if isShutdown {
		resp := errorResponse(NewHTTPError(http.StatusServiceUnavailable, "Service Unavailable"), false)
		resp.Header.Set("Connection", "close")
		_, _ = resp.WriteTo(w, req.Method == http.MethodHead)
		return
	}

	creq := common.NewRequestFromHTTP(req)
	res := r.Dispatch(creq)

	if _, err := res.Response.WriteTo(w, req.Method == http.MethodHead); err != nil {
		fields := []zap.Field{
			zap.Error(err),
			zap.String("method", creq.Method),
			zap.String("path", creq.Path),
		}
		if traceID := middleware.GetTraceID(creq); r.config.EnableTraceID && traceID != "" {
			fields = append([]zap.Field{zap.String("trace_id", traceID)}, fields...)
		}
		r.logger.Warn("Failed to write response", fields...)
	}
}

// Shutdown gracefully shuts down the router.
// It stops accepting new requests and waits for existing requests to complete.
// If the context is canceled before all requests complete, it returns the context's error.
func (r *Router) Shutdown(ctx context.Context) error {
	// Mark the router as shutting down
	r.shutdownMu.Lock()
	r.shutdown = true
	r.shutdownMu.Unlock()

	// Create a channel to signal when all requests are done
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	// Wait for all requests to finish or for the context to be canceled
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
