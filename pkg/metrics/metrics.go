// Package metrics provides Prometheus metrics for the dispatcher.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Default histogram buckets for dispatch latency.
var defaultBuckets = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}

// UnmatchedRoute is the route label used when no route was selected (404, 405, early short-circuits).
const UnmatchedRoute = "unmatched"

// Collector holds the Prometheus collectors fed by the router around each dispatch.
type Collector struct {
	Registry *prometheus.Registry

	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge
	HandlerErrors    *prometheus.CounterVec
}

// New creates a Collector with its own registry, including the Go runtime and process collectors.
func New(namespace string) *Collector {
	reg := prometheus.NewRegistry()

	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return NewWithRegistry(namespace, reg)
}

// NewWithRegistry creates a Collector and registers its collectors with reg.
func NewWithRegistry(namespace string, reg *prometheus.Registry) *Collector {
	c := &Collector{
		Registry: reg,

		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total dispatched requests by method, route, disposition and status code.",
		}, []string{"method", "route", "disposition", "status"}),

		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Dispatch latency in seconds.",
			Buckets:   defaultBuckets,
		}, []string{"method", "route"}),

		RequestsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "requests_in_flight",
			Help:      "Number of requests currently being dispatched.",
		}),

		HandlerErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handler_errors_total",
			Help:      "Unrecovered errors by the lifecycle stage that raised them.",
		}, []string{"stage"}),
	}

	reg.MustRegister(
		c.RequestsTotal,
		c.RequestDuration,
		c.RequestsInFlight,
		c.HandlerErrors,
	)

	return c
}

// Begin marks a request as in flight. The returned function must be called exactly once
// when the dispatch finishes.
func (c *Collector) Begin() func() {
	c.RequestsInFlight.Inc()
	return c.RequestsInFlight.Dec
}

// Observe records a finished dispatch. An empty route is reported as UnmatchedRoute.
func (c *Collector) Observe(method, route, disposition string, status int, duration time.Duration) {
	method = NormalizeMethod(method)
	if route == "" {
		route = UnmatchedRoute
	}
	c.RequestsTotal.WithLabelValues(method, route, disposition, strconv.Itoa(status)).Inc()
	c.RequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveError counts an unrecovered error raised by stage.
func (c *Collector) ObserveError(stage string) {
	c.HandlerErrors.WithLabelValues(stage).Inc()
}

// Handler returns the exposition handler for the collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.Registry, promhttp.HandlerOpts{Registry: c.Registry})
}

// knownMethods lists the allowed HTTP method label values (bounded cardinality).
var knownMethods = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "DELETE": true,
	"PATCH": true, "HEAD": true, "OPTIONS": true,
}

// NormalizeMethod returns a bounded HTTP method label for Prometheus metrics.
// Non-standard methods are mapped to "other" to prevent cardinality explosion.
func NormalizeMethod(method string) string {
	if knownMethods[method] {
		return method
	}
	return "other"
}
