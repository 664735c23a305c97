// Package server assembles the sdispatch demo server from its configuration.
package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/Suhaibinator/SDispatch/internal/config"
	"github.com/Suhaibinator/SDispatch/internal/handler"
	"github.com/Suhaibinator/SDispatch/pkg/common"
	"github.com/Suhaibinator/SDispatch/pkg/metrics"
	"github.com/Suhaibinator/SDispatch/pkg/middleware"
	"github.com/Suhaibinator/SDispatch/pkg/router"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

// NewLogger builds the process logger from the log section.
func NewLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}

	zcfg := zap.NewProductionConfig()
	if strings.EqualFold(cfg.Log.Format, "console") {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	return zcfg.Build()
}

// NewCollector returns the metrics collector, or nil when metrics are disabled.
func NewCollector(cfg *config.Config) *metrics.Collector {
	if !cfg.Metrics.Enabled {
		return nil
	}
	return metrics.New(cfg.Metrics.Namespace)
}

// Middlewares returns the global middleware chain in execution order.
func Middlewares(cfg *config.Config, logger *zap.Logger) []common.Middleware {
	chain := []common.Middleware{
		middleware.ClientIPMiddleware(middleware.DefaultIPConfig()),
		middleware.TraceMiddleware(),
		middleware.Logging(logger),
	}

	if cfg.CORS.Enabled {
		chain = append(chain, middleware.CORS(middleware.CORSConfig{
			Origins:          cfg.CORS.Origins,
			Methods:          cfg.CORS.Methods,
			Headers:          cfg.CORS.Headers,
			ExposedHeaders:   cfg.CORS.ExposedHeaders,
			AllowCredentials: cfg.CORS.AllowCredentials,
			MaxAge:           time.Duration(cfg.CORS.MaxAgeSeconds) * time.Second,
		}))
	}

	if cfg.RateLimit.Enabled {
		var limiter middleware.RateLimiter = middleware.NewTokenBucketLimiter()
		if cfg.RateLimit.Limiter == "pacing" {
			limiter = middleware.NewPacingLimiter()
		}
		chain = append(chain, middleware.RateLimit(&middleware.RateLimitConfig{
			BucketName: "global",
			Limit:      cfg.RateLimit.Limit,
			Window:     cfg.RateLimit.Window(),
			Strategy:   middleware.StrategyIP,
		}, limiter, logger))
	}

	chain = append(chain,
		middleware.MaxBodySize(cfg.Server.BodyMaxBytes),
		middleware.Timeout(cfg.Server.RequestTimeout()),
	)

	keys := make(map[string]bool, len(cfg.Auth.APIKeys))
	for _, k := range cfg.Auth.APIKeys {
		keys[k] = true
	}
	chain = append(chain, middleware.NewAPIKeyMiddleware(keys, cfg.Auth.Header, "", logger))

	return chain
}

// NewRouter creates the dispatcher with the demo routes registered.
func NewRouter(cfg *config.Config, logger *zap.Logger, collector *metrics.Collector, v handler.Version) (*router.Router, error) {
	r, err := router.NewRouter(router.RouterConfig{
		Logger:        logger,
		Middlewares:   Middlewares(cfg, logger),
		Metrics:       collector,
		EnableTraceID: true,
		Debug:         cfg.Debug,
	})
	if err != nil {
		return nil, err
	}

	err = handler.RegisterRoutes(r,
		handler.NewHealthHandler(v),
		handler.NewEchoHandler(),
		handler.NewUsersHandler(handler.NewUserStore(), logger),
	)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// NewHandler mounts the metrics endpoint next to the router and optionally enables h2c.
func NewHandler(cfg *config.Config, r *router.Router, collector *metrics.Collector) http.Handler {
	var h http.Handler = r
	if collector != nil {
		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, collector.Handler())
		mux.Handle("/", r)
		h = mux
	}
	if cfg.Server.H2C {
		h = h2c.NewHandler(h, &http2.Server{})
	}
	return h
}

// NewHTTPServer creates the listening server.
func NewHTTPServer(cfg *config.Config, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
