package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/alecthomas/kong"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/Suhaibinator/SDispatch/internal/config"
	"github.com/Suhaibinator/SDispatch/internal/handler"
	"github.com/Suhaibinator/SDispatch/internal/server"
	"github.com/Suhaibinator/SDispatch/pkg/router"
)

// Set by release ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	var cli config.CLI
	kong.Parse(&cli,
		kong.Name("sdispatch"),
		kong.Description("Demo server for the SDispatch request dispatcher."),
		kong.Vars{"version": fmt.Sprintf("%s (%s, %s)", version, commit, date)},
	)

	fx.New(
		fx.WithLogger(func(logger *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: logger}
		}),
		fx.Provide(
			func() *config.CLI { return &cli },
			func() handler.Version { return handler.Version(version) },
			config.Load,
			server.NewLogger,
			server.NewCollector,
			server.NewRouter,
			server.NewHandler,
			server.NewHTTPServer,
		),
		fx.Invoke(logConfig, startServer),
	).Run()
}

func logConfig(cfg *config.Config, logger *zap.Logger) {
	if cfg.FilePath() == "" {
		logger.Info("No config file found, using defaults")
		return
	}
	logger.Info("Loaded config", zap.String("path", cfg.FilePath()))
}

func startServer(lc fx.Lifecycle, srv *http.Server, r *router.Router, cfg *config.Config, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return fmt.Errorf("bind %s: %w", srv.Addr, err)
			}
			logger.Info("Starting server",
				zap.String("addr", srv.Addr),
				zap.Bool("h2c", cfg.Server.H2C),
				zap.Bool("metrics", cfg.Metrics.Enabled),
			)
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("Server error", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("Shutting down server")
			ctx, cancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout())
			defer cancel()

			// Refuse new requests and drain in-flight ones before closing listeners
			if err := r.Shutdown(ctx); err != nil {
				logger.Warn("Router shutdown incomplete", zap.Error(err))
			}
			return srv.Shutdown(ctx)
		},
	})
}
