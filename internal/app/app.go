// Package app wires the bridge together: config in, upstream lifecycle,
// routing and the HTTP server out.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/xregistry/bridge/internal/adapter/consolidate"
	"github.com/xregistry/bridge/internal/adapter/lifecycle"
	"github.com/xregistry/bridge/internal/adapter/probe"
	"github.com/xregistry/bridge/internal/adapter/proxy"
	"github.com/xregistry/bridge/internal/adapter/registry"
	"github.com/xregistry/bridge/internal/adapter/stats"
	"github.com/xregistry/bridge/internal/app/handlers"
	"github.com/xregistry/bridge/internal/config"
	"github.com/xregistry/bridge/internal/logger"
)

// reservedPaths are first path segments the bridge serves itself. An
// upstream group type may never shadow one.
var reservedPaths = []string{
	"", "model", "capabilities", "registries", "health", "status", "version", "metrics",
}

// Application owns every component of the bridge and runs the HTTP server.
type Application struct {
	cfg    *config.Config
	logger *logger.StyledLogger

	registry     *registry.UpstreamRepository
	consolidator *consolidate.Service
	loop         *lifecycle.Loop
	proxy        *proxy.Service
	stats        *stats.Collector
	handlers     *handlers.Handlers

	server *http.Server
}

func New(cfg *config.Config, lgr *logger.StyledLogger) *Application {
	startedAt := time.Now().UTC().Format(time.RFC3339)

	collector := stats.NewCollector(prometheus.DefaultRegisterer)
	repo := registry.NewUpstreamRepository(cfg.Downstreams.Servers)
	consolidator := consolidate.New(reservedPaths, startedAt, lgr)
	prober := probe.NewHTTPProber(cfg.Lifecycle.ProbeTimeout, lgr)
	loop := lifecycle.NewLoop(cfg.Lifecycle, prober, repo, consolidator, collector, lgr)
	proxySvc := proxy.NewService(cfg.Bridge, collector, lgr)
	hdl := handlers.New(cfg, consolidator, repo, prober, collector, lgr)

	a := &Application{
		cfg:          cfg,
		logger:       lgr,
		registry:     repo,
		consolidator: consolidator,
		loop:         loop,
		proxy:        proxySvc,
		stats:        collector,
		handlers:     hdl,
	}

	a.server = &http.Server{
		Addr:         cfg.Server.GetAddress(),
		Handler:      a.routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return a
}

// Run probes the configured upstreams, binds the listener once the first
// consolidated view is published, and serves until the context ends.
func (a *Application) Run(ctx context.Context) error {
	a.logger.InfoWithCount("Configured upstream registries", len(a.cfg.Downstreams.Servers))

	if err := a.loop.Start(ctx); err != nil {
		return fmt.Errorf("lifecycle startup: %w", err)
	}

	serverErr := make(chan error, 1)
	go func() {
		a.logger.Info("Bridge listening", "address", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	a.logger.Info("Shutting down", "timeout", a.cfg.Server.ShutdownTimeout)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("Shutdown did not complete cleanly", "error", err)
	}

	a.loop.Wait()
	return nil
}

// metricsHandler exposes the Prometheus registry.
func metricsHandler() http.Handler {
	return promhttp.Handler()
}
