package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"golang.org/x/sync/errgroup"

	"github.com/sudhakar086/nasa-python-sgp4/internal/api"
	"github.com/sudhakar086/nasa-python-sgp4/internal/calc"
	"github.com/sudhakar086/nasa-python-sgp4/internal/elements"
	"github.com/sudhakar086/nasa-python-sgp4/internal/health"
	"github.com/sudhakar086/nasa-python-sgp4/internal/logging"
	"github.com/sudhakar086/nasa-python-sgp4/internal/propagation"
	"github.com/sudhakar086/nasa-python-sgp4/internal/session"
	"github.com/sudhakar086/nasa-python-sgp4/internal/stream"
	"github.com/sudhakar086/nasa-python-sgp4/internal/tle"
	"github.com/sudhakar086/nasa-python-sgp4/web"
)

func main() {
	logger, logFile := logging.New(logging.Config{
		Level: env("LOG_LEVEL"),
		File:  env("LOG_FILE"),
	})
	defer logFile.Close()

	if err := run(logger); err != nil {
		logger.Error("groundtrack stopped", "error", err)
		logFile.Close()
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func run(logger *slog.Logger) error {
	addr := env("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	authCfg, err := loadAuthConfig(logger)
	if err != nil {
		return err
	}

	// Catalogue for the default element set.
	tleCfg := loadTLEConfig(logger)
	store := tle.NewStore()
	var fetcher *tle.Fetcher
	if tleCfg.EnableFetch {
		fetcher = tle.NewFetcher(tleCfg.SourceURL, logger, tleCfg.ExtraSourceURLs...)
	}
	refresher := tle.NewRefresher(fetcher, tle.NewCache(tleCfg.CacheDir, tleCfg.MaxFiles), store, logger)
	if err := refresher.LoadCache(); err != nil {
		logger.Info("no usable element cache, starting with built-in defaults", "error", err)
	}
	defaults := tle.NewDefaults(store, tleCfg.DefaultNORAD)

	// Propagation: in-process unless an external service is configured.
	svcCfg := loadServiceConfig(logger)
	var propSvc *propagation.Service
	propURL := svcCfg.PropagationURL
	if propURL == "" {
		propSvc = propagation.NewService(loadPropConfig(logger), logger)
		propURL = localURL(addr, "/calculate")
		logger.Info("using built-in propagation service", "url", propURL)
	}

	opts := session.Options{
		Calculator: calc.NewClient(propURL, svcCfg.RequestTimeout),
		Display:    loadDisplayConfig(logger),
		Logger:     logger,
	}
	if svcCfg.ElementsURL != "" {
		opts.Store = elements.NewClient(svcCfg.ElementsURL, svcCfg.RequestTimeout)
	}

	registry, err := session.NewRegistry(svcCfg.MaxSessions, opts, func() session.Inputs {
		_, line1, line2 := defaults.Elements()
		return session.Inputs{Line1: line1, Line2: line2}
	})
	if err != nil {
		return err
	}

	streamHandler := stream.NewHandler(func(id string) (stream.Pages, bool) {
		c, ok := registry.Get(id)
		if !ok {
			return nil, false
		}
		return c, true
	}, loadStreamConfig(logger), logger)

	readiness := health.NewReadiness()
	readiness.Add("default_elements", func(context.Context) error {
		_, line1, line2 := defaults.Elements()
		return propagation.ValidateLines(line1, line2)
	})

	srv := api.NewServer(api.Config{
		Addr:       addr,
		Auth:       authCfg,
		TrustProxy: envBool(logger, "TRUST_PROXY", false),
	}, api.Deps{
		Sessions:    registry,
		Stream:      streamHandler,
		Propagation: propSvc,
		Readiness:   readiness,
		Static:      web.Content,
	}, logger)

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting server", "addr", addr, "auth_enabled", authCfg.Enabled, "tle_fetch_enabled", tleCfg.EnableFetch)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return refresher.Run(gctx, tleCfg.RefreshInterval)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server...")
		readiness.Drain()

		// Stopping the sessions ends their event streams, which Shutdown
		// would otherwise wait on.
		registry.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.HTTPServer().Shutdown(shutdownCtx)
	})

	return g.Wait()
}
