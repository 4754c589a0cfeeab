package main

import (
	"errors"
	"log/slog"
	"net"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/sudhakar086/nasa-python-sgp4/internal/auth"
	"github.com/sudhakar086/nasa-python-sgp4/internal/calc"
	"github.com/sudhakar086/nasa-python-sgp4/internal/propagation"
	"github.com/sudhakar086/nasa-python-sgp4/internal/stream"
	"github.com/sudhakar086/nasa-python-sgp4/internal/tle"
)

const envPrefix = "GROUNDTRACK_"

func env(name string) string {
	return os.Getenv(envPrefix + name)
}

// envInt reads a positive integer, warning and keeping def on bad values.
func envInt(logger *slog.Logger, name string, def int) int {
	v := env(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		logger.Warn("invalid "+envPrefix+name+" value, using default", "value", v, "default", def)
		return def
	}
	return n
}

// envSeconds reads a positive whole number of seconds.
func envSeconds(logger *slog.Logger, name string, def time.Duration) time.Duration {
	return time.Duration(envInt(logger, name, int(def/time.Second))) * time.Second
}

func envBool(logger *slog.Logger, name string, def bool) bool {
	v := env(name)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		logger.Warn("invalid "+envPrefix+name+" value, using default", "value", v, "default", def)
		return def
	}
	return b
}

func loadAuthConfig(logger *slog.Logger) (auth.Config, error) {
	cfg := auth.Config{}

	if v := env("AUTH_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return cfg, errors.New(envPrefix + "AUTH_ENABLED must be a boolean value (true/false/1/0)")
		}
		cfg.Enabled = enabled
	}

	if cfg.Enabled {
		cfg.Token = env("AUTH_TOKEN")
		if cfg.Token == "" {
			return cfg, errors.New(envPrefix + "AUTH_TOKEN is required when auth is enabled")
		}
		logger.Info("auth enabled")
	}

	return cfg, nil
}

// serviceConfig locates the propagation and element services.
type serviceConfig struct {
	PropagationURL string // empty: serve /calculate in-process
	ElementsURL    string // empty: saved elements disabled
	RequestTimeout time.Duration
	MaxSessions    int
}

func loadServiceConfig(logger *slog.Logger) serviceConfig {
	cfg := serviceConfig{
		PropagationURL: strings.TrimSpace(env("PROPAGATION_URL")),
		ElementsURL:    strings.TrimSpace(env("ELEMENTS_URL")),
		RequestTimeout: envSeconds(logger, "REQUEST_TIMEOUT", 15*time.Second),
		MaxSessions:    envInt(logger, "MAX_SESSIONS", 256),
	}

	logger.Info("service config",
		"propagation_url", cfg.PropagationURL,
		"elements_url", cfg.ElementsURL,
		"request_timeout_seconds", cfg.RequestTimeout.Seconds(),
		"max_sessions", cfg.MaxSessions,
	)
	return cfg
}

func loadDisplayConfig(logger *slog.Logger) calc.Display {
	cfg := calc.Display{
		Location: time.Local,
		Layout:   calc.DefaultLayout,
		Velocity: calc.VelocityAxes,
	}

	if v := env("DISPLAY_TZ"); v != "" {
		loc, err := time.LoadLocation(v)
		if err != nil {
			logger.Warn("invalid "+envPrefix+"DISPLAY_TZ value, using local time", "value", v, "error", err)
		} else {
			cfg.Location = loc
		}
	}

	if v := env("DISPLAY_LAYOUT"); v != "" {
		cfg.Layout = v
	}

	if v := env("VELOCITY_MODE"); v != "" {
		mode, err := calc.ParseVelocityMode(v)
		if err != nil {
			logger.Warn("invalid "+envPrefix+"VELOCITY_MODE value, using default", "value", v, "default", cfg.Velocity)
		} else {
			cfg.Velocity = mode
		}
	}

	logger.Info("display config",
		"timezone", cfg.Location.String(),
		"layout", cfg.Layout,
		"velocity_mode", cfg.Velocity,
	)
	return cfg
}

func loadPropConfig(logger *slog.Logger) propagation.Config {
	cfg := propagation.Config{
		Workers: envInt(logger, "PROP_WORKERS", runtime.NumCPU()),
		Span:    envSeconds(logger, "TRACK_SPAN", 90*time.Minute),
		Step:    envSeconds(logger, "TRACK_STEP", time.Minute),
	}

	if cfg.Step > cfg.Span {
		logger.Warn("track step exceeds span, no track will be sampled",
			"step_seconds", cfg.Step.Seconds(),
			"span_seconds", cfg.Span.Seconds(),
		)
	}

	logger.Info("propagation config",
		"workers", cfg.Workers,
		"span_seconds", cfg.Span.Seconds(),
		"step_seconds", cfg.Step.Seconds(),
	)
	return cfg
}

func loadStreamConfig(logger *slog.Logger) stream.Config {
	cfg := stream.Config{
		MaxConcurrentPerIP: envInt(logger, "STREAM_MAX_CONCURRENT", 10),
		MaxTotal:           1000,
		KeepaliveInterval:  envSeconds(logger, "STREAM_KEEPALIVE_INTERVAL", 30*time.Second),
		TrustProxy:         envBool(logger, "TRUST_PROXY", false),
	}

	logger.Info("stream config",
		"max_concurrent_per_ip", cfg.MaxConcurrentPerIP,
		"keepalive_interval_seconds", cfg.KeepaliveInterval.Seconds(),
		"trust_proxy", cfg.TrustProxy,
	)
	return cfg
}

// tleConfig controls the catalogue the default element set comes from.
type tleConfig struct {
	EnableFetch     bool
	SourceURL       string
	ExtraSourceURLs []string
	CacheDir        string
	MaxFiles        int
	RefreshInterval time.Duration
	DefaultNORAD    int
}

func loadTLEConfig(logger *slog.Logger) tleConfig {
	cfg := tleConfig{
		EnableFetch:     envBool(logger, "ENABLE_TLE_FETCH", true),
		SourceURL:       env("TLE_SOURCE_URL"),
		CacheDir:        "/tmp/groundtrack/tle",
		MaxFiles:        5,
		RefreshInterval: envSeconds(logger, "TLE_REFRESH_INTERVAL", 6*time.Hour),
		DefaultNORAD:    envInt(logger, "DEFAULT_NORAD", tle.DefaultNORADID),
	}

	if v := env("TLE_EXTRA_URLS"); v != "" {
		for _, u := range strings.Split(v, ",") {
			if u = strings.TrimSpace(u); u != "" {
				cfg.ExtraSourceURLs = append(cfg.ExtraSourceURLs, u)
			}
		}
	}

	if v := env("TLE_CACHE_DIR"); v != "" {
		cfg.CacheDir = v
	}

	logger.Info("TLE config",
		"fetch_enabled", cfg.EnableFetch,
		"source_url", cfg.SourceURL,
		"extra_urls", cfg.ExtraSourceURLs,
		"cache_dir", cfg.CacheDir,
		"refresh_interval_seconds", cfg.RefreshInterval.Seconds(),
		"default_norad", cfg.DefaultNORAD,
	)
	return cfg
}

// localURL turns a listen address into a loopback URL for in-process calls.
func localURL(addr, path string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://" + addr + path
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port) + path
}
