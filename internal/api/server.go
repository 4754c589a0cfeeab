package api

import (
	"io/fs"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/sudhakar086/nasa-python-sgp4/internal/auth"
	"github.com/sudhakar086/nasa-python-sgp4/internal/health"
	"github.com/sudhakar086/nasa-python-sgp4/internal/httputil"
	"github.com/sudhakar086/nasa-python-sgp4/internal/metrics"
	"github.com/sudhakar086/nasa-python-sgp4/internal/propagation"
	"github.com/sudhakar086/nasa-python-sgp4/internal/session"
	"github.com/sudhakar086/nasa-python-sgp4/internal/stream"
)

// Config holds the HTTP listener settings.
type Config struct {
	Addr       string
	Auth       auth.Config
	TrustProxy bool // Log X-Forwarded-For as the remote IP.
}

// Deps are the components the server routes to. Propagation may be nil when
// an external propagation service is used.
type Deps struct {
	Sessions    *session.Registry
	Stream      *stream.Handler
	Propagation *propagation.Service
	Readiness   *health.Readiness
	Static      fs.FS
}

// Server holds the HTTP server and its dependencies.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a configured HTTP server.
func NewServer(cfg Config, deps Deps, logger *slog.Logger) *Server {
	handler := NewHandler(cfg, deps, logger)

	return &Server{
		httpServer: &http.Server{
			Addr:              cfg.Addr,
			Handler:           handler,
			ReadTimeout:       10 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		logger: logger,
	}
}

// NewHandler builds the routed handler with its middleware chain.
func NewHandler(cfg Config, deps Deps, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()
	sessions := &sessionHandlers{registry: deps.Sessions, logger: logger}

	mux.HandleFunc("GET /healthz", health.Healthz)
	mux.HandleFunc("GET /readyz", deps.Readiness.Readyz)
	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("POST /api/v1/sessions", sessions.create)
	mux.HandleFunc("GET /api/v1/sessions/{id}", sessions.get)
	mux.HandleFunc("DELETE /api/v1/sessions/{id}", sessions.remove)
	mux.HandleFunc("GET /api/v1/sessions/{id}/events", deps.Stream.HandleEvents)
	mux.HandleFunc("POST /api/v1/sessions/{id}/submit", sessions.submit)
	mux.HandleFunc("POST /api/v1/sessions/{id}/inputs", sessions.edit)
	mux.HandleFunc("POST /api/v1/sessions/{id}/elements", sessions.save)
	mux.HandleFunc("POST /api/v1/sessions/{id}/elements/open", sessions.openList)
	mux.HandleFunc("POST /api/v1/sessions/{id}/elements/close", sessions.closeList)
	mux.HandleFunc("POST /api/v1/sessions/{id}/elements/{rid}/load", sessions.load)
	mux.HandleFunc("DELETE /api/v1/sessions/{id}/elements/{rid}", sessions.delete)
	mux.HandleFunc("POST /api/v1/sessions/{id}/alert/ack", sessions.ackAlert)

	if deps.Propagation != nil {
		mux.HandleFunc("POST /calculate", deps.Propagation.HandleCalculate)
	}
	if deps.Static != nil {
		mux.Handle("GET /", http.FileServerFS(deps.Static))
	}

	// Build middleware chain: metrics -> logging -> auth -> mux.
	var handler http.Handler = mux
	handler = auth.Middleware(cfg.Auth)(handler)
	handler = loggingMiddleware(logger, cfg.TrustProxy)(handler)
	handler = metrics.Middleware(handler)
	return handler
}

// HTTPServer returns the underlying *http.Server for external control (e.g. shutdown).
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// probePath reports paths that are logged at DEBUG instead of INFO.
func probePath(path string) bool {
	return path == "/healthz" || path == "/readyz" || path == "/metrics"
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (sr *statusRecorder) Unwrap() http.ResponseWriter {
	return sr.ResponseWriter
}

func loggingMiddleware(logger *slog.Logger, trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(sr, r)

			level := slog.LevelInfo
			if probePath(r.URL.Path) {
				level = slog.LevelDebug
			}

			logger.Log(r.Context(), level, "request",
				"component", "api",
				"method", r.Method,
				"path", r.URL.Path,
				"status", strconv.Itoa(sr.statusCode),
				"duration_ms", time.Since(start).Milliseconds(),
				"remote_ip", httputil.ClientIP(r, trustProxy),
			)
		})
	}
}
