// Package stream pushes page snapshots to browsers over Server-Sent Events.
// Clients connect via GET /api/v1/sessions/{id}/events.
//
// SSE message format:
//
//	data: {"type":"page","version":7,"inputs":{...},"scene":{...},...}\n\n
//
// The first message on every connection is the current snapshot, so a
// reconnecting client resynchronises without a separate fetch. When the page
// is closed a final {"type":"closed"} message is sent. Keep-alive comments
// (:\n\n) are sent every KeepaliveInterval of silence.
package stream

import (
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"time"

	"github.com/sudhakar086/nasa-python-sgp4/internal/httputil"
	"github.com/sudhakar086/nasa-python-sgp4/internal/metrics"
	"github.com/sudhakar086/nasa-python-sgp4/internal/session"
)

// Config holds streaming configuration loaded from environment variables.
type Config struct {
	MaxConcurrentPerIP int           // Max concurrent streams per IP (default: 10).
	MaxTotal           int           // Max concurrent streams overall (default: 1000).
	KeepaliveInterval  time.Duration // Keep-alive ping interval (default: 30s).
	TrustProxy         bool          // Take the client IP from X-Forwarded-For.
}

// Pages is a source of page snapshots. *session.Controller implements it.
type Pages interface {
	Snapshot() session.Page
	Subscribe() (<-chan session.Page, func())
}

// Lookup resolves a session id to its page source.
type Lookup func(id string) (Pages, bool)

// Handler manages SSE streaming connections.
type Handler struct {
	lookup  Lookup
	config  Config
	limiter *streamLimiter
	logger  *slog.Logger
}

// NewHandler creates a new streaming handler.
func NewHandler(lookup Lookup, config Config, logger *slog.Logger) *Handler {
	if config.KeepaliveInterval <= 0 {
		config.KeepaliveInterval = 30 * time.Second
	}
	return &Handler{
		lookup:  lookup,
		config:  config,
		limiter: newStreamLimiter(config.MaxConcurrentPerIP, config.MaxTotal),
		logger:  logger,
	}
}

type pageMessage struct {
	Type string `json:"type"`
	session.Page
}

type closedMessage struct {
	Type string `json:"type"`
}

// HandleEvents serves the SSE page stream for one session.
// GET /api/v1/sessions/{id}/events
func (h *Handler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	pages, ok := h.lookup(id)
	if !ok {
		httputil.WriteError(w, http.StatusNotFound, "session not found")
		return
	}

	ip := httputil.ClientIP(r, h.config.TrustProxy)
	if !h.limiter.acquire(ip) {
		metrics.IncStreamErrors("rate_limit")
		h.logger.Warn("stream rate limit exceeded",
			"component", "stream",
			"remote_ip", ip,
			"current_count", h.limiter.count(ip),
		)
		w.Header().Set("Retry-After", "30")
		httputil.WriteError(w, http.StatusTooManyRequests, "too many concurrent streams")
		return
	}

	metrics.IncStreamConnections("connect")
	metrics.IncStreamsActive()

	startTime := time.Now()
	h.logger.Info("stream connected",
		"component", "stream",
		"session", id,
		"remote_ip", ip,
		"user_agent", r.Header.Get("User-Agent"),
	)

	defer func() {
		h.limiter.release(ip)
		metrics.IncStreamConnections("disconnect")
		metrics.DecStreamsActive()
		h.logger.Info("stream disconnected",
			"component", "stream",
			"session", id,
			"remote_ip", ip,
			"duration_seconds", int(time.Since(startTime).Seconds()),
		)
	}()

	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.WriteError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	// Subscribe before taking the snapshot so nothing published in between
	// is lost.
	updates, unsubscribe := pages.Subscribe()
	defer unsubscribe()
	current := pages.Snapshot()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering.
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// The server's WriteTimeout would cut long-lived streams; deadlines are
	// extended per write instead.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		h.logger.Debug("could not clear write deadline", "component", "stream", "error", err)
	}

	c := &client{
		w:       w,
		flusher: flusher,
		rc:      rc,
		logger:  h.logger,
	}

	// Jittered retry (3-7s) spreads reconnects after a restart.
	fmt.Fprintf(w, "retry: %d\n\n", 3000+rand.Intn(4000))
	flusher.Flush()

	if err := c.sendJSON(pageMessage{Type: "page", Page: current}); err != nil {
		metrics.IncStreamErrors("send_error")
		h.logger.Warn("stream send error (snapshot)", "component", "stream", "remote_ip", ip, "error", err)
		return
	}
	lastSent := current.Version

	keepalive := time.NewTicker(h.config.KeepaliveInterval)
	defer keepalive.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return

		case page, ok := <-updates:
			if !ok {
				if err := c.sendJSON(closedMessage{Type: "closed"}); err != nil {
					metrics.IncStreamErrors("send_error")
				}
				return
			}
			if page.Version <= lastSent {
				continue
			}
			if err := c.sendJSON(pageMessage{Type: "page", Page: page}); err != nil {
				metrics.IncStreamErrors("send_error")
				h.logger.Warn("stream send error", "component", "stream", "remote_ip", ip, "error", err)
				return
			}
			lastSent = page.Version
			keepalive.Reset(h.config.KeepaliveInterval)

		case <-keepalive.C:
			if err := c.sendKeepalive(); err != nil {
				metrics.IncStreamErrors("send_error")
				h.logger.Warn("stream keepalive error", "component", "stream", "remote_ip", ip, "error", err)
				return
			}
		}
	}
}
