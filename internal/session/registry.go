package session

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/sudhakar086/nasa-python-sgp4/internal/metrics"
)

// Registry holds the live page controllers, keyed by session id. When full,
// the least recently used session is stopped to make room.
type Registry struct {
	sessions *lru.Cache[string, *Controller]
	opts     Options
	defaults func() Inputs
	logger   *slog.Logger
}

// NewRegistry creates a registry of at most size sessions. defaults supplies
// the initial form inputs of each new page.
func NewRegistry(size int, opts Options, defaults func() Inputs) (*Registry, error) {
	r := &Registry{
		opts:     opts,
		defaults: defaults,
		logger:   opts.Logger.With("component", "registry"),
	}

	sessions, err := lru.NewWithEvict(size, func(id string, c *Controller) {
		c.Stop()
		r.logger.Debug("session stopped", "session", id)
	})
	if err != nil {
		return nil, fmt.Errorf("creating session cache: %w", err)
	}
	r.sessions = sessions
	return r, nil
}

// Create starts a controller for a new page and returns its id.
func (r *Registry) Create() (string, *Controller) {
	id := uuid.NewString()

	opts := r.opts
	opts.Logger = r.opts.Logger.With("session", id)
	c := NewController(opts, r.defaults())

	r.sessions.Add(id, c)
	metrics.SetSessionsActive(r.sessions.Len())
	r.logger.Info("session created", "session", id, "active", r.sessions.Len())
	return id, c
}

// Get returns the controller for id and marks it recently used.
func (r *Registry) Get(id string) (*Controller, bool) {
	return r.sessions.Get(id)
}

// Remove stops and forgets the session. It reports whether it existed.
func (r *Registry) Remove(id string) bool {
	ok := r.sessions.Remove(id)
	metrics.SetSessionsActive(r.sessions.Len())
	return ok
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	return r.sessions.Len()
}

// Close stops every session.
func (r *Registry) Close() {
	r.sessions.Purge()
	metrics.SetSessionsActive(0)
}
