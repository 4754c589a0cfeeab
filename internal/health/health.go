package health

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Healthz returns 200 "ok\n" unconditionally.
func Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok\n"))
}

// Check reports why a dependency is not usable, or nil.
type Check func(ctx context.Context) error

// Readiness answers /readyz from a set of named checks. It reports not ready
// once draining has started.
type Readiness struct {
	mu       sync.RWMutex
	checks   map[string]Check
	draining atomic.Bool
}

// NewReadiness creates a Readiness with no checks.
func NewReadiness() *Readiness {
	return &Readiness{checks: make(map[string]Check)}
}

// Add registers a named check.
func (rd *Readiness) Add(name string, check Check) {
	rd.mu.Lock()
	defer rd.mu.Unlock()
	rd.checks[name] = check
}

// Drain marks the process as shutting down.
func (rd *Readiness) Drain() {
	rd.draining.Store(true)
}

// Readyz returns 200 "ready\n", or 503 listing the failing checks.
func (rd *Readiness) Readyz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")

	if rd.draining.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("draining\n"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	rd.mu.RLock()
	names := make([]string, 0, len(rd.checks))
	for name := range rd.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	var failed []string
	for _, name := range names {
		if err := rd.checks[name](ctx); err != nil {
			failed = append(failed, name+": "+err.Error())
		}
	}
	rd.mu.RUnlock()

	if len(failed) > 0 {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(strings.Join(failed, "\n") + "\n"))
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ready\n"))
}
