package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/sudhakar086/nasa-python-sgp4/internal/httputil"
)

// Config holds authentication configuration.
type Config struct {
	Enabled bool
	Token   string
}

// exemptPaths are always public regardless of auth configuration: probes,
// metrics, the static frontend and the built-in propagation service.
var exemptPaths = map[string]bool{
	"/healthz":     true,
	"/readyz":      true,
	"/metrics":     true,
	"/":            true,
	"/index.html":  true,
	"/app.js":      true,
	"/styles.css":  true,
	"/favicon.ico": true,
	"/calculate":   true,
}

// Middleware returns an HTTP middleware that enforces the shared token on
// non-exempt paths when auth is enabled. The token is read from a Bearer
// Authorization header, or from the token query parameter on event streams,
// which browsers open without custom headers.
func Middleware(cfg Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.Enabled || exemptPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			token, ok := requestToken(r)
			if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(cfg.Token)) != 1 {
				httputil.WriteError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func requestToken(r *http.Request) (string, bool) {
	if header := r.Header.Get("Authorization"); header != "" {
		return strings.CutPrefix(header, "Bearer ")
	}
	if r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/events") {
		if t := r.URL.Query().Get("token"); t != "" {
			return t, true
		}
	}
	return "", false
}
