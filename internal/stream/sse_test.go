package stream

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sudhakar086/nasa-python-sgp4/internal/calc"
	"github.com/sudhakar086/nasa-python-sgp4/internal/session"
	"github.com/sudhakar086/nasa-python-sgp4/internal/track"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
}

// fakePages serves a fixed snapshot and lets the test push updates.
type fakePages struct {
	current session.Page
	updates chan session.Page
}

func newFakePages(version uint64) *fakePages {
	return &fakePages{
		current: session.Page{Version: version, Inputs: session.Inputs{Line1: "a", Line2: "b"}},
		updates: make(chan session.Page, 4),
	}
}

func (f *fakePages) Snapshot() session.Page { return f.current }

func (f *fakePages) Subscribe() (<-chan session.Page, func()) {
	return f.updates, func() {}
}

func newTestServer(t *testing.T, cfg Config, sessions map[string]Pages) *httptest.Server {
	t.Helper()
	h := NewHandler(func(id string) (Pages, bool) {
		p, ok := sessions[id]
		return p, ok
	}, cfg, testLogger())

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/sessions/{id}/events", h.HandleEvents)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// openStream connects and returns a reader positioned at the first frame.
func openStream(t *testing.T, url string) (*http.Response, *bufio.Reader) {
	t.Helper()
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp, bufio.NewReader(resp.Body)
}

// nextData returns the next "data:" payload, skipping retry, comment and
// blank lines.
func nextData(t *testing.T, br *bufio.Reader) map[string]any {
	t.Helper()
	for {
		line, err := br.ReadString('\n')
		if err != nil {
			t.Fatalf("reading stream: %v", err)
		}
		line = strings.TrimRight(line, "\n")
		payload, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			if line != "" && line != ":" && !strings.HasPrefix(line, "retry: ") {
				t.Fatalf("unexpected SSE line: %q", line)
			}
			continue
		}
		var msg map[string]any
		if err := json.Unmarshal([]byte(payload), &msg); err != nil {
			t.Fatalf("invalid JSON in SSE data line: %v", err)
		}
		return msg
	}
}

func TestStreamSnapshotThenUpdates(t *testing.T) {
	pages := newFakePages(2)
	srv := newTestServer(t, Config{MaxConcurrentPerIP: 10, KeepaliveInterval: time.Minute}, map[string]Pages{"s1": pages})

	resp, br := openStream(t, srv.URL+"/api/v1/sessions/s1/events")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", ct)
	}
	if cc := resp.Header.Get("Cache-Control"); cc != "no-cache" {
		t.Errorf("Cache-Control = %q, want no-cache", cc)
	}

	first := nextData(t, br)
	if first["type"] != "page" || first["version"] != float64(2) {
		t.Fatalf("first message = %v", first)
	}
	inputs, _ := first["inputs"].(map[string]any)
	if inputs["line1"] != "a" {
		t.Errorf("inputs = %v", first["inputs"])
	}

	// A page no newer than the snapshot is not resent.
	pages.updates <- session.Page{Version: 2}
	pages.updates <- session.Page{Version: 3}
	if msg := nextData(t, br); msg["version"] != float64(3) {
		t.Errorf("next message version = %v, want 3", msg["version"])
	}

	close(pages.updates)
	if msg := nextData(t, br); msg["type"] != "closed" {
		t.Errorf("final message = %v, want closed", msg)
	}
}

func TestStreamKeepalive(t *testing.T) {
	srv := newTestServer(t, Config{KeepaliveInterval: 20 * time.Millisecond}, map[string]Pages{"s1": newFakePages(1)})

	_, br := openStream(t, srv.URL+"/api/v1/sessions/s1/events")
	nextData(t, br)

	for {
		line, err := br.ReadString('\n')
		if err != nil {
			t.Fatalf("reading stream: %v", err)
		}
		if line == ":\n" {
			return
		}
	}
}

func TestStreamUnknownSession(t *testing.T) {
	srv := newTestServer(t, Config{}, map[string]Pages{})

	resp, err := http.Get(srv.URL + "/api/v1/sessions/nope/events")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
	var body map[string]string
	json.NewDecoder(resp.Body).Decode(&body)
	if body["error"] != "session not found" {
		t.Errorf("error = %q", body["error"])
	}
}

func TestRateLimitHTTPResponse(t *testing.T) {
	srv := newTestServer(t, Config{MaxConcurrentPerIP: 1, KeepaliveInterval: time.Minute}, map[string]Pages{"s1": newFakePages(1)})

	// Hold the first stream open until its snapshot has arrived.
	_, br := openStream(t, srv.URL+"/api/v1/sessions/s1/events")
	nextData(t, br)

	resp, err := http.Get(srv.URL + "/api/v1/sessions/s1/events")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusTooManyRequests {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusTooManyRequests)
	}
	if resp.Header.Get("Retry-After") == "" {
		t.Error("missing Retry-After header")
	}
}

// TestStreamFollowsController streams a real page through its page-load
// calculation.
func TestStreamFollowsController(t *testing.T) {
	lat, lon, alt := 10.0, 20.0, 400.0
	calculator := calcFunc(func(ctx context.Context, line1, line2 string) (*calc.Result, error) {
		return &calc.Result{
			Lat: &lat, Lon: &lon, Alt: &alt,
			Timestamp: "2024-04-09T12:00:00Z",
			PastPath:  []track.GeoPoint{{Lat: 9, Lon: 19}},
			Path:      []track.GeoPoint{{Lat: 11, Lon: 21}},
		}, nil
	})
	ctrl := session.NewController(session.Options{
		Calculator: calculator,
		Display:    calc.Display{Location: time.UTC},
		Logger:     testLogger(),
	}, session.Inputs{Line1: "l1", Line2: "l2"})
	t.Cleanup(ctrl.Stop)

	srv := newTestServer(t, Config{KeepaliveInterval: time.Minute}, map[string]Pages{"s1": ctrl})
	_, br := openStream(t, srv.URL+"/api/v1/sessions/s1/events")

	for {
		msg := nextData(t, br)
		if msg["show_results"] == true {
			readouts, _ := msg["readouts"].(map[string]any)
			if readouts["pos_x"] == nil {
				t.Errorf("readouts = %v", msg["readouts"])
			}
			break
		}
	}

	ctrl.Stop()
	for {
		if msg := nextData(t, br); msg["type"] == "closed" {
			return
		}
	}
}

type calcFunc func(ctx context.Context, line1, line2 string) (*calc.Result, error)

func (f calcFunc) Calculate(ctx context.Context, line1, line2 string) (*calc.Result, error) {
	return f(ctx, line1, line2)
}

func TestRateLimiting(t *testing.T) {
	limiter := newStreamLimiter(3, 0)

	for i := 0; i < 3; i++ {
		if !limiter.acquire("10.0.0.1") {
			t.Fatalf("acquire %d should succeed", i+1)
		}
	}
	if limiter.acquire("10.0.0.1") {
		t.Error("acquire beyond limit should fail")
	}
	if !limiter.acquire("10.0.0.2") {
		t.Error("different IP should not be rate limited")
	}

	limiter.release("10.0.0.1")
	if !limiter.acquire("10.0.0.1") {
		t.Error("acquire after release should succeed")
	}

	if c := limiter.count("10.0.0.1"); c != 3 {
		t.Errorf("count = %d, want 3", c)
	}
	if c := limiter.count("10.0.0.2"); c != 1 {
		t.Errorf("count = %d, want 1", c)
	}
}

func TestRateLimitingGlobalCap(t *testing.T) {
	limiter := newStreamLimiter(5, 2)
	if !limiter.acquire("a") || !limiter.acquire("b") {
		t.Fatal("acquire under cap should succeed")
	}
	if limiter.acquire("c") {
		t.Error("acquire beyond global cap should fail")
	}
	limiter.release("a")
	if !limiter.acquire("c") {
		t.Error("acquire after release should succeed")
	}
}

func TestRateLimitingConcurrent(t *testing.T) {
	limiter := newStreamLimiter(100, 0)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if limiter.acquire("10.0.0.1") {
				defer limiter.release("10.0.0.1")
				time.Sleep(10 * time.Millisecond)
			}
		}()
	}
	wg.Wait()

	if c := limiter.count("10.0.0.1"); c != 0 {
		t.Errorf("count after all released = %d, want 0", c)
	}
}
