package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/sudhakar086/nasa-python-sgp4/internal/auth"
	"github.com/sudhakar086/nasa-python-sgp4/internal/calc"
	"github.com/sudhakar086/nasa-python-sgp4/internal/elements"
	"github.com/sudhakar086/nasa-python-sgp4/internal/health"
	"github.com/sudhakar086/nasa-python-sgp4/internal/session"
	"github.com/sudhakar086/nasa-python-sgp4/internal/stream"
	"github.com/sudhakar086/nasa-python-sgp4/internal/track"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

// fixedCalculator answers every element set with the same position, except
// line 1 "bad", which the service rejects.
type fixedCalculator struct{}

func (fixedCalculator) Calculate(ctx context.Context, line1, line2 string) (*calc.Result, error) {
	if strings.TrimSpace(line1) == "bad" {
		return nil, &calc.ServiceError{StatusCode: http.StatusBadRequest, Message: "Error in satellite propagation"}
	}
	lat, lon, alt := 51.5, 179.0, 420.0
	return &calc.Result{
		Position:  calc.Vector{X: 1, Y: 2, Z: 3},
		Lat:       &lat,
		Lon:       &lon,
		Alt:       &alt,
		Velocity:  calc.Vector{X: 7, Y: 0, Z: 0},
		Timestamp: "2024-04-09T12:00:00Z",
		PastPath:  []track.GeoPoint{{Lat: 50, Lon: 175}},
		Path:      []track.GeoPoint{{Lat: 52, Lon: -178}},
	}, nil
}

type memStore struct {
	mu      sync.Mutex
	nextID  int
	records []elements.Record
}

func (s *memStore) List(ctx context.Context) ([]elements.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]elements.Record(nil), s.records...), nil
}

func (s *memStore) Save(ctx context.Context, name, line1, line2 string) (elements.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	rec := elements.Record{ID: s.nextID, Name: name, Line1: line1, Line2: line2}
	s.records = append(s.records, rec)
	return rec, nil
}

func (s *memStore) Delete(ctx context.Context, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range s.records {
		if r.ID == id {
			s.records = append(s.records[:i], s.records[i+1:]...)
			return nil
		}
	}
	return &elements.StoreError{StatusCode: http.StatusNotFound, Message: "not found"}
}

func newTestServer(t *testing.T, authCfg auth.Config, store session.Store) *httptest.Server {
	t.Helper()
	logger := testLogger()

	opts := session.Options{
		Calculator: fixedCalculator{},
		Display:    calc.Display{Location: time.UTC},
		Logger:     logger,
	}
	if store != nil {
		opts.Store = store
	}
	registry, err := session.NewRegistry(8, opts, func() session.Inputs {
		return session.Inputs{Line1: "1 default", Line2: "2 default"}
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(registry.Close)

	streams := stream.NewHandler(func(id string) (stream.Pages, bool) {
		c, ok := registry.Get(id)
		if !ok {
			return nil, false
		}
		return c, true
	}, stream.Config{KeepaliveInterval: time.Minute}, logger)

	handler := NewHandler(Config{Auth: authCfg}, Deps{
		Sessions:  registry,
		Stream:    streams,
		Readiness: health.NewReadiness(),
		Static:    fstest.MapFS{"index.html": {Data: []byte("<title>groundtrack</title>")}},
	}, logger)

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url, body string) (*http.Response, []byte) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, r)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp, data
}

func decodePage(t *testing.T, data []byte) session.Page {
	t.Helper()
	var p session.Page
	if err := json.Unmarshal(data, &p); err != nil {
		t.Fatalf("decoding page %s: %v", data, err)
	}
	return p
}

func createSession(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	resp, data := do(t, "POST", srv.URL+"/api/v1/sessions", "")
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: status %d %s", resp.StatusCode, data)
	}
	var created struct {
		ID   string       `json:"id"`
		Page session.Page `json:"page"`
	}
	if err := json.Unmarshal(data, &created); err != nil {
		t.Fatal(err)
	}
	if created.ID == "" || created.Page.Inputs.Line1 != "1 default" {
		t.Fatalf("create response = %s", data)
	}
	return created.ID
}

// waitPage polls the session until cond holds.
func waitPage(t *testing.T, url string, cond func(session.Page) bool) session.Page {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		resp, data := do(t, "GET", url, "")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("GET %s: status %d %s", url, resp.StatusCode, data)
		}
		p := decodePage(t, data)
		if cond(p) {
			return p
		}
		if time.Now().After(deadline) {
			t.Fatalf("page never reached the expected state: %s", data)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestSessionPageLoad(t *testing.T) {
	srv := newTestServer(t, auth.Config{}, nil)
	id := createSession(t, srv)
	url := srv.URL + "/api/v1/sessions/" + id

	p := waitPage(t, url, func(p session.Page) bool { return p.ShowResults })
	if p.Readouts == nil || p.Readouts.PosX != "1.00" || p.Readouts.VelX != "7.000000" {
		t.Errorf("readouts = %+v", p.Readouts)
	}
	if p.Scene.Marker == nil {
		t.Error("marker not placed")
	}
	if p.Scene.Tracks == nil || len(p.Scene.Tracks.Features) == 0 {
		t.Error("no track features")
	}

	resp, data := do(t, "POST", url+"/submit", `{"line1":"bad","line2":"2 x"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("submit: %d %s", resp.StatusCode, data)
	}
	if p := decodePage(t, data); !p.Pending || p.Inputs.Line1 != "bad" {
		t.Errorf("submit response = %s", data)
	}

	p = waitPage(t, url, func(p session.Page) bool { return !p.Pending })
	if p.Error != "Error in satellite propagation" || p.ShowResults {
		t.Errorf("failed submit: error %q, show_results %v", p.Error, p.ShowResults)
	}
	if p.Scene.Marker == nil {
		t.Error("failure cleared the previous plot")
	}
}

func TestSessionInputs(t *testing.T) {
	srv := newTestServer(t, auth.Config{}, nil)
	url := srv.URL + "/api/v1/sessions/" + createSession(t, srv)

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"line 1", `{"field":"line1","value":"1 edited"}`, http.StatusOK},
		{"unknown field", `{"field":"name","value":"x"}`, http.StatusBadRequest},
		{"not JSON", `field=line1`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, data := do(t, "POST", url+"/inputs", tt.body)
			if resp.StatusCode != tt.status {
				t.Errorf("status = %d, want %d: %s", resp.StatusCode, tt.status, data)
			}
		})
	}

	_, data := do(t, "GET", url, "")
	if p := decodePage(t, data); p.Inputs.Line1 != "1 edited" || p.LoadedID != nil {
		t.Errorf("page after edit = %s", data)
	}
}

func TestSavedElementsFlow(t *testing.T) {
	store := &memStore{}
	srv := newTestServer(t, auth.Config{}, store)
	url := srv.URL + "/api/v1/sessions/" + createSession(t, srv)

	resp, data := do(t, "POST", url+"/elements", `{"name":"ISS"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("save: %d %s", resp.StatusCode, data)
	}
	p := waitPage(t, url, func(p session.Page) bool { return p.LoadedID != nil })
	if *p.LoadedID != 1 {
		t.Errorf("loaded id = %d, want 1", *p.LoadedID)
	}

	do(t, "POST", url+"/elements/open", "")
	p = waitPage(t, url, func(p session.Page) bool { return p.List.Open && !p.List.Loading })
	if len(p.List.Records) != 1 || p.List.Records[0].Name != "ISS" {
		t.Fatalf("list = %+v", p.List)
	}

	if resp, _ := do(t, "POST", url+"/elements/99/load", ""); resp.StatusCode != http.StatusNotFound {
		t.Errorf("load unknown record: status %d, want 404", resp.StatusCode)
	}
	if resp, _ := do(t, "POST", url+"/elements/abc/load", ""); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("load bad id: status %d, want 400", resp.StatusCode)
	}

	resp, data = do(t, "POST", url+"/elements/1/load", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("load: %d %s", resp.StatusCode, data)
	}
	if p := decodePage(t, data); p.List.Open || p.Inputs.Line1 != "1 default" {
		t.Errorf("page after load = %s", data)
	}

	resp, _ = do(t, "DELETE", url+"/elements/1", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete: status %d", resp.StatusCode)
	}
	waitPage(t, url, func(p session.Page) bool { return p.LoadedID == nil })
	if recs, _ := store.List(context.Background()); len(recs) != 0 {
		t.Errorf("store still holds %v", recs)
	}
}

func TestSessionNotFound(t *testing.T) {
	srv := newTestServer(t, auth.Config{}, nil)

	for _, tc := range []struct{ method, path string }{
		{"GET", "/api/v1/sessions/missing"},
		{"POST", "/api/v1/sessions/missing/elements/open"},
		{"DELETE", "/api/v1/sessions/missing"},
		{"GET", "/api/v1/sessions/missing/events"},
	} {
		resp, data := do(t, tc.method, srv.URL+tc.path, "")
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("%s %s: status %d, want 404", tc.method, tc.path, resp.StatusCode)
		}
		var body map[string]string
		if err := json.Unmarshal(data, &body); err != nil || body["error"] == "" {
			t.Errorf("%s %s: body %s", tc.method, tc.path, data)
		}
	}
}

func TestNoStoreConfigured(t *testing.T) {
	srv := newTestServer(t, auth.Config{}, nil)
	url := srv.URL + "/api/v1/sessions/" + createSession(t, srv)

	resp, data := do(t, "POST", url+"/elements/open", "")
	if resp.StatusCode != http.StatusNotFound || !strings.Contains(string(data), "no element store configured") {
		t.Errorf("open without store: %d %s", resp.StatusCode, data)
	}
}

func TestDeleteSession(t *testing.T) {
	srv := newTestServer(t, auth.Config{}, nil)
	url := srv.URL + "/api/v1/sessions/" + createSession(t, srv)

	if resp, _ := do(t, "DELETE", url, ""); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete: status %d", resp.StatusCode)
	}
	if resp, _ := do(t, "GET", url, ""); resp.StatusCode != http.StatusNotFound {
		t.Errorf("get after delete: status %d", resp.StatusCode)
	}
}

// TestEventsThroughMiddleware checks that the logging and metrics wrappers
// keep the response flushable.
func TestEventsThroughMiddleware(t *testing.T) {
	srv := newTestServer(t, auth.Config{}, nil)
	id := createSession(t, srv)

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(srv.URL + "/api/v1/sessions/" + id + "/events")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	br := bufio.NewReader(resp.Body)
	for {
		line, err := br.ReadString('\n')
		if err != nil {
			t.Fatalf("reading stream: %v", err)
		}
		if payload, ok := strings.CutPrefix(strings.TrimSpace(line), "data: "); ok {
			var msg map[string]any
			if err := json.Unmarshal([]byte(payload), &msg); err != nil {
				t.Fatal(err)
			}
			if msg["type"] != "page" {
				t.Errorf("first message type = %v", msg["type"])
			}
			return
		}
	}
}

func TestAuthAndStatic(t *testing.T) {
	srv := newTestServer(t, auth.Config{Enabled: true, Token: "tok"}, nil)

	resp, data := do(t, "GET", srv.URL+"/", "")
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(data), "groundtrack") {
		t.Errorf("GET /: %d %s", resp.StatusCode, data)
	}
	if resp, _ := do(t, "GET", srv.URL+"/readyz", ""); resp.StatusCode != http.StatusOK {
		t.Errorf("GET /readyz: %d", resp.StatusCode)
	}
	if resp, _ := do(t, "POST", srv.URL+"/api/v1/sessions", ""); resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("unauthenticated create: %d, want 401", resp.StatusCode)
	}

	req, _ := http.NewRequest("POST", srv.URL+"/api/v1/sessions", nil)
	req.Header.Set("Authorization", "Bearer tok")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Errorf("authenticated create: %d, want 201", resp.StatusCode)
	}
}

func TestStatusRecorderUnwrap(t *testing.T) {
	w := httptest.NewRecorder()
	sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
	if err := http.NewResponseController(sr).Flush(); err != nil {
		t.Errorf("Flush through recorder: %v", err)
	}
	if !w.Flushed {
		t.Error("underlying writer not flushed")
	}
	if !errors.Is(http.NewResponseController(sr).SetWriteDeadline(time.Time{}), http.ErrNotSupported) {
		t.Error("expected deadline to reach the recorder and be unsupported")
	}
}
