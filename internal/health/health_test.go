package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestReadyz(t *testing.T) {
	rd := NewReadiness()
	rd.Add("store", func(context.Context) error { return nil })

	get := func() *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		rd.Readyz(w, httptest.NewRequest("GET", "/readyz", nil))
		return w
	}

	if w := get(); w.Code != http.StatusOK || w.Body.String() != "ready\n" {
		t.Errorf("healthy: %d %q", w.Code, w.Body.String())
	}

	rd.Add("defaults", func(context.Context) error { return errors.New("bad checksum") })
	if w := get(); w.Code != http.StatusServiceUnavailable || w.Body.String() != "defaults: bad checksum\n" {
		t.Errorf("failing check: %d %q", w.Code, w.Body.String())
	}

	rd.Drain()
	if w := get(); w.Code != http.StatusServiceUnavailable || w.Body.String() != "draining\n" {
		t.Errorf("draining: %d %q", w.Code, w.Body.String())
	}
}

func TestHealthz(t *testing.T) {
	w := httptest.NewRecorder()
	Healthz(w, httptest.NewRequest("GET", "/healthz", nil))
	if w.Code != http.StatusOK || w.Body.String() != "ok\n" {
		t.Errorf("Healthz = %d %q", w.Code, w.Body.String())
	}
}
