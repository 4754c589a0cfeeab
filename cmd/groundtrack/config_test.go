package main

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/sudhakar086/nasa-python-sgp4/internal/calc"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestLocalURL(t *testing.T) {
	tests := []struct {
		addr string
		want string
	}{
		{":8080", "http://127.0.0.1:8080/calculate"},
		{"0.0.0.0:9000", "http://127.0.0.1:9000/calculate"},
		{"[::]:9000", "http://127.0.0.1:9000/calculate"},
		{"localhost:8081", "http://localhost:8081/calculate"},
		{"[::1]:8081", "http://[::1]:8081/calculate"},
	}
	for _, tt := range tests {
		if got := localURL(tt.addr, "/calculate"); got != tt.want {
			t.Errorf("localURL(%q) = %q, want %q", tt.addr, got, tt.want)
		}
	}
}

func TestEnvDefaults(t *testing.T) {
	t.Setenv("GROUNDTRACK_PROP_WORKERS", "zero")
	t.Setenv("GROUNDTRACK_TRACK_SPAN", "600")
	t.Setenv("GROUNDTRACK_TRACK_STEP", "-5")

	cfg := loadPropConfig(testLogger())
	if cfg.Workers < 1 {
		t.Errorf("workers = %d", cfg.Workers)
	}
	if cfg.Span != 10*time.Minute {
		t.Errorf("span = %s, want 10m", cfg.Span)
	}
	if cfg.Step != time.Minute {
		t.Errorf("step = %s, want default 1m", cfg.Step)
	}
}

func TestLoadDisplayConfig(t *testing.T) {
	t.Setenv("GROUNDTRACK_DISPLAY_TZ", "Europe/Berlin")
	t.Setenv("GROUNDTRACK_VELOCITY_MODE", "speed")

	cfg := loadDisplayConfig(testLogger())
	if cfg.Location.String() != "Europe/Berlin" || cfg.Velocity != calc.VelocitySpeed {
		t.Errorf("display = %+v", cfg)
	}

	t.Setenv("GROUNDTRACK_DISPLAY_TZ", "Mars/Olympus")
	t.Setenv("GROUNDTRACK_VELOCITY_MODE", "fast")
	cfg = loadDisplayConfig(testLogger())
	if cfg.Location != time.Local || cfg.Velocity != calc.VelocityAxes {
		t.Errorf("bad values should fall back: %+v", cfg)
	}
}

func TestLoadAuthConfig(t *testing.T) {
	t.Setenv("GROUNDTRACK_AUTH_ENABLED", "true")
	t.Setenv("GROUNDTRACK_AUTH_TOKEN", "")
	if _, err := loadAuthConfig(testLogger()); err == nil {
		t.Error("enabled auth without token should fail")
	}

	t.Setenv("GROUNDTRACK_AUTH_ENABLED", "maybe")
	if _, err := loadAuthConfig(testLogger()); err == nil {
		t.Error("non-boolean AUTH_ENABLED should fail")
	}
}

func TestLoadTLEConfigExtraURLs(t *testing.T) {
	t.Setenv("GROUNDTRACK_TLE_EXTRA_URLS", " https://a.example/x , ,https://b.example/y")
	cfg := loadTLEConfig(testLogger())
	if len(cfg.ExtraSourceURLs) != 2 || cfg.ExtraSourceURLs[1] != "https://b.example/y" {
		t.Errorf("extra urls = %q", cfg.ExtraSourceURLs)
	}
	if cfg.DefaultNORAD != 25544 {
		t.Errorf("default norad = %d", cfg.DefaultNORAD)
	}
}
