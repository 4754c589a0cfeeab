// Package propagation is the built-in propagation service: it answers
// POST /calculate with the current position, velocity and ground track of an
// element set, computed with go-satellite's SGP4.
package propagation

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sudhakar086/nasa-python-sgp4/internal/httputil"
	"github.com/sudhakar086/nasa-python-sgp4/internal/metrics"
	"github.com/sudhakar086/nasa-python-sgp4/internal/track"
	"github.com/sudhakar086/nasa-python-sgp4/internal/transform"
)

// maxRequestBytes bounds a /calculate request body.
const maxRequestBytes = 64 << 10

// Config controls ground-track sampling.
type Config struct {
	Workers int           // Sampling goroutines (default: runtime.NumCPU()).
	Span    time.Duration // Track length on each side of now (default: 90m).
	Step    time.Duration // Interval between samples (default: 1m).
}

// Position is the current TEME position (km) with its sub-satellite point.
type Position struct {
	X   float64 `json:"x"`
	Y   float64 `json:"y"`
	Z   float64 `json:"z"`
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
	Alt float64 `json:"alt"`
}

// Velocity is the current TEME velocity in km/s.
type Velocity struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Response is the success body of /calculate. PastPath runs oldest to newest
// and Path newest to furthest; neither contains the current instant.
type Response struct {
	Position  Position         `json:"position"`
	Velocity  Velocity         `json:"velocity"`
	Timestamp string           `json:"timestamp"`
	Path      []track.GeoPoint `json:"path"`
	PastPath  []track.GeoPoint `json:"past_path"`
}

type request struct {
	Line1 string `json:"line1"`
	Line2 string `json:"line2"`
}

// Service computes propagation responses.
type Service struct {
	sampler *Sampler
	config  Config
	logger  *slog.Logger
	now     func() time.Time
}

// NewService creates a propagation service.
func NewService(config Config, logger *slog.Logger) *Service {
	return &Service{
		sampler: NewSampler(config.Workers, logger),
		config:  config,
		logger:  logger,
		now:     time.Now,
	}
}

// Calculate propagates the element set to now (whole seconds, UTC) and
// samples the track every Step for Span either side of it.
func (s *Service) Calculate(ctx context.Context, line1, line2 string, now time.Time) (*Response, error) {
	start := time.Now()
	defer func() { metrics.ObservePropagation(time.Since(start)) }()

	model, err := NewModel(line1, line2)
	if err != nil {
		return nil, err
	}

	now = now.UTC().Truncate(time.Second)
	teme, err := model.At(now)
	if err != nil {
		return nil, err
	}
	sub := transform.SubSatellitePoint(teme, now)

	past, future := s.sampleTimes(now)
	pastPath, pastFailed := s.sampler.Sample(ctx, model, past)
	path, futureFailed := s.sampler.Sample(ctx, model, future)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if failed := pastFailed + futureFailed; failed > 0 {
		metrics.AddPropagationSampleFailures(failed)
		s.logger.Warn("track samples dropped",
			"component", "propagation",
			"catalog", model.Catalog(),
			"failed", failed,
		)
	}

	return &Response{
		Position: Position{
			X: teme.X, Y: teme.Y, Z: teme.Z,
			Lat: sub.LatDeg, Lon: sub.LonDeg, Alt: sub.AltKm,
		},
		Velocity:  Velocity{X: teme.VX, Y: teme.VY, Z: teme.VZ},
		Timestamp: now.Format(time.RFC3339),
		Path:      path,
		PastPath:  pastPath,
	}, nil
}

// sampleTimes returns the instants before now (oldest first) and after now.
func (s *Service) sampleTimes(now time.Time) (past, future []time.Time) {
	if s.config.Step <= 0 || s.config.Span <= 0 {
		return nil, nil
	}
	n := int(s.config.Span / s.config.Step)
	past = make([]time.Time, 0, n)
	future = make([]time.Time, 0, n)
	for k := n; k >= 1; k-- {
		past = append(past, now.Add(-time.Duration(k)*s.config.Step))
	}
	for k := 1; k <= n; k++ {
		future = append(future, now.Add(time.Duration(k)*s.config.Step))
	}
	return past, future
}

// HandleCalculate serves POST /calculate.
func (s *Service) HandleCalculate(w http.ResponseWriter, r *http.Request) {
	var req request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "request body must be JSON with line1 and line2")
		return
	}

	line1, line2 := strings.TrimSpace(req.Line1), strings.TrimSpace(req.Line2)
	if line1 == "" || line2 == "" {
		httputil.WriteError(w, http.StatusBadRequest, "TLE data is required")
		return
	}

	resp, err := s.Calculate(r.Context(), line1, line2, s.now())
	var elemErr *ElementsError
	switch {
	case err == nil:
		httputil.WriteJSON(w, http.StatusOK, resp)
	case errors.As(err, &elemErr):
		httputil.WriteError(w, http.StatusBadRequest, elemErr.Error())
	case errors.Is(err, ErrPropagation):
		s.logger.Info("propagation failed", "component", "propagation", "error", err)
		httputil.WriteError(w, http.StatusBadRequest, "Error in satellite propagation")
	default:
		s.logger.Error("calculate failed", "component", "propagation", "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, err.Error())
	}
}
