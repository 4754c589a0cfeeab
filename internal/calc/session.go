package calc

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/sudhakar086/nasa-python-sgp4/internal/metrics"
)

// Calculator is the propagation service as seen by a Session.
type Calculator interface {
	Calculate(ctx context.Context, line1, line2 string) (*Result, error)
}

// Outcome is the result of one calculation run.
type Outcome struct {
	Token  uint64
	Result *Result
	Err    error
	// Superseded is set when a newer run was started before this one resolved.
	Superseded bool
}

// OK reports whether the run succeeded.
func (o Outcome) OK() bool {
	return o.Err == nil && o.Result != nil
}

// Message is the text shown to the user for a failed run.
func (o Outcome) Message() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}

// Session sequences calculation runs so that only the most recently started
// one is ever applied. Tokens increase monotonically.
type Session struct {
	calc   Calculator
	seq    atomic.Uint64
	logger *slog.Logger
}

// NewSession creates a session backed by calc.
func NewSession(calc Calculator, logger *slog.Logger) *Session {
	return &Session{calc: calc, logger: logger}
}

// Begin issues the token for a new run, superseding all earlier ones.
func (s *Session) Begin() uint64 {
	return s.seq.Add(1)
}

// Current reports whether token is the latest issued.
func (s *Session) Current(token uint64) bool {
	return s.seq.Load() == token
}

// Run performs the calculation for a token obtained from Begin.
func (s *Session) Run(ctx context.Context, token uint64, line1, line2 string) Outcome {
	start := time.Now()
	result, err := s.calc.Calculate(ctx, line1, line2)
	duration := time.Since(start)

	out := Outcome{Token: token, Result: result, Err: err}
	out.Superseded = !s.Current(token)

	label := "success"
	var svcErr *ServiceError
	switch {
	case errors.As(err, &svcErr):
		label = "service_error"
	case err != nil:
		label = "transport_error"
	}
	metrics.RecordCalculation(label, duration)

	s.logger.Debug("calculation resolved",
		"component", "calc",
		"token", token,
		"outcome", label,
		"superseded", out.Superseded,
		"duration_ms", duration.Milliseconds(),
	)
	return out
}

// Do begins and runs a calculation in one call.
func (s *Session) Do(ctx context.Context, line1, line2 string) Outcome {
	return s.Run(ctx, s.Begin(), line1, line2)
}
