package propagation

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sudhakar086/nasa-python-sgp4/internal/track"
	"github.com/sudhakar086/nasa-python-sgp4/internal/transform"
)

// sampleJob is one ground-track instant to propagate.
type sampleJob struct {
	index int
	at    time.Time
}

type sampleResult struct {
	index int
	point track.GeoPoint
	err   error
}

// Sampler computes ground-track points on a fixed number of goroutines.
type Sampler struct {
	workers int
	logger  *slog.Logger
}

// NewSampler creates a sampler with the given number of workers.
func NewSampler(workers int, logger *slog.Logger) *Sampler {
	if workers < 1 {
		workers = 1
	}
	return &Sampler{workers: workers, logger: logger}
}

// Sample returns the sub-satellite point at each of times, in the same order.
// Instants where SGP4 fails are left out; their count is returned.
func (s *Sampler) Sample(ctx context.Context, m *Model, times []time.Time) ([]track.GeoPoint, int) {
	if len(times) == 0 {
		return []track.GeoPoint{}, 0
	}

	jobs := make(chan sampleJob, s.workers*2)
	results := make(chan sampleResult, s.workers*2)

	var wg sync.WaitGroup
	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				select {
				case results <- sampleOne(m, job):
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i, at := range times {
			select {
			case jobs <- sampleJob{index: i, at: at}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	slots := make([]*track.GeoPoint, len(times))
	var failed int
	for res := range results {
		if res.err != nil {
			failed++
			s.logger.Debug("track sample failed",
				"catalog", m.Catalog(),
				"index", res.index,
				"error", res.err,
			)
			continue
		}
		p := res.point
		slots[res.index] = &p
	}

	points := make([]track.GeoPoint, 0, len(times))
	for _, p := range slots {
		if p != nil {
			points = append(points, *p)
		}
	}
	return points, failed
}

func sampleOne(m *Model, job sampleJob) sampleResult {
	teme, err := m.At(job.at)
	if err != nil {
		return sampleResult{index: job.index, err: err}
	}
	g := transform.SubSatellitePoint(teme, job.at.UTC().Truncate(time.Second))
	return sampleResult{index: job.index, point: track.GeoPoint{Lat: g.LatDeg, Lon: g.LonDeg}}
}
