package tle

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sudhakar086/nasa-python-sgp4/internal/metrics"
)

// Refresher keeps a Store filled from a Fetcher, persisting every successful
// download to a Cache.
type Refresher struct {
	fetcher *Fetcher // nil when fetching is disabled
	cache   *Cache
	store   *Store
	logger  *slog.Logger
	now     func() time.Time
}

// NewRefresher creates a Refresher. fetcher may be nil, in which case only
// the cache is used.
func NewRefresher(fetcher *Fetcher, cache *Cache, store *Store, logger *slog.Logger) *Refresher {
	return &Refresher{fetcher: fetcher, cache: cache, store: store, logger: logger, now: time.Now}
}

// LoadCache fills the store from the newest cached download.
func (r *Refresher) LoadCache() error {
	data, ts, err := r.cache.LoadLatest()
	if err != nil {
		return err
	}
	entries, err := Parse(bytes.NewReader(data), r.logger)
	if err != nil {
		return fmt.Errorf("parsing cached element data: %w", err)
	}
	if len(entries) == 0 {
		return fmt.Errorf("cached element data at %s has no entries", ts.Format(time.RFC3339))
	}

	r.set(NewDataset("cache", ts, entries))
	r.logger.Info("loaded element data from cache",
		"component", "tle",
		"count", len(entries),
		"cached_at", ts.Format(time.RFC3339),
	)
	return nil
}

// Refresh downloads, parses, caches and publishes a new catalogue. The store
// is left untouched when any step before publishing fails.
func (r *Refresher) Refresh(ctx context.Context) error {
	if r.fetcher == nil {
		return nil
	}

	data, err := r.fetcher.Fetch(ctx)
	if err != nil {
		return err
	}
	entries, err := Parse(bytes.NewReader(data), r.logger)
	if err != nil {
		return fmt.Errorf("parsing element data: %w", err)
	}
	if len(entries) == 0 {
		return fmt.Errorf("no element sets in response from %s", r.fetcher.SourceURL())
	}

	now := r.now()
	if err := r.cache.Write(data, now); err != nil {
		r.logger.Warn("failed to cache element data", "component", "tle", "error", err)
	}

	ds := NewDataset(r.fetcher.SourceURL(), now, entries)
	r.set(ds)
	r.logger.Info("element data refreshed",
		"component", "tle",
		"count", len(entries),
		"epoch_min", ds.EpochRange.Min.Format(time.RFC3339),
		"epoch_max", ds.EpochRange.Max.Format(time.RFC3339),
	)
	return nil
}

// Run refreshes every interval until ctx is done, and keeps the dataset age
// gauge current. The first refresh happens immediately.
func (r *Refresher) Run(ctx context.Context, interval time.Duration) error {
	if r.fetcher != nil {
		if err := r.Refresh(ctx); err != nil {
			r.logger.Warn("element refresh failed", "component", "tle", "error", err)
		}
	}

	var refresh <-chan time.Time
	if r.fetcher != nil && interval > 0 {
		t := time.NewTicker(interval)
		defer t.Stop()
		refresh = t.C
	}
	age := time.NewTicker(10 * time.Second)
	defer age.Stop()

	for {
		select {
		case <-refresh:
			if err := r.Refresh(ctx); err != nil {
				r.logger.Warn("element refresh failed", "component", "tle", "error", err)
			}
		case <-age.C:
			if a := r.store.AgeSeconds(); a >= 0 {
				metrics.SetTLEDatasetAge(a)
			}
		case <-ctx.Done():
			return nil
		}
	}
}

func (r *Refresher) set(ds *Dataset) {
	r.store.Set(ds)
	metrics.SetTLEDatasetCount(len(ds.Satellites))
	metrics.SetTLEDatasetAge(r.store.AgeSeconds())
}
