package tle

import "time"

// Entry is one satellite's named two-line element set.
type Entry struct {
	NORADID int
	Name    string
	Epoch   time.Time
	Line1   string
	Line2   string
}

// EpochRange is the oldest and newest epoch in a dataset.
type EpochRange struct {
	Min time.Time
	Max time.Time
}

// Dataset is a parsed catalogue together with where and when it came from.
type Dataset struct {
	Source     string
	FetchedAt  time.Time
	EpochRange EpochRange
	Satellites []Entry
}

// NewDataset builds a dataset and computes its epoch range.
func NewDataset(source string, fetchedAt time.Time, entries []Entry) *Dataset {
	ds := &Dataset{Source: source, FetchedAt: fetchedAt, Satellites: entries}
	for i, e := range entries {
		if i == 0 || e.Epoch.Before(ds.EpochRange.Min) {
			ds.EpochRange.Min = e.Epoch
		}
		if i == 0 || e.Epoch.After(ds.EpochRange.Max) {
			ds.EpochRange.Max = e.Epoch
		}
	}
	return ds
}

// Lookup returns the entry for a catalogue number. When a catalogue carries
// the same satellite more than once the newest epoch wins.
func (ds *Dataset) Lookup(noradID int) (Entry, bool) {
	var (
		best  Entry
		found bool
	)
	for _, e := range ds.Satellites {
		if e.NORADID != noradID {
			continue
		}
		if !found || e.Epoch.After(best.Epoch) {
			best, found = e, true
		}
	}
	return best, found
}
