// Package stats is the per-run statistics record of §7/§9: Decoding and
// TimeOrdering conditions never abort the pipeline, they are only
// accumulated here and returned to the caller alongside results. No
// counter here is process-wide; every run owns its own *Stats.
package stats

import "sync/atomic"

// Stats accumulates the non-fatal conditions produced while running the
// pipeline. All fields are safe for concurrent use by the fork-join
// decode workers.
type Stats struct {
	TrailingBytesDiscarded atomic.Uint64
	HitsWithoutTrigger     atomic.Uint64
	TimeOrderingWarnings   atomic.Uint64
	ClusteringOverflows    atomic.Uint64
	SectionsScanned        atomic.Uint64
	PulsesMerged           atomic.Uint64
}

// New returns a fresh, zeroed Stats record.
func New() *Stats {
	return &Stats{}
}

// Snapshot is a plain-value copy of a Stats record, suitable for
// printing or comparing.
type Snapshot struct {
	TrailingBytesDiscarded uint64
	HitsWithoutTrigger     uint64
	TimeOrderingWarnings   uint64
	ClusteringOverflows    uint64
	SectionsScanned        uint64
	PulsesMerged           uint64
}

// Snapshot reads all counters into a plain Snapshot.
func (s *Stats) Snapshot() Snapshot {
	if s == nil {
		return Snapshot{}
	}
	return Snapshot{
		TrailingBytesDiscarded: s.TrailingBytesDiscarded.Load(),
		HitsWithoutTrigger:     s.HitsWithoutTrigger.Load(),
		TimeOrderingWarnings:   s.TimeOrderingWarnings.Load(),
		ClusteringOverflows:    s.ClusteringOverflows.Load(),
		SectionsScanned:        s.SectionsScanned.Load(),
		PulsesMerged:           s.PulsesMerged.Load(),
	}
}
