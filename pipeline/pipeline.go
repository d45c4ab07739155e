// Package pipeline wires scanning, parallel decode, time-ordered merge,
// clustering and centroid extraction into the single top-level operation
// described by §5: a fork-join decode barrier followed by strictly
// single-threaded merge and (for the reference algorithm) clustering.
package pipeline

import (
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/jbrzusto/tpx3engine/cluster"
	"github.com/jbrzusto/tpx3engine/config"
	"github.com/jbrzusto/tpx3engine/control"
	"github.com/jbrzusto/tpx3engine/decode"
	"github.com/jbrzusto/tpx3engine/extract"
	"github.com/jbrzusto/tpx3engine/merge"
	"github.com/jbrzusto/tpx3engine/ringbuf"
	"github.com/jbrzusto/tpx3engine/scanner"
	"github.com/jbrzusto/tpx3engine/stats"
	"github.com/jbrzusto/tpx3engine/tpx3"
	"github.com/jbrzusto/tpx3engine/tpx3err"
)

// Result is the full output of one pipeline run.
type Result struct {
	Hits     []tpx3.Hit
	Neutrons []tpx3.Neutron
}

// Summary reports coarse per-run totals. It travels alongside Result and
// a stats.Snapshot rather than through any shared or global state, per
// §9's statistics-record design note.
type Summary struct {
	Sections int
	Hits     int
	Clusters int
	Neutrons int
}

// Run processes one read-only byte region end to end. data is held by
// reference throughout; no stage copies it. cancel may be nil, meaning
// the run is never cancellable.
func Run(data []byte, cfg config.Config, cancel *control.CancelToken) (Result, Summary, stats.Snapshot, error) {
	st := stats.New()
	sections := scanner.Scan(data, st)

	results := make([]decode.Result, len(sections))
	workers := cfg.Stream.Parallelism
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	g := new(errgroup.Group)
	g.SetLimit(workers)
	for i, sec := range sections {
		i, sec := i, sec
		g.Go(func() error {
			if cancel.Canceled() {
				return tpx3err.ErrCanceled
			}
			results[i] = decode.Decode(sec, data, cfg.Decode, st)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, Summary{Sections: len(sections)}, st.Snapshot(), err
	}

	budget := ringbuf.NewBudget(cfg.Stream.MemoryBudgetBytes)

	pulses := merge.BuildChipPulses(sections, results)
	m := merge.New(pulses, st, cancel, budget)
	hits, err := m.Drain()
	if err != nil {
		return Result{}, Summary{Sections: len(sections)}, st.Snapshot(), err
	}

	labels := make([]int32, len(hits))
	n, err := cluster.Cluster(hits, labels, cfg.Cluster, st, budget)
	if err != nil {
		return Result{}, Summary{Sections: len(sections), Hits: len(hits)}, st.Snapshot(), err
	}
	for i := range hits {
		hits[i].ClusterID = labels[i]
	}

	neutrons := extract.Extract(hits, labels, n, cfg.Extract)

	return Result{Hits: hits, Neutrons: neutrons},
		Summary{Sections: len(sections), Hits: len(hits), Clusters: n, Neutrons: len(neutrons)},
		st.Snapshot(),
		nil
}
