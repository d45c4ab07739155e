// Package cluster implements the streaming clustering stage of §4.5/§4.6:
// four interchangeable algorithms that each take a tof-sorted hit slice
// and a parallel labels buffer, and return the number of clusters found.
// A label of -1 means the hit was not assigned to any cluster.
package cluster

import (
	"github.com/jbrzusto/tpx3engine/config"
	"github.com/jbrzusto/tpx3engine/ringbuf"
	"github.com/jbrzusto/tpx3engine/stats"
	"github.com/jbrzusto/tpx3engine/tpx3"
	"github.com/jbrzusto/tpx3engine/tpx3err"
)

// indexWordSize is the per-membership-index cost charged against a
// clusterer's memory budget: the resident size of one int32 entry in a
// bucket, neighbor list, or grid cell — the in-flight structures each
// algorithm holds beyond the caller's already-resident hit slice.
const indexWordSize = int64(4)

// reserveIndices accounts for n more in-flight membership indices
// against budget. A nil budget means unbounded.
func reserveIndices(budget *ringbuf.Budget, n int) error {
	if budget == nil || n <= 0 {
		return nil
	}
	if !budget.TryReserve(int64(n) * indexWordSize) {
		return tpx3err.New(tpx3err.ResourceExhausted,
			"clustering in-flight index memory exceeds the configured budget")
	}
	return nil
}

// releaseIndices returns n in-flight membership indices to budget.
func releaseIndices(budget *ringbuf.Budget, n int) {
	if budget == nil || n <= 0 {
		return
	}
	budget.Release(int64(n) * indexWordSize)
}

// cellKey addresses a cell of a spatial grid used for candidate pruning.
type cellKey struct {
	cx, cy int32
}

// withinNeighborhood reports whether two hits satisfy the clustering
// predicate shared by the density, graph and grid variants: within the
// spatial radius (Euclidean, compared as squared distance) and within
// the temporal window in ticks.
func withinNeighborhood(a, b tpx3.Hit, radius float64, windowTicks uint32) bool {
	dx := float64(int32(a.X) - int32(b.X))
	dy := float64(int32(a.Y) - int32(b.Y))
	if dx*dx+dy*dy > radius*radius {
		return false
	}
	var dt uint32
	if a.Tof > b.Tof {
		dt = a.Tof - b.Tof
	} else {
		dt = b.Tof - a.Tof
	}
	return dt <= windowTicks
}

// Cluster dispatches to the algorithm selected by cfg.Algorithm. labels
// must have the same length as hits; its contents on entry are ignored.
// It returns the number of clusters assigned (ids 0..n-1). budget may be
// nil, meaning the clustering stage's in-flight indices are unbounded;
// otherwise a budget too small for the algorithm's working set surfaces
// tpx3err.ResourceExhausted.
func Cluster(hits []tpx3.Hit, labels []int32, cfg config.ClusterConfig, st *stats.Stats, budget *ringbuf.Budget) (int, error) {
	switch cfg.Algorithm {
	case config.AlgoDensity:
		return ClusterDensity(hits, labels, cfg, st, budget)
	case config.AlgoGraph:
		return ClusterGraph(hits, labels, cfg, st, budget)
	case config.AlgoGrid:
		return ClusterGrid(hits, labels, cfg, st, budget)
	default:
		return ClusterBucket(hits, labels, cfg, st, budget)
	}
}

// applySizeConstraints enforces MinClusterSize and MaxClusterSize (policy:
// drop, per the exceeded-max case) over a raw label assignment, then
// compacts surviving ids to a contiguous 0..n-1 range, keeping the
// relative order of their raw ids. Every algorithm funnels its raw clustering
// result through this so the min/max policy and ClusteringOverflow
// accounting stay in one place.
func applySizeConstraints(labels []int32, cfg config.ClusterConfig, st *stats.Stats) int {
	maxRaw := int32(-1)
	for _, l := range labels {
		if l > maxRaw {
			maxRaw = l
		}
	}
	if maxRaw < 0 {
		return 0
	}
	counts := make([]int, maxRaw+1)
	for _, l := range labels {
		if l >= 0 {
			counts[l]++
		}
	}
	remap := make([]int32, maxRaw+1)
	next := int32(0)
	for id, c := range counts {
		switch {
		case c < cfg.MinClusterSize:
			remap[id] = -1
		case cfg.MaxClusterSize > 0 && c > cfg.MaxClusterSize:
			remap[id] = -1
			if st != nil {
				st.ClusteringOverflows.Add(1)
			}
		default:
			remap[id] = next
			next++
		}
	}
	for i, l := range labels {
		if l >= 0 {
			labels[i] = remap[l]
		}
	}
	return int(next)
}
