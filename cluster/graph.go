package cluster

import (
	"github.com/jbrzusto/tpx3engine/config"
	"github.com/jbrzusto/tpx3engine/ringbuf"
	"github.com/jbrzusto/tpx3engine/stats"
	"github.com/jbrzusto/tpx3engine/tpx3"
)

// ClusterGraph implements §4.6's connected-components variant: an edge
// joins two hits within the spatial radius and temporal window, and
// components collapse via union-find (union by rank, path compression).
// Cluster ids are assigned in order of first appearance, in input order,
// of each component's root.
func ClusterGraph(hits []tpx3.Hit, labels []int32, cfg config.ClusterConfig, st *stats.Stats, budget *ringbuf.Budget) (int, error) {
	n := len(hits)
	if n == 0 {
		return 0, nil
	}
	uf := newUnionFind(n)
	neighbors, err := buildNeighborIndex(hits, cfg, budget)
	if err != nil {
		return 0, err
	}
	for i := range hits {
		for _, j := range neighbors[i] {
			if j > int32(i) {
				uf.union(int32(i), j)
			}
		}
	}

	rootToID := make(map[int32]int32)
	nextID := int32(0)
	for i := range hits {
		root := uf.find(int32(i))
		id, ok := rootToID[root]
		if !ok {
			id = nextID
			rootToID[root] = id
			nextID++
		}
		labels[i] = id
	}

	return applySizeConstraints(labels, cfg, st), nil
}
