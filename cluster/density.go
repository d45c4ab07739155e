package cluster

import (
	"github.com/jbrzusto/tpx3engine/config"
	"github.com/jbrzusto/tpx3engine/ringbuf"
	"github.com/jbrzusto/tpx3engine/stats"
	"github.com/jbrzusto/tpx3engine/tpx3"
)

// neighborCellSide sizes the spatial hash used to prune candidate pairs
// for the density and graph variants: one cell per radius, so any true
// neighbor falls within the 3x3 block of cells around a hit's own cell.
func neighborCellSide(cfg config.ClusterConfig) int32 {
	side := cfg.RadiusCeil()
	if side < 1 {
		side = 1
	}
	return side
}

// buildNeighborIndex groups each hit's spatial-temporal neighbors (by the
// shared withinNeighborhood predicate) using a grid hash for candidate
// pruning, since radius and window are both typically small relative to
// the detector and pulse rate. budget gates the total number of edges
// recorded across the whole adjacency list, the largest allocation this
// variant and ClusterGraph hold beyond the caller's own hit slice.
func buildNeighborIndex(hits []tpx3.Hit, cfg config.ClusterConfig, budget *ringbuf.Budget) ([][]int32, error) {
	side := neighborCellSide(cfg)
	windowTicks := cfg.WindowTicks()
	grid := make(map[cellKey][]int32, len(hits))
	cellOf := func(h tpx3.Hit) cellKey {
		return cellKey{int32(h.X) / side, int32(h.Y) / side}
	}
	for i, h := range hits {
		c := cellOf(h)
		grid[c] = append(grid[c], int32(i))
	}
	neighbors := make([][]int32, len(hits))
	for i, h := range hits {
		c := cellOf(h)
		for dx := int32(-1); dx <= 1; dx++ {
			for dy := int32(-1); dy <= 1; dy++ {
				for _, j := range grid[cellKey{c.cx + dx, c.cy + dy}] {
					if int(j) == i {
						continue
					}
					if withinNeighborhood(h, hits[j], cfg.Radius, windowTicks) {
						if err := reserveIndices(budget, 1); err != nil {
							return nil, err
						}
						neighbors[i] = append(neighbors[i], j)
					}
				}
			}
		}
	}
	return neighbors, nil
}

// ClusterDensity implements §4.6's DBSCAN-style variant. A hit with at
// least MinPoints neighbors is a core point; clusters expand from core
// points transitively, and non-core hits attach to the first cluster
// that claims them through a core neighbor. Visit order follows input
// index, and the expansion frontier is a FIFO queue, making the result
// deterministic for identical input.
func ClusterDensity(hits []tpx3.Hit, labels []int32, cfg config.ClusterConfig, st *stats.Stats, budget *ringbuf.Budget) (int, error) {
	for i := range labels {
		labels[i] = -1
	}
	n := len(hits)
	neighbors, err := buildNeighborIndex(hits, cfg, budget)
	if err != nil {
		return 0, err
	}
	isCore := make([]bool, n)
	for i := range hits {
		if len(neighbors[i]) >= cfg.MinPoints {
			isCore[i] = true
		}
	}

	visited := make([]bool, n)
	nextID := int32(0)
	for i := 0; i < n; i++ {
		if visited[i] || !isCore[i] {
			continue
		}
		id := nextID
		nextID++
		visited[i] = true
		labels[i] = id
		queue := []int32{int32(i)}
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			if !isCore[cur] {
				continue
			}
			for _, nb := range neighbors[cur] {
				if labels[nb] == -1 {
					labels[nb] = id
				}
				if !visited[nb] {
					visited[nb] = true
					queue = append(queue, nb)
				}
			}
		}
	}

	return applySizeConstraints(labels, cfg, st), nil
}
