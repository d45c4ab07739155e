package cluster

import (
	"sort"

	"github.com/jbrzusto/tpx3engine/config"
	"github.com/jbrzusto/tpx3engine/ringbuf"
	"github.com/jbrzusto/tpx3engine/stats"
	"github.com/jbrzusto/tpx3engine/tpx3"
)

type gridBBox struct {
	xmin, xmax, ymin, ymax uint16
}

func (b *gridBBox) extend(x, y uint16) {
	if x < b.xmin {
		b.xmin = x
	}
	if x > b.xmax {
		b.xmax = x
	}
	if y < b.ymin {
		b.ymin = y
	}
	if y > b.ymax {
		b.ymax = y
	}
}

func boxesTouch(a, b gridBBox, gap int32) bool {
	ax0, ax1 := int32(a.xmin)-gap, int32(a.xmax)+gap
	ay0, ay1 := int32(a.ymin)-gap, int32(a.ymax)+gap
	bx0, bx1 := int32(b.xmin), int32(b.xmax)
	by0, by1 := int32(b.ymin), int32(b.ymax)
	return ax0 <= bx1 && bx0 <= ax1 && ay0 <= by1 && by0 <= ay1
}

// ClusterGrid implements §4.6's grid variant: the detector is partitioned
// into GridCols x GridRows cells, each flood-filled independently using
// the shared spatial-temporal predicate. When MergeAdjacentCells is set,
// clusters whose bounding boxes touch across a cell boundary (within one
// radius of each other) are unified via union-find.
func ClusterGrid(hits []tpx3.Hit, labels []int32, cfg config.ClusterConfig, st *stats.Stats, budget *ringbuf.Budget) (int, error) {
	n := len(hits)
	for i := range labels {
		labels[i] = -1
	}
	if n == 0 {
		return 0, nil
	}

	cols, rows := cfg.GridCols, cfg.GridRows
	if cols < 1 {
		cols = 1
	}
	if rows < 1 {
		rows = 1
	}
	cellW := float64(cfg.DetectorSize) / float64(cols)
	cellH := float64(cfg.DetectorSize) / float64(rows)
	if cellW <= 0 {
		cellW = 1
	}
	if cellH <= 0 {
		cellH = 1
	}
	cellOf := func(h tpx3.Hit) (int, int) {
		cx := int(float64(h.X) / cellW)
		cy := int(float64(h.Y) / cellH)
		if cx >= cols {
			cx = cols - 1
		}
		if cy >= rows {
			cy = rows - 1
		}
		return cx, cy
	}

	type cell struct{ cx, cy int }
	byCell := make(map[cell][]int32)
	for i, h := range hits {
		if err := reserveIndices(budget, 1); err != nil {
			return 0, err
		}
		cx, cy := cellOf(h)
		k := cell{cx, cy}
		byCell[k] = append(byCell[k], int32(i))
	}
	cellKeys := make([]cell, 0, len(byCell))
	for k := range byCell {
		cellKeys = append(cellKeys, k)
	}
	sort.Slice(cellKeys, func(a, b int) bool {
		if cellKeys[a].cx != cellKeys[b].cx {
			return cellKeys[a].cx < cellKeys[b].cx
		}
		return cellKeys[a].cy < cellKeys[b].cy
	})

	windowTicks := cfg.WindowTicks()
	nextID := int32(0)
	var boxes []gridBBox
	var boxCells []cell

	for _, k := range cellKeys {
		idxs := byCell[k]
		visited := make(map[int32]bool, len(idxs))
		for _, start := range idxs {
			if visited[start] {
				continue
			}
			id := nextID
			nextID++
			visited[start] = true
			labels[start] = id
			bb := gridBBox{hits[start].X, hits[start].X, hits[start].Y, hits[start].Y}
			queue := []int32{start}
			for len(queue) > 0 {
				cur := queue[0]
				queue = queue[1:]
				for _, j := range idxs {
					if visited[j] {
						continue
					}
					if withinNeighborhood(hits[cur], hits[j], cfg.Radius, windowTicks) {
						visited[j] = true
						labels[j] = id
						bb.extend(hits[j].X, hits[j].Y)
						queue = append(queue, j)
					}
				}
			}
			boxes = append(boxes, bb)
			boxCells = append(boxCells, k)
		}
	}

	if cfg.MergeAdjacentCells && len(boxes) > 1 {
		uf := newUnionFind(len(boxes))
		gap := cfg.RadiusCeil()
		for a := 0; a < len(boxes); a++ {
			for b := a + 1; b < len(boxes); b++ {
				if boxCells[a] != boxCells[b] && boxesTouch(boxes[a], boxes[b], gap) {
					uf.union(int32(a), int32(b))
				}
			}
		}
		remap := make(map[int32]int32)
		next := int32(0)
		for i, l := range labels {
			if l < 0 {
				continue
			}
			root := uf.find(l)
			id, ok := remap[root]
			if !ok {
				id = next
				remap[root] = id
				next++
			}
			labels[i] = id
		}
	}

	return applySizeConstraints(labels, cfg, st), nil
}
