package cluster

import (
	"github.com/jbrzusto/tpx3engine/config"
	"github.com/jbrzusto/tpx3engine/ringbuf"
	"github.com/jbrzusto/tpx3engine/stats"
	"github.com/jbrzusto/tpx3engine/tpx3"
)

// gridCellSide is the spatial grid's cell size, in detector pixels, used
// for bucket candidate pruning. Not configurable: §4.5 fixes it at 16.
const gridCellSide = 16

// bucket is one in-flight spatial-temporal accumulation. hits holds
// indices into the caller's hit slice, in append order.
type bucket struct {
	startTof               uint32
	xmin, xmax, ymin, ymax uint16
	hits                   []int32
	cell                   cellKey
}

// bucketPool is a preallocated slot array plus a free-slot stack and the
// list of currently active slots, the same pattern ogdar's buffer.go
// uses for its ring-buffered sample and scanline storage: reuse slots
// instead of allocating and freeing per cluster.
type bucketPool struct {
	slots       []bucket
	free        []int32
	activeSlots []int32
}

func (p *bucketPool) alloc() int32 {
	if n := len(p.free); n > 0 {
		idx := p.free[n-1]
		p.free = p.free[:n-1]
		return idx
	}
	p.slots = append(p.slots, bucket{})
	return int32(len(p.slots) - 1)
}

func (p *bucketPool) release(idx int32) {
	p.slots[idx] = bucket{}
	p.free = append(p.free, idx)
}

func (p *bucketPool) deactivate(idx int32) {
	for i, s := range p.activeSlots {
		if s == idx {
			p.activeSlots[i] = p.activeSlots[len(p.activeSlots)-1]
			p.activeSlots = p.activeSlots[:len(p.activeSlots)-1]
			return
		}
	}
}

// ClusterBucket implements §4.5's age-based bucket algorithm, the
// reference clusterer. hits must already be sorted non-decreasing by
// Tof. budget gates the total number of hit-indices held across all
// currently open buckets; exceeding it surfaces ResourceExhausted.
func ClusterBucket(hits []tpx3.Hit, labels []int32, cfg config.ClusterConfig, st *stats.Stats, budget *ringbuf.Budget) (int, error) {
	windowTicks := cfg.WindowTicks()
	radiusCeil := cfg.RadiusCeil()
	pool := &bucketPool{}
	grid := make(map[cellKey][]int32)
	nextClusterID := int32(0)

	cellOf := func(x, y uint16) cellKey {
		return cellKey{int32(x) / gridCellSide, int32(y) / gridCellSide}
	}

	closeBucket := func(slot int32) {
		b := &pool.slots[slot]
		if len(b.hits) > 0 {
			id := nextClusterID
			nextClusterID++
			for _, hi := range b.hits {
				labels[hi] = id
			}
		}
		releaseIndices(budget, len(b.hits))
		bucketsAtCell := grid[b.cell]
		for i, s := range bucketsAtCell {
			if s == slot {
				bucketsAtCell[i] = bucketsAtCell[len(bucketsAtCell)-1]
				grid[b.cell] = bucketsAtCell[:len(bucketsAtCell)-1]
				break
			}
		}
		pool.deactivate(slot)
		pool.release(slot)
	}

	for i := range hits {
		h := &hits[i]

		if cfg.ScanInterval > 0 && i > 0 && i%cfg.ScanInterval == 0 {
			for _, slot := range append([]int32(nil), pool.activeSlots...) {
				b := &pool.slots[slot]
				if h.Tof-b.startTof > windowTicks {
					closeBucket(slot)
				}
			}
		}

		c := cellOf(h.X, h.Y)
		var best int32 = -1
		var bestStartTof uint32
		for dx := int32(-1); dx <= 1; dx++ {
			for dy := int32(-1); dy <= 1; dy++ {
				for _, slot := range grid[cellKey{c.cx + dx, c.cy + dy}] {
					b := &pool.slots[slot]
					if int32(h.X) < int32(b.xmin)-radiusCeil || int32(h.X) > int32(b.xmax)+radiusCeil {
						continue
					}
					if int32(h.Y) < int32(b.ymin)-radiusCeil || int32(h.Y) > int32(b.ymax)+radiusCeil {
						continue
					}
					if h.Tof-b.startTof > windowTicks {
						continue
					}
					if best == -1 || b.startTof < bestStartTof || (b.startTof == bestStartTof && slot < best) {
						best = slot
						bestStartTof = b.startTof
					}
				}
			}
		}

		if best != -1 {
			if err := reserveIndices(budget, 1); err != nil {
				return 0, err
			}
			b := &pool.slots[best]
			b.hits = append(b.hits, int32(i))
			if h.X < b.xmin {
				b.xmin = h.X
			}
			if h.X > b.xmax {
				b.xmax = h.X
			}
			if h.Y < b.ymin {
				b.ymin = h.Y
			}
			if h.Y > b.ymax {
				b.ymax = h.Y
			}
			continue
		}

		if err := reserveIndices(budget, 1); err != nil {
			return 0, err
		}
		slot := pool.alloc()
		pool.slots[slot] = bucket{
			startTof: h.Tof,
			xmin:     h.X, xmax: h.X,
			ymin: h.Y, ymax: h.Y,
			hits: []int32{int32(i)},
			cell: c,
		}
		grid[c] = append(grid[c], slot)
		pool.activeSlots = append(pool.activeSlots, slot)
	}

	// End of input: every remaining bucket is already older than the
	// reference tof of lastTof + windowTicks + 1, so all close unconditionally.
	for _, slot := range append([]int32(nil), pool.activeSlots...) {
		closeBucket(slot)
	}

	return applySizeConstraints(labels, cfg, st), nil
}
