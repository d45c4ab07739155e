package pipeline

import "github.com/jbrzusto/tpx3engine/tpx3"

// HitIterator yields contiguous, time-ordered, labeled hit batches of at
// most BatchSize, per §6's external iterator contract. A Result's Hits
// are computed up front (the byte region is a memory-mapped snapshot,
// not a live link), so batching here is pull-based slicing rather than a
// goroutine pipeline.
type HitIterator struct {
	hits      []tpx3.Hit
	batchSize int
	pos       int
}

// NewHitIterator wraps hits for batched consumption. A batchSize <= 0
// yields the whole slice as one batch.
func NewHitIterator(hits []tpx3.Hit, batchSize int) *HitIterator {
	if batchSize <= 0 {
		batchSize = len(hits)
		if batchSize == 0 {
			batchSize = 1
		}
	}
	return &HitIterator{hits: hits, batchSize: batchSize}
}

// Next returns the next batch, or ok=false once exhausted.
func (it *HitIterator) Next() (batch []tpx3.Hit, ok bool) {
	if it.pos >= len(it.hits) {
		return nil, false
	}
	end := it.pos + it.batchSize
	if end > len(it.hits) {
		end = len(it.hits)
	}
	batch = it.hits[it.pos:end]
	it.pos = end
	return batch, true
}

// NeutronIterator yields contiguous neutron batches of at most
// BatchSize. Each neutron has already been emitted only once its source
// cluster closed, since extraction runs after the merger and clusterer
// have both finished.
type NeutronIterator struct {
	neutrons  []tpx3.Neutron
	batchSize int
	pos       int
}

// NewNeutronIterator wraps neutrons for batched consumption.
func NewNeutronIterator(neutrons []tpx3.Neutron, batchSize int) *NeutronIterator {
	if batchSize <= 0 {
		batchSize = len(neutrons)
		if batchSize == 0 {
			batchSize = 1
		}
	}
	return &NeutronIterator{neutrons: neutrons, batchSize: batchSize}
}

// Next returns the next batch, or ok=false once exhausted.
func (it *NeutronIterator) Next() (batch []tpx3.Neutron, ok bool) {
	if it.pos >= len(it.neutrons) {
		return nil, false
	}
	end := it.pos + it.batchSize
	if end > len(it.neutrons) {
		end = len(it.neutrons)
	}
	batch = it.neutrons[it.pos:end]
	it.pos = end
	return batch, true
}
