// Package ringbuf provides the byte-budget accounting behind §5's
// backpressure policy. It is the same bookkeeping idea as ogdar's
// buffer.go ring buffers (reserve a slot before writing so a slow
// consumer never sees storage a producer is still filling), adapted to
// accounting only: the decoder's and clusterer's output is ordinary Go
// slices returned to the caller, not an aliased shared backing array,
// since a producer overwriting a ring slot out from under a slow
// consumer mid-batch would be a silent correctness hazard rather than
// one that merely wastes memory.
package ringbuf

import "sync/atomic"

// Budget tracks outstanding byte usage against a caller-provided ceiling.
// TryReserve refuses, without blocking, any reservation that would take
// in-flight usage over the budget; Release returns bytes once a consumer
// has finished with a batch.
type Budget struct {
	limit int64
	used  atomic.Int64
}

// NewBudget creates a Budget enforcing limit bytes. A limit of 0 means
// unlimited: TryReserve always succeeds.
func NewBudget(limit int64) *Budget {
	return &Budget{limit: limit}
}

// TryReserve attempts to account for n additional bytes. It reports
// whether the reservation was granted; on failure the caller must not
// proceed with the corresponding allocation.
func (b *Budget) TryReserve(n int64) bool {
	if b.limit <= 0 {
		b.used.Add(n)
		return true
	}
	for {
		cur := b.used.Load()
		if cur+n > b.limit {
			return false
		}
		if b.used.CompareAndSwap(cur, cur+n) {
			return true
		}
	}
}

// Release returns n bytes to the budget, making room for the next
// reservation.
func (b *Budget) Release(n int64) {
	b.used.Add(-n)
}

// Used reports current outstanding usage, for diagnostics.
func (b *Budget) Used() int64 {
	return b.used.Load()
}
