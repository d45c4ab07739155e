// Package merge implements the time-ordered K-way pulse merge of §4.4.
// It is single-threaded by contract: BuildChipPulses groups the
// (already, in parallel) decoded per-section results into per-chip
// pulse streams, and Merger then drains them through a min-heap keyed
// on (epoch, trigger), bounded to one in-flight pulse per chip.
package merge

import (
	"container/heap"
	"sort"
	"unsafe"

	"github.com/jbrzusto/tpx3engine/control"
	"github.com/jbrzusto/tpx3engine/decode"
	"github.com/jbrzusto/tpx3engine/ringbuf"
	"github.com/jbrzusto/tpx3engine/rollover"
	"github.com/jbrzusto/tpx3engine/stats"
	"github.com/jbrzusto/tpx3engine/tpx3"
	"github.com/jbrzusto/tpx3engine/tpx3err"
)

// hitSize is the per-hit cost charged against a Merger's memory budget:
// the resident size of the merge stage's own working buffer, not the
// caller's eventual output slice.
const hitSize = int64(unsafe.Sizeof(tpx3.Hit{}))

// Pulse is the hits belonging to a single trigger interval on one chip,
// sorted by tof.
type Pulse struct {
	ChipID  uint8
	Trigger uint32
	Hits    []tpx3.Hit
}

// BuildChipPulses concatenates each section's decoded pulse boundaries
// in scan order, merging adjacent boundaries that share a trigger value
// (a pulse that continues, uninterrupted, across a section break on the
// same chip) into a single Pulse.
func BuildChipPulses(sections []tpx3.Section, results []decode.Result) map[uint8][]Pulse {
	out := make(map[uint8][]Pulse)
	for i, sec := range sections {
		res := results[i]
		for _, pb := range res.Pulses {
			hits := append([]tpx3.Hit(nil), res.Hits[pb.Start:pb.End]...)
			sort.SliceStable(hits, func(a, b int) bool { return hits[a].Tof < hits[b].Tof })
			chipPulses := out[sec.ChipID]
			if n := len(chipPulses); n > 0 && chipPulses[n-1].Trigger == pb.Trigger {
				chipPulses[n-1].Hits = append(chipPulses[n-1].Hits, hits...)
				sort.SliceStable(chipPulses[n-1].Hits, func(a, b int) bool {
					return chipPulses[n-1].Hits[a].Tof < chipPulses[n-1].Hits[b].Tof
				})
				out[sec.ChipID] = chipPulses
				continue
			}
			out[sec.ChipID] = append(chipPulses, Pulse{ChipID: sec.ChipID, Trigger: pb.Trigger, Hits: hits})
		}
	}
	return out
}

// heapItem is one chip's next ready pulse, keyed for the min-heap by
// (epoch, trigger).
type heapItem struct {
	chipID    uint8
	epoch     uint64
	trigger   uint32
	pulseIdx  int
}

type pulseHeap []heapItem

func (h pulseHeap) Len() int { return len(h) }
func (h pulseHeap) Less(i, j int) bool {
	if h[i].epoch != h[j].epoch {
		return h[i].epoch < h[j].epoch
	}
	if h[i].trigger != h[j].trigger {
		return h[i].trigger < h[j].trigger
	}
	return h[i].chipID < h[j].chipID
}
func (h pulseHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *pulseHeap) Push(x interface{}) { *h = append(*h, x.(heapItem)) }
func (h *pulseHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Merger drains a set of per-chip pulse streams into one globally
// time-ordered hit sequence. Its working buffer holds one pulse group
// (at most one pulse per chip) at a time; the per-chip pulse streams it
// drains, as built by BuildChipPulses, are held in memory in full, so
// total memory grows with the input size.
type Merger struct {
	pulses map[uint8][]Pulse
	next   map[uint8]int
	epochs map[uint8]*rollover.ChipState
	h      pulseHeap
	buf    []tpx3.Hit
	bufPos int
	st     *stats.Stats
	cancel *control.CancelToken
	budget *ringbuf.Budget
	merged uint64
}

// New builds a Merger over the given per-chip pulse streams. budget may
// be nil, meaning the merge stage's working buffer is unbounded.
func New(pulses map[uint8][]Pulse, st *stats.Stats, cancel *control.CancelToken, budget *ringbuf.Budget) *Merger {
	m := &Merger{
		pulses: pulses,
		next:   make(map[uint8]int),
		epochs: make(map[uint8]*rollover.ChipState),
		st:     st,
		cancel: cancel,
		budget: budget,
	}
	for chip, ps := range pulses {
		if len(ps) == 0 {
			continue
		}
		m.epochs[chip] = &rollover.ChipState{}
		warn := m.epochs[chip].Observe(ps[0].Trigger)
		if warn && st != nil {
			st.TimeOrderingWarnings.Add(1)
		}
		m.next[chip] = 1
		heap.Push(&m.h, heapItem{chipID: chip, epoch: m.epochs[chip].Epoch, trigger: ps[0].Trigger, pulseIdx: 0})
	}
	heap.Init(&m.h)
	return m
}

// refill performs one synchronous extraction step: it pops every
// minimal-keyed pulse (pulses from distinct chips sharing the same
// (epoch, trigger) are synchronous and popped together), merges their
// hits by tof, and buffers the result. The previous buffer's budget
// reservation is released before the new one is reserved, so the
// merger never holds more than one pulse group's worth of hits against
// the budget at a time.
func (m *Merger) refill() (bool, error) {
	if m.budget != nil && len(m.buf) > 0 {
		m.budget.Release(int64(len(m.buf)) * hitSize)
	}
	if m.h.Len() == 0 {
		m.buf = nil
		return false, nil
	}
	minKey := m.h[0]
	var combined []tpx3.Hit
	for m.h.Len() > 0 && m.h[0].epoch == minKey.epoch && m.h[0].trigger == minKey.trigger {
		item := heap.Pop(&m.h).(heapItem)
		p := m.pulses[item.chipID][item.pulseIdx]
		combined = append(combined, p.Hits...)

		nextIdx := m.next[item.chipID]
		if nextIdx < len(m.pulses[item.chipID]) {
			nextPulse := m.pulses[item.chipID][nextIdx]
			warn := m.epochs[item.chipID].Observe(nextPulse.Trigger)
			if warn && m.st != nil {
				m.st.TimeOrderingWarnings.Add(1)
			}
			m.next[item.chipID] = nextIdx + 1
			heap.Push(&m.h, heapItem{
				chipID:   item.chipID,
				epoch:    m.epochs[item.chipID].Epoch,
				trigger:  nextPulse.Trigger,
				pulseIdx: nextIdx,
			})
		}
	}
	sort.SliceStable(combined, func(a, b int) bool {
		if combined[a].Tof != combined[b].Tof {
			return combined[a].Tof < combined[b].Tof
		}
		return combined[a].ChipID < combined[b].ChipID
	})
	if m.budget != nil && len(combined) > 0 {
		if !m.budget.TryReserve(int64(len(combined)) * hitSize) {
			m.buf = nil
			return false, tpx3err.New(tpx3err.ResourceExhausted,
				"merge stage's in-flight pulse group exceeds the configured memory budget")
		}
	}
	if m.st != nil {
		m.st.PulsesMerged.Add(1)
	}
	m.buf = combined
	m.bufPos = 0
	return len(m.buf) > 0, nil
}

// Next returns the next hit in global time order, or ok=false once every
// chip's stream is exhausted.
func (m *Merger) Next() (tpx3.Hit, bool, error) {
	for m.bufPos >= len(m.buf) {
		ok, err := m.refill()
		if err != nil {
			return tpx3.Hit{}, false, err
		}
		if !ok {
			return tpx3.Hit{}, false, nil
		}
	}
	h := m.buf[m.bufPos]
	m.bufPos++
	m.merged++
	if m.merged%4096 == 0 && m.cancel.Canceled() {
		return tpx3.Hit{}, false, tpx3err.ErrCanceled
	}
	return h, true, nil
}

// Drain consumes the entire merged sequence. It is a convenience for
// callers that do not need pull-based iteration.
func (m *Merger) Drain() ([]tpx3.Hit, error) {
	var out []tpx3.Hit
	for {
		h, ok, err := m.Next()
		if err != nil {
			return out, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, h)
	}
}
