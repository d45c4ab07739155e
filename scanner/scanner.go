// Package scanner partitions a mapped byte region into per-chip
// sections and threads each chip's trigger state across them, per §4.1.
// It owns none of the bytes it walks: sections reference the source
// slice by offset, never by copy.
package scanner

import (
	"encoding/binary"

	"github.com/jbrzusto/tpx3engine/packet"
	"github.com/jbrzusto/tpx3engine/stats"
	"github.com/jbrzusto/tpx3engine/tpx3"
)

// Scan walks data in 8-byte packets and returns the ordered list of
// sections it discovers. Trailing bytes that do not form a whole packet
// are discarded and counted in st. If no header packet is ever seen, the
// returned slice is empty.
func Scan(data []byte, st *stats.Stats) []tpx3.Section {
	n := len(data) - len(data)%8
	if rem := len(data) - n; rem > 0 && st != nil {
		st.TrailingBytesDiscarded.Add(uint64(rem))
	}

	var latest [256]struct {
		val uint32
		has bool
	}

	var sections []tpx3.Section
	var cur *tpx3.Section

	closeSection := func(end int) {
		if cur == nil {
			return
		}
		cur.End = end
		if cur.Len() > 0 {
			sections = append(sections, *cur)
		}
		cur = nil
	}

	for off := 0; off < n; off += 8 {
		raw := binary.LittleEndian.Uint64(data[off : off+8])
		switch {
		case packet.IsHeader(raw):
			closeSection(off)
			chip := packet.HeaderChipID(raw)
			next := tpx3.Section{Start: off + 8, ChipID: chip}
			if latest[chip].has {
				v := latest[chip].val
				next.InitialTrigger = &v
			}
			cur = &next
		case packet.IsTrigger(raw):
			if cur != nil {
				ts := packet.TriggerTimestamp(raw)
				cur.FinalTrigger = ts
				cur.HasFinalTrigger = true
				latest[cur.ChipID] = struct {
					val uint32
					has bool
				}{ts, true}
			}
		default:
			// hit packets and anything else are ignored during section
			// discovery; the decoder handles them.
		}
	}
	closeSection(n)

	if st != nil {
		st.SectionsScanned.Add(uint64(len(sections)))
	}
	return sections
}
