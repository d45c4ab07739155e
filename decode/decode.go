// Package decode transforms one section's packets into Hit records, per
// §4.2. It also splits a section's hits into pulse boundaries (the runs
// of hits sharing one trigger reference) so the merge stage can operate
// pulse by pulse without re-reading the source bytes.
package decode

import (
	"encoding/binary"

	"github.com/jbrzusto/tpx3engine/config"
	"github.com/jbrzusto/tpx3engine/packet"
	"github.com/jbrzusto/tpx3engine/rollover"
	"github.com/jbrzusto/tpx3engine/stats"
	"github.com/jbrzusto/tpx3engine/tpx3"
)

// PulseBoundary indexes one contiguous run of Hits sharing a single
// trigger value, within a Result's Hits slice.
type PulseBoundary struct {
	Trigger    uint32
	Start, End int
}

// Result is one section's decoded output.
type Result struct {
	Hits    []tpx3.Hit
	Pulses  []PulseBoundary
}

// Decode walks one section's packets and produces its hits and pulse
// boundaries. data is the full source byte slice; section.Start/End
// index into it.
func Decode(section tpx3.Section, data []byte, cfg config.DecodeConfig, st *stats.Stats) Result {
	var res Result
	var currentTrigger *uint32
	if section.InitialTrigger != nil {
		v := *section.InitialTrigger
		currentTrigger = &v
	}

	triggerPeriod := cfg.TriggerPeriodTicks()
	transform := cfg.ChipTransforms[section.ChipID%tpx3.NumChips]

	pulseStart := 0
	pulseTrigger := uint32(0)
	havePulse := false

	closePulse := func(end int) {
		if havePulse && end > pulseStart {
			res.Pulses = append(res.Pulses, PulseBoundary{Trigger: pulseTrigger, Start: pulseStart, End: end})
		}
		pulseStart = end
		havePulse = false
	}

	for off := section.Start; off < section.End; off += 8 {
		raw := binary.LittleEndian.Uint64(data[off : off+8])
		switch {
		case packet.IsTrigger(raw):
			ts := packet.TriggerTimestamp(raw)
			if currentTrigger == nil || *currentTrigger != ts {
				closePulse(len(res.Hits))
				v := ts
				currentTrigger = &v
				pulseTrigger = ts
				havePulse = true
			}
		case packet.IsHit(raw):
			if currentTrigger == nil {
				if st != nil {
					st.HitsWithoutTrigger.Add(1)
				}
				continue
			}
			if !havePulse {
				pulseTrigger = *currentTrigger
				havePulse = true
			}
			fields := packet.DecodeHitFields(raw)
			xLocal, yLocal := packet.DecodeLocalXY(fields.Addr)
			x, y := transform.Apply(xLocal, yLocal)
			rawTimestamp := packet.CoarseTimestamp(fields)
			tsExt := rollover.ExtendHitTimestamp(rawTimestamp, *currentTrigger)
			rawTof := tsExt - *currentTrigger
			// The late-hit period correction only applies to a hit decode
			// did not already epoch-extend: once ExtendHitTimestamp adds a
			// full epoch, tof is reported against the unshifted trigger
			// with no further adjustment (scenario D). Compared as a
			// signed offset: a hit whose coarse time sits moments before
			// the trigger wraps to a huge unsigned delta, not a "late" one
			// exceeding the trigger period.
			if tsExt == rawTimestamp && int32(rawTof) > int32(triggerPeriod) {
				rawTof -= triggerPeriod
			}
			res.Hits = append(res.Hits, tpx3.Hit{
				Tof:       rawTof,
				X:         x,
				Y:         y,
				Timestamp: tsExt,
				Tot:       fields.Tot,
				ChipID:    section.ChipID,
				ClusterID: -1,
			})
		default:
			// anything else is neither a trigger nor a hit packet and is
			// ignored, mirroring the scanner's classification.
		}
	}
	closePulse(len(res.Hits))
	return res
}
