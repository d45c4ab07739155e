// Package extract implements the centroid ("neutron") extraction stage of
// §4.7: it folds each closed cluster's member hits into one aggregated
// detection event.
package extract

import (
	"github.com/jbrzusto/tpx3engine/config"
	"github.com/jbrzusto/tpx3engine/tpx3"
)

type accumulator struct {
	sumX, sumY       float64 // unweighted coordinate sums
	sumXTot, sumYTot float64 // tot-weighted coordinate sums
	sumTot           uint64
	count            uint32
	tofFirst         uint32
	haveTofFirst     bool
	chipCounts       map[uint8]uint32
}

// Extract folds hits into neutrons, one per cluster id in [0, n). labels
// must have the same length as hits and carry the ids a clusterer
// produced. min_tot_threshold filters individual hits out of the
// accumulation before any division; a cluster whose remaining hits sum
// to zero tot is dropped (no neutron emitted).
func Extract(hits []tpx3.Hit, labels []int32, n int, cfg config.ExtractConfig) []tpx3.Neutron {
	if n <= 0 {
		return nil
	}
	accs := make([]accumulator, n)
	for i, l := range labels {
		if l < 0 || int(l) >= n {
			continue
		}
		h := hits[i]
		if h.Tot < cfg.MinTotThreshold {
			continue
		}
		a := &accs[l]
		tot := float64(h.Tot)
		a.sumX += float64(h.X)
		a.sumY += float64(h.Y)
		a.sumXTot += float64(h.X) * tot
		a.sumYTot += float64(h.Y) * tot
		a.sumTot += uint64(h.Tot)
		a.count++
		if !a.haveTofFirst || h.Tof < a.tofFirst {
			a.tofFirst = h.Tof
			a.haveTofFirst = true
		}
		if a.chipCounts == nil {
			a.chipCounts = make(map[uint8]uint32)
		}
		a.chipCounts[h.ChipID]++
	}

	var out []tpx3.Neutron
	for _, a := range accs {
		if a.sumTot == 0 {
			continue
		}
		var x, y float64
		if cfg.WeightedByTot {
			x = (a.sumXTot / float64(a.sumTot)) * cfg.SuperResolutionFactor
			y = (a.sumYTot / float64(a.sumTot)) * cfg.SuperResolutionFactor
		} else {
			x = (a.sumX / float64(a.count)) * cfg.SuperResolutionFactor
			y = (a.sumY / float64(a.count)) * cfg.SuperResolutionFactor
		}
		tot := a.sumTot
		if tot > 0xFFFF {
			tot = 0xFFFF
		}
		out = append(out, tpx3.Neutron{
			X:      x,
			Y:      y,
			Tof:    a.tofFirst,
			Tot:    uint16(tot),
			NHits:  uint16(a.count),
			ChipID: modeChip(a.chipCounts),
		})
	}
	return out
}

// modeChip returns the most frequent chip id among a cluster's surviving
// hits; ties favor the smaller id. All members carry the same chip id
// unless a clusterer merges across chips, which §9's open question
// disclaims.
func modeChip(counts map[uint8]uint32) uint8 {
	var best uint8
	var bestCount uint32
	first := true
	for chip, c := range counts {
		if first || c > bestCount || (c == bestCount && chip < best) {
			best = chip
			bestCount = c
			first = false
		}
	}
	return best
}
