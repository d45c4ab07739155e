// Package tpx3 holds the data types shared across the decoding, time
// ordering, clustering and extraction stages of the pipeline: they are
// produced by one stage, referenced by offset or index rather than by
// owning pointer where possible, and consumed by exactly one downstream
// stage.
package tpx3

// NumChips is the number of sensor chips in the quad detector arrangement
// this engine targets.
const NumChips = 4

// Hit is one decoded detector event. ClusterID is -1 until a clusterer
// assigns it; a value >= 0 identifies exactly one neutron.
type Hit struct {
	Tof       uint32 // 25 ns ticks since the owning trigger, rollover-corrected
	X         uint16 // global detector column
	Y         uint16 // global detector row
	Timestamp uint32 // rollover-extended coarse time
	Tot       uint16 // charge proxy, 10 significant bits
	ChipID    uint8
	ClusterID int32
}

// Section is a contiguous byte range of the source stream owned by one
// chip, delimited by header packets. InitialTrigger is nil when no prior
// section for this chip supplied a trigger state.
type Section struct {
	Start, End      int
	ChipID          uint8
	InitialTrigger  *uint32
	FinalTrigger    uint32
	HasFinalTrigger bool
}

// Len reports the section's byte length.
func (s Section) Len() int { return s.End - s.Start }

// Neutron is an aggregated centroid emitted by the extraction stage.
type Neutron struct {
	X, Y  float64
	Tof   uint32
	Tot   uint16
	NHits uint16
	ChipID uint8
}
