// Package rollover implements the two independent 30-bit rollover
// corrections of §4.3: the hit-relative correction applied while
// decoding a single hit against its section-local trigger, and the
// cross-section trigger epoch tracked by the merger across a chip's
// whole stream.
package rollover

const (
	// HitWrapGuard is the threshold (in ticks) used to detect that a
	// hit's coarse counter has wrapped into the next epoch while the
	// trigger counter it is compared against has not.
	HitWrapGuard = 0x00400000

	// EpochExtent is added to a hit's raw coarse timestamp once the
	// hit-relative wrap is detected.
	EpochExtent = 0x40000000

	// TriggerMask masks a trigger timestamp down to its 30 significant
	// bits.
	TriggerMask = 0x3FFFFFFF

	// HalfEpoch is the threshold used to distinguish a genuine
	// 30-bit trigger rollover from an out-of-order trigger value.
	HalfEpoch = 1 << 29
)

// ExtendHitTimestamp applies the hit-relative correction of §4.3: if the
// hit's raw coarse timestamp has wrapped into the next epoch ahead of
// the trigger it is being timed against, extend it by one epoch.
func ExtendHitTimestamp(rawTimestamp, currentTrigger uint32) uint32 {
	// The guarded sum is masked to 30 bits before comparing: a raw
	// timestamp within HitWrapGuard of the top of its 30-bit range
	// overflows past it here, and a small masked result below the
	// trigger is what identifies a hit that wrapped first.
	if (rawTimestamp+HitWrapGuard)&TriggerMask < currentTrigger {
		return rawTimestamp + EpochExtent
	}
	return rawTimestamp
}

// ChipState tracks one chip's (epoch, trigger) pair across however many
// sections and pulses that chip contributes, per §4.3's "cross-section
// trigger epoch".
type ChipState struct {
	Epoch      uint64
	Trigger    uint32
	hasTrigger bool
}

// Observe folds in a newly seen 30-bit trigger value, advancing the
// epoch when the value rolls over, and reports whether the transition
// was a non-fatal TimeOrdering anomaly (a backward jump too small to be
// explained by rollover — §4.4's failure mode). The chip's epoch is
// still advanced in that case, so the merge key stays monotone.
func (s *ChipState) Observe(newTrigger uint32) (warning bool) {
	newTrigger &= TriggerMask
	if !s.hasTrigger {
		s.Trigger = newTrigger
		s.hasTrigger = true
		return false
	}
	if newTrigger < s.Trigger {
		delta := s.Trigger - newTrigger
		if delta <= HalfEpoch {
			warning = true
		}
		s.Epoch++
	}
	s.Trigger = newTrigger
	return warning
}
