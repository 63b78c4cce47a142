// Package resume computes the from_slot to request on the next reconnect
// attempt, from the slot tracker's observed position and the subscription's
// commitment level.
package resume

import "github.com/geysersdk/client/geyserpb"

// ForkSafetyMargin is the number of slots rewound under Processed commitment
// to avoid resuming on a slot that was later rolled back by a fork. 31 is
// the practical maximum fork depth the server supports for replay.
const ForkSafetyMargin = 31

// Compute returns the from_slot to use for the next attempt, given the
// highest slot tracked so far and the subscription's commitment level:
//
//   - Processed: trackedSlot - ForkSafetyMargin, saturating at 0.
//   - Confirmed or Finalized: trackedSlot exactly.
//   - Any other value: treated like Processed (defensive default).
func Compute(trackedSlot uint64, commitment geyserpb.CommitmentLevel) uint64 {
	switch commitment {
	case geyserpb.CommitmentLevelConfirmed, geyserpb.CommitmentLevelFinalized:
		return trackedSlot
	default:
		if trackedSlot < ForkSafetyMargin {
			return 0
		}
		return trackedSlot - ForkSafetyMargin
	}
}

// Apply returns a clone of req with FromSlot recomputed for the next
// attempt: cleared when replay is disabled or no slot has been observed yet,
// otherwise set via Compute using req's commitment level (defaulting to
// Processed when unset).
func Apply(req *geyserpb.SubscribeRequest, trackedSlot uint64, replayEnabled bool) *geyserpb.SubscribeRequest {
	out := req.Clone()

	if !replayEnabled || trackedSlot == 0 {
		out.FromSlot = nil
		return out
	}

	commitment := geyserpb.CommitmentLevelProcessed
	if out.Commitment != nil {
		commitment = *out.Commitment
	}

	from := Compute(trackedSlot, commitment)
	out.FromSlot = &from
	return out
}
