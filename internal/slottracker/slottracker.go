// Package slottracker implements the engine's internal, hidden slot filter:
// when replay is enabled, the engine needs a slot event stream it can use to
// track resume position independent of whatever the caller subscribed to,
// and it must never let that synthetic filter leak to the caller.
package slottracker

import (
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/geysersdk/client/geyserpb"
)

// IDPrefix is the namespace the engine reserves for its own filter keys.
// SubscribeRequest filter-map keys chosen by a caller must never collide
// with a generated tracker ID; the random UUID suffix makes a collision
// astronomically unlikely without requiring coordination with the caller.
const IDPrefix = "__internal_slot_tracker_"

// Tracker owns one subscription's internal slot-tracking filter entry and
// the atomic cell recording the highest slot number observed so far.
type Tracker struct {
	id   string
	slot atomic.Uint64
}

// New generates a Tracker with a fresh, collision-resistant internal filter
// ID.
func New() *Tracker {
	return &Tracker{id: IDPrefix + uuid.NewString()}
}

// ID returns this tracker's reserved filter-map key.
func (t *Tracker) ID() string { return t.id }

// Slot returns the highest slot number observed so far (0 before the first
// Slot event arrives).
func (t *Tracker) Slot() uint64 { return t.slot.Load() }

// Observe records slot as seen. The cell only ever moves forward: an
// out-of-order or stale Slot event (lower than the current value) is
// ignored, matching the glossary's definition of tracked slot as "the
// highest slot number observed".
func (t *Tracker) Observe(slot uint64) {
	for {
		cur := t.slot.Load()
		if slot <= cur {
			return
		}
		if t.slot.CompareAndSwap(cur, slot) {
			return
		}
	}
}

// InjectFilter returns a clone of req with this tracker's internal slot
// filter entry added, configured to filter by commitment and disable
// inter-slot updates. Call once, before the first attempt, only when replay
// is enabled.
func (t *Tracker) InjectFilter(req *geyserpb.SubscribeRequest) *geyserpb.SubscribeRequest {
	out := req.Clone()
	if out.Slots == nil {
		out.Slots = map[string]*geyserpb.SubscribeRequestFilterSlots{}
	}
	out.Slots[t.id] = &geyserpb.SubscribeRequestFilterSlots{
		FilterByCommitment: true,
		InterslotUpdates:   false,
	}
	return out
}

// StripInternalID inspects filters for the presence of internalID and
// reports how the session should handle the message:
//
//   - If filters contains only internalID, the message was synthetic and
//     must be dropped: ok is false.
//   - If internalID is present alongside other identifiers, it returns the
//     filter list with internalID removed: ok is true.
//   - If internalID is absent, filters is returned unchanged: ok is true.
func StripInternalID(filters []string, internalID string) (stripped []string, ok bool) {
	if len(filters) == 0 {
		return filters, true
	}

	found := false
	for _, f := range filters {
		if f == internalID {
			found = true
			break
		}
	}
	if !found {
		return filters, true
	}
	if len(filters) == 1 {
		return nil, false
	}

	out := make([]string, 0, len(filters)-1)
	for _, f := range filters {
		if f != internalID {
			out = append(out, f)
		}
	}
	return out, true
}
