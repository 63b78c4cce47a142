// Package merger implements the pure function that folds a user-supplied
// subscription modification into the engine's cached current request, so
// that a later reconnect replays the request's latest shape.
package merger

import "github.com/geysersdk/client/geyserpb"

// Merge returns a new SubscribeRequest that is base with update folded in:
//
//  1. If replayEnabled and base.Slots[internalID] exists, it is remembered.
//  2. Every named-map field in update is inserted into the result
//     (update wins on key conflict; an empty map in update changes nothing).
//  3. update.AccountsDataSlice is appended to the result's.
//  4. update.Commitment overwrites the result's when set.
//  5. update.FromSlot overwrites the result's when set.
//  6. The remembered internal slot entry is re-inserted, so it survives step 2
//     even if update happened to carry the same key.
//
// Merge never mutates base or update. The result has its own maps and filter
// value structs; slice fields inside those values and the AccountsDataSlice
// elements are shared with base and update.
func Merge(base, update *geyserpb.SubscribeRequest, internalID string, replayEnabled bool) *geyserpb.SubscribeRequest {
	if base == nil {
		base = &geyserpb.SubscribeRequest{}
	}
	if update == nil {
		update = &geyserpb.SubscribeRequest{}
	}

	var remembered *geyserpb.SubscribeRequestFilterSlots
	if replayEnabled {
		if v, ok := base.Slots[internalID]; ok {
			cp := *v
			remembered = &cp
		}
	}

	out := base.Clone()

	mergeInto(&out.Accounts, update.Accounts)
	mergeInto(&out.Slots, update.Slots)
	mergeInto(&out.Transactions, update.Transactions)
	mergeInto(&out.TransactionsStatus, update.TransactionsStatus)
	mergeInto(&out.Blocks, update.Blocks)
	mergeInto(&out.BlocksMeta, update.BlocksMeta)
	mergeInto(&out.Entry, update.Entry)

	if len(update.AccountsDataSlice) > 0 {
		out.AccountsDataSlice = append(out.AccountsDataSlice, update.AccountsDataSlice...)
	}

	if update.Commitment != nil {
		c := *update.Commitment
		out.Commitment = &c
	}
	if update.FromSlot != nil {
		s := *update.FromSlot
		out.FromSlot = &s
	}

	if replayEnabled && remembered != nil {
		if out.Slots == nil {
			out.Slots = map[string]*geyserpb.SubscribeRequestFilterSlots{}
		}
		out.Slots[internalID] = remembered
	}

	return out
}

// mergeInto inserts every entry of src into *dst, creating *dst if nil.
// Entries in src overwrite entries in *dst with the same key. An empty or
// nil src leaves *dst unchanged.
func mergeInto[V any](dst *map[string]*V, src map[string]*V) {
	if len(src) == 0 {
		return
	}
	if *dst == nil {
		*dst = make(map[string]*V, len(src))
	}
	for k, v := range src {
		cp := *v
		(*dst)[k] = &cp
	}
}
