package geyserpb

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers for SubscribeRequest. Map fields are encoded the way
// protoc-gen-go encodes a proto3 `map<string, V>`: as repeated two-field
// entry submessages (1: key string, 2: value V).
const (
	fieldReqAccounts     = 1
	fieldReqSlots        = 2
	fieldReqTransactions = 3
	fieldReqTxStatus     = 4
	fieldReqBlocks       = 5
	fieldReqBlocksMeta   = 6
	fieldReqEntry        = 7
	fieldReqDataSlice    = 8
	fieldReqCommitment   = 9
	fieldReqFromSlot     = 10
	fieldReqPing         = 11
)

// MarshalRequest encodes r in the module's protobuf wire form.
func MarshalRequest(r *SubscribeRequest) []byte {
	var b []byte
	for k, v := range r.Accounts {
		entry := marshalMapEntry(k, marshalFilterAccounts(v))
		b = appendSubmessage(b, fieldReqAccounts, entry)
	}
	for k, v := range r.Slots {
		entry := marshalMapEntry(k, marshalFilterSlots(v))
		b = appendSubmessage(b, fieldReqSlots, entry)
	}
	for k, v := range r.Transactions {
		entry := marshalMapEntry(k, marshalFilterTransactions(v))
		b = appendSubmessage(b, fieldReqTransactions, entry)
	}
	for k, v := range r.TransactionsStatus {
		entry := marshalMapEntry(k, marshalFilterTxStatus(v))
		b = appendSubmessage(b, fieldReqTxStatus, entry)
	}
	for k, v := range r.Blocks {
		entry := marshalMapEntry(k, marshalFilterBlocks(v))
		b = appendSubmessage(b, fieldReqBlocks, entry)
	}
	for k := range r.BlocksMeta {
		entry := marshalMapEntry(k, nil)
		b = appendSubmessage(b, fieldReqBlocksMeta, entry)
	}
	for k := range r.Entry {
		entry := marshalMapEntry(k, nil)
		b = appendSubmessage(b, fieldReqEntry, entry)
	}
	for _, ds := range r.AccountsDataSlice {
		var sub []byte
		sub = appendVarintField(sub, 1, ds.Offset)
		sub = appendVarintField(sub, 2, ds.Length)
		b = appendSubmessage(b, fieldReqDataSlice, sub)
	}
	if r.Commitment != nil {
		b = appendVarintField(b, fieldReqCommitment, uint64(*r.Commitment))
	}
	if r.FromSlot != nil {
		b = appendVarintField(b, fieldReqFromSlot, *r.FromSlot)
	}
	if r.Ping != nil {
		var sub []byte
		sub = appendVarintField(sub, 1, uint64(uint32(r.Ping.ID)))
		b = appendSubmessage(b, fieldReqPing, sub)
	}
	return b
}

func marshalMapEntry(key string, value []byte) []byte {
	var b []byte
	b = appendStringField(b, 1, key)
	if len(value) > 0 {
		b = appendSubmessage(b, 2, value)
	} else {
		// Still emit an (empty) value submessage so a present-but-empty
		// filter (e.g. BlocksMeta / Entry) round-trips as a real map entry.
		b = appendSubmessage(b, 2, nil)
	}
	return b
}

func consumeMapEntry(b []byte) (key string, value []byte, err error) {
	err = walkFields(b, func(num protowire.Number, typ protowire.Type, v []byte) error {
		switch num {
		case 1:
			key = string(v)
		case 2:
			value = v
		}
		return nil
	})
	return key, value, err
}

func marshalFilterAccounts(v *SubscribeRequestFilterAccounts) []byte {
	var b []byte
	for _, a := range v.Account {
		b = appendStringField(b, 1, a)
	}
	for _, o := range v.Owner {
		b = appendStringField(b, 2, o)
	}
	b = appendBoolField(b, 3, v.FilterByCommitment)
	return b
}

func unmarshalFilterAccounts(b []byte) (*SubscribeRequestFilterAccounts, error) {
	v := &SubscribeRequestFilterAccounts{}
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, raw []byte) error {
		switch num {
		case 1:
			v.Account = append(v.Account, string(raw))
		case 2:
			v.Owner = append(v.Owner, string(raw))
		case 3:
			v.FilterByCommitment = bytesAsVarint(raw) != 0
		}
		return nil
	})
	return v, err
}

func marshalFilterSlots(v *SubscribeRequestFilterSlots) []byte {
	var b []byte
	b = appendBoolField(b, 1, v.FilterByCommitment)
	b = appendBoolField(b, 2, v.InterslotUpdates)
	return b
}

func unmarshalFilterSlots(b []byte) (*SubscribeRequestFilterSlots, error) {
	v := &SubscribeRequestFilterSlots{}
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, raw []byte) error {
		switch num {
		case 1:
			v.FilterByCommitment = bytesAsVarint(raw) != 0
		case 2:
			v.InterslotUpdates = bytesAsVarint(raw) != 0
		}
		return nil
	})
	return v, err
}

func marshalFilterTransactions(v *SubscribeRequestFilterTransactions) []byte {
	var b []byte
	if v.Vote != nil {
		b = appendBoolField(b, 1, *v.Vote)
	}
	if v.Failed != nil {
		b = appendBoolField(b, 2, *v.Failed)
	}
	for _, a := range v.AccountInclude {
		b = appendStringField(b, 3, a)
	}
	for _, a := range v.AccountExclude {
		b = appendStringField(b, 4, a)
	}
	return b
}

func unmarshalFilterTransactions(b []byte) (*SubscribeRequestFilterTransactions, error) {
	v := &SubscribeRequestFilterTransactions{}
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, raw []byte) error {
		switch num {
		case 1:
			vote := bytesAsVarint(raw) != 0
			v.Vote = &vote
		case 2:
			failed := bytesAsVarint(raw) != 0
			v.Failed = &failed
		case 3:
			v.AccountInclude = append(v.AccountInclude, string(raw))
		case 4:
			v.AccountExclude = append(v.AccountExclude, string(raw))
		}
		return nil
	})
	return v, err
}

func marshalFilterTxStatus(v *SubscribeRequestFilterTransactionStatus) []byte {
	var b []byte
	for _, a := range v.AccountInclude {
		b = appendStringField(b, 1, a)
	}
	return b
}

func unmarshalFilterTxStatus(b []byte) (*SubscribeRequestFilterTransactionStatus, error) {
	v := &SubscribeRequestFilterTransactionStatus{}
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, raw []byte) error {
		if num == 1 {
			v.AccountInclude = append(v.AccountInclude, string(raw))
		}
		return nil
	})
	return v, err
}

func marshalFilterBlocks(v *SubscribeRequestFilterBlocks) []byte {
	var b []byte
	for _, a := range v.AccountInclude {
		b = appendStringField(b, 1, a)
	}
	b = appendBoolField(b, 2, v.IncludeTransactions)
	return b
}

func unmarshalFilterBlocks(b []byte) (*SubscribeRequestFilterBlocks, error) {
	v := &SubscribeRequestFilterBlocks{}
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, raw []byte) error {
		switch num {
		case 1:
			v.AccountInclude = append(v.AccountInclude, string(raw))
		case 2:
			v.IncludeTransactions = bytesAsVarint(raw) != 0
		}
		return nil
	})
	return v, err
}

// UnmarshalRequest decodes the wire form produced by MarshalRequest.
func UnmarshalRequest(b []byte) (*SubscribeRequest, error) {
	r := &SubscribeRequest{}
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, raw []byte) error {
		switch num {
		case fieldReqAccounts:
			k, v, err := consumeMapEntry(raw)
			if err != nil {
				return err
			}
			fv, err := unmarshalFilterAccounts(v)
			if err != nil {
				return err
			}
			if r.Accounts == nil {
				r.Accounts = map[string]*SubscribeRequestFilterAccounts{}
			}
			r.Accounts[k] = fv
		case fieldReqSlots:
			k, v, err := consumeMapEntry(raw)
			if err != nil {
				return err
			}
			fv, err := unmarshalFilterSlots(v)
			if err != nil {
				return err
			}
			if r.Slots == nil {
				r.Slots = map[string]*SubscribeRequestFilterSlots{}
			}
			r.Slots[k] = fv
		case fieldReqTransactions:
			k, v, err := consumeMapEntry(raw)
			if err != nil {
				return err
			}
			fv, err := unmarshalFilterTransactions(v)
			if err != nil {
				return err
			}
			if r.Transactions == nil {
				r.Transactions = map[string]*SubscribeRequestFilterTransactions{}
			}
			r.Transactions[k] = fv
		case fieldReqTxStatus:
			k, v, err := consumeMapEntry(raw)
			if err != nil {
				return err
			}
			fv, err := unmarshalFilterTxStatus(v)
			if err != nil {
				return err
			}
			if r.TransactionsStatus == nil {
				r.TransactionsStatus = map[string]*SubscribeRequestFilterTransactionStatus{}
			}
			r.TransactionsStatus[k] = fv
		case fieldReqBlocks:
			k, v, err := consumeMapEntry(raw)
			if err != nil {
				return err
			}
			fv, err := unmarshalFilterBlocks(v)
			if err != nil {
				return err
			}
			if r.Blocks == nil {
				r.Blocks = map[string]*SubscribeRequestFilterBlocks{}
			}
			r.Blocks[k] = fv
		case fieldReqBlocksMeta:
			k, _, err := consumeMapEntry(raw)
			if err != nil {
				return err
			}
			if r.BlocksMeta == nil {
				r.BlocksMeta = map[string]*SubscribeRequestFilterBlocksMeta{}
			}
			r.BlocksMeta[k] = &SubscribeRequestFilterBlocksMeta{}
		case fieldReqEntry:
			k, _, err := consumeMapEntry(raw)
			if err != nil {
				return err
			}
			if r.Entry == nil {
				r.Entry = map[string]*SubscribeRequestFilterEntry{}
			}
			r.Entry[k] = &SubscribeRequestFilterEntry{}
		case fieldReqDataSlice:
			ds := &SubscribeRequestAccountsDataSlice{}
			if err := walkFields(raw, func(n protowire.Number, t protowire.Type, v []byte) error {
				switch n {
				case 1:
					ds.Offset = bytesAsVarint(v)
				case 2:
					ds.Length = bytesAsVarint(v)
				}
				return nil
			}); err != nil {
				return err
			}
			r.AccountsDataSlice = append(r.AccountsDataSlice, ds)
		case fieldReqCommitment:
			c := CommitmentLevel(bytesAsVarint(raw))
			r.Commitment = &c
		case fieldReqFromSlot:
			s := bytesAsVarint(raw)
			r.FromSlot = &s
		case fieldReqPing:
			id, _, n := consumeVarintField(raw)
			if n < 0 {
				return fmt.Errorf("geyserpb: malformed request ping")
			}
			r.Ping = &SubscribeRequestPing{ID: int32(id)}
		}
		return nil
	})
	return r, err
}
