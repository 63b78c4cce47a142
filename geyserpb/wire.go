package geyserpb

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers for SubscribeUpdate and its variant payloads. These are
// arbitrary (no .proto file ships with this module — see the package comment
// in types.go) but fixed,
// so two builds of this package agree on the wire shape.
const (
	fieldUpdateFilters     = 1
	fieldUpdateCreatedAt   = 2
	fieldUpdateAccount     = 3
	fieldUpdateSlot        = 4
	fieldUpdateTransaction = 5
	fieldUpdateTxStatus    = 6
	fieldUpdateBlock       = 7
	fieldUpdateBlockMeta   = 8
	fieldUpdateEntry       = 9
	fieldUpdatePing        = 10
	fieldUpdatePong        = 11
)

// MarshalUpdate encodes u in the module's protobuf wire form. This is the
// exact byte payload delivered through the host-callback output adapter.
func MarshalUpdate(u *SubscribeUpdate) ([]byte, error) {
	var b []byte
	for _, f := range u.Filters {
		b = protowire.AppendTag(b, fieldUpdateFilters, protowire.BytesType)
		b = protowire.AppendString(b, f)
	}
	if u.CreatedAtUnixNano != 0 {
		b = protowire.AppendTag(b, fieldUpdateCreatedAt, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(u.CreatedAtUnixNano))
	}

	switch {
	case u.UpdateAccount != nil:
		sub := marshalAccount(u.UpdateAccount)
		b = appendSubmessage(b, fieldUpdateAccount, sub)
	case u.UpdateSlot != nil:
		sub := marshalSlot(u.UpdateSlot)
		b = appendSubmessage(b, fieldUpdateSlot, sub)
	case u.UpdateTransaction != nil:
		sub := marshalTransaction(u.UpdateTransaction)
		b = appendSubmessage(b, fieldUpdateTransaction, sub)
	case u.UpdateTransactionStatus != nil:
		sub := marshalTransactionStatus(u.UpdateTransactionStatus)
		b = appendSubmessage(b, fieldUpdateTxStatus, sub)
	case u.UpdateBlock != nil:
		sub := marshalBlock(u.UpdateBlock)
		b = appendSubmessage(b, fieldUpdateBlock, sub)
	case u.UpdateBlockMeta != nil:
		sub := marshalBlockMeta(u.UpdateBlockMeta)
		b = appendSubmessage(b, fieldUpdateBlockMeta, sub)
	case u.UpdateEntry != nil:
		sub := marshalEntry(u.UpdateEntry)
		b = appendSubmessage(b, fieldUpdateEntry, sub)
	case u.UpdatePing != nil:
		b = appendSubmessage(b, fieldUpdatePing, nil)
	case u.UpdatePong != nil:
		sub := protowire.AppendTag(nil, 1, protowire.VarintType)
		sub = protowire.AppendVarint(sub, uint64(uint32(u.UpdatePong.ID)))
		b = appendSubmessage(b, fieldUpdatePong, sub)
	default:
		return nil, fmt.Errorf("geyserpb: SubscribeUpdate has no variant set")
	}
	return b, nil
}

func appendSubmessage(b []byte, num protowire.Number, sub []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, sub)
}

// UnmarshalUpdate decodes the wire form produced by MarshalUpdate. Unknown
// fields are skipped for forward compatibility.
func UnmarshalUpdate(b []byte) (*SubscribeUpdate, error) {
	u := &SubscribeUpdate{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]
		switch num {
		case fieldUpdateFilters:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			u.Filters = append(u.Filters, string(v))
			b = b[n:]
		case fieldUpdateCreatedAt:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			u.CreatedAtUnixNano = int64(v)
			b = b[n:]
		case fieldUpdateAccount:
			sub, n, err := consumeSubmessage(b)
			if err != nil {
				return nil, err
			}
			if u.UpdateAccount, err = unmarshalAccount(sub); err != nil {
				return nil, err
			}
			b = b[n:]
		case fieldUpdateSlot:
			sub, n, err := consumeSubmessage(b)
			if err != nil {
				return nil, err
			}
			if u.UpdateSlot, err = unmarshalSlot(sub); err != nil {
				return nil, err
			}
			b = b[n:]
		case fieldUpdateTransaction:
			sub, n, err := consumeSubmessage(b)
			if err != nil {
				return nil, err
			}
			if u.UpdateTransaction, err = unmarshalTransaction(sub); err != nil {
				return nil, err
			}
			b = b[n:]
		case fieldUpdateTxStatus:
			sub, n, err := consumeSubmessage(b)
			if err != nil {
				return nil, err
			}
			if u.UpdateTransactionStatus, err = unmarshalTransactionStatus(sub); err != nil {
				return nil, err
			}
			b = b[n:]
		case fieldUpdateBlock:
			sub, n, err := consumeSubmessage(b)
			if err != nil {
				return nil, err
			}
			if u.UpdateBlock, err = unmarshalBlock(sub); err != nil {
				return nil, err
			}
			b = b[n:]
		case fieldUpdateBlockMeta:
			sub, n, err := consumeSubmessage(b)
			if err != nil {
				return nil, err
			}
			if u.UpdateBlockMeta, err = unmarshalBlockMeta(sub); err != nil {
				return nil, err
			}
			b = b[n:]
		case fieldUpdateEntry:
			sub, n, err := consumeSubmessage(b)
			if err != nil {
				return nil, err
			}
			if u.UpdateEntry, err = unmarshalEntry(sub); err != nil {
				return nil, err
			}
			b = b[n:]
		case fieldUpdatePing:
			_, n, err := consumeSubmessage(b)
			if err != nil {
				return nil, err
			}
			u.UpdatePing = &UpdatePing{}
			b = b[n:]
		case fieldUpdatePong:
			sub, n, err := consumeSubmessage(b)
			if err != nil {
				return nil, err
			}
			id, _, idn := consumeVarintField(sub)
			if idn < 0 {
				return nil, fmt.Errorf("geyserpb: malformed pong")
			}
			u.UpdatePong = &UpdatePong{ID: int32(id)}
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			b = b[n:]
		}
	}
	return u, nil
}

func consumeSubmessage(b []byte) ([]byte, int, error) {
	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return nil, 0, protowire.ParseError(n)
	}
	return v, n, nil
}

// consumeVarintField reads a single "field 1: varint" submessage body, the
// shape of the Pong update and the request Ping bodies.
func consumeVarintField(b []byte) (val uint64, num protowire.Number, n int) {
	if len(b) == 0 {
		return 0, 0, 0
	}
	gotNum, _, tn := protowire.ConsumeTag(b)
	if tn < 0 {
		return 0, 0, tn
	}
	v, vn := protowire.ConsumeVarint(b[tn:])
	if vn < 0 {
		return 0, 0, vn
	}
	return v, gotNum, tn + vn
}

// ── UpdateAccount ────────────────────────────────────────────────────────────

func marshalAccount(a *UpdateAccount) []byte {
	var b []byte
	b = appendBytesField(b, 1, a.Pubkey)
	b = appendBytesField(b, 2, a.Owner)
	b = appendVarintField(b, 3, a.Lamports)
	b = appendBytesField(b, 4, a.Data)
	b = appendVarintField(b, 5, a.Slot)
	b = appendBoolField(b, 6, a.Executable)
	b = appendBoolField(b, 7, a.Write)
	return b
}

func unmarshalAccount(b []byte) (*UpdateAccount, error) {
	a := &UpdateAccount{}
	return a, walkFields(b, func(num protowire.Number, typ protowire.Type, v []byte) error {
		switch num {
		case 1:
			a.Pubkey = append([]byte(nil), v...)
		case 2:
			a.Owner = append([]byte(nil), v...)
		case 3:
			a.Lamports = bytesAsVarint(v)
		case 4:
			a.Data = append([]byte(nil), v...)
		case 5:
			a.Slot = bytesAsVarint(v)
		case 6:
			a.Executable = bytesAsVarint(v) != 0
		case 7:
			a.Write = bytesAsVarint(v) != 0
		}
		return nil
	})
}

// ── UpdateSlot ───────────────────────────────────────────────────────────────

func marshalSlot(s *UpdateSlot) []byte {
	var b []byte
	b = appendVarintField(b, 1, s.Slot)
	if s.Parent != nil {
		b = appendVarintField(b, 2, *s.Parent)
	}
	b = appendVarintField(b, 3, uint64(s.Status))
	return b
}

func unmarshalSlot(b []byte) (*UpdateSlot, error) {
	s := &UpdateSlot{}
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, v []byte) error {
		switch num {
		case 1:
			s.Slot = bytesAsVarint(v)
		case 2:
			parent := bytesAsVarint(v)
			s.Parent = &parent
		case 3:
			s.Status = CommitmentLevel(bytesAsVarint(v))
		}
		return nil
	})
	return s, err
}

// ── UpdateTransaction ────────────────────────────────────────────────────────

func marshalTransaction(t *UpdateTransaction) []byte {
	var b []byte
	b = appendBytesField(b, 1, t.Signature)
	b = appendBoolField(b, 2, t.IsVote)
	b = appendVarintField(b, 3, t.Slot)
	return b
}

func unmarshalTransaction(b []byte) (*UpdateTransaction, error) {
	t := &UpdateTransaction{}
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, v []byte) error {
		switch num {
		case 1:
			t.Signature = append([]byte(nil), v...)
		case 2:
			t.IsVote = bytesAsVarint(v) != 0
		case 3:
			t.Slot = bytesAsVarint(v)
		}
		return nil
	})
	return t, err
}

// ── UpdateTransactionStatus ──────────────────────────────────────────────────

func marshalTransactionStatus(t *UpdateTransactionStatus) []byte {
	var b []byte
	b = appendBytesField(b, 1, t.Signature)
	b = appendVarintField(b, 2, t.Slot)
	return b
}

func unmarshalTransactionStatus(b []byte) (*UpdateTransactionStatus, error) {
	t := &UpdateTransactionStatus{}
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, v []byte) error {
		switch num {
		case 1:
			t.Signature = append([]byte(nil), v...)
		case 2:
			t.Slot = bytesAsVarint(v)
		}
		return nil
	})
	return t, err
}

// ── UpdateBlock ──────────────────────────────────────────────────────────────

func marshalBlock(blk *UpdateBlock) []byte {
	var b []byte
	b = appendVarintField(b, 1, blk.Slot)
	b = appendStringField(b, 2, blk.Blockhash)
	b = appendVarintField(b, 3, uint64(blk.BlockTimeUnix))
	return b
}

func unmarshalBlock(b []byte) (*UpdateBlock, error) {
	blk := &UpdateBlock{}
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, v []byte) error {
		switch num {
		case 1:
			blk.Slot = bytesAsVarint(v)
		case 2:
			blk.Blockhash = string(v)
		case 3:
			blk.BlockTimeUnix = int64(bytesAsVarint(v))
		}
		return nil
	})
	return blk, err
}

// ── UpdateBlockMeta ──────────────────────────────────────────────────────────

func marshalBlockMeta(m *UpdateBlockMeta) []byte {
	var b []byte
	b = appendVarintField(b, 1, m.Slot)
	b = appendStringField(b, 2, m.Blockhash)
	return b
}

func unmarshalBlockMeta(b []byte) (*UpdateBlockMeta, error) {
	m := &UpdateBlockMeta{}
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, v []byte) error {
		switch num {
		case 1:
			m.Slot = bytesAsVarint(v)
		case 2:
			m.Blockhash = string(v)
		}
		return nil
	})
	return m, err
}

// ── UpdateEntry ──────────────────────────────────────────────────────────────

func marshalEntry(e *UpdateEntry) []byte {
	var b []byte
	b = appendVarintField(b, 1, e.Slot)
	b = appendVarintField(b, 2, e.Index)
	return b
}

func unmarshalEntry(b []byte) (*UpdateEntry, error) {
	e := &UpdateEntry{}
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, v []byte) error {
		switch num {
		case 1:
			e.Slot = bytesAsVarint(v)
		case 2:
			e.Index = bytesAsVarint(v)
		}
		return nil
	})
	return e, err
}

// ── shared helpers ───────────────────────────────────────────────────────────

// walkFields iterates the top-level fields of a message body, normalizing
// both varint and length-delimited values to a raw []byte so callers can
// decode with bytesAsVarint or use the bytes directly. Fixed32/64 fields are
// not used by this message set and are skipped if encountered.
func walkFields(b []byte, fn func(num protowire.Number, typ protowire.Type, v []byte) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		switch typ {
		case protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			buf := protowire.AppendVarint(nil, v)
			if err := fn(num, typ, buf); err != nil {
				return err
			}
			b = b[n:]
		case protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			if err := fn(num, typ, v); err != nil {
				return err
			}
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			b = b[n:]
		}
	}
	return nil
}

// bytesAsVarint decodes a buffer produced by protowire.AppendVarint back to
// its numeric value.
func bytesAsVarint(b []byte) uint64 {
	v, _ := protowire.ConsumeVarint(b)
	return v
}

func appendVarintField(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendBoolField(b []byte, num protowire.Number, v bool) []byte {
	var iv uint64
	if v {
		iv = 1
	}
	return appendVarintField(b, num, iv)
}

func appendBytesField(b []byte, num protowire.Number, v []byte) []byte {
	if len(v) == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func appendStringField(b []byte, num protowire.Number, v string) []byte {
	if v == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}
