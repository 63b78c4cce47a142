// Package geyserpb defines the wire-level message types exchanged with a
// Geyser gRPC service: the SubscribeRequest a client sends and the
// SubscribeUpdate variants the server pushes back.
//
// The real Geyser IDL (the .proto files an operator's server is generated
// from) is external to this module. geyserpb instead hand-authors the minimal message set this client needs,
// encoded on the wire with the same low-level primitives protoc-gen-go
// relies on (google.golang.org/protobuf/encoding/protowire), so a byte
// payload produced here is a valid protobuf encoding of the corresponding
// field numbers even without a generated .pb.go file.
package geyserpb

// CommitmentLevel is the server-side finality tier requested in a
// SubscribeRequest and echoed, where relevant, in resume-point computation.
type CommitmentLevel int32

const (
	CommitmentLevelProcessed CommitmentLevel = 0
	CommitmentLevelConfirmed CommitmentLevel = 1
	CommitmentLevelFinalized CommitmentLevel = 2
)

func (c CommitmentLevel) String() string {
	switch c {
	case CommitmentLevelProcessed:
		return "processed"
	case CommitmentLevelConfirmed:
		return "confirmed"
	case CommitmentLevelFinalized:
		return "finalized"
	default:
		return "unknown"
	}
}

// ParseCommitmentLevel converts a lowercase config string to a
// CommitmentLevel. It is the inverse of CommitmentLevel.String.
func ParseCommitmentLevel(s string) (CommitmentLevel, bool) {
	switch s {
	case "", "processed":
		return CommitmentLevelProcessed, true
	case "confirmed":
		return CommitmentLevelConfirmed, true
	case "finalized":
		return CommitmentLevelFinalized, true
	default:
		return 0, false
	}
}

// SubscribeRequestFilterAccounts restricts the Account updates a filter key
// matches.
type SubscribeRequestFilterAccounts struct {
	Account        []string
	Owner          []string
	FilterByCommitment bool
}

// SubscribeRequestFilterSlots restricts Slot updates.
type SubscribeRequestFilterSlots struct {
	FilterByCommitment bool
	InterslotUpdates   bool
}

// SubscribeRequestFilterTransactions restricts Transaction updates.
type SubscribeRequestFilterTransactions struct {
	Vote            *bool
	Failed          *bool
	AccountInclude  []string
	AccountExclude  []string
}

// SubscribeRequestFilterTransactionStatus restricts TransactionStatus updates.
type SubscribeRequestFilterTransactionStatus struct {
	AccountInclude []string
}

// SubscribeRequestFilterBlocks restricts Block updates.
type SubscribeRequestFilterBlocks struct {
	AccountInclude []string
	IncludeTransactions bool
}

// SubscribeRequestFilterBlocksMeta restricts BlockMeta updates. It carries no
// fields of its own; presence of a key is the filter.
type SubscribeRequestFilterBlocksMeta struct{}

// SubscribeRequestFilterEntry restricts Entry updates. It carries no fields
// of its own; presence of a key is the filter.
type SubscribeRequestFilterEntry struct{}

// SubscribeRequestAccountsDataSlice requests that only a byte range of
// account data be returned, to reduce payload size.
type SubscribeRequestAccountsDataSlice struct {
	Offset uint64
	Length uint64
}

// SubscribeRequestPing carries a liveness-probe identifier.
type SubscribeRequestPing struct {
	ID int32
}

// SubscribeRequest is the domain-level, mutable subscription shape. Every
// new SubscribeRequest sent on the bidirectional stream fully replaces the
// server's notion of what this connection is subscribed to.
type SubscribeRequest struct {
	Accounts           map[string]*SubscribeRequestFilterAccounts
	Slots              map[string]*SubscribeRequestFilterSlots
	Transactions       map[string]*SubscribeRequestFilterTransactions
	TransactionsStatus map[string]*SubscribeRequestFilterTransactionStatus
	Blocks             map[string]*SubscribeRequestFilterBlocks
	BlocksMeta         map[string]*SubscribeRequestFilterBlocksMeta
	Entry              map[string]*SubscribeRequestFilterEntry
	AccountsDataSlice  []*SubscribeRequestAccountsDataSlice
	Commitment         *CommitmentLevel
	FromSlot           *uint64
	Ping               *SubscribeRequestPing
}

// Clone returns a copy of r with its own maps, filter value structs,
// AccountsDataSlice slice and scalar pointers, so callers can add, replace or
// remove entries without touching r. Slice fields inside the filter values
// (such as Account or AccountInclude) and the AccountsDataSlice elements are
// shared with r, not copied.
func (r *SubscribeRequest) Clone() *SubscribeRequest {
	if r == nil {
		return &SubscribeRequest{}
	}
	out := &SubscribeRequest{
		Accounts:           cloneMap(r.Accounts),
		Slots:              cloneMap(r.Slots),
		Transactions:       cloneMap(r.Transactions),
		TransactionsStatus: cloneMap(r.TransactionsStatus),
		Blocks:             cloneMap(r.Blocks),
		BlocksMeta:         cloneMap(r.BlocksMeta),
		Entry:              cloneMap(r.Entry),
	}
	if len(r.AccountsDataSlice) > 0 {
		out.AccountsDataSlice = append([]*SubscribeRequestAccountsDataSlice(nil), r.AccountsDataSlice...)
	}
	if r.Commitment != nil {
		c := *r.Commitment
		out.Commitment = &c
	}
	if r.FromSlot != nil {
		s := *r.FromSlot
		out.FromSlot = &s
	}
	if r.Ping != nil {
		p := *r.Ping
		out.Ping = &p
	}
	return out
}

func cloneMap[V any](m map[string]*V) map[string]*V {
	if m == nil {
		return nil
	}
	out := make(map[string]*V, len(m))
	for k, v := range m {
		cp := *v
		out[k] = &cp
	}
	return out
}

// UpdateAccount is the Account variant payload.
type UpdateAccount struct {
	Pubkey     []byte
	Owner      []byte
	Lamports   uint64
	Data       []byte
	Slot       uint64
	Executable bool
	Write      bool
}

// UpdateSlot is the Slot variant payload.
type UpdateSlot struct {
	Slot       uint64
	Parent     *uint64
	Status     CommitmentLevel
}

// UpdateTransaction is the Transaction variant payload.
type UpdateTransaction struct {
	Signature []byte
	IsVote    bool
	Slot      uint64
}

// UpdateTransactionStatus is the TransactionStatus variant payload.
type UpdateTransactionStatus struct {
	Signature []byte
	Slot      uint64
}

// UpdateBlock is the Block variant payload.
type UpdateBlock struct {
	Slot           uint64
	Blockhash      string
	BlockTimeUnix  int64
}

// UpdateBlockMeta is the BlockMeta variant payload.
type UpdateBlockMeta struct {
	Slot      uint64
	Blockhash string
}

// UpdateEntry is the Entry variant payload.
type UpdateEntry struct {
	Slot  uint64
	Index uint64
}

// UpdatePing is the server-originated Ping variant; the client answers with
// UpdatePong.
type UpdatePing struct{}

// UpdatePong is the Pong variant, carrying back the ping id.
type UpdatePong struct {
	ID int32
}

// SubscribeUpdate is the inbound sum type. Exactly one of the Update_* fields
// is non-nil; callers should switch on it exhaustively rather than doing
// runtime type assertions against an interface.
type SubscribeUpdate struct {
	Filters        []string
	CreatedAtUnixNano int64 // 0 when the server did not supply a timestamp

	UpdateAccount           *UpdateAccount
	UpdateSlot              *UpdateSlot
	UpdateTransaction       *UpdateTransaction
	UpdateTransactionStatus *UpdateTransactionStatus
	UpdateBlock             *UpdateBlock
	UpdateBlockMeta         *UpdateBlockMeta
	UpdateEntry             *UpdateEntry
	UpdatePing              *UpdatePing
	UpdatePong              *UpdatePong
}

// Clone returns a shallow copy of u with its own Filters slice, so callers
// may strip/append filter identifiers without mutating the original (e.g. a
// session forwarding a message whose internal filter id must be stripped
// before the caller sees it).
func (u *SubscribeUpdate) Clone() *SubscribeUpdate {
	if u == nil {
		return nil
	}
	cp := *u
	if u.Filters != nil {
		cp.Filters = append([]string(nil), u.Filters...)
	}
	return &cp
}
