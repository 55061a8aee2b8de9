// Package chain defines the external Block Source contract (spec §6) and
// the in-scope Action Decoder that turns a block's raw log payload bytes
// into typed Action records. The block source implementation itself (the
// substream client, the Ethereum node connection) is out of scope; only
// this contract and the byte-layout decoder are implemented here.
package chain

import "github.com/hermesgraph/ingestd/internal/ids"

// Clock carries a block's number and timestamp.
type Clock struct {
	Number    uint64
	Timestamp int64 // unix seconds
}

// BlockScopedData is one unit from the block source stream: an opaque
// resume cursor, a clock, and the block's raw output bytes (the serialized
// form the Action Decoder parses).
type BlockScopedData struct {
	Cursor       string
	Clock        Clock
	MapOutputRaw []byte
}

// UndoSignal notifies the consumer that blocks after LastValidBlock must be
// rolled back. Per spec §7/§9 this is accepted but not automatically
// carried out; see internal/ingest.Handler.HandleUndo.
type UndoSignal struct {
	LastValidCursor string
	LastValidBlock  uint64
}

// BlockSource is the external, out-of-scope producer of an ordered,
// restartable block stream. Implementations wrap the actual substream/node
// client; this package only specifies the contract the rest of the
// pipeline programs against.
type BlockSource interface {
	// Next blocks until the next BlockScopedData or UndoSignal is
	// available, or the source fails. Exactly one of the two return values
	// is non-nil on success.
	Next() (*BlockScopedData, *UndoSignal, error)
	Close() error
}

// TrustKind mirrors the three-value wire encoding in spec §6's
// SubspaceAdded action (0x0000 Verified, 0x0001 Related, 0x0002 Subtopic).
type TrustKind uint16

const (
	TrustKindVerified TrustKind = 0x0000
	TrustKindRelated  TrustKind = 0x0001
	TrustKindSubtopic TrustKind = 0x0002
)

// SpaceRegistered is the decoded form of a SpaceRegistered action.
type SpaceRegistered struct {
	SpaceID  ids.ID
	Owner    ids.ID // set when the space is personal (non-zero topic field)
	IsDAO    bool
	Editors  []ids.ID
	Members  []ids.ID
}

// SubspaceAdded is the decoded form of a SubspaceAdded action. Exactly one
// of TargetSpace/TargetTopic is meaningful, selected by Kind.
type SubspaceAdded struct {
	Source      ids.ID
	Kind        TrustKind
	TargetSpace ids.ID
	TargetTopic ids.ID
}

// EditsPublished is the decoded form of an EditsPublished action.
type EditsPublished struct {
	ContentURI string
	DAOAddress ids.Address
}

// ObjectType is the inferred mapping of the action log payload's 4-bit
// object_type field (spec §9 open question: "confirm against the decoder
// authority"). Treated as inferred, not verified.
type ObjectType uint8

const (
	ObjectTypeEntity   ObjectType = 0
	ObjectTypeRelation ObjectType = 1
)

// ActionLogHeader is the decoded first two 32-byte words of the raw
// on-chain action log payload (spec §6).
type ActionLogHeader struct {
	ActionType    uint16
	ActionVersion uint16
	ObjectType    ObjectType
	SpacePOV      ids.ID
	GroupID       ids.ID
	ObjectID      ids.ID
}
