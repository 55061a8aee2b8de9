package model

import "github.com/hermesgraph/ingestd/internal/ids"

// OpKind tags the variant carried by an Op. Dispatch is always by tag,
// never by type assertion chains or subclassing (spec §9 "Polymorphic
// operations").
type OpKind int

const (
	OpCreateProperty OpKind = iota
	OpUpdateEntity
	OpUnsetEntityValues
	OpCreateRelation
	OpUpdateRelation
	OpDeleteRelation
	OpUnsetRelationFields
)

// Op is a single knowledge-graph operation inside an Edit. Exactly the
// field(s) matching Kind are populated.
type Op struct {
	Kind OpKind

	// OpCreateProperty
	PropertyID ids.ID
	DataType   DataType

	// OpUpdateEntity / OpUnsetEntityValues shared addressing
	EntityID ids.ID

	// OpUpdateEntity: a single (property, value) touch. ValueRaw carries
	// the raw, unvalidated textual form; the sub-handler parses it against
	// the property's data type.
	ValuePropertyID ids.ID
	ValueSpaceID    ids.ID
	ValueLanguage   string
	ValueUnit       string
	ValueRaw        string
	ValueIsDelete   bool

	// OpUnsetEntityValues: properties to clear for EntityID in ValueSpaceID.
	UnsetPropertyIDs []ids.ID

	// OpCreateRelation / OpUpdateRelation / OpDeleteRelation / OpUnsetRelationFields
	Relation     *Relation
	UnsetFields  RelationUnsetFields
}

// Edit is a batch of Ops authored against one space, referenced by CID.
type Edit struct {
	SpaceID ids.ID
	Ops     []Op
}

// PreprocessedEdit is the result of resolving an edit's CID through the
// IPFS cache: either a decoded Edit, or an errored marker retained so
// downstream skips without re-fetching (spec §3).
type PreprocessedEdit struct {
	SpaceID   ids.ID
	CID       string
	Edit      *Edit
	IsErrored bool
}

// BlockMetadata carries the per-block addressing the edit pipeline needs
// to stamp Entity/Value timestamps and persist the resume cursor.
type BlockMetadata struct {
	BlockNumber    uint64
	BlockTimestamp int64 // unix seconds
	Cursor         string
	TxHash         string
}

// MembershipDelta records a space joining or leaving a topic's member set
// (topic membership index maintenance).
type MembershipDelta struct {
	SpaceID ids.ID
	TopicID ids.ID
}

// SubspaceDelta records a parent/child subspace relationship change.
type SubspaceDelta struct {
	ParentSpaceID ids.ID
	ChildSpaceID  ids.ID
}

// EditorEvent records an editor address being granted edit rights in a DAO
// space. A corresponding MemberEvent is emitted for any DAO created in the
// same block (spec §4.2 step 5): editors of a freshly created DAO are also
// its first members.
type EditorEvent struct {
	DAOSpaceID ids.ID
	Editor     ids.Address
}

// MemberEvent records an address being granted membership (not necessarily
// edit rights) in a DAO space.
type MemberEvent struct {
	DAOSpaceID ids.ID
	Member     ids.Address
}

// Output is the decoded, typed form of one block's worth of chain actions:
// spaces created, edits published, membership/subspace deltas, and
// governance plugin creations (spec §4.2 step 1).
type Output struct {
	SpacesCreated        []Space
	TrustEdges           []TrustEdge
	EditsPublished       []PendingEdit
	MembershipDeltas     []MembershipDelta
	SubspaceDeltas       []SubspaceDelta
	GovernancePlugins    []GovernancePlugin
	PersonalAdminPlugins []PersonalAdminPlugin
	EditorEvents         []EditorEvent
}

// PendingEdit is an EditsPublished action before its CID has been resolved.
type PendingEdit struct {
	SpaceID    ids.ID
	ContentURI string
	DAOAddress ids.Address
}

// GovernancePlugin links a DAO address to the space created for it in the
// same block; a space with neither this nor a PersonalAdminPlugin in the
// same block is skipped for the block (spec §4.2 step 4).
type GovernancePlugin struct {
	DAOAddress ids.Address
	SpaceID    ids.ID
}

// PersonalAdminPlugin is the personal-space analog of GovernancePlugin.
type PersonalAdminPlugin struct {
	AdminAddress ids.Address
	SpaceID      ids.ID
}
