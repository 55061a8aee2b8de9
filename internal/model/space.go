// Package model defines the core knowledge-graph data model: spaces, trust
// edges, entities, properties, values, relations, and the per-block
// envelopes the edit ingestion pipeline consumes and produces.
package model

import "github.com/hermesgraph/ingestd/internal/ids"

// SpaceKind distinguishes a personal space (single owner) from a DAO space
// (editor/member sets seeded at creation).
type SpaceKind int

const (
	SpaceKindPersonal SpaceKind = iota
	SpaceKindDao
)

// Space is a unit of trust and governance; it announces exactly one topic
// at creation time.
type Space struct {
	SpaceID ids.ID    `json:"space_id" db:"space_id"`
	TopicID ids.ID    `json:"topic_id" db:"topic_id"`
	Kind    SpaceKind `json:"kind" db:"kind"`

	// Owner is set only when Kind == SpaceKindPersonal.
	Owner ids.ID `json:"owner,omitempty" db:"owner"`
	// InitialEditors/InitialMembers are set only when Kind == SpaceKindDao.
	InitialEditors []ids.ID `json:"initial_editors,omitempty"`
	InitialMembers []ids.ID `json:"initial_members,omitempty"`
}

// TrustEdgeKind tags which of the three mutually exclusive trust-edge
// variants a TrustEdge carries.
type TrustEdgeKind int

const (
	TrustEdgeVerified TrustEdgeKind = iota
	TrustEdgeRelated
	TrustEdgeSubtopic
)

// TrustEdge is a directed edge originating at SourceSpace. Exactly one of
// TargetSpace (Verified/Related) or TargetTopic (Subtopic) is meaningful,
// selected by Kind.
type TrustEdge struct {
	SourceSpace ids.ID
	Kind        TrustEdgeKind
	TargetSpace ids.ID // valid when Kind is Verified or Related
	TargetTopic ids.ID // valid when Kind is Subtopic
}
