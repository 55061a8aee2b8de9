// Package search implements the Search Indexing Pipeline (spec §4.4) and
// the Search Index Provider Contract (spec §4.5): a Kafka consumer decodes
// the edits topic into entity events, a processor turns those events into
// index documents or delete/unset requests, a loader batches them against
// the provider, and an orchestrator wires the three together with
// offset-commit-after-flush semantics.
package search

import (
	"time"

	"github.com/hermesgraph/ingestd/internal/ids"
)

// EntityDocument is one indexed document: one row per (entity_id,
// space_id) pair (spec §6 "Search index wire"). Score fields follow the
// grounding source's naming (entity_global_score/space_score/
// entity_space_score); they stay nil until a scoring service populates
// them, and the upsert request built from a document
// (updateRequestFromDocument) carries no score fields.
type EntityDocument struct {
	EntityID ids.ID
	SpaceID  ids.ID

	Name        *string
	Description *string
	Avatar      *string
	Cover       *string

	EntityGlobalScore *float64
	SpaceScore        *float64
	EntitySpaceScore  *float64

	IndexedAt time.Time
}

// NewEntityDocument builds a document with nil scores; a scoring service
// populates those in a later pass, never this pipeline.
func NewEntityDocument(entityID, spaceID ids.ID, name, description *string) EntityDocument {
	return EntityDocument{
		EntityID:    entityID,
		SpaceID:     spaceID,
		Name:        name,
		Description: description,
		IndexedAt:   time.Now().UTC(),
	}
}

// DocumentID returns the index document id for (entity_id, space_id): spec
// §4.5 "Document id = {entity_id}_{space_id}".
func (d EntityDocument) DocumentID() string {
	return documentID(d.EntityID, d.SpaceID)
}

func documentID(entityID, spaceID ids.ID) string {
	return entityID.String() + "_" + spaceID.String()
}
