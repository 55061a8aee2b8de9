// Package storage persists the knowledge-graph entities, values,
// relations, spaces, and memberships the edit ingestion pipeline produces
// (spec §4.2). Grounded on the teacher's storage.Store interface shape
// (Save*/Get*, sentinel errors, ON CONFLICT upsert idiom), repurposed from
// GitHub-shaped tables to this platform's domain.
package storage

import (
	"context"
	"errors"

	"github.com/hermesgraph/ingestd/internal/ids"
	"github.com/hermesgraph/ingestd/internal/model"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

// Store is the per-block transactional writer's persistence contract. All
// batch methods are idempotent upserts; implementations run each batch in
// its own transaction, grounded on the teacher's per-call BeginTxx/Rollback
// pattern.
type Store interface {
	UpsertSpace(ctx context.Context, space model.Space) error
	UpsertTrustEdge(ctx context.Context, edge model.TrustEdge) error

	// GetProperty is the property cache read used to resolve a value op's
	// data type (spec §4.2 step 4).
	GetProperty(ctx context.Context, id ids.ID) (model.Property, bool, error)
	UpsertProperties(ctx context.Context, properties []model.Property) error

	UpsertEntities(ctx context.Context, entities []model.Entity) error

	UpsertValues(ctx context.Context, values []model.Value) error
	DeleteValues(ctx context.Context, spaceID ids.ID, valueIDs []ids.ID) error

	UpsertRelation(ctx context.Context, relation model.Relation) error
	UpdateRelation(ctx context.Context, relation model.Relation, unset model.RelationUnsetFields) error
	DeleteRelation(ctx context.Context, id ids.ID) error

	UpsertMembership(ctx context.Context, delta model.MembershipDelta) error
	UpsertSubspace(ctx context.Context, delta model.SubspaceDelta) error
	UpsertEditor(ctx context.Context, event model.EditorEvent) error
	UpsertMember(ctx context.Context, event model.MemberEvent) error

	LoadBlockCursor(ctx context.Context, consumerID string) (string, uint64, error)
	PersistBlockCursor(ctx context.Context, consumerID string, cursor string, block uint64) error

	Close() error
}
