package ingest

import (
	"context"

	"github.com/hermesgraph/ingestd/internal/ids"
	"github.com/hermesgraph/ingestd/internal/model"
)

// fakeStore is an in-memory storage.Store used to exercise Handler without
// a real database.
type fakeStore struct {
	spaces       []model.Space
	trustEdges   []model.TrustEdge
	properties   map[ids.ID]model.Property
	entities     []model.Entity
	values       []model.Value
	deletedValue []ids.ID
	relations    map[ids.ID]model.Relation
	deletedRel   []ids.ID
	memberships  []model.MembershipDelta
	subspaces    []model.SubspaceDelta
	editors      []model.EditorEvent
	members      []model.MemberEvent

	cursorConsumer string
	cursor         string
	cursorBlock    uint64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		properties: make(map[ids.ID]model.Property),
		relations:  make(map[ids.ID]model.Relation),
	}
}

func (s *fakeStore) UpsertSpace(ctx context.Context, space model.Space) error {
	s.spaces = append(s.spaces, space)
	return nil
}

func (s *fakeStore) UpsertTrustEdge(ctx context.Context, edge model.TrustEdge) error {
	s.trustEdges = append(s.trustEdges, edge)
	return nil
}

func (s *fakeStore) GetProperty(ctx context.Context, id ids.ID) (model.Property, bool, error) {
	p, ok := s.properties[id]
	return p, ok, nil
}

func (s *fakeStore) UpsertProperties(ctx context.Context, properties []model.Property) error {
	for _, p := range properties {
		s.properties[p.ID] = p
	}
	return nil
}

func (s *fakeStore) UpsertEntities(ctx context.Context, entities []model.Entity) error {
	s.entities = append(s.entities, entities...)
	return nil
}

func (s *fakeStore) UpsertValues(ctx context.Context, values []model.Value) error {
	s.values = append(s.values, values...)
	return nil
}

func (s *fakeStore) DeleteValues(ctx context.Context, spaceID ids.ID, valueIDs []ids.ID) error {
	s.deletedValue = append(s.deletedValue, valueIDs...)
	return nil
}

func (s *fakeStore) UpsertRelation(ctx context.Context, relation model.Relation) error {
	s.relations[relation.ID] = relation
	return nil
}

func (s *fakeStore) UpdateRelation(ctx context.Context, relation model.Relation, unset model.RelationUnsetFields) error {
	existing, ok := s.relations[relation.ID]
	if !ok {
		existing = relation
	}
	existing.Verified = relation.Verified
	existing.Position = relation.Position
	if unset.Verified {
		existing.Verified = nil
	}
	if unset.Position {
		existing.Position = nil
	}
	s.relations[relation.ID] = existing
	return nil
}

func (s *fakeStore) DeleteRelation(ctx context.Context, id ids.ID) error {
	delete(s.relations, id)
	s.deletedRel = append(s.deletedRel, id)
	return nil
}

func (s *fakeStore) UpsertMembership(ctx context.Context, delta model.MembershipDelta) error {
	s.memberships = append(s.memberships, delta)
	return nil
}

func (s *fakeStore) UpsertSubspace(ctx context.Context, delta model.SubspaceDelta) error {
	s.subspaces = append(s.subspaces, delta)
	return nil
}

func (s *fakeStore) UpsertEditor(ctx context.Context, event model.EditorEvent) error {
	s.editors = append(s.editors, event)
	return nil
}

func (s *fakeStore) UpsertMember(ctx context.Context, event model.MemberEvent) error {
	s.members = append(s.members, event)
	return nil
}

func (s *fakeStore) LoadBlockCursor(ctx context.Context, consumerID string) (string, uint64, error) {
	return s.cursor, s.cursorBlock, nil
}

func (s *fakeStore) PersistBlockCursor(ctx context.Context, consumerID string, cursor string, block uint64) error {
	s.cursorConsumer = consumerID
	s.cursor = cursor
	s.cursorBlock = block
	return nil
}

func (s *fakeStore) Close() error { return nil }
