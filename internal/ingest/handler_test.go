package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hermesgraph/ingestd/internal/ids"
	"github.com/hermesgraph/ingestd/internal/model"
	"github.com/hermesgraph/ingestd/internal/topology"
)

func newTestHandler(store *fakeStore) *Handler {
	engine := topology.NewEngine(ids.NewID())
	return NewHandler(store, engine, nil, "test-consumer", testLogger())
}

func TestHandleBlockPersistsCursorAfterSubHandlers(t *testing.T) {
	store := newFakeStore()
	h := newTestHandler(store)
	space := model.Space{SpaceID: ids.NewID(), TopicID: ids.NewID()}

	pre := &Preprocessed{Spaces: []model.Space{space}}
	err := h.HandleBlock(context.Background(), 42, "cursor-42", pre)

	require.NoError(t, err)
	assert.Len(t, store.spaces, 1)
	assert.Equal(t, uint64(42), store.cursorBlock)
	assert.Equal(t, "cursor-42", store.cursor)
	assert.Equal(t, "test-consumer", store.cursorConsumer)
}

func TestHandleEditsSkipsErroredEntries(t *testing.T) {
	store := newFakeStore()
	h := newTestHandler(store)

	propID := ids.NewID()
	entityID := ids.NewID()
	spaceID := ids.NewID()

	edit := &model.Edit{
		SpaceID: spaceID,
		Ops: []model.Op{
			{Kind: model.OpCreateProperty, PropertyID: propID, DataType: model.DataTypeString},
			{Kind: model.OpUpdateEntity, EntityID: entityID, ValuePropertyID: propID, ValueSpaceID: spaceID, ValueRaw: "hello"},
		},
	}

	pre := &Preprocessed{
		Edits: []*model.PreprocessedEdit{
			{SpaceID: spaceID, CID: "bad-cid", IsErrored: true},
			{SpaceID: spaceID, CID: "good-cid", Edit: edit},
		},
	}

	err := h.HandleBlock(context.Background(), 1, "c1", pre)
	require.NoError(t, err)

	assert.Len(t, store.values, 1)
	require.NotNil(t, store.values[0].StringValue)
	assert.Equal(t, "hello", *store.values[0].StringValue)
}

func TestApplyValuesDropsUnknownProperty(t *testing.T) {
	store := newFakeStore()
	h := newTestHandler(store)

	entityID := ids.NewID()
	spaceID := ids.NewID()
	unknownProp := ids.NewID()

	edit := &model.Edit{
		SpaceID: spaceID,
		Ops: []model.Op{
			{Kind: model.OpUpdateEntity, EntityID: entityID, ValuePropertyID: unknownProp, ValueSpaceID: spaceID, ValueRaw: "x"},
		},
	}

	h.handleEdit(context.Background(), spaceID, edit, 1, time.Now())
	assert.Empty(t, store.values)
}

func TestApplyValuesDropsFailedValidation(t *testing.T) {
	store := newFakeStore()
	h := newTestHandler(store)

	propID := ids.NewID()
	store.properties[propID] = model.Property{ID: propID, DataType: model.DataTypeNumber}

	entityID := ids.NewID()
	spaceID := ids.NewID()

	edit := &model.Edit{
		SpaceID: spaceID,
		Ops: []model.Op{
			{Kind: model.OpUpdateEntity, EntityID: entityID, ValuePropertyID: propID, ValueSpaceID: spaceID, ValueRaw: "not-a-number"},
		},
	}

	h.handleEdit(context.Background(), spaceID, edit, 1, time.Now())
	assert.Empty(t, store.values)
}

func TestApplyValuesSquashesWithinOneEdit(t *testing.T) {
	store := newFakeStore()
	h := newTestHandler(store)

	propID := ids.NewID()
	store.properties[propID] = model.Property{ID: propID, DataType: model.DataTypeString}

	entityID := ids.NewID()
	spaceID := ids.NewID()

	edit := &model.Edit{
		SpaceID: spaceID,
		Ops: []model.Op{
			{Kind: model.OpUpdateEntity, EntityID: entityID, ValuePropertyID: propID, ValueSpaceID: spaceID, ValueRaw: "old"},
			{Kind: model.OpUpdateEntity, EntityID: entityID, ValuePropertyID: propID, ValueSpaceID: spaceID, ValueRaw: "new"},
		},
	}

	h.handleEdit(context.Background(), spaceID, edit, 1, time.Now())
	require.Len(t, store.values, 1)
	assert.Equal(t, "new", *store.values[0].StringValue)
}

func TestApplyRelationsAppliesInCreateUpdateUnsetDeleteOrder(t *testing.T) {
	store := newFakeStore()
	h := newTestHandler(store)

	relID := ids.NewID()
	verified := true

	created := model.Relation{ID: relID, Verified: &verified}
	updatedVerified := false
	updated := model.Relation{ID: relID, Verified: &updatedVerified}
	unset := model.Relation{ID: relID}

	edit := &model.Edit{
		Ops: []model.Op{
			{Kind: model.OpUnsetRelationFields, Relation: &unset, UnsetFields: model.RelationUnsetFields{Verified: true}},
			{Kind: model.OpUpdateRelation, Relation: &updated},
			{Kind: model.OpCreateRelation, Relation: &created},
		},
	}

	h.applyRelations(context.Background(), edit)

	// create -> update -> unset-fields -> delete, regardless of op order in
	// the edit: verified should end up unset (nil) because unset-fields runs
	// last among the surviving ops.
	_, stillPresent := store.relations[relID]
	assert.True(t, stillPresent)
	assert.Nil(t, store.relations[relID].Verified)
}

func TestApplyRelationsDeleteRemovesRelation(t *testing.T) {
	store := newFakeStore()
	h := newTestHandler(store)

	relID := ids.NewID()
	created := model.Relation{ID: relID}
	edit := &model.Edit{
		Ops: []model.Op{
			{Kind: model.OpCreateRelation, Relation: &created},
			{Kind: model.OpDeleteRelation, Relation: &created},
		},
	}

	h.applyRelations(context.Background(), edit)

	_, ok := store.relations[relID]
	assert.False(t, ok)
	assert.Equal(t, []ids.ID{relID}, store.deletedRel)
}

func TestHandleUndoReturnsUnimplementedError(t *testing.T) {
	store := newFakeStore()
	logger := testLogger()
	// logrus.Fatal normally calls os.Exit; swap ExitFunc so the test
	// observes the panic instead of killing the test binary.
	logger.ExitFunc = func(int) { panic("logrus fatal") }
	engine := topology.NewEngine(ids.NewID())
	h := NewHandler(store, engine, nil, "c", logger)

	assert.Panics(t, func() {
		_ = h.HandleUndo(10)
	})
}
