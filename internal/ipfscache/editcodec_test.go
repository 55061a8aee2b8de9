package ipfscache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hermesgraph/ingestd/internal/ids"
	"github.com/hermesgraph/ingestd/internal/model"
)

func TestEditCodecRoundTripValueOp(t *testing.T) {
	spaceID := ids.NewID()
	propertyID := ids.NewID()
	entityID := ids.NewID()

	edit := &model.Edit{
		SpaceID: spaceID,
		Ops: []model.Op{
			{
				Kind:            model.OpUpdateEntity,
				EntityID:        entityID,
				ValuePropertyID: propertyID,
				ValueSpaceID:    spaceID,
				DataType:        model.DataTypeString,
				ValueRaw:        "hello",
				ValueLanguage:   "en",
			},
		},
	}

	encoded := EncodeEdit(edit)
	decoded, err := DecodeEdit(spaceID, encoded)
	require.NoError(t, err)

	require.Len(t, decoded.Ops, 1)
	op := decoded.Ops[0]
	assert.Equal(t, model.OpUpdateEntity, op.Kind)
	assert.Equal(t, entityID, op.EntityID)
	assert.Equal(t, propertyID, op.ValuePropertyID)
	assert.Equal(t, spaceID, op.ValueSpaceID)
	assert.Equal(t, "hello", op.ValueRaw)
	assert.Equal(t, "en", op.ValueLanguage)
	assert.False(t, op.ValueIsDelete)
}

func TestEditCodecRoundTripDeleteValue(t *testing.T) {
	spaceID := ids.NewID()
	edit := &model.Edit{
		SpaceID: spaceID,
		Ops: []model.Op{
			{Kind: model.OpUpdateEntity, EntityID: ids.NewID(), ValueIsDelete: true},
		},
	}

	decoded, err := DecodeEdit(spaceID, EncodeEdit(edit))
	require.NoError(t, err)
	require.Len(t, decoded.Ops, 1)
	assert.True(t, decoded.Ops[0].ValueIsDelete)
}

func TestEditCodecRoundTripRelationWithUnsetFields(t *testing.T) {
	spaceID := ids.NewID()
	relID := ids.NewID()
	typeID := ids.NewID()

	edit := &model.Edit{
		SpaceID: spaceID,
		Ops: []model.Op{
			{
				Kind: model.OpUpdateRelation,
				Relation: &model.Relation{
					ID:     relID,
					TypeID: typeID,
					SpaceID: spaceID,
				},
				UnsetFields: model.RelationUnsetFields{
					Position: true,
					Verified: true,
				},
			},
		},
	}

	decoded, err := DecodeEdit(spaceID, EncodeEdit(edit))
	require.NoError(t, err)
	require.Len(t, decoded.Ops, 1)

	op := decoded.Ops[0]
	require.NotNil(t, op.Relation)
	assert.Equal(t, relID, op.Relation.ID)
	assert.Equal(t, typeID, op.Relation.TypeID)
	assert.True(t, op.UnsetFields.Position)
	assert.True(t, op.UnsetFields.Verified)
	assert.False(t, op.UnsetFields.FromSpace)
}

func TestEditCodecRoundTripCreateRelationWithOptionalFields(t *testing.T) {
	spaceID := ids.NewID()
	fromSpace := ids.NewID()
	position := "a0"

	edit := &model.Edit{
		SpaceID: spaceID,
		Ops: []model.Op{
			{
				Kind: model.OpCreateRelation,
				Relation: &model.Relation{
					ID:         ids.NewID(),
					TypeID:     ids.NewID(),
					EntityID:   ids.NewID(),
					SpaceID:    spaceID,
					FromEntity: ids.NewID(),
					ToEntity:   ids.NewID(),
					FromSpace:  &fromSpace,
					Position:   &position,
				},
			},
		},
	}

	decoded, err := DecodeEdit(spaceID, EncodeEdit(edit))
	require.NoError(t, err)
	require.Len(t, decoded.Ops, 1)

	rel := decoded.Ops[0].Relation
	require.NotNil(t, rel)
	require.NotNil(t, rel.FromSpace)
	assert.Equal(t, fromSpace, *rel.FromSpace)
	require.NotNil(t, rel.Position)
	assert.Equal(t, position, *rel.Position)
	assert.Nil(t, rel.ToSpace)
}

func TestEditCodecMultipleOpsPreserveOrder(t *testing.T) {
	spaceID := ids.NewID()
	p1, p2 := ids.NewID(), ids.NewID()

	edit := &model.Edit{
		SpaceID: spaceID,
		Ops: []model.Op{
			{Kind: model.OpCreateProperty, PropertyID: p1, DataType: model.DataTypeNumber},
			{Kind: model.OpCreateProperty, PropertyID: p2, DataType: model.DataTypeBoolean},
		},
	}

	decoded, err := DecodeEdit(spaceID, EncodeEdit(edit))
	require.NoError(t, err)
	require.Len(t, decoded.Ops, 2)
	assert.Equal(t, p1, decoded.Ops[0].PropertyID)
	assert.Equal(t, model.DataTypeNumber, decoded.Ops[0].DataType)
	assert.Equal(t, p2, decoded.Ops[1].PropertyID)
	assert.Equal(t, model.DataTypeBoolean, decoded.Ops[1].DataType)
}
