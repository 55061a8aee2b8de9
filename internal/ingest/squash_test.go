package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hermesgraph/ingestd/internal/ids"
	"github.com/hermesgraph/ingestd/internal/model"
)

func TestSquashPropertiesLastWriteWins(t *testing.T) {
	id := ids.NewID()
	props := []model.Property{
		{ID: id, DataType: model.DataTypeString},
		{ID: id, DataType: model.DataTypeNumber},
	}

	out := squashProperties(props)
	assert.Len(t, out, 1)
	assert.Equal(t, model.DataTypeNumber, out[0].DataType)
}

func TestSquashPropertiesPreservesDistinctIDs(t *testing.T) {
	props := []model.Property{
		{ID: ids.NewID(), DataType: model.DataTypeString},
		{ID: ids.NewID(), DataType: model.DataTypeBoolean},
	}
	out := squashProperties(props)
	assert.Len(t, out, 2)
}

func TestSquashValueOpsLastWriteWinsSet(t *testing.T) {
	entity, property, space := ids.NewID(), ids.NewID(), ids.NewID()
	id := ids.DeriveValueID(entity, property, space)

	first := "old"
	second := "new"
	ops := []valueOp{
		{id: id, entityID: entity, propertyID: property, spaceID: space, stringValue: &first},
		{id: id, entityID: entity, propertyID: property, spaceID: space, stringValue: &second},
	}

	sets, deletes := squashValueOps(ops)
	assert.Empty(t, deletes)
	assert.Len(t, sets, 1)
	assert.Equal(t, &second, sets[0].StringValue)
}

func TestSquashValueOpsClassifiesBySurvivingOp(t *testing.T) {
	entity, property, space := ids.NewID(), ids.NewID(), ids.NewID()
	id := ids.DeriveValueID(entity, property, space)

	value := "hi"
	ops := []valueOp{
		{id: id, entityID: entity, propertyID: property, spaceID: space, stringValue: &value},
		{id: id, entityID: entity, propertyID: property, spaceID: space, isDelete: true},
	}

	sets, deletes := squashValueOps(ops)
	assert.Empty(t, sets)
	assert.Equal(t, []ids.ID{id}, deletes)
}

func TestSquashValueOpsDeriveIsDeterministic(t *testing.T) {
	entity, property, space := ids.NewID(), ids.NewID(), ids.NewID()
	a := ids.DeriveValueID(entity, property, space)
	b := ids.DeriveValueID(entity, property, space)
	assert.Equal(t, a, b)
}
