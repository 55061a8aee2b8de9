package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ingesterrors "github.com/hermesgraph/ingestd/internal/errors"
	"github.com/hermesgraph/ingestd/internal/model"
)

func TestPopulateTypedFieldString(t *testing.T) {
	op := &valueOp{}
	require.NoError(t, populateTypedField(op, model.DataTypeString, "hello"))
	require.NotNil(t, op.stringValue)
	assert.Equal(t, "hello", *op.stringValue)
}

func TestPopulateTypedFieldRelationStoredAsString(t *testing.T) {
	op := &valueOp{}
	require.NoError(t, populateTypedField(op, model.DataTypeRelation, "0xabc"))
	require.NotNil(t, op.stringValue)
	assert.Equal(t, "0xabc", *op.stringValue)
}

func TestPopulateTypedFieldNumber(t *testing.T) {
	op := &valueOp{}
	require.NoError(t, populateTypedField(op, model.DataTypeNumber, "3.14"))
	require.NotNil(t, op.numberValue)
	assert.Equal(t, 3.14, *op.numberValue)
}

func TestPopulateTypedFieldNumberInvalid(t *testing.T) {
	op := &valueOp{}
	err := populateTypedField(op, model.DataTypeNumber, "not-a-number")
	assert.Error(t, err)
	assert.True(t, ingesterrors.IsPermanent(err))
}

func TestPopulateTypedFieldBoolean(t *testing.T) {
	op := &valueOp{}
	require.NoError(t, populateTypedField(op, model.DataTypeBoolean, "true"))
	require.NotNil(t, op.booleanValue)
	assert.True(t, *op.booleanValue)
}

func TestPopulateTypedFieldBooleanInvalid(t *testing.T) {
	op := &valueOp{}
	err := populateTypedField(op, model.DataTypeBoolean, "maybe")
	assert.Error(t, err)
}

func TestPopulateTypedFieldTime(t *testing.T) {
	op := &valueOp{}
	require.NoError(t, populateTypedField(op, model.DataTypeTime, "2024-01-02T15:04:05Z"))
	require.NotNil(t, op.timeValue)
	assert.Equal(t, 2024, op.timeValue.Year())
}

func TestPopulateTypedFieldTimeInvalid(t *testing.T) {
	op := &valueOp{}
	err := populateTypedField(op, model.DataTypeTime, "not-a-time")
	assert.Error(t, err)
}

func TestPopulateTypedFieldPoint(t *testing.T) {
	op := &valueOp{}
	require.NoError(t, populateTypedField(op, model.DataTypePoint, "40.7128, -74.0060"))
	require.NotNil(t, op.pointValue)
	assert.Equal(t, 40.7128, op.pointValue.Lat)
	assert.Equal(t, -74.0060, op.pointValue.Lng)
}

func TestPopulateTypedFieldPointMissingComponent(t *testing.T) {
	op := &valueOp{}
	err := populateTypedField(op, model.DataTypePoint, "40.7128")
	assert.Error(t, err)
}

func TestPopulateTypedFieldUnknownDataType(t *testing.T) {
	op := &valueOp{}
	err := populateTypedField(op, model.DataType(99), "x")
	assert.Error(t, err)
}

func TestParsePointRejectsGarbage(t *testing.T) {
	_, err := parsePoint("not,a,point,at,all")
	// four commas still split into 2 parts via SplitN; the first half "not" already fails the float parse
	assert.Error(t, err)
}
