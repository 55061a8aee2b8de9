package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessorUpsertBuildsDocument(t *testing.T) {
	p := NewProcessor()
	entityID, spaceID := newTestID(1), newTestID(2)

	out := p.ProcessBatch([]EntityEvent{{
		Kind:        EntityEventUpsert,
		EntityID:    entityID,
		SpaceID:     spaceID,
		Name:        strPtr("acme"),
		Description: strPtr("a company"),
	}})

	require.Len(t, out, 1)
	assert.Equal(t, ProcessedEventIndex, out[0].Kind)
	assert.Equal(t, "acme", *out[0].Document.Name)
	assert.Equal(t, "a company", *out[0].Document.Description)
	assert.Nil(t, out[0].Document.Avatar)
}

func TestProcessorDeletePassesThrough(t *testing.T) {
	p := NewProcessor()
	entityID, spaceID := newTestID(3), newTestID(4)

	out := p.ProcessBatch([]EntityEvent{{Kind: EntityEventDelete, EntityID: entityID, SpaceID: spaceID}})

	require.Len(t, out, 1)
	assert.Equal(t, ProcessedEventDelete, out[0].Kind)
	assert.Equal(t, entityID, out[0].EntityID)
	assert.Equal(t, spaceID, out[0].SpaceID)
}

func TestProcessorDropsEmptyUnsetProperties(t *testing.T) {
	p := NewProcessor()
	entityID, spaceID := newTestID(5), newTestID(6)

	out := p.ProcessBatch([]EntityEvent{{Kind: EntityEventUnsetProperties, EntityID: entityID, SpaceID: spaceID, UnsetPropertyKeys: nil}})

	assert.Empty(t, out)
}

func TestProcessorKeepsNonEmptyUnsetProperties(t *testing.T) {
	p := NewProcessor()
	entityID, spaceID := newTestID(7), newTestID(8)

	out := p.ProcessBatch([]EntityEvent{{
		Kind:              EntityEventUnsetProperties,
		EntityID:          entityID,
		SpaceID:           spaceID,
		UnsetPropertyKeys: []string{"description"},
	}})

	require.Len(t, out, 1)
	assert.Equal(t, ProcessedEventUnsetProperties, out[0].Kind)
	assert.Equal(t, []string{"description"}, out[0].UnsetPropertyKeys)
}
