package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hermesgraph/ingestd/internal/ids"
	"github.com/hermesgraph/ingestd/internal/model"
)

func TestEntityEventsFromOpsMergesUpdatesPerEntity(t *testing.T) {
	spaceID := newTestID(1)
	entityID := newTestID(2)

	ops := []model.Op{
		{Kind: model.OpUpdateEntity, EntityID: entityID, ValuePropertyID: namePropertyID, ValueRaw: "acme"},
		{Kind: model.OpUpdateEntity, EntityID: entityID, ValuePropertyID: wellKnownDescriptionPropertyID, ValueRaw: "a company"},
	}

	events := entityEventsFromOps(spaceID, ops)

	require.Len(t, events, 1)
	assert.Equal(t, EntityEventUpsert, events[0].Kind)
	assert.Equal(t, "acme", *events[0].Name)
	assert.Equal(t, "a company", *events[0].Description)
}

func TestEntityEventsFromOpsMapsUnsetPropertyIDsToKeys(t *testing.T) {
	spaceID := newTestID(1)
	entityID := newTestID(3)

	ops := []model.Op{
		{Kind: model.OpUnsetEntityValues, EntityID: entityID, UnsetPropertyIDs: []ids.ID{wellKnownDescriptionPropertyID, wellKnownAvatarPropertyID}},
	}

	events := entityEventsFromOps(spaceID, ops)

	require.Len(t, events, 1)
	assert.Equal(t, EntityEventUnsetProperties, events[0].Kind)
	assert.ElementsMatch(t, []string{"description", "avatar"}, events[0].UnsetPropertyKeys)
}

func TestEntityEventsFromOpsIgnoresUnknownOpKinds(t *testing.T) {
	spaceID := newTestID(1)
	ops := []model.Op{{Kind: model.OpCreateProperty}}

	events := entityEventsFromOps(spaceID, ops)

	assert.Empty(t, events)
}
