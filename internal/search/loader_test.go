package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hermesgraph/ingestd/internal/logging"
)

func newTestLogger(t *testing.T) *logging.Logger {
	t.Helper()
	logger, err := logging.NewLogger(logging.Config{Level: logging.ERROR})
	require.NoError(t, err)
	return logger
}

func strPtr(s string) *string { return &s }

// TestSequentialPartialUpsertsMerge covers spec §8 scenario S6: an upsert
// touching only name followed by one touching only description leaves a
// document with both fields set.
func TestSequentialPartialUpsertsMerge(t *testing.T) {
	ctx := context.Background()
	provider := newFakeProvider()
	loader := NewLoader(LoaderConfig{}, provider, newTestLogger(t))

	entityID := newTestID(1)
	spaceID := newTestID(2)

	first := ProcessedEvent{Kind: ProcessedEventIndex, Document: NewEntityDocument(entityID, spaceID, strPtr("a"), nil)}
	require.NoError(t, loader.Load(ctx, []ProcessedEvent{first}))
	require.NoError(t, loader.Flush(ctx))

	second := ProcessedEvent{Kind: ProcessedEventIndex, Document: NewEntityDocument(entityID, spaceID, nil, strPtr("b"))}
	require.NoError(t, loader.Load(ctx, []ProcessedEvent{second}))
	require.NoError(t, loader.Flush(ctx))

	doc := provider.docs[documentID(entityID, spaceID)]
	require.NotNil(t, doc)
	assert.Equal(t, "a", *doc.name)
	assert.Equal(t, "b", *doc.description)
}

// TestUpsertThenUnsetProperties covers spec §8 scenario S7: an upsert
// setting name and description, followed by an UnsetProperties for
// "description", leaves only name set.
func TestUpsertThenUnsetProperties(t *testing.T) {
	ctx := context.Background()
	provider := newFakeProvider()
	loader := NewLoader(LoaderConfig{}, provider, newTestLogger(t))

	entityID := newTestID(3)
	spaceID := newTestID(4)

	upsert := ProcessedEvent{Kind: ProcessedEventIndex, Document: NewEntityDocument(entityID, spaceID, strPtr("a"), strPtr("b"))}
	require.NoError(t, loader.Load(ctx, []ProcessedEvent{upsert}))
	require.NoError(t, loader.Flush(ctx))

	unset := ProcessedEvent{Kind: ProcessedEventUnsetProperties, EntityID: entityID, SpaceID: spaceID, UnsetPropertyKeys: []string{"description"}}
	require.NoError(t, loader.Load(ctx, []ProcessedEvent{unset}))

	doc := provider.docs[documentID(entityID, spaceID)]
	require.NotNil(t, doc)
	assert.Equal(t, "a", *doc.name)
	assert.Nil(t, doc.description)
}

func TestLoaderFlushesAtBatchThreshold(t *testing.T) {
	ctx := context.Background()
	provider := newFakeProvider()
	loader := NewLoader(LoaderConfig{BatchSize: 2}, provider, newTestLogger(t))

	entityA, entityB := newTestID(10), newTestID(11)
	spaceID := newTestID(20)

	events := []ProcessedEvent{
		{Kind: ProcessedEventIndex, Document: NewEntityDocument(entityA, spaceID, strPtr("a"), nil)},
		{Kind: ProcessedEventIndex, Document: NewEntityDocument(entityB, spaceID, strPtr("b"), nil)},
	}
	require.NoError(t, loader.Load(ctx, events))

	assert.Equal(t, 0, loader.Pending(), "batch threshold should have auto-flushed")
	assert.Equal(t, 2, provider.updateCalls)
}

func TestLoaderDeleteIsImmediateAndWarnOnlyOnFailure(t *testing.T) {
	ctx := context.Background()
	provider := newFakeProvider()
	loader := NewLoader(LoaderConfig{}, provider, newTestLogger(t))

	entityID := newTestID(30)
	spaceID := newTestID(31)

	upsert := ProcessedEvent{Kind: ProcessedEventIndex, Document: NewEntityDocument(entityID, spaceID, strPtr("a"), nil)}
	require.NoError(t, loader.Load(ctx, []ProcessedEvent{upsert}))
	require.NoError(t, loader.Flush(ctx))

	del := ProcessedEvent{Kind: ProcessedEventDelete, EntityID: entityID, SpaceID: spaceID}
	require.NoError(t, loader.Load(ctx, []ProcessedEvent{del}))

	assert.True(t, provider.deleted[documentID(entityID, spaceID)])
	assert.Nil(t, provider.docs[documentID(entityID, spaceID)])
}
