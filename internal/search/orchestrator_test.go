package search

import (
	"context"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBatchSource feeds a fixed sequence of batches to the orchestrator and
// records which ones were acked.
type fakeBatchSource struct {
	batches []Batch
	next    int
	acked   int
}

func (f *fakeBatchSource) FetchBatch(ctx context.Context) (Batch, error) {
	if f.next >= len(f.batches) {
		<-ctx.Done()
		return Batch{}, ctx.Err()
	}
	b := f.batches[f.next]
	f.next++
	return b, nil
}

func (f *fakeBatchSource) Ack(ctx context.Context, batch Batch) error {
	f.acked++
	return nil
}

func TestOrchestratorProcessesLoadsFlushesAndAcksEachBatch(t *testing.T) {
	entityID, spaceID := newTestID(40), newTestID(41)

	source := &fakeBatchSource{
		batches: []Batch{
			{
				Events:   []EntityEvent{{Kind: EntityEventUpsert, EntityID: entityID, SpaceID: spaceID, Name: strPtr("acme")}},
				messages: []kafka.Message{{Topic: "edits", Partition: 0, Offset: 0}},
			},
		},
	}
	provider := newFakeProvider()
	orchestrator := &Orchestrator{
		consumer:  source,
		processor: NewProcessor(),
		loader:    NewLoader(LoaderConfig{}, provider, newTestLogger(t)),
		logger:    newTestLogger(t),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	err := orchestrator.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, source.acked)
	doc := provider.docs[documentID(entityID, spaceID)]
	require.NotNil(t, doc)
	assert.Equal(t, "acme", *doc.name)
}
