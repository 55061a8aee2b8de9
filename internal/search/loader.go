package search

import (
	"context"
	"fmt"

	"github.com/hermesgraph/ingestd/internal/logging"
)

// defaultLoaderBatchSize is the pending-upsert flush threshold (spec §4.4
// "Loader... flushed at batch size, default 100").
const defaultLoaderBatchSize = 100

// Loader batches upserts against the provider and issues deletes/unsets
// immediately (spec §4.4 "Loader"). The orchestrator must call Flush
// synchronously before acknowledging the Kafka offsets that produced the
// pending batch; Load alone only flushes once the threshold is reached.
type Loader struct {
	provider       SearchIndexProvider
	batchSize      int
	pendingUpdates []UpdateEntityRequest
	logger         *logging.Logger
}

// LoaderConfig configures a Loader.
type LoaderConfig struct {
	BatchSize int // 0 defaults to 100
}

// NewLoader constructs a Loader.
func NewLoader(cfg LoaderConfig, provider SearchIndexProvider, logger *logging.Logger) *Loader {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultLoaderBatchSize
	}
	return &Loader{
		provider:  provider,
		batchSize: batchSize,
		logger:    logger,
	}
}

// Load applies a batch of processed events: upserts are buffered, deletes
// and unsets are issued immediately. A failure on an immediate delete or
// unset is logged, not propagated — the document may simply not exist yet
// (spec §4.4 "Loader" / grounding: warn-only, not fatal).
func (l *Loader) Load(ctx context.Context, events []ProcessedEvent) error {
	for _, event := range events {
		switch event.Kind {
		case ProcessedEventIndex:
			l.pendingUpdates = append(l.pendingUpdates, updateRequestFromDocument(event.Document))
			if len(l.pendingUpdates) >= l.batchSize {
				if err := l.Flush(ctx); err != nil {
					return err
				}
			}

		case ProcessedEventDelete:
			if err := l.provider.DeleteDocument(ctx, DeleteEntityRequest{EntityID: event.EntityID, SpaceID: event.SpaceID}); err != nil {
				l.logger.Warn("loader: delete failed, document may not exist", "entity_id", event.EntityID, "space_id", event.SpaceID, "error", err)
			}

		case ProcessedEventUnsetProperties:
			req := UnsetEntityPropertiesRequest{EntityID: event.EntityID, SpaceID: event.SpaceID, PropertyKeys: event.UnsetPropertyKeys}
			if err := l.provider.UnsetDocumentProperties(ctx, req); err != nil {
				l.logger.Warn("loader: unset properties failed", "entity_id", event.EntityID, "space_id", event.SpaceID, "error", err)
			}
		}
	}
	return nil
}

// Flush bulk-upserts every pending document and clears the buffer. Each
// failed item is logged, and Flush returns an error when any item failed,
// so the orchestrator does not ACK the batch that produced it.
func (l *Loader) Flush(ctx context.Context) error {
	if len(l.pendingUpdates) == 0 {
		return nil
	}

	batch := l.pendingUpdates
	l.pendingUpdates = nil

	summary := l.provider.BulkUpdateDocuments(ctx, batch)
	if summary.Failed > 0 {
		for _, result := range summary.Results {
			if !result.Success {
				l.logger.Warn("loader: bulk upsert item failed", "entity_id", result.EntityID, "space_id", result.SpaceID, "error", result.Error)
			}
		}
		return fmt.Errorf("loader: %d of %d bulk upsert items failed", summary.Failed, summary.Total)
	}
	return nil
}

// Pending reports how many upserts are currently buffered, for tests and
// progress logging.
func (l *Loader) Pending() int {
	return len(l.pendingUpdates)
}

func updateRequestFromDocument(doc EntityDocument) UpdateEntityRequest {
	return UpdateEntityRequest{
		EntityID:    doc.EntityID,
		SpaceID:     doc.SpaceID,
		Name:        doc.Name,
		Description: doc.Description,
		Avatar:      doc.Avatar,
		Cover:       doc.Cover,
	}
}
