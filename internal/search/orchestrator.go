package search

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/hermesgraph/ingestd/internal/logging"
)

// progressLogInterval matches the grounding source's 10s progress tick.
const progressLogInterval = 10 * time.Second

// batchSource is satisfied by Consumer; tests substitute a fake to drive
// the orchestrator's loop without a live Kafka broker.
type batchSource interface {
	FetchBatch(ctx context.Context) (Batch, error)
	Ack(ctx context.Context, batch Batch) error
}

// Orchestrator owns the consumer, processor, and loader, and runs the
// search ingestion pipeline's main loop (spec §4.4 "Orchestrator"). Every
// fetched batch is fully processed, loaded, and flushed before its Kafka
// offsets are acknowledged; a batch that fails to flush is never
// acknowledged, so it is redelivered on the next run instead of being lost
// (spec §4.4 "on SIGINT/End, broadcast shutdown without flushing pending
// buffer — unflushed events must be redelivered").
type Orchestrator struct {
	consumer  batchSource
	processor *Processor
	loader    *Loader
	logger    *logging.Logger

	eventsProcessed atomic.Uint64
	documentsLoaded atomic.Uint64
}

// NewOrchestrator constructs an Orchestrator.
func NewOrchestrator(consumer *Consumer, processor *Processor, loader *Loader, logger *logging.Logger) *Orchestrator {
	return &Orchestrator{
		consumer:  consumer,
		processor: processor,
		loader:    loader,
		logger:    logger,
	}
}

// Run drives the pipeline until ctx is canceled (SIGINT, parent shutdown).
// On cancellation it returns without flushing any buffered, not-yet-acked
// batch — the unacked Kafka offsets guarantee at-least-once redelivery on
// the next run.
func (o *Orchestrator) Run(ctx context.Context) error {
	ticker := time.NewTicker(progressLogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			o.logger.Info("search orchestrator: shutdown signal received, stopping without flushing in-flight batch")
			return nil
		case <-ticker.C:
			o.logProgress()
		default:
		}

		if err := o.runOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

// runOnce executes one iteration of the 5-step loop: fetch, process, load,
// flush, then ack only on success (spec §4.4 "Orchestrator").
func (o *Orchestrator) runOnce(ctx context.Context) error {
	batch, err := o.consumer.FetchBatch(ctx)
	if err != nil {
		return err
	}
	if len(batch.Events) == 0 && len(batch.messages) == 0 {
		return nil
	}

	processed := o.processor.ProcessBatch(batch.Events)
	o.eventsProcessed.Add(uint64(len(batch.Events)))

	if err := o.loader.Load(ctx, processed); err != nil {
		o.logger.Error("search orchestrator: load failed, batch will be redelivered", "error", err)
		return nil
	}

	if err := o.loader.Flush(ctx); err != nil {
		o.logger.Error("search orchestrator: flush failed, batch will be redelivered", "error", err)
		return nil
	}
	o.documentsLoaded.Add(uint64(len(processed)))

	if err := o.consumer.Ack(ctx, batch); err != nil {
		o.logger.Error("search orchestrator: offset commit failed, batch will be redelivered", "error", err)
		return nil
	}

	return nil
}

func (o *Orchestrator) logProgress() {
	o.logger.Info("search orchestrator: progress",
		"events_processed", o.eventsProcessed.Load(),
		"documents_loaded", o.documentsLoaded.Load())
}
