package search

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl/plain"

	ingesterrors "github.com/hermesgraph/ingestd/internal/errors"
	"github.com/hermesgraph/ingestd/internal/ids"
	"github.com/hermesgraph/ingestd/internal/ipfscache"
	"github.com/hermesgraph/ingestd/internal/logging"
	"github.com/hermesgraph/ingestd/internal/model"
)

// defaultConsumerBatchSize and defaultConsumerBatchWindow bound how long the
// consumer accumulates messages before handing a batch to the processor
// (spec §4.4 "Consumer batches by count(default 50)/time(default 1s)").
const (
	defaultConsumerBatchSize   = 50
	defaultConsumerBatchWindow = time.Second
)

// namePropertyID, wellKnownDescriptionPropertyID, wellKnownAvatarPropertyID
// and wellKnownCoverPropertyID are the system property ids the consumer
// matches an Op's value_property_id against to decide which
// EntityDocument field it populates, mirroring the grounding source's
// NAME_ATTRIBUTE / DESCRIPTION_ATTRIBUTE / AVATAR_ATTRIBUTE constants. The
// originating protocol's real fixed ids are out of scope (spec §1); these
// are fixed, deterministic placeholders until a real property registry is
// wired in (see DESIGN.md).
var (
	namePropertyID                 = mustParseID("a1a2a3a4-0000-4000-8000-000000000001")
	wellKnownDescriptionPropertyID = mustParseID("a1a2a3a4-0000-4000-8000-000000000002")
	wellKnownAvatarPropertyID      = mustParseID("a1a2a3a4-0000-4000-8000-000000000003")
	wellKnownCoverPropertyID       = mustParseID("a1a2a3a4-0000-4000-8000-000000000004")
)

func mustParseID(s string) ids.ID {
	id, err := ids.ParseID(s)
	if err != nil {
		panic(err)
	}
	return id
}

// Batch is one fetched-and-decoded unit of work: the entity events ready
// for the processor, plus the raw Kafka messages whose offsets must be
// committed once the batch has been fully processed, loaded, and flushed.
type Batch struct {
	Events   []EntityEvent
	messages []kafka.Message
}

// Consumer reads the edits topic, decodes each message's payload into
// entity events, and exposes an explicit Ack so the orchestrator controls
// when a processed batch's offsets commit; there is no Nack, a batch that
// is never acked simply stays uncommitted (spec §4.4 "Consumer").
type Consumer struct {
	reader      *kafka.Reader
	batchSize   int
	batchWindow time.Duration
	logger      *logging.Logger
}

// ConsumerConfig configures a Consumer.
type ConsumerConfig struct {
	Brokers     []string
	Topic       string
	GroupID     string
	SASLUser    string
	SASLPass    string
	BatchSize   int           // 0 defaults to 50
	BatchWindow time.Duration // 0 defaults to 1s
}

// NewConsumer constructs a Consumer. CommitInterval is left at its zero
// value so kafka-go never auto-commits; offsets are committed only by
// explicit calls: Ack, and FetchBatch's own commit of messages that are
// undecodable or carry no events (spec §4.4 "disables auto-commit").
func NewConsumer(cfg ConsumerConfig, logger *logging.Logger) *Consumer {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultConsumerBatchSize
	}
	batchWindow := cfg.BatchWindow
	if batchWindow <= 0 {
		batchWindow = defaultConsumerBatchWindow
	}

	readerCfg := kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		Topic:          cfg.Topic,
		GroupID:        cfg.GroupID,
		CommitInterval: 0,
	}
	if cfg.SASLUser != "" && cfg.SASLPass != "" {
		readerCfg.Dialer = &kafka.Dialer{
			Timeout:       10 * time.Second,
			DualStack:     true,
			SASLMechanism: plain.Mechanism{Username: cfg.SASLUser, Password: cfg.SASLPass},
		}
	}

	return &Consumer{
		reader:      kafka.NewReader(readerCfg),
		batchSize:   batchSize,
		batchWindow: batchWindow,
		logger:      logger,
	}
}

// FetchBatch accumulates up to batchSize messages or until batchWindow
// elapses, whichever comes first. Messages that decode to zero entity
// events commit their own offset immediately rather than joining the
// returned batch (spec §4.4 "messages parsing to zero events self-commit
// immediately").
func (c *Consumer) FetchBatch(ctx context.Context) (Batch, error) {
	deadline := time.Now().Add(c.batchWindow)
	batch := Batch{}

	for len(batch.messages) < c.batchSize {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}

		fetchCtx, cancel := context.WithTimeout(ctx, remaining)
		msg, err := c.reader.FetchMessage(fetchCtx)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return batch, ctx.Err()
			}
			// window elapsed with nothing new to fetch
			break
		}

		events, err := c.decodeMessage(msg)
		if err != nil {
			c.logger.Warn("search consumer: dropping undecodable message", "partition", msg.Partition, "offset", msg.Offset, "error", err)
			if commitErr := c.reader.CommitMessages(ctx, msg); commitErr != nil {
				c.logger.Error("search consumer: commit of undecodable message failed", "error", commitErr)
			}
			continue
		}

		if len(events) == 0 {
			if commitErr := c.reader.CommitMessages(ctx, msg); commitErr != nil {
				c.logger.Error("search consumer: commit of zero-event message failed", "error", commitErr)
			}
			continue
		}

		batch.Events = append(batch.Events, events...)
		batch.messages = append(batch.messages, msg)
	}

	return batch, nil
}

// Ack commits every message in the batch. Called only after the batch has
// been processed, loaded, and its pending upserts flushed (spec §4.4
// "Orchestrator... ACK on success").
func (c *Consumer) Ack(ctx context.Context, batch Batch) error {
	if len(batch.messages) == 0 {
		return nil
	}
	if err := c.reader.CommitMessages(ctx, batch.messages...); err != nil {
		return ingesterrors.TransientError(err, "commit kafka offsets")
	}
	return nil
}

// Close releases the underlying Kafka reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}

// decodeMessage turns one Kafka message into zero or more entity events.
// The message key carries the 16-byte space_id (ipfscache.DecodeEdit's
// wire format has no embedded space_id field, unlike the grounding
// source's HermesEdit payload, so the producer's partition key supplies it
// instead).
func (c *Consumer) decodeMessage(msg kafka.Message) ([]EntityEvent, error) {
	spaceID, err := ids.IDFromBytes(msg.Key)
	if err != nil {
		return nil, ingesterrors.PermanentContentError(err, "decode space_id from message key")
	}

	edit, err := ipfscache.DecodeEdit(spaceID, msg.Value)
	if err != nil {
		return nil, err
	}

	return entityEventsFromOps(spaceID, edit.Ops), nil
}

// entityEventsFromOps groups an edit's ops by entity, merging every
// OpUpdateEntity touch for the same entity into a single Upsert event and
// every OpUnsetEntityValues touch into a single UnsetProperties event,
// matching value_property_id / unset_property_id against the well-known
// name/description/avatar/cover property ids.
func entityEventsFromOps(spaceID ids.ID, ops []model.Op) []EntityEvent {
	order := make([]ids.ID, 0, len(ops))
	upserts := make(map[ids.ID]*EntityEvent)
	unsets := make(map[ids.ID]*EntityEvent)

	for _, op := range ops {
		switch op.Kind {
		case model.OpUpdateEntity:
			event, ok := upserts[op.EntityID]
			if !ok {
				event = &EntityEvent{Kind: EntityEventUpsert, EntityID: op.EntityID, SpaceID: spaceID}
				upserts[op.EntityID] = event
				order = append(order, op.EntityID)
			}
			applyValueTouch(event, op)

		case model.OpUnsetEntityValues:
			event, ok := unsets[op.EntityID]
			if !ok {
				event = &EntityEvent{Kind: EntityEventUnsetProperties, EntityID: op.EntityID, SpaceID: spaceID}
				unsets[op.EntityID] = event
				order = append(order, op.EntityID)
			}
			event.UnsetPropertyKeys = append(event.UnsetPropertyKeys, unsetKeysForPropertyIDs(op.UnsetPropertyIDs)...)
		}
	}

	seen := make(map[ids.ID]bool, len(order))
	events := make([]EntityEvent, 0, len(order))
	for _, entityID := range order {
		if seen[entityID] {
			continue
		}
		seen[entityID] = true
		if event, ok := upserts[entityID]; ok {
			events = append(events, *event)
		}
		if event, ok := unsets[entityID]; ok {
			events = append(events, *event)
		}
	}
	return events
}

func applyValueTouch(event *EntityEvent, op model.Op) {
	value := op.ValueRaw
	switch op.ValuePropertyID {
	case namePropertyID:
		event.Name = &value
	case wellKnownDescriptionPropertyID:
		event.Description = &value
	case wellKnownAvatarPropertyID:
		event.Avatar = &value
	case wellKnownCoverPropertyID:
		event.Cover = &value
	}
}

func unsetKeysForPropertyIDs(propertyIDs []ids.ID) []string {
	keys := make([]string, 0, len(propertyIDs))
	for _, id := range propertyIDs {
		switch id {
		case namePropertyID:
			keys = append(keys, "name")
		case wellKnownDescriptionPropertyID:
			keys = append(keys, "description")
		case wellKnownAvatarPropertyID:
			keys = append(keys, "avatar")
		case wellKnownCoverPropertyID:
			keys = append(keys, "cover")
		}
	}
	return keys
}
