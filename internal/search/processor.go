package search

import "github.com/hermesgraph/ingestd/internal/ids"

// EntityEventKind tags the variant carried by an EntityEvent. Dispatch is
// always by tag, matching model.Op's polymorphic-operation idiom (spec
// §9 "Polymorphic operations").
type EntityEventKind int

const (
	EntityEventUpsert EntityEventKind = iota
	EntityEventDelete
	EntityEventUnsetProperties
)

// EntityEvent is one entity touch extracted from an edit's ops, destined
// for the search index (spec §4.4 "Processor"). Exactly the field(s)
// matching Kind are populated.
type EntityEvent struct {
	Kind     EntityEventKind
	EntityID ids.ID
	SpaceID  ids.ID

	// EntityEventUpsert: absent fields are nil, carried through as a
	// partial update (spec §4.4 "Upsert{...}").
	Name        *string
	Description *string
	Avatar      *string
	Cover       *string

	// EntityEventUnsetProperties
	UnsetPropertyKeys []string
}

// ProcessedEventKind tags the variant carried by a ProcessedEvent.
type ProcessedEventKind int

const (
	ProcessedEventIndex ProcessedEventKind = iota
	ProcessedEventDelete
	ProcessedEventUnsetProperties
)

// ProcessedEvent is the processor's output: a document ready to index, or
// a delete/unset request ready to issue against the provider.
type ProcessedEvent struct {
	Kind     ProcessedEventKind
	Document EntityDocument

	EntityID ids.ID
	SpaceID  ids.ID

	UnsetPropertyKeys []string
}

// Processor transforms entity events into index documents or delete/unset
// requests (spec §4.4 "Processor"). It holds no state or caches; every
// input event maps independently to zero or one output.
type Processor struct{}

// NewProcessor constructs a Processor.
func NewProcessor() *Processor {
	return &Processor{}
}

// ProcessBatch transforms a batch of entity events in order. Empty
// UnsetProperties key lists are dropped (spec §4.4 "Processor").
func (p *Processor) ProcessBatch(events []EntityEvent) []ProcessedEvent {
	out := make([]ProcessedEvent, 0, len(events))
	for _, event := range events {
		if processed, ok := p.processOne(event); ok {
			out = append(out, processed)
		}
	}
	return out
}

func (p *Processor) processOne(event EntityEvent) (ProcessedEvent, bool) {
	switch event.Kind {
	case EntityEventUpsert:
		doc := NewEntityDocument(event.EntityID, event.SpaceID, event.Name, event.Description)
		doc.Avatar = event.Avatar
		doc.Cover = event.Cover
		return ProcessedEvent{Kind: ProcessedEventIndex, Document: doc}, true

	case EntityEventDelete:
		return ProcessedEvent{Kind: ProcessedEventDelete, EntityID: event.EntityID, SpaceID: event.SpaceID}, true

	case EntityEventUnsetProperties:
		if len(event.UnsetPropertyKeys) == 0 {
			return ProcessedEvent{}, false
		}
		return ProcessedEvent{
			Kind:              ProcessedEventUnsetProperties,
			EntityID:          event.EntityID,
			SpaceID:           event.SpaceID,
			UnsetPropertyKeys: event.UnsetPropertyKeys,
		}, true

	default:
		return ProcessedEvent{}, false
	}
}
